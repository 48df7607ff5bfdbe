package graph

import (
	"encoding/json"
	"time"
)

// DataResponse is the uniform success envelope returned by every endpoint.
type DataResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OK wraps data in a success envelope.
func OK(message string, data any) *DataResponse {
	return &DataResponse{Success: true, Message: message, Data: data}
}

// NodeData is the canonical wire representation of a node. Only the business
// id appears; the storage key never leaves the repository.
type NodeData struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	X          *float64       `json:"x,omitempty"`
	Y          *float64       `json:"y,omitempty"`
	Size       *float64       `json:"size,omitempty"`
	Color      *string        `json:"color,omitempty"`
}

// EdgeData is the canonical wire representation of an edge. Decoding accepts
// the legacy aliases "from"/"to" for the endpoints; encoding always writes
// "source"/"target".
type EdgeData struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Label      *string        `json:"label,omitempty"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Weight     *float64       `json:"weight,omitempty"`
	Color      *string        `json:"color,omitempty"`
}

// UnmarshalJSON resolves the endpoint aliases: "source" wins over "from",
// "target" wins over "to".
func (e *EdgeData) UnmarshalJSON(data []byte) error {
	type alias struct {
		ID         string         `json:"id"`
		Source     string         `json:"source"`
		From       string         `json:"from"`
		Target     string         `json:"target"`
		To         string         `json:"to"`
		Label      *string        `json:"label"`
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Weight     *float64       `json:"weight"`
		Color      *string        `json:"color"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	e.ID = a.ID
	e.Source = a.Source
	if e.Source == "" {
		e.Source = a.From
	}
	e.Target = a.Target
	if e.Target == "" {
		e.Target = a.To
	}
	e.Label = a.Label
	e.Type = a.Type
	e.Properties = a.Properties
	e.Weight = a.Weight
	e.Color = a.Color
	return nil
}

// GraphPayload is a decoded node-link document. The edge set is accepted
// under either "edges" or the legacy "links" key, with "edges" winning when
// both are present.
type GraphPayload struct {
	Nodes []NodeData `json:"nodes"`
	Edges []EdgeData `json:"edges"`
}

// UnmarshalJSON resolves the edges/links alias.
func (p *GraphPayload) UnmarshalJSON(data []byte) error {
	type alias struct {
		Nodes []NodeData `json:"nodes"`
		Edges []EdgeData `json:"edges"`
		Links []EdgeData `json:"links"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	p.Nodes = a.Nodes
	p.Edges = a.Edges
	if p.Edges == nil {
		p.Edges = a.Links
	}
	return nil
}

// ToData converts a stored node into its canonical wire shape.
func (n *Node) ToData() NodeData {
	props := n.Properties
	if props == nil {
		props = map[string]any{}
	}
	return NodeData{
		ID:         n.NodeID,
		Label:      n.Label,
		Type:       n.Type,
		Properties: props,
		X:          n.X,
		Y:          n.Y,
		Size:       n.Size,
		Color:      n.Color,
	}
}

// ToData converts a stored edge into its canonical wire shape.
func (e *Edge) ToData() EdgeData {
	props := e.Properties
	if props == nil {
		props = map[string]any{}
	}
	return EdgeData{
		ID:         e.EdgeID,
		Source:     e.SourceNodeID,
		Target:     e.TargetNodeID,
		Label:      e.Label,
		Type:       e.Type,
		Properties: props,
		Weight:     e.Weight,
		Color:      e.Color,
	}
}

// CreateGraphRequest creates a graph, optionally with initial contents.
type CreateGraphRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Nodes       []NodeData `json:"nodes"`
	Edges       []EdgeData `json:"edges"`
}

// UpdateGraphRequest partially updates graph metadata and, when a node or
// edge set is present (even empty), replaces the whole contents.
type UpdateGraphRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Nodes       []NodeData `json:"nodes"`
	Edges       []EdgeData `json:"edges"`
}

// HasContents reports whether the request carries a replacement node/edge
// set. A nil slice means the field was omitted.
func (r *UpdateGraphRequest) HasContents() bool {
	return r.Nodes != nil || r.Edges != nil
}

// CreateNodeRequest adds a single node. A missing id is generated.
type CreateNodeRequest struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	X          *float64       `json:"x"`
	Y          *float64       `json:"y"`
	Size       *float64       `json:"size"`
	Color      *string        `json:"color"`
}

// UpdateNodeRequest partially updates a node. Nil pointers mean the field
// was omitted and must be left alone; pointers to zero values overwrite.
type UpdateNodeRequest struct {
	Label      *string        `json:"label"`
	Type       *string        `json:"type"`
	Properties map[string]any `json:"properties"`
	X          *float64       `json:"x"`
	Y          *float64       `json:"y"`
	Size       *float64       `json:"size"`
	Color      *string        `json:"color"`
}

// CreateEdgeRequest adds a single edge. The endpoints accept the primary
// field or the legacy *_node_id alias, primary winning when both are given.
type CreateEdgeRequest struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	SourceNodeID string         `json:"source_node_id"`
	TargetNodeID string         `json:"target_node_id"`
	Label        *string        `json:"label"`
	Type         string         `json:"type"`
	Properties   map[string]any `json:"properties"`
	Weight       *float64       `json:"weight"`
	Color        *string        `json:"color"`
}

// EffectiveSource returns the source endpoint, preferring the primary field.
func (r *CreateEdgeRequest) EffectiveSource() string {
	if r.Source != "" {
		return r.Source
	}
	return r.SourceNodeID
}

// EffectiveTarget returns the target endpoint, preferring the primary field.
func (r *CreateEdgeRequest) EffectiveTarget() string {
	if r.Target != "" {
		return r.Target
	}
	return r.TargetNodeID
}

// UpdateEdgeRequest partially updates an edge. Changed endpoints are
// re-validated against the node set.
type UpdateEdgeRequest struct {
	Source       *string        `json:"source"`
	Target       *string        `json:"target"`
	SourceNodeID *string        `json:"source_node_id"`
	TargetNodeID *string        `json:"target_node_id"`
	Label        *string        `json:"label"`
	Type         *string        `json:"type"`
	Properties   map[string]any `json:"properties"`
	Weight       *float64       `json:"weight"`
	Color        *string        `json:"color"`
}

// EffectiveSource returns the updated source endpoint, if any.
func (r *UpdateEdgeRequest) EffectiveSource() *string {
	if r.Source != nil {
		return r.Source
	}
	return r.SourceNodeID
}

// EffectiveTarget returns the updated target endpoint, if any.
func (r *UpdateEdgeRequest) EffectiveTarget() *string {
	if r.Target != nil {
		return r.Target
	}
	return r.TargetNodeID
}

// MergeNodesRequest collapses the given nodes into one. TargetNodeID may
// name one of the listed nodes, a brand-new id, or be empty (first listed id
// becomes the primary).
type MergeNodesRequest struct {
	NodeIDs      []string          `json:"node_ids"`
	TargetNodeID string            `json:"target_node_id"`
	MergedFields CreateNodeRequest `json:"merged_fields"`
}

// GraphMetadata carries the denormalized counters and timestamps.
type GraphMetadata struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
}

// GraphResponse is the canonical graph envelope without contents.
type GraphResponse struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description *string       `json:"description"`
	UserID      string        `json:"user_id"`
	Metadata    GraphMetadata `json:"metadata"`
}

// GraphWithDataResponse is GraphResponse plus the full node/edge sets.
type GraphWithDataResponse struct {
	GraphResponse
	Nodes []NodeData `json:"nodes"`
	Edges []EdgeData `json:"edges"`
}

// GraphListResponse is a paginated graph listing.
type GraphListResponse struct {
	Graphs []GraphResponse `json:"graphs"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Size   int             `json:"size"`
}

// ToResponse converts a stored graph into its wire shape.
func (g *Graph) ToResponse() GraphResponse {
	return GraphResponse{
		ID:          g.ID.String(),
		Title:       g.Title,
		Description: g.Description,
		UserID:      g.UserID.String(),
		Metadata: GraphMetadata{
			CreatedAt: g.CreatedAt,
			UpdatedAt: g.UpdatedAt,
			NodeCount: g.NodeCount,
			EdgeCount: g.EdgeCount,
		},
	}
}

// DeleteNodeResponse reports a node deletion and its cascade.
type DeleteNodeResponse struct {
	DeletedNodeID     string     `json:"deleted_node_id"`
	CascadedEdges     []EdgeData `json:"cascaded_edges"`
	CascadedEdgeCount int        `json:"cascaded_edge_count"`
}

// DeleteImpactResponse describes what deleting a node would remove. It must
// match exactly what an immediately following delete does.
type DeleteImpactResponse struct {
	TargetNode          NodeData   `json:"target_node"`
	AffectedEdges       []EdgeData `json:"affected_edges"`
	AffectedEdgesCount  int        `json:"affected_edges_count"`
	ConnectedNodes      []NodeData `json:"connected_nodes"`
	ConnectedNodesCount int        `json:"connected_nodes_count"`
}

// MergeNodesResponse reports the surviving node and the absorbed ids.
type MergeNodesResponse struct {
	Node          NodeData `json:"node"`
	MergedNodeIDs []string `json:"merged_node_ids"`
}
