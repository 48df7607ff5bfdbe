package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ai4kg/server/domain/monitoring"
	"github.com/ai4kg/server/pkg/apperror"
	"github.com/ai4kg/server/pkg/auth"
	"github.com/ai4kg/server/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// mirrorTimeout bounds each best-effort mirror call so a stalled
	// secondary store cannot hold up request handling.
	mirrorTimeout = 5 * time.Second
)

// Service implements the graph mutation engine. Every operation is scoped to
// the authenticated owner, keeps node/edge referential integrity, and
// forwards committed changes to the mirror without ever failing on it.
type Service struct {
	store  Store
	mirror Mirror
	log    *slog.Logger
}

// NewService creates a graph service.
func NewService(store Store, mirror Mirror, log *slog.Logger) *Service {
	return &Service{
		store:  store,
		mirror: mirror,
		log:    log.With(logger.Scope("graph.service")),
	}
}

// ownedGraph resolves a raw graph id to a graph owned by the user. Foreign
// and missing graphs are indistinguishable to the caller.
func (s *Service) ownedGraph(ctx context.Context, user *auth.User, rawGraphID string) (*Graph, error) {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}
	graphID, err := uuid.Parse(rawGraphID)
	if err != nil {
		return nil, apperror.NewNotFound("graph", rawGraphID)
	}
	return s.store.GetGraph(ctx, userID, graphID)
}

// buildContents converts a wire payload into storable rows, applying
// defaults and validating internal consistency: business ids must be unique
// and every edge endpoint must name a node in the set.
func buildContents(nodes []NodeData, edges []EdgeData) ([]*Node, []*Edge, error) {
	nodeRows := make([]*Node, 0, len(nodes))
	nodeIDs := make(map[string]struct{}, len(nodes))
	for _, nd := range nodes {
		id := nd.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, dup := nodeIDs[id]; dup {
			return nil, nil, apperror.NewBadRequest(fmt.Sprintf("duplicate node id '%s'", id))
		}
		nodeIDs[id] = struct{}{}

		label := nd.Label
		if label == "" {
			label = id
		}
		typ := nd.Type
		if typ == "" {
			typ = DefaultNodeType
		}
		props := nd.Properties
		if props == nil {
			props = map[string]any{}
		}
		nodeRows = append(nodeRows, &Node{
			NodeID:     id,
			Label:      label,
			Type:       typ,
			Properties: props,
			X:          nd.X,
			Y:          nd.Y,
			Size:       nd.Size,
			Color:      nd.Color,
		})
	}

	edgeRows := make([]*Edge, 0, len(edges))
	edgeIDs := make(map[string]struct{}, len(edges))
	for _, ed := range edges {
		if ed.Source == "" || ed.Target == "" {
			return nil, nil, apperror.NewBadRequest("edge source and target are required")
		}
		if _, ok := nodeIDs[ed.Source]; !ok {
			return nil, nil, apperror.NewBadRequest(fmt.Sprintf("edge references unknown node '%s'", ed.Source))
		}
		if _, ok := nodeIDs[ed.Target]; !ok {
			return nil, nil, apperror.NewBadRequest(fmt.Sprintf("edge references unknown node '%s'", ed.Target))
		}

		id := ed.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, dup := edgeIDs[id]; dup {
			return nil, nil, apperror.NewBadRequest(fmt.Sprintf("duplicate edge id '%s'", id))
		}
		edgeIDs[id] = struct{}{}

		typ := ed.Type
		if typ == "" {
			typ = DefaultEdgeType
		}
		props := ed.Properties
		if props == nil {
			props = map[string]any{}
		}
		edgeRows = append(edgeRows, &Edge{
			EdgeID:       id,
			SourceNodeID: ed.Source,
			TargetNodeID: ed.Target,
			Label:        ed.Label,
			Type:         typ,
			Properties:   props,
			Weight:       ed.Weight,
			Color:        ed.Color,
		})
	}

	return nodeRows, edgeRows, nil
}

func graphWithData(g *Graph, nodes []*Node, edges []*Edge) *GraphWithDataResponse {
	resp := &GraphWithDataResponse{
		GraphResponse: g.ToResponse(),
		Nodes:         make([]NodeData, 0, len(nodes)),
		Edges:         make([]EdgeData, 0, len(edges)),
	}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, n.ToData())
	}
	for _, e := range edges {
		resp.Edges = append(resp.Edges, e.ToData())
	}
	return resp
}

func observe(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	monitoring.GraphOperations.WithLabelValues(operation, status).Inc()
}

// forward runs one best-effort mirror call on its own deadline. Failures are
// counted and logged, never returned.
func (s *Service) forward(operation, mirrorID string, fn func(context.Context) error) {
	if !s.mirror.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		monitoring.MirrorFailures.WithLabelValues(operation).Inc()
		s.log.Warn("mirror forward failed",
			slog.String("operation", operation),
			slog.String("mirror_graph_id", mirrorID),
			logger.Error(err),
		)
	}
}

// resyncMirror pushes the primary's current contents for a graph to the
// mirror as a full snapshot.
func (s *Service) resyncMirror(g *Graph) {
	if !s.mirror.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	nodes, edges, err := s.store.GetContents(ctx, g.ID)
	if err != nil {
		monitoring.MirrorFailures.WithLabelValues("resync").Inc()
		s.log.Warn("mirror resync read failed", logger.Error(err))
		return
	}
	snapshot := graphWithData(g, nodes, edges)
	s.forward("resync", g.MirrorGraphID, func(ctx context.Context) error {
		return s.mirror.ReplaceGraph(ctx, g.MirrorGraphID, snapshot.Nodes, snapshot.Edges)
	})
}

// CreateGraph creates a graph, optionally seeded with validated contents.
func (s *Service) CreateGraph(ctx context.Context, user *auth.User, req CreateGraphRequest) (resp *GraphWithDataResponse, err error) {
	defer func() { observe("create_graph", err) }()

	if req.Title == "" {
		return nil, apperror.NewBadRequest("title is required")
	}
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	nodes, edges, err := buildContents(req.Nodes, req.Edges)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		Title:         req.Title,
		Description:   req.Description,
		UserID:        userID,
		MirrorGraphID: uuid.NewString(),
	}
	if err = s.store.CreateGraph(ctx, g, nodes, edges); err != nil {
		return nil, err
	}

	resp = graphWithData(g, nodes, edges)
	s.forward("create_graph", g.MirrorGraphID, func(ctx context.Context) error {
		if err := s.mirror.CreateGraph(ctx, g.MirrorGraphID); err != nil {
			return err
		}
		if len(resp.Nodes) == 0 && len(resp.Edges) == 0 {
			return nil
		}
		return s.mirror.ReplaceGraph(ctx, g.MirrorGraphID, resp.Nodes, resp.Edges)
	})
	return resp, nil
}

// GetGraph returns a graph with its full contents. When the primary holds
// nothing for the graph and a mirror is configured, the mirror's copy is
// served instead; a mirror failure degrades to the empty primary view.
func (s *Service) GetGraph(ctx context.Context, user *auth.User, rawGraphID string) (*GraphWithDataResponse, error) {
	g, err := s.ownedGraph(ctx, user, rawGraphID)
	if err != nil {
		return nil, err
	}
	nodes, edges, err := s.store.GetContents(ctx, g.ID)
	if err != nil {
		return nil, err
	}

	resp := graphWithData(g, nodes, edges)
	if len(nodes) == 0 && len(edges) == 0 && s.mirror.Enabled() {
		mNodes, mEdges, err := s.mirror.ReadGraph(ctx, g.MirrorGraphID)
		if err != nil {
			monitoring.MirrorFailures.WithLabelValues("read_graph").Inc()
			s.log.Warn("mirror fallback read failed", logger.Error(err))
			return resp, nil
		}
		if len(mNodes) > 0 || len(mEdges) > 0 {
			monitoring.MirrorFallbackReads.Inc()
			resp.Nodes = mNodes
			resp.Edges = mEdges
		}
	}
	return resp, nil
}

// ListGraphs returns a page of the user's graphs, oldest first, optionally
// filtered by a case-insensitive title/description match.
func (s *Service) ListGraphs(ctx context.Context, user *auth.User, page, size int, search string) (*GraphListResponse, error) {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	graphs, total, err := s.store.ListGraphs(ctx, userID, search, (page-1)*size, size)
	if err != nil {
		return nil, err
	}

	resp := &GraphListResponse{
		Graphs: make([]GraphResponse, 0, len(graphs)),
		Total:  total,
		Page:   page,
		Size:   size,
	}
	for _, g := range graphs {
		resp.Graphs = append(resp.Graphs, g.ToResponse())
	}
	return resp, nil
}

// ListNodes returns every node of a graph in creation order.
func (s *Service) ListNodes(ctx context.Context, user *auth.User, rawGraphID string) ([]NodeData, error) {
	g, err := s.ownedGraph(ctx, user, rawGraphID)
	if err != nil {
		return nil, err
	}
	nodes, _, err := s.store.GetContents(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	out := make([]NodeData, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ToData())
	}
	return out, nil
}

// ListEdges returns every edge of a graph in creation order.
func (s *Service) ListEdges(ctx context.Context, user *auth.User, rawGraphID string) ([]EdgeData, error) {
	g, err := s.ownedGraph(ctx, user, rawGraphID)
	if err != nil {
		return nil, err
	}
	_, edges, err := s.store.GetContents(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	out := make([]EdgeData, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.ToData())
	}
	return out, nil
}

// UpdateGraph patches graph metadata and, when the request carries a node or
// edge set, replaces the whole contents.
func (s *Service) UpdateGraph(ctx context.Context, user *auth.User, rawGraphID string, req UpdateGraphRequest) (resp *GraphWithDataResponse, err error) {
	defer func() { observe("update_graph", err) }()

	g, err := s.ownedGraph(ctx, user, rawGraphID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, apperror.NewBadRequest("title cannot be empty")
		}
		g.Title = *req.Title
	}
	if req.Description != nil {
		g.Description = req.Description
	}
	if err = s.store.UpdateGraphMetadata(ctx, g); err != nil {
		return nil, err
	}

	if req.HasContents() {
		nodes, edges, err := buildContents(req.Nodes, req.Edges)
		if err != nil {
			return nil, err
		}
		if err = s.store.ReplaceContents(ctx, g.ID, nodes, edges); err != nil {
			return nil, err
		}
		g.NodeCount = len(nodes)
		g.EdgeCount = len(edges)

		resp = graphWithData(g, nodes, edges)
		s.forward("update_graph", g.MirrorGraphID, func(ctx context.Context) error {
			return s.mirror.ReplaceGraph(ctx, g.MirrorGraphID, resp.Nodes, resp.Edges)
		})
		return resp, nil
	}

	nodes, edges, err := s.store.GetContents(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	return graphWithData(g, nodes, edges), nil
}

// DeleteGraph removes a graph with everything in it.
func (s *Service) DeleteGraph(ctx context.Context, user *auth.User, rawGraphID string) (err error) {
	defer func() { observe("delete_graph", err) }()

	g, err := s.ownedGraph(ctx, user, rawGraphID)
	if err != nil {
		return err
	}
	if err = s.store.DeleteGraph(ctx, g.ID); err != nil {
		return err
	}

	s.forward("delete_graph", g.MirrorGraphID, func(ctx context.Context) error {
		return s.mirror.DeleteGraph(ctx, g.MirrorGraphID)
	})
	return nil
}

// AddNode adds a single node. An empty id is generated; an id already in
// use is a conflict.
func (s *Service) AddNode(ctx context.Context, user *auth.User, rawGraphID string, req CreateNodeRequest) (data *NodeData, err error) {
	defer func() { observe("add_node", err) }()

	g, err := s.ownedGraph(ctx, user, rawGraphID)
	if err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, err := s.store.GetNode(ctx, g.ID, id); err == nil {
		return nil, apperror.NewConflict(fmt.Sprintf("node '%s' already exists", id))
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	label := req.Label
	if label == "" {
		label = id
	}
	typ := req.Type
	if typ == "" {
		typ = DefaultNodeType
	}
	props := req.Properties
	if props == nil {
		props = map[string]any{}
	}

	n := &Node{
		GraphID:    g.ID,
		NodeID:     id,
		Label:      label,
		Type:       typ,
		Properties: props,
		X:          req.X,
		Y:          req.Y,
		Size:       req.Size,
		Color:      req.Color,
	}
	if err = s.store.InsertNode(ctx, n); err != nil {
		return nil, err
	}

	nd := n.ToData()
	s.forward("add_node", g.MirrorGraphID, func(ctx context.Context) error {
		return s.mirror.UpsertNode(ctx, g.MirrorGraphID, nd)
	})
	return &nd, nil
}

// UpdateNode patches a node. Omitted fields keep their value; a present
// properties object replaces the bag wholesale.
func (s *Service) UpdateNode(ctx context.Context, user *auth.User, rawGraphID, nodeID string, req UpdateNodeRequest) (data *NodeData, err error) {
	defer func() { observe("update_node", err) }()

	g, err := s.ownedGraph(ctx, user, rawGraphID)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetNode(ctx, g.ID, nodeID)
	if err != nil {
		return nil, err
	}

	if req.Label != nil {
		n.Label = *req.Label
	}
	if req.Type != nil {
		typ := *req.Type
		if typ == "" {
			typ = DefaultNodeType
		}
		n.Type = typ
	}
	if req.Properties != nil {
		n.Properties = req.Properties
	}
	if req.X != nil {
		n.X = req.X
	}
	if req.Y != nil {
		n.Y = req.Y
	}
	if req.Size != nil {
		n.Size = req.Size
	}
	if req.Color != nil {
		n.Color = req.Color
	}

	if err = s.store.UpdateNode(ctx, n); err != nil {
		return nil, err
	}

	nd := n.ToData()
	s.forward("update_node", g.MirrorGraphID, func(ctx context.Context) error {
		return s.mirror.UpsertNode(ctx, g.MirrorGraphID, nd)
	})
	return &nd, nil
}

// DeleteNode removes a node and cascades to every incident edge, reporting
// exactly what was removed.
func (s *Service) DeleteNode(ctx context.Context, user *auth.User, rawGraphID, nodeID string) (resp *DeleteNodeResponse, err error) {
	defer func() { observe("delete_node", err) }()

	g, err := s.ownedGraph(ctx, user, rawGraphID)
	if err != nil {
		return nil, err
	}

	removed, err := s.store.DeleteNodeCascade(ctx, g.ID, nodeID)
	if err != nil {
		return nil, err
	}

	resp = &DeleteNodeResponse{
		DeletedNodeID:     nodeID,
		CascadedEdges:     make([]EdgeData, 0, len(removed)),
		CascadedEdgeCount: len(removed),
	}
	for _, e := range removed {
		resp.CascadedEdges = append(resp.CascadedEdges, e.ToData())
	}

	s.forward("delete_node", g.MirrorGraphID, func(ctx context.Context) error {
		return s.mirror.DeleteNode(ctx, g.MirrorGraphID, nodeID)
	})
	return resp, nil
}

// DeleteImpact previews a node deletion: the node itself, the edges that
// would cascade, and the surviving neighbors. It matches what DeleteNode
// would remove if called next.
func (s *Service) DeleteImpact(ctx context.Context, user *auth.User, rawGraphID, nodeID string) (*DeleteImpactResponse, error) {
	g, err := s.ownedGraph(ctx, user, rawGraphID)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetNode(ctx, g.ID, nodeID)
	if err != nil {
		return nil, err
	}
	edges, err := s.store.IncidentEdges(ctx, g.ID, nodeID)
	if err != nil {
		return nil, err
	}

	neighborIDs := make([]string, 0, len(edges))
	seen := map[string]struct{}{nodeID: {}}
	for _, e := range edges {
		for _, other := range []string{e.SourceNodeID, e.TargetNodeID} {
			if _, ok := seen[other]; ok {
				continue
			}
			seen[other] = struct{}{}
			neighborIDs = append(neighborIDs, other)
		}
	}
	neighbors, err := s.store.NodesByIDs(ctx, g.ID, neighborIDs)
	if err != nil {
		return nil, err
	}

	resp := &DeleteImpactResponse{
		TargetNode:          n.ToData(),
		AffectedEdges:       make([]EdgeData, 0, len(edges)),
		AffectedEdgesCount:  len(edges),
		ConnectedNodes:      make([]NodeData, 0, len(neighbors)),
		ConnectedNodesCount: len(neighbors),
	}
	for _, e := range edges {
		resp.AffectedEdges = append(resp.AffectedEdges, e.ToData())
	}
	for _, nb := range neighbors {
		resp.ConnectedNodes = append(resp.ConnectedNodes, nb.ToData())
	}
	return resp, nil
}

// AddEdge adds a single edge after verifying both endpoints exist. Self
// loops are allowed; an endpoint naming no node is reported as not found.
func (s *Service) AddEdge(ctx context.Context, user *auth.User, rawGraphID string, req CreateEdgeRequest) (data *EdgeData, err error) {
	defer func() { observe("add_edge", err) }()

	g, err := s.ownedGraph(ctx, user, rawGraphID)
	if err != nil {
		return nil, err
	}

	source := req.EffectiveSource()
	target := req.EffectiveTarget()
	if source == "" {
		return nil, apperror.NewBadRequest("edge source is required")
	}
	if target == "" {
		return nil, apperror.NewBadRequest("edge target is required")
	}
	if err = s.requireEndpoints(ctx, g.ID, source, target); err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, err := s.store.GetEdge(ctx, g.ID, id); err == nil {
		return nil, apperror.NewConflict(fmt.Sprintf("edge '%s' already exists", id))
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	typ := req.Type
	if typ == "" {
		typ = DefaultEdgeType
	}
	props := req.Properties
	if props == nil {
		props = map[string]any{}
	}

	e := &Edge{
		GraphID:      g.ID,
		EdgeID:       id,
		SourceNodeID: source,
		TargetNodeID: target,
		Label:        req.Label,
		Type:         typ,
		Properties:   props,
		Weight:       req.Weight,
		Color:        req.Color,
	}
	if err = s.store.InsertEdge(ctx, e); err != nil {
		return nil, err
	}

	ed := e.ToData()
	s.forward("add_edge", g.MirrorGraphID, func(ctx context.Context) error {
		return s.mirror.UpsertEdge(ctx, g.MirrorGraphID, ed)
	})
	return &ed, nil
}

// UpdateEdge patches an edge. A changed endpoint is validated against the
// node set before the edge is touched, so a rejected update leaves no trace
// even when the store hands out live rows.
func (s *Service) UpdateEdge(ctx context.Context, user *auth.User, rawGraphID, edgeID string, req UpdateEdgeRequest) (data *EdgeData, err error) {
	defer func() { observe("update_edge", err) }()

	g, err := s.ownedGraph(ctx, user, rawGraphID)
	if err != nil {
		return nil, err
	}
	e, err := s.store.GetEdge(ctx, g.ID, edgeID)
	if err != nil {
		return nil, err
	}

	source := e.SourceNodeID
	target := e.TargetNodeID
	if src := req.EffectiveSource(); src != nil {
		if *src == "" {
			return nil, apperror.NewBadRequest("edge source cannot be empty")
		}
		source = *src
	}
	if tgt := req.EffectiveTarget(); tgt != nil {
		if *tgt == "" {
			return nil, apperror.NewBadRequest("edge target cannot be empty")
		}
		target = *tgt
	}
	if err = s.requireEndpoints(ctx, g.ID, source, target); err != nil {
		return nil, err
	}
	e.SourceNodeID = source
	e.TargetNodeID = target

	if req.Label != nil {
		e.Label = req.Label
	}
	if req.Type != nil {
		typ := *req.Type
		if typ == "" {
			typ = DefaultEdgeType
		}
		e.Type = typ
	}
	if req.Properties != nil {
		e.Properties = req.Properties
	}
	if req.Weight != nil {
		e.Weight = req.Weight
	}
	if req.Color != nil {
		e.Color = req.Color
	}

	if err = s.store.UpdateEdge(ctx, e); err != nil {
		return nil, err
	}

	ed := e.ToData()
	s.forward("update_edge", g.MirrorGraphID, func(ctx context.Context) error {
		return s.mirror.UpsertEdge(ctx, g.MirrorGraphID, ed)
	})
	return &ed, nil
}

// DeleteEdge removes one edge and returns its final snapshot. Its endpoints
// are untouched.
func (s *Service) DeleteEdge(ctx context.Context, user *auth.User, rawGraphID, edgeID string) (data *EdgeData, err error) {
	defer func() { observe("delete_edge", err) }()

	g, err := s.ownedGraph(ctx, user, rawGraphID)
	if err != nil {
		return nil, err
	}
	e, err := s.store.GetEdge(ctx, g.ID, edgeID)
	if err != nil {
		return nil, err
	}
	ed := e.ToData()
	if err = s.store.DeleteEdge(ctx, g.ID, edgeID); err != nil {
		return nil, err
	}

	s.forward("delete_edge", g.MirrorGraphID, func(ctx context.Context) error {
		return s.mirror.DeleteEdge(ctx, g.MirrorGraphID, edgeID)
	})
	return &ed, nil
}

// requireEndpoints verifies that both endpoint business ids name existing
// nodes of the graph. A dangling endpoint is a problem with the request, not
// a lookup miss, so it surfaces as a bad request naming the role.
func (s *Service) requireEndpoints(ctx context.Context, graphID uuid.UUID, source, target string) error {
	ids := []string{source}
	if target != source {
		ids = append(ids, target)
	}
	nodes, err := s.store.NodesByIDs(ctx, graphID, ids)
	if err != nil {
		return err
	}
	found := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		found[n.NodeID] = struct{}{}
	}
	if _, ok := found[source]; !ok {
		return apperror.NewBadRequest(fmt.Sprintf("source node '%s' does not exist", source))
	}
	if _, ok := found[target]; !ok {
		return apperror.NewBadRequest(fmt.Sprintf("target node '%s' does not exist", target))
	}
	return nil
}

// MergeNodes collapses two or more nodes into one. The survivor keeps the
// id named by target_node_id (or the first listed id), properties fold in
// the listed order with explicit merged_fields winning, and every incident
// edge is re-pointed in place. When target_node_id names a brand-new id the
// survivor is a fresh node built from merged_fields and every listed id is
// absorbed.
func (s *Service) MergeNodes(ctx context.Context, user *auth.User, rawGraphID string, req MergeNodesRequest) (resp *MergeNodesResponse, err error) {
	defer func() { observe("merge_nodes", err) }()

	g, err := s.ownedGraph(ctx, user, rawGraphID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(req.NodeIDs))
	seen := make(map[string]struct{}, len(req.NodeIDs))
	for _, id := range req.NodeIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return nil, apperror.NewBadRequest("merge requires at least two distinct node ids")
	}

	rows, err := s.store.NodesByIDs(ctx, g.ID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Node, len(rows))
	for _, n := range rows {
		byID[n.NodeID] = n
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, apperror.NewNotFound("node", id)
		}
	}

	target := req.TargetNodeID
	if target == "" {
		target = ids[0]
	}
	base, targetListed := byID[target]
	if !targetListed {
		// A fresh target id must not collide with a node outside the
		// merge set.
		if _, err := s.store.GetNode(ctx, g.ID, target); err == nil {
			return nil, apperror.NewConflict(fmt.Sprintf("node '%s' already exists", target))
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		base = byID[ids[0]]
	}
	baseID := base.NodeID

	// Fold properties in the listed order, later nodes overwriting
	// earlier ones, explicit merged_fields last.
	props := map[string]any{}
	for _, id := range ids {
		for k, v := range byID[id].Properties {
			props[k] = v
		}
	}
	for k, v := range req.MergedFields.Properties {
		props[k] = v
	}

	base.NodeID = target
	base.Properties = props
	if targetListed {
		if req.MergedFields.Label != "" {
			base.Label = req.MergedFields.Label
		}
		if req.MergedFields.Type != "" {
			base.Type = req.MergedFields.Type
		}
		if req.MergedFields.X != nil {
			base.X = req.MergedFields.X
		}
		if req.MergedFields.Y != nil {
			base.Y = req.MergedFields.Y
		}
		if req.MergedFields.Size != nil {
			base.Size = req.MergedFields.Size
		}
		if req.MergedFields.Color != nil {
			base.Color = req.MergedFields.Color
		}
	} else {
		// A brand-new target is built from merged_fields alone; nothing
		// of the listed nodes survives except the folded property bag.
		label := req.MergedFields.Label
		if label == "" {
			label = target
		}
		typ := req.MergedFields.Type
		if typ == "" {
			typ = DefaultNodeType
		}
		base.Label = label
		base.Type = typ
		base.X = req.MergedFields.X
		base.Y = req.MergedFields.Y
		base.Size = req.MergedFields.Size
		base.Color = req.MergedFields.Color
	}

	// merged lists every business id that ceases to exist (with a fresh
	// target that is all of them); removed lists the rows to delete, which
	// excludes the reused survivor row.
	merged := make([]string, 0, len(ids))
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != target {
			merged = append(merged, id)
		}
		if id != baseID {
			removed = append(removed, id)
		}
	}

	if err = s.store.MergeNodes(ctx, g.ID, base, merged, removed); err != nil {
		return nil, err
	}

	s.resyncMirror(g)

	return &MergeNodesResponse{
		Node:          base.ToData(),
		MergedNodeIDs: merged,
	}, nil
}
