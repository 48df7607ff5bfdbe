package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ai4kg/server/pkg/apperror"
)

// memStore is an in-memory Store used to exercise the service without a
// database. It mimics the repository's semantics: business-id uniqueness
// surfaces as a conflict, missing rows as not found, and every contents
// mutation maintains the graph's counters.
type memStore struct {
	graphs map[uuid.UUID]*Graph
	nodes  map[uuid.UUID][]*Node
	edges  map[uuid.UUID][]*Edge
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		graphs: map[uuid.UUID]*Graph{},
		nodes:  map[uuid.UUID][]*Node{},
		edges:  map[uuid.UUID][]*Edge{},
	}
}

func (s *memStore) CreateGraph(_ context.Context, g *Graph, nodes []*Node, edges []*Edge) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
	g.NodeCount = len(nodes)
	g.EdgeCount = len(edges)
	s.graphs[g.ID] = g
	for _, n := range nodes {
		n.ID = uuid.New()
		n.GraphID = g.ID
		s.nodes[g.ID] = append(s.nodes[g.ID], n)
	}
	for _, e := range edges {
		e.ID = uuid.New()
		e.GraphID = g.ID
		s.edges[g.ID] = append(s.edges[g.ID], e)
	}
	return nil
}

func (s *memStore) GetGraph(_ context.Context, userID, graphID uuid.UUID) (*Graph, error) {
	g, ok := s.graphs[graphID]
	if !ok || g.UserID != userID {
		return nil, apperror.NewNotFound("graph", graphID.String())
	}
	return g, nil
}

func (s *memStore) GetContents(_ context.Context, graphID uuid.UUID) ([]*Node, []*Edge, error) {
	return append([]*Node{}, s.nodes[graphID]...), append([]*Edge{}, s.edges[graphID]...), nil
}

func (s *memStore) ListGraphs(_ context.Context, userID uuid.UUID, search string, offset, limit int) ([]*Graph, int, error) {
	matched := []*Graph{}
	for _, g := range s.graphs {
		if g.UserID != userID {
			continue
		}
		if search != "" {
			desc := ""
			if g.Description != nil {
				desc = *g.Description
			}
			needle := strings.ToLower(search)
			if !strings.Contains(strings.ToLower(g.Title), needle) &&
				!strings.Contains(strings.ToLower(desc), needle) {
				continue
			}
		}
		matched = append(matched, g)
	}
	for i := range matched {
		for j := i + 1; j < len(matched); j++ {
			if matched[j].CreatedAt.Before(matched[i].CreatedAt) {
				matched[i], matched[j] = matched[j], matched[i]
			}
		}
	}
	total := len(matched)
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (s *memStore) UpdateGraphMetadata(_ context.Context, g *Graph) error {
	stored, ok := s.graphs[g.ID]
	if !ok {
		return apperror.NewNotFound("graph", g.ID.String())
	}
	stored.Title = g.Title
	stored.Description = g.Description
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) ReplaceContents(_ context.Context, graphID uuid.UUID, nodes []*Node, edges []*Edge) error {
	g, ok := s.graphs[graphID]
	if !ok {
		return apperror.NewNotFound("graph", graphID.String())
	}
	s.nodes[graphID] = nil
	s.edges[graphID] = nil
	for _, n := range nodes {
		n.ID = uuid.New()
		n.GraphID = graphID
		s.nodes[graphID] = append(s.nodes[graphID], n)
	}
	for _, e := range edges {
		e.ID = uuid.New()
		e.GraphID = graphID
		s.edges[graphID] = append(s.edges[graphID], e)
	}
	g.NodeCount = len(nodes)
	g.EdgeCount = len(edges)
	g.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) DeleteGraph(_ context.Context, graphID uuid.UUID) error {
	delete(s.graphs, graphID)
	delete(s.nodes, graphID)
	delete(s.edges, graphID)
	return nil
}

func (s *memStore) GetNode(_ context.Context, graphID uuid.UUID, nodeID string) (*Node, error) {
	for _, n := range s.nodes[graphID] {
		if n.NodeID == nodeID {
			return n, nil
		}
	}
	return nil, apperror.NewNotFound("node", nodeID)
}

func (s *memStore) NodesByIDs(_ context.Context, graphID uuid.UUID, nodeIDs []string) ([]*Node, error) {
	want := map[string]struct{}{}
	for _, id := range nodeIDs {
		want[id] = struct{}{}
	}
	found := []*Node{}
	for _, n := range s.nodes[graphID] {
		if _, ok := want[n.NodeID]; ok {
			found = append(found, n)
		}
	}
	return found, nil
}

func (s *memStore) InsertNode(_ context.Context, n *Node) error {
	for _, existing := range s.nodes[n.GraphID] {
		if existing.NodeID == n.NodeID {
			return apperror.NewConflict(fmt.Sprintf("node '%s' already exists", n.NodeID))
		}
	}
	n.ID = uuid.New()
	s.nodes[n.GraphID] = append(s.nodes[n.GraphID], n)
	if g, ok := s.graphs[n.GraphID]; ok {
		g.NodeCount++
		g.UpdatedAt = time.Now()
	}
	return nil
}

func (s *memStore) UpdateNode(_ context.Context, n *Node) error {
	for i, existing := range s.nodes[n.GraphID] {
		if existing.ID == n.ID {
			s.nodes[n.GraphID][i] = n
			return nil
		}
	}
	return apperror.NewNotFound("node", n.NodeID)
}

func (s *memStore) DeleteNodeCascade(_ context.Context, graphID uuid.UUID, nodeID string) ([]*Edge, error) {
	idx := -1
	for i, n := range s.nodes[graphID] {
		if n.NodeID == nodeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperror.NewNotFound("node", nodeID)
	}

	removed := []*Edge{}
	kept := []*Edge{}
	for _, e := range s.edges[graphID] {
		if e.SourceNodeID == nodeID || e.TargetNodeID == nodeID {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}
	s.edges[graphID] = kept
	s.nodes[graphID] = append(s.nodes[graphID][:idx], s.nodes[graphID][idx+1:]...)

	if g, ok := s.graphs[graphID]; ok {
		g.NodeCount--
		g.EdgeCount -= len(removed)
		g.UpdatedAt = time.Now()
	}
	return removed, nil
}

func (s *memStore) IncidentEdges(_ context.Context, graphID uuid.UUID, nodeID string) ([]*Edge, error) {
	incident := []*Edge{}
	for _, e := range s.edges[graphID] {
		if e.SourceNodeID == nodeID || e.TargetNodeID == nodeID {
			incident = append(incident, e)
		}
	}
	return incident, nil
}

func (s *memStore) GetEdge(_ context.Context, graphID uuid.UUID, edgeID string) (*Edge, error) {
	for _, e := range s.edges[graphID] {
		if e.EdgeID == edgeID {
			return e, nil
		}
	}
	return nil, apperror.NewNotFound("edge", edgeID)
}

func (s *memStore) InsertEdge(_ context.Context, e *Edge) error {
	for _, existing := range s.edges[e.GraphID] {
		if existing.EdgeID == e.EdgeID {
			return apperror.NewConflict(fmt.Sprintf("edge '%s' already exists", e.EdgeID))
		}
	}
	e.ID = uuid.New()
	s.edges[e.GraphID] = append(s.edges[e.GraphID], e)
	if g, ok := s.graphs[e.GraphID]; ok {
		g.EdgeCount++
		g.UpdatedAt = time.Now()
	}
	return nil
}

func (s *memStore) UpdateEdge(_ context.Context, e *Edge) error {
	for i, existing := range s.edges[e.GraphID] {
		if existing.ID == e.ID {
			s.edges[e.GraphID][i] = e
			return nil
		}
	}
	return apperror.NewNotFound("edge", e.EdgeID)
}

func (s *memStore) DeleteEdge(_ context.Context, graphID uuid.UUID, edgeID string) error {
	for i, e := range s.edges[graphID] {
		if e.EdgeID == edgeID {
			s.edges[graphID] = append(s.edges[graphID][:i], s.edges[graphID][i+1:]...)
			if g, ok := s.graphs[graphID]; ok {
				g.EdgeCount--
				g.UpdatedAt = time.Now()
			}
			return nil
		}
	}
	return apperror.NewNotFound("edge", edgeID)
}

func (s *memStore) MergeNodes(_ context.Context, graphID uuid.UUID, primary *Node, repointFrom, absorbed []string) error {
	old := map[string]struct{}{}
	for _, id := range repointFrom {
		old[id] = struct{}{}
	}
	for _, e := range s.edges[graphID] {
		if _, ok := old[e.SourceNodeID]; ok {
			e.SourceNodeID = primary.NodeID
		}
		if _, ok := old[e.TargetNodeID]; ok {
			e.TargetNodeID = primary.NodeID
		}
	}

	gone := map[string]struct{}{}
	for _, id := range absorbed {
		gone[id] = struct{}{}
	}
	kept := []*Node{}
	for _, n := range s.nodes[graphID] {
		if n.ID == primary.ID {
			kept = append(kept, primary)
			continue
		}
		if _, ok := gone[n.NodeID]; ok {
			continue
		}
		kept = append(kept, n)
	}
	s.nodes[graphID] = kept

	if g, ok := s.graphs[graphID]; ok {
		g.NodeCount -= len(absorbed)
		g.UpdatedAt = time.Now()
	}
	return nil
}

// recordMirror records every forwarded call and optionally serves a canned
// fallback read.
type recordMirror struct {
	calls     []string
	snapshots [][]NodeData
	readNodes []NodeData
	readEdges []EdgeData
}

var _ Mirror = (*recordMirror)(nil)

func (m *recordMirror) Enabled() bool { return true }

func (m *recordMirror) CreateGraph(context.Context, string) error {
	m.calls = append(m.calls, "create_graph")
	return nil
}

func (m *recordMirror) DeleteGraph(context.Context, string) error {
	m.calls = append(m.calls, "delete_graph")
	return nil
}

func (m *recordMirror) ReplaceGraph(_ context.Context, _ string, nodes []NodeData, _ []EdgeData) error {
	m.calls = append(m.calls, "replace_graph")
	m.snapshots = append(m.snapshots, nodes)
	return nil
}

func (m *recordMirror) UpsertNode(context.Context, string, NodeData) error {
	m.calls = append(m.calls, "upsert_node")
	return nil
}

func (m *recordMirror) DeleteNode(context.Context, string, string) error {
	m.calls = append(m.calls, "delete_node")
	return nil
}

func (m *recordMirror) UpsertEdge(context.Context, string, EdgeData) error {
	m.calls = append(m.calls, "upsert_edge")
	return nil
}

func (m *recordMirror) DeleteEdge(context.Context, string, string) error {
	m.calls = append(m.calls, "delete_edge")
	return nil
}

func (m *recordMirror) ReadGraph(context.Context, string) ([]NodeData, []EdgeData, error) {
	m.calls = append(m.calls, "read_graph")
	return m.readNodes, m.readEdges, nil
}

// failMirror fails every call. The service must swallow all of it.
type failMirror struct{}

var _ Mirror = failMirror{}

var errMirrorDown = fmt.Errorf("mirror down")

func (failMirror) Enabled() bool                             { return true }
func (failMirror) CreateGraph(context.Context, string) error { return errMirrorDown }
func (failMirror) DeleteGraph(context.Context, string) error { return errMirrorDown }
func (failMirror) ReplaceGraph(context.Context, string, []NodeData, []EdgeData) error {
	return errMirrorDown
}
func (failMirror) UpsertNode(context.Context, string, NodeData) error { return errMirrorDown }
func (failMirror) DeleteNode(context.Context, string, string) error   { return errMirrorDown }
func (failMirror) UpsertEdge(context.Context, string, EdgeData) error { return errMirrorDown }
func (failMirror) DeleteEdge(context.Context, string, string) error   { return errMirrorDown }
func (failMirror) ReadGraph(context.Context, string) ([]NodeData, []EdgeData, error) {
	return nil, nil, errMirrorDown
}
