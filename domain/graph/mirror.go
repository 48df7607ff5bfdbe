package graph

import "context"

// Mirror is a secondary graph store that shadows the relational primary.
// Writes to it are best effort: the service forwards each committed change
// and discards any failure after logging it. The primary never waits on or
// rolls back for the mirror.
type Mirror interface {
	// Enabled reports whether a real backing store is configured. When it
	// returns false the service skips forwarding and fallback reads.
	Enabled() bool

	CreateGraph(ctx context.Context, mirrorID string) error
	DeleteGraph(ctx context.Context, mirrorID string) error

	// ReplaceGraph overwrites the mirror's contents for a graph with the
	// given snapshot. Used for bulk loads and after merges.
	ReplaceGraph(ctx context.Context, mirrorID string, nodes []NodeData, edges []EdgeData) error

	UpsertNode(ctx context.Context, mirrorID string, node NodeData) error
	DeleteNode(ctx context.Context, mirrorID, nodeID string) error
	UpsertEdge(ctx context.Context, mirrorID string, edge EdgeData) error
	DeleteEdge(ctx context.Context, mirrorID, edgeID string) error

	// ReadGraph returns the mirror's copy of a graph. Only consulted as a
	// fallback when the primary holds no contents for the graph.
	ReadGraph(ctx context.Context, mirrorID string) ([]NodeData, []EdgeData, error)
}

// NoopMirror satisfies Mirror for deployments without a secondary store.
type NoopMirror struct{}

func (NoopMirror) Enabled() bool { return false }

func (NoopMirror) CreateGraph(context.Context, string) error { return nil }
func (NoopMirror) DeleteGraph(context.Context, string) error { return nil }
func (NoopMirror) ReplaceGraph(context.Context, string, []NodeData, []EdgeData) error {
	return nil
}
func (NoopMirror) UpsertNode(context.Context, string, NodeData) error { return nil }
func (NoopMirror) DeleteNode(context.Context, string, string) error   { return nil }
func (NoopMirror) UpsertEdge(context.Context, string, EdgeData) error { return nil }
func (NoopMirror) DeleteEdge(context.Context, string, string) error   { return nil }
func (NoopMirror) ReadGraph(context.Context, string) ([]NodeData, []EdgeData, error) {
	return nil, nil, nil
}
