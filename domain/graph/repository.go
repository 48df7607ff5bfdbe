package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"github.com/ai4kg/server/internal/database"
	"github.com/ai4kg/server/pkg/apperror"
	"github.com/ai4kg/server/pkg/logger"
)

// Store is the persistence surface the graph service depends on. It is
// satisfied by *Repository in production and by an in-memory fake in tests.
//
// Every method that touches more than one row runs as a single atomic unit.
// Content-mutating methods also maintain the owning graph's denormalized
// counters and updated_at stamp.
type Store interface {
	CreateGraph(ctx context.Context, g *Graph, nodes []*Node, edges []*Edge) error
	GetGraph(ctx context.Context, userID, graphID uuid.UUID) (*Graph, error)
	GetContents(ctx context.Context, graphID uuid.UUID) ([]*Node, []*Edge, error)
	ListGraphs(ctx context.Context, userID uuid.UUID, search string, offset, limit int) ([]*Graph, int, error)
	UpdateGraphMetadata(ctx context.Context, g *Graph) error
	ReplaceContents(ctx context.Context, graphID uuid.UUID, nodes []*Node, edges []*Edge) error
	DeleteGraph(ctx context.Context, graphID uuid.UUID) error

	GetNode(ctx context.Context, graphID uuid.UUID, nodeID string) (*Node, error)
	NodesByIDs(ctx context.Context, graphID uuid.UUID, nodeIDs []string) ([]*Node, error)
	InsertNode(ctx context.Context, n *Node) error
	UpdateNode(ctx context.Context, n *Node) error
	DeleteNodeCascade(ctx context.Context, graphID uuid.UUID, nodeID string) ([]*Edge, error)
	IncidentEdges(ctx context.Context, graphID uuid.UUID, nodeID string) ([]*Edge, error)

	GetEdge(ctx context.Context, graphID uuid.UUID, edgeID string) (*Edge, error)
	InsertEdge(ctx context.Context, e *Edge) error
	UpdateEdge(ctx context.Context, e *Edge) error
	DeleteEdge(ctx context.Context, graphID uuid.UUID, edgeID string) error

	MergeNodes(ctx context.Context, graphID uuid.UUID, primary *Node, repointFrom, absorbed []string) error
}

// Repository implements Store on Postgres through bun.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a graph repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("graph.repository")),
	}
}

var _ Store = (*Repository)(nil)

const pgUniqueViolation = "23505"

// dbErr translates driver failures into application errors. Unique
// violations become conflicts; everything else is a database error.
func dbErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperror.ErrConflict.WithInternal(fmt.Errorf("%s: %w", op, err))
	}
	return apperror.ErrDatabase.WithInternal(fmt.Errorf("%s: %w", op, err))
}

// CreateGraph inserts the graph row and its initial contents atomically.
func (r *Repository) CreateGraph(ctx context.Context, g *Graph, nodes []*Node, edges []*Edge) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return dbErr("begin create graph", err)
	}
	defer tx.Rollback()

	g.NodeCount = len(nodes)
	g.EdgeCount = len(edges)
	if _, err := tx.NewInsert().Model(g).Returning("*").Exec(ctx); err != nil {
		return dbErr("insert graph", err)
	}

	for _, n := range nodes {
		n.GraphID = g.ID
	}
	for _, e := range edges {
		e.GraphID = g.ID
	}
	if len(nodes) > 0 {
		if _, err := tx.NewInsert().Model(&nodes).Exec(ctx); err != nil {
			return dbErr("insert nodes", err)
		}
	}
	if len(edges) > 0 {
		if _, err := tx.NewInsert().Model(&edges).Exec(ctx); err != nil {
			return dbErr("insert edges", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return dbErr("commit create graph", err)
	}
	return nil
}

// GetGraph fetches a graph scoped to its owner. A graph owned by another
// user is reported as not found.
func (r *Repository) GetGraph(ctx context.Context, userID, graphID uuid.UUID) (*Graph, error) {
	g := new(Graph)
	err := r.db.NewSelect().
		Model(g).
		Where("g.id = ?", graphID).
		Where("g.user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("graph", graphID.String())
	}
	if err != nil {
		return nil, dbErr("get graph", err)
	}
	return g, nil
}

// GetContents loads the full node and edge sets of a graph, ordered by
// creation time with the storage key as tiebreaker.
func (r *Repository) GetContents(ctx context.Context, graphID uuid.UUID) ([]*Node, []*Edge, error) {
	nodes := make([]*Node, 0)
	err := r.db.NewSelect().
		Model(&nodes).
		Where("n.graph_id = ?", graphID).
		Order("n.created_at ASC", "n.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, nil, dbErr("select nodes", err)
	}

	edges := make([]*Edge, 0)
	err = r.db.NewSelect().
		Model(&edges).
		Where("e.graph_id = ?", graphID).
		Order("e.created_at ASC", "e.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, nil, dbErr("select edges", err)
	}

	return nodes, edges, nil
}

// ListGraphs returns a page of the user's graphs plus the unpaged total.
// An optional search term matches title or description, case-insensitive.
func (r *Repository) ListGraphs(ctx context.Context, userID uuid.UUID, search string, offset, limit int) ([]*Graph, int, error) {
	graphs := make([]*Graph, 0)
	q := r.db.NewSelect().
		Model(&graphs).
		Where("g.user_id = ?", userID)
	if search != "" {
		pattern := "%" + search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("g.title ILIKE ?", pattern).
				WhereOr("g.description ILIKE ?", pattern)
		})
	}

	total, err := q.Order("g.created_at ASC", "g.id ASC").
		Offset(offset).
		Limit(limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, dbErr("list graphs", err)
	}
	return graphs, total, nil
}

// UpdateGraphMetadata persists title, description and updated_at.
func (r *Repository) UpdateGraphMetadata(ctx context.Context, g *Graph) error {
	g.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(g).
		Column("title", "description", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return dbErr("update graph", err)
	}
	return nil
}

// ReplaceContents swaps the entire node/edge set of a graph and resets the
// counters, all in one transaction.
func (r *Repository) ReplaceContents(ctx context.Context, graphID uuid.UUID, nodes []*Node, edges []*Edge) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return dbErr("begin replace contents", err)
	}
	defer tx.Rollback()

	if _, err := tx.NewDelete().Model((*Edge)(nil)).Where("graph_id = ?", graphID).Exec(ctx); err != nil {
		return dbErr("clear edges", err)
	}
	if _, err := tx.NewDelete().Model((*Node)(nil)).Where("graph_id = ?", graphID).Exec(ctx); err != nil {
		return dbErr("clear nodes", err)
	}

	for _, n := range nodes {
		n.GraphID = graphID
	}
	for _, e := range edges {
		e.GraphID = graphID
	}
	if len(nodes) > 0 {
		if _, err := tx.NewInsert().Model(&nodes).Exec(ctx); err != nil {
			return dbErr("insert nodes", err)
		}
	}
	if len(edges) > 0 {
		if _, err := tx.NewInsert().Model(&edges).Exec(ctx); err != nil {
			return dbErr("insert edges", err)
		}
	}

	// Counters are absolute after a replace, not deltas.
	_, err = tx.NewUpdate().
		Model((*Graph)(nil)).
		Set("node_count = ?", len(nodes)).
		Set("edge_count = ?", len(edges)).
		Set("updated_at = now()").
		Where("id = ?", graphID).
		Exec(ctx)
	if err != nil {
		return dbErr("reset counters", err)
	}

	if err := tx.Commit(); err != nil {
		return dbErr("commit replace contents", err)
	}
	return nil
}

// DeleteGraph removes a graph and everything in it.
func (r *Repository) DeleteGraph(ctx context.Context, graphID uuid.UUID) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return dbErr("begin delete graph", err)
	}
	defer tx.Rollback()

	if _, err := tx.NewDelete().Model((*Edge)(nil)).Where("graph_id = ?", graphID).Exec(ctx); err != nil {
		return dbErr("delete edges", err)
	}
	if _, err := tx.NewDelete().Model((*Node)(nil)).Where("graph_id = ?", graphID).Exec(ctx); err != nil {
		return dbErr("delete nodes", err)
	}
	if _, err := tx.NewDelete().Model((*Graph)(nil)).Where("id = ?", graphID).Exec(ctx); err != nil {
		return dbErr("delete graph", err)
	}

	if err := tx.Commit(); err != nil {
		return dbErr("commit delete graph", err)
	}
	return nil
}

// GetNode fetches a node by business id within a graph.
func (r *Repository) GetNode(ctx context.Context, graphID uuid.UUID, nodeID string) (*Node, error) {
	n := new(Node)
	err := r.db.NewSelect().
		Model(n).
		Where("n.graph_id = ?", graphID).
		Where("n.node_id = ?", nodeID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("node", nodeID)
	}
	if err != nil {
		return nil, dbErr("get node", err)
	}
	return n, nil
}

// NodesByIDs fetches the nodes matching the given business ids. Missing ids
// are simply absent from the result.
func (r *Repository) NodesByIDs(ctx context.Context, graphID uuid.UUID, nodeIDs []string) ([]*Node, error) {
	nodes := make([]*Node, 0, len(nodeIDs))
	if len(nodeIDs) == 0 {
		return nodes, nil
	}
	err := r.db.NewSelect().
		Model(&nodes).
		Where("n.graph_id = ?", graphID).
		Where("n.node_id IN (?)", bun.In(nodeIDs)).
		Order("n.created_at ASC", "n.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, dbErr("select nodes by id", err)
	}
	return nodes, nil
}

// InsertNode adds one node and bumps the graph's node counter.
func (r *Repository) InsertNode(ctx context.Context, n *Node) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return dbErr("begin insert node", err)
	}
	defer tx.Rollback()

	if _, err := tx.NewInsert().Model(n).Returning("*").Exec(ctx); err != nil {
		return dbErr("insert node", err)
	}
	if err := touchGraph(ctx, tx.Tx, n.GraphID, 1, 0); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dbErr("commit insert node", err)
	}
	return nil
}

// UpdateNode persists all mutable node columns and touches the graph.
func (r *Repository) UpdateNode(ctx context.Context, n *Node) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return dbErr("begin update node", err)
	}
	defer tx.Rollback()

	n.UpdatedAt = time.Now()
	_, err = tx.NewUpdate().
		Model(n).
		Column("label", "type", "properties", "x", "y", "size", "color", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return dbErr("update node", err)
	}
	if err := touchGraph(ctx, tx.Tx, n.GraphID, 0, 0); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dbErr("commit update node", err)
	}
	return nil
}

// DeleteNodeCascade removes a node and every edge touching it, returning the
// removed edges. Counters shrink by exactly what was removed.
func (r *Repository) DeleteNodeCascade(ctx context.Context, graphID uuid.UUID, nodeID string) ([]*Edge, error) {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return nil, dbErr("begin delete node", err)
	}
	defer tx.Rollback()

	removed := make([]*Edge, 0)
	err = tx.NewSelect().
		Model(&removed).
		Where("e.graph_id = ?", graphID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("e.source_node_id = ?", nodeID).
				WhereOr("e.target_node_id = ?", nodeID)
		}).
		Order("e.created_at ASC", "e.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, dbErr("select incident edges", err)
	}

	if len(removed) > 0 {
		ids := make([]uuid.UUID, len(removed))
		for i, e := range removed {
			ids[i] = e.ID
		}
		if _, err := tx.NewDelete().Model((*Edge)(nil)).Where("id IN (?)", bun.In(ids)).Exec(ctx); err != nil {
			return nil, dbErr("delete incident edges", err)
		}
	}

	res, err := tx.NewDelete().
		Model((*Node)(nil)).
		Where("graph_id = ?", graphID).
		Where("node_id = ?", nodeID).
		Exec(ctx)
	if err != nil {
		return nil, dbErr("delete node", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperror.NewNotFound("node", nodeID)
	}

	if err := touchGraph(ctx, tx.Tx, graphID, -1, -len(removed)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, dbErr("commit delete node", err)
	}
	return removed, nil
}

// IncidentEdges returns every edge whose source or target is the node.
func (r *Repository) IncidentEdges(ctx context.Context, graphID uuid.UUID, nodeID string) ([]*Edge, error) {
	edges := make([]*Edge, 0)
	err := r.db.NewSelect().
		Model(&edges).
		Where("e.graph_id = ?", graphID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("e.source_node_id = ?", nodeID).
				WhereOr("e.target_node_id = ?", nodeID)
		}).
		Order("e.created_at ASC", "e.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, dbErr("select incident edges", err)
	}
	return edges, nil
}

// GetEdge fetches an edge by business id within a graph.
func (r *Repository) GetEdge(ctx context.Context, graphID uuid.UUID, edgeID string) (*Edge, error) {
	e := new(Edge)
	err := r.db.NewSelect().
		Model(e).
		Where("e.graph_id = ?", graphID).
		Where("e.edge_id = ?", edgeID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("edge", edgeID)
	}
	if err != nil {
		return nil, dbErr("get edge", err)
	}
	return e, nil
}

// InsertEdge adds one edge and bumps the graph's edge counter.
func (r *Repository) InsertEdge(ctx context.Context, e *Edge) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return dbErr("begin insert edge", err)
	}
	defer tx.Rollback()

	if _, err := tx.NewInsert().Model(e).Returning("*").Exec(ctx); err != nil {
		return dbErr("insert edge", err)
	}
	if err := touchGraph(ctx, tx.Tx, e.GraphID, 0, 1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dbErr("commit insert edge", err)
	}
	return nil
}

// UpdateEdge persists all mutable edge columns and touches the graph.
func (r *Repository) UpdateEdge(ctx context.Context, e *Edge) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return dbErr("begin update edge", err)
	}
	defer tx.Rollback()

	e.UpdatedAt = time.Now()
	_, err = tx.NewUpdate().
		Model(e).
		Column("source_node_id", "target_node_id", "label", "type", "properties", "weight", "color", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return dbErr("update edge", err)
	}
	if err := touchGraph(ctx, tx.Tx, e.GraphID, 0, 0); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dbErr("commit update edge", err)
	}
	return nil
}

// DeleteEdge removes one edge and decrements the graph's edge counter.
func (r *Repository) DeleteEdge(ctx context.Context, graphID uuid.UUID, edgeID string) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return dbErr("begin delete edge", err)
	}
	defer tx.Rollback()

	res, err := tx.NewDelete().
		Model((*Edge)(nil)).
		Where("graph_id = ?", graphID).
		Where("edge_id = ?", edgeID).
		Exec(ctx)
	if err != nil {
		return dbErr("delete edge", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NewNotFound("edge", edgeID)
	}

	if err := touchGraph(ctx, tx.Tx, graphID, 0, -1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dbErr("commit delete edge", err)
	}
	return nil
}

// MergeNodes applies a computed merge: the primary row is rewritten with its
// final id and folded fields, every edge endpoint naming an old id is
// re-pointed at the primary, and the absorbed rows disappear. One
// transaction, so a failed merge changes nothing.
func (r *Repository) MergeNodes(ctx context.Context, graphID uuid.UUID, primary *Node, repointFrom, absorbed []string) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return dbErr("begin merge nodes", err)
	}
	defer tx.Rollback()

	primary.UpdatedAt = time.Now()
	_, err = tx.NewUpdate().
		Model(primary).
		Column("node_id", "label", "type", "properties", "x", "y", "size", "color", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return dbErr("update merge primary", err)
	}

	if len(repointFrom) > 0 {
		_, err = tx.NewUpdate().
			Model((*Edge)(nil)).
			Set("source_node_id = ?", primary.NodeID).
			Set("updated_at = now()").
			Where("graph_id = ?", graphID).
			Where("source_node_id IN (?)", bun.In(repointFrom)).
			Exec(ctx)
		if err != nil {
			return dbErr("repoint edge sources", err)
		}
		_, err = tx.NewUpdate().
			Model((*Edge)(nil)).
			Set("target_node_id = ?", primary.NodeID).
			Set("updated_at = now()").
			Where("graph_id = ?", graphID).
			Where("target_node_id IN (?)", bun.In(repointFrom)).
			Exec(ctx)
		if err != nil {
			return dbErr("repoint edge targets", err)
		}
	}

	if len(absorbed) > 0 {
		_, err = tx.NewDelete().
			Model((*Node)(nil)).
			Where("graph_id = ?", graphID).
			Where("node_id IN (?)", bun.In(absorbed)).
			Exec(ctx)
		if err != nil {
			return dbErr("delete absorbed nodes", err)
		}
	}

	if err := touchGraph(ctx, tx.Tx, graphID, -len(absorbed), 0); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dbErr("commit merge nodes", err)
	}
	return nil
}

// touchGraph adjusts the denormalized counters by the given deltas and
// refreshes updated_at.
func touchGraph(ctx context.Context, tx bun.Tx, graphID uuid.UUID, nodeDelta, edgeDelta int) error {
	q := tx.NewUpdate().
		Model((*Graph)(nil)).
		Set("updated_at = now()").
		Where("id = ?", graphID)
	if nodeDelta != 0 {
		q = q.Set("node_count = node_count + ?", nodeDelta)
	}
	if edgeDelta != 0 {
		q = q.Set("edge_count = edge_count + ?", edgeDelta)
	}
	if _, err := q.Exec(ctx); err != nil {
		return dbErr("touch graph", err)
	}
	return nil
}
