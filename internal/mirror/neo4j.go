// Package mirror implements the secondary graph store on Neo4j. Every write
// here is best effort: the caller logs and discards failures, so this
// package only has to be honest about them.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/fx"

	"github.com/ai4kg/server/domain/graph"
	"github.com/ai4kg/server/internal/config"
	"github.com/ai4kg/server/pkg/logger"
)

// Module provides the graph.Mirror binding.
var Module = fx.Module("mirror",
	fx.Provide(NewMirror),
)

// Neo4jMirror shadows graphs as (:Node {id, graph_id}) vertices connected by
// [:EDGE {id, graph_id}] relationships. Free-form property bags are stored
// as a JSON string since Neo4j properties cannot nest.
type Neo4jMirror struct {
	driver neo4j.DriverWithContext
	log    *slog.Logger
}

var _ graph.Mirror = (*Neo4jMirror)(nil)

// NewMirror connects to Neo4j when configured. An unset or unreachable
// mirror degrades to the noop implementation rather than failing startup.
func NewMirror(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) graph.Mirror {
	log = log.With(logger.Scope("mirror"))

	if !cfg.Neo4j.IsConfigured() {
		log.Info("graph mirror not configured, mirroring disabled")
		return graph.NoopMirror{}
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4j.URI,
		neo4j.BasicAuth(cfg.Neo4j.Username, cfg.Neo4j.Password, ""),
	)
	if err != nil {
		log.Warn("graph mirror unavailable, mirroring disabled", logger.Error(err))
		return graph.NoopMirror{}
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing mirror driver")
			return driver.Close(ctx)
		},
	})

	log.Info("graph mirror connected", slog.String("uri", cfg.Neo4j.URI))
	return &Neo4jMirror{driver: driver, log: log}
}

// Enabled always reports true; a disabled mirror is a NoopMirror.
func (m *Neo4jMirror) Enabled() bool { return true }

func (m *Neo4jMirror) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return m.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
}

func (m *Neo4jMirror) readSession(ctx context.Context) neo4j.SessionWithContext {
	return m.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
}

// CreateGraph ensures the graph marker node exists.
func (m *Neo4jMirror) CreateGraph(ctx context.Context, mirrorID string) error {
	session := m.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.Run(ctx, `MERGE (g:Graph {id: $graphID})`, map[string]any{
		"graphID": mirrorID,
	})
	if err != nil {
		return fmt.Errorf("create mirror graph: %w", err)
	}
	return nil
}

// DeleteGraph removes the graph marker and everything keyed to it.
func (m *Neo4jMirror) DeleteGraph(ctx context.Context, mirrorID string) error {
	session := m.writeSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (n:Node {graph_id: $graphID})
		DETACH DELETE n
		WITH count(*) AS _
		MATCH (g:Graph {id: $graphID})
		DELETE g
	`
	_, err := session.Run(ctx, query, map[string]any{"graphID": mirrorID})
	if err != nil {
		return fmt.Errorf("delete mirror graph: %w", err)
	}
	return nil
}

// ReplaceGraph wipes the graph's mirror contents and loads the snapshot in
// two UNWIND batches.
func (m *Neo4jMirror) ReplaceGraph(ctx context.Context, mirrorID string, nodes []graph.NodeData, edges []graph.EdgeData) error {
	session := m.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MATCH (n:Node {graph_id: $graphID}) DETACH DELETE n`,
		map[string]any{"graphID": mirrorID},
	)
	if err != nil {
		return fmt.Errorf("clear mirror graph: %w", err)
	}

	if len(nodes) > 0 {
		nodeRows := make([]map[string]any, 0, len(nodes))
		for _, n := range nodes {
			row, err := nodeParams(n)
			if err != nil {
				return err
			}
			nodeRows = append(nodeRows, row)
		}
		query := `
			UNWIND $nodes AS node
			CREATE (n:Node {id: node.id, graph_id: $graphID})
			SET n.label = node.label, n.type = node.type, n.properties = node.properties,
			    n.x = node.x, n.y = node.y, n.size = node.size, n.color = node.color
		`
		if _, err := session.Run(ctx, query, map[string]any{"graphID": mirrorID, "nodes": nodeRows}); err != nil {
			return fmt.Errorf("load mirror nodes: %w", err)
		}
	}

	if len(edges) > 0 {
		edgeRows := make([]map[string]any, 0, len(edges))
		for _, e := range edges {
			row, err := edgeParams(e)
			if err != nil {
				return err
			}
			edgeRows = append(edgeRows, row)
		}
		query := `
			UNWIND $edges AS edge
			MATCH (a:Node {id: edge.source, graph_id: $graphID})
			MATCH (b:Node {id: edge.target, graph_id: $graphID})
			CREATE (a)-[r:EDGE {id: edge.id, graph_id: $graphID}]->(b)
			SET r.label = edge.label, r.type = edge.type, r.properties = edge.properties,
			    r.weight = edge.weight, r.color = edge.color
		`
		if _, err := session.Run(ctx, query, map[string]any{"graphID": mirrorID, "edges": edgeRows}); err != nil {
			return fmt.Errorf("load mirror edges: %w", err)
		}
	}

	return nil
}

// UpsertNode creates or refreshes one vertex.
func (m *Neo4jMirror) UpsertNode(ctx context.Context, mirrorID string, node graph.NodeData) error {
	session := m.writeSession(ctx)
	defer session.Close(ctx)

	row, err := nodeParams(node)
	if err != nil {
		return err
	}
	row["graphID"] = mirrorID

	query := `
		MERGE (n:Node {id: $id, graph_id: $graphID})
		SET n.label = $label, n.type = $type, n.properties = $properties,
		    n.x = $x, n.y = $y, n.size = $size, n.color = $color
	`
	if _, err := session.Run(ctx, query, row); err != nil {
		return fmt.Errorf("upsert mirror node: %w", err)
	}
	return nil
}

// DeleteNode removes a vertex with all its relationships.
func (m *Neo4jMirror) DeleteNode(ctx context.Context, mirrorID, nodeID string) error {
	session := m.writeSession(ctx)
	defer session.Close(ctx)

	query := `MATCH (n:Node {id: $id, graph_id: $graphID}) DETACH DELETE n`
	_, err := session.Run(ctx, query, map[string]any{"id": nodeID, "graphID": mirrorID})
	if err != nil {
		return fmt.Errorf("delete mirror node: %w", err)
	}
	return nil
}

// UpsertEdge creates or refreshes one relationship. A moved endpoint is
// handled by dropping any stale relationship carrying the same edge id.
func (m *Neo4jMirror) UpsertEdge(ctx context.Context, mirrorID string, edge graph.EdgeData) error {
	session := m.writeSession(ctx)
	defer session.Close(ctx)

	row, err := edgeParams(edge)
	if err != nil {
		return err
	}
	row["graphID"] = mirrorID

	query := `
		OPTIONAL MATCH ()-[stale:EDGE {id: $id, graph_id: $graphID}]->()
		DELETE stale
		WITH count(*) AS _
		MATCH (a:Node {id: $source, graph_id: $graphID})
		MATCH (b:Node {id: $target, graph_id: $graphID})
		CREATE (a)-[r:EDGE {id: $id, graph_id: $graphID}]->(b)
		SET r.label = $label, r.type = $type, r.properties = $properties,
		    r.weight = $weight, r.color = $color
	`
	if _, err := session.Run(ctx, query, row); err != nil {
		return fmt.Errorf("upsert mirror edge: %w", err)
	}
	return nil
}

// DeleteEdge removes one relationship.
func (m *Neo4jMirror) DeleteEdge(ctx context.Context, mirrorID, edgeID string) error {
	session := m.writeSession(ctx)
	defer session.Close(ctx)

	query := `MATCH ()-[r:EDGE {id: $id, graph_id: $graphID}]->() DELETE r`
	_, err := session.Run(ctx, query, map[string]any{"id": edgeID, "graphID": mirrorID})
	if err != nil {
		return fmt.Errorf("delete mirror edge: %w", err)
	}
	return nil
}

// ReadGraph returns the mirror's copy of a graph.
func (m *Neo4jMirror) ReadGraph(ctx context.Context, mirrorID string) ([]graph.NodeData, []graph.EdgeData, error) {
	session := m.readSession(ctx)
	defer session.Close(ctx)

	nodeQuery := `
		MATCH (n:Node {graph_id: $graphID})
		RETURN n.id AS id, n.label AS label, n.type AS type, n.properties AS properties,
		       n.x AS x, n.y AS y, n.size AS size, n.color AS color
	`
	result, err := session.Run(ctx, nodeQuery, map[string]any{"graphID": mirrorID})
	if err != nil {
		return nil, nil, fmt.Errorf("read mirror nodes: %w", err)
	}

	nodes := make([]graph.NodeData, 0)
	for result.Next(ctx) {
		record := result.Record()
		nodes = append(nodes, graph.NodeData{
			ID:         recordString(record, "id"),
			Label:      recordString(record, "label"),
			Type:       recordString(record, "type"),
			Properties: recordProps(record),
			X:          recordFloat(record, "x"),
			Y:          recordFloat(record, "y"),
			Size:       recordFloat(record, "size"),
			Color:      recordStringPtr(record, "color"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, nil, fmt.Errorf("read mirror nodes: %w", err)
	}

	edgeQuery := `
		MATCH (a:Node {graph_id: $graphID})-[r:EDGE {graph_id: $graphID}]->(b:Node)
		RETURN r.id AS id, a.id AS source, b.id AS target, r.label AS label,
		       r.type AS type, r.properties AS properties, r.weight AS weight, r.color AS color
	`
	result, err = session.Run(ctx, edgeQuery, map[string]any{"graphID": mirrorID})
	if err != nil {
		return nil, nil, fmt.Errorf("read mirror edges: %w", err)
	}

	edges := make([]graph.EdgeData, 0)
	for result.Next(ctx) {
		record := result.Record()
		edges = append(edges, graph.EdgeData{
			ID:         recordString(record, "id"),
			Source:     recordString(record, "source"),
			Target:     recordString(record, "target"),
			Label:      recordStringPtr(record, "label"),
			Type:       recordString(record, "type"),
			Properties: recordProps(record),
			Weight:     recordFloat(record, "weight"),
			Color:      recordStringPtr(record, "color"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, nil, fmt.Errorf("read mirror edges: %w", err)
	}

	return nodes, edges, nil
}

func nodeParams(n graph.NodeData) (map[string]any, error) {
	props, err := json.Marshal(n.Properties)
	if err != nil {
		return nil, fmt.Errorf("encode node properties: %w", err)
	}
	return map[string]any{
		"id":         n.ID,
		"label":      n.Label,
		"type":       n.Type,
		"properties": string(props),
		"x":          floatOrNil(n.X),
		"y":          floatOrNil(n.Y),
		"size":       floatOrNil(n.Size),
		"color":      stringOrNil(n.Color),
	}, nil
}

func edgeParams(e graph.EdgeData) (map[string]any, error) {
	props, err := json.Marshal(e.Properties)
	if err != nil {
		return nil, fmt.Errorf("encode edge properties: %w", err)
	}
	return map[string]any{
		"id":         e.ID,
		"source":     e.Source,
		"target":     e.Target,
		"label":      stringOrNil(e.Label),
		"type":       e.Type,
		"properties": string(props),
		"weight":     floatOrNil(e.Weight),
		"color":      stringOrNil(e.Color),
	}, nil
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func recordString(record *neo4j.Record, key string) string {
	if v, ok := record.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func recordStringPtr(record *neo4j.Record, key string) *string {
	if v, ok := record.Get(key); ok {
		if s, ok := v.(string); ok {
			return &s
		}
	}
	return nil
}

func recordFloat(record *neo4j.Record, key string) *float64 {
	if v, ok := record.Get(key); ok {
		switch f := v.(type) {
		case float64:
			return &f
		case int64:
			val := float64(f)
			return &val
		}
	}
	return nil
}

func recordProps(record *neo4j.Record) map[string]any {
	props := map[string]any{}
	raw, ok := record.Get("properties")
	if !ok {
		return props
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return props
	}
	if err := json.Unmarshal([]byte(s), &props); err != nil {
		return map[string]any{}
	}
	return props
}
