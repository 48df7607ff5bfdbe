package graph

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Graph is a named node/edge collection owned by exactly one user.
// NodeCount and EdgeCount are denormalized and kept in lockstep with the
// live row counts by the service layer.
type Graph struct {
	bun.BaseModel `bun:"table:graphs,alias:g"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description *string   `bun:"description" json:"description,omitempty"`
	UserID      uuid.UUID `bun:"user_id,type:uuid,notnull" json:"user_id"`

	// MirrorGraphID keys this graph's data in the secondary graph store.
	// Assigned once at creation, never exposed to clients.
	MirrorGraphID string `bun:"mirror_graph_id" json:"-"`

	NodeCount int `bun:"node_count,notnull,default:0" json:"-"`
	EdgeCount int `bun:"edge_count,notnull,default:0" json:"-"`

	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// Node is a vertex in a graph. The storage primary key (ID) exists only for
// the relational layer; every external reference uses NodeID, the business
// identifier, which is unique within its graph.
type Node struct {
	bun.BaseModel `bun:"table:nodes,alias:n"`

	ID      uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"-"`
	GraphID uuid.UUID `bun:"graph_id,type:uuid,notnull" json:"-"`

	NodeID     string         `bun:"node_id,notnull" json:"id"`
	Label      string         `bun:"label,notnull,default:''" json:"label"`
	Type       string         `bun:"type,notnull,default:'entity'" json:"type"`
	Properties map[string]any `bun:"properties,type:jsonb,notnull,default:'{}'" json:"properties"`
	X          *float64       `bun:"x" json:"x,omitempty"`
	Y          *float64       `bun:"y" json:"y,omitempty"`
	Size       *float64       `bun:"size" json:"size,omitempty"`
	Color      *string        `bun:"color" json:"color,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"-"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:now()" json:"-"`
}

// Edge connects two nodes of the same graph by their business identifiers.
// The endpoints are weak references: existence is validated by the service
// at write time, not by a database foreign key.
type Edge struct {
	bun.BaseModel `bun:"table:edges,alias:e"`

	ID      uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"-"`
	GraphID uuid.UUID `bun:"graph_id,type:uuid,notnull" json:"-"`

	EdgeID       string         `bun:"edge_id,notnull" json:"id"`
	SourceNodeID string         `bun:"source_node_id,notnull" json:"source"`
	TargetNodeID string         `bun:"target_node_id,notnull" json:"target"`
	Label        *string        `bun:"label" json:"label,omitempty"`
	Type         string         `bun:"type,notnull,default:'relationship'" json:"type"`
	Properties   map[string]any `bun:"properties,type:jsonb,notnull,default:'{}'" json:"properties"`
	Weight       *float64       `bun:"weight" json:"weight,omitempty"`
	Color        *string        `bun:"color" json:"color,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"-"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:now()" json:"-"`
}

// DefaultNodeType is assigned to nodes created without an explicit type.
const DefaultNodeType = "entity"

// DefaultEdgeType is assigned to edges created without an explicit type.
const DefaultEdgeType = "relationship"
