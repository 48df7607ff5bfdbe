package files

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ai4kg/server/domain/graph"
	"github.com/ai4kg/server/pkg/apperror"
)

// jsonCodec handles the canonical node-link document. Decoding accepts the
// legacy aliases (links for edges, from/to for endpoints) through the
// payload's own unmarshaller; encoding always writes the canonical keys.
type jsonCodec struct{}

func (jsonCodec) Format() Format      { return FormatJSON }
func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Decode(r io.Reader) (*graph.GraphPayload, error) {
	var payload graph.GraphPayload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, apperror.NewBadRequest(fmt.Sprintf("invalid JSON document: %v", err))
	}
	return &payload, nil
}

func (jsonCodec) Encode(w io.Writer, nodes []graph.NodeData, edges []graph.EdgeData) error {
	if nodes == nil {
		nodes = []graph.NodeData{}
	}
	if edges == nil {
		edges = []graph.EdgeData{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(graph.GraphPayload{Nodes: nodes, Edges: edges})
}
