package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeDataAliases(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantSource string
		wantTarget string
	}{
		{"canonical keys", `{"id":"e1","source":"a","target":"b"}`, "a", "b"},
		{"legacy from/to", `{"id":"e1","from":"a","to":"b"}`, "a", "b"},
		{"canonical wins over alias", `{"source":"a","from":"x","target":"b","to":"y"}`, "a", "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e EdgeData
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &e))
			assert.Equal(t, tt.wantSource, e.Source)
			assert.Equal(t, tt.wantTarget, e.Target)
		})
	}
}

func TestEdgeDataEncodesCanonicalKeys(t *testing.T) {
	e := EdgeData{ID: "e1", Source: "a", Target: "b", Type: "relationship", Properties: map[string]any{}}
	out, err := json.Marshal(e)
	require.NoError(t, err)

	assert.Contains(t, string(out), `"source":"a"`)
	assert.Contains(t, string(out), `"target":"b"`)
	assert.NotContains(t, string(out), `"from"`)
	assert.NotContains(t, string(out), `"to"`)
}

func TestGraphPayloadLinksAlias(t *testing.T) {
	var p GraphPayload
	require.NoError(t, json.Unmarshal([]byte(`{
		"nodes": [{"id":"a"},{"id":"b"}],
		"links": [{"source":"a","target":"b"}]
	}`), &p))

	require.Len(t, p.Edges, 1)
	assert.Equal(t, "a", p.Edges[0].Source)

	// edges wins when both keys are present
	p = GraphPayload{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"edges": [{"source":"a","target":"b"}],
		"links": [{"source":"x","target":"y"}]
	}`), &p))
	require.Len(t, p.Edges, 1)
	assert.Equal(t, "a", p.Edges[0].Source)
}

func TestUpdateGraphRequestHasContents(t *testing.T) {
	var req UpdateGraphRequest
	require.NoError(t, json.Unmarshal([]byte(`{"title":"t"}`), &req))
	assert.False(t, req.HasContents())

	req = UpdateGraphRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"nodes":[],"edges":[]}`), &req))
	assert.True(t, req.HasContents(), "explicit empty sets still replace contents")
}

func TestNodeToDataNilProperties(t *testing.T) {
	n := &Node{NodeID: "a", Label: "A", Type: DefaultNodeType}
	data := n.ToData()
	assert.NotNil(t, data.Properties)
	assert.Empty(t, data.Properties)
}

func TestCreateEdgeRequestEffectiveEndpoints(t *testing.T) {
	req := CreateEdgeRequest{SourceNodeID: "a", TargetNodeID: "b"}
	assert.Equal(t, "a", req.EffectiveSource())
	assert.Equal(t, "b", req.EffectiveTarget())

	req.Source = "x"
	req.Target = "y"
	assert.Equal(t, "x", req.EffectiveSource(), "primary field wins over alias")
	assert.Equal(t, "y", req.EffectiveTarget())
}
