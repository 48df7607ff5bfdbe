package files

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai4kg/server/domain/graph"
	"github.com/ai4kg/server/pkg/apperror"
)

func TestParseFormat(t *testing.T) {
	for _, raw := range []string{"json", ".csv", "GEXF", " graphml "} {
		f, err := ParseFormat(raw)
		require.NoError(t, err, raw)
		assert.NotNil(t, CodecFor(f))
	}

	_, err := ParseFormat("xlsx")
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestFormatFromFilename(t *testing.T) {
	f, err := FormatFromFilename("my graph.gexf")
	require.NoError(t, err)
	assert.Equal(t, FormatGEXF, f)

	_, err = FormatFromFilename("noextension")
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestJSONRoundTrip(t *testing.T) {
	weight := 0.5
	label := "self"
	in := []graph.NodeData{
		{ID: "a", Label: "A", Type: "entity", Properties: map[string]any{"k": "v"}},
	}
	edges := []graph.EdgeData{
		{ID: "loop", Source: "a", Target: "a", Type: "relationship",
			Label: &label, Weight: &weight, Properties: map[string]any{}},
	}

	var buf bytes.Buffer
	require.NoError(t, jsonCodec{}.Encode(&buf, in, edges))

	payload, err := jsonCodec{}.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, payload.Nodes, 1)
	require.Len(t, payload.Edges, 1)
	assert.Equal(t, "v", payload.Nodes[0].Properties["k"])
	assert.Equal(t, "a", payload.Edges[0].Source)
	assert.Equal(t, "a", payload.Edges[0].Target, "self loops survive the round trip")
	assert.Equal(t, 0.5, *payload.Edges[0].Weight)
}

func TestJSONDecodeLinksAlias(t *testing.T) {
	payload, err := jsonCodec{}.Decode(strings.NewReader(`{
		"nodes": [{"id":"a"},{"id":"b"}],
		"links": [{"from":"a","to":"b"}]
	}`))
	require.NoError(t, err)
	require.Len(t, payload.Edges, 1)
	assert.Equal(t, "a", payload.Edges[0].Source)
	assert.Equal(t, "b", payload.Edges[0].Target)

	_, err = jsonCodec{}.Decode(strings.NewReader(`{not json`))
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestCSVEdgeListDecode(t *testing.T) {
	payload, err := csvCodec{}.Decode(strings.NewReader("source,target\nA,B\nB,C\n"))
	require.NoError(t, err)

	require.Len(t, payload.Nodes, 3, "endpoint nodes are materialized once each")
	require.Len(t, payload.Edges, 2)
	for _, n := range payload.Nodes {
		assert.Equal(t, n.ID, n.Label)
		assert.Equal(t, graph.DefaultNodeType, n.Type)
	}
	assert.Equal(t, "A", payload.Edges[0].Source)
	assert.Equal(t, "B", payload.Edges[0].Target)
}

func TestCSVEdgeListExtras(t *testing.T) {
	payload, err := csvCodec{}.Decode(strings.NewReader(
		"from,to,weight,confidence\nA,B,0.9,high\n"))
	require.NoError(t, err)
	require.Len(t, payload.Edges, 1)

	e := payload.Edges[0]
	require.NotNil(t, e.Weight)
	assert.Equal(t, 0.9, *e.Weight)
	assert.Equal(t, "high", e.Properties["confidence"], "unreserved columns become properties")

	_, err = csvCodec{}.Decode(strings.NewReader("source,target,weight\nA,B,heavy\n"))
	assert.ErrorIs(t, err, apperror.ErrBadRequest, "unparsable weight names the row")
}

func TestCSVNodeListDecode(t *testing.T) {
	payload, err := csvCodec{}.Decode(strings.NewReader(
		"id,name,type,x,affiliation\nn1,Alice,person,1.5,acme\n"))
	require.NoError(t, err)
	require.Len(t, payload.Nodes, 1)
	assert.Empty(t, payload.Edges)

	n := payload.Nodes[0]
	assert.Equal(t, "Alice", n.Label, "name is a label alias")
	assert.Equal(t, "person", n.Type)
	require.NotNil(t, n.X)
	assert.Equal(t, 1.5, *n.X)
	assert.Equal(t, "acme", n.Properties["affiliation"])

	_, err = csvCodec{}.Decode(strings.NewReader("label,type\nAlice,person\n"))
	assert.ErrorIs(t, err, apperror.ErrBadRequest, "node lists need an id column")

	_, err = csvCodec{}.Decode(strings.NewReader(""))
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestCSVEncodeIsEdgeList(t *testing.T) {
	weight := 2.0
	nodes := []graph.NodeData{{ID: "a"}, {ID: "b"}, {ID: "isolated"}}
	edges := []graph.EdgeData{{ID: "e1", Source: "a", Target: "b", Type: "knows", Weight: &weight}}

	var buf bytes.Buffer
	require.NoError(t, csvCodec{}.Encode(&buf, nodes, edges))

	payload, err := csvCodec{}.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, payload.Edges, 1)
	assert.Equal(t, "knows", payload.Edges[0].Type)
	assert.Equal(t, 2.0, *payload.Edges[0].Weight)
	assert.Len(t, payload.Nodes, 2, "isolated nodes do not survive a CSV round trip")
}

func TestGEXFRoundTrip(t *testing.T) {
	x, size, weight := 10.5, 3.0, 0.25
	color := "#ff0000"
	label := "binds"
	nodes := []graph.NodeData{
		{ID: "a", Label: "Alpha", Type: "protein", X: &x, Size: &size,
			Color: &color, Properties: map[string]any{"organism": "human"}},
		{ID: "b", Label: "Beta", Type: "protein", Properties: map[string]any{}},
	}
	edges := []graph.EdgeData{
		{ID: "e1", Source: "a", Target: "b", Type: "interaction",
			Label: &label, Weight: &weight, Properties: map[string]any{"method": "y2h"}},
	}

	var buf bytes.Buffer
	require.NoError(t, gexfCodec{}.Encode(&buf, nodes, edges))
	assert.Contains(t, buf.String(), "gexf.net/1.2draft")

	payload, err := gexfCodec{}.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, payload.Nodes, 2)
	require.Len(t, payload.Edges, 1)

	n := payload.Nodes[0]
	assert.Equal(t, "Alpha", n.Label)
	assert.Equal(t, "protein", n.Type)
	assert.Equal(t, 10.5, *n.X)
	assert.Equal(t, 3.0, *n.Size)
	assert.Equal(t, "#ff0000", *n.Color)
	assert.Equal(t, "human", n.Properties["organism"])

	e := payload.Edges[0]
	assert.Equal(t, "binds", *e.Label)
	assert.Equal(t, 0.25, *e.Weight)
	assert.Equal(t, "interaction", e.Type)
	assert.Equal(t, "y2h", e.Properties["method"])
}

func TestGEXFDecodeBadNumber(t *testing.T) {
	_, err := gexfCodec{}.Decode(strings.NewReader(`<gexf><graph>
		<attributes class="node"><attribute id="0" title="x" type="float"/></attributes>
		<nodes><node id="a"><attvalues><attvalue for="0" value="wide"/></attvalues></node></nodes>
		<edges/>
	</graph></gexf>`))
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestGraphMLRoundTrip(t *testing.T) {
	weight := 1.5
	label := "cites"
	nodes := []graph.NodeData{
		{ID: "p1", Label: "Paper one", Type: "paper", Properties: map[string]any{"year": "2020"}},
		{ID: "p2", Label: "Paper two", Type: "paper", Properties: map[string]any{}},
	}
	edges := []graph.EdgeData{
		{ID: "c1", Source: "p1", Target: "p2", Type: "citation",
			Label: &label, Weight: &weight, Properties: map[string]any{}},
	}

	var buf bytes.Buffer
	require.NoError(t, graphmlCodec{}.Encode(&buf, nodes, edges))
	out := buf.String()
	assert.Contains(t, out, `id="n_label"`, "node and edge keys get distinct ids")
	assert.Contains(t, out, `id="e_label"`)

	payload, err := graphmlCodec{}.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, payload.Nodes, 2)
	require.Len(t, payload.Edges, 1)

	assert.Equal(t, "Paper one", payload.Nodes[0].Label)
	assert.Equal(t, "2020", payload.Nodes[0].Properties["year"])

	e := payload.Edges[0]
	assert.Equal(t, "cites", *e.Label)
	assert.Equal(t, 1.5, *e.Weight)
	assert.Equal(t, "citation", e.Type)
}

func TestGraphMLDecodeForeignKeyIDs(t *testing.T) {
	// Documents from other tools use opaque key ids; attr.name decides
	// where a value lands.
	payload, err := graphmlCodec{}.Decode(strings.NewReader(`
		<graphml xmlns="http://graphml.graphdrawing.org/xmlns">
			<key id="d0" for="node" attr.name="label" attr.type="string"/>
			<key id="d1" for="node" attr.name="degree" attr.type="string"/>
			<graph edgedefault="directed">
				<node id="a"><data key="d0">Alpha</data><data key="d1">3</data></node>
				<edge source="a" target="a"/>
			</graph>
		</graphml>`))
	require.NoError(t, err)
	require.Len(t, payload.Nodes, 1)
	assert.Equal(t, "Alpha", payload.Nodes[0].Label)
	assert.Equal(t, "3", payload.Nodes[0].Properties["degree"])
	require.Len(t, payload.Edges, 1)
	assert.Equal(t, "a", payload.Edges[0].Target)
}
