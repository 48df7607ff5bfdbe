package files

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/ai4kg/server/domain/graph"
	"github.com/ai4kg/server/pkg/apperror"
)

// gexfCodec handles GEXF 1.2 documents. Reserved attribute names map onto
// the typed node/edge fields; every other attvalue lands in the property
// bag as a string. Encoding flattens property bags onto attvalues, so a
// property whose key collides with a reserved name is dropped.
type gexfCodec struct{}

func (gexfCodec) Format() Format      { return FormatGEXF }
func (gexfCodec) ContentType() string { return "application/xml" }

type gexfDoc struct {
	XMLName xml.Name  `xml:"gexf"`
	Xmlns   string    `xml:"xmlns,attr,omitempty"`
	Version string    `xml:"version,attr,omitempty"`
	Graph   gexfGraph `xml:"graph"`
}

type gexfGraph struct {
	DefaultEdgeType string           `xml:"defaultedgetype,attr,omitempty"`
	Attributes      []gexfAttributes `xml:"attributes"`
	Nodes           gexfNodes        `xml:"nodes"`
	Edges           gexfEdges        `xml:"edges"`
}

type gexfAttributes struct {
	Class string     `xml:"class,attr"`
	Attrs []gexfAttr `xml:"attribute"`
}

type gexfAttr struct {
	ID    string `xml:"id,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type gexfNodes struct {
	Nodes []gexfNode `xml:"node"`
}

type gexfEdges struct {
	Edges []gexfEdge `xml:"edge"`
}

type gexfNode struct {
	ID        string         `xml:"id,attr"`
	Label     string         `xml:"label,attr,omitempty"`
	AttValues *gexfAttValues `xml:"attvalues,omitempty"`
}

type gexfEdge struct {
	ID        string         `xml:"id,attr,omitempty"`
	Source    string         `xml:"source,attr"`
	Target    string         `xml:"target,attr"`
	Label     string         `xml:"label,attr,omitempty"`
	Weight    string         `xml:"weight,attr,omitempty"`
	AttValues *gexfAttValues `xml:"attvalues,omitempty"`
}

type gexfAttValues struct {
	Values []gexfAttValue `xml:"attvalue"`
}

type gexfAttValue struct {
	For   string `xml:"for,attr"`
	Value string `xml:"value,attr"`
}

func (gexfCodec) Decode(r io.Reader) (*graph.GraphPayload, error) {
	var doc gexfDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, apperror.NewBadRequest(fmt.Sprintf("invalid GEXF document: %v", err))
	}

	// Attribute declarations map ids to titles; undeclared ids are used
	// verbatim as keys.
	titles := map[string]string{}
	for _, attrs := range doc.Graph.Attributes {
		for _, a := range attrs.Attrs {
			title := a.Title
			if title == "" {
				title = a.ID
			}
			titles[a.ID] = title
		}
	}
	keyOf := func(id string) string {
		if t, ok := titles[id]; ok {
			return t
		}
		return id
	}

	payload := &graph.GraphPayload{
		Nodes: []graph.NodeData{},
		Edges: []graph.EdgeData{},
	}

	for _, gn := range doc.Graph.Nodes.Nodes {
		node := graph.NodeData{
			ID:         gn.ID,
			Label:      gn.Label,
			Properties: map[string]any{},
		}
		if gn.AttValues != nil {
			for _, av := range gn.AttValues.Values {
				key := keyOf(av.For)
				switch key {
				case "type":
					node.Type = av.Value
				case "x", "y", "size":
					f, err := strconv.ParseFloat(av.Value, 64)
					if err != nil {
						return nil, apperror.NewBadRequest(
							fmt.Sprintf("GEXF node '%s': invalid %s '%s'", gn.ID, key, av.Value))
					}
					switch key {
					case "x":
						node.X = &f
					case "y":
						node.Y = &f
					case "size":
						node.Size = &f
					}
				case "color":
					c := av.Value
					node.Color = &c
				default:
					node.Properties[key] = av.Value
				}
			}
		}
		payload.Nodes = append(payload.Nodes, node)
	}

	for _, ge := range doc.Graph.Edges.Edges {
		edge := graph.EdgeData{
			ID:         ge.ID,
			Source:     ge.Source,
			Target:     ge.Target,
			Properties: map[string]any{},
		}
		if ge.Label != "" {
			label := ge.Label
			edge.Label = &label
		}
		if ge.Weight != "" {
			w, err := strconv.ParseFloat(ge.Weight, 64)
			if err != nil {
				return nil, apperror.NewBadRequest(
					fmt.Sprintf("GEXF edge '%s': invalid weight '%s'", ge.ID, ge.Weight))
			}
			edge.Weight = &w
		}
		if ge.AttValues != nil {
			for _, av := range ge.AttValues.Values {
				key := keyOf(av.For)
				switch key {
				case "type":
					edge.Type = av.Value
				case "color":
					c := av.Value
					edge.Color = &c
				default:
					edge.Properties[key] = av.Value
				}
			}
		}
		payload.Edges = append(payload.Edges, edge)
	}

	return payload, nil
}

func (gexfCodec) Encode(w io.Writer, nodes []graph.NodeData, edges []graph.EdgeData) error {
	doc := gexfDoc{
		Xmlns:   "http://www.gexf.net/1.2draft",
		Version: "1.2",
		Graph: gexfGraph{
			DefaultEdgeType: "directed",
		},
	}

	nodeKeys := map[string]struct{}{}
	edgeKeys := map[string]struct{}{}

	for _, n := range nodes {
		gn := gexfNode{ID: n.ID, Label: n.Label}
		values := []gexfAttValue{}
		if n.Type != "" {
			values = append(values, gexfAttValue{For: "type", Value: n.Type})
			nodeKeys["type"] = struct{}{}
		}
		for key, f := range map[string]*float64{"x": n.X, "y": n.Y, "size": n.Size} {
			if f != nil {
				values = append(values, gexfAttValue{
					For:   key,
					Value: strconv.FormatFloat(*f, 'f', -1, 64),
				})
				nodeKeys[key] = struct{}{}
			}
		}
		if n.Color != nil {
			values = append(values, gexfAttValue{For: "color", Value: *n.Color})
			nodeKeys["color"] = struct{}{}
		}
		for key, v := range n.Properties {
			if _, reserved := reservedNodeKeys[key]; reserved {
				continue
			}
			values = append(values, gexfAttValue{For: key, Value: stringifyProp(v)})
			nodeKeys[key] = struct{}{}
		}
		sortAttValues(values)
		if len(values) > 0 {
			gn.AttValues = &gexfAttValues{Values: values}
		}
		doc.Graph.Nodes.Nodes = append(doc.Graph.Nodes.Nodes, gn)
	}

	for _, e := range edges {
		ge := gexfEdge{ID: e.ID, Source: e.Source, Target: e.Target}
		if e.Label != nil {
			ge.Label = *e.Label
		}
		if e.Weight != nil {
			ge.Weight = strconv.FormatFloat(*e.Weight, 'f', -1, 64)
		}
		values := []gexfAttValue{}
		if e.Type != "" {
			values = append(values, gexfAttValue{For: "type", Value: e.Type})
			edgeKeys["type"] = struct{}{}
		}
		if e.Color != nil {
			values = append(values, gexfAttValue{For: "color", Value: *e.Color})
			edgeKeys["color"] = struct{}{}
		}
		for key, v := range e.Properties {
			if _, reserved := reservedEdgeKeys[key]; reserved {
				continue
			}
			values = append(values, gexfAttValue{For: key, Value: stringifyProp(v)})
			edgeKeys[key] = struct{}{}
		}
		sortAttValues(values)
		if len(values) > 0 {
			ge.AttValues = &gexfAttValues{Values: values}
		}
		doc.Graph.Edges.Edges = append(doc.Graph.Edges.Edges, ge)
	}

	doc.Graph.Attributes = []gexfAttributes{
		{Class: "node", Attrs: declareAttrs(nodeKeys)},
		{Class: "edge", Attrs: declareAttrs(edgeKeys)},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func declareAttrs(keys map[string]struct{}) []gexfAttr {
	attrs := make([]gexfAttr, 0, len(keys))
	for key := range keys {
		attrs = append(attrs, gexfAttr{ID: key, Title: key, Type: "string"})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].ID < attrs[j].ID })
	return attrs
}

func sortAttValues(values []gexfAttValue) {
	sort.Slice(values, func(i, j int) bool { return values[i].For < values[j].For })
}
