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

// graphmlCodec handles GraphML documents. Key declarations give data
// entries their attribute names; reserved names map onto typed fields and
// the rest become string properties. Encoding flattens property bags, so a
// property keyed like a reserved name is dropped.
type graphmlCodec struct{}

func (graphmlCodec) Format() Format      { return FormatGraphML }
func (graphmlCodec) ContentType() string { return "application/xml" }

type graphmlDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	Xmlns   string       `xml:"xmlns,attr,omitempty"`
	Keys    []graphmlKey `xml:"key"`
	Graph   graphmlGraph `xml:"graph"`
}

type graphmlKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graphmlGraph struct {
	EdgeDefault string        `xml:"edgedefault,attr,omitempty"`
	Nodes       []graphmlNode `xml:"node"`
	Edges       []graphmlEdge `xml:"edge"`
}

type graphmlNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphmlData `xml:"data"`
}

type graphmlEdge struct {
	ID     string        `xml:"id,attr,omitempty"`
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphmlData `xml:"data"`
}

type graphmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

func (graphmlCodec) Decode(r io.Reader) (*graph.GraphPayload, error) {
	var doc graphmlDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, apperror.NewBadRequest(fmt.Sprintf("invalid GraphML document: %v", err))
	}

	names := map[string]string{}
	for _, k := range doc.Keys {
		name := k.AttrName
		if name == "" {
			name = k.ID
		}
		names[k.ID] = name
	}
	keyOf := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	payload := &graph.GraphPayload{
		Nodes: []graph.NodeData{},
		Edges: []graph.EdgeData{},
	}

	for _, gn := range doc.Graph.Nodes {
		node := graph.NodeData{
			ID:         gn.ID,
			Properties: map[string]any{},
		}
		for _, d := range gn.Data {
			key := keyOf(d.Key)
			switch key {
			case "label":
				node.Label = d.Value
			case "type":
				node.Type = d.Value
			case "x", "y", "size":
				f, err := strconv.ParseFloat(d.Value, 64)
				if err != nil {
					return nil, apperror.NewBadRequest(
						fmt.Sprintf("GraphML node '%s': invalid %s '%s'", gn.ID, key, d.Value))
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
				c := d.Value
				node.Color = &c
			default:
				node.Properties[key] = d.Value
			}
		}
		payload.Nodes = append(payload.Nodes, node)
	}

	for _, ge := range doc.Graph.Edges {
		edge := graph.EdgeData{
			ID:         ge.ID,
			Source:     ge.Source,
			Target:     ge.Target,
			Properties: map[string]any{},
		}
		for _, d := range ge.Data {
			key := keyOf(d.Key)
			switch key {
			case "label":
				label := d.Value
				edge.Label = &label
			case "type":
				edge.Type = d.Value
			case "weight":
				w, err := strconv.ParseFloat(d.Value, 64)
				if err != nil {
					return nil, apperror.NewBadRequest(
						fmt.Sprintf("GraphML edge '%s': invalid weight '%s'", ge.ID, d.Value))
				}
				edge.Weight = &w
			case "color":
				c := d.Value
				edge.Color = &c
			default:
				edge.Properties[key] = d.Value
			}
		}
		payload.Edges = append(payload.Edges, edge)
	}

	return payload, nil
}

func (graphmlCodec) Encode(w io.Writer, nodes []graph.NodeData, edges []graph.EdgeData) error {
	doc := graphmlDoc{
		Xmlns: "http://graphml.graphdrawing.org/xmlns",
		Graph: graphmlGraph{EdgeDefault: "directed"},
	}

	nodeKeys := map[string]struct{}{}
	edgeKeys := map[string]struct{}{}

	for _, n := range nodes {
		gn := graphmlNode{ID: n.ID}
		data := []graphmlData{}
		if n.Label != "" {
			data = append(data, graphmlData{Key: "n_label", Value: n.Label})
			nodeKeys["label"] = struct{}{}
		}
		if n.Type != "" {
			data = append(data, graphmlData{Key: "n_type", Value: n.Type})
			nodeKeys["type"] = struct{}{}
		}
		for key, f := range map[string]*float64{"x": n.X, "y": n.Y, "size": n.Size} {
			if f != nil {
				data = append(data, graphmlData{
					Key:   "n_" + key,
					Value: strconv.FormatFloat(*f, 'f', -1, 64),
				})
				nodeKeys[key] = struct{}{}
			}
		}
		if n.Color != nil {
			data = append(data, graphmlData{Key: "n_color", Value: *n.Color})
			nodeKeys["color"] = struct{}{}
		}
		for key, v := range n.Properties {
			if _, reserved := reservedNodeKeys[key]; reserved {
				continue
			}
			data = append(data, graphmlData{Key: "n_" + key, Value: stringifyProp(v)})
			nodeKeys[key] = struct{}{}
		}
		sortData(data)
		gn.Data = data
		doc.Graph.Nodes = append(doc.Graph.Nodes, gn)
	}

	for _, e := range edges {
		ge := graphmlEdge{ID: e.ID, Source: e.Source, Target: e.Target}
		data := []graphmlData{}
		if e.Label != nil {
			data = append(data, graphmlData{Key: "e_label", Value: *e.Label})
			edgeKeys["label"] = struct{}{}
		}
		if e.Type != "" {
			data = append(data, graphmlData{Key: "e_type", Value: e.Type})
			edgeKeys["type"] = struct{}{}
		}
		if e.Weight != nil {
			data = append(data, graphmlData{
				Key:   "e_weight",
				Value: strconv.FormatFloat(*e.Weight, 'f', -1, 64),
			})
			edgeKeys["weight"] = struct{}{}
		}
		if e.Color != nil {
			data = append(data, graphmlData{Key: "e_color", Value: *e.Color})
			edgeKeys["color"] = struct{}{}
		}
		for key, v := range e.Properties {
			if _, reserved := reservedEdgeKeys[key]; reserved {
				continue
			}
			data = append(data, graphmlData{Key: "e_" + key, Value: stringifyProp(v)})
			edgeKeys[key] = struct{}{}
		}
		sortData(data)
		ge.Data = data
		doc.Graph.Edges = append(doc.Graph.Edges, ge)
	}

	doc.Keys = append(declareKeys("node", "n_", nodeKeys), declareKeys("edge", "e_", edgeKeys)...)

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

func declareKeys(class, prefix string, keys map[string]struct{}) []graphmlKey {
	out := make([]graphmlKey, 0, len(keys))
	for key := range keys {
		out = append(out, graphmlKey{ID: prefix + key, For: class, AttrName: key, AttrType: "string"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortData(data []graphmlData) {
	sort.Slice(data, func(i, j int) bool { return data[i].Key < data[j].Key })
}
