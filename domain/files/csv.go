package files

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ai4kg/server/domain/graph"
	"github.com/ai4kg/server/pkg/apperror"
)

// csvCodec reads two CSV dialects and writes one.
//
// Decoding picks the mode from the header: a header containing both a
// source and a target column is an edge list, anything else is a node list.
// An edge list materializes its endpoint nodes automatically (id = label =
// cell value, type "entity"). Encoding always emits the edge list, so
// isolated nodes do not survive a CSV round trip.
type csvCodec struct{}

func (csvCodec) Format() Format      { return FormatCSV }
func (csvCodec) ContentType() string { return "text/csv" }

func (csvCodec) Decode(r io.Reader) (*graph.GraphPayload, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperror.NewBadRequest(fmt.Sprintf("invalid CSV document: %v", err))
	}
	if len(records) == 0 {
		return nil, apperror.NewBadRequest("CSV document is empty")
	}

	header := make([]string, len(records[0]))
	for i, col := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}
	rows := records[1:]

	if hasColumn(header, "source", "from") && hasColumn(header, "target", "to") {
		return decodeEdgeList(header, rows)
	}
	return decodeNodeList(header, rows)
}

func hasColumn(header []string, names ...string) bool {
	for _, col := range header {
		for _, name := range names {
			if col == name {
				return true
			}
		}
	}
	return false
}

func columnIndex(header []string, names ...string) int {
	for _, name := range names {
		for i, col := range header {
			if col == name {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func decodeEdgeList(header []string, rows [][]string) (*graph.GraphPayload, error) {
	srcIdx := columnIndex(header, "source", "from")
	tgtIdx := columnIndex(header, "target", "to")
	idIdx := columnIndex(header, "id")
	labelIdx := columnIndex(header, "label")
	typeIdx := columnIndex(header, "type")
	weightIdx := columnIndex(header, "weight")
	colorIdx := columnIndex(header, "color")

	payload := &graph.GraphPayload{
		Nodes: []graph.NodeData{},
		Edges: []graph.EdgeData{},
	}
	seenNodes := map[string]struct{}{}
	materialize := func(id string) {
		if _, ok := seenNodes[id]; ok {
			return
		}
		seenNodes[id] = struct{}{}
		payload.Nodes = append(payload.Nodes, graph.NodeData{
			ID:         id,
			Label:      id,
			Type:       graph.DefaultNodeType,
			Properties: map[string]any{},
		})
	}

	for i, row := range rows {
		source := cell(row, srcIdx)
		target := cell(row, tgtIdx)
		if source == "" || target == "" {
			return nil, apperror.NewBadRequest(
				fmt.Sprintf("CSV row %d: source and target are required", i+2))
		}
		materialize(source)
		materialize(target)

		edge := graph.EdgeData{
			ID:         cell(row, idIdx),
			Source:     source,
			Target:     target,
			Type:       cell(row, typeIdx),
			Properties: map[string]any{},
		}
		if label := cell(row, labelIdx); label != "" {
			edge.Label = &label
		}
		if raw := cell(row, weightIdx); raw != "" {
			w, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, apperror.NewBadRequest(
					fmt.Sprintf("CSV row %d: invalid weight '%s'", i+2, raw))
			}
			edge.Weight = &w
		}
		if color := cell(row, colorIdx); color != "" {
			edge.Color = &color
		}
		for j, col := range header {
			if _, reserved := reservedEdgeKeys[col]; reserved || col == "from" || col == "to" {
				continue
			}
			if v := cell(row, j); v != "" {
				edge.Properties[col] = v
			}
		}
		payload.Edges = append(payload.Edges, edge)
	}
	return payload, nil
}

func decodeNodeList(header []string, rows [][]string) (*graph.GraphPayload, error) {
	idIdx := columnIndex(header, "id")
	if idIdx < 0 {
		return nil, apperror.NewBadRequest("CSV node list requires an 'id' column")
	}
	labelIdx := columnIndex(header, "label", "name")
	typeIdx := columnIndex(header, "type")
	xIdx := columnIndex(header, "x")
	yIdx := columnIndex(header, "y")
	sizeIdx := columnIndex(header, "size")
	colorIdx := columnIndex(header, "color")

	payload := &graph.GraphPayload{
		Nodes: []graph.NodeData{},
		Edges: []graph.EdgeData{},
	}
	for i, row := range rows {
		id := cell(row, idIdx)
		if id == "" {
			return nil, apperror.NewBadRequest(fmt.Sprintf("CSV row %d: id is required", i+2))
		}
		node := graph.NodeData{
			ID:         id,
			Label:      cell(row, labelIdx),
			Type:       cell(row, typeIdx),
			Properties: map[string]any{},
		}
		for _, f := range []struct {
			idx  int
			dest **float64
		}{{xIdx, &node.X}, {yIdx, &node.Y}, {sizeIdx, &node.Size}} {
			if raw := cell(row, f.idx); raw != "" {
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return nil, apperror.NewBadRequest(
						fmt.Sprintf("CSV row %d: invalid number '%s'", i+2, raw))
				}
				*f.dest = &v
			}
		}
		if color := cell(row, colorIdx); color != "" {
			node.Color = &color
		}
		for j, col := range header {
			if _, reserved := reservedNodeKeys[col]; reserved || col == "name" {
				continue
			}
			if v := cell(row, j); v != "" {
				node.Properties[col] = v
			}
		}
		payload.Nodes = append(payload.Nodes, node)
	}
	return payload, nil
}

func (csvCodec) Encode(w io.Writer, nodes []graph.NodeData, edges []graph.EdgeData) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"source", "target", "id", "label", "type", "weight"}); err != nil {
		return err
	}
	for _, e := range edges {
		label := ""
		if e.Label != nil {
			label = *e.Label
		}
		weight := ""
		if e.Weight != nil {
			weight = strconv.FormatFloat(*e.Weight, 'f', -1, 64)
		}
		if err := writer.Write([]string{e.Source, e.Target, e.ID, label, e.Type, weight}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
