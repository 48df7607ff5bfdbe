// Package files converts graphs between the canonical node-link model and
// the supported interchange formats, and serves import/export over HTTP.
package files

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ai4kg/server/domain/graph"
	"github.com/ai4kg/server/pkg/apperror"
)

// Format identifies a supported interchange format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatGEXF    Format = "gexf"
	FormatGraphML Format = "graphml"
)

// Codec translates between one format and the canonical node-link model.
// Decoding applies no defaults beyond alias resolution; the mutation engine
// owns validation and id generation.
type Codec interface {
	Format() Format
	ContentType() string
	Decode(r io.Reader) (*graph.GraphPayload, error)
	Encode(w io.Writer, nodes []graph.NodeData, edges []graph.EdgeData) error
}

var codecs = map[Format]Codec{
	FormatJSON:    jsonCodec{},
	FormatCSV:     csvCodec{},
	FormatGEXF:    gexfCodec{},
	FormatGraphML: graphmlCodec{},
}

// ParseFormat normalizes a format name or file extension.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	if _, ok := codecs[f]; !ok {
		return "", apperror.NewBadRequest(
			fmt.Sprintf("unsupported format '%s' (supported: json, csv, gexf, graphml)", s))
	}
	return f, nil
}

// FormatFromFilename derives the format from a file's extension.
func FormatFromFilename(name string) (Format, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", apperror.NewBadRequest("cannot determine format: filename has no extension")
	}
	return ParseFormat(ext)
}

// CodecFor returns the codec for a parsed format.
func CodecFor(f Format) Codec {
	return codecs[f]
}

// reservedNodeKeys are attribute names that map onto typed node fields
// instead of the property bag.
var reservedNodeKeys = map[string]struct{}{
	"id": {}, "label": {}, "type": {}, "x": {}, "y": {}, "size": {}, "color": {},
}

// reservedEdgeKeys are attribute names that map onto typed edge fields.
var reservedEdgeKeys = map[string]struct{}{
	"id": {}, "source": {}, "target": {}, "label": {}, "type": {}, "weight": {}, "color": {},
}

// stringifyProp renders a property value as a flat attribute string.
// Strings pass through; everything else round-trips through JSON.
func stringifyProp(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
