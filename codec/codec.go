// Package codec decodes wire-format schema and document bytes into the
// generic trees the matcher consumes. JSON decoding is backed by
// goccy/go-json with UseNumber so numbers survive as json.Number; YAML schema
// documents are decoded with yaml.v3 and normalized to map[string]any trees.
package codec

import (
	"bytes"
	"fmt"
	"io"

	j "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// DecodeDocument decodes one JSON document into a generic tree.
func DecodeDocument(data []byte) (any, error) {
	return DecodeDocumentReader(bytes.NewReader(data))
}

// DecodeDocumentReader decodes one JSON document from r into a generic tree.
func DecodeDocumentReader(r io.Reader) (any, error) {
	dec := j.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("codec: decode document: %w", err)
	}
	return v, nil
}

// DecodeSchema decodes a JSON schema document into a generic tree.
func DecodeSchema(data []byte) (any, error) {
	v, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("codec: decode schema: %w", err)
	}
	return v, nil
}

// DecodeSchemaYAML decodes a YAML schema document into a generic tree
// equivalent to its JSON form.
func DecodeSchemaYAML(data []byte) (any, error) {
	var node any
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("codec: decode yaml schema: %w", err)
	}
	return normalizeYAML(node), nil
}

// EncodeDocument renders a generic tree back to JSON bytes.
func EncodeDocument(v any) ([]byte, error) {
	data, err := j.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode document: %w", err)
	}
	return data, nil
}

// normalizeYAML rewrites yaml.v3 output so container types line up with the
// JSON decoder's: map keys become strings, nested containers recurse.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}
