// Package yaml frames typed text inside YAML documents.
package yaml

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	tytx "github.com/genropy/genro-tytx-sub000"
)

// Marshal renders v as YAML with typed scalar leaves.
func Marshal(reg *tytx.Registry, v any) ([]byte, error) {
	tree, err := reg.TypedTree(v)
	if err != nil {
		return nil, err
	}
	b, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("marshal typed yaml: %w", err)
	}
	return b, nil
}

// Unmarshal parses YAML and decodes every typed string leaf. Untyped
// scalars keep the type YAML gave them.
func Unmarshal(reg *tytx.Registry, data []byte, opts ...tytx.DecodeOption) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if s, ok := v.(string); ok && reg.IsTyped(strings.TrimSpace(s)) {
		return reg.Decode(strings.TrimSpace(s), opts...)
	}
	return reg.DecodeTree(normalize(v), opts...)
}

// normalize converts YAML mappings with non-string keys into string-keyed
// maps and ints into int64, matching what the JSON side produces.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	case int:
		return int64(t)
	}
	return v
}
