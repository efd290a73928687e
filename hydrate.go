package tytx

import (
	"fmt"
	"strings"
)

// Hydrate applies the struct registered under code (locals first, then the
// registry) to data. data is a parsed JSON-like value: map[string]any,
// []any and scalars. An unknown code returns data unchanged.
func (r *Registry) Hydrate(data any, code string, locals Locals) (any, error) {
	s, ok := r.lookupStruct(strings.TrimPrefix(code, StructPrefix), locals)
	if !ok {
		return data, nil
	}
	return r.applySchema(data, s, locals, "")
}

// HydrateSchema applies an inline schema (any form accepted by ParseSchema).
func (r *Registry) HydrateSchema(data any, schema any, locals Locals) (any, error) {
	s, err := ParseSchema(schema)
	if err != nil {
		return nil, err
	}
	return r.applySchema(data, s, locals, "")
}

// HydrateText parses text as JSON and hydrates it with struct code.
func (r *Registry) HydrateText(text, code string, locals Locals) (any, error) {
	parsed, err := parseJSON(text)
	if err != nil {
		return nil, &Error{Code: CodeInvalidValue, Message: "payload is not JSON", Cause: err}
	}
	return r.Hydrate(parsed, code, locals)
}

func (r *Registry) applySchema(data any, s *Schema, locals Locals, path string) (any, error) {
	switch s.Kind {
	case SchemaMap:
		obj, ok := data.(map[string]any)
		if !ok {
			return nil, mismatch(path, "object", data)
		}
		return r.applyObject(obj, s, locals, path)
	case SchemaHomogeneous:
		return r.applyLeaves(data, s.Fields[0].Type, locals, path)
	case SchemaPositional, SchemaOrdered:
		if obj, ok := data.(map[string]any); ok && s.Named() {
			return r.applyObject(obj, s, locals, path)
		}
		arr, ok := data.([]any)
		if !ok {
			return nil, mismatch(path, "array", data)
		}
		if isBatch(arr, s) {
			out := make([]any, len(arr))
			for i, row := range arr {
				v, err := r.applyRow(row.([]any), s, locals, fmt.Sprintf("%s/%d", path, i))
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
			return out, nil
		}
		return r.applyRow(arr, s, locals, path)
	}
	return nil, newError(CodeSchemaInvalid, path, "unknown schema kind", s.Kind.String())
}

// isBatch reports whether arr is a list of rows for s: every element is an
// array and the first field does not itself expect an array.
func isBatch(arr []any, s *Schema) bool {
	if len(arr) == 0 || strings.HasPrefix(s.Fields[0].Type, ArrayPrefix) {
		return false
	}
	for _, e := range arr {
		if _, ok := e.([]any); !ok {
			return false
		}
	}
	return true
}

// applyObject types the keys declared by s; other keys pass through and
// declared keys missing from obj stay missing.
func (r *Registry) applyObject(obj map[string]any, s *Schema, locals Locals, path string) (any, error) {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		f, ok := s.Field(k)
		if !ok {
			out[k] = plainJSON(v)
			continue
		}
		tv, err := r.applyType(v, f.Type, locals, path+"/"+k)
		if err != nil {
			return nil, err
		}
		out[k] = tv
	}
	return out, nil
}

// applyRow maps element i to field i. Named ordered schemas produce an object
// keyed by field name; unnamed fields of such a schema are dropped.
func (r *Registry) applyRow(row []any, s *Schema, locals Locals, path string) (any, error) {
	n := len(s.Fields)
	if s.Named() {
		out := make(map[string]any, n)
		for i, f := range s.Fields {
			if i >= len(row) {
				break
			}
			if f.Name == "" {
				continue
			}
			v, err := r.applyType(row[i], f.Type, locals, path+"/"+f.Name)
			if err != nil {
				return nil, err
			}
			out[f.Name] = v
		}
		return out, nil
	}
	out := make([]any, len(row))
	for i, e := range row {
		if i >= n {
			out[i] = plainJSON(e)
			continue
		}
		v, err := r.applyType(e, s.Fields[i].Type, locals, fmt.Sprintf("%s/%d", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// applyLeaves applies code to every non-array value, recursing through
// nested arrays (matrices).
func (r *Registry) applyLeaves(data any, code string, locals Locals, path string) (any, error) {
	arr, ok := data.([]any)
	if !ok {
		return r.applyType(data, code, locals, path)
	}
	out := make([]any, len(arr))
	for i, e := range arr {
		v, err := r.applyLeaves(e, code, locals, fmt.Sprintf("%s/%d", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// applyArray handles "#CODE": struct element codes apply to each top-level
// element (a row may itself be an array), scalar codes to every leaf.
func (r *Registry) applyArray(arr []any, elem string, locals Locals, path string) (any, error) {
	if !strings.HasPrefix(elem, StructPrefix) {
		return r.applyLeaves(arr, elem, locals, path)
	}
	out := make([]any, len(arr))
	for i, e := range arr {
		v, err := r.applyType(e, elem, locals, fmt.Sprintf("%s/%d", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// applyType types one value with a field code.
func (r *Registry) applyType(v any, code string, locals Locals, path string) (any, error) {
	if v == nil || code == "" {
		return v, nil
	}
	switch {
	case strings.HasPrefix(code, ArrayPrefix):
		elem := code[1:]
		if s, ok := v.(string); ok {
			parsed, err := parseJSON(s)
			if err != nil {
				return nil, mismatch(path, "array", v)
			}
			v = parsed
		}
		arr, ok := v.([]any)
		if !ok {
			return nil, mismatch(path, "array", v)
		}
		if strings.HasPrefix(elem, StructPrefix) {
			if _, known := r.lookupStruct(elem[1:], locals); !known {
				return plainJSON(arr), nil
			}
		}
		return r.applyArray(arr, elem, locals, path)
	case strings.HasPrefix(code, StructPrefix):
		s, ok := r.lookupStruct(code[1:], locals)
		if !ok {
			return v, nil
		}
		if str, isStr := v.(string); isStr {
			parsed, err := parseJSON(str)
			if err != nil {
				return nil, mismatch(path, "object or array", v)
			}
			v = parsed
		}
		return r.applySchema(v, s, locals, path)
	}

	switch v.(type) {
	case []any, map[string]any:
		d, ok := r.Get(code)
		if !ok {
			return plainJSON(v), nil
		}
		switch d.Code {
		case CodeJSON:
			return plainJSON(v), nil
		case CodeTypedJSON:
			return r.decodeTree(v, locals, path)
		}
		return nil, mismatch(path, d.Code+" scalar", v)
	}
	text, ok := scalarText(v)
	if !ok {
		return v, nil
	}
	out, known, err := r.decodeExplicit(text, code, locals, path)
	if err != nil {
		return nil, err
	}
	if !known {
		return plainJSON(v), nil
	}
	return out, nil
}

func mismatch(path, want string, got any) error {
	return newError(CodeTypeMismatch, path, fmt.Sprintf("expected %s, got %s", want, jsonKind(got)), "")
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	if _, ok := scalarText(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
