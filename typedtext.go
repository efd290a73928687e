package tytx

import (
	"fmt"
	"reflect"
	"strings"

	json "github.com/goccy/go-json"
)

// Locals are struct schemas scoped to one decode call. They take precedence
// over the registry and are never stored in it.
type Locals map[string]*Schema

// DecodeOption configures a single Decode call.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	code   string
	locals Locals
}

// WithCode decodes the whole text as the given code, skipping suffix parsing.
func WithCode(code string) DecodeOption { return func(c *decodeConfig) { c.code = code } }

// WithLocals makes struct lookups consult locals before the registry.
func WithLocals(locals Locals) DecodeOption { return func(c *decodeConfig) { c.locals = locals } }

// SplitSuffix splits text at its last "::". ok is false when there is none.
func SplitSuffix(text string) (value, suffix string, ok bool) {
	idx := strings.LastIndex(text, Separator)
	if idx < 0 {
		return text, "", false
	}
	return text[:idx], text[idx+len(Separator):], true
}

// Decode hydrates a typed-text value. Text with an unknown suffix (or an
// unknown explicit code) is returned unchanged. Text with no suffix is parsed
// as a bare JSON literal when it is one, and returned unchanged otherwise.
func (r *Registry) Decode(text string, opts ...DecodeOption) (any, error) {
	cfg := decodeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.code != "" {
		v, known, err := r.decodeExplicit(text, cfg.code, cfg.locals, "")
		if err != nil {
			return nil, err
		}
		if !known {
			return text, nil
		}
		return v, nil
	}
	return r.decode(text, cfg.locals, "")
}

// DecodeAs decodes text and asserts the result to T.
func DecodeAs[T any](r *Registry, text string, opts ...DecodeOption) (T, error) {
	var zero T
	v, err := r.Decode(text, opts...)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, newError(CodeTypeMismatch, "", fmt.Sprintf("decoded %T, want %T", v, zero), text)
	}
	return t, nil
}

func (r *Registry) decode(text string, locals Locals, path string) (any, error) {
	value, suffix, ok := SplitSuffix(text)
	if !ok {
		if text == "" {
			return text, nil
		}
		if v, err := parseJSON(text); err == nil {
			return plainJSON(v), nil
		}
		return text, nil
	}
	v, known, err := r.decodeExplicit(value, suffix, locals, path)
	if err != nil {
		return nil, err
	}
	if !known {
		return text, nil
	}
	return v, nil
}

// decodeExplicit applies code to value. known is false when the code (or the
// struct/extension it names) is not registered.
func (r *Registry) decodeExplicit(value, code string, locals Locals, path string) (any, bool, error) {
	switch {
	case code == "":
		return nil, false, nil
	case strings.HasPrefix(code, ArrayPrefix):
		elem := code[1:]
		if !r.knownSuffix(elem, locals) {
			return nil, false, nil
		}
		parsed, err := parseJSON(value)
		if err != nil {
			return nil, true, &Error{Code: CodeInvalidValue, Path: path, Message: "array payload is not JSON", Fragment: code, Cause: err}
		}
		arr, ok := parsed.([]any)
		if !ok {
			return nil, true, newError(CodeTypeMismatch, path, "expected a JSON array", code)
		}
		v, err := r.applyArray(arr, elem, locals, path)
		return v, true, err
	case strings.HasPrefix(code, StructPrefix):
		s, ok := r.lookupStruct(code[1:], locals)
		if !ok {
			return nil, false, nil
		}
		parsed, err := parseJSON(value)
		if err != nil {
			return nil, true, &Error{Code: CodeInvalidValue, Path: path, Message: "struct payload is not JSON", Fragment: code, Cause: err}
		}
		v, err := r.applySchema(parsed, s, locals, path)
		return v, true, err
	}
	d, ok := r.Get(code)
	if !ok {
		return nil, false, nil
	}
	if d.Code == CodeTypedJSON {
		parsed, err := parseJSON(value)
		if err != nil {
			return nil, true, &Error{Code: CodeInvalidValue, Path: path, Message: "typed JSON payload is not JSON", Fragment: code, Cause: err}
		}
		v, err := r.decodeTree(parsed, locals, path)
		return v, true, err
	}
	v, err := d.Parse(value)
	if err != nil {
		return nil, true, &Error{Code: CodeInvalidValue, Path: path, Message: "cannot parse as " + d.Code, Fragment: value, Cause: err}
	}
	return v, true, nil
}

// decodeTree walks a typed JSON composite: string leaves carrying a known
// suffix are decoded, everything else stays as it is (plain strings are never
// reinterpreted as JSON literals here).
func (r *Registry) decodeTree(v any, locals Locals, path string) (any, error) {
	switch t := v.(type) {
	case string:
		if _, suffix, ok := SplitSuffix(t); ok && r.knownSuffix(suffix, locals) {
			return r.decode(t, locals, path)
		}
		return t, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			d, err := r.decodeTree(e, locals, fmt.Sprintf("%s/%d", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			d, err := r.decodeTree(e, locals, path+"/"+k)
			if err != nil {
				return nil, err
			}
			out[k] = d
		}
		return out, nil
	}
	return plainJSON(v), nil
}

// Encode renders v as typed text. Strings are returned unchanged; nil becomes
// the JSON literal null; sequences go through the compact array codec; maps
// become a typed JSON composite (::J). A Go type with no descriptor falls back
// to fmt.Sprint with no suffix, or fails with ErrUnsupportedType when the
// registry was built WithStrictEncoding.
func (r *Registry) Encode(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "null", nil
	case string:
		return t, nil
	case json.RawMessage:
		return string(t) + Separator + CodeJSON, nil
	}
	if d, ok := r.ForValue(v); ok {
		return r.encodeScalar(d, v)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return r.EncodeArray(v)
	case reflect.Map:
		tree, err := r.typedTree(v)
		if err != nil {
			return "", err
		}
		js, err := marshalJSON(tree)
		if err != nil {
			return "", &Error{Code: CodeUnsupportedType, Message: "cannot render map", Cause: err}
		}
		return js + Separator + CodeTypedJSON, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return "null", nil
		}
		return r.Encode(rv.Elem().Interface())
	}
	return r.fallback(v)
}

func (r *Registry) encodeScalar(d *TypeDescriptor, v any) (string, error) {
	if d.Serialize == nil {
		return r.fallback(v)
	}
	s, err := d.Serialize(v)
	if err != nil {
		return "", err
	}
	return s + Separator + d.Code, nil
}

func (r *Registry) fallback(v any) (string, error) {
	if r.strict {
		return "", newError(CodeUnsupportedType, "", fmt.Sprintf("no type registered for %T", v), "")
	}
	return fmt.Sprint(v), nil
}

// typedTree converts v into a JSON-ready tree whose scalar leaves are typed
// text. Plain strings and nil stay untouched.
func (r *Registry) typedTree(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return t, nil
	}
	if d, ok := r.ForValue(v); ok {
		return r.encodeScalar(d, v)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			e, err := r.typedTree(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return r.fallback(v)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			e, err := r.typedTree(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = e
		}
		return out, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return r.typedTree(rv.Elem().Interface())
	}
	return r.fallback(v)
}

// TypedTree exposes the leaf-typing walk for format adapters that frame the
// container themselves (JSON, YAML, query strings).
func (r *Registry) TypedTree(v any) (any, error) { return r.typedTree(v) }

// DecodeTree is the inverse of TypedTree: every string leaf with a known
// suffix is decoded.
func (r *Registry) DecodeTree(v any, opts ...DecodeOption) (any, error) {
	cfg := decodeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return r.decodeTree(v, cfg.locals, "")
}
