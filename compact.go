package tytx

import (
	"reflect"
)

// untyped marks a leaf that cannot share a suffix: plain strings, nil,
// objects and values with no descriptor.
const untyped = ""

// EncodeArray is the compact array codec. When every leaf of seq (recursing
// through nested sequences) resolves to the same non-string code, the array
// is written once with a shared suffix: ["1","2","3"]::#L. Otherwise each
// element is tagged on its own inside a typed JSON composite (::J). An empty
// sequence is "[]" with no suffix.
func (r *Registry) EncodeArray(seq any) (string, error) {
	rv := reflect.ValueOf(seq)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return r.Encode(seq)
	}
	if rv.Len() == 0 {
		return "[]", nil
	}
	codes := map[string]struct{}{}
	r.collectLeafCodes(rv, codes)
	if len(codes) == 1 {
		for code := range codes {
			if code == untyped {
				break
			}
			tree, err := r.serializeLeaves(rv)
			if err != nil {
				return "", err
			}
			js, err := marshalJSON(tree)
			if err != nil {
				return "", &Error{Code: CodeUnsupportedType, Message: "cannot render array", Cause: err}
			}
			return js + Separator + ArrayPrefix + code, nil
		}
	}
	tree, err := r.typedTree(seq)
	if err != nil {
		return "", err
	}
	js, err := marshalJSON(tree)
	if err != nil {
		return "", &Error{Code: CodeUnsupportedType, Message: "cannot render array", Cause: err}
	}
	return js + Separator + CodeTypedJSON, nil
}

// LeafCode returns the single code shared by all leaves of seq, or "" when
// the leaves are mixed, untyped or absent.
func (r *Registry) LeafCode(seq any) string {
	rv := reflect.ValueOf(seq)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return untyped
	}
	codes := map[string]struct{}{}
	r.collectLeafCodes(rv, codes)
	if len(codes) != 1 {
		return untyped
	}
	for code := range codes {
		return code
	}
	return untyped
}

func (r *Registry) collectLeafCodes(rv reflect.Value, codes map[string]struct{}) {
	for i := 0; i < rv.Len(); i++ {
		e := rv.Index(i)
		for e.Kind() == reflect.Interface && !e.IsNil() {
			e = e.Elem()
		}
		if !e.IsValid() || (e.Kind() == reflect.Interface && e.IsNil()) {
			codes[untyped] = struct{}{}
			continue
		}
		v := e.Interface()
		d, ok := r.ForValue(v)
		if !ok && (e.Kind() == reflect.Slice || e.Kind() == reflect.Array) {
			r.collectLeafCodes(e, codes)
			continue
		}
		if !ok || d.Code == CodeText || d.Serialize == nil {
			codes[untyped] = struct{}{}
			continue
		}
		codes[d.Code] = struct{}{}
	}
}

func (r *Registry) serializeLeaves(rv reflect.Value) (any, error) {
	out := make([]any, rv.Len())
	for i := range out {
		e := rv.Index(i)
		for e.Kind() == reflect.Interface && !e.IsNil() {
			e = e.Elem()
		}
		v := e.Interface()
		d, ok := r.ForValue(v)
		if !ok {
			sub, err := r.serializeLeaves(e)
			if err != nil {
				return nil, err
			}
			out[i] = sub
			continue
		}
		s, err := d.Serialize(v)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
