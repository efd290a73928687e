package tytx

import (
	"fmt"
	"sort"
	"strings"
)

// Transport prefixes. Both are optional on input.
const (
	DataPrefix     = "TYTX://"
	EnvelopePrefix = "XTYTX://"
)

// Envelope is a self-describing payload: struct and validation definitions
// travelling with the data they describe.
type Envelope struct {
	GStruct     map[string]any `json:"gstruct"`
	LStruct     map[string]any `json:"lstruct"`
	GValidation map[string]any `json:"gvalidation,omitempty"`
	LValidation map[string]any `json:"lvalidation,omitempty"`
	Data        string         `json:"data"`
}

// EnvelopeResult is the outcome of processing an envelope. The validation
// sets are handed back for later Validate/Check calls; the local one was
// never stored anywhere.
type EnvelopeResult struct {
	Data              any
	GlobalValidations ValidationSet
	LocalValidations  ValidationSet
	// LocalStructs are the lstruct schemas, for CheckStruct on Data.
	LocalStructs Locals
}

// StripPrefix removes a leading transport prefix from s.
func StripPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// ProcessEnvelope applies an envelope object: gstruct and gvalidation are
// installed in the registry (overwriting), lstruct only scopes this decode,
// then data is decoded with local structs taking precedence.
//
// gstruct, lstruct and data must all be present. Every definition is parsed
// and data is decoded before anything is registered, so a malformed envelope
// changes nothing. data sees the scope it would see after installation:
// lstruct, then gstruct, then the registry.
func (r *Registry) ProcessEnvelope(env map[string]any) (*EnvelopeResult, error) {
	for _, k := range []string{"gstruct", "lstruct", "data"} {
		if _, ok := env[k]; !ok {
			return nil, newError(CodeMissingField, "/"+k, "envelope field is required", k)
		}
	}
	gstruct, err := parseSchemaSet(env["gstruct"], "/gstruct")
	if err != nil {
		return nil, err
	}
	lstruct, err := parseSchemaSet(env["lstruct"], "/lstruct")
	if err != nil {
		return nil, err
	}
	gval, err := ParseValidationSet(env["gvalidation"])
	if err != nil {
		return nil, withPath(err, "/gvalidation")
	}
	for name := range gval {
		if err := checkRuleName(name); err != nil {
			return nil, withPath(err, "/gvalidation")
		}
	}
	lval, err := ParseValidationSet(env["lvalidation"])
	if err != nil {
		return nil, withPath(err, "/lvalidation")
	}

	scope := make(Locals, len(gstruct)+len(lstruct))
	for code, s := range gstruct {
		scope[code] = s
	}
	for code, s := range lstruct {
		scope[code] = s
	}
	data, err := r.envelopeData(env["data"], scope)
	if err != nil {
		return nil, err
	}

	for _, code := range sortedKeys(gstruct) {
		if err := r.RegisterStruct(code, gstruct[code]); err != nil {
			return nil, withPath(err, "/gstruct/"+code)
		}
	}
	if len(gval) > 0 {
		if err := r.RegisterValidations(gval); err != nil {
			return nil, withPath(err, "/gvalidation")
		}
	}
	r.log.Debug().
		Int("gstruct", len(gstruct)).
		Int("lstruct", len(lstruct)).
		Int("gvalidation", len(gval)).
		Int("lvalidation", len(lval)).
		Msg("envelope processed")

	return &EnvelopeResult{
		Data:              data,
		GlobalValidations: gval,
		LocalValidations:  lval,
		LocalStructs:      Locals(lstruct),
	}, nil
}

func (r *Registry) envelopeData(raw any, locals Locals) (any, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		text, prefixed := StripPrefix(t, DataPrefix)
		if text == "" {
			return nil, nil
		}
		if prefixed {
			return r.decodeDocument(text, locals, "/data")
		}
		return r.decode(text, locals, "/data")
	case map[string]any, []any:
		// already-parsed JSON: type the string leaves only
		return r.decodeTree(t, locals, "/data")
	}
	return nil, newError(CodeTypeMismatch, "/data", fmt.Sprintf("envelope data must be a string, got %s", jsonKind(raw)), "")
}

// decodeDocument decodes a TYTX:// payload: typed text as a whole when its
// top-level suffix is known, otherwise a JSON document whose string leaves
// are typed text.
func (r *Registry) decodeDocument(text string, locals Locals, path string) (any, error) {
	if _, suffix, ok := SplitSuffix(text); ok && r.knownSuffix(suffix, locals) {
		return r.decode(text, locals, path)
	}
	if parsed, err := parseJSON(text); err == nil {
		return r.decodeTree(parsed, locals, path)
	}
	return r.decode(text, locals, path)
}

// ProcessEnvelopeText parses a JSON envelope, optionally prefixed with
// XTYTX://, and processes it.
func (r *Registry) ProcessEnvelopeText(text string) (*EnvelopeResult, error) {
	body, _ := StripPrefix(strings.TrimSpace(text), EnvelopePrefix)
	parsed, err := parseJSON(body)
	if err != nil {
		return nil, &Error{Code: CodeInvalidValue, Message: "envelope is not JSON", Cause: err}
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, newError(CodeTypeMismatch, "", "envelope must be a JSON object, got "+jsonKind(parsed), "")
	}
	return r.ProcessEnvelope(obj)
}

// EncodeEnvelope renders value as an XTYTX:// envelope carrying the given
// definitions. Struct schemas may be *Schema or any ParseSchema form;
// nil maps are written as empty objects.
func (r *Registry) EncodeEnvelope(value any, gstruct, lstruct map[string]any, gval, lval ValidationSet) (string, error) {
	data := ""
	if value != nil {
		enc, err := r.Encode(value)
		if err != nil {
			return "", err
		}
		data = DataPrefix + enc
	}
	out := Envelope{
		GStruct:     schemaDefs(gstruct),
		LStruct:     schemaDefs(lstruct),
		GValidation: validationDefs(gval),
		LValidation: validationDefs(lval),
		Data:        data,
	}
	js, err := marshalJSON(out)
	if err != nil {
		return "", &Error{Code: CodeUnsupportedType, Message: "cannot render envelope", Cause: err}
	}
	return EnvelopePrefix + js, nil
}

func parseSchemaSet(raw any, path string) (map[string]*Schema, error) {
	if raw == nil {
		return map[string]*Schema{}, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, newError(CodeTypeMismatch, path, "expected object, got "+jsonKind(raw), "")
	}
	out := make(map[string]*Schema, len(obj))
	for code, def := range obj {
		if err := checkStructCode(code); err != nil {
			return nil, withPath(err, path)
		}
		s, err := ParseSchema(def)
		if err != nil {
			return nil, withPath(err, path+"/"+code)
		}
		out[code] = s
	}
	return out, nil
}

func schemaDefs(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for code, def := range in {
		if s, ok := def.(*Schema); ok {
			out[code] = s.Def()
			continue
		}
		out[code] = def
	}
	return out
}

func validationDefs(set ValidationSet) map[string]any {
	if len(set) == 0 {
		return nil
	}
	out := make(map[string]any, len(set))
	for name, d := range set {
		out[name] = d.Def()
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
