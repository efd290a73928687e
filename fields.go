package tytx

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// CheckStruct validates hydrated data against the validate facets of struct
// code (locals first, then the registry). Objects are checked directly;
// arrays are checked element by element. Facets understood:
//
//	required            the field must be present and non-null
//	min, max            numeric bounds on numbers, rune-length bounds on strings
//	len                 exact rune length
//	pattern / reg       full-string regular expression
//	enum                "a|b|c" allowed values
//	rule                validation expression evaluated with Validate
//
// Unknown facets are ignored. A facet that cannot be interpreted (a non
// numeric min, a bad pattern) is a schema_invalid error.
//
// Rule names in a rule facet resolve like Validate: the sets given with
// WithValidations first, then the registry.
func (r *Registry) CheckStruct(data any, code string, locals Locals, opts ...CheckOption) (Issues, error) {
	code = strings.TrimPrefix(code, StructPrefix)
	s, ok := r.lookupStruct(code, locals)
	if !ok {
		return nil, newError(CodeSchemaInvalid, "", "struct is not defined", code)
	}
	fields := s.Fields
	if _, local := locals[code]; !local {
		fields = r.withMetadata(code, s)
	}
	return r.checkValue(data, fields, "", newCheckScope(opts))
}

// CheckOption configures CheckStruct and CheckFields.
type CheckOption func(*checkScope)

type checkScope struct {
	local, global ValidationSet
}

// WithValidations makes rule facets resolve names in local, then global,
// then the registry. Envelope validation sets are passed this way.
func WithValidations(local, global ValidationSet) CheckOption {
	return func(c *checkScope) { c.local, c.global = local, global }
}

func newCheckScope(opts []CheckOption) checkScope {
	var c checkScope
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// withMetadata returns the fields of s with the facets stored in the
// registry for code, which include metadata given at registration.
func (r *Registry) withMetadata(code string, s *Schema) []FieldDef {
	meta := r.StructMetadata(code)
	if len(meta) == 0 {
		return s.Fields
	}
	out := make([]FieldDef, len(s.Fields))
	copy(out, s.Fields)
	for i, f := range out {
		if m, ok := meta[f.Name]; ok && f.Name != "" {
			out[i].Validate, out[i].UI = m.Validate, m.UI
		}
	}
	return out
}

func (r *Registry) checkValue(data any, fields []FieldDef, path string, scope checkScope) (Issues, error) {
	switch t := data.(type) {
	case map[string]any:
		return r.checkFields(t, fields, path, scope)
	case []any:
		var out Issues
		for i, e := range t {
			iss, err := r.checkValue(e, fields, fmt.Sprintf("%s/%d", path, i), scope)
			if err != nil {
				return nil, err
			}
			out = append(out, iss...)
		}
		return out, nil
	}
	return nil, mismatch(path, "object or array", data)
}

// CheckFields applies the validate facets of fields to obj. Paths in the
// returned issues are prefixed with base.
func (r *Registry) CheckFields(obj map[string]any, fields []FieldDef, base string, opts ...CheckOption) (Issues, error) {
	return r.checkFields(obj, fields, base, newCheckScope(opts))
}

func (r *Registry) checkFields(obj map[string]any, fields []FieldDef, base string, scope checkScope) (Issues, error) {
	var out Issues
	for _, f := range fields {
		if f.Name == "" || len(f.Validate) == 0 {
			continue
		}
		path := base + "/" + f.Name
		v, present := obj[f.Name]
		if !present || v == nil {
			if f.Validate["required"] == "true" {
				out = append(out, r.fieldIssue(f.Name, CodeRequired, path, nil))
			}
			continue
		}
		iss, err := r.checkFacets(v, f, path, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, iss...)
	}
	return out, nil
}

func (r *Registry) checkFacets(v any, f FieldDef, path string, scope checkScope) (Issues, error) {
	var out Issues
	num, isNum := numericValue(v)
	str, isStr := v.(string)
	facets := f.Validate

	if isStr {
		n := utf8.RuneCountInString(str)
		if want, ok := facets["len"]; ok {
			l, err := facetInt("len", want)
			if err != nil {
				return nil, withPath(err, path)
			}
			if n != *l {
				out = append(out, r.fieldIssue(f.Name, CodeWrongLength, path, map[string]string{"len": want}))
			}
		}
		for _, key := range []string{"min", "max"} {
			want, ok := facets[key]
			if !ok {
				continue
			}
			l, err := facetInt(key, want)
			if err != nil {
				return nil, withPath(err, path)
			}
			if key == "min" && n < *l {
				out = append(out, r.fieldIssue(f.Name, CodeTooShort, path, map[string]string{"min": want}))
			}
			if key == "max" && n > *l {
				out = append(out, r.fieldIssue(f.Name, CodeTooLong, path, map[string]string{"max": want}))
			}
		}
	}
	if isNum {
		for _, key := range []string{"min", "max"} {
			want, ok := facets[key]
			if !ok {
				continue
			}
			bound, err := decimal.NewFromString(strings.TrimSpace(want))
			if err != nil {
				return nil, newError(CodeSchemaInvalid, path, key+" must be a number", want)
			}
			if key == "min" && num.LessThan(bound) {
				out = append(out, r.fieldIssue(f.Name, CodeTooSmall, path, map[string]string{"min": want}))
			}
			if key == "max" && num.GreaterThan(bound) {
				out = append(out, r.fieldIssue(f.Name, CodeTooBig, path, map[string]string{"max": want}))
			}
		}
	}

	text, hasText := r.fieldText(v)
	pattern := facets["pattern"]
	if pattern == "" {
		pattern = facets["reg"]
	}
	if pattern != "" && hasText {
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			return nil, &Error{Code: CodeSchemaInvalid, Path: path, Message: "invalid pattern", Fragment: pattern, Cause: err}
		}
		if !re.MatchString(text) {
			out = append(out, r.fieldIssue(f.Name, CodePattern, path, map[string]string{"pattern": pattern}))
		}
	}
	if enum, ok := facets["enum"]; ok && hasText {
		allowed := strings.Split(enum, "|")
		found := false
		for _, a := range allowed {
			if strings.TrimSpace(a) == text {
				found = true
				break
			}
		}
		if !found {
			out = append(out, r.fieldIssue(f.Name, CodeInvalidEnum, path, map[string]string{"enum": strings.Join(allowed, ", ")}))
		}
	}
	if expr, ok := facets["rule"]; ok && hasText {
		iss, err := r.Check(text, expr, scope.local, scope.global)
		if err != nil {
			return nil, withPath(err, path)
		}
		for _, is := range iss {
			is.Path = path
			out = append(out, is)
		}
	}
	return out, nil
}

func (r *Registry) fieldIssue(field, code, path string, data map[string]string) Issue {
	params := make(map[string]any, len(data))
	for k, v := range data {
		params[k] = v
	}
	return Issue{Rule: field, Code: code, Message: r.message(code, data), Path: path, Params: params}
}

// numericValue converts the numeric values hydration produces.
func numericValue(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case int64:
		return decimal.NewFromInt(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case float64:
		return decimal.NewFromFloat(t), true
	}
	return decimal.Decimal{}, false
}

// fieldText is the text patterns and enums are matched against: strings as
// they are, other scalars in their typed-text serialization.
func (r *Registry) fieldText(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	if d, ok := r.ForValue(v); ok && d.Serialize != nil {
		s, err := d.Serialize(v)
		return s, err == nil
	}
	return scalarText(v)
}
