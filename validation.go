package tytx

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/genropy/genro-tytx-sub000/i18n"
)

var matchNothing = regexp.MustCompile(`[^\x00-\x{10FFFF}]`)

// ValidationDef is a named string constraint. Every constraint it carries
// must hold for the value to pass; lengths count runes and Pattern must
// match the whole string.
type ValidationDef struct {
	Pattern string
	Len     *int
	Min     *int
	Max     *int
	// Message replaces the translated issue message when set.
	Message string

	re *regexp.Regexp
}

// NewValidation builds a pattern-only validation.
func NewValidation(pattern string) (*ValidationDef, error) {
	return ParseValidation(map[string]any{"pattern": pattern})
}

// ParseValidation builds a ValidationDef from a wire definition: an object
// with pattern|reg, len|length, min, max and message|msg keys, a facet
// string with the same keys ("min:3,reg:\"[a-z]+\""), or a ValidationDef.
func ParseValidation(def any) (*ValidationDef, error) {
	switch t := def.(type) {
	case *ValidationDef:
		if t == nil {
			return nil, newError(CodeSchemaInvalid, "", "nil validation", "")
		}
		cp := *t
		return &cp, cp.compile()
	case ValidationDef:
		return &t, t.compile()
	case string:
		f, err := ParseFacets(t)
		if err != nil {
			return nil, err
		}
		return validationFromFacets(f)
	case Facets:
		return validationFromFacets(t)
	case map[string]string:
		return validationFromFacets(Facets(t))
	case map[string]any:
		f, err := toFacets(t)
		if err != nil {
			return nil, err
		}
		return validationFromFacets(f)
	}
	return nil, newError(CodeSchemaInvalid, "", fmt.Sprintf("unsupported validation definition %T", def), "")
}

func validationFromFacets(f Facets) (*ValidationDef, error) {
	d := &ValidationDef{}
	for k, v := range f {
		var err error
		switch strings.ToLower(k) {
		case "pattern", "reg", "regex":
			d.Pattern = v
		case "len", "length":
			d.Len, err = facetInt(k, v)
		case "min":
			d.Min, err = facetInt(k, v)
		case "max":
			d.Max, err = facetInt(k, v)
		case "message", "msg":
			d.Message = v
		default:
			return nil, newError(CodeSchemaInvalid, "", "unknown validation key", k)
		}
		if err != nil {
			return nil, err
		}
	}
	return d, d.compile()
}

func facetInt(key, v string) (*int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return nil, newError(CodeSchemaInvalid, "", key+" must be a non-negative integer", v)
	}
	return &n, nil
}

func (d *ValidationDef) compile() error {
	if d.Pattern == "" {
		d.re = nil
		return nil
	}
	re, err := regexp.Compile("^(?:" + d.Pattern + ")$")
	if err != nil {
		return &Error{Code: CodeSchemaInvalid, Message: "invalid validation pattern", Fragment: d.Pattern, Cause: err}
	}
	d.re = re
	return nil
}

// regexp returns the anchored pattern. Definitions built as literals are
// compiled on use; an invalid literal pattern matches nothing.
func (d *ValidationDef) regexp() *regexp.Regexp {
	if d.re != nil || d.Pattern == "" {
		return d.re
	}
	re, err := regexp.Compile("^(?:" + d.Pattern + ")$")
	if err != nil {
		return matchNothing
	}
	return re
}

// Test reports whether value satisfies every constraint of d.
func (d *ValidationDef) Test(value string) bool {
	return len(d.failures(value)) == 0
}

type failure struct {
	code string
	data map[string]string
}

func (d *ValidationDef) failures(value string) []failure {
	var out []failure
	n := utf8.RuneCountInString(value)
	if d.Len != nil && n != *d.Len {
		out = append(out, failure{CodeWrongLength, map[string]string{"len": strconv.Itoa(*d.Len)}})
	}
	if d.Min != nil && n < *d.Min {
		out = append(out, failure{CodeTooShort, map[string]string{"min": strconv.Itoa(*d.Min)}})
	}
	if d.Max != nil && n > *d.Max {
		out = append(out, failure{CodeTooLong, map[string]string{"max": strconv.Itoa(*d.Max)}})
	}
	if re := d.regexp(); re != nil && !re.MatchString(value) {
		out = append(out, failure{CodePattern, map[string]string{"pattern": d.Pattern}})
	}
	return out
}

// Def returns the wire definition of d.
func (d *ValidationDef) Def() map[string]any {
	out := map[string]any{}
	if d.Pattern != "" {
		out["pattern"] = d.Pattern
	}
	if d.Len != nil {
		out["len"] = *d.Len
	}
	if d.Min != nil {
		out["min"] = *d.Min
	}
	if d.Max != nil {
		out["max"] = *d.Max
	}
	if d.Message != "" {
		out["message"] = d.Message
	}
	return out
}

// ValidationSet maps rule names to definitions. Envelopes carry two of them
// (global and local); callers pass them to Validate and Check.
type ValidationSet map[string]*ValidationDef

// ParseValidationSet parses an object of name -> validation definition.
func ParseValidationSet(def any) (ValidationSet, error) {
	switch t := def.(type) {
	case nil:
		return ValidationSet{}, nil
	case ValidationSet:
		return t, nil
	case map[string]any:
		out := make(ValidationSet, len(t))
		for name, v := range t {
			d, err := ParseValidation(v)
			if err != nil {
				return nil, withPath(err, "/"+name)
			}
			out[name] = d
		}
		return out, nil
	case map[string]string:
		out := make(ValidationSet, len(t))
		for name, v := range t {
			d, err := ParseValidation(v)
			if err != nil {
				return nil, withPath(err, "/"+name)
			}
			out[name] = d
		}
		return out, nil
	}
	return nil, newError(CodeSchemaInvalid, "", fmt.Sprintf("unsupported validation set %T", def), "")
}

// RegisterValidation registers def (any form accepted by ParseValidation)
// under name, replacing any previous entry.
func (r *Registry) RegisterValidation(name string, def any) error {
	if err := checkRuleName(name); err != nil {
		return err
	}
	d, err := ParseValidation(def)
	if err != nil {
		return withPath(err, "/"+name)
	}
	r.mu.Lock()
	r.validations[name] = d
	r.mu.Unlock()
	r.log.Debug().Str("validation", name).Msg("validation registered")
	return nil
}

// RegisterValidations installs every entry of set. Names are checked before
// anything is stored, so a bad name installs nothing.
func (r *Registry) RegisterValidations(set ValidationSet) error {
	for name, d := range set {
		if err := checkRuleName(name); err != nil {
			return err
		}
		if d == nil {
			return newError(CodeSchemaInvalid, "/"+name, "nil validation", name)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, d := range set {
		r.validations[name] = d
	}
	r.log.Debug().Int("count", len(set)).Msg("validations registered")
	return nil
}

// UnregisterValidation removes name. It reports whether it was registered.
func (r *Registry) UnregisterValidation(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.validations[name]; !ok {
		return false
	}
	delete(r.validations, name)
	r.log.Debug().Str("validation", name).Msg("validation unregistered")
	return true
}

// Validation returns the definition registered under name.
func (r *Registry) Validation(name string) (*ValidationDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.validations[name]
	return d, ok
}

// Validations returns the registered rule names, sorted.
func (r *Registry) Validations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.validations))
	for k := range r.validations {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func checkRuleName(name string) error {
	if name == "" || !isRuleName(name) {
		return newError(CodeSchemaInvalid, "", "invalid validation name", name)
	}
	return nil
}

func isRuleName(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || c == '-' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return true
}

func (r *Registry) message(code string, data map[string]string) string {
	if r.tr != nil {
		return r.tr.Message(code, data)
	}
	return i18n.T(code, data)
}
