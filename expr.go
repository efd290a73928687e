package tytx

import (
	"strings"
)

// Expr is a parsed validation expression: an OR of AND-terms, each factor a
// rule name optionally negated with '!'. There is no grouping, so
// "a|b&c" reads as a OR (b AND c).
type Expr struct {
	src   string
	terms [][]exprFactor
}

type exprFactor struct {
	name string
	neg  bool
}

// ParseExpr parses expr. Whitespace around names and operators is ignored.
func ParseExpr(expr string) (*Expr, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, newError(CodeExpressionSyntax, "", "empty expression", expr)
	}
	e := &Expr{src: expr}
	for _, term := range strings.Split(expr, "|") {
		var factors []exprFactor
		for _, raw := range strings.Split(term, "&") {
			f, err := parseFactor(raw, expr)
			if err != nil {
				return nil, err
			}
			factors = append(factors, f)
		}
		e.terms = append(e.terms, factors)
	}
	return e, nil
}

func parseFactor(raw, expr string) (exprFactor, error) {
	s := strings.TrimSpace(raw)
	f := exprFactor{}
	if strings.HasPrefix(s, "!") {
		f.neg = true
		s = strings.TrimSpace(s[1:])
	}
	if s == "" {
		return f, newError(CodeExpressionSyntax, "", "missing rule name", expr)
	}
	if !isRuleName(s) {
		return f, newError(CodeExpressionSyntax, "", "invalid rule name", s)
	}
	f.name = s
	return f, nil
}

// String returns the source text of e.
func (e *Expr) String() string { return e.src }

// Names returns the rule names referenced by e, in order of first use.
func (e *Expr) Names() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, term := range e.terms {
		for _, f := range term {
			if _, ok := seen[f.name]; ok {
				continue
			}
			seen[f.name] = struct{}{}
			out = append(out, f.name)
		}
	}
	return out
}

// resolve binds every name of e through local, then global, then the
// registry. All names are bound before evaluation so an unknown name fails
// even when it sits in a branch that would be short-circuited.
func (r *Registry) resolve(e *Expr, local, global ValidationSet) (map[string]*ValidationDef, error) {
	out := make(map[string]*ValidationDef)
	for _, name := range e.Names() {
		if d, ok := local[name]; ok && d != nil {
			out[name] = d
			continue
		}
		if d, ok := global[name]; ok && d != nil {
			out[name] = d
			continue
		}
		if d, ok := r.Validation(name); ok {
			out[name] = d
			continue
		}
		return nil, newError(CodeUnknownValidation, "", "validation is not defined", name)
	}
	return out, nil
}

// Validate evaluates expr against value. Rule names resolve through local,
// then global, then the registry; the first match wins.
func (r *Registry) Validate(value, expr string, local, global ValidationSet) (bool, error) {
	e, err := ParseExpr(expr)
	if err != nil {
		return false, err
	}
	defs, err := r.resolve(e, local, global)
	if err != nil {
		return false, err
	}
	return e.eval(value, defs), nil
}

func (e *Expr) eval(value string, defs map[string]*ValidationDef) bool {
	for _, term := range e.terms {
		ok := true
		for _, f := range term {
			if defs[f.name].Test(value) == f.neg {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// Check is Validate reporting why the value failed: one issue per failing
// factor across all terms, with translated messages. A passing value yields
// no issues.
func (r *Registry) Check(value, expr string, local, global ValidationSet) (Issues, error) {
	e, err := ParseExpr(expr)
	if err != nil {
		return nil, err
	}
	defs, err := r.resolve(e, local, global)
	if err != nil {
		return nil, err
	}
	if e.eval(value, defs) {
		return nil, nil
	}
	var out Issues
	seen := map[exprFactor]struct{}{}
	for _, term := range e.terms {
		for _, f := range term {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, r.factorIssues(value, f, defs[f.name])...)
		}
	}
	return out, nil
}

func (r *Registry) factorIssues(value string, f exprFactor, d *ValidationDef) Issues {
	fails := d.failures(value)
	if f.neg {
		if len(fails) > 0 {
			return nil
		}
		data := map[string]string{"rule": f.name}
		return Issues{{Rule: f.name, Code: CodeForbidden, Message: r.message(CodeForbidden, data), Params: map[string]any{"rule": f.name}}}
	}
	out := make(Issues, 0, len(fails))
	for _, fl := range fails {
		msg := d.Message
		if msg == "" {
			msg = r.message(fl.code, fl.data)
		}
		params := make(map[string]any, len(fl.data))
		for k, v := range fl.data {
			params[k] = v
		}
		out = append(out, Issue{Rule: f.name, Code: fl.code, Message: msg, Params: params})
	}
	return out
}
