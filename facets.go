package tytx

import (
	"sort"
	"strings"
)

// Facets is a parsed constraint or hint string: "min:1,max:100,reg:\"[A-Z]{2}\"".
type Facets map[string]string

// ParseFacets parses a compact facet string. Values may be double- or
// single-quoted to carry commas, colons or spaces; inside quotes only \" (or
// \') and \\ are escapes, any other backslash is kept as written so regex
// patterns survive unchanged. A key with no value is a flag set to "true".
func ParseFacets(s string) (Facets, error) {
	out := Facets{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	p := &facetScanner{src: s}
	for {
		p.skipSpace()
		start := p.pos
		key := p.readKey()
		if key == "" {
			return nil, p.fail("missing facet name", start)
		}
		p.skipSpace()
		if p.eof() || p.peek() == ',' {
			out[key] = "true"
		} else if p.peek() == ':' {
			p.pos++
			p.skipSpace()
			val, err := p.readValue(start)
			if err != nil {
				return nil, err
			}
			out[key] = val
		} else {
			return nil, p.fail("expected ':' or ',' after facet name", start)
		}
		p.skipSpace()
		if p.eof() {
			return out, nil
		}
		if p.peek() != ',' {
			return nil, p.fail("expected ',' between facets", start)
		}
		p.pos++
		if strings.TrimSpace(p.src[p.pos:]) == "" {
			return nil, p.fail("trailing ','", start)
		}
	}
}

type facetScanner struct {
	src string
	pos int
}

func (p *facetScanner) eof() bool  { return p.pos >= len(p.src) }
func (p *facetScanner) peek() byte { return p.src[p.pos] }

func (p *facetScanner) skipSpace() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t' || p.peek() == '\n') {
		p.pos++
	}
}

func (p *facetScanner) readKey() string {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == '_' || c == '-' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *facetScanner) readValue(start int) (string, error) {
	if p.eof() {
		return "", p.fail("missing facet value", start)
	}
	if q := p.peek(); q == '"' || q == '\'' {
		p.pos++
		b := &strings.Builder{}
		for !p.eof() {
			c := p.peek()
			switch {
			case c == '\\' && p.pos+1 < len(p.src) && (p.src[p.pos+1] == q || p.src[p.pos+1] == '\\'):
				b.WriteByte(p.src[p.pos+1])
				p.pos += 2
			case c == q:
				p.pos++
				return b.String(), nil
			default:
				b.WriteByte(c)
				p.pos++
			}
		}
		return "", p.fail("unterminated quoted value", start)
	}
	vs := p.pos
	for !p.eof() && p.peek() != ',' {
		if c := p.peek(); c == '"' || c == '\'' {
			return "", p.fail("unbalanced quote in unquoted value", start)
		}
		p.pos++
	}
	val := strings.TrimSpace(p.src[vs:p.pos])
	if val == "" {
		return "", p.fail("missing facet value", start)
	}
	return val, nil
}

func (p *facetScanner) fail(msg string, start int) error {
	end := strings.IndexByte(p.src[min(p.pos, len(p.src)):], ',')
	frag := p.src[start:]
	if end >= 0 && p.pos+end > start {
		frag = p.src[start : p.pos+end]
	}
	return newError(CodeMetadataSyntax, "", msg, strings.TrimSpace(frag))
}

// FormatFacets renders f with keys sorted, quoting values that need it.
// ParseFacets(FormatFacets(f)) returns f.
func FormatFacets(f Facets) string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b := &strings.Builder{}
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		v := f[k]
		if needsQuote(v) {
			b.WriteByte('"')
			b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v))
			b.WriteByte('"')
		} else {
			b.WriteString(v)
		}
	}
	return b.String()
}

func needsQuote(v string) bool {
	return v == "" || v != strings.TrimSpace(v) || strings.ContainsAny(v, ",\"'\\:")
}

// Clone returns a copy of f.
func (f Facets) Clone() Facets {
	if f == nil {
		return nil
	}
	out := make(Facets, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
