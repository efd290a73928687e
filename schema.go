package tytx

import (
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// SchemaKind selects how a struct schema hydrates its payload. It is fixed
// when the schema is parsed and never re-inspected during hydration.
type SchemaKind int

const (
	SchemaMap         SchemaKind = iota // {"name":"T","balance":"N"}
	SchemaPositional                    // ["T","L","N"]
	SchemaHomogeneous                   // ["N"]
	SchemaOrdered                       // "x:R,y:R" or "R,R"
)

func (k SchemaKind) String() string {
	switch k {
	case SchemaMap:
		return "map"
	case SchemaPositional:
		return "positional"
	case SchemaHomogeneous:
		return "homogeneous"
	case SchemaOrdered:
		return "ordered"
	}
	return fmt.Sprintf("SchemaKind(%d)", int(k))
}

// FieldDef is one field of a schema: a type code plus optional validation
// facets and UI hints. Positional and homogeneous fields have no name.
type FieldDef struct {
	Name     string
	Type     string
	Validate Facets
	UI       Facets
}

// Meta returns the field's metadata part.
func (f FieldDef) Meta() FieldMeta { return FieldMeta{Validate: f.Validate, UI: f.UI} }

// FieldMeta is the metadata attached to a struct field. It is stored in the
// registry by content hash.
type FieldMeta struct {
	Validate Facets `json:"validate,omitempty"`
	UI       Facets `json:"ui,omitempty"`
}

func (m FieldMeta) IsZero() bool { return len(m.Validate) == 0 && len(m.UI) == 0 }

// Hash returns the content address of m.
func (m FieldMeta) Hash() (string, error) { return metaHash(m) }

// Schema is a parsed struct shape. It is immutable once parsed.
type Schema struct {
	Kind   SchemaKind
	Fields []FieldDef

	index map[string]int // Map and named Ordered: field name -> position
	named bool           // Ordered: at least one field carries a name
	src   string         // Ordered: original string form
}

// Named reports whether hydration yields an object. Map schemas always do;
// ordered schemas do as soon as one field has a name.
func (s *Schema) Named() bool { return s.Kind == SchemaMap || (s.Kind == SchemaOrdered && s.named) }

// Field returns the field called name.
func (s *Schema) Field(name string) (FieldDef, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldDef{}, false
	}
	return s.Fields[i], true
}

// MapSchema builds a map schema from name -> type code.
func MapSchema(fields map[string]string) *Schema {
	defs := make([]FieldDef, 0, len(fields))
	for name, code := range fields {
		defs = append(defs, FieldDef{Name: name, Type: code})
	}
	return newMapSchema(defs)
}

func newMapSchema(defs []FieldDef) *Schema {
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	s := &Schema{Kind: SchemaMap, Fields: defs, index: make(map[string]int, len(defs))}
	for i, f := range defs {
		s.index[f.Name] = i
	}
	return s
}

// ListSchema builds a positional schema, or a homogeneous one when a single
// code is given.
func ListSchema(codes ...string) *Schema {
	defs := make([]FieldDef, len(codes))
	for i, c := range codes {
		defs[i] = FieldDef{Type: c}
	}
	if len(defs) == 1 {
		return &Schema{Kind: SchemaHomogeneous, Fields: defs}
	}
	return &Schema{Kind: SchemaPositional, Fields: defs}
}

// ParseSchema turns a schema definition into a Schema. Accepted forms:
//
//	map[string]any / map[string]string  map schema; values are type codes or
//	                                    field definitions {"type","validate","ui"}
//	[]any / []string                    positional (len > 1) or homogeneous (len 1)
//	string                              ordered schema "x:R,y:R" or "R,R"
//	*Schema / Schema                    returned as is
func ParseSchema(def any) (*Schema, error) {
	switch t := def.(type) {
	case *Schema:
		if t == nil {
			return nil, newError(CodeSchemaInvalid, "", "nil schema", "")
		}
		return t, nil
	case Schema:
		return &t, nil
	case map[string]string:
		return MapSchema(t), nil
	case map[string]any:
		defs := make([]FieldDef, 0, len(t))
		for name, fv := range t {
			f, err := parseFieldDef(name, fv)
			if err != nil {
				return nil, err
			}
			defs = append(defs, f)
		}
		return newMapSchema(defs), nil
	case []string:
		if len(t) == 0 {
			return nil, newError(CodeSchemaInvalid, "", "empty list schema", "")
		}
		return ListSchema(t...), nil
	case []any:
		if len(t) == 0 {
			return nil, newError(CodeSchemaInvalid, "", "empty list schema", "")
		}
		codes := make([]string, len(t))
		for i, e := range t {
			c, ok := e.(string)
			if !ok || strings.TrimSpace(c) == "" {
				return nil, newError(CodeSchemaInvalid, fmt.Sprintf("/%d", i), "list schema entries must be type codes", fmt.Sprint(e))
			}
			codes[i] = strings.TrimSpace(c)
		}
		return ListSchema(codes...), nil
	case string:
		return parseOrdered(t)
	case json.RawMessage:
		v, err := parseJSON(string(t))
		if err != nil {
			return nil, &Error{Code: CodeSchemaInvalid, Message: "schema is not valid JSON", Cause: err}
		}
		return ParseSchema(v)
	}
	return nil, newError(CodeSchemaInvalid, "", fmt.Sprintf("unsupported schema definition %T", def), "")
}

func parseOrdered(src string) (*Schema, error) {
	if strings.TrimSpace(src) == "" {
		return nil, newError(CodeSchemaInvalid, "", "empty ordered schema", src)
	}
	parts := strings.Split(src, ",")
	s := &Schema{Kind: SchemaOrdered, Fields: make([]FieldDef, 0, len(parts)), index: map[string]int{}, src: src}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		name, code, hasName := strings.Cut(part, ":")
		if !hasName {
			name, code = "", name
		}
		name, code = strings.TrimSpace(name), strings.TrimSpace(code)
		if code == "" || (hasName && name == "") {
			return nil, newError(CodeSchemaInvalid, "", "malformed ordered field", part)
		}
		if name != "" {
			s.named = true
			s.index[name] = len(s.Fields)
		}
		s.Fields = append(s.Fields, FieldDef{Name: name, Type: code})
	}
	return s, nil
}

func parseFieldDef(name string, v any) (FieldDef, error) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return FieldDef{}, newError(CodeSchemaInvalid, "/"+name, "empty type code", "")
		}
		return FieldDef{Name: name, Type: strings.TrimSpace(t)}, nil
	case FieldDef:
		t.Name = name
		return t, nil
	case map[string]any:
		code, _ := t["type"].(string)
		if strings.TrimSpace(code) == "" {
			return FieldDef{}, newError(CodeSchemaInvalid, "/"+name, "field definition needs a type", "")
		}
		f := FieldDef{Name: name, Type: strings.TrimSpace(code)}
		var err error
		if f.Validate, err = toFacets(t["validate"]); err != nil {
			return FieldDef{}, withPath(err, "/"+name+"/validate")
		}
		if f.UI, err = toFacets(t["ui"]); err != nil {
			return FieldDef{}, withPath(err, "/"+name+"/ui")
		}
		return f, nil
	}
	return FieldDef{}, newError(CodeSchemaInvalid, "/"+name, fmt.Sprintf("unsupported field definition %T", v), "")
}

// toFacets accepts a facet string or an object of scalar values. Arrays
// (enum lists) are joined with "|".
func toFacets(v any) (Facets, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case Facets:
		return t.Clone(), nil
	case string:
		f, err := ParseFacets(t)
		if err != nil || len(f) == 0 {
			return nil, err
		}
		return f, nil
	case map[string]string:
		return Facets(t).Clone(), nil
	case map[string]any:
		out := make(Facets, len(t))
		for k, e := range t {
			if list, ok := e.([]any); ok {
				parts := make([]string, len(list))
				for i, item := range list {
					text, ok := scalarText(item)
					if !ok {
						return nil, newError(CodeSchemaInvalid, fmt.Sprintf("/%s/%d", k, i), "facet list items must be scalars", fmt.Sprint(item))
					}
					parts[i] = text
				}
				out[k] = strings.Join(parts, "|")
				continue
			}
			s, ok := scalarText(e)
			if !ok {
				return nil, newError(CodeSchemaInvalid, "/"+k, "facet values must be scalars", fmt.Sprint(e))
			}
			out[k] = s
		}
		return out, nil
	}
	return nil, newError(CodeSchemaInvalid, "", fmt.Sprintf("unsupported facets %T", v), "")
}

func withPath(err error, path string) error {
	if e, ok := AsError(err); ok && e.Path == "" {
		cp := *e
		cp.Path = path
		return &cp
	}
	return err
}

// Def returns the wire definition of s (the form ParseSchema accepts).
func (s *Schema) Def() any {
	switch s.Kind {
	case SchemaMap:
		out := make(map[string]any, len(s.Fields))
		for _, f := range s.Fields {
			if f.Meta().IsZero() {
				out[f.Name] = f.Type
				continue
			}
			fd := map[string]any{"type": f.Type}
			if len(f.Validate) > 0 {
				fd["validate"] = map[string]string(f.Validate)
			}
			if len(f.UI) > 0 {
				fd["ui"] = map[string]string(f.UI)
			}
			out[f.Name] = fd
		}
		return out
	case SchemaOrdered:
		return s.src
	default:
		out := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			out[i] = f.Type
		}
		return out
	}
}

// MarshalJSON renders the wire definition, so schemas can be placed in envelopes.
func (s *Schema) MarshalJSON() ([]byte, error) { return json.Marshal(s.Def()) }
