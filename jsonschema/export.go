package jsonschema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	tytx "github.com/genropy/genro-tytx-sub000"
)

// FromStruct exports the struct registered under code. The root document
// references it through $defs together with every struct it reaches.
func FromStruct(reg *tytx.Registry, code string) (*Schema, error) {
	code = strings.TrimPrefix(code, tytx.StructPrefix)
	if _, ok := reg.Struct(code); !ok {
		return nil, &tytx.Error{Code: tytx.CodeSchemaInvalid, Message: "struct is not defined", Fragment: code}
	}
	e := &exporter{reg: reg, defs: map[string]*Schema{}}
	ref, err := e.structRef(code)
	if err != nil {
		return nil, err
	}
	ref.Schema = Draft
	ref.Defs = e.defs
	return ref, nil
}

type exporter struct {
	reg  *tytx.Registry
	defs map[string]*Schema
}

// structRef returns a $ref to code, exporting it on first use. Unknown
// structs hydrate nothing and so accept anything.
func (e *exporter) structRef(code string) (*Schema, error) {
	ref := &Schema{Ref: "#/$defs/" + code}
	if _, done := e.defs[code]; done {
		return ref, nil
	}
	s, ok := e.reg.Struct(code)
	if !ok {
		return &Schema{}, nil
	}
	// placeholder first so recursive structs terminate
	def := &Schema{}
	e.defs[code] = def
	body, err := e.fromSchema(s, e.reg.StructMetadata(code))
	if err != nil {
		return nil, fmt.Errorf("struct %s: %w", code, err)
	}
	*def = *body
	return ref, nil
}

func (e *exporter) fromSchema(s *tytx.Schema, meta map[string]tytx.FieldMeta) (*Schema, error) {
	fields := make([]*Schema, len(s.Fields))
	for i, f := range s.Fields {
		if m, ok := meta[f.Name]; ok && f.Name != "" {
			f.Validate, f.UI = m.Validate, m.UI
		}
		fs, err := e.field(f)
		if err != nil {
			return nil, err
		}
		fields[i] = fs
	}

	switch s.Kind {
	case tytx.SchemaMap:
		return e.object(s, fields), nil
	case tytx.SchemaHomogeneous:
		return &Schema{Type: "array", Items: fields[0]}, nil
	}
	row := &Schema{Type: "array", PrefixItems: fields}
	out := &Schema{AnyOf: []*Schema{row, {Type: "array", Items: row}}}
	if s.Named() {
		out.AnyOf = append(out.AnyOf, e.object(s, fields))
	}
	return out, nil
}

func (e *exporter) object(s *tytx.Schema, fields []*Schema) *Schema {
	out := &Schema{Type: "object", Properties: map[string]*Schema{}}
	for i, f := range s.Fields {
		if f.Name == "" {
			continue
		}
		out.Properties[f.Name] = fields[i]
		if fields[i].required {
			out.Required = append(out.Required, f.Name)
		}
	}
	return out
}

// field exports one field: its type plus the validate and ui facets.
func (e *exporter) field(f tytx.FieldDef) (*Schema, error) {
	s, err := e.typeSchema(f.Type)
	if err != nil {
		return nil, err
	}
	if label := f.UI["label"]; label != "" {
		s = withTitle(s, label)
	}
	if len(f.Validate) == 0 {
		return s, nil
	}
	if s.Ref != "" {
		// keywords beside $ref would alter the shared definition
		s = &Schema{AnyOf: []*Schema{s}, Title: s.Title}
	}
	numeric := isNumeric(e.reg, f.Type)
	for key, val := range f.Validate {
		switch key {
		case "required":
			s.required = val == "true"
		case "len":
			n, err := facetInt(key, val)
			if err != nil {
				return nil, err
			}
			s.MinLength, s.MaxLength = intPtr(n), intPtr(n)
		case "min", "max":
			if numeric {
				d, err := decimal.NewFromString(strings.TrimSpace(val))
				if err != nil {
					return nil, fmt.Errorf("field %s: %s must be a number", f.Name, key)
				}
				v := d.InexactFloat64()
				if key == "min" {
					s.Minimum = &v
				} else {
					s.Maximum = &v
				}
				continue
			}
			n, err := facetInt(key, val)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			if key == "min" {
				s.MinLength = intPtr(n)
			} else {
				s.MaxLength = intPtr(n)
			}
		case "pattern", "reg":
			s.Pattern = "^(?:" + val + ")$"
		case "enum":
			for _, a := range strings.Split(val, "|") {
				s.Enum = append(s.Enum, strings.TrimSpace(a))
			}
		case "message", "msg":
			s.Description = val
		}
	}
	return s, nil
}

func withTitle(s *Schema, title string) *Schema {
	if s.Ref != "" {
		return &Schema{AnyOf: []*Schema{s}, Title: title}
	}
	s.Title = title
	return s
}

// typeSchema maps a field type code to the JSON it accepts.
func (e *exporter) typeSchema(code string) (*Schema, error) {
	switch {
	case code == "":
		return &Schema{}, nil
	case strings.HasPrefix(code, tytx.ArrayPrefix):
		items, err := e.typeSchema(code[1:])
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: items}, nil
	case strings.HasPrefix(code, tytx.StructPrefix):
		return e.structRef(code[1:])
	}
	d, ok := e.reg.Get(code)
	if !ok {
		return &Schema{}, nil
	}
	if d.IsExtension() {
		return &Schema{Type: "string", Format: strings.ToLower(strings.TrimPrefix(d.Code, tytx.ExtPrefix))}, nil
	}
	switch d.Code {
	case tytx.CodeText, tytx.CodeString:
		return &Schema{Type: "string"}, nil
	case tytx.CodeLong:
		return &Schema{Type: []string{"integer", "string"}}, nil
	case tytx.CodeReal, tytx.CodeDecimal:
		return &Schema{Type: []string{"number", "string"}}, nil
	case tytx.CodeBool:
		return &Schema{Type: []string{"boolean", "string"}}, nil
	case tytx.CodeDate:
		return &Schema{Type: "string", Format: "date"}, nil
	case tytx.CodeTimestamp, tytx.CodeNaive:
		return &Schema{Type: "string", Format: "date-time"}, nil
	case tytx.CodeTime:
		return &Schema{Type: "string", Format: "time"}, nil
	}
	return &Schema{}, nil
}

func isNumeric(reg *tytx.Registry, code string) bool {
	d, ok := reg.Get(code)
	if !ok {
		return false
	}
	switch d.Code {
	case tytx.CodeLong, tytx.CodeReal, tytx.CodeDecimal:
		return true
	}
	return false
}

func facetInt(key, val string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, val)
	}
	return n, nil
}
