package tytx

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/genropy/genro-tytx-sub000/codec"
)

// Canonical built-in type codes.
const (
	CodeText      = "T"
	CodeString    = "S"
	CodeLong      = "L"
	CodeReal      = "R"
	CodeDecimal   = "N"
	CodeBool      = "B"
	CodeDate      = "D"
	CodeTimestamp = "DHZ"
	CodeNaive     = "DH"
	CodeTime      = "H"
	CodeTypedJSON = "J"
	CodeJSON      = "JS"
)

// Suffix grammar markers.
const (
	Separator    = "::"
	ArrayPrefix  = "#"
	StructPrefix = "@"
	ExtPrefix    = "~"
)

// TypeDescriptor describes one scalar, extension or composite type.
// Descriptors are never mutated once registered; re-registering a code
// replaces the whole descriptor.
type TypeDescriptor struct {
	Code    string   // Suffix token, e.g. "N" or "~UUID".
	Name    string   // Long alias, e.g. "DECIMAL".
	Aliases []string // Additional case-insensitive aliases.
	// GoType is the exact Go type encoded with this code (nil for decode-only codes).
	GoType    reflect.Type
	Parse     func(text string) (any, error)
	Serialize func(v any) (string, error)
	// Display carries optional presentation hints for format adapters,
	// e.g. {"align": "R"}.
	Display map[string]string
}

// IsExtension reports whether d is a user extension (~CODE).
func (d *TypeDescriptor) IsExtension() bool { return strings.HasPrefix(d.Code, ExtPrefix) }

func (d *TypeDescriptor) keys() []string {
	out := []string{d.Code}
	if d.Name != "" {
		out = append(out, d.Name)
	}
	return append(out, d.Aliases...)
}

func builtinDescriptors() []TypeDescriptor {
	return []TypeDescriptor{
		{
			Code: CodeText, Name: "TEXT", Aliases: []string{"STRING", "STR", CodeString},
			GoType: reflect.TypeOf(""),
			Parse:  func(s string) (any, error) { return s, nil },
			Serialize: func(v any) (string, error) {
				s, ok := v.(string)
				if !ok {
					return "", serializeMismatch(CodeText, v)
				}
				return s, nil
			},
		},
		{
			Code: CodeLong, Name: "LONG", Aliases: []string{"INT", "INTEGER"},
			GoType:    reflect.TypeOf(int64(0)),
			Parse:     parseLong,
			Serialize: serializeLong,
			Display:   map[string]string{"align": "R"},
		},
		{
			Code: CodeReal, Name: "REAL", Aliases: []string{"FLOAT", "DOUBLE"},
			GoType: reflect.TypeOf(float64(0)),
			Parse: func(s string) (any, error) {
				return strconv.ParseFloat(strings.TrimSpace(s), 64)
			},
			Serialize: func(v any) (string, error) {
				switch f := v.(type) {
				case float64:
					return strconv.FormatFloat(f, 'g', -1, 64), nil
				case float32:
					return strconv.FormatFloat(float64(f), 'g', -1, 32), nil
				}
				return "", serializeMismatch(CodeReal, v)
			},
			Display: map[string]string{"align": "R"},
		},
		{
			Code: CodeDecimal, Name: "DECIMAL", Aliases: []string{"NUMERIC", "NUMBER"},
			GoType: reflect.TypeOf(decimal.Decimal{}),
			Parse: func(s string) (any, error) {
				return codec.ParseDecimal(s)
			},
			Serialize: func(v any) (string, error) {
				switch d := v.(type) {
				case decimal.Decimal:
					return codec.FormatDecimal(d), nil
				case *decimal.Decimal:
					return codec.FormatDecimal(*d), nil
				}
				return "", serializeMismatch(CodeDecimal, v)
			},
			Display: map[string]string{"align": "R"},
		},
		{
			Code: CodeBool, Name: "BOOL", Aliases: []string{"BOOLEAN"},
			GoType: reflect.TypeOf(false),
			Parse: func(s string) (any, error) {
				return codec.ParseBool(s)
			},
			Serialize: func(v any) (string, error) {
				b, ok := v.(bool)
				if !ok {
					return "", serializeMismatch(CodeBool, v)
				}
				return codec.FormatBool(b), nil
			},
		},
		{
			Code: CodeDate, Name: "DATE",
			GoType: reflect.TypeOf(codec.Date{}),
			Parse: func(s string) (any, error) {
				return codec.ParseDate(s)
			},
			Serialize: func(v any) (string, error) {
				d, ok := v.(codec.Date)
				if !ok {
					return "", serializeMismatch(CodeDate, v)
				}
				return d.String(), nil
			},
		},
		{
			Code: CodeTimestamp, Name: "DATETIME", Aliases: []string{"TIMESTAMP"},
			GoType: reflect.TypeOf(time.Time{}),
			Parse: func(s string) (any, error) {
				return codec.ParseTimestamp(s)
			},
			Serialize: func(v any) (string, error) {
				switch t := v.(type) {
				case time.Time:
					return codec.FormatTimestamp(t), nil
				case *time.Time:
					return codec.FormatTimestamp(*t), nil
				}
				return "", serializeMismatch(CodeTimestamp, v)
			},
		},
		{
			// Legacy naive timestamps decode only; encoding always emits DHZ.
			Code: CodeNaive, Name: "NAIVE_DATETIME",
			Parse: func(s string) (any, error) {
				return codec.ParseNaiveTimestamp(s)
			},
		},
		{
			Code: CodeTime, Name: "TIME",
			GoType: reflect.TypeOf(codec.TimeOfDay{}),
			Parse: func(s string) (any, error) {
				return codec.ParseTimeOfDay(s)
			},
			Serialize: func(v any) (string, error) {
				t, ok := v.(codec.TimeOfDay)
				if !ok {
					return "", serializeMismatch(CodeTime, v)
				}
				return t.String(), nil
			},
		},
		{
			Code: CodeJSON, Name: "JSON",
			Parse: func(s string) (any, error) {
				v, err := parseJSON(s)
				if err != nil {
					return nil, err
				}
				return plainJSON(v), nil
			},
			Serialize: marshalJSON,
		},
		{
			// Composite marker: JSON whose string leaves are typed text.
			// Decoding needs the registry, so the codec handles it directly.
			Code: CodeTypedJSON, Name: "TYPED_JSON",
		},
	}
}

func parseLong(s string) (any, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func serializeLong(v any) (string, error) {
	switch n := v.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), nil
	case int8:
		return strconv.FormatInt(int64(n), 10), nil
	case int16:
		return strconv.FormatInt(int64(n), 10), nil
	case int32:
		return strconv.FormatInt(int64(n), 10), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case uint:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint64:
		return strconv.FormatUint(n, 10), nil
	}
	return "", serializeMismatch(CodeLong, v)
}

func serializeMismatch(code string, v any) error {
	return &Error{Code: CodeTypeMismatch, Message: fmt.Sprintf("cannot serialize %T as %s", v, code)}
}

// builtinCode resolves the built-in code for v by exact dynamic type. The
// order is fixed: bool is checked before any integer kind.
func builtinCode(v any) (string, bool) {
	switch v.(type) {
	case bool:
		return CodeBool, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return CodeLong, true
	case float32, float64:
		return CodeReal, true
	case decimal.Decimal, *decimal.Decimal:
		return CodeDecimal, true
	case codec.Date:
		return CodeDate, true
	case time.Time, *time.Time:
		return CodeTimestamp, true
	case codec.TimeOfDay:
		return CodeTime, true
	case string:
		return CodeText, true
	}
	return "", false
}
