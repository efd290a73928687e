package tytx

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

var errTrailingJSON = errors.New("trailing data after JSON value")

// parseJSON decodes text keeping numbers as json.Number so typed fields can
// be re-parsed without float rounding.
func parseJSON(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errTrailingJSON
	}
	return v, nil
}

// marshalJSON renders v without HTML escaping; typed text is not markup.
func marshalJSON(v any) (string, error) {
	b, err := json.MarshalNoEscape(v)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(b)), nil
}

// plainJSON replaces json.Number leaves with int64 (when integral) or float64.
func plainJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		return plainNumber(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainJSON(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plainJSON(e)
		}
		return out
	default:
		return v
	}
}

func plainNumber(n json.Number) any {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(string(n), 64); err == nil {
		return f
	}
	return string(n)
}

// scalarText renders a JSON-native scalar as the text a descriptor can parse.
func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return string(t), true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true
	}
	return "", false
}
