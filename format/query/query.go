// Package query carries typed text in URL query strings: a=1::L&b=x.
package query

import (
	"fmt"
	"net/url"
	"sort"

	tytx "github.com/genropy/genro-tytx-sub000"
)

// Encode renders params as a query string, keys sorted. Each value is
// encoded on its own; sequences use the compact array form.
func Encode(reg *tytx.Registry, params map[string]any) (string, error) {
	values := url.Values{}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s, err := reg.Encode(params[k])
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", k, err)
		}
		values.Set(k, s)
	}
	return values.Encode(), nil
}

// Decode parses a query string. Values with a known suffix are decoded;
// everything else stays a string, so "id=007" keeps its leading zeros.
// A key repeated in the query yields a []any.
func Decode(reg *tytx.Registry, query string, opts ...tytx.DecodeOption) (map[string]any, error) {
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	return DecodeValues(reg, values, opts...)
}

// DecodeValues is Decode for already-parsed values, e.g. r.URL.Query().
func DecodeValues(reg *tytx.Registry, values url.Values, opts ...tytx.DecodeOption) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for k, vs := range values {
		decoded := make([]any, len(vs))
		for i, v := range vs {
			d, err := decodeOne(reg, v, opts)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", k, err)
			}
			decoded[i] = d
		}
		if len(decoded) == 1 {
			out[k] = decoded[0]
			continue
		}
		out[k] = decoded
	}
	return out, nil
}

func decodeOne(reg *tytx.Registry, v string, opts []tytx.DecodeOption) (any, error) {
	if !reg.IsTyped(v) {
		return v, nil
	}
	return reg.Decode(v, opts...)
}
