package tytx_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	tytx "github.com/genropy/genro-tytx-sub000"
)

func TestParseFacets(t *testing.T) {
	cases := []struct {
		in   string
		want tytx.Facets
	}{
		{"", tytx.Facets{}},
		{"min:1,max:100", tytx.Facets{"min": "1", "max": "100"}},
		{` min : 1 , label : Full name `, tytx.Facets{"min": "1", "label": "Full name"}},
		{`reg:"[A-Z]{2},[0-9]+"`, tytx.Facets{"reg": "[A-Z]{2},[0-9]+"}},
		{`reg:"\d+\.\d{2}"`, tytx.Facets{"reg": `\d+\.\d{2}`}},
		{`hint:'it\'s fine'`, tytx.Facets{"hint": "it's fine"}},
		{`msg:"say \"hi\""`, tytx.Facets{"msg": `say "hi"`}},
		{"required,min:2", tytx.Facets{"required": "true", "min": "2"}},
		{"enum:a|b|c", tytx.Facets{"enum": "a|b|c"}},
	}
	for _, c := range cases {
		got, err := tytx.ParseFacets(c.in)
		if err != nil {
			t.Fatalf("ParseFacets(%q): %v", c.in, err)
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("ParseFacets(%q) = %#v, want %#v", c.in, got, c.want)
		}
	}
}

func TestParseFacets_SyntaxErrors(t *testing.T) {
	cases := []struct {
		in       string
		fragment string
	}{
		{`reg:"abc`, `reg:"abc`},
		{`min:1,reg:"abc`, `reg:"abc`},
		{`label:ab"c`, `label:ab"c`},
		{"min:1,", "min:1,"},
		{":1", ":1"},
		{"min:", "min:"},
		{"min 1", "min 1"},
	}
	for _, c := range cases {
		_, err := tytx.ParseFacets(c.in)
		if !errors.Is(err, tytx.ErrMetadataSyntax) {
			t.Fatalf("ParseFacets(%q) should be metadata_syntax, got %v", c.in, err)
		}
		e, _ := tytx.AsError(err)
		if !strings.Contains(e.Fragment, c.fragment) && !strings.Contains(c.in, e.Fragment) {
			t.Fatalf("ParseFacets(%q) fragment = %q", c.in, e.Fragment)
		}
		if e.Fragment == "" {
			t.Fatalf("ParseFacets(%q) has no fragment", c.in)
		}
	}
}

func TestFormatFacets_RoundTrip(t *testing.T) {
	in := tytx.Facets{
		"min":   "1",
		"reg":   `[A-Z]{2},\d+`,
		"label": "Full name",
		"quote": `say "hi"`,
		"colon": "a:b",
	}
	s := tytx.FormatFacets(in)
	if !strings.HasPrefix(s, "colon:") {
		t.Fatalf("keys not sorted: %s", s)
	}
	back, err := tytx.ParseFacets(s)
	if err != nil {
		t.Fatalf("reparse %q: %v", s, err)
	}
	if !reflect.DeepEqual(back, in) {
		t.Fatalf("round trip %q = %#v", s, back)
	}
}
