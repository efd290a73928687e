// Package rules provides ready-made validation packs that can be installed
// into a tytx.Registry in one call.
package rules

import (
	"fmt"
	"sort"

	tytx "github.com/genropy/genro-tytx-sub000"
)

// def is the wire form of one rule.
type def = map[string]any

var standard = map[string]def{
	"email":       {"pattern": `[^@\s]+@[^@\s]+\.[^@\s]+`, "max": 254},
	"upper":       {"pattern": `\p{Lu}+`},
	"lower":       {"pattern": `\p{Ll}+`},
	"alpha":       {"pattern": `\p{L}+`},
	"alnum":       {"pattern": `[\p{L}\p{N}]+`},
	"digits":      {"pattern": `[0-9]+`},
	"notempty":    {"min": 1},
	"slug":        {"pattern": `[a-z0-9]+(?:-[a-z0-9]+)*`},
	"uuid":        {"pattern": `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`},
	"iso_country": {"pattern": `[A-Z]{2}`},
	"iso_date":    {"pattern": `[0-9]{4}-[0-9]{2}-[0-9]{2}`},
}

var locales = map[string]map[string]def{
	"it": {
		// codice fiscale (omocodia letters allowed in digit positions)
		"cf":   {"pattern": `[A-Z]{6}[0-9LMNPQRSTUV]{2}[A-EHLMPR-T][0-9LMNPQRSTUV]{2}[A-Z][0-9LMNPQRSTUV]{3}[A-Z]`, "len": 16},
		"piva": {"pattern": `[0-9]{11}`},
		"cap":  {"pattern": `[0-9]{5}`},
	},
	"en": {
		"us_zip":   {"pattern": `[0-9]{5}(?:-[0-9]{4})?`},
		"uk_post":  {"pattern": `[A-Z]{1,2}[0-9][A-Z0-9]? ?[0-9][A-Z]{2}`},
		"us_phone": {"pattern": `\(?[0-9]{3}\)?[ .-]?[0-9]{3}[ .-]?[0-9]{4}`},
	},
}

func build(defs map[string]def) tytx.ValidationSet {
	out := make(tytx.ValidationSet, len(defs))
	for name, d := range defs {
		v, err := tytx.ParseValidation(d)
		if err != nil {
			panic(fmt.Sprintf("rules: bad built-in %s: %v", name, err))
		}
		out[name] = v
	}
	return out
}

// Standard returns a fresh copy of the language-neutral pack.
func Standard() tytx.ValidationSet { return build(standard) }

// Locale returns the pack for lang ("it", "en").
func Locale(lang string) (tytx.ValidationSet, bool) {
	defs, ok := locales[lang]
	if !ok {
		return nil, false
	}
	return build(defs), true
}

// Locales lists the available locale packs.
func Locales() []string {
	out := make([]string, 0, len(locales))
	for k := range locales {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Install registers the standard pack plus the given locale packs.
func Install(reg *tytx.Registry, langs ...string) error {
	if err := reg.RegisterValidations(Standard()); err != nil {
		return err
	}
	for _, lang := range langs {
		set, ok := Locale(lang)
		if !ok {
			return fmt.Errorf("rules: unknown locale %q", lang)
		}
		if err := reg.RegisterValidations(set); err != nil {
			return err
		}
	}
	return nil
}
