package config

import (
	"fmt"
	"sort"

	tytx "github.com/genropy/genro-tytx-sub000"
	"github.com/genropy/genro-tytx-sub000/ext"
	"github.com/genropy/genro-tytx-sub000/rules"
)

// Install registers the schema pack of cfg into reg: extensions first so
// struct schemas may name them, then rule packs, validations and structs.
// Struct and validation definitions are parsed before anything is
// registered, so a malformed definition is reported with reg unchanged.
func Install(reg *tytx.Registry, cfg *Config) error {
	schemas := make(map[string]*tytx.Schema, len(cfg.Structs))
	for code, def := range cfg.Structs {
		s, err := tytx.ParseSchema(def)
		if err != nil {
			return fmt.Errorf("struct %s: %w", code, err)
		}
		schemas[code] = s
	}
	vals, err := tytx.ParseValidationSet(cfg.Validations)
	if err != nil {
		return fmt.Errorf("validations: %w", err)
	}
	for _, lang := range cfg.Locales {
		if _, ok := rules.Locale(lang); !ok {
			return fmt.Errorf("locales: unknown locale %q", lang)
		}
	}

	if len(cfg.Extensions) > 0 {
		if err := ext.Register(reg, cfg.Extensions...); err != nil {
			return fmt.Errorf("extensions: %w", err)
		}
	}
	if cfg.StandardRules || len(cfg.Locales) > 0 {
		if err := rules.Install(reg, cfg.Locales...); err != nil {
			return fmt.Errorf("rules: %w", err)
		}
	}
	if err := reg.RegisterValidations(vals); err != nil {
		return fmt.Errorf("validations: %w", err)
	}
	codes := make([]string, 0, len(schemas))
	for code := range schemas {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if err := reg.RegisterStruct(code, schemas[code]); err != nil {
			return fmt.Errorf("struct %s: %w", code, err)
		}
	}
	return nil
}

// Uninstall removes the structs and validations that cfg names and that
// next does not. Rule packs and extensions stay installed.
func Uninstall(reg *tytx.Registry, cfg, next *Config) {
	c := Diff(cfg, next)
	for _, code := range c.RemovedStructs {
		reg.UnregisterStruct(code)
	}
	for _, name := range c.RemovedValidations {
		reg.UnregisterValidation(name)
	}
}
