package config

import (
	"reflect"
	"sort"
)

// Changes lists the schema-pack codes that differ between two configs.
type Changes struct {
	AddedStructs, RemovedStructs, ChangedStructs             []string
	AddedValidations, RemovedValidations, ChangedValidations []string
}

// Empty reports whether no struct or validation changed.
func (c Changes) Empty() bool {
	return len(c.AddedStructs)+len(c.RemovedStructs)+len(c.ChangedStructs)+
		len(c.AddedValidations)+len(c.RemovedValidations)+len(c.ChangedValidations) == 0
}

// Diff compares the struct and validation definitions of old and next. A nil
// config has no definitions. Codes are sorted.
func Diff(old, next *Config) Changes {
	var c Changes
	c.AddedStructs, c.RemovedStructs, c.ChangedStructs = diffDefs(structsOf(old), structsOf(next))
	c.AddedValidations, c.RemovedValidations, c.ChangedValidations = diffDefs(validationsOf(old), validationsOf(next))
	return c
}

func structsOf(c *Config) map[string]any {
	if c == nil {
		return nil
	}
	return c.Structs
}

func validationsOf(c *Config) map[string]any {
	if c == nil {
		return nil
	}
	return c.Validations
}

func diffDefs(old, next map[string]any) (added, removed, changed []string) {
	for code, def := range next {
		prev, ok := old[code]
		switch {
		case !ok:
			added = append(added, code)
		case !reflect.DeepEqual(prev, def):
			changed = append(changed, code)
		}
	}
	for code := range old {
		if _, ok := next[code]; !ok {
			removed = append(removed, code)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(changed)
	return added, removed, changed
}
