// Package ext registers extension types that are common enough to ship with
// the library but are not part of the built-in catalog.
package ext

import (
	"time"

	"github.com/google/uuid"

	tytx "github.com/genropy/genro-tytx-sub000"
)

// Extension codes, without the "~" marker.
const (
	CodeUUID     = "UUID"
	CodeDuration = "DUR"
)

// RegisterUUID registers uuid.UUID as ~UUID.
func RegisterUUID(reg *tytx.Registry) error {
	return tytx.RegisterExtensionOf(reg, CodeUUID,
		func(u uuid.UUID) string { return u.String() },
		uuid.Parse,
	)
}

// RegisterDuration registers time.Duration as ~DUR, written in Go duration
// syntax ("1h30m").
func RegisterDuration(reg *tytx.Registry) error {
	return tytx.RegisterExtensionOf(reg, CodeDuration,
		func(d time.Duration) string { return d.String() },
		time.ParseDuration,
	)
}

var all = map[string]func(*tytx.Registry) error{
	CodeUUID:     RegisterUUID,
	CodeDuration: RegisterDuration,
}

// Register installs the named extensions; with no names it installs all.
func Register(reg *tytx.Registry, codes ...string) error {
	if len(codes) == 0 {
		for _, fn := range all {
			if err := fn(reg); err != nil {
				return err
			}
		}
		return nil
	}
	for _, code := range codes {
		fn, ok := all[code]
		if !ok {
			return &tytx.Error{Code: tytx.CodeSchemaInvalid, Message: "unknown extension", Fragment: code}
		}
		if err := fn(reg); err != nil {
			return err
		}
	}
	return nil
}
