// Package tytx implements typed text: scalar values carried as strings with a
// type suffix ("100.50::N", "2025-01-15::D") so that JSON, YAML, query
// strings and other untyped containers can transport decimals, dates,
// timestamps and user types without losing them.
//
// The root package holds the engine:
//
//   - Registry: type descriptors, aliases, extensions (~CODE), struct schemas
//     (@CODE) and named validations. Safe for concurrent use; only
//     register/unregister calls take the write lock.
//   - Codec: Decode/Encode of typed text. Unknown suffixes pass through.
//   - Struct resolver: map, positional, homogeneous and ordered schemas.
//   - Compact arrays: ["1","2"]::#L for homogeneous sequences.
//   - Validation expressions: "upper|lower&len3" over named rules resolved
//     local > global > registry.
//   - Envelopes: XTYTX:// payloads that carry their own struct and
//     validation definitions.
//
// Structural failures are *Error values with a Code; validation failures are
// Issues. Both work with errors.As.
//
// Typical usage:
//
//	reg := tytx.NewRegistry()
//	v, err := reg.Decode("100.50::N")          // decimal.Decimal
//	s, err := reg.Encode([]int64{1, 2, 3})      // `["1","2","3"]::#L`
//
//	_ = reg.RegisterStruct("POINT", "x:R,y:R")
//	p, err := reg.Decode(`[1.5,2]::@POINT`)     // map[x:1.5 y:2]
package tytx
