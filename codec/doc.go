// Package codec holds the value codecs behind the built-in scalar type codes:
// calendar dates (D), timestamps (DHZ canonical, DH legacy), time of day (H),
// arbitrary-precision decimals (N) and booleans (B).
//
// Each codec is a Parse/Format pair over a Go value. Format output is the
// canonical wire text; Parse is lenient where the protocol allows several
// spellings (naive timestamps, "1"/"0" booleans).
package codec
