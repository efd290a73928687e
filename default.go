package tytx

// Package-level helpers operate on Default().

// Decode decodes text with the default registry.
func Decode(text string, opts ...DecodeOption) (any, error) { return Default().Decode(text, opts...) }

// Encode encodes v with the default registry.
func Encode(v any) (string, error) { return Default().Encode(v) }

// Hydrate applies struct code from the default registry (or locals) to data.
func Hydrate(data any, code string, locals Locals) (any, error) {
	return Default().Hydrate(data, code, locals)
}

// RegisterStruct registers a struct in the default registry.
func RegisterStruct(code string, schema any) error { return Default().RegisterStruct(code, schema) }

// RegisterValidation registers a named validation in the default registry.
func RegisterValidation(name string, def any) error { return Default().RegisterValidation(name, def) }

// Validate evaluates expr against value using the default registry as the
// last resolution tier.
func Validate(value, expr string, local, global ValidationSet) (bool, error) {
	return Default().Validate(value, expr, local, global)
}

// ProcessEnvelope processes an envelope text against the default registry.
func ProcessEnvelope(text string) (*EnvelopeResult, error) {
	return Default().ProcessEnvelopeText(text)
}
