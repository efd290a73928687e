package tytx

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/genropy/genro-tytx-sub000/i18n"
)

// Registry maps type codes, aliases and Go types to descriptors and holds the
// struct schemas and named validations. Reads take a shared lock; the
// register/unregister calls are the only operations taking it exclusively.
type Registry struct {
	mu sync.RWMutex

	// descriptors by upper-cased code or alias (one namespace)
	names map[string]*TypeDescriptor
	// descriptors by exact Go type
	byType map[reflect.Type]*TypeDescriptor

	structs map[string]*Schema
	// struct code -> field name -> metadata hash
	structMeta map[string]map[string]string
	// metadata hash -> metadata, shared across fields and structs
	metaStore map[string]FieldMeta
	metaRefs  map[string]int

	validations map[string]*ValidationDef

	log    zerolog.Logger
	strict bool
	tr     i18n.Translator
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registry mutations.
func WithLogger(l zerolog.Logger) Option { return func(r *Registry) { r.log = l } }

// WithStrictEncoding makes Encode fail with ErrUnsupportedType for Go values
// that have no descriptor, instead of falling back to a plain string.
func WithStrictEncoding() Option { return func(r *Registry) { r.strict = true } }

// WithTranslator sets the translator used for validation issue messages.
// By default the package-level i18n translator is used.
func WithTranslator(tr i18n.Translator) Option { return func(r *Registry) { r.tr = tr } }

// NewRegistry returns an isolated registry holding the built-in types.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		names:       make(map[string]*TypeDescriptor),
		byType:      make(map[reflect.Type]*TypeDescriptor),
		structs:     make(map[string]*Schema),
		structMeta:  make(map[string]map[string]string),
		metaStore:   make(map[string]FieldMeta),
		metaRefs:    make(map[string]int),
		validations: make(map[string]*ValidationDef),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, d := range builtinDescriptors() {
		d := d
		for _, k := range d.keys() {
			r.names[strings.ToUpper(k)] = &d
		}
	}
	return r
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry used by the package-level helpers.
func Default() *Registry {
	defaultOnce.Do(func() { defaultReg = NewRegistry() })
	return defaultReg
}

// Register adds or replaces a descriptor under its code, name and aliases.
func (r *Registry) Register(d TypeDescriptor) error {
	if err := checkCode(d.Code); err != nil {
		return err
	}
	if d.Parse == nil {
		return newError(CodeSchemaInvalid, "", "descriptor has no parse function", d.Code)
	}
	if d.GoType != nil && d.Serialize == nil {
		return newError(CodeSchemaInvalid, "", "descriptor with a Go type needs a serialize function", d.Code)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.names[strings.ToUpper(d.Code)]; ok {
		r.dropDescriptorLocked(old)
	}
	nd := d
	for _, k := range nd.keys() {
		r.names[strings.ToUpper(k)] = &nd
	}
	if nd.GoType != nil {
		r.byType[nd.GoType] = &nd
	}
	r.log.Debug().Str("code", nd.Code).Msg("type registered")
	return nil
}

func checkCode(code string) error {
	c := strings.TrimPrefix(code, ExtPrefix)
	if c == "" || strings.Contains(c, Separator) || strings.ContainsAny(c, "#@~ ,") {
		return newError(CodeSchemaInvalid, "", "invalid type code", code)
	}
	return nil
}

// RegisterExtension registers a user type under ~code. goType is matched
// exactly when encoding; parse is used when decoding "value::~code".
func (r *Registry) RegisterExtension(code string, goType reflect.Type, serialize func(any) (string, error), parse func(string) (any, error)) error {
	code = ExtPrefix + strings.TrimPrefix(code, ExtPrefix)
	if goType == nil || serialize == nil || parse == nil {
		return newError(CodeSchemaInvalid, "", "extension needs a Go type, serialize and parse", code)
	}
	return r.Register(TypeDescriptor{Code: code, GoType: goType, Serialize: serialize, Parse: parse})
}

// RegisterExtensionOf is the typed form of RegisterExtension.
func RegisterExtensionOf[T any](r *Registry, code string, serialize func(T) string, parse func(string) (T, error)) error {
	return r.RegisterExtension(code, reflect.TypeOf((*T)(nil)).Elem(),
		func(v any) (string, error) {
			t, ok := v.(T)
			if !ok {
				return "", serializeMismatch(code, v)
			}
			return serialize(t), nil
		},
		func(s string) (any, error) { return parse(s) },
	)
}

// UnregisterExtension removes ~code. It reports whether it was registered.
func (r *Registry) UnregisterExtension(code string) bool {
	key := strings.ToUpper(ExtPrefix + strings.TrimPrefix(code, ExtPrefix))
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.names[key]
	if !ok {
		return false
	}
	r.dropDescriptorLocked(d)
	r.log.Debug().Str("code", d.Code).Msg("extension unregistered")
	return true
}

// dropDescriptorLocked removes every key and the Go type entry still
// pointing at d.
func (r *Registry) dropDescriptorLocked(d *TypeDescriptor) {
	for _, k := range d.keys() {
		key := strings.ToUpper(k)
		if r.names[key] == d {
			delete(r.names, key)
		}
	}
	if d.GoType != nil && r.byType[d.GoType] == d {
		delete(r.byType, d.GoType)
	}
}

// Get resolves a code or alias (case-insensitive) to its descriptor.
func (r *Registry) Get(nameOrCode string) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.names[strings.ToUpper(nameOrCode)]
	return d, ok
}

// ForValue resolves the descriptor for v by exact Go type. Built-in types are
// checked first in a fixed order, then registered types; no interface or
// embedding fallback is attempted.
func (r *Registry) ForValue(v any) (*TypeDescriptor, bool) {
	if v == nil {
		return nil, false
	}
	if code, ok := builtinCode(v); ok {
		return r.Get(code)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byType[reflect.TypeOf(v)]
	return d, ok
}

// Codes returns the registered type codes (not aliases), sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]struct{}{}
	out := []string{}
	for _, d := range r.names {
		if _, dup := seen[d.Code]; dup {
			continue
		}
		seen[d.Code] = struct{}{}
		out = append(out, d.Code)
	}
	sort.Strings(out)
	return out
}

// IsTyped reports whether text ends in a suffix this registry understands.
func (r *Registry) IsTyped(text string) bool {
	idx := strings.LastIndex(text, Separator)
	if idx < 0 {
		return false
	}
	return r.knownSuffix(text[idx+len(Separator):], nil)
}

func (r *Registry) knownSuffix(code string, locals Locals) bool {
	switch {
	case code == "":
		return false
	case strings.HasPrefix(code, ArrayPrefix):
		return r.knownSuffix(code[1:], locals)
	case strings.HasPrefix(code, StructPrefix):
		_, ok := r.lookupStruct(code[1:], locals)
		return ok
	default:
		_, ok := r.Get(code)
		return ok
	}
}

// RegisterStruct registers schema under code, replacing any previous entry.
// schema may be a *Schema or any form accepted by ParseSchema.
func (r *Registry) RegisterStruct(code string, schema any) error {
	return r.RegisterStructWithMeta(code, schema, nil)
}

// RegisterStructWithMeta registers schema and per-field metadata. Metadata
// declared inline in the schema (FieldDef validate/ui) is merged with meta,
// meta winning. Identical metadata is stored once and shared by hash.
func (r *Registry) RegisterStructWithMeta(code string, schema any, meta map[string]FieldMeta) error {
	if err := checkStructCode(code); err != nil {
		return err
	}
	s, err := ParseSchema(schema)
	if err != nil {
		return err
	}
	fields := map[string]FieldMeta{}
	for _, f := range s.Fields {
		if f.Name != "" && !f.Meta().IsZero() {
			fields[f.Name] = f.Meta()
		}
	}
	for name, m := range meta {
		fields[name] = m
	}
	hashes := make(map[string]string, len(fields))
	for name, m := range fields {
		if m.IsZero() {
			continue
		}
		h, err := m.Hash()
		if err != nil {
			return err
		}
		hashes[name] = h
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropStructLocked(code)
	r.structs[code] = s
	if len(hashes) > 0 {
		r.structMeta[code] = hashes
		for name, h := range hashes {
			if _, ok := r.metaStore[h]; !ok {
				r.metaStore[h] = fields[name]
			}
			r.metaRefs[h]++
		}
	}
	r.log.Debug().Str("struct", code).Str("kind", s.Kind.String()).Int("fields", len(s.Fields)).Msg("struct registered")
	return nil
}

func checkStructCode(code string) error {
	if code == "" || strings.ContainsAny(code, "#@~:, ") {
		return newError(CodeSchemaInvalid, "", "invalid struct code", code)
	}
	return nil
}

// UnregisterStruct removes code. It reports whether it was registered.
func (r *Registry) UnregisterStruct(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.structs[code]; !ok {
		return false
	}
	r.dropStructLocked(code)
	r.log.Debug().Str("struct", code).Msg("struct unregistered")
	return true
}

func (r *Registry) dropStructLocked(code string) {
	delete(r.structs, code)
	for _, h := range r.structMeta[code] {
		r.metaRefs[h]--
		if r.metaRefs[h] <= 0 {
			delete(r.metaRefs, h)
			delete(r.metaStore, h)
		}
	}
	delete(r.structMeta, code)
}

// Struct returns the schema registered under code.
func (r *Registry) Struct(code string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.structs[code]
	return s, ok
}

// StructCodes returns the registered struct codes, sorted.
func (r *Registry) StructCodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.structs))
	for k := range r.structs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// StructMetadata resolves the per-field metadata of struct code.
func (r *Registry) StructMetadata(code string) map[string]FieldMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := r.structMeta[code]
	if len(refs) == 0 {
		return nil
	}
	out := make(map[string]FieldMeta, len(refs))
	for name, h := range refs {
		out[name] = r.metaStore[h]
	}
	return out
}

// MetadataEntries returns the number of distinct metadata objects stored.
func (r *Registry) MetadataEntries() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.metaStore)
}

func (r *Registry) lookupStruct(code string, locals Locals) (*Schema, bool) {
	if s, ok := locals[code]; ok {
		return s, true
	}
	return r.Struct(code)
}

// metaHash is the content address of a metadata object: the first 16 hex
// digits of the SHA-256 of its canonical JSON (map keys sorted).
func metaHash(v any) (string, error) {
	js, err := marshalJSON(v)
	if err != nil {
		return "", fmt.Errorf("hash metadata: %w", err)
	}
	sum := sha256.Sum256([]byte(js))
	return hex.EncodeToString(sum[:8]), nil
}
