// Package middleware decodes TYTX request bodies for net/http handlers and
// writes typed responses.
//
// Bodies prefixed with XTYTX:// go through the envelope protocol; bodies
// prefixed with TYTX://, typed text, and application/json documents are
// decoded leaf by leaf. Query parameters are always decoded. Handlers read
// the result with DecodedFromContext.
package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	tytx "github.com/genropy/genro-tytx-sub000"
	tytxjson "github.com/genropy/genro-tytx-sub000/format/json"
	"github.com/genropy/genro-tytx-sub000/format/query"
)

// ContentType marks a response body as typed JSON.
const ContentType = "application/vnd.tytx+json"

// DefaultMaxBodyBytes bounds the request body read by Decode.
const DefaultMaxBodyBytes int64 = 1 << 20

// Decoded is what Decode attaches to the request context.
type Decoded struct {
	// Body is the decoded request body, nil when there was none.
	Body any
	// Query holds the decoded URL query parameters.
	Query map[string]any
	// Envelope reports whether the body was an XTYTX envelope.
	Envelope bool
	// Validations carried by the envelope, if any.
	LocalValidations  tytx.ValidationSet
	GlobalValidations tytx.ValidationSet
	// LocalStructs are the envelope's lstruct schemas; pass them to
	// CheckStruct together with the validation sets.
	LocalStructs tytx.Locals
}

type ctxKeyDecoded struct{}

// ContextWithDecoded attaches d to the context.
func ContextWithDecoded(ctx context.Context, d Decoded) context.Context {
	return context.WithValue(ctx, ctxKeyDecoded{}, d)
}

// DecodedFromContext retrieves what Decode stored.
func DecodedFromContext(ctx context.Context) (Decoded, bool) {
	d, ok := ctx.Value(ctxKeyDecoded{}).(Decoded)
	return d, ok
}

// BodyAs returns the decoded body asserted to T.
func BodyAs[T any](ctx context.Context) (T, bool) {
	var zero T
	d, ok := DecodedFromContext(ctx)
	if !ok {
		return zero, false
	}
	v, ok := d.Body.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Option configures Decode.
type Option func(*options)

type options struct {
	logger  zerolog.Logger
	metrics *Metrics
	maxBody int64
}

// WithLogger sets the logger used for rejected requests.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.logger = l } }

// WithMetrics records decode outcomes on m.
func WithMetrics(m *Metrics) Option { return func(o *options) { o.metrics = m } }

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option { return func(o *options) { o.maxBody = n } }

// Decode returns middleware that decodes the request through reg. A body
// that fails to decode is answered with 400 and an ErrorPayload; an
// oversized body with 413. The body is restored for the next handler.
func Decode(reg *tytx.Registry, opts ...Option) func(http.Handler) http.Handler {
	o := options{logger: zerolog.Nop(), maxBody: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&o)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := decodeRequest(reg, w, r, o.maxBody)
			if err != nil {
				status := http.StatusBadRequest
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					status = http.StatusRequestEntityTooLarge
				}
				o.metrics.decodeFailed(err)
				o.logger.Debug().Err(err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Msg("rejecting undecodable request")
				WriteError(w, status, err)
				return
			}
			if d.Envelope {
				o.metrics.envelope()
				markEnvelope(r.Context())
			}
			next.ServeHTTP(w, r.WithContext(ContextWithDecoded(r.Context(), d)))
		})
	}
}

func decodeRequest(reg *tytx.Registry, w http.ResponseWriter, r *http.Request, maxBody int64) (Decoded, error) {
	var d Decoded
	q, err := query.DecodeValues(reg, r.URL.Query())
	if err != nil {
		return d, err
	}
	d.Query = q
	if r.Body == nil || r.Body == http.NoBody {
		return d, nil
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	_ = r.Body.Close()
	if err != nil {
		return d, err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	text := strings.TrimSpace(string(raw))
	switch {
	case text == "":
		return d, nil
	case strings.HasPrefix(text, tytx.EnvelopePrefix):
		res, err := reg.ProcessEnvelopeText(text)
		if err != nil {
			return d, err
		}
		d.Body = res.Data
		d.Envelope = true
		d.LocalValidations = res.LocalValidations
		d.GlobalValidations = res.GlobalValidations
		d.LocalStructs = res.LocalStructs
	case strings.HasPrefix(text, tytx.DataPrefix), reg.IsTyped(text), isJSON(r):
		v, err := tytxjson.Unmarshal(reg, raw)
		if err != nil {
			return d, err
		}
		d.Body = v
	}
	return d, nil
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/json" || mt == ContentType || strings.HasSuffix(mt, "+json")
}

// WriteTyped writes v as a TYTX://-prefixed JSON document with typed leaves.
func WriteTyped(w http.ResponseWriter, reg *tytx.Registry, status int, v any) error {
	b, err := tytxjson.Marshal(reg, v, tytxjson.WithPrefix())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err)
		return err
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	_, err = w.Write(b)
	return err
}

// WriteError writes ErrorPayload(err) as plain JSON.
func WriteError(w http.ResponseWriter, status int, err error) {
	b, mErr := gojson.Marshal(ErrorPayload(err))
	if mErr != nil {
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// ErrorPayload shapes an error for JSON responses: validation Issues under
// "issues", a tytx Error under "error" with its code, anything else as a
// bare message.
func ErrorPayload(err error) map[string]any {
	if iss, ok := tytx.AsIssues(err); ok {
		out := make([]any, len(iss))
		for i, is := range iss {
			item := map[string]any{"code": is.Code, "message": is.Message}
			if is.Rule != "" {
				item["rule"] = is.Rule
			}
			if is.Path != "" {
				item["path"] = is.Path
			}
			out[i] = item
		}
		return map[string]any{"issues": out}
	}
	if e, ok := tytx.AsError(err); ok {
		body := map[string]any{"code": e.Code, "message": e.Error()}
		if e.Path != "" {
			body["path"] = e.Path
		}
		if e.Fragment != "" {
			body["fragment"] = e.Fragment
		}
		return map[string]any{"error": body}
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return map[string]any{"error": map[string]any{"code": "body_too_large", "message": err.Error()}}
	}
	return map[string]any{"error": map[string]any{"message": err.Error()}}
}
