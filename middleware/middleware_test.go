package middleware_test

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	tytx "github.com/genropy/genro-tytx-sub000"
	"github.com/genropy/genro-tytx-sub000/middleware"
)

func newRouter(reg *tytx.Registry, logs *bytes.Buffer, m *middleware.Metrics, h http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(zerolog.New(logs)))
	r.Use(m.Middleware)
	r.Use(middleware.Decode(reg, middleware.WithMetrics(m), middleware.WithMaxBodyBytes(256)))
	r.Post("/items", h)
	r.Get("/items", h)
	return r
}

func counterValue(t *testing.T, g prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestDecode_Envelope(t *testing.T) {
	reg := tytx.NewRegistry()
	prom := prometheus.NewRegistry()
	m := middleware.NewMetricsWithRegistry(prom)
	var logs bytes.Buffer

	h := newRouter(reg, &logs, m, func(w http.ResponseWriter, r *http.Request) {
		d, ok := middleware.DecodedFromContext(r.Context())
		if !ok || !d.Envelope {
			t.Errorf("decoded = %+v, %v", d, ok)
		}
		body, _ := middleware.BodyAs[map[string]any](r.Context())
		_ = middleware.WriteTyped(w, reg, http.StatusOK, map[string]any{"x": body["x"], "ok": true})
	})

	env := `XTYTX://{"gstruct":{},"lstruct":{"P":{"x":"L"}},"data":"TYTX://{\"x\":\"5\"}::@P"}`
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(env))
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != middleware.ContentType {
		t.Fatalf("content type = %q", got)
	}
	if got := w.Header().Get(middleware.RequestIDHeader); got != "req-1" {
		t.Fatalf("request id = %q", got)
	}
	if want := `TYTX://{"ok":"true::B","x":"5::L"}`; w.Body.String() != want {
		t.Fatalf("body = %s, want %s", w.Body.String(), want)
	}
	if _, ok := reg.Struct("P"); ok {
		t.Fatalf("local struct leaked into the registry")
	}
	if !strings.Contains(logs.String(), `"envelope":true`) || !strings.Contains(logs.String(), `"request_id":"req-1"`) {
		t.Fatalf("log line = %s", logs.String())
	}
	if v := counterValue(t, prom, "tytx_envelopes_total", nil); v != 1 {
		t.Fatalf("envelopes_total = %v", v)
	}
	if v := counterValue(t, prom, "tytx_requests_total", map[string]string{"status": "200"}); v != 1 {
		t.Fatalf("requests_total = %v", v)
	}
}

func TestDecode_JSONBodyAndQuery(t *testing.T) {
	reg := tytx.NewRegistry()
	m := middleware.NewMetricsWithRegistry(prometheus.NewRegistry())
	var logs bytes.Buffer
	called := false
	h := newRouter(reg, &logs, m, func(w http.ResponseWriter, r *http.Request) {
		called = true
		d, _ := middleware.DecodedFromContext(r.Context())
		if d.Query["page"] != int64(2) || d.Query["q"] != "x" {
			t.Errorf("query = %#v", d.Query)
		}
		body := d.Body.(map[string]any)
		if !body["price"].(decimal.Decimal).Equal(decimal.RequireFromString("9.90")) || body["name"] != "w" {
			t.Errorf("body = %#v", body)
		}
		// the raw body is still readable
		raw, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(raw), "9.90::N") {
			t.Errorf("raw body = %s", raw)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/items?page=2::L&q=x", strings.NewReader(`{"price":"9.90::N","name":"w"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if !called || w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, called = %v", w.Code, called)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatalf("request id not generated")
	}
}

func TestDecode_PlainBodyLeftAlone(t *testing.T) {
	reg := tytx.NewRegistry()
	m := middleware.NewMetricsWithRegistry(prometheus.NewRegistry())
	var logs bytes.Buffer
	h := newRouter(reg, &logs, m, func(w http.ResponseWriter, r *http.Request) {
		d, _ := middleware.DecodedFromContext(r.Context())
		if d.Body != nil {
			t.Errorf("plain body decoded: %#v", d.Body)
		}
		raw, _ := io.ReadAll(r.Body)
		_, _ = w.Write(raw)
	})
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader("hello::world"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "hello::world" {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}
}

func TestDecode_Rejections(t *testing.T) {
	reg := tytx.NewRegistry()
	prom := prometheus.NewRegistry()
	m := middleware.NewMetricsWithRegistry(prom)
	var logs bytes.Buffer
	h := newRouter(reg, &logs, m, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler reached for a rejected request")
	})

	cases := []struct {
		body   string
		status int
		code   string
	}{
		{"TYTX://abc::L", http.StatusBadRequest, tytx.CodeInvalidValue},
		{`XTYTX://{"gstruct":{},"data":""}`, http.StatusBadRequest, tytx.CodeMissingField},
		{"TYTX://" + strings.Repeat("a", 300), http.StatusRequestEntityTooLarge, "body_too_large"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(c.body))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != c.status {
			t.Fatalf("%.20s: status = %d, want %d", c.body, w.Code, c.status)
		}
		var payload struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := gojson.Unmarshal(w.Body.Bytes(), &payload); err != nil {
			t.Fatalf("payload %s: %v", w.Body.String(), err)
		}
		if payload.Error.Code != c.code {
			t.Fatalf("%.20s: error code = %q, want %q", c.body, payload.Error.Code, c.code)
		}
	}
	if v := counterValue(t, prom, "tytx_decode_errors_total", map[string]string{"code": tytx.CodeInvalidValue}); v != 1 {
		t.Fatalf("decode_errors_total{invalid_value} = %v", v)
	}
	if !strings.Contains(logs.String(), `"level":"warn"`) {
		t.Fatalf("4xx not logged at warn: %s", logs.String())
	}
}

func TestErrorPayload(t *testing.T) {
	iss := tytx.Issues{{Rule: "zip", Code: tytx.CodePattern, Message: "bad", Path: "/zip"}}
	p := middleware.ErrorPayload(iss)
	items := p["issues"].([]any)
	item := items[0].(map[string]any)
	if item["rule"] != "zip" || item["path"] != "/zip" || item["code"] != tytx.CodePattern {
		t.Fatalf("issues payload = %#v", p)
	}

	p = middleware.ErrorPayload(errors.New("boom"))
	if p["error"].(map[string]any)["message"] != "boom" {
		t.Fatalf("plain payload = %#v", p)
	}
}
