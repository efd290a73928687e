package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	tytx "github.com/genropy/genro-tytx-sub000"
	"github.com/genropy/genro-tytx-sub000/config"
	"github.com/genropy/genro-tytx-sub000/jsonschema"
	"github.com/genropy/genro-tytx-sub000/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the codec over HTTP",
	Long: `Start an HTTP server exposing the codec.

Request bodies may be XTYTX envelopes, TYTX:// payloads or JSON documents
with typed leaves. Responses are TYTX:// JSON with typed leaves.

Endpoints:
  POST /decode             echo the decoded body and query
  POST /hydrate/{code}     apply a struct schema to a JSON body
  POST /check/{code}       apply field validate facets, 422 with issues
  POST /validate           {"expr": "...", "value": "..."}, 422 with issues
  GET  /structs[/{code}]   registered struct schemas; ?format=jsonschema
                           exports one as JSON Schema
  GET  /rules              registered validation rules
  GET  /healthz            liveness
  GET  /metrics            Prometheus metrics

With --config the schema pack is reloaded when the file changes.`,
	RunE: runServe,
}

var (
	serveAddr  string
	serveWatch bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "reload the config file when it changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	var (
		e      *env
		holder *config.Holder
		err    error
	)
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if e, err = buildEnv(cmd, cfg, ""); err != nil {
			return err
		}
		if holder, err = config.NewHolder(cfgFile, e.logger); err != nil {
			return err
		}
		defer holder.Stop()
		e.cfg = holder.Get()
		if err := holder.Bind(e.reg); err != nil {
			return err
		}
	} else if e, err = newEnv(cmd, ""); err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := middleware.NewMetricsWithRegistry(promReg)

	if holder != nil {
		holder.OnChange(func(_, next *config.Config) {
			m.ConfigReloads.Inc()
			if lvl, err := zerolog.ParseLevel(next.Logging.Level); err == nil && logLevel == "" {
				zerolog.SetGlobalLevel(lvl)
			}
		})
		holder.OnError(func(error) { m.ConfigReloadErrors.Inc() })
		if serveWatch {
			if err := holder.WatchFile(); err != nil {
				return err
			}
		}
		holder.WatchSignals()
	}

	addr := e.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(e, m, promReg),
		ReadTimeout:  e.cfg.Server.ReadTimeout,
		WriteTimeout: e.cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info().Str("addr", addr).Msg("serving")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	e.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(e *env, m *middleware.Metrics, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(e.logger))
	r.Use(m.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	h := &handlers{reg: e.reg}
	r.Group(func(r chi.Router) {
		r.Use(middleware.Decode(e.reg,
			middleware.WithLogger(e.logger),
			middleware.WithMetrics(m),
			middleware.WithMaxBodyBytes(e.cfg.Server.MaxBodyBytes),
		))
		r.Post("/decode", h.decode)
		r.Post("/hydrate/{code}", h.hydrate)
		r.Post("/check/{code}", h.check)
		r.Post("/validate", h.validate)
	})
	r.Get("/structs", h.structs)
	r.Get("/structs/{code}", h.structDef)
	r.Get("/rules", h.rules)
	return r
}

type handlers struct {
	reg *tytx.Registry
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request) {
	d, _ := middleware.DecodedFromContext(r.Context())
	_ = middleware.WriteTyped(w, h.reg, http.StatusOK, map[string]any{
		"body":     d.Body,
		"query":    d.Query,
		"envelope": d.Envelope,
	})
}

func (h *handlers) hydrate(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err)
		return
	}
	v, err := h.reg.HydrateText(string(raw), chi.URLParam(r, "code"), nil)
	if err != nil {
		middleware.WriteError(w, http.StatusUnprocessableEntity, err)
		return
	}
	_ = middleware.WriteTyped(w, h.reg, http.StatusOK, v)
}

func (h *handlers) check(w http.ResponseWriter, r *http.Request) {
	d, _ := middleware.DecodedFromContext(r.Context())
	iss, err := h.reg.CheckStruct(d.Body, chi.URLParam(r, "code"), d.LocalStructs,
		tytx.WithValidations(d.LocalValidations, d.GlobalValidations))
	if err != nil {
		middleware.WriteError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if len(iss) > 0 {
		middleware.WriteError(w, http.StatusUnprocessableEntity, iss)
		return
	}
	_ = middleware.WriteTyped(w, h.reg, http.StatusOK, map[string]any{"valid": true})
}

func (h *handlers) validate(w http.ResponseWriter, r *http.Request) {
	d, _ := middleware.DecodedFromContext(r.Context())
	req, ok := d.Body.(map[string]any)
	expr, _ := req["expr"].(string)
	value, isStr := req["value"].(string)
	if !ok || expr == "" || !isStr {
		middleware.WriteError(w, http.StatusBadRequest, &tytx.Error{
			Code:    tytx.CodeTypeMismatch,
			Message: `body must be {"expr": string, "value": string}`,
		})
		return
	}
	iss, err := h.reg.Check(value, expr, d.LocalValidations, d.GlobalValidations)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if len(iss) > 0 {
		middleware.WriteError(w, http.StatusUnprocessableEntity, iss)
		return
	}
	_ = middleware.WriteTyped(w, h.reg, http.StatusOK, map[string]any{"valid": true})
}

func (h *handlers) structs(w http.ResponseWriter, _ *http.Request) {
	_ = middleware.WriteTyped(w, h.reg, http.StatusOK, h.reg.StructCodes())
}

func (h *handlers) structDef(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	s, ok := h.reg.Struct(code)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, &tytx.Error{Code: tytx.CodeSchemaInvalid, Message: "unknown struct", Fragment: code})
		return
	}
	if r.URL.Query().Get("format") == "jsonschema" {
		doc, err := jsonschema.FromStruct(h.reg, code)
		if err != nil {
			middleware.WriteError(w, http.StatusUnprocessableEntity, err)
			return
		}
		b, err := gojson.Marshal(doc)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/schema+json")
		_, _ = w.Write(b)
		return
	}
	_ = middleware.WriteTyped(w, h.reg, http.StatusOK, s.Def())
}

func (h *handlers) rules(w http.ResponseWriter, _ *http.Request) {
	_ = middleware.WriteTyped(w, h.reg, http.StatusOK, h.reg.Validations())
}
