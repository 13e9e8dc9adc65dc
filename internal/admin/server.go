// Package admin is the operational HTTP surface of the dialer: probes,
// Prometheus metrics, campaign aggregates and the live-call list. It serves
// operators, not callers; nothing here sits on the audio path.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riandyrn/otelchi"
	"github.com/vocira/vocira/internal/call"
	"github.com/vocira/vocira/internal/config"
	"github.com/vocira/vocira/internal/ports"
)

const readTimeout = 30 * time.Second

// Options wires one admin server. Campaigns and Registry may be nil when the
// process runs without a database or without a dialer; the corresponding
// routes are then not mounted.
type Options struct {
	Config    *config.Config
	Version   string
	Campaigns ports.CampaignStore
	Registry  *call.Registry
	// ReadyChecks are probed by /health/ready, keyed by dependency name.
	ReadyChecks map[string]func(context.Context) error
}

type Server struct {
	cfg        *config.Config
	router     *chi.Mux
	httpServer *http.Server
}

func NewServer(opts Options) *Server {
	s := &Server{cfg: opts.Config}
	s.setupRouter(opts)
	return s
}

func (s *Server) setupRouter(opts Options) {
	r := chi.NewRouter()

	r.Use(otelchi.Middleware("vocira-admin", otelchi.WithChiRoutes(r)))
	r.Use(Recovery)
	r.Use(Logger)
	r.Use(Metrics)

	healthH := NewHealthHandler(opts.Version, opts.ReadyChecks)
	r.Get("/health", healthH.Liveness)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if opts.Campaigns != nil {
			campaignsH := NewCampaignsHandler(opts.Campaigns)
			r.Get("/campaigns", campaignsH.List)
			r.Get("/campaigns/{id}", campaignsH.Get)
			r.Get("/campaigns/{id}/stats", campaignsH.Stats)
		}
		if opts.Registry != nil {
			callsH := NewCallsHandler(opts.Registry)
			r.Get("/calls", callsH.List)
		}
	})

	s.router = r
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Admin.Host, s.cfg.Admin.Port)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: readTimeout,
		IdleTimeout: 120 * time.Second,
	}

	slog.Info("admin: listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
