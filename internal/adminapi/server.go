// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package adminapi implements the optional HTTP introspection and
// control surface: task-graph and plugin listings, Prometheus scrape
// endpoint, ledger history lookup and a shutdown trigger. Every route
// except /healthz and /docs requires a bearer token when a JWT secret
// is configured, and is rate-limited when a rate limit is configured.
package adminapi

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/clustercockpit-labs/dcrunner/internal/ledger"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
	"github.com/clustercockpit-labs/dcrunner/internal/shutdown"
	"github.com/clustercockpit-labs/dcrunner/internal/taskgroup"
	"github.com/clustercockpit-labs/dcrunner/pkg/dclog"
	"github.com/clustercockpit-labs/dcrunner/pkg/schema"
)

// Server is the admin HTTP surface bound to one running task graph.
type Server struct {
	cfg     schema.AdminAPIConfig
	plan    *taskgroup.Plan
	reg     *plugin.Registry
	store   *ledger.Store // nil when the ledger is disabled
	coord   *shutdown.Coordinator
	httpSrv *http.Server
}

// New builds a Server. store may be nil if the ledger is disabled.
func New(cfg schema.AdminAPIConfig, plan *taskgroup.Plan, reg *plugin.Registry, store *ledger.Store, coord *shutdown.Coordinator) *Server {
	return &Server{cfg: cfg, plan: plan, reg: reg, store: store, coord: coord}
}

// @title dcrunner admin API
// @version 1.0
// @description Introspection and control surface for a running dcrunner task graph.
func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	api := r.PathPrefix("/").Subrouter()
	if s.cfg.JWTSecret != "" {
		api.Use(s.authMiddleware)
	}
	if s.cfg.RateLimitRPS > 0 {
		api.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(s.cfg.RateLimitRPS), int(s.cfg.RateLimitRPS)+1)))
	}

	api.HandleFunc("/tasks", s.handleTasks).Methods(http.MethodGet)
	api.HandleFunc("/plugins", s.handlePlugins).Methods(http.MethodGet)
	api.HandleFunc("/ledger/{groupID}", s.handleLedgerHistory).Methods(http.MethodGet)
	api.HandleFunc("/shutdown", s.handleShutdown).Methods(http.MethodPost)
	api.Handle("/metrics", metricsHandler())

	r.HandleFunc("/docs/doc.json", serveDocJSON).Methods(http.MethodGet)
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"))).Methods(http.MethodGet)

	r.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(false)))
	r.Use(handlers.CompressHandler)
	return r
}

// Start begins serving on cfg.Addr. It returns once the listener is
// bound; actual request handling happens on a background goroutine.
func (s *Server) Start() error {
	handler := handlers.CustomLoggingHandler(io.Discard, s.router(), func(_ io.Writer, params handlers.LogFormatterParams) {
		dclog.Debugf("adminapi: %s %s (%d, %dms)", params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, time.Since(params.TimeStamp).Milliseconds())
	})

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	s.httpSrv = &http.Server{
		Handler:      handler,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			dclog.Errorf("adminapi: server exited: %v", err)
		}
	}()
	dclog.Infof("adminapi: listening on %s", s.cfg.Addr)
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
}
