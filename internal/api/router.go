// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api is the HTTP surface of graphexecd: graph registration, run
// submission and inspection, and an SSE live tail of run events.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tombee/graphexec/internal/httputil"
	"github.com/tombee/graphexec/pkg/engine"
)

// Router dispatches API requests to handlers.
type Router struct {
	mux       *http.ServeMux
	engine    *engine.Engine
	logger    *slog.Logger
	heartbeat time.Duration
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// WithHeartbeat sets the SSE heartbeat interval for event streams.
func WithHeartbeat(interval time.Duration) Option {
	return func(r *Router) {
		if interval > 0 {
			r.heartbeat = interval
		}
	}
}

// NewRouter creates the API router over an engine.
func NewRouter(eng *engine.Engine, opts ...Option) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		engine:    eng,
		logger:    slog.Default(),
		heartbeat: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}

	graphs := &GraphsHandler{engine: eng, logger: r.logger}
	runs := &RunsHandler{engine: eng, logger: r.logger, heartbeat: r.heartbeat}

	r.mux.HandleFunc("POST /v1/graphs", graphs.handleRegister)
	r.mux.HandleFunc("GET /v1/graphs", graphs.handleList)
	r.mux.HandleFunc("GET /v1/graphs/{id}", graphs.handleGet)

	r.mux.HandleFunc("POST /v1/runs", runs.handleStart)
	r.mux.HandleFunc("GET /v1/runs", runs.handleList)
	r.mux.HandleFunc("GET /v1/runs/{id}", runs.handleGet)
	r.mux.HandleFunc("GET /v1/runs/{id}/events", runs.handleEvents)

	r.mux.HandleFunc("GET /healthz", r.handleHealth)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	return r
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"graphs": len(r.engine.Graphs()),
	})
}
