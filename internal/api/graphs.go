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

package api

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tombee/graphexec/internal/httputil"
	"github.com/tombee/graphexec/pkg/engine"
	"github.com/tombee/graphexec/pkg/graph"
)

// GraphsHandler serves graph registration and inspection.
type GraphsHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// handleRegister handles POST /v1/graphs. The body is a graph definition in
// JSON, or YAML when the Content-Type says so. Re-registering a graph_id
// overwrites the previous graph.
func (h *GraphsHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var def *graph.Definition
	if isYAML(r.Header.Get("Content-Type")) {
		def, err = graph.ParseDefinition(body)
	} else {
		def, err = graph.ParseJSON(body)
	}
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.RegisterGraph(def); err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}

	h.logger.Info("graph registered", "graph_id", def.GraphID, "nodes", len(def.Nodes))
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"graph_id": def.GraphID,
	})
}

// handleList handles GET /v1/graphs.
func (h *GraphsHandler) handleList(w http.ResponseWriter, _ *http.Request) {
	graphs := h.engine.Graphs()
	defs := make([]*graph.Definition, len(graphs))
	for i, g := range graphs {
		defs[i] = g.Definition()
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"graphs": defs,
	})
}

// handleGet handles GET /v1/graphs/{id}.
func (h *GraphsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	g, err := h.engine.Graph(r.PathValue("id"))
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g.Definition())
}

func isYAML(contentType string) bool {
	return strings.Contains(contentType, "yaml") || strings.Contains(contentType, "yml")
}
