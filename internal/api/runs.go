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
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tombee/graphexec/internal/httputil"
	"github.com/tombee/graphexec/pkg/engine"
)

// RunsHandler serves run submission, inspection, and the event stream.
type RunsHandler struct {
	engine    *engine.Engine
	logger    *slog.Logger
	heartbeat time.Duration
}

// StartRunRequest is the body of POST /v1/runs.
type StartRunRequest struct {
	GraphID      string         `json:"graph_id"`
	InitialState map[string]any `json:"initial_state,omitempty"`
	Wait         bool           `json:"wait,omitempty"`
}

// handleStart handles POST /v1/runs. Without wait it returns 202 with the
// run id; with wait it blocks to the terminal status and returns the final
// snapshot with 200 — a failed run is still a successful request, matching
// what a poller would see.
func (h *RunsHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GraphID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "graph_id is required")
		return
	}

	runID, err := h.engine.StartRun(r.Context(), req.GraphID, req.InitialState, req.Wait)
	if err != nil && runID == "" {
		// The run never started: unknown graph.
		httputil.WriteErrorFrom(w, err)
		return
	}

	h.logger.Debug("run submitted", "run_id", runID, "graph_id", req.GraphID, "wait", req.Wait)

	if !req.Wait {
		httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
			"run_id": runID,
			"status": string(engine.StatusPending),
		})
		return
	}

	snap, snapErr := h.engine.Run(runID)
	if snapErr != nil {
		httputil.WriteErrorFrom(w, snapErr)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// handleList handles GET /v1/runs.
func (h *RunsHandler) handleList(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"runs": h.engine.Runs(),
	})
}

// handleGet handles GET /v1/runs/{id}.
func (h *RunsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Run(r.PathValue("id"))
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// handleEvents handles GET /v1/runs/{id}/events: an SSE stream that replays
// the existing log, then tails live events until the run is terminal. Slow
// consumers lose events rather than slowing the run.
func (h *RunsHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before snapshotting: a run that goes terminal in between is
	// then caught by the snapshot's status rather than by an event that was
	// published to nobody.
	events, err := h.engine.Subscribe(runID)
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}
	defer h.engine.Unsubscribe(runID, events)

	snap, err := h.engine.Run(runID)
	if err != nil {
		httputil.WriteErrorFrom(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, entry := range snap.Log {
		writeSSE(w, "log", entry)
	}
	flusher.Flush()

	if snap.Status.Terminal() {
		writeSSE(w, "done", map[string]string{"status": string(snap.Status)})
		flusher.Flush()
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			// SSE comment keeps idle connections alive through proxies.
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeSSE(w, string(ev.Type), ev)
			flusher.Flush()
			if ev.Type == engine.EventRunCompleted || ev.Type == engine.EventRunFailed {
				writeSSE(w, "done", map[string]string{"status": terminalStatus(ev.Type)})
				flusher.Flush()
				return
			}
		}
	}
}

func terminalStatus(t engine.EventType) string {
	if t == engine.EventRunFailed {
		return string(engine.StatusFailed)
	}
	return string(engine.StatusCompleted)
}

func writeSSE(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
