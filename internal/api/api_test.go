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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/graphexec/internal/log"
	"github.com/tombee/graphexec/pkg/engine"
	"github.com/tombee/graphexec/pkg/graph"
	"github.com/tombee/graphexec/pkg/tools"
)

const doubleGraphJSON = `{
	"graph_id": "double-until-ten",
	"start_at": "A",
	"nodes": [
		{"name": "A", "type": "tool", "next": "B", "config": {"tool": "double"}},
		{"name": "B", "type": "conditional", "config": {"key": "x", "op": ">=", "value": 10, "on_false": "A"}}
	]
}`

func newTestRouter(t *testing.T, opts ...Option) (*Router, *engine.Engine) {
	t.Helper()
	logger := log.New(&log.Config{Level: "error", Format: log.FormatText, Output: io.Discard})
	eng := engine.New(graph.NewMemoryStore(), tools.NewRegistry(), engine.WithLogger(logger))
	eng.Tools().Register("double", func(ctx context.Context, state map[string]any) (map[string]any, error) {
		x, _ := state["x"].(float64)
		return map[string]any{"x": x * 2}, nil
	})
	opts = append([]Option{WithLogger(logger)}, opts...)
	return NewRouter(eng, opts...), eng
}

func doRequest(router *Router, method, path, contentType string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterGraphJSON(t *testing.T) {
	router, eng := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/v1/graphs", "application/json", doubleGraphJSON)
	require.Equal(t, http.StatusCreated, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "double-until-ten", body["graph_id"])

	_, err := eng.Graph("double-until-ten")
	assert.NoError(t, err)
}

func TestRegisterGraphYAML(t *testing.T) {
	router, _ := newTestRouter(t)

	yamlBody := `
graph_id: hello
start_at: A
nodes:
  - name: A
    type: tool
    config:
      tool: double
`
	w := doRequest(router, http.MethodPost, "/v1/graphs", "application/yaml", yamlBody)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRegisterGraphValidationError(t *testing.T) {
	router, _ := newTestRouter(t)

	bad := `{"graph_id": "bad", "start_at": "ghost", "nodes": [{"name": "A", "type": "tool"}]}`
	w := doRequest(router, http.MethodPost, "/v1/graphs", "application/json", bad)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "start_at")
}

func TestGetGraph(t *testing.T) {
	router, _ := newTestRouter(t)
	doRequest(router, http.MethodPost, "/v1/graphs", "application/json", doubleGraphJSON)

	w := doRequest(router, http.MethodGet, "/v1/graphs/double-until-ten", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var def graph.Definition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &def))
	assert.Equal(t, "double-until-ten", def.GraphID)
	assert.Len(t, def.Nodes, 2)

	w = doRequest(router, http.MethodGet, "/v1/graphs/ghost", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListGraphs(t *testing.T) {
	router, _ := newTestRouter(t)
	doRequest(router, http.MethodPost, "/v1/graphs", "application/json", doubleGraphJSON)

	w := doRequest(router, http.MethodGet, "/v1/graphs", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Graphs []graph.Definition `json:"graphs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Graphs, 1)
}

func TestStartRunAccepted(t *testing.T) {
	router, eng := newTestRouter(t)
	doRequest(router, http.MethodPost, "/v1/graphs", "application/json", doubleGraphJSON)

	w := doRequest(router, http.MethodPost, "/v1/runs", "application/json",
		`{"graph_id": "double-until-ten", "initial_state": {"x": 3}}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body["run_id"])

	snap, err := eng.AwaitRun(context.Background(), body["run_id"])
	require.NoError(t, err)
	assert.Equal(t, engine.StatusCompleted, snap.Status)
	assert.Equal(t, float64(12), snap.State["x"])
}

func TestStartRunWait(t *testing.T) {
	router, _ := newTestRouter(t)
	doRequest(router, http.MethodPost, "/v1/graphs", "application/json", doubleGraphJSON)

	w := doRequest(router, http.MethodPost, "/v1/runs", "application/json",
		`{"graph_id": "double-until-ten", "initial_state": {"x": 3}, "wait": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var snap engine.RunSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, engine.StatusCompleted, snap.Status)
	assert.Equal(t, float64(12), snap.State["x"])
	assert.NotEmpty(t, snap.Log)
}

func TestStartRunWaitFailureStill200(t *testing.T) {
	router, _ := newTestRouter(t)
	doRequest(router, http.MethodPost, "/v1/graphs", "application/json",
		`{"graph_id": "broken", "start_at": "A", "nodes": [{"name": "A", "type": "tool", "config": {"tool": "missing"}}]}`)

	w := doRequest(router, http.MethodPost, "/v1/runs", "application/json",
		`{"graph_id": "broken", "wait": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var snap engine.RunSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, engine.StatusFailed, snap.Status)
	assert.Contains(t, snap.Error, "missing")
}

func TestStartRunUnknownGraph(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doRequest(router, http.MethodPost, "/v1/runs", "application/json", `{"graph_id": "ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartRunBadRequest(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/v1/runs", "application/json", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPost, "/v1/runs", "application/json", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRun(t *testing.T) {
	router, eng := newTestRouter(t)
	doRequest(router, http.MethodPost, "/v1/graphs", "application/json", doubleGraphJSON)

	runID, err := eng.StartRun(context.Background(), "double-until-ten", map[string]any{"x": float64(3)}, true)
	require.NoError(t, err)

	w := doRequest(router, http.MethodGet, "/v1/runs/"+runID, "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap engine.RunSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, runID, snap.RunID)

	w = doRequest(router, http.MethodGet, "/v1/runs/ghost", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doRequest(router, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestEventsReplayTerminalRun(t *testing.T) {
	router, eng := newTestRouter(t)
	doRequest(router, http.MethodPost, "/v1/graphs", "application/json", doubleGraphJSON)

	runID, err := eng.StartRun(context.Background(), "double-until-ten", map[string]any{"x": float64(3)}, true)
	require.NoError(t, err)

	w := doRequest(router, http.MethodGet, "/v1/runs/"+runID+"/events", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: log")
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, `"status":"completed"`)
}

func TestEventsNotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doRequest(router, http.MethodGet, "/v1/runs/ghost/events", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventsLiveStream(t *testing.T) {
	router, eng := newTestRouter(t)
	gate := make(chan struct{})
	eng.Tools().Register("block", func(ctx context.Context, state map[string]any) (map[string]any, error) {
		<-gate
		return map[string]any{"ok": true}, nil
	})
	doRequest(router, http.MethodPost, "/v1/graphs", "application/json",
		`{"graph_id": "blocking", "start_at": "A", "nodes": [{"name": "A", "type": "tool", "config": {"tool": "block"}}]}`)

	server := httptest.NewServer(router)
	defer server.Close()

	runID, err := eng.StartRun(context.Background(), "blocking", nil, false)
	require.NoError(t, err)

	resp, err := http.Get(server.URL + "/v1/runs/" + runID + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	close(gate)

	var sawDone bool
	scanner := bufio.NewScanner(resp.Body)
	deadline := time.After(5 * time.Second)
	lines := make(chan string)
	go func() {
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()
scan:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break scan
			}
			if strings.HasPrefix(line, "event: done") {
				sawDone = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for done event")
		}
	}
	assert.True(t, sawDone)
}
