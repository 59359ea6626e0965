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

package watcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/graphexec/internal/log"
	"github.com/tombee/graphexec/pkg/graph"
)

type recordingRegistrar struct {
	mu   sync.Mutex
	defs []*graph.Definition
}

func (r *recordingRegistrar) RegisterGraph(def *graph.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = append(r.defs, def)
	return nil
}

func (r *recordingRegistrar) registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, def := range r.defs {
		ids = append(ids, def.GraphID)
	}
	return ids
}

const validGraphYAML = `graph_id: reloaded
start_at: A
nodes:
  - name: A
    type: tool
    config:
      tool: noop
`

func newTestWatcher(t *testing.T, dir string) (*Watcher, *recordingRegistrar) {
	t.Helper()
	reg := &recordingRegistrar{}
	logger := log.New(&log.Config{Level: "error", Format: log.FormatText, Output: io.Discard})
	w, err := New(dir, reg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w, reg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcherRegistersNewFile(t *testing.T) {
	dir := t.TempDir()
	w, reg := newTestWatcher(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "reloaded.yaml"), []byte(validGraphYAML), 0o644))

	waitFor(t, func() bool {
		for _, id := range reg.registered() {
			if id == "reloaded" {
				return true
			}
		}
		return false
	})
}

func TestWatcherIgnoresNonGraphFiles(t *testing.T) {
	dir := t.TempDir()
	w, reg := newTestWatcher(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# docs"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yaml"), []byte(validGraphYAML), 0o644))

	// Create and write events may both fire for the same file; every
	// registration must come from the graph file.
	waitFor(t, func() bool { return len(reg.registered()) > 0 })
	for _, id := range reg.registered() {
		assert.Equal(t, "reloaded", id)
	}
}

func TestWatcherSkipsInvalidGraph(t *testing.T) {
	dir := t.TempDir()
	w, reg := newTestWatcher(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("start_at: ghost\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yaml"), []byte(validGraphYAML), 0o644))

	waitFor(t, func() bool { return len(reg.registered()) > 0 })
	for _, id := range reg.registered() {
		assert.Equal(t, "reloaded", id)
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	logger := log.New(&log.Config{Level: "error", Format: log.FormatText, Output: io.Discard})
	_, err := New(filepath.Join(t.TempDir(), "nope"), &recordingRegistrar{}, logger)
	assert.Error(t, err)
}
