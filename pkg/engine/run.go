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

package engine

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a run. Terminal statuses are absorbing.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is completed or failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Phase marks which side of a node dispatch a log entry records.
type Phase string

const (
	PhaseStart Phase = "start"
	PhaseEnd   Phase = "end"
	PhaseError Phase = "error"
)

// LogEntry records one phase of one node visit together with a deep snapshot
// of the state bag at that instant. Entries are append-only and immutable
// once appended.
type LogEntry struct {
	Node      string         `json:"node"`
	Phase     Phase          `json:"phase"`
	Detail    string         `json:"detail,omitempty"`
	State     map[string]any `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
}

// run is the mutable per-execution record. Only the run's own goroutine
// writes state, log, currentNode, loopCounts, and status; mu makes those
// writes visible to snapshot readers. The subscriber set has its own lock and
// may be modified concurrently with execution.
type run struct {
	id      string
	graphID string

	mu          sync.RWMutex
	status      Status
	state       map[string]any
	currentNode string
	log         []LogEntry
	loopCounts  map[string]int
	err         error
	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time

	subMu sync.Mutex
	subs  map[chan Event]struct{}

	// done is closed exactly once, after the terminal status, error, and
	// final log entry are in place.
	done chan struct{}
}

// RunSnapshot is an immutable deep copy of a run for external access. It
// holds no aliases to the run's mutable state.
type RunSnapshot struct {
	RunID       string         `json:"run_id"`
	GraphID     string         `json:"graph_id"`
	Status      Status         `json:"status"`
	State       map[string]any `json:"state"`
	CurrentNode string         `json:"current_node,omitempty"`
	Log         []LogEntry     `json:"log"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

func newRun(id, graphID string, initial map[string]any) *run {
	state := cloneState(initial)
	if state == nil {
		state = map[string]any{}
	}
	return &run{
		id:         id,
		graphID:    graphID,
		status:     StatusPending,
		state:      state,
		loopCounts: make(map[string]int),
		subs:       make(map[chan Event]struct{}),
		createdAt:  time.Now(),
		done:       make(chan struct{}),
	}
}

// begin moves the run to running and positions it at the start node.
func (r *run) begin(startAt string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.status = StatusRunning
	r.startedAt = &now
	r.currentNode = startAt
}

func (r *run) current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentNode
}

func (r *run) setCurrent(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentNode = node
}

func (r *run) stateValue(key string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[key]
}

// stateSnapshot returns a deep copy of the state bag.
func (r *run) stateSnapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneState(r.state)
}

// mergeState shallowly merges a tool's partial update into the state bag;
// returned keys overwrite existing keys, nil is a no-op.
func (r *run) mergeState(update map[string]any) {
	if len(update) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range update {
		r.state[k] = v
	}
}

func (r *run) loopCount(node string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loopCounts[node]
}

func (r *run) incrementLoop(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loopCounts[node]++
}

// appendLog records a phase of the named node with a snapshot of the state
// bag at this instant.
func (r *run) appendLog(node string, phase Phase, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, LogEntry{
		Node:      node,
		Phase:     phase,
		Detail:    detail,
		State:     cloneState(r.state),
		Timestamp: time.Now(),
	})
}

// complete marks the run completed and returns the final state snapshot.
func (r *run) complete() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.status = StatusCompleted
	r.completedAt = &now
	return cloneState(r.state)
}

// fail marks the run failed, stores the error for waiters, and appends the
// error log entry carrying the message and the last known state.
func (r *run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.status = StatusFailed
	r.completedAt = &now
	r.err = err
	r.log = append(r.log, LogEntry{
		Node:      r.currentNode,
		Phase:     PhaseError,
		Detail:    err.Error(),
		State:     cloneState(r.state),
		Timestamp: now,
	})
}

// failure returns the stored terminal error, if any.
func (r *run) failure() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// snapshot produces an immutable deep copy of the run. Where status and
// currentNode are read mid-run the combination is a consistent point-in-time
// view under the run lock.
func (r *run) snapshot() *RunSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &RunSnapshot{
		RunID:       r.id,
		GraphID:     r.graphID,
		Status:      r.status,
		State:       cloneState(r.state),
		CurrentNode: r.currentNode,
		CreatedAt:   r.createdAt,
		StartedAt:   r.startedAt,
		CompletedAt: r.completedAt,
	}
	if r.err != nil {
		snap.Error = r.err.Error()
	}
	// Log entries are immutable once appended; copying the slice is enough.
	snap.Log = make([]LogEntry, len(r.log))
	copy(snap.Log, r.log)
	return snap
}

// cloneState deep-copies a state bag, recursing into nested maps and slices.
// Scalar values are copied as-is.
func cloneState(state map[string]any) map[string]any {
	if state == nil {
		return nil
	}
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneState(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
