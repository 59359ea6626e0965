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

// Package engine executes workflow graphs. Each run is one goroutine walking
// the graph against a mutable state bag, appending a strictly ordered
// execution log and fanning out live events to subscribers. Runs are retained
// in memory for the process lifetime.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/graphexec/internal/log"
	"github.com/tombee/graphexec/pkg/errors"
	"github.com/tombee/graphexec/pkg/graph"
	"github.com/tombee/graphexec/pkg/tools"
)

const tracerName = "github.com/tombee/graphexec/pkg/engine"

// Engine owns the graph store, the tool registry, and the run registry, and
// interprets graphs against per-run state.
type Engine struct {
	graphs graph.Store
	tools  *tools.Registry
	logger *slog.Logger
	tracer trace.Tracer

	subscriberBuffer int

	mu   sync.Mutex
	runs map[string]*run
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithSubscriberBuffer overrides the event channel capacity handed to new
// subscribers.
func WithSubscriberBuffer(n int) Option {
	return func(e *Engine) { e.subscriberBuffer = n }
}

// New creates an engine over the given graph store and tool registry.
func New(graphs graph.Store, registry *tools.Registry, opts ...Option) *Engine {
	e := &Engine{
		graphs:           graphs,
		tools:            registry,
		logger:           slog.Default(),
		tracer:           otel.Tracer(tracerName),
		subscriberBuffer: DefaultSubscriberBuffer,
		runs:             make(map[string]*run),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tools returns the engine's tool registry.
func (e *Engine) Tools() *tools.Registry { return e.tools }

// RegisterGraph validates, compiles, and stores a graph definition.
// Re-registering a graph_id overwrites the previous graph.
func (e *Engine) RegisterGraph(def *graph.Definition) error {
	g, err := def.Compile()
	if err != nil {
		return err
	}
	return e.graphs.Register(g)
}

// Graph returns the compiled graph with the given id.
func (e *Engine) Graph(id string) (*graph.Graph, error) {
	return e.graphs.Get(id)
}

// Graphs lists all registered graphs.
func (e *Engine) Graphs() []*graph.Graph {
	return e.graphs.List()
}

// StartRun creates a run of the named graph against the initial state and
// starts it on its own goroutine. With wait=false it returns the run id
// immediately; with wait=true it blocks until the run is terminal and
// returns the run's failure, if any, directly.
//
// The run itself is never cancelled: ctx bounds only the wait. Tools receive
// a context detached from the caller's.
func (e *Engine) StartRun(ctx context.Context, graphID string, initial map[string]any, wait bool) (string, error) {
	g, err := e.graphs.Get(graphID)
	if err != nil {
		return "", err
	}

	r := newRun(uuid.NewString(), graphID, initial)
	e.mu.Lock()
	e.runs[r.id] = r
	e.mu.Unlock()

	go e.execute(context.WithoutCancel(ctx), r, g)

	if wait {
		select {
		case <-r.done:
			return r.id, r.failure()
		case <-ctx.Done():
			return r.id, ctx.Err()
		}
	}
	return r.id, nil
}

// AwaitRun blocks until the run is terminal and returns its final snapshot
// together with its failure, if any. Awaiting an already-terminal run returns
// immediately; any number of waiters are released together.
func (e *Engine) AwaitRun(ctx context.Context, runID string) (*RunSnapshot, error) {
	r, err := e.run(runID)
	if err != nil {
		return nil, err
	}
	select {
	case <-r.done:
		return r.snapshot(), r.failure()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run returns a point-in-time snapshot of the run.
func (e *Engine) Run(runID string) (*RunSnapshot, error) {
	r, err := e.run(runID)
	if err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

// Runs lists snapshots of all known runs.
func (e *Engine) Runs() []*RunSnapshot {
	e.mu.Lock()
	runs := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		runs = append(runs, r)
	}
	e.mu.Unlock()

	snaps := make([]*RunSnapshot, len(runs))
	for i, r := range runs {
		snaps[i] = r.snapshot()
	}
	return snaps
}

// Subscribe registers a bounded event channel on the run. Subscribing to a
// terminal run succeeds; callers should fetch a snapshot to observe the final
// record.
func (e *Engine) Subscribe(runID string) (chan Event, error) {
	r, err := e.run(runID)
	if err != nil {
		return nil, err
	}
	return r.subscribe(e.subscriberBuffer), nil
}

// Unsubscribe removes a subscriber channel and closes it. It is idempotent;
// unknown runs and already-removed channels are no-ops.
func (e *Engine) Unsubscribe(runID string, ch chan Event) {
	r, err := e.run(runID)
	if err != nil {
		return
	}
	r.unsubscribe(ch)
}

func (e *Engine) run(runID string) (*run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[runID]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "run", ID: runID}
	}
	return r, nil
}

// execute drives one run from start node to terminal status. All dispatch
// failures surface here: the run is marked failed with an error log entry and
// a run_failed event, never panicked or retried.
func (e *Engine) execute(ctx context.Context, r *run, g *graph.Graph) {
	ctx, span := e.tracer.Start(ctx, "engine.run", trace.WithAttributes(
		attribute.String("run.id", r.id),
		attribute.String("graph.id", r.graphID),
	))
	defer span.End()

	logger := log.WithRun(e.logger, r.id, r.graphID)
	start := time.Now()
	runsStarted.Inc()
	activeRuns.Inc()
	defer activeRuns.Dec()

	r.begin(g.StartAt)
	logger.Info("run started", log.NodeKey, g.StartAt)
	r.publish(Event{
		Type:      EventRunStarted,
		RunID:     r.id,
		State:     r.stateSnapshot(),
		Timestamp: time.Now(),
	})

	err := e.interpret(ctx, r, g, logger)

	duration := time.Since(start)
	runDuration.Observe(duration.Seconds())

	if err != nil {
		r.fail(err)
		runsCompleted.WithLabelValues(string(StatusFailed)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("run failed",
			"error", err,
			log.DurationKey, duration.Milliseconds(),
		)
		r.publish(Event{
			Type:      EventRunFailed,
			RunID:     r.id,
			State:     r.stateSnapshot(),
			Error:     err.Error(),
			Timestamp: time.Now(),
		})
	} else {
		final := r.complete()
		runsCompleted.WithLabelValues(string(StatusCompleted)).Inc()
		logger.Info("run completed", log.DurationKey, duration.Milliseconds())
		r.publish(Event{
			Type:      EventRunCompleted,
			RunID:     r.id,
			State:     final,
			Timestamp: time.Now(),
		})
	}

	close(r.done)
}

// interpret is the main loop: while the run has a current node, log the start
// phase, dispatch, log the end phase, advance. An empty successor terminates
// the run.
func (e *Engine) interpret(ctx context.Context, r *run, g *graph.Graph, logger *slog.Logger) error {
	for {
		name := r.current()
		if name == "" {
			return nil
		}

		node, ok := g.Node(name)
		if !ok {
			// Validation rules this out for compiled graphs.
			return &errors.ConfigError{
				Key:    "next",
				Reason: fmt.Sprintf("graph %q has no node %q", g.ID, name),
			}
		}

		r.appendLog(name, PhaseStart, "")
		r.publish(Event{
			Type:      EventNodeStart,
			RunID:     r.id,
			Node:      name,
			State:     r.stateSnapshot(),
			Timestamp: time.Now(),
		})
		logger.Debug("node start", log.NodeKey, name, "type", string(node.Type))

		successor, err := e.dispatch(ctx, r, node)
		if err != nil {
			return err
		}
		nodeExecutions.WithLabelValues(string(node.Type)).Inc()

		r.appendLog(name, PhaseEnd, "")
		r.publish(Event{
			Type:      EventNodeEnd,
			RunID:     r.id,
			Node:      name,
			State:     r.stateSnapshot(),
			Timestamp: time.Now(),
		})
		logger.Debug("node end", log.NodeKey, name, "next", successor)

		r.setCurrent(successor)
	}
}

// dispatch executes one node and returns the successor node name. An empty
// successor means the run is complete.
func (e *Engine) dispatch(ctx context.Context, r *run, node *graph.Node) (string, error) {
	ctx, span := e.tracer.Start(ctx, "engine.node", trace.WithAttributes(
		attribute.String("node.name", node.Name),
		attribute.String("node.type", string(node.Type)),
	))
	defer span.End()

	successor, err := e.dispatchNode(ctx, r, node)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return successor, err
}

func (e *Engine) dispatchNode(ctx context.Context, r *run, node *graph.Node) (string, error) {
	switch node.Type {
	case graph.NodeTypeTool:
		return e.dispatchTool(ctx, r, node)
	case graph.NodeTypeConditional:
		return e.dispatchConditional(r, node)
	case graph.NodeTypeLoop:
		return e.dispatchLoop(r, node)
	default:
		return "", &errors.ConfigError{
			Key:    "type",
			Reason: fmt.Sprintf("node %q has unsupported type %q", node.Name, node.Type),
		}
	}
}

// dispatchTool invokes the configured tool against a snapshot of the state
// bag and merges the returned keys shallowly. The snapshot keeps the
// single-writer invariant: a tool never holds a reference into live state.
func (e *Engine) dispatchTool(ctx context.Context, r *run, node *graph.Node) (string, error) {
	if node.Tool == nil || node.Tool.Tool == "" {
		return "", &errors.ConfigError{
			Key:    "tool",
			Reason: fmt.Sprintf("tool node %q has no tool configured", node.Name),
		}
	}

	update, err := e.tools.Invoke(ctx, node.Tool.Tool, r.stateSnapshot())
	if err != nil {
		return "", err
	}
	r.mergeState(update)
	return node.Next, nil
}

func (e *Engine) dispatchConditional(r *run, node *graph.Node) (string, error) {
	cfg := node.Conditional
	if cfg.Key == "" {
		return "", &errors.ConfigError{
			Key:    "key",
			Reason: fmt.Sprintf("conditional node %q has no key configured", node.Name),
		}
	}

	passed, err := Compare(r.stateValue(cfg.Key), cfg.Op, cfg.Value)
	if err != nil {
		return "", err
	}
	if passed {
		return cfg.OnTrue, nil
	}
	if cfg.OnFalse != "" {
		return cfg.OnFalse, nil
	}
	return node.Next, nil
}

// dispatchLoop routes to the body while the condition holds, bounded by
// max_iterations. Hitting the bound with the condition still true forces the
// after branch; a safety valve, not a failure.
func (e *Engine) dispatchLoop(r *run, node *graph.Node) (string, error) {
	cfg := node.Loop
	if cfg.Key == "" {
		return "", &errors.ConfigError{
			Key:    "key",
			Reason: fmt.Sprintf("loop node %q has no key configured", node.Name),
		}
	}
	if cfg.Body == "" {
		return "", &errors.ConfigError{
			Key:    "body",
			Reason: fmt.Sprintf("loop node %q has no body configured", node.Name),
		}
	}

	keepLooping, err := Compare(r.stateValue(cfg.Key), cfg.Op, cfg.Value)
	if err != nil {
		return "", err
	}

	if keepLooping {
		if r.loopCount(node.Name) >= cfg.MaxIterations {
			return cfg.After, nil
		}
		r.incrementLoop(node.Name)
		return cfg.Body, nil
	}
	if cfg.After != "" {
		return cfg.After, nil
	}
	return node.Next, nil
}
