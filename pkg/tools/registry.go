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

// Package tools provides the registry of callables invocable from tool nodes.
//
// A tool is an externally supplied function named at registration time. It
// receives a read view of the run's state bag and returns a partial update to
// merge back; the engine owns the merge. Tools are the boundary to arbitrary
// external work and the only suspension point of a run, so they receive the
// run's context for cooperative cancellation of whatever they call out to.
package tools

import (
	"context"
	"sort"
	"sync"

	"github.com/tombee/graphexec/pkg/errors"
)

// Func is an executable tool. The returned map is merged shallowly into the
// run's state bag (returned keys overwrite existing keys); returning nil is a
// no-op. Returning an error terminates the run.
type Func func(ctx context.Context, state map[string]any) (map[string]any, error)

// Registry maintains a collection of registered tools. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Func
	descs map[string]string
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Func),
		descs: make(map[string]string),
	}
}

// Register binds a name to a tool. Re-registration overwrites the prior
// binding; graphs always resolve the newest tool at dispatch time.
func (r *Registry) Register(name string, fn Func) {
	r.RegisterWithDescription(name, "", fn)
}

// RegisterWithDescription binds a name to a tool along with a human-readable
// description used by listing surfaces.
func (r *Registry) RegisterWithDescription(name, description string, fn Func) {
	if name == "" || fn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = fn
	r.descs[name] = description
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tools[name]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "tool", ID: name}
	}
	return fn, nil
}

// Has checks if a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

// List returns all registered tool names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the description registered for a tool name.
func (r *Registry) Describe(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.descs[name]
}

// Invoke runs the named tool against the given state bag and returns its
// partial update. The tool runs on the calling goroutine: each run owns a
// goroutine, so a slow tool stalls only its own run. A nil update means the
// tool had nothing to merge.
func (r *Registry) Invoke(ctx context.Context, name string, state map[string]any) (map[string]any, error) {
	fn, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	update, err := fn(ctx, state)
	if err != nil {
		return nil, &errors.ToolError{Tool: name, Cause: err}
	}
	return update, nil
}
