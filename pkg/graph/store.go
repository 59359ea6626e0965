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

package graph

import (
	"sort"
	"sync"

	"github.com/tombee/graphexec/pkg/errors"
)

// Store holds compiled graphs keyed by graph id. Only validated graphs reach
// a store; registration replaces any prior graph with the same id.
type Store interface {
	// Register inserts or replaces a compiled graph.
	Register(g *Graph) error

	// Get retrieves a graph by id.
	Get(id string) (*Graph, error)

	// List returns all registered graphs ordered by id.
	List() []*Graph
}

// MemoryStore is an in-memory implementation of Store. It is safe for
// concurrent use and holds graphs for the process lifetime; there is no
// eviction.
type MemoryStore struct {
	mu     sync.RWMutex
	graphs map[string]*Graph
}

// NewMemoryStore creates a new in-memory graph store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		graphs: make(map[string]*Graph),
	}
}

// Register inserts or replaces a graph. Overwriting an existing id is the
// documented re-registration behavior, not an error.
func (s *MemoryStore) Register(g *Graph) error {
	if g == nil || g.ID == "" {
		return &errors.ValidationError{
			Field:   "graph_id",
			Message: "cannot register a graph without an id",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[g.ID] = g
	return nil
}

// Get retrieves a graph by id.
func (s *MemoryStore) Get(id string) (*Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[id]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "graph", ID: id}
	}
	return g, nil
}

// List returns all registered graphs ordered by id.
func (s *MemoryStore) List() []*Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Graph, 0, len(s.graphs))
	for _, g := range s.graphs {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
