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

// Package graph defines workflow graph definitions: declarative node graphs
// of tool invocations, conditional branches, and bounded loops. A definition
// is validated and compiled once at registration; execution never re-parses
// node configuration.
package graph

import (
	"encoding/json"
	"fmt"

	"github.com/tombee/graphexec/pkg/errors"
	"gopkg.in/yaml.v3"
)

// NodeType identifies the kind of work a node performs.
type NodeType string

const (
	// NodeTypeTool invokes a registered tool and merges its result into the
	// run's state bag.
	NodeTypeTool NodeType = "tool"
	// NodeTypeConditional routes to on_true/on_false based on a comparison
	// against the state bag.
	NodeTypeConditional NodeType = "conditional"
	// NodeTypeLoop repeatedly routes to its body while a comparison holds,
	// bounded by max_iterations.
	NodeTypeLoop NodeType = "loop"
)

// DefaultMaxIterations bounds loop nodes that do not set max_iterations.
const DefaultMaxIterations = 25

// DefaultOp is the comparison operator used when a conditional or loop node
// omits "op".
const DefaultOp = "=="

// Definition is a declarative workflow graph. It may contain cycles: loop
// nodes and conditional back-edges are the intended way to express them.
type Definition struct {
	GraphID string           `yaml:"graph_id" json:"graph_id"`
	StartAt string           `yaml:"start_at" json:"start_at"`
	Nodes   []NodeDefinition `yaml:"nodes" json:"nodes"`
}

// NodeDefinition is a single node in a graph. Config carries the
// type-specific payload and is decoded exactly once, at compile time.
type NodeDefinition struct {
	Name   string         `yaml:"name" json:"name"`
	Type   NodeType       `yaml:"type" json:"type"`
	Next   string         `yaml:"next,omitempty" json:"next,omitempty"`
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// ToolConfig is the decoded configuration of a tool node.
type ToolConfig struct {
	// Tool is the registered tool name to invoke. Required; absence is a
	// dispatch-time config error, not a validation error.
	Tool string
}

// ConditionalConfig is the decoded configuration of a conditional node.
type ConditionalConfig struct {
	Key     string
	Op      string
	Value   any
	OnTrue  string
	OnFalse string
}

// LoopConfig is the decoded configuration of a loop node.
type LoopConfig struct {
	Key           string
	Op            string
	Value         any
	Body          string
	After         string
	MaxIterations int
}

// Node is a compiled node: the raw config decoded into exactly one of the
// typed payloads according to the node type.
type Node struct {
	Name string
	Type NodeType
	Next string

	Tool        *ToolConfig
	Conditional *ConditionalConfig
	Loop        *LoopConfig
}

// Graph is a validated, compiled definition ready for execution. It is
// immutable after Compile.
type Graph struct {
	ID      string
	StartAt string
	nodes   map[string]*Node
	def     *Definition
}

// Node returns the compiled node with the given name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Definition returns the definition this graph was compiled from.
func (g *Graph) Definition() *Definition { return g.def }

// ParseDefinition parses a graph definition from YAML bytes. JSON is a subset
// of YAML, so JSON payloads decode through the same path.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse graph definition: %w", err)
	}
	return &def, nil
}

// ParseJSON parses a graph definition from JSON bytes.
func ParseJSON(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse graph definition: %w", err)
	}
	return &def, nil
}

// Validate checks structural integrity and reports the first violation found:
// missing graph_id, unknown start_at, duplicate node name, or a dangling
// next/on_true/on_false/body/after reference.
func (d *Definition) Validate() error {
	if d.GraphID == "" {
		return &errors.ValidationError{
			Field:      "graph_id",
			Message:    "graph_id is required",
			Suggestion: "add a unique graph_id to the definition",
		}
	}

	if len(d.Nodes) == 0 {
		return &errors.ValidationError{
			Field:      "nodes",
			Message:    "graph must have at least one node",
			Suggestion: "add at least one node to the definition",
		}
	}

	names := make(map[string]bool, len(d.Nodes))
	for _, node := range d.Nodes {
		if node.Name == "" {
			return &errors.ValidationError{
				Field:      "name",
				Message:    "node name is required",
				Suggestion: "add a 'name' field to each node",
			}
		}
		if names[node.Name] {
			return &errors.ValidationError{
				Field:      "name",
				Message:    fmt.Sprintf("duplicate node name: %s", node.Name),
				Suggestion: "ensure each node has a unique name",
			}
		}
		names[node.Name] = true

		switch node.Type {
		case NodeTypeTool, NodeTypeConditional, NodeTypeLoop:
		default:
			return &errors.ValidationError{
				Field:      "type",
				Message:    fmt.Sprintf("node %q has unsupported type %q", node.Name, node.Type),
				Suggestion: "use one of: tool, conditional, loop",
			}
		}
	}

	if !names[d.StartAt] {
		return &errors.ValidationError{
			Field:      "start_at",
			Message:    fmt.Sprintf("start_at node %q is not defined", d.StartAt),
			Suggestion: "set start_at to the name of an existing node",
		}
	}

	for _, node := range d.Nodes {
		if node.Next != "" && !names[node.Next] {
			return &errors.ValidationError{
				Field:      "next",
				Message:    fmt.Sprintf("node %q references unknown next node %q", node.Name, node.Next),
				Suggestion: "point next at an existing node or remove it",
			}
		}

		refKeys := nodeReferenceKeys(node.Type)
		for _, key := range refKeys {
			target, ok := configString(node.Config, key)
			if !ok {
				continue
			}
			if target != "" && !names[target] {
				return &errors.ValidationError{
					Field:      key,
					Message:    fmt.Sprintf("node %q references unknown node %q in %s", node.Name, target, key),
					Suggestion: fmt.Sprintf("point %s at an existing node or remove it", key),
				}
			}
		}
	}

	return nil
}

// nodeReferenceKeys lists the config keys of a node type that name other nodes.
func nodeReferenceKeys(t NodeType) []string {
	switch t {
	case NodeTypeConditional:
		return []string{"on_true", "on_false"}
	case NodeTypeLoop:
		return []string{"body", "after"}
	default:
		return nil
	}
}

// Compile validates the definition and decodes each node's raw config into
// its typed payload. Required config fields (tool, key, body) are deferred to
// dispatch time: their absence terminates a run with a config error rather
// than failing registration.
func (d *Definition) Compile() (*Graph, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	nodes := make(map[string]*Node, len(d.Nodes))
	for _, nd := range d.Nodes {
		node := &Node{
			Name: nd.Name,
			Type: nd.Type,
			Next: nd.Next,
		}

		switch nd.Type {
		case NodeTypeTool:
			tool, _ := configString(nd.Config, "tool")
			node.Tool = &ToolConfig{Tool: tool}

		case NodeTypeConditional:
			cfg := &ConditionalConfig{Op: DefaultOp}
			if key, ok := configString(nd.Config, "key"); ok {
				cfg.Key = key
			}
			if op, ok := configString(nd.Config, "op"); ok {
				cfg.Op = op
			}
			cfg.Value = nd.Config["value"]
			cfg.OnTrue, _ = configString(nd.Config, "on_true")
			cfg.OnFalse, _ = configString(nd.Config, "on_false")
			node.Conditional = cfg

		case NodeTypeLoop:
			cfg := &LoopConfig{Op: DefaultOp, MaxIterations: DefaultMaxIterations}
			if key, ok := configString(nd.Config, "key"); ok {
				cfg.Key = key
			}
			if op, ok := configString(nd.Config, "op"); ok {
				cfg.Op = op
			}
			cfg.Value = nd.Config["value"]
			cfg.Body, _ = configString(nd.Config, "body")
			cfg.After, _ = configString(nd.Config, "after")
			if max, ok := configInt(nd.Config, "max_iterations"); ok {
				cfg.MaxIterations = max
			}
			node.Loop = cfg
		}

		nodes[nd.Name] = node
	}

	defCopy := *d
	return &Graph{
		ID:      d.GraphID,
		StartAt: d.StartAt,
		nodes:   nodes,
		def:     &defCopy,
	}, nil
}

// configString reads a string-valued config key. The bool reports whether the
// key was present with a usable value.
func configString(config map[string]any, key string) (string, bool) {
	if config == nil {
		return "", false
	}
	v, ok := config[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// configInt reads an integer-valued config key, tolerating the numeric types
// YAML and JSON decoders produce.
func configInt(config map[string]any, key string) (int, bool) {
	if config == nil {
		return 0, false
	}
	switch v := config[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
