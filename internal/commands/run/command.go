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

// Package run implements the `graphexec run` command: in-process execution
// of a single graph file against the builtin toolset.
package run

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/graphexec/internal/log"
	"github.com/tombee/graphexec/pkg/engine"
	"github.com/tombee/graphexec/pkg/graph"
	"github.com/tombee/graphexec/pkg/tools"
	"github.com/tombee/graphexec/pkg/tools/builtin"
)

// NewCommand creates the run command.
func NewCommand() *cobra.Command {
	var (
		inputs []string
		wait   bool
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "run <graph-file>",
		Short: "Execute a graph file locally",
		Long: `Run loads a graph definition from a YAML or JSON file and executes it
in-process against the builtin toolset. Initial state keys are supplied with
repeated --input flags; values parse as JSON where possible and fall back to
plain strings.`,
		Example: `  # Run a graph with initial state
  graphexec run review.yaml --input code="def f():\n  pass"

  # Numeric values parse as numbers
  graphexec run double.yaml --input x=3

  # Print events as they happen
  graphexec run review.yaml --follow`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args[0], inputs, wait, follow)
		},
	}

	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "Initial state entry as key=value (repeatable)")
	cmd.Flags().BoolVar(&wait, "wait", true, "Block until the run reaches a terminal status")
	cmd.Flags().BoolVar(&follow, "follow", false, "Print events as they are emitted")

	return cmd
}

func runGraph(cmd *cobra.Command, path string, inputs []string, wait, follow bool) error {
	g, err := graph.LoadFile(path)
	if err != nil {
		return err
	}

	initial, err := parseInputs(inputs)
	if err != nil {
		return err
	}

	registry := tools.NewRegistry()
	builtin.Register(registry)
	eng := engine.New(graph.NewMemoryStore(), registry,
		engine.WithLogger(log.New(log.FromEnv())))
	if err := eng.RegisterGraph(g.Definition()); err != nil {
		return err
	}

	ctx := cmd.Context()
	runID, err := eng.StartRun(ctx, g.ID, initial, false)
	if err != nil {
		return err
	}

	if follow {
		events, err := eng.Subscribe(runID)
		if err != nil {
			return err
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range events {
				line, _ := json.Marshal(ev)
				fmt.Fprintln(cmd.OutOrStdout(), string(line))
			}
		}()
		defer func() {
			eng.Unsubscribe(runID, events)
			<-done
		}()
	}

	if !wait {
		fmt.Fprintln(cmd.OutOrStdout(), runID)
		return nil
	}

	snap, runErr := eng.AwaitRun(ctx, runID)
	if snap != nil {
		out, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

// parseInputs converts repeated key=value flags into an initial state bag.
// Values round-trip through JSON so numbers and booleans keep their types.
func parseInputs(inputs []string) (map[string]any, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	state := make(map[string]any, len(inputs))
	for _, input := range inputs {
		key, raw, ok := strings.Cut(input, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --input %q: expected key=value", input)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		state[key] = value
	}
	return state, nil
}
