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

// Package validate implements the `graphexec validate` command.
package validate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/graphexec/pkg/graph"
)

// NewCommand creates the validate command.
func NewCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "validate <graph-file>",
		Short: "Validate a graph definition file",
		Long: `Validate checks that a graph file parses, that every node has a supported
type and unique name, and that start_at and every branch target reference an
existing node. Tool names are not checked: tools bind at execution time.`,
		Example: `  # Basic validation
  graphexec validate review.yaml

  # Machine-readable result
  graphexec validate review.yaml --json`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	return cmd
}

func runValidate(cmd *cobra.Command, path string, jsonOutput bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	def, err := graph.ParseDefinition(data)
	if err == nil {
		_, err = def.Compile()
	}

	if jsonOutput {
		result := map[string]any{"valid": err == nil}
		if err != nil {
			result["error"] = err.Error()
		} else {
			result["graph_id"] = def.GraphID
			result["nodes"] = len(def.Nodes)
		}
		out, mErr := json.MarshalIndent(result, "", "  ")
		if mErr != nil {
			return mErr
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		if err != nil {
			return fmt.Errorf("validation failed")
		}
		return nil
	}

	if err != nil {
		return fmt.Errorf("%s is invalid: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (graph %q, %d nodes)\n", path, def.GraphID, len(def.Nodes))
	return nil
}
