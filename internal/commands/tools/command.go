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

// Package tools implements the `graphexec tools` command.
package tools

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	toolspkg "github.com/tombee/graphexec/pkg/tools"
	"github.com/tombee/graphexec/pkg/tools/builtin"
)

// NewCommand creates the tools command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the builtin tools available to graphexec run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := toolspkg.NewRegistry()
			builtin.Register(registry)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range registry.List() {
				fmt.Fprintf(w, "%s\t%s\n", name, registry.Describe(name))
			}
			return w.Flush()
		},
	}
}
