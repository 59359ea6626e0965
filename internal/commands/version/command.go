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

// Package version implements the `graphexec version` command.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Info carries build metadata injected via ldflags.
type Info struct {
	Version   string
	Commit    string
	BuildDate string
}

// NewCommand creates the version command.
func NewCommand(info Info) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "graphexec %s (commit %s, built %s, %s)\n",
				info.Version, info.Commit, info.BuildDate, runtime.Version())
		},
	}
}
