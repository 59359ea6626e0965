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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	runcmd "github.com/tombee/graphexec/internal/commands/run"
	toolscmd "github.com/tombee/graphexec/internal/commands/tools"
	validatecmd "github.com/tombee/graphexec/internal/commands/validate"
	versioncmd "github.com/tombee/graphexec/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:   "graphexec",
		Short: "Execute declarative workflow graphs",
		Long: `graphexec runs declarative workflow graphs: nodes invoke tools, branch on
state comparisons, and loop with an iteration bound, all against a shared
state bag. Use it to validate and execute graph files locally; run graphexecd
for the HTTP service.`,
		SilenceUsage: true,
	}

	root.AddCommand(runcmd.NewCommand())
	root.AddCommand(validatecmd.NewCommand())
	root.AddCommand(toolscmd.NewCommand())
	root.AddCommand(versioncmd.NewCommand(versioncmd.Info{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	}))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
