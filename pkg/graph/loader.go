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
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// GraphFilePattern matches graph definition files under a directory,
// recursively.
const GraphFilePattern = "**/*.{yaml,yml,json}"

// LoadFile parses and compiles a single graph definition file.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	def, err := ParseDefinition(data)
	if err != nil {
		return nil, err
	}

	g, err := def.Compile()
	if err != nil {
		return nil, fmt.Errorf("invalid graph in %s: %w", filepath.Base(path), err)
	}
	return g, nil
}

// LoadDir compiles every graph definition file under dir and returns them in
// discovery order. A missing directory is not an error; it simply yields no
// graphs. Any unparsable file aborts the load so a bad deploy is noticed at
// startup rather than at run time.
func LoadDir(dir string) ([]*Graph, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(dir), GraphFilePattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan graph directory: %w", err)
	}

	graphs := make([]*Graph, 0, len(matches))
	for _, rel := range matches {
		g, err := LoadFile(filepath.Join(dir, rel))
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
	}
	return graphs, nil
}
