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

package validate

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validGraph = `graph_id: demo
start_at: A
nodes:
  - name: A
    type: tool
    config:
      tool: extract_functions
`

func writeGraph(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateValidGraph(t *testing.T) {
	path := writeGraph(t, validGraph)
	out, err := execute(t, path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "demo")
}

func TestValidateInvalidGraph(t *testing.T) {
	path := writeGraph(t, "graph_id: demo\nstart_at: ghost\nnodes:\n  - name: A\n    type: tool\n")
	_, err := execute(t, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_at")
}

func TestValidateJSONOutput(t *testing.T) {
	path := writeGraph(t, validGraph)
	out, err := execute(t, path, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)
	assert.Contains(t, out, `"graph_id": "demo"`)
}

func TestValidateJSONOutputInvalid(t *testing.T) {
	path := writeGraph(t, "nodes: []\n")
	out, err := execute(t, path, "--json")
	require.Error(t, err)
	assert.Contains(t, out, `"valid": false`)
}

func TestValidateMissingFile(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
