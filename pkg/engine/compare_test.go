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

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/graphexec/pkg/errors"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name  string
		left  any
		op    string
		right any
		want  bool
	}{
		{"equal ints", 3, "==", 3, true},
		{"equal cross-type", 3, "==", 3.0, true},
		{"equal strings", "a", "==", "a", true},
		{"equal nil both", nil, "==", nil, true},
		{"equal nil left", nil, "==", 5, false},
		{"not equal", 3, "!=", 4, true},
		{"not equal nil", nil, "!=", 5, true},
		{"greater", 12, ">", 10, true},
		{"greater false", 3, ">", 10, false},
		{"greater cross-type", 12, ">=", 12.0, true},
		{"less", 3, "<", 10, true},
		{"less or equal", 10, "<=", 10, true},
		{"string ordering", "apple", "<", "banana", true},
		{"string ordering false", "banana", "<", "apple", false},
		{"nil left ordering is false", nil, ">", 5, false},
		{"nil right ordering is false", 5, ">", nil, false},
		{"nil both ordering is false", nil, "<=", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.left, tt.op, tt.right)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareUnsupportedOperator(t *testing.T) {
	_, err := Compare(1, "~=", 2)
	require.Error(t, err)

	var ce *errors.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "op", ce.Key)
}

func TestCompareUnorderableOperands(t *testing.T) {
	_, err := Compare("ten", ">", 5)
	require.Error(t, err)

	var ce *errors.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "value", ce.Key)
}

func TestCompareEqualityNeverErrors(t *testing.T) {
	// Mixed types that cannot be ordered still compare fine for equality.
	got, err := Compare("ten", "==", 10)
	require.NoError(t, err)
	assert.False(t, got)
}
