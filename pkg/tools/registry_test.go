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

package tools

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/graphexec/pkg/errors"
)

func TestRegisterAndInvoke(t *testing.T) {
	r := NewRegistry()
	r.Register("double", func(ctx context.Context, state map[string]any) (map[string]any, error) {
		x, _ := state["x"].(int)
		return map[string]any{"x": x * 2}, nil
	})

	update, err := r.Invoke(context.Background(), "double", map[string]any{"x": 3})
	require.NoError(t, err)
	assert.Equal(t, 6, update["x"])
}

func TestInvokeUnregistered(t *testing.T) {
	r := NewRegistry()

	_, err := r.Invoke(context.Background(), "ghost", nil)
	require.Error(t, err)

	var nf *errors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "tool", nf.Resource)
	assert.Equal(t, "ghost", nf.ID)
}

func TestInvokeWrapsToolFailure(t *testing.T) {
	r := NewRegistry()
	boom := stderrors.New("boom")
	r.Register("explode", func(ctx context.Context, state map[string]any) (map[string]any, error) {
		return nil, boom
	})

	_, err := r.Invoke(context.Background(), "explode", nil)
	require.Error(t, err)

	var te *errors.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "explode", te.Tool)
	assert.True(t, stderrors.Is(err, boom))
}

func TestInvokeNilUpdateIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Register("silent", func(ctx context.Context, state map[string]any) (map[string]any, error) {
		return nil, nil
	})

	update, err := r.Invoke(context.Background(), "silent", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Nil(t, update)
}

func TestRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Register("tool", func(ctx context.Context, state map[string]any) (map[string]any, error) {
		return map[string]any{"v": "old"}, nil
	})
	r.Register("tool", func(ctx context.Context, state map[string]any) (map[string]any, error) {
		return map[string]any{"v": "new"}, nil
	})

	update, err := r.Invoke(context.Background(), "tool", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", update["v"])
}

func TestListSortedAndDescribe(t *testing.T) {
	r := NewRegistry()
	r.RegisterWithDescription("zeta", "last", noop)
	r.RegisterWithDescription("alpha", "first", noop)
	r.Register("mid", noop)

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.List())
	assert.Equal(t, "first", r.Describe("alpha"))
	assert.Equal(t, "", r.Describe("mid"))
	assert.True(t, r.Has("zeta"))
	assert.False(t, r.Has("ghost"))
}

func noop(ctx context.Context, state map[string]any) (map[string]any, error) {
	return nil, nil
}
