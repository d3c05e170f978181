// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package shuttle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopExecutor struct{}

func (nopExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	return TextResponse(req, "ok"), nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Registration{Name: "echo", Source: SourceInProcess}, nopExecutor{}))
	assert.True(t, r.IsRegistered("echo"))
	assert.Equal(t, 1, r.Count())

	exec, ok := r.GetExecutor("echo")
	require.True(t, ok)
	assert.NotNil(t, exec)

	reg, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, SourceInProcess, reg.Source)

	_, ok = r.GetExecutor("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Registration{Name: "echo"}, nopExecutor{}))
	err := r.Register(Registration{Name: "echo"}, nopExecutor{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryValidatesRegistration(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register(Registration{}, nopExecutor{}))
	require.Error(t, r.Register(Registration{Name: "echo"}, nil))
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Registration{Name: "echo"}, nopExecutor{}))
	r.Unregister("echo")
	r.Unregister("echo")
	assert.False(t, r.IsRegistered("echo"))
}

func TestRegistryGetToolsSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(Registration{Name: name}, nopExecutor{}))
	}
	tools := r.GetTools()
	require.Len(t, tools, 3)
	assert.Equal(t, "alpha", tools[0].Name)
	assert.Equal(t, "mid", tools[1].Name)
	assert.Equal(t, "zeta", tools[2].Name)
}
