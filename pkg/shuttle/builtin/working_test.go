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
package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/rockbot/pkg/memory"
	"github.com/teradata-labs/rockbot/pkg/shuttle"
)

func workingRegistry(t *testing.T, wm memory.WorkingMemory) *shuttle.Registry {
	t.Helper()
	registry := shuttle.NewRegistry()
	require.NoError(t, Register(registry, Deps{Working: wm}, zaptest.NewLogger(t)))
	return registry
}

func execTool(t *testing.T, registry *shuttle.Registry, name, sessionID, args string) *shuttle.Response {
	t.Helper()
	executor, ok := registry.GetExecutor(name)
	require.True(t, ok, "tool %s not registered", name)
	resp, err := executor.Execute(context.Background(), &shuttle.Request{
		ToolCallID: "call-1",
		ToolName:   name,
		Arguments:  args,
		SessionID:  sessionID,
	})
	require.NoError(t, err)
	return resp
}

func TestWorkingSetConfinedToSessionNamespace(t *testing.T) {
	wm := memory.NewWorking()
	registry := workingRegistry(t, wm)
	ctx := context.Background()

	resp := execTool(t, registry, "working_memory_set", "s1",
		`{"key": "session/s1/notes", "value": "draft"}`)
	assert.False(t, resp.IsError, resp.Content)
	entry, ok, err := wm.Get(ctx, "session/s1/notes")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "draft", entry.Value)

	resp = execTool(t, registry, "working_memory_set", "s1",
		`{"key": "patrol/other/finding", "value": "oops"}`)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Content, "outside")
	_, ok, err = wm.Get(ctx, "patrol/other/finding")
	require.NoError(t, err)
	assert.False(t, ok, "foreign-namespace write must not land in the store")
}

func TestWorkingSetScheduledSessionOwnsPatrolNamespace(t *testing.T) {
	wm := memory.NewWorking()
	registry := workingRegistry(t, wm)

	resp := execTool(t, registry, "working_memory_set", "scheduled/disk-check",
		`{"key": "patrol/disk-check/finding", "value": "disk at 91%"}`)
	assert.False(t, resp.IsError, resp.Content)

	resp = execTool(t, registry, "working_memory_set", "scheduled/disk-check",
		`{"key": "session/s1/notes", "value": "oops"}`)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Content, "outside")
}

func TestWorkingDeleteConfinedToSessionNamespace(t *testing.T) {
	wm := memory.NewWorking()
	registry := workingRegistry(t, wm)
	ctx := context.Background()

	require.NoError(t, wm.Set(ctx, "session/other/keep", "v", 0, "", nil))
	require.NoError(t, wm.Set(ctx, "session/s1/scratch", "v", 0, "", nil))

	resp := execTool(t, registry, "working_memory_delete", "s1",
		`{"key": "session/other/keep"}`)
	assert.True(t, resp.IsError)
	_, ok, err := wm.Get(ctx, "session/other/keep")
	require.NoError(t, err)
	assert.True(t, ok, "foreign entry must survive the delete attempt")

	resp = execTool(t, registry, "working_memory_delete", "s1",
		`{"key": "session/s1/scratch"}`)
	assert.False(t, resp.IsError, resp.Content)
	_, ok, err = wm.Get(ctx, "session/s1/scratch")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWorkingWritesRequireSession(t *testing.T) {
	wm := memory.NewWorking()
	registry := workingRegistry(t, wm)

	resp := execTool(t, registry, "working_memory_set", "",
		`{"key": "session/s1/notes", "value": "v"}`)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Content, "session")
}

func TestWorkingReadsStayCrossNamespace(t *testing.T) {
	wm := memory.NewWorking()
	registry := workingRegistry(t, wm)
	ctx := context.Background()

	require.NoError(t, wm.Set(ctx, "patrol/disk-check/finding", "disk at 91%", 0, "", nil))

	resp := execTool(t, registry, "working_memory_get", "s1",
		`{"key": "patrol/disk-check/finding"}`)
	assert.False(t, resp.IsError, resp.Content)
	assert.Equal(t, "disk at 91%", resp.Content)
}
