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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func greetRegistration() Registration {
	return Registration{
		Name:        "greet",
		Description: "Greets someone by name",
		ParametersSchema: ObjectSchema("", map[string]any{
			"name": StringProperty("who to greet"),
		}, []string{"name"}),
		Source: SourceInProcess,
	}
}

func TestFuncExecutorRunsTool(t *testing.T) {
	exec, err := NewFuncExecutor(greetRegistration(), func(ctx context.Context, req *Request, args map[string]any) (string, error) {
		name, err := StringArg(args, "name")
		if err != nil {
			return "", err
		}
		return "hello " + name, nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	resp, err := exec.Execute(context.Background(), &Request{
		ToolCallID: "c1",
		ToolName:   "greet",
		Arguments:  `{"name":"rocky"}`,
	})
	require.NoError(t, err)
	assert.False(t, resp.IsError)
	assert.Equal(t, "hello rocky", resp.Content)
	assert.Equal(t, "c1", resp.ToolCallID)
}

func TestFuncExecutorRejectsSchemaViolations(t *testing.T) {
	exec, err := NewFuncExecutor(greetRegistration(), func(ctx context.Context, req *Request, args map[string]any) (string, error) {
		t.Fatal("tool must not run on invalid arguments")
		return "", nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	resp, err := exec.Execute(context.Background(), &Request{ToolName: "greet", Arguments: `{}`})
	require.NoError(t, err)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Content, "name")
}

func TestFuncExecutorMalformedArguments(t *testing.T) {
	exec, err := NewFuncExecutor(greetRegistration(), func(ctx context.Context, req *Request, args map[string]any) (string, error) {
		return "", nil
	}, nil)
	require.NoError(t, err)

	resp, err := exec.Execute(context.Background(), &Request{ToolName: "greet", Arguments: `not json`})
	require.NoError(t, err)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Content, "invalid arguments")
}

func TestFuncExecutorToolErrorBecomesErrorResponse(t *testing.T) {
	reg := Registration{Name: "flaky"}
	exec, err := NewFuncExecutor(reg, func(ctx context.Context, req *Request, args map[string]any) (string, error) {
		return "", errors.New("backend unavailable")
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	resp, err := exec.Execute(context.Background(), &Request{ToolName: "flaky"})
	require.NoError(t, err)
	assert.True(t, resp.IsError)
	assert.Equal(t, "backend unavailable", resp.Content)
}

func TestFuncExecutorCancelledContextPropagates(t *testing.T) {
	reg := Registration{Name: "slow"}
	exec, err := NewFuncExecutor(reg, func(ctx context.Context, req *Request, args map[string]any) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exec.Execute(ctx, &Request{ToolName: "slow"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewFuncExecutorRejectsBadSchema(t *testing.T) {
	_, err := NewFuncExecutor(Registration{Name: "bad", ParametersSchema: `{"type":`}, func(ctx context.Context, req *Request, args map[string]any) (string, error) {
		return "", nil
	}, nil)
	require.Error(t, err)
}

func TestEmptyArgumentsDecodeAsEmptyObject(t *testing.T) {
	reg := Registration{Name: "noargs"}
	exec, err := NewFuncExecutor(reg, func(ctx context.Context, req *Request, args map[string]any) (string, error) {
		assert.Empty(t, args)
		assert.Equal(t, "", OptionalStringArg(args, "missing"))
		return "ran", nil
	}, nil)
	require.NoError(t, err)

	resp, err := exec.Execute(context.Background(), &Request{ToolName: "noargs"})
	require.NoError(t, err)
	assert.Equal(t, "ran", resp.Content)
}
