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
package a2a

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/messages"
	"github.com/teradata-labs/rockbot/pkg/shuttle"
)

type pubCapture struct {
	mu     sync.Mutex
	topics []string
	envs   []*bus.Envelope
}

func (p *pubCapture) Publish(ctx context.Context, topic string, env *bus.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.envs = append(p.envs, env)
	return nil
}

func (p *pubCapture) byType(messageType string) []*bus.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*bus.Envelope
	for _, env := range p.envs {
		if env.MessageType == messageType {
			out = append(out, env)
		}
	}
	return out
}

func taskEnvelope(t *testing.T, msg messages.AgentTaskRequest, replyTo string) *bus.Envelope {
	t.Helper()
	opts := []bus.Option{bus.WithCorrelationID(msg.TaskID)}
	if replyTo != "" {
		opts = append(opts, bus.WithReplyTo(replyTo))
	}
	env, err := bus.ToEnvelope(context.Background(), messages.TypeAgentTaskRequest, msg, msg.CallerAgent, opts...)
	require.NoError(t, err)
	return env
}

func TestHandlerRunsTaskAndPublishesResult(t *testing.T) {
	publisher := &pubCapture{}
	h := NewHandler("worker", publisher, "agent.task.status.worker", func(ctx context.Context, req messages.AgentTaskRequest) (string, error) {
		return "task output for " + req.Message, nil
	}, zaptest.NewLogger(t))

	msg := messages.AgentTaskRequest{TaskID: "t1", Message: "dig", CallerAgent: "rocky"}
	result := h.OnTaskRequest(context.Background(), taskEnvelope(t, msg, "agent.task.result.rocky"), msg)
	assert.Equal(t, bus.Ack, result)

	// A Working status precedes the terminal result, both on the reply
	// topic.
	statuses := publisher.byType(messages.TypeAgentTaskStatusUpdate)
	require.Len(t, statuses, 1)
	status, err := bus.Payload[messages.AgentTaskStatusUpdate](statuses[0])
	require.NoError(t, err)
	assert.Equal(t, messages.TaskStateWorking, status.State)

	results := publisher.byType(messages.TypeAgentTaskResult)
	require.Len(t, results, 1)
	payload, err := bus.Payload[messages.AgentTaskResult](results[0])
	require.NoError(t, err)
	assert.Equal(t, messages.TaskStateCompleted, payload.State)
	assert.Equal(t, "task output for dig", payload.Result)
	assert.Equal(t, "t1", results[0].CorrelationID)
	for _, topic := range publisher.topics {
		assert.Equal(t, "agent.task.result.rocky", topic)
	}
}

func TestHandlerPublishesTerminalError(t *testing.T) {
	publisher := &pubCapture{}
	h := NewHandler("worker", publisher, "", func(ctx context.Context, req messages.AgentTaskRequest) (string, error) {
		return "", errors.New("no such dataset")
	}, zaptest.NewLogger(t))

	msg := messages.AgentTaskRequest{TaskID: "t1", Message: "dig", CallerAgent: "rocky"}
	h.OnTaskRequest(context.Background(), taskEnvelope(t, msg, "agent.task.result.rocky"), msg)

	errs := publisher.byType(messages.TypeAgentTaskError)
	require.Len(t, errs, 1)
	payload, err := bus.Payload[messages.AgentTaskError](errs[0])
	require.NoError(t, err)
	assert.Equal(t, messages.TaskErrorExecutionFailed, payload.Code)
	assert.Contains(t, payload.Message, "no such dataset")
	assert.Empty(t, publisher.byType(messages.TypeAgentTaskResult))
}

func TestHandlerRejectsCancellation(t *testing.T) {
	publisher := &pubCapture{}
	h := NewHandler("worker", publisher, "agent.task.status.worker", nil, zaptest.NewLogger(t))

	msg := messages.AgentTaskCancelRequest{TaskID: "t1"}
	env, err := bus.ToEnvelope(context.Background(), messages.TypeAgentTaskCancelRequest, msg, "rocky",
		bus.WithReplyTo("agent.task.result.rocky"))
	require.NoError(t, err)
	h.OnCancelRequest(context.Background(), env, msg)

	errs := publisher.byType(messages.TypeAgentTaskError)
	require.Len(t, errs, 1)
	payload, errPayload := bus.Payload[messages.AgentTaskError](errs[0])
	require.NoError(t, errPayload)
	assert.Equal(t, messages.TaskErrorTaskNotCancelable, payload.Code)
}

func TestCallerInvokeAndTerminalResult(t *testing.T) {
	publisher := &pubCapture{}
	var mu sync.Mutex
	var events []TaskEvent
	caller := NewCaller("rocky", publisher, "", func(ctx context.Context, ev TaskEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}, zaptest.NewLogger(t))

	taskID, err := caller.Invoke(context.Background(), "worker", "research", "find it")
	require.NoError(t, err)
	assert.Equal(t, 1, caller.Pending())

	dispatched := publisher.byType(messages.TypeAgentTaskRequest)
	require.Len(t, dispatched, 1)
	assert.Equal(t, messages.AgentTaskTopic("worker"), publisher.topics[0])
	assert.Equal(t, caller.ResultTopic(), dispatched[0].ReplyTo)

	caller.OnStatusUpdate(context.Background(), &bus.Envelope{}, messages.AgentTaskStatusUpdate{
		TaskID: taskID,
		State:  messages.TaskStateWorking,
	})
	assert.Equal(t, 1, caller.Pending(), "status updates are not terminal")

	caller.OnResult(context.Background(), &bus.Envelope{}, messages.AgentTaskResult{
		TaskID: taskID,
		State:  messages.TaskStateCompleted,
		Result: "found it",
	})
	assert.Equal(t, 0, caller.Pending())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, "worker", events[0].AgentName)
	assert.False(t, events[0].Terminal)
	assert.True(t, events[1].Terminal)
	assert.Equal(t, "found it", events[1].Content)
}

func TestCallerTerminalErrorRemovesPending(t *testing.T) {
	var events []TaskEvent
	caller := NewCaller("rocky", &pubCapture{}, "", func(ctx context.Context, ev TaskEvent) {
		events = append(events, ev)
	}, zaptest.NewLogger(t))

	taskID, err := caller.Invoke(context.Background(), "worker", "", "task")
	require.NoError(t, err)

	caller.OnError(context.Background(), &bus.Envelope{}, messages.AgentTaskError{
		TaskID:  taskID,
		Code:    messages.TaskErrorExecutionFailed,
		Message: "boom",
	})
	assert.Equal(t, 0, caller.Pending())
	require.Len(t, events, 1)
	assert.True(t, events[0].IsError)
	assert.Equal(t, messages.TaskStateFailed, events[0].State)
}

func TestCallerDropsUnknownTaskUpdates(t *testing.T) {
	var events []TaskEvent
	caller := NewCaller("rocky", &pubCapture{}, "", func(ctx context.Context, ev TaskEvent) {
		events = append(events, ev)
	}, zaptest.NewLogger(t))

	caller.OnResult(context.Background(), &bus.Envelope{}, messages.AgentTaskResult{TaskID: "unknown"})
	assert.Empty(t, events)
}

func TestDelegationTools(t *testing.T) {
	publisher := &pubCapture{}
	dir := NewAgentDirectory()
	dir.Register(AgentCard{Name: "researcher", Description: "Finds things", Skills: []string{"research"}})
	caller := NewCaller("rocky", publisher, "", nil, zaptest.NewLogger(t))

	tools := Tools(caller, dir, zaptest.NewLogger(t))
	require.Len(t, tools, 2)
	byName := make(map[string]ToolRegistration, len(tools))
	for _, tool := range tools {
		byName[tool.Registration.Name] = tool
	}

	listResp, err := byName["list_agents"].Executor.Execute(context.Background(),
		&shuttle.Request{ToolName: "list_agents", Arguments: `{}`})
	require.NoError(t, err)
	assert.Contains(t, listResp.Content, "researcher")
	assert.Contains(t, listResp.Content, "research")

	invokeResp, err := byName["invoke_agent"].Executor.Execute(context.Background(),
		&shuttle.Request{ToolName: "invoke_agent", Arguments: `{"agent_name":"Researcher","message":"go find it"}`})
	require.NoError(t, err)
	assert.False(t, invokeResp.IsError)
	assert.Contains(t, invokeResp.Content, "task_id: ")
	assert.Equal(t, 1, caller.Pending())

	unknownResp, err := byName["invoke_agent"].Executor.Execute(context.Background(),
		&shuttle.Request{ToolName: "invoke_agent", Arguments: `{"agent_name":"nobody","message":"x"}`})
	require.NoError(t, err)
	assert.True(t, unknownResp.IsError)
	assert.Contains(t, unknownResp.Content, "list_agents")
}
