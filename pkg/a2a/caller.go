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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/messages"
)

// DefaultResultTopicBase is the prefix under which callers receive
// terminal task messages; the caller's own topic is
// "<base>.<callerName>".
const DefaultResultTopicBase = "agent.task.result"

// TaskEvent is a correlated update for a dispatched task.
type TaskEvent struct {
	TaskID    string
	AgentName string
	State     string
	Content   string
	IsError   bool
	Terminal  bool
}

// pendingTask tracks one dispatched task until a terminal message.
type pendingTask struct {
	agentName string
	startedAt time.Time
}

// Caller dispatches tasks to peer agents and correlates their status
// and terminal messages.
type Caller struct {
	agent           string
	publisher       bus.Publisher
	resultTopicBase string
	onEvent         func(context.Context, TaskEvent)
	logger          *zap.Logger

	mu      sync.Mutex
	pending map[string]pendingTask
}

// NewCaller builds a caller. onEvent receives every correlated event;
// it runs on the handler goroutine and must not block.
func NewCaller(agent string, publisher bus.Publisher, resultTopicBase string, onEvent func(context.Context, TaskEvent), logger *zap.Logger) *Caller {
	if resultTopicBase == "" {
		resultTopicBase = DefaultResultTopicBase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Caller{
		agent:           agent,
		publisher:       publisher,
		resultTopicBase: resultTopicBase,
		onEvent:         onEvent,
		logger:          logger,
		pending:         make(map[string]pendingTask),
	}
}

// ResultTopic is the topic the caller listens on for task outcomes.
func (c *Caller) ResultTopic() string {
	return c.resultTopicBase + "." + c.agent
}

// Invoke dispatches a task to a peer agent and returns its task id
// immediately; the outcome arrives later as a TaskEvent.
func (c *Caller) Invoke(ctx context.Context, agentName, skill, message string) (string, error) {
	taskID := uuid.NewString()
	env, err := bus.ToEnvelope(ctx, messages.TypeAgentTaskRequest, messages.AgentTaskRequest{
		TaskID:      taskID,
		Skill:       skill,
		Message:     message,
		CallerAgent: c.agent,
	}, c.agent,
		bus.WithCorrelationID(taskID),
		bus.WithReplyTo(c.ResultTopic()),
	)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.pending[taskID] = pendingTask{agentName: agentName, startedAt: time.Now().UTC()}
	c.mu.Unlock()

	if err := c.publisher.Publish(ctx, messages.AgentTaskTopic(agentName), env); err != nil {
		c.mu.Lock()
		delete(c.pending, taskID)
		c.mu.Unlock()
		return "", fmt.Errorf("failed to dispatch task to %s: %w", agentName, err)
	}
	c.logger.Info("Dispatched A2A task",
		zap.String("task", taskID),
		zap.String("agent", agentName),
		zap.String("skill", skill))
	return taskID, nil
}

// Pending returns the number of tasks awaiting a terminal message.
func (c *Caller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// OnStatusUpdate correlates an intermediate status to a pending task.
func (c *Caller) OnStatusUpdate(ctx context.Context, env *bus.Envelope, msg messages.AgentTaskStatusUpdate) bus.MessageResult {
	c.emit(ctx, msg.TaskID, TaskEvent{
		TaskID:  msg.TaskID,
		State:   msg.State,
		Content: msg.Message,
	}, false)
	return bus.Ack
}

// OnResult correlates a terminal success and removes the task.
func (c *Caller) OnResult(ctx context.Context, env *bus.Envelope, msg messages.AgentTaskResult) bus.MessageResult {
	c.emit(ctx, msg.TaskID, TaskEvent{
		TaskID:   msg.TaskID,
		State:    msg.State,
		Content:  msg.Result,
		Terminal: true,
	}, true)
	return bus.Ack
}

// OnError correlates a terminal failure and removes the task.
func (c *Caller) OnError(ctx context.Context, env *bus.Envelope, msg messages.AgentTaskError) bus.MessageResult {
	c.emit(ctx, msg.TaskID, TaskEvent{
		TaskID:   msg.TaskID,
		State:    messages.TaskStateFailed,
		Content:  fmt.Sprintf("%s: %s", msg.Code, msg.Message),
		IsError:  true,
		Terminal: true,
	}, true)
	return bus.Ack
}

func (c *Caller) emit(ctx context.Context, taskID string, event TaskEvent, terminal bool) {
	c.mu.Lock()
	task, known := c.pending[taskID]
	if known && terminal {
		delete(c.pending, taskID)
	}
	c.mu.Unlock()
	if !known {
		c.logger.Debug("Dropping update for unknown task", zap.String("task", taskID))
		return
	}
	event.AgentName = task.agentName
	if c.onEvent != nil {
		c.onEvent(ctx, event)
	}
}
