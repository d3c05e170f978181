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

	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/messages"
)

// TaskFunc executes one delegated task and returns its result text.
type TaskFunc func(ctx context.Context, req messages.AgentTaskRequest) (string, error)

// Handler is the receiving side of A2A delegation: it acknowledges with
// a Working status, runs the task, and publishes exactly one terminal
// message per task.
type Handler struct {
	agent       string
	publisher   bus.Publisher
	statusTopic string
	run         TaskFunc
	logger      *zap.Logger
}

// NewHandler builds a task handler. statusTopic receives intermediate
// status updates; terminal messages go to the request's ReplyTo.
func NewHandler(agent string, publisher bus.Publisher, statusTopic string, run TaskFunc, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		agent:       agent,
		publisher:   publisher,
		statusTopic: statusTopic,
		run:         run,
		logger:      logger,
	}
}

// OnTaskRequest runs a delegated task end to end.
func (h *Handler) OnTaskRequest(ctx context.Context, env *bus.Envelope, msg messages.AgentTaskRequest) bus.MessageResult {
	replyTo := env.ReplyTo
	if replyTo == "" {
		replyTo = DefaultResultTopicBase + "." + msg.CallerAgent
	}
	h.logger.Info("Received A2A task",
		zap.String("task", msg.TaskID),
		zap.String("caller", msg.CallerAgent),
		zap.String("skill", msg.Skill))

	h.publishStatus(ctx, replyTo, msg.TaskID, messages.TaskStateWorking, "")

	result, err := h.run(ctx, msg)
	if err != nil {
		if ctx.Err() != nil {
			return bus.Retry
		}
		h.publishTerminalError(ctx, replyTo, msg.TaskID, messages.AgentTaskError{
			TaskID:  msg.TaskID,
			Code:    messages.TaskErrorExecutionFailed,
			Message: err.Error(),
		})
		return bus.Ack
	}

	terminal, encErr := bus.ToEnvelope(ctx, messages.TypeAgentTaskResult, messages.AgentTaskResult{
		TaskID: msg.TaskID,
		State:  messages.TaskStateCompleted,
		Result: result,
	}, h.agent, bus.WithCorrelationID(msg.TaskID))
	if encErr != nil {
		h.logger.Error("Failed to encode task result", zap.Error(encErr))
		return bus.Retry
	}
	if err := h.publisher.Publish(ctx, replyTo, terminal); err != nil {
		h.logger.Error("Failed to publish task result", zap.Error(err))
		return bus.Retry
	}
	return bus.Ack
}

// OnCancelRequest rejects cancellation; running tasks are not
// abortable.
func (h *Handler) OnCancelRequest(ctx context.Context, env *bus.Envelope, msg messages.AgentTaskCancelRequest) bus.MessageResult {
	replyTo := env.ReplyTo
	if replyTo == "" {
		replyTo = h.statusTopic
	}
	h.publishTerminalError(ctx, replyTo, msg.TaskID, messages.AgentTaskError{
		TaskID:  msg.TaskID,
		Code:    messages.TaskErrorTaskNotCancelable,
		Message: "running tasks cannot be cancelled",
	})
	return bus.Ack
}

func (h *Handler) publishStatus(ctx context.Context, topic, taskID, state, message string) {
	if topic == "" {
		topic = h.statusTopic
	}
	if topic == "" {
		return
	}
	env, err := bus.ToEnvelope(ctx, messages.TypeAgentTaskStatusUpdate, messages.AgentTaskStatusUpdate{
		TaskID:  taskID,
		State:   state,
		Message: message,
	}, h.agent, bus.WithCorrelationID(taskID))
	if err != nil {
		h.logger.Error("Failed to encode task status", zap.Error(err))
		return
	}
	if err := h.publisher.Publish(ctx, topic, env); err != nil {
		h.logger.Error("Failed to publish task status", zap.Error(err))
	}
}

func (h *Handler) publishTerminalError(ctx context.Context, topic, taskID string, payload messages.AgentTaskError) {
	if topic == "" {
		return
	}
	env, err := bus.ToEnvelope(ctx, messages.TypeAgentTaskError, payload, h.agent, bus.WithCorrelationID(taskID))
	if err != nil {
		h.logger.Error("Failed to encode task error", zap.Error(err))
		return
	}
	if err := h.publisher.Publish(ctx, topic, env); err != nil {
		h.logger.Error("Failed to publish task error", zap.Error(err))
	}
}
