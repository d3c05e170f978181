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
package subagent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/messages"
	"github.com/teradata-labs/rockbot/pkg/shuttle"
)

// Runner executes one subagent prompt to completion. The task id names
// the subagent's own detached session, so concurrent spawns never share
// state.
type Runner func(ctx context.Context, taskID, prompt string) (string, error)

// InjectFunc pushes a synthetic user turn into the parent session, used
// for subagent progress reports.
type InjectFunc func(ctx context.Context, sessionID, content string)

// Manager spawns subagent tasks, relays their progress into the parent
// session, and publishes their results on the bus.
type Manager struct {
	agent       string
	publisher   bus.Publisher
	tracker     *Tracker
	board       *Whiteboard
	run         Runner
	inject      InjectFunc
	resultTopic string
	hostCtx     context.Context
	running     sync.WaitGroup
	logger      *zap.Logger
}

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	AgentName     string
	Publisher     bus.Publisher
	Runner        Runner
	Inject        InjectFunc
	ResultTopic   string
	MaxConcurrent int
	Logger        *zap.Logger
}

// NewManager builds a manager; hostCtx bounds all subagent lifetimes.
func NewManager(hostCtx context.Context, cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{
		agent:       cfg.AgentName,
		publisher:   cfg.Publisher,
		tracker:     NewTracker(cfg.MaxConcurrent),
		board:       NewWhiteboard(),
		run:         cfg.Runner,
		inject:      cfg.Inject,
		resultTopic: cfg.ResultTopic,
		hostCtx:     hostCtx,
		logger:      cfg.Logger,
	}
}

// Whiteboard exposes the shared handoff space.
func (m *Manager) Whiteboard() *Whiteboard { return m.board }

// Tracker exposes the running-task state.
func (m *Manager) Tracker() *Tracker { return m.tracker }

// Wait blocks until all running subagents finish.
func (m *Manager) Wait() { m.running.Wait() }

// Spawn starts a subagent for the session and returns its task id
// immediately. The result is published as a SubagentResult when the
// run completes.
func (m *Manager) Spawn(sessionID, prompt string) (string, error) {
	taskID := uuid.NewString()
	runCtx, err := m.tracker.Begin(taskID, sessionID, m.hostCtx)
	if err != nil {
		return "", err
	}
	m.logger.Info("Spawned subagent",
		zap.String("task", taskID),
		zap.String("session", sessionID))

	m.running.Add(1)
	go func() {
		defer m.running.Done()
		defer m.tracker.Done(taskID)

		content, err := m.run(runCtx, taskID, prompt)
		isError := false
		if err != nil {
			if runCtx.Err() != nil {
				return
			}
			content = err.Error()
			isError = true
		}
		m.publishResult(taskID, sessionID, content, isError)
	}()
	return taskID, nil
}

// ReportProgress injects a subagent's progress report as a synthetic
// user turn in its parent session.
func (m *Manager) ReportProgress(ctx context.Context, taskID, content string) error {
	sessionID, ok := m.tracker.SessionFor(taskID)
	if !ok {
		return fmt.Errorf("no running subagent with task id %s", taskID)
	}
	if m.inject != nil {
		m.inject(ctx, sessionID, fmt.Sprintf("[subagent %s] %s", taskID[:8], content))
	}
	return nil
}

func (m *Manager) publishResult(taskID, sessionID, content string, isError bool) {
	if m.resultTopic == "" {
		return
	}
	env, err := bus.ToEnvelope(m.hostCtx, messages.TypeSubagentResult, messages.SubagentResult{
		TaskID:    taskID,
		SessionID: sessionID,
		Content:   content,
		IsError:   isError,
	}, m.agent, bus.WithCorrelationID(taskID))
	if err != nil {
		m.logger.Error("Failed to encode subagent result", zap.Error(err))
		return
	}
	if err := m.publisher.Publish(m.hostCtx, m.resultTopic, env); err != nil {
		m.logger.Error("Failed to publish subagent result", zap.Error(err))
	}
}

// ToolRegistration pairs a registry entry with its executor.
type ToolRegistration struct {
	Registration shuttle.Registration
	Executor     shuttle.Executor
}

// Tools returns the delegated tool registrations exposing spawn and the
// whiteboard to the LLM.
func (m *Manager) Tools(logger *zap.Logger) []ToolRegistration {
	defs := []struct {
		name        string
		description string
		schema      string
		fn          shuttle.Func
	}{
		{
			name:        "spawn_subagent",
			description: "Start a helper agent working on a sub-task in the background. Returns a task id immediately; the result arrives later.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"prompt": shuttle.StringProperty("The sub-task for the helper to work on, fully self-contained."),
			}, []string{"prompt"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				prompt, err := shuttle.StringArg(args, "prompt")
				if err != nil {
					return "", err
				}
				taskID, err := m.Spawn(req.SessionID, prompt)
				if err != nil {
					return "", err
				}
				return "task_id: " + taskID, nil
			},
		},
		{
			name:        "report_progress",
			description: "Report intermediate progress on a running subagent task back to the parent session.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"task_id": shuttle.StringProperty("The subagent task id."),
				"content": shuttle.StringProperty("The progress update."),
			}, []string{"task_id", "content"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				taskID, err := shuttle.StringArg(args, "task_id")
				if err != nil {
					return "", err
				}
				content, err := shuttle.StringArg(args, "content")
				if err != nil {
					return "", err
				}
				if err := m.ReportProgress(ctx, taskID, content); err != nil {
					return "", err
				}
				return "Progress reported.", nil
			},
		},
		{
			name:        "whiteboard_write",
			description: "Write a value to the shared whiteboard for handoff between you and your subagents.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"key":   shuttle.StringProperty("Whiteboard key."),
				"value": shuttle.StringProperty("The value to store."),
			}, []string{"key", "value"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				key, err := shuttle.StringArg(args, "key")
				if err != nil {
					return "", err
				}
				value, err := shuttle.StringArg(args, "value")
				if err != nil {
					return "", err
				}
				m.board.Write(key, value)
				return fmt.Sprintf("Wrote %q to the whiteboard", key), nil
			},
		},
		{
			name:        "whiteboard_read",
			description: "Read a value from the shared whiteboard.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"key": shuttle.StringProperty("Whiteboard key."),
			}, []string{"key"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				key, err := shuttle.StringArg(args, "key")
				if err != nil {
					return "", err
				}
				value, ok := m.board.Read(key)
				if !ok {
					return "", fmt.Errorf("no whiteboard entry for %q", key)
				}
				return value, nil
			},
		},
		{
			name:        "whiteboard_list",
			description: "List all whiteboard keys.",
			schema:      shuttle.ObjectSchema("", map[string]any{}, nil),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				keys := m.board.List()
				if len(keys) == 0 {
					return "The whiteboard is empty.", nil
				}
				return strings.Join(keys, "\n"), nil
			},
		},
		{
			name:        "whiteboard_delete",
			description: "Delete a whiteboard entry.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"key": shuttle.StringProperty("Whiteboard key."),
			}, []string{"key"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				key, err := shuttle.StringArg(args, "key")
				if err != nil {
					return "", err
				}
				m.board.Delete(key)
				return fmt.Sprintf("Deleted %q from the whiteboard", key), nil
			},
		},
	}

	out := make([]ToolRegistration, 0, len(defs))
	for _, def := range defs {
		reg := shuttle.Registration{
			Name:             def.name,
			Description:      def.description,
			ParametersSchema: def.schema,
			Source:           shuttle.SourceDelegated,
		}
		out = append(out, ToolRegistration{reg, shuttle.MustFuncExecutor(reg, def.fn, logger)})
	}
	return out
}
