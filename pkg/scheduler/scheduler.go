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
// Package scheduler runs recurring agent prompts (heartbeats, patrols)
// on cron expressions. Runs execute at scheduled priority, so they
// always yield to user work.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/agent"
	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/messages"
)

// Task is one recurring prompt with a standard 5-field cron spec.
type Task struct {
	Name   string
	Cron   string
	Prompt string
}

// RunFunc executes a scheduled prompt, typically
// Orchestrator.RunScheduled.
type RunFunc func(ctx context.Context, taskName, prompt string) (string, error)

// Config wires a Scheduler.
type Config struct {
	AgentName string
	Tasks     []Task
	Run       RunFunc
	Publisher bus.Publisher

	// ResultTopic receives a final AgentReply per completed run. Empty
	// keeps results internal.
	ResultTopic string

	Logger *zap.Logger
}

// Scheduler drives the cron engine over the configured tasks.
type Scheduler struct {
	mu      sync.Mutex
	engine  *cron.Cron
	entries map[string]cron.EntryID
	cfg     Config
	running sync.WaitGroup
	logger  *zap.Logger
}

// NewScheduler validates the config and prepares the cron engine.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Run == nil {
		return nil, fmt.Errorf("run function is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Scheduler{
		engine:  cron.New(),
		entries: make(map[string]cron.EntryID),
		cfg:     cfg,
		logger:  cfg.Logger,
	}, nil
}

// Start registers every task and starts the engine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.cfg.Tasks {
		task := task
		entryID, err := s.engine.AddFunc(task.Cron, func() {
			s.runTask(ctx, task)
		})
		if err != nil {
			return fmt.Errorf("invalid cron spec %q for task %s: %w", task.Cron, task.Name, err)
		}
		s.entries[task.Name] = entryID
		s.logger.Info("Registered scheduled task",
			zap.String("task", task.Name),
			zap.String("cron", task.Cron))
	}
	s.engine.Start()
	return nil
}

// Stop halts the engine and waits for in-flight runs.
func (s *Scheduler) Stop() {
	stopCtx := s.engine.Stop()
	<-stopCtx.Done()
	s.running.Wait()
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	s.running.Add(1)
	defer s.running.Done()

	result, err := s.cfg.Run(ctx, task.Name, task.Prompt)
	if err != nil {
		if errors.Is(err, agent.ErrYielded) {
			s.logger.Debug("Scheduled task yielded to user work", zap.String("task", task.Name))
			return
		}
		s.logger.Error("Scheduled task failed", zap.String("task", task.Name), zap.Error(err))
		return
	}
	s.logger.Info("Scheduled task completed",
		zap.String("task", task.Name),
		zap.Int("resultChars", len(result)))
	s.publishResult(ctx, task.Name, result)
}

func (s *Scheduler) publishResult(ctx context.Context, taskName, result string) {
	if s.cfg.ResultTopic == "" || result == "" {
		return
	}
	env, err := bus.ToEnvelope(ctx, messages.TypeAgentReply, messages.AgentReply{
		Content:   result,
		SessionID: "scheduled/" + taskName,
		AgentName: s.cfg.AgentName,
		IsFinal:   true,
	}, s.cfg.AgentName)
	if err != nil {
		s.logger.Error("Failed to encode scheduled result", zap.Error(err))
		return
	}
	if err := s.cfg.Publisher.Publish(ctx, s.cfg.ResultTopic, env); err != nil {
		s.logger.Error("Failed to publish scheduled result", zap.Error(err))
	}
}

// HeartbeatTask is the default self-check prompt most agents schedule.
func HeartbeatTask(cronSpec string) Task {
	if cronSpec == "" {
		cronSpec = "*/30 * * * *"
	}
	return Task{
		Name:   "heartbeat",
		Cron:   cronSpec,
		Prompt: "Review your working memory and pending items. Note anything that needs attention under the patrol/ prefix.",
	}
}
