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
package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/rockbot/pkg/agent"
	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/messages"
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

func (p *pubCapture) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.envs)
}

func noopRun(ctx context.Context, taskName, prompt string) (string, error) {
	return "", nil
}

func TestNewSchedulerRequiresRunFunc(t *testing.T) {
	_, err := NewScheduler(Config{})
	require.Error(t, err)
}

func TestStartRejectsInvalidCronSpec(t *testing.T) {
	s, err := NewScheduler(Config{
		Tasks:  []Task{{Name: "patrol", Cron: "not a cron spec", Prompt: "look around"}},
		Run:    noopRun,
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	err = s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "patrol")
}

func TestStartAndStop(t *testing.T) {
	s, err := NewScheduler(Config{
		Tasks:  []Task{HeartbeatTask("")},
		Run:    noopRun,
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestRunTaskPublishesResult(t *testing.T) {
	publisher := &pubCapture{}
	s, err := NewScheduler(Config{
		AgentName: "rocky",
		Run: func(ctx context.Context, taskName, prompt string) (string, error) {
			return "all quiet on " + taskName, nil
		},
		Publisher:   publisher,
		ResultTopic: "user.userResponse.scheduler",
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	s.runTask(context.Background(), Task{Name: "patrol", Cron: "* * * * *", Prompt: "look around"})

	require.Equal(t, 1, publisher.count())
	assert.Equal(t, "user.userResponse.scheduler", publisher.topics[0])
	payload, err := bus.Payload[messages.AgentReply](publisher.envs[0])
	require.NoError(t, err)
	assert.Equal(t, "all quiet on patrol", payload.Content)
	assert.Equal(t, "scheduled/patrol", payload.SessionID)
	assert.Equal(t, "rocky", payload.AgentName)
	assert.True(t, payload.IsFinal)
}

func TestRunTaskYieldIsSilent(t *testing.T) {
	publisher := &pubCapture{}
	s, err := NewScheduler(Config{
		Run: func(ctx context.Context, taskName, prompt string) (string, error) {
			return "", agent.ErrYielded
		},
		Publisher:   publisher,
		ResultTopic: "user.userResponse.scheduler",
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	s.runTask(context.Background(), Task{Name: "patrol", Cron: "* * * * *"})
	assert.Zero(t, publisher.count())
}

func TestRunTaskFailureIsNotPublished(t *testing.T) {
	publisher := &pubCapture{}
	s, err := NewScheduler(Config{
		Run: func(ctx context.Context, taskName, prompt string) (string, error) {
			return "", errors.New("model unavailable")
		},
		Publisher:   publisher,
		ResultTopic: "user.userResponse.scheduler",
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	s.runTask(context.Background(), Task{Name: "patrol", Cron: "* * * * *"})
	assert.Zero(t, publisher.count())
}

func TestRunTaskEmptyResultOrTopicSkipsPublish(t *testing.T) {
	publisher := &pubCapture{}
	s, err := NewScheduler(Config{
		Run:         noopRun,
		Publisher:   publisher,
		ResultTopic: "user.userResponse.scheduler",
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	s.runTask(context.Background(), Task{Name: "patrol"})
	assert.Zero(t, publisher.count(), "empty results stay internal")

	internal, err := NewScheduler(Config{
		Run: func(ctx context.Context, taskName, prompt string) (string, error) {
			return "findings", nil
		},
		Publisher: publisher,
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	internal.runTask(context.Background(), Task{Name: "patrol"})
	assert.Zero(t, publisher.count(), "no result topic configured")
}

func TestHeartbeatTaskDefaults(t *testing.T) {
	task := HeartbeatTask("")
	assert.Equal(t, "heartbeat", task.Name)
	assert.Equal(t, "*/30 * * * *", task.Cron)
	assert.NotEmpty(t, task.Prompt)

	custom := HeartbeatTask("0 * * * *")
	assert.Equal(t, "0 * * * *", custom.Cron)
}
