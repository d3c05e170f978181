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
// Package host assembles an agent process from declarative parts: a
// builder collects identity, stores, handlers, subscriptions, and
// hosted services, and the resulting Host runs them over the bus.
package host

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/agent"
	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/dispatch"
	"github.com/teradata-labs/rockbot/pkg/shuttle"
	"github.com/teradata-labs/rockbot/pkg/subagent"
	"github.com/teradata-labs/rockbot/pkg/work"
)

// HostedService is a long-running component tied to the host lifetime.
type HostedService interface {
	Start(ctx context.Context) error
	Stop()
}

type subscriptionSpec struct {
	topic string
	name  string
}

// Host is a fully wired agent process. Build one with a Builder.
type Host struct {
	name     string
	broker   bus.Broker
	pipeline *dispatch.Pipeline
	registry *shuttle.Registry

	orchestrator *agent.Orchestrator
	sessions     *work.SessionTracker
	subagents    *subagent.Manager

	services []HostedService
	specs    []subscriptionSpec

	subs    []bus.Subscription
	hostCtx context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
}

// Name returns the agent identity.
func (h *Host) Name() string { return h.name }

// Registry exposes the tool registry, for tests and feature wiring.
func (h *Host) Registry() *shuttle.Registry { return h.registry }

// Orchestrator exposes the turn orchestrator; nil for hosts without a
// chat client (bridge-only processes).
func (h *Host) Orchestrator() *agent.Orchestrator { return h.orchestrator }

// Start runs every hosted service, then opens every subscription.
// A failure unwinds everything already started.
func (h *Host) Start(ctx context.Context) error {
	for i, svc := range h.services {
		if err := svc.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				h.services[j].Stop()
			}
			return fmt.Errorf("starting hosted service: %w", err)
		}
	}

	for _, spec := range h.specs {
		sub, err := h.broker.Subscribe(spec.topic, spec.name, h.dispatch)
		if err != nil {
			h.closeSubscriptions()
			for j := len(h.services) - 1; j >= 0; j-- {
				h.services[j].Stop()
			}
			return fmt.Errorf("subscribing %s to %s: %w", spec.name, spec.topic, err)
		}
		h.subs = append(h.subs, sub)
		h.logger.Info("Subscription opened",
			zap.String("topic", spec.topic),
			zap.String("subscription", spec.name))
	}

	h.logger.Info("Agent host started",
		zap.String("agent", h.name),
		zap.Int("subscriptions", len(h.subs)),
		zap.Int("services", len(h.services)))
	return nil
}

// Stop disposes subscriptions in reverse order, cancels background
// work, stops hosted services, then closes the broker connection.
func (h *Host) Stop() {
	h.closeSubscriptions()

	h.cancel()
	if h.sessions != nil {
		h.sessions.CancelAll()
	}
	if h.orchestrator != nil {
		h.orchestrator.Wait()
	}
	if h.subagents != nil {
		h.subagents.Wait()
	}

	for i := len(h.services) - 1; i >= 0; i-- {
		h.services[i].Stop()
	}

	if err := h.broker.Close(); err != nil {
		h.logger.Warn("Broker close failed", zap.Error(err))
	}
	h.logger.Info("Agent host stopped", zap.String("agent", h.name))
}

func (h *Host) dispatch(ctx context.Context, env *bus.Envelope) bus.MessageResult {
	return h.pipeline.Dispatch(ctx, env)
}

func (h *Host) closeSubscriptions() {
	for i := len(h.subs) - 1; i >= 0; i-- {
		if err := h.subs[i].Close(); err != nil {
			h.logger.Warn("Subscription close failed",
				zap.String("topic", h.subs[i].Topic()),
				zap.Error(err))
		}
	}
	h.subs = nil
}
