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
// Package dispatch routes envelopes to typed handlers through a fixed
// middleware chain: tracing, logging, error handling, then the handler.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/bus"
)

// ErrValidation marks a malformed envelope or payload. The error
// middleware dead-letters these instead of retrying.
var ErrValidation = errors.New("validation failed")

// Invocation is the mutable state shared by the middleware chain for one
// delivery. The final Result is returned to the broker.
type Invocation struct {
	Envelope *bus.Envelope
	Agent    string
	Result   bus.MessageResult
}

// Next advances the middleware chain.
type Next func(ctx context.Context) error

// Middleware wraps handler execution.
type Middleware interface {
	Invoke(ctx context.Context, inv *Invocation, next Next) error
}

// EnvelopeHandler handles a decoded delivery and reports its disposition.
type EnvelopeHandler func(ctx context.Context, env *bus.Envelope) (bus.MessageResult, error)

// HandlerFor adapts a typed handler function into an EnvelopeHandler.
// A body that fails to decode as T is a validation error.
func HandlerFor[T any](fn func(ctx context.Context, env *bus.Envelope, payload T) (bus.MessageResult, error)) EnvelopeHandler {
	return func(ctx context.Context, env *bus.Envelope) (bus.MessageResult, error) {
		payload, err := bus.Payload[T](env)
		if err != nil {
			return bus.DeadLetter, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return fn(ctx, env, payload)
	}
}

// Pipeline resolves handlers by message type and runs the middleware
// chain exactly once per delivery.
type Pipeline struct {
	mu         sync.RWMutex
	handlers   map[string]EnvelopeHandler
	middleware []Middleware
	agent      string
	logger     *zap.Logger
}

// NewPipeline builds a pipeline with the standard middleware chain for
// the named agent.
func NewPipeline(agent string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		handlers: make(map[string]EnvelopeHandler),
		middleware: []Middleware{
			&tracingMiddleware{},
			&loggingMiddleware{logger: logger},
			&errorMiddleware{logger: logger},
		},
		agent:  agent,
		logger: logger,
	}
}

// Register associates a message type name with a handler. Later
// registrations for the same type replace earlier ones.
func (p *Pipeline) Register(messageType string, handler EnvelopeHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[messageType] = handler
}

// Handles reports whether a handler is registered for the type.
func (p *Pipeline) Handles(messageType string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.handlers[messageType]
	return ok
}

// Dispatch runs the chain for one envelope and returns the disposition.
// This is the bus.Handler for every subscription the host opens.
func (p *Pipeline) Dispatch(ctx context.Context, env *bus.Envelope) bus.MessageResult {
	p.mu.RLock()
	handler, ok := p.handlers[env.MessageType]
	p.mu.RUnlock()
	if !ok {
		p.logger.Warn("No handler registered for message type",
			zap.String("message_type", env.MessageType),
			zap.String("message_id", env.MessageID))
		return bus.DeadLetter
	}

	ctx = bus.ExtractTrace(ctx, env)
	inv := &Invocation{Envelope: env, Agent: p.agent, Result: bus.Ack}

	final := func(ctx context.Context) error {
		result, err := handler(ctx, env)
		inv.Result = result
		return err
	}

	chain := final
	for i := len(p.middleware) - 1; i >= 0; i-- {
		mw := p.middleware[i]
		next := chain
		chain = func(ctx context.Context) error {
			return mw.Invoke(ctx, inv, next)
		}
	}

	// The error middleware settles every error into a result, so the
	// chain itself never fails.
	_ = chain(ctx)
	return inv.Result
}
