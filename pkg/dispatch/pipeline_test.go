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
package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/rockbot/pkg/bus"
)

type echoPayload struct {
	Text string `json:"text"`
}

func makeEnvelope(t *testing.T, messageType string, payload any) *bus.Envelope {
	t.Helper()
	env, err := bus.ToEnvelope(context.Background(), messageType, payload, "tester")
	require.NoError(t, err)
	return env
}

func TestDispatchRunsHandlerOnce(t *testing.T) {
	p := NewPipeline("rocky", zaptest.NewLogger(t))

	calls := 0
	p.Register("Echo", HandlerFor(func(ctx context.Context, env *bus.Envelope, payload echoPayload) (bus.MessageResult, error) {
		calls++
		assert.Equal(t, "hi", payload.Text)
		return bus.Ack, nil
	}))

	result := p.Dispatch(context.Background(), makeEnvelope(t, "Echo", echoPayload{Text: "hi"}))
	assert.Equal(t, bus.Ack, result)
	assert.Equal(t, 1, calls)
}

func TestDispatchUnknownTypeDeadLetters(t *testing.T) {
	p := NewPipeline("rocky", zaptest.NewLogger(t))
	result := p.Dispatch(context.Background(), makeEnvelope(t, "Nope", echoPayload{}))
	assert.Equal(t, bus.DeadLetter, result)
}

func TestDispatchMalformedPayloadDeadLetters(t *testing.T) {
	p := NewPipeline("rocky", zaptest.NewLogger(t))
	p.Register("Echo", HandlerFor(func(ctx context.Context, env *bus.Envelope, payload echoPayload) (bus.MessageResult, error) {
		t.Fatal("handler must not run for malformed payload")
		return bus.Ack, nil
	}))

	env := bus.Create(context.Background(), "Echo", []byte("{not json"), "tester")
	result := p.Dispatch(context.Background(), env)
	assert.Equal(t, bus.DeadLetter, result)
}

func TestDispatchHandlerErrorRetries(t *testing.T) {
	p := NewPipeline("rocky", zaptest.NewLogger(t))
	p.Register("Echo", HandlerFor(func(ctx context.Context, env *bus.Envelope, payload echoPayload) (bus.MessageResult, error) {
		return bus.Ack, errors.New("transient failure")
	}))

	result := p.Dispatch(context.Background(), makeEnvelope(t, "Echo", echoPayload{}))
	assert.Equal(t, bus.Retry, result)
}

func TestDispatchCancelledHandlerRetries(t *testing.T) {
	p := NewPipeline("rocky", zaptest.NewLogger(t))
	p.Register("Echo", HandlerFor(func(ctx context.Context, env *bus.Envelope, payload echoPayload) (bus.MessageResult, error) {
		return bus.Ack, context.Canceled
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := p.Dispatch(ctx, makeEnvelope(t, "Echo", echoPayload{}))
	assert.Equal(t, bus.Retry, result)
}

func TestDispatchPanicRetries(t *testing.T) {
	p := NewPipeline("rocky", zaptest.NewLogger(t))
	p.Register("Echo", HandlerFor(func(ctx context.Context, env *bus.Envelope, payload echoPayload) (bus.MessageResult, error) {
		panic("boom")
	}))

	result := p.Dispatch(context.Background(), makeEnvelope(t, "Echo", echoPayload{}))
	assert.Equal(t, bus.Retry, result)
}

func TestMiddlewareOrder(t *testing.T) {
	p := NewPipeline("rocky", zaptest.NewLogger(t))

	var order []string
	p.middleware = append(p.middleware, middlewareFunc(func(ctx context.Context, inv *Invocation, next Next) error {
		order = append(order, "custom-before")
		err := next(ctx)
		order = append(order, "custom-after")
		return err
	}))
	p.Register("Echo", HandlerFor(func(ctx context.Context, env *bus.Envelope, payload echoPayload) (bus.MessageResult, error) {
		order = append(order, "handler")
		return bus.Ack, nil
	}))

	p.Dispatch(context.Background(), makeEnvelope(t, "Echo", echoPayload{}))
	assert.Equal(t, []string{"custom-before", "handler", "custom-after"}, order)
}

type middlewareFunc func(ctx context.Context, inv *Invocation, next Next) error

func (f middlewareFunc) Invoke(ctx context.Context, inv *Invocation, next Next) error {
	return f(ctx, inv, next)
}
