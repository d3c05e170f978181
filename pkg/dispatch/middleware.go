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
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/bus"
)

const tracerName = "github.com/teradata-labs/rockbot/pkg/dispatch"

// tracingMiddleware opens a span per dispatch and records the final
// disposition.
type tracingMiddleware struct{}

func (m *tracingMiddleware) Invoke(ctx context.Context, inv *Invocation, next Next) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "dispatch "+inv.Envelope.MessageType)
	defer span.End()

	span.SetAttributes(
		attribute.String("message_type", inv.Envelope.MessageType),
		attribute.String("message_id", inv.Envelope.MessageID),
		attribute.String("agent", inv.Agent),
		attribute.String("correlation_id", inv.Envelope.CorrelationID),
	)

	err := next(ctx)
	span.SetAttributes(attribute.String("result", inv.Result.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// loggingMiddleware emits dispatch begin/end with elapsed time.
type loggingMiddleware struct {
	logger *zap.Logger
}

func (m *loggingMiddleware) Invoke(ctx context.Context, inv *Invocation, next Next) error {
	start := time.Now()
	m.logger.Debug("Dispatching message",
		zap.String("message_type", inv.Envelope.MessageType),
		zap.String("message_id", inv.Envelope.MessageID))

	err := next(ctx)

	m.logger.Info("Dispatched message",
		zap.String("message_type", inv.Envelope.MessageType),
		zap.String("message_id", inv.Envelope.MessageID),
		zap.String("result", inv.Result.String()),
		zap.Duration("elapsed", time.Since(start)))
	return err
}

// errorMiddleware settles handler failures into broker dispositions:
// validation errors dead-letter, everything else (including context
// cancellation) retries.
type errorMiddleware struct {
	logger *zap.Logger
}

func (m *errorMiddleware) Invoke(ctx context.Context, inv *Invocation, next Next) error {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Handler panicked",
				zap.String("message_type", inv.Envelope.MessageType),
				zap.Any("panic", r))
			inv.Result = bus.Retry
		}
	}()

	err := next(ctx)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrValidation):
		m.logger.Warn("Dead-lettering malformed message",
			zap.String("message_type", inv.Envelope.MessageType),
			zap.String("message_id", inv.Envelope.MessageID),
			zap.Error(err))
		inv.Result = bus.DeadLetter
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// The handler was cancelled by its own context; the broker
		// should redeliver.
		m.logger.Debug("Handler cancelled, requeueing",
			zap.String("message_type", inv.Envelope.MessageType))
		inv.Result = bus.Retry
	default:
		m.logger.Error(fmt.Sprintf("Handler failed: %v", err),
			zap.String("message_type", inv.Envelope.MessageType),
			zap.String("message_id", inv.Envelope.MessageID))
		inv.Result = bus.Retry
	}
	return err
}
