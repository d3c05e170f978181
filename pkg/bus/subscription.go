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
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Reconnect backoff bounds for self-healing subscriptions.
const (
	reconnectInitialInterval = 2 * time.Second
	reconnectMultiplier      = 2
	reconnectMaxInterval     = 30 * time.Second
)

type subscriptionParams struct {
	topic      string
	name       string
	queue      string
	exchange   string
	dlx        string
	prefetch   int
	handler    Handler
	newChannel func() (*amqp.Channel, error)
	logger     *zap.Logger
}

// amqpSubscription is a durable consumer that owns a channel-factory
// closure and reconnects itself on unexpected channel shutdown. The
// reconnect re-declares queue and bindings and rewires the consumer
// against the fresh channel, so acks always target the channel that
// delivered the message.
type amqpSubscription struct {
	params subscriptionParams
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	channel *amqp.Channel
	closed  bool

	wg sync.WaitGroup
}

func newAMQPSubscription(params subscriptionParams) *amqpSubscription {
	ctx, cancel := context.WithCancel(context.Background())
	return &amqpSubscription{
		params: params,
		logger: params.logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *amqpSubscription) Topic() string { return s.params.topic }

func (s *amqpSubscription) Name() string { return s.params.name }

// start opens a channel, declares the queue pair, and begins consuming.
func (s *amqpSubscription) start() error {
	ch, deliveries, err := s.wire()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.channel = ch
	s.mu.Unlock()
	s.consume(ch, deliveries)
	return nil
}

// wire declares the durable queue, its dead-letter queue, and the
// bindings, then starts the consumer. Declaration is idempotent.
func (s *amqpSubscription) wire() (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := s.params.newChannel()
	if err != nil {
		return nil, nil, err
	}

	dlq := s.params.queue + ".dlq"

	if _, err := ch.QueueDeclare(s.params.queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    s.params.dlx,
		"x-dead-letter-routing-key": s.params.topic,
	}); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to declare queue %s: %w", s.params.queue, err)
	}
	if err := ch.QueueBind(s.params.queue, s.params.topic, s.params.exchange, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to bind queue %s: %w", s.params.queue, err)
	}

	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to declare dead-letter queue %s: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, s.params.topic, s.params.dlx, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to bind dead-letter queue %s: %w", dlq, err)
	}

	if err := ch.Qos(s.params.prefetch, 0, false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(s.params.queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to start consumer on %s: %w", s.params.queue, err)
	}
	return ch, deliveries, nil
}

// consume dispatches deliveries and watches the channel for shutdown.
func (s *amqpSubscription) consume(ch *amqp.Channel, deliveries <-chan amqp.Delivery) {
	closeCh := ch.NotifyClose(make(chan *amqp.Error, 1))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for d := range deliveries {
			delivery := d
			go s.dispatch(&delivery)
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err, ok := <-closeCh
		if !ok || err == nil {
			// Application-initiated close; no reconnection.
			return
		}
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn("Channel closed unexpectedly, reconnecting", zap.Error(err))
		s.reconnect()
	}()
}

func (s *amqpSubscription) dispatch(d *amqp.Delivery) {
	env := fromDelivery(d)
	result := s.params.handler(s.ctx, env)
	var err error
	switch result {
	case Ack:
		err = d.Ack(false)
	case Retry:
		err = d.Nack(false, true)
	case DeadLetter:
		err = d.Nack(false, false)
	}
	if err != nil {
		s.logger.Warn("Failed to settle delivery",
			zap.String("message_id", env.MessageID),
			zap.String("result", result.String()),
			zap.Error(err))
	}
}

// reconnect retries wiring with exponential backoff until it succeeds or
// the subscription is disposed.
func (s *amqpSubscription) reconnect() {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = reconnectInitialInterval
	policy.Multiplier = reconnectMultiplier
	policy.MaxInterval = reconnectMaxInterval

	for {
		wait := policy.NextBackOff()
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(wait):
		}

		ch, deliveries, err := s.wire()
		if err != nil {
			s.logger.Warn("Reconnect attempt failed", zap.Error(err))
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			ch.Close()
			return
		}
		s.channel = ch
		s.mu.Unlock()

		s.consume(ch, deliveries)
		s.logger.Info("Subscription reconnected", zap.String("queue", s.params.queue))
		return
	}
}

// Close cancels the consumer and closes the channel. The in-flight
// handler contexts are cancelled; no reconnection is attempted.
func (s *amqpSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()

	s.cancel()
	if ch != nil {
		return ch.Close()
	}
	return nil
}

var _ Subscription = (*amqpSubscription)(nil)
