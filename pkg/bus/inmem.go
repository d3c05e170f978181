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

	"go.uber.org/zap"
)

// InMemoryBroker is a process-local broker with the same topic semantics
// as the AMQP adapter. It backs single-process deployments and tests.
type InMemoryBroker struct {
	mu     sync.RWMutex
	subs   []*inmemSubscription
	dead   []*Envelope
	closed bool
	logger *zap.Logger

	// MaxRedeliveries bounds Retry loops before dead-lettering.
	MaxRedeliveries int
}

// NewInMemoryBroker creates an in-memory broker.
func NewInMemoryBroker(logger *zap.Logger) *InMemoryBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryBroker{logger: logger, MaxRedeliveries: 5}
}

type inmemSubscription struct {
	broker  *InMemoryBroker
	topic   string
	name    string
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
	mu      sync.Mutex
}

// Publish delivers the envelope to every subscription whose binding
// pattern matches the topic. Each matching subscription handles its own
// copy concurrently, mirroring independent queues on a topic exchange.
func (b *InMemoryBroker) Publish(ctx context.Context, topic string, env *Envelope) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("broker is closed")
	}
	var matched []*inmemSubscription
	for _, sub := range b.subs {
		if TopicMatches(sub.topic, topic) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		sub.deliver(env.Clone())
	}
	return nil
}

// Subscribe registers a handler for the topic pattern.
func (b *InMemoryBroker) Subscribe(topic, subscriptionName string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("broker is closed")
	}
	ctx, cancel := context.WithCancel(context.Background())
	sub := &inmemSubscription{
		broker:  b,
		topic:   topic,
		name:    subscriptionName,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
	b.subs = append(b.subs, sub)
	return sub, nil
}

// DeadLetters returns envelopes that exhausted their redeliveries.
func (b *InMemoryBroker) DeadLetters() []*Envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Envelope, len(b.dead))
	copy(out, b.dead)
	return out
}

func (b *InMemoryBroker) deadLetter(env *Envelope) {
	b.mu.Lock()
	b.dead = append(b.dead, env)
	b.mu.Unlock()
}

// Close cancels all subscriptions and waits for in-flight handlers.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.mu.Unlock()

	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].Close()
	}
	return nil
}

func (s *inmemSubscription) deliver(env *Envelope) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		for attempt := 0; ; attempt++ {
			if s.ctx.Err() != nil {
				return
			}
			switch s.handler(s.ctx, env) {
			case Ack:
				return
			case DeadLetter:
				s.broker.deadLetter(env)
				return
			case Retry:
				if attempt+1 >= s.broker.MaxRedeliveries {
					s.broker.deadLetter(env)
					return
				}
				select {
				case <-s.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
				}
			}
		}
	}()
}

func (s *inmemSubscription) Topic() string { return s.topic }

func (s *inmemSubscription) Name() string { return s.name }

func (s *inmemSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
	return nil
}

var (
	_ Broker       = (*InMemoryBroker)(nil)
	_ Subscription = (*inmemSubscription)(nil)
)
