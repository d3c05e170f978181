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
	"strings"
)

// MessageResult determines the broker disposition of a delivery.
type MessageResult int

const (
	// Ack acknowledges the delivery.
	Ack MessageResult = iota

	// Retry requeues the delivery for another attempt.
	Retry

	// DeadLetter rejects the delivery into the dead-letter queue.
	DeadLetter
)

// String returns the result name for logs and span tags.
func (r MessageResult) String() string {
	switch r {
	case Ack:
		return "ack"
	case Retry:
		return "retry"
	case DeadLetter:
		return "dead_letter"
	default:
		return "unknown"
	}
}

// Handler consumes a delivered envelope and reports its disposition.
type Handler func(ctx context.Context, env *Envelope) MessageResult

// Publisher emits envelopes onto a topic. Publish is fail-fast: broker
// errors bubble to the caller.
type Publisher interface {
	Publish(ctx context.Context, topic string, env *Envelope) error
}

// Subscriber opens durable, self-healing consumers.
type Subscriber interface {
	// Subscribe binds a durable queue for subscriptionName to topic and
	// starts delivering envelopes to handler. The same subscription name
	// always maps to the same queue.
	Subscribe(topic, subscriptionName string, handler Handler) (Subscription, error)
}

// Subscription is an active consumer. Closing cancels the consumer and
// releases its channel without triggering reconnection.
type Subscription interface {
	Topic() string
	Name() string
	Close() error
}

// Broker combines both halves of the bus.
type Broker interface {
	Publisher
	Subscriber
	Close() error
}

// TopicMatches reports whether a routing key matches a binding pattern
// using AMQP topic semantics: "*" matches exactly one dot-separated
// segment, "#" matches zero or more.
func TopicMatches(pattern, topic string) bool {
	return matchSegments(strings.Split(pattern, "."), strings.Split(topic, "."))
}

func matchSegments(pattern, topic []string) bool {
	if len(pattern) == 0 {
		return len(topic) == 0
	}
	switch pattern[0] {
	case "#":
		// "#" may swallow zero or more segments.
		for i := 0; i <= len(topic); i++ {
			if matchSegments(pattern[1:], topic[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(topic) > 0 && matchSegments(pattern[1:], topic[1:])
	default:
		return len(topic) > 0 && pattern[0] == topic[0] && matchSegments(pattern[1:], topic[1:])
	}
}
