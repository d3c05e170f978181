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
// Package bus defines the message envelope and the publisher/subscriber
// contracts every agent process communicates through.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Well-known envelope headers. Custom headers carry the "rb-" prefix so
// they survive the trip through broker properties untouched; unknown
// "rb-" headers propagate unchanged.
const (
	HeaderContentTrust = "rb-content-trust"
	HeaderToolProvider = "rb-tool-provider"
	HeaderTimeoutMs    = "rb-timeout-ms"
	HeaderSource       = "rb-source"
	HeaderDestination  = "rb-destination"

	// W3C trace context keys travel unprefixed.
	HeaderTraceParent = "traceparent"
	HeaderTraceState  = "tracestate"
)

// HeaderPrefix namespaces rockbot headers on the broker.
const HeaderPrefix = "rb-"

// Content trust levels carried in HeaderContentTrust.
const (
	TrustSystem     = "system"
	TrustUserInput  = "user-input"
	TrustToolOutput = "tool-output"
)

// Envelope is the uniform message carrier across the bus. Envelopes are
// immutable once created; Clone before mutating headers.
type Envelope struct {
	MessageID     string
	MessageType   string
	CorrelationID string
	ReplyTo       string
	Source        string
	Destination   string
	Timestamp     time.Time
	Body          []byte
	Headers       map[string]string
}

// Option customizes envelope creation.
type Option func(*Envelope)

// WithCorrelationID sets the correlation id copied through message chains.
func WithCorrelationID(id string) Option {
	return func(e *Envelope) { e.CorrelationID = id }
}

// WithReplyTo sets the response topic.
func WithReplyTo(topic string) Option {
	return func(e *Envelope) { e.ReplyTo = topic }
}

// WithDestination sets the optional destination component.
func WithDestination(dest string) Option {
	return func(e *Envelope) { e.Destination = dest }
}

// WithHeader sets a single header.
func WithHeader(key, value string) Option {
	return func(e *Envelope) { e.Headers[key] = value }
}

// WithHeaders merges the given headers.
func WithHeaders(headers map[string]string) Option {
	return func(e *Envelope) {
		for k, v := range headers {
			e.Headers[k] = v
		}
	}
}

// Create builds an envelope with a fresh message id and the current
// timestamp. The current trace context is injected into the headers.
func Create(ctx context.Context, messageType string, body []byte, source string, opts ...Option) *Envelope {
	e := &Envelope{
		MessageID:   uuid.NewString(),
		MessageType: messageType,
		Source:      source,
		Timestamp:   time.Now().UTC(),
		Body:        body,
		Headers:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	InjectTrace(ctx, e)
	return e
}

// ToEnvelope encodes a payload as JSON and wraps it in an envelope.
// Payload types declare camelCase json tags; that is the bus wire policy.
func ToEnvelope[T any](ctx context.Context, messageType string, payload T, source string, opts ...Option) (*Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", messageType, err)
	}
	return Create(ctx, messageType, body, source, opts...), nil
}

// Payload decodes the envelope body into T. A body that does not parse
// as T is the caller's validation error.
func Payload[T any](e *Envelope) (T, error) {
	var v T
	if err := json.Unmarshal(e.Body, &v); err != nil {
		return v, fmt.Errorf("failed to decode %s payload: %w", e.MessageType, err)
	}
	return v, nil
}

// Clone returns a deep copy of the envelope. Body bytes are shared since
// the body is immutable by contract.
func (e *Envelope) Clone() *Envelope {
	c := *e
	c.Headers = make(map[string]string, len(e.Headers))
	for k, v := range e.Headers {
		c.Headers[k] = v
	}
	return &c
}

// Header returns the value for key, or empty string.
func (e *Envelope) Header(key string) string {
	return e.Headers[key]
}

// TimeoutMs returns the per-message timeout header if present and valid.
func (e *Envelope) TimeoutMs() (time.Duration, bool) {
	raw, ok := e.Headers[HeaderTimeoutMs]
	if !ok {
		return 0, false
	}
	var ms int64
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d", &ms); err != nil || ms <= 0 {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

// headerCarrier adapts envelope headers to the otel propagation API.
type headerCarrier map[string]string

func (c headerCarrier) Get(key string) string { return c[key] }

func (c headerCarrier) Set(key, value string) { c[key] = value }

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// InjectTrace writes the current W3C trace context into the envelope
// headers.
func InjectTrace(ctx context.Context, e *Envelope) {
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(e.Headers))
}

// ExtractTrace returns a context carrying the trace context found in the
// envelope headers, if any.
func ExtractTrace(ctx context.Context, e *Envelope) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier(e.Headers))
}

var _ propagation.TextMapCarrier = headerCarrier(nil)
