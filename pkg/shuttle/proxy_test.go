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
package shuttle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/messages"
)

type capturingPublisher struct {
	mu        sync.Mutex
	envelopes []*bus.Envelope
	topics    []string
}

func (p *capturingPublisher) Publish(ctx context.Context, topic string, env *bus.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.envelopes = append(p.envelopes, env)
	return nil
}

func (p *capturingPublisher) last() (*bus.Envelope, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.envelopes) == 0 {
		return nil, ""
	}
	return p.envelopes[len(p.envelopes)-1], p.topics[len(p.topics)-1]
}

func TestBusProxyRoundTrip(t *testing.T) {
	publisher := &capturingPublisher{}
	router := NewProxyRouter()
	proxy := NewBusProxy(publisher, router, "rocky", time.Second, zaptest.NewLogger(t))

	done := make(chan *Response, 1)
	go func() {
		resp, err := proxy.Execute(context.Background(), &Request{
			ToolCallID: "c1",
			ToolName:   "web_search",
			Arguments:  `{"query":"go"}`,
			SessionID:  "s1",
		})
		if !assert.NoError(t, err) {
			return
		}
		done <- resp
	}()

	var env *bus.Envelope
	require.Eventually(t, func() bool {
		env, _ = publisher.last()
		return env != nil
	}, time.Second, 5*time.Millisecond)

	_, topic := publisher.last()
	assert.Equal(t, messages.ToolInvokeTopic, topic)
	assert.Equal(t, messages.ToolResultTopic("rocky"), env.ReplyTo)
	assert.NotEmpty(t, env.CorrelationID)
	timeout, ok := env.TimeoutMs()
	require.True(t, ok)
	assert.Equal(t, time.Second, timeout)

	payload, err := bus.Payload[messages.ToolInvokeRequest](env)
	require.NoError(t, err)
	assert.Equal(t, "web_search", payload.ToolName)

	routed := router.HandleInvokeResponse(env.CorrelationID, messages.ToolInvokeResponse{
		ToolCallID: "c1",
		ToolName:   "web_search",
		Content:    "results",
	})
	assert.True(t, routed)

	select {
	case resp := <-done:
		assert.Equal(t, "results", resp.Content)
		assert.False(t, resp.IsError)
	case <-time.After(time.Second):
		t.Fatal("proxy did not return routed response")
	}
}

func TestBusProxyTimesOut(t *testing.T) {
	proxy := NewBusProxy(&capturingPublisher{}, NewProxyRouter(), "rocky", 30*time.Millisecond, zaptest.NewLogger(t))

	resp, err := proxy.Execute(context.Background(), &Request{ToolName: "slow_tool"})
	require.NoError(t, err)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Content, "timed out")
}

func TestBusProxyCancelledContext(t *testing.T) {
	proxy := NewBusProxy(&capturingPublisher{}, NewProxyRouter(), "rocky", time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := proxy.Execute(ctx, &Request{ToolName: "t"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRouterDropsUnmatchedResponses(t *testing.T) {
	router := NewProxyRouter()
	assert.False(t, router.Route("unknown", &Response{Content: "late"}))
}

func TestRouterToolErrorBecomesErrorResponse(t *testing.T) {
	router := NewProxyRouter()
	ch := router.register("c1")

	routed := router.HandleToolError("c1", messages.ToolError{
		ToolCallID: "call",
		ToolName:   "web_search",
		Code:       messages.ToolErrorTimeout,
		Message:    "upstream stalled",
	})
	require.True(t, routed)

	resp := <-ch
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Content, "upstream stalled")
}
