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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/messages"
)

// DefaultProxyTimeout bounds a proxied invocation when the request
// carries no timeout header.
const DefaultProxyTimeout = 60 * time.Second

// ProxyRouter correlates tool responses arriving on the agent's result
// topic with waiting proxy executors.
type ProxyRouter struct {
	mu      sync.Mutex
	pending map[string]chan *Response
}

// NewProxyRouter creates an empty router.
func NewProxyRouter() *ProxyRouter {
	return &ProxyRouter{pending: make(map[string]chan *Response)}
}

func (r *ProxyRouter) register(correlationID string) chan *Response {
	ch := make(chan *Response, 1)
	r.mu.Lock()
	r.pending[correlationID] = ch
	r.mu.Unlock()
	return ch
}

func (r *ProxyRouter) drop(correlationID string) {
	r.mu.Lock()
	delete(r.pending, correlationID)
	r.mu.Unlock()
}

// Route delivers a response to the waiting executor, if any. Unmatched
// responses (late arrivals after timeout) are dropped.
func (r *ProxyRouter) Route(correlationID string, resp *Response) bool {
	r.mu.Lock()
	ch, ok := r.pending[correlationID]
	if ok {
		delete(r.pending, correlationID)
	}
	r.mu.Unlock()
	if ok {
		ch <- resp
	}
	return ok
}

// HandleInvokeResponse adapts a ToolInvokeResponse payload for routing.
func (r *ProxyRouter) HandleInvokeResponse(correlationID string, payload messages.ToolInvokeResponse) bool {
	return r.Route(correlationID, &Response{
		ToolCallID: payload.ToolCallID,
		ToolName:   payload.ToolName,
		Content:    payload.Content,
		IsError:    payload.IsError,
	})
}

// HandleToolError adapts a ToolError payload for routing.
func (r *ProxyRouter) HandleToolError(correlationID string, payload messages.ToolError) bool {
	return r.Route(correlationID, &Response{
		ToolCallID: payload.ToolCallID,
		ToolName:   payload.ToolName,
		Content:    fmt.Sprintf("%s: %s", payload.Code, payload.Message),
		IsError:    true,
	})
}

// BusProxy executes tools by publishing invoke requests onto the bus
// and awaiting the correlated response. It backs MCP and other remote
// bridge tools.
type BusProxy struct {
	publisher bus.Publisher
	router    *ProxyRouter
	agent     string
	replyTo   string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewBusProxy builds a proxy executor publishing to the invoke topic
// with replies routed to the agent's tool-result topic.
func NewBusProxy(publisher bus.Publisher, router *ProxyRouter, agent string, timeout time.Duration, logger *zap.Logger) *BusProxy {
	if timeout <= 0 {
		timeout = DefaultProxyTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusProxy{
		publisher: publisher,
		router:    router,
		agent:     agent,
		replyTo:   messages.ToolResultTopic(agent),
		timeout:   timeout,
		logger:    logger,
	}
}

// Execute publishes the invocation and blocks for the correlated reply.
func (p *BusProxy) Execute(ctx context.Context, req *Request) (*Response, error) {
	correlationID := uuid.NewString()
	ch := p.router.register(correlationID)
	defer p.router.drop(correlationID)

	env, err := bus.ToEnvelope(ctx, messages.TypeToolInvokeRequest, messages.ToolInvokeRequest{
		ToolCallID: req.ToolCallID,
		ToolName:   req.ToolName,
		Arguments:  req.Arguments,
		SessionID:  req.SessionID,
	}, p.agent,
		bus.WithCorrelationID(correlationID),
		bus.WithReplyTo(p.replyTo),
		bus.WithHeader(bus.HeaderTimeoutMs, fmt.Sprintf("%d", p.timeout.Milliseconds())),
	)
	if err != nil {
		return nil, err
	}
	if err := p.publisher.Publish(ctx, messages.ToolInvokeTopic, env); err != nil {
		return nil, fmt.Errorf("failed to publish tool invocation: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(p.timeout):
		return ErrorResponse(req, fmt.Sprintf("tool %s timed out after %s", req.ToolName, p.timeout)), nil
	case resp := <-ch:
		return resp, nil
	}
}

var _ Executor = (*BusProxy)(nil)
