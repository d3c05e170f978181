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
package mcpbridge

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/messages"
)

type fakeClient struct {
	mu     sync.Mutex
	tools  []messages.McpToolDescriptor
	callFn func(ctx context.Context, tool string, args map[string]any) (string, bool, error)
	closed bool
}

func (f *fakeClient) Connect(ctx context.Context) error { return nil }

func (f *fakeClient) ListTools(ctx context.Context) ([]messages.McpToolDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]messages.McpToolDescriptor, len(f.tools))
	copy(out, f.tools)
	return out, nil
}

func (f *fakeClient) CallTool(ctx context.Context, tool string, args map[string]any) (string, bool, error) {
	if f.callFn != nil {
		return f.callFn(ctx, tool, args)
	}
	return "result of " + tool, false, nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClient) setTools(tools []messages.McpToolDescriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools = tools
}

type pubCapture struct {
	mu     sync.Mutex
	topics []string
	envs   []*bus.Envelope
}

func (p *pubCapture) Publish(ctx context.Context, topic string, env *bus.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.envs = append(p.envs, env)
	return nil
}

func (p *pubCapture) byType(messageType string) []*bus.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*bus.Envelope
	for _, env := range p.envs {
		if env.MessageType == messageType {
			out = append(out, env)
		}
	}
	return out
}

func writeMcpConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func startBridge(t *testing.T, client *fakeClient) (*Bridge, *pubCapture) {
	t.Helper()
	publisher := &pubCapture{}
	b := NewBridge(BridgeConfig{
		AgentName:  "rocky",
		Publisher:  publisher,
		ConfigPath: writeMcpConfig(t, `{"mcpServers":{"search":{"type":"sse","url":"http://localhost:9/sse","deniedTools":["hidden_op"]}}}`),
		Factory: func(name string, cfg ServerConfig) (Client, error) {
			return client, nil
		},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)
	return b, publisher
}

func searchClient() *fakeClient {
	return &fakeClient{tools: []messages.McpToolDescriptor{
		{Name: "web_search", Description: "Searches", ParametersSchema: `{"type":"object"}`},
		{Name: "hidden_op", Description: "Filtered out"},
	}}
}

func TestBridgeStartPublishesFilteredTools(t *testing.T) {
	_, publisher := startBridge(t, searchClient())

	available := publisher.byType(messages.TypeMcpToolsAvailable)
	require.Len(t, available, 1)
	payload, err := bus.Payload[messages.McpToolsAvailable](available[0])
	require.NoError(t, err)
	assert.Equal(t, "search", payload.ServerName)
	require.Len(t, payload.Tools, 1)
	assert.Equal(t, "web_search", payload.Tools[0].Name)
	assert.Equal(t, bus.TrustSystem, available[0].Header(bus.HeaderContentTrust))
}

func invokeEnvelope(t *testing.T, msg messages.ToolInvokeRequest, opts ...bus.Option) *bus.Envelope {
	t.Helper()
	opts = append([]bus.Option{
		bus.WithCorrelationID("corr-1"),
		bus.WithReplyTo("tool.result.rocky"),
	}, opts...)
	env, err := bus.ToEnvelope(context.Background(), messages.TypeToolInvokeRequest, msg, "rocky", opts...)
	require.NoError(t, err)
	return env
}

func TestBridgeOnInvokeRoutesToServer(t *testing.T) {
	b, publisher := startBridge(t, searchClient())

	msg := messages.ToolInvokeRequest{ToolCallID: "c1", ToolName: "web_search", Arguments: `{"query":"go"}`}
	result := b.OnInvoke(context.Background(), invokeEnvelope(t, msg), msg)
	assert.Equal(t, bus.Ack, result)

	responses := publisher.byType(messages.TypeToolInvokeResponse)
	require.Len(t, responses, 1)
	assert.Equal(t, "corr-1", responses[0].CorrelationID)
	assert.Equal(t, bus.TrustToolOutput, responses[0].Header(bus.HeaderContentTrust))

	payload, err := bus.Payload[messages.ToolInvokeResponse](responses[0])
	require.NoError(t, err)
	assert.Equal(t, "result of web_search", payload.Content)
	assert.False(t, payload.IsError)
}

func TestBridgeOnInvokeUnknownTool(t *testing.T) {
	b, publisher := startBridge(t, searchClient())

	msg := messages.ToolInvokeRequest{ToolCallID: "c1", ToolName: "nope"}
	b.OnInvoke(context.Background(), invokeEnvelope(t, msg), msg)

	errs := publisher.byType(messages.TypeToolError)
	require.Len(t, errs, 1)
	payload, err := bus.Payload[messages.ToolError](errs[0])
	require.NoError(t, err)
	assert.Equal(t, messages.ToolErrorNotFound, payload.Code)
}

func TestBridgeOnInvokeDeniedToolIsInvisible(t *testing.T) {
	b, publisher := startBridge(t, searchClient())

	msg := messages.ToolInvokeRequest{ToolCallID: "c1", ToolName: "hidden_op"}
	b.OnInvoke(context.Background(), invokeEnvelope(t, msg), msg)

	errs := publisher.byType(messages.TypeToolError)
	require.Len(t, errs, 1)
	payload, err := bus.Payload[messages.ToolError](errs[0])
	require.NoError(t, err)
	assert.Equal(t, messages.ToolErrorNotFound, payload.Code)
}

func TestBridgeOnInvokeTimeout(t *testing.T) {
	client := searchClient()
	client.callFn = func(ctx context.Context, tool string, args map[string]any) (string, bool, error) {
		<-ctx.Done()
		return "", false, ctx.Err()
	}
	b, publisher := startBridge(t, client)

	msg := messages.ToolInvokeRequest{ToolCallID: "c1", ToolName: "web_search"}
	env := invokeEnvelope(t, msg, bus.WithHeader(bus.HeaderTimeoutMs, "30"))
	b.OnInvoke(context.Background(), env, msg)

	errs := publisher.byType(messages.TypeToolError)
	require.Len(t, errs, 1)
	payload, err := bus.Payload[messages.ToolError](errs[0])
	require.NoError(t, err)
	assert.Equal(t, messages.ToolErrorTimeout, payload.Code)
	assert.True(t, payload.IsRetryable)
}

func TestBridgeOnInvokeStringArgumentsGetHint(t *testing.T) {
	client := searchClient()
	client.callFn = func(ctx context.Context, tool string, args map[string]any) (string, bool, error) {
		assert.Equal(t, "just a string", args["input"])
		return "cannot parse input", true, nil
	}
	b, publisher := startBridge(t, client)

	msg := messages.ToolInvokeRequest{ToolCallID: "c1", ToolName: "web_search", Arguments: "just a string"}
	b.OnInvoke(context.Background(), invokeEnvelope(t, msg), msg)

	responses := publisher.byType(messages.TypeToolInvokeResponse)
	require.Len(t, responses, 1)
	payload, err := bus.Payload[messages.ToolInvokeResponse](responses[0])
	require.NoError(t, err)
	assert.True(t, payload.IsError)
	assert.Contains(t, payload.Content, "JSON object")
}

func TestBridgeOnRefreshPublishesRemovals(t *testing.T) {
	client := searchClient()
	b, publisher := startBridge(t, client)

	client.setTools([]messages.McpToolDescriptor{
		{Name: "new_search", Description: "Replacement"},
	})

	refresh := messages.McpMetadataRefreshRequest{ServerName: "search"}
	env, err := bus.ToEnvelope(context.Background(), messages.TypeMcpMetadataRefreshRequest, refresh, "rocky")
	require.NoError(t, err)
	b.OnRefresh(context.Background(), env, refresh)

	available := publisher.byType(messages.TypeMcpToolsAvailable)
	require.Len(t, available, 2, "initial publication plus the refresh diff")
	payload, errPayload := bus.Payload[messages.McpToolsAvailable](available[1])
	require.NoError(t, errPayload)
	require.Len(t, payload.Tools, 1)
	assert.Equal(t, "new_search", payload.Tools[0].Name)
	assert.Equal(t, []string{"web_search"}, payload.RemovedTools)
}

func TestBridgeOnRefreshIgnoresStaleRequests(t *testing.T) {
	refresh := messages.McpMetadataRefreshRequest{}
	env, err := bus.ToEnvelope(context.Background(), messages.TypeMcpMetadataRefreshRequest, refresh, "rocky")
	require.NoError(t, err)
	env.Timestamp = time.Now().UTC().Add(-time.Hour)

	b, publisher := startBridge(t, searchClient())
	before := len(publisher.byType(messages.TypeMcpToolsAvailable))

	b.OnRefresh(context.Background(), env, refresh)
	assert.Equal(t, before, len(publisher.byType(messages.TypeMcpToolsAvailable)))
}

func TestUnwrapAggregatorCall(t *testing.T) {
	inner := map[string]any{"query": "go"}
	wrapped := map[string]any{"tool_name": "invoke_tool", "arguments": inner}

	tool, args := unwrapAggregatorCall("tool-aggregator", "invoke_tool", wrapped)
	assert.Equal(t, "invoke_tool", tool)
	assert.Equal(t, inner, args)

	// Non-aggregator servers pass through untouched.
	tool, args = unwrapAggregatorCall("search", "invoke_tool", wrapped)
	assert.Equal(t, wrapped, args)
	assert.Equal(t, "invoke_tool", tool)
}
