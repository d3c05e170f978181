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
// Package mcpbridge hosts external MCP server connections and adapts
// them to the bus tool-invocation contract: it answers tool.invoke
// requests, republishes tool availability, and follows mcp.json edits
// on disk.
package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/messages"
)

// Bridge defaults.
const (
	// DefaultInvokeTimeout bounds one MCP call unless the request
	// carries a shorter timeout header.
	DefaultInvokeTimeout = 60 * time.Second

	// ConfigDebounce coalesces bursts of file-watch events.
	ConfigDebounce = 500 * time.Millisecond
)

// Per-server connection states.
type serverState int

const (
	stateDisconnected serverState = iota
	stateConnecting
	stateActive
)

func (s serverState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateActive:
		return "active"
	default:
		return "disconnected"
	}
}

type server struct {
	name   string
	cfg    ServerConfig
	client Client
	state  serverState
	tools  []messages.McpToolDescriptor
}

func (s *server) toolNames() []string {
	names := make([]string, 0, len(s.tools))
	for _, t := range s.tools {
		names = append(names, t.Name)
	}
	return names
}

// BridgeConfig wires a Bridge.
type BridgeConfig struct {
	AgentName  string
	Publisher  bus.Publisher
	ConfigPath string

	// Factory defaults to NewSSEClient.
	Factory ClientFactory

	InvokeTimeout time.Duration
	Logger        *zap.Logger
}

// Bridge is the hosted MCP service. Per-server state is mutated only
// under mu; connection transitions log but never terminate the service.
type Bridge struct {
	agent      string
	publisher  bus.Publisher
	configPath string
	factory    ClientFactory
	timeout    time.Duration
	logger     *zap.Logger

	mu                 sync.Mutex
	servers            map[string]*server
	startupCompletedAt time.Time

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewBridge builds a bridge. Start connects it.
func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Factory == nil {
		cfg.Factory = NewSSEClient
	}
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = DefaultInvokeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Bridge{
		agent:      cfg.AgentName,
		publisher:  cfg.Publisher,
		configPath: cfg.ConfigPath,
		factory:    cfg.Factory,
		timeout:    cfg.InvokeTimeout,
		servers:    make(map[string]*server),
		logger:     cfg.Logger,
		done:       make(chan struct{}),
	}
}

// Start parses the config, connects every server, publishes the initial
// tool availability, and begins watching the config file.
func (b *Bridge) Start(ctx context.Context) error {
	cfg, err := LoadConfig(b.configPath)
	if err != nil {
		return err
	}
	for name, sc := range cfg.McpServers {
		b.connectServer(ctx, name, sc)
	}

	b.mu.Lock()
	b.startupCompletedAt = time.Now().UTC()
	b.mu.Unlock()

	if b.configPath != "" {
		if err := b.watchConfig(ctx); err != nil {
			// The bridge still serves its current config.
			b.logger.Warn("MCP config watch unavailable", zap.Error(err))
		}
	}
	return nil
}

// Stop disconnects every server and stops the watcher.
func (b *Bridge) Stop() {
	close(b.done)
	if b.watcher != nil {
		b.watcher.Close()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, srv := range b.servers {
		if srv.client != nil {
			srv.client.Close()
		}
		srv.state = stateDisconnected
		delete(b.servers, name)
	}
}

// connectServer opens and lists one server, then publishes its tools.
// Failure leaves the server disconnected; it will be retried on the
// next refresh or config change.
func (b *Bridge) connectServer(ctx context.Context, name string, cfg ServerConfig) {
	srv := &server{name: name, cfg: cfg, state: stateConnecting}
	b.mu.Lock()
	b.servers[name] = srv
	b.mu.Unlock()
	b.logger.Info("Connecting MCP server", zap.String("server", name), zap.String("url", cfg.URL))

	client, err := b.factory(name, cfg)
	if err != nil {
		b.logger.Error("Failed to create MCP client", zap.String("server", name), zap.Error(err))
		b.setState(name, stateDisconnected)
		return
	}
	if err := client.Connect(ctx); err != nil {
		b.logger.Error("Failed to connect MCP server", zap.String("server", name), zap.Error(err))
		b.setState(name, stateDisconnected)
		return
	}

	tools, err := b.listFiltered(ctx, client, cfg)
	if err != nil {
		b.logger.Error("Failed to list MCP tools", zap.String("server", name), zap.Error(err))
		client.Close()
		b.setState(name, stateDisconnected)
		return
	}

	b.mu.Lock()
	srv.client = client
	srv.tools = tools
	srv.state = stateActive
	b.mu.Unlock()

	b.logger.Info("MCP server active", zap.String("server", name), zap.Int("tools", len(tools)))
	b.publishAvailability(ctx, name, tools, nil)
}

func (b *Bridge) setState(name string, state serverState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if srv, ok := b.servers[name]; ok {
		b.logger.Debug("MCP server state change",
			zap.String("server", name),
			zap.String("from", srv.state.String()),
			zap.String("to", state.String()))
		srv.state = state
	}
}

func (b *Bridge) listFiltered(ctx context.Context, client Client, cfg ServerConfig) ([]messages.McpToolDescriptor, error) {
	all, err := client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	var filtered []messages.McpToolDescriptor
	for _, tool := range all {
		if cfg.Allows(tool.Name) {
			filtered = append(filtered, tool)
		}
	}
	return filtered, nil
}

// publishAvailability announces a server's tool set on the agent's MCP
// metadata topic with system trust.
func (b *Bridge) publishAvailability(ctx context.Context, serverName string, tools []messages.McpToolDescriptor, removed []string) {
	env, err := bus.ToEnvelope(ctx, messages.TypeMcpToolsAvailable, messages.McpToolsAvailable{
		ServerName:   serverName,
		Tools:        tools,
		RemovedTools: removed,
	}, b.agent, bus.WithHeader(bus.HeaderContentTrust, bus.TrustSystem))
	if err != nil {
		b.logger.Error("Failed to encode tool availability", zap.Error(err))
		return
	}
	if err := b.publisher.Publish(ctx, messages.McpMetaTopic(b.agent), env); err != nil {
		b.logger.Error("Failed to publish tool availability", zap.String("server", serverName), zap.Error(err))
	}
}

// OnInvoke handles a tool.invoke request: route to the advertising
// server, call it, and publish the response or a classified error to
// the reply topic.
func (b *Bridge) OnInvoke(ctx context.Context, env *bus.Envelope, msg messages.ToolInvokeRequest) bus.MessageResult {
	replyTo := env.ReplyTo
	if replyTo == "" {
		replyTo = messages.ToolResultTopic(env.Source)
	}

	srv := b.serverForTool(msg.ToolName)
	if srv == nil {
		b.publishError(ctx, replyTo, env.CorrelationID, messages.ToolError{
			ToolCallID: msg.ToolCallID,
			ToolName:   msg.ToolName,
			Code:       messages.ToolErrorNotFound,
			Message:    fmt.Sprintf("no MCP server advertises tool %s", msg.ToolName),
		})
		return bus.Ack
	}

	toolName := msg.ToolName
	args, argErr := parseArguments(msg.Arguments)
	if argErr == nil {
		toolName, args = unwrapAggregatorCall(srv.name, toolName, args)
	}

	timeout := b.timeout
	if headerTimeout, ok := env.TimeoutMs(); ok && headerTimeout < timeout {
		timeout = headerTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	content, isError, err := srv.client.CallTool(callCtx, toolName, args)
	switch {
	case err != nil && callCtx.Err() == context.DeadlineExceeded:
		b.publishError(ctx, replyTo, env.CorrelationID, messages.ToolError{
			ToolCallID:  msg.ToolCallID,
			ToolName:    msg.ToolName,
			Code:        messages.ToolErrorTimeout,
			Message:     fmt.Sprintf("tool %s timed out after %s", msg.ToolName, timeout),
			IsRetryable: true,
		})
	case err != nil:
		b.publishError(ctx, replyTo, env.CorrelationID, messages.ToolError{
			ToolCallID: msg.ToolCallID,
			ToolName:   msg.ToolName,
			Code:       messages.ToolErrorExecutionFailed,
			Message:    err.Error(),
		})
	default:
		if isError && argErr != nil {
			content += "\n\nHint: tool arguments must be a JSON object, for example {\"param\": \"value\"}; a bare string is not accepted."
		}
		b.publishResponse(ctx, replyTo, env.CorrelationID, messages.ToolInvokeResponse{
			ToolCallID: msg.ToolCallID,
			ToolName:   msg.ToolName,
			Content:    content,
			IsError:    isError,
		})
	}
	return bus.Ack
}

// OnRefresh re-lists tools for one or all servers and publishes diffs.
// Requests predating startup are covered by the initial publication and
// ignored.
func (b *Bridge) OnRefresh(ctx context.Context, env *bus.Envelope, msg messages.McpMetadataRefreshRequest) bus.MessageResult {
	b.mu.Lock()
	startedAt := b.startupCompletedAt
	b.mu.Unlock()
	if env.Timestamp.Before(startedAt) {
		b.logger.Debug("Ignoring stale MCP refresh request",
			zap.Time("envelope", env.Timestamp),
			zap.Time("startup", startedAt))
		return bus.Ack
	}

	for _, srv := range b.snapshotServers() {
		if msg.ServerName != "" && msg.ServerName != srv.name {
			continue
		}
		b.refreshServer(ctx, srv.name)
	}
	return bus.Ack
}

func (b *Bridge) refreshServer(ctx context.Context, name string) {
	b.mu.Lock()
	srv, ok := b.servers[name]
	if !ok || srv.client == nil || srv.state != stateActive {
		b.mu.Unlock()
		return
	}
	client, cfg, before := srv.client, srv.cfg, srv.toolNames()
	b.mu.Unlock()

	tools, err := b.listFiltered(ctx, client, cfg)
	if err != nil {
		b.logger.Warn("MCP refresh failed", zap.String("server", name), zap.Error(err))
		return
	}

	after := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		after[t.Name] = struct{}{}
	}
	var removed []string
	for _, oldName := range before {
		if _, still := after[oldName]; !still {
			removed = append(removed, oldName)
		}
	}

	b.mu.Lock()
	if srv, ok := b.servers[name]; ok {
		srv.tools = tools
	}
	b.mu.Unlock()

	b.publishAvailability(ctx, name, tools, removed)
}

// watchConfig follows mcp.json with a debounce so editors that write in
// bursts trigger one reload.
func (b *Bridge) watchConfig(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(b.configPath)); err != nil {
		watcher.Close()
		return err
	}
	b.watcher = watcher

	go func() {
		var debounce *time.Timer
		fire := make(chan struct{}, 1)
		for {
			select {
			case <-b.done:
				return
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(b.configPath) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(ConfigDebounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				b.logger.Warn("MCP config watch error", zap.Error(err))
			case <-fire:
				b.reloadConfig(ctx)
			}
		}
	}()
	return nil
}

// reloadConfig diffs the config against the running set: removed
// servers disconnect (announcing their tools as removed), new or
// changed servers (re)connect.
func (b *Bridge) reloadConfig(ctx context.Context) {
	cfg, err := LoadConfig(b.configPath)
	if err != nil {
		b.logger.Error("Failed to reload MCP config", zap.Error(err))
		return
	}
	b.logger.Info("MCP config changed, reconciling", zap.Int("servers", len(cfg.McpServers)))

	for _, srv := range b.snapshotServers() {
		next, still := cfg.McpServers[srv.name]
		if still && srv.cfg.Equal(next) {
			continue
		}
		removed := b.disconnectServer(srv.name)
		if len(removed) > 0 || !still {
			b.publishAvailability(ctx, srv.name, nil, removed)
		}
	}
	for name, sc := range cfg.McpServers {
		b.mu.Lock()
		_, running := b.servers[name]
		b.mu.Unlock()
		if !running {
			b.connectServer(ctx, name, sc)
		}
	}
}

func (b *Bridge) disconnectServer(name string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	srv, ok := b.servers[name]
	if !ok {
		return nil
	}
	if srv.client != nil {
		srv.client.Close()
	}
	names := srv.toolNames()
	delete(b.servers, name)
	b.logger.Info("Disconnected MCP server", zap.String("server", name), zap.Strings("removedTools", names))
	return names
}

func (b *Bridge) serverForTool(tool string) *server {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, srv := range b.servers {
		if srv.state != stateActive {
			continue
		}
		for _, t := range srv.tools {
			if t.Name == tool {
				return srv
			}
		}
	}
	return nil
}

func (b *Bridge) snapshotServers() []*server {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*server, 0, len(b.servers))
	for _, srv := range b.servers {
		out = append(out, srv)
	}
	return out
}

func (b *Bridge) publishResponse(ctx context.Context, topic, correlationID string, payload messages.ToolInvokeResponse) {
	env, err := bus.ToEnvelope(ctx, messages.TypeToolInvokeResponse, payload, b.agent,
		bus.WithCorrelationID(correlationID),
		bus.WithHeader(bus.HeaderContentTrust, bus.TrustToolOutput),
		bus.WithHeader(bus.HeaderToolProvider, "mcp"))
	if err != nil {
		b.logger.Error("Failed to encode tool response", zap.Error(err))
		return
	}
	if err := b.publisher.Publish(ctx, topic, env); err != nil {
		b.logger.Error("Failed to publish tool response", zap.String("topic", topic), zap.Error(err))
	}
}

func (b *Bridge) publishError(ctx context.Context, topic, correlationID string, payload messages.ToolError) {
	env, err := bus.ToEnvelope(ctx, messages.TypeToolError, payload, b.agent,
		bus.WithCorrelationID(correlationID),
		bus.WithHeader(bus.HeaderToolProvider, "mcp"))
	if err != nil {
		b.logger.Error("Failed to encode tool error", zap.Error(err))
		return
	}
	if err := b.publisher.Publish(ctx, topic, env); err != nil {
		b.logger.Error("Failed to publish tool error", zap.String("topic", topic), zap.Error(err))
	}
}

// parseArguments decodes a JSON-object argument string. Non-object
// arguments are forwarded as {"input": <string>} with the parse error
// preserved for the hint on tool-reported failures.
func parseArguments(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		return map[string]any{"input": raw}, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// unwrapAggregatorCall flattens a self-referential invoke_tool call
// observed with aggregator servers: invoke_tool wrapping another
// invoke_tool just adds a layer around the real arguments.
func unwrapAggregatorCall(serverName, tool string, args map[string]any) (string, map[string]any) {
	if !strings.Contains(strings.ToLower(serverName), "aggregator") || tool != "invoke_tool" {
		return tool, args
	}
	innerName, _ := args["tool_name"].(string)
	if innerName != "invoke_tool" {
		return tool, args
	}
	if inner, ok := args["arguments"].(map[string]any); ok {
		return tool, inner
	}
	return tool, args
}
