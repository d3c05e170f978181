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
package host

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/a2a"
	"github.com/teradata-labs/rockbot/pkg/agent"
	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/config"
	"github.com/teradata-labs/rockbot/pkg/dispatch"
	"github.com/teradata-labs/rockbot/pkg/llm"
	"github.com/teradata-labs/rockbot/pkg/mcpbridge"
	"github.com/teradata-labs/rockbot/pkg/memory"
	"github.com/teradata-labs/rockbot/pkg/messages"
	"github.com/teradata-labs/rockbot/pkg/scheduler"
	"github.com/teradata-labs/rockbot/pkg/shuttle"
	"github.com/teradata-labs/rockbot/pkg/shuttle/builtin"
	"github.com/teradata-labs/rockbot/pkg/subagent"
	"github.com/teradata-labs/rockbot/pkg/work"
)

// Builder declaratively assembles a Host. Every With/Add call is
// idempotent and order-independent; wiring happens in Build.
type Builder struct {
	name   string
	broker bus.Broker
	chat   llm.ChatClient
	volume config.DataVolume
	logger *zap.Logger

	userProxy string

	withProfile         bool
	withMemory          bool
	withConversationLog bool
	withFeedback        bool
	withSkills          bool
	withRules           bool

	behaviors []agent.ModelBehavior

	workingTTL         time.Duration
	maxHistoryTurns    int
	historyTokenBudget int
	chunkThreshold     int
	toolTimeout        time.Duration
	maxToolIterations  int

	toolHandler   bool
	mcpProxy      bool
	mcpBridge     bool
	a2aEnabled    bool
	subagents     bool
	heartbeat     bool
	heartbeatCron string
	tasks         []scheduler.Task

	extraSpecs []subscriptionSpec
	typedRegs  []func(h *Host)
}

// NewBuilder starts a host definition over a broker connection.
func NewBuilder(broker bus.Broker) *Builder {
	return &Builder{broker: broker, userProxy: "user"}
}

// WithIdentity names the agent. Required.
func (b *Builder) WithIdentity(name string) *Builder {
	b.name = name
	return b
}

// WithLogger sets the host logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithChatClient sets the LLM the orchestrator talks to. Hosts without
// one carry no orchestrator (e.g. a standalone MCP bridge process).
func (b *Builder) WithChatClient(chat llm.ChatClient) *Builder {
	b.chat = chat
	return b
}

// WithDataVolume points the host at its persistent configuration
// directory.
func (b *Builder) WithDataVolume(volume config.DataVolume) *Builder {
	b.volume = volume
	return b
}

// WithUserProxy sets the topic base for user-facing traffic.
func (b *Builder) WithUserProxy(userProxy string) *Builder {
	if userProxy != "" {
		b.userProxy = userProxy
	}
	return b
}

// WithProfile loads the agent profile from the data volume at build
// time.
func (b *Builder) WithProfile() *Builder {
	b.withProfile = true
	return b
}

// WithMemory enables working and long-term memory.
func (b *Builder) WithMemory() *Builder {
	b.withMemory = true
	return b
}

// WithConversationLog enables per-session turn recording and the
// conversation-history request handler.
func (b *Builder) WithConversationLog() *Builder {
	b.withConversationLog = true
	return b
}

// WithFeedback subscribes to user feedback and enables re-evaluation
// of unsatisfying answers.
func (b *Builder) WithFeedback() *Builder {
	b.withFeedback = true
	return b
}

// WithSkills enables the skill store.
func (b *Builder) WithSkills() *Builder {
	b.withSkills = true
	return b
}

// WithRules enables the permanent rules store.
func (b *Builder) WithRules() *Builder {
	b.withRules = true
	return b
}

// WithModelBehaviors sets inline model-specific behavior overrides.
// Filesystem prompt files under the data volume take precedence.
func (b *Builder) WithModelBehaviors(behaviors []agent.ModelBehavior) *Builder {
	b.behaviors = behaviors
	return b
}

// WithLimits tunes history, chunking, and tool-loop bounds. Zero values
// keep defaults.
func (b *Builder) WithLimits(maxHistoryTurns, historyTokenBudget, chunkThreshold, maxToolIterations int) *Builder {
	b.maxHistoryTurns = maxHistoryTurns
	b.historyTokenBudget = historyTokenBudget
	b.chunkThreshold = chunkThreshold
	b.maxToolIterations = maxToolIterations
	return b
}

// WithWorkingTTL sets the default working-memory entry lifetime.
func (b *Builder) WithWorkingTTL(ttl time.Duration) *Builder {
	b.workingTTL = ttl
	return b
}

// WithToolTimeout bounds individual tool invocations.
func (b *Builder) WithToolTimeout(timeout time.Duration) *Builder {
	b.toolTimeout = timeout
	return b
}

// AddToolHandler registers the builtin memory, skill, and rules tools.
func (b *Builder) AddToolHandler() *Builder {
	b.toolHandler = true
	return b
}

// AddMcpToolProxy routes MCP tool availability announcements into the
// registry, backed by bus-proxied executors.
func (b *Builder) AddMcpToolProxy() *Builder {
	b.mcpProxy = true
	return b
}

// AddMcpBridge hosts the MCP bridge service in this process, serving
// tool invokes for the servers configured in the data volume's
// mcp.json.
func (b *Builder) AddMcpBridge() *Builder {
	b.mcpBridge = true
	return b
}

// AddA2A enables agent-to-agent delegation, both calling out via the
// invoke_agent tool and serving inbound task requests.
func (b *Builder) AddA2A() *Builder {
	b.a2aEnabled = true
	return b
}

// AddSubagents enables in-process helper agents and the whiteboard.
func (b *Builder) AddSubagents() *Builder {
	b.subagents = true
	return b
}

// AddHeartbeat schedules the periodic self-check prompt. Empty cron
// uses the default interval.
func (b *Builder) AddHeartbeat(cronSpec string) *Builder {
	b.heartbeat = true
	b.heartbeatCron = cronSpec
	return b
}

// AddScheduledTask adds a recurring prompt.
func (b *Builder) AddScheduledTask(task scheduler.Task) *Builder {
	b.tasks = append(b.tasks, task)
	return b
}

// SubscribeTo opens an extra subscription at startup, routed through
// the pipeline.
func (b *Builder) SubscribeTo(topic, subscriptionName string) *Builder {
	b.extraSpecs = append(b.extraSpecs, subscriptionSpec{topic: topic, name: subscriptionName})
	return b
}

// HandleMessage registers a typed handler on the builder's pipeline.
func HandleMessage[T any](b *Builder, messageType string, fn func(ctx context.Context, env *bus.Envelope, payload T) (bus.MessageResult, error)) *Builder {
	b.typedRegs = append(b.typedRegs, func(h *Host) {
		h.pipeline.Register(messageType, dispatch.HandlerFor(fn))
	})
	return b
}

// Build wires everything into a runnable Host.
func (b *Builder) Build() (*Host, error) {
	if b.name == "" {
		return nil, fmt.Errorf("host requires an identity")
	}
	if b.broker == nil {
		return nil, fmt.Errorf("host requires a broker")
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hostCtx, cancel := context.WithCancel(context.Background())
	h := &Host{
		name:     b.name,
		broker:   b.broker,
		pipeline: dispatch.NewPipeline(b.name, logger),
		registry: shuttle.NewRegistry(),
		sessions: work.NewSessionTracker(),
		hostCtx:  hostCtx,
		cancel:   cancel,
		logger:   logger,
	}

	var (
		working      *memory.Working
		longTerm     *memory.LongTerm
		conversation *memory.Conversation
		skills       *memory.Skills
		rules        *memory.Rules
		profile      *memory.AgentProfile
	)
	if b.withMemory {
		working = memory.NewWorking()
		if b.workingTTL > 0 {
			working.SetDefaultTTL(b.workingTTL)
		}
		longTerm = memory.NewLongTerm()
	}
	if b.withConversationLog {
		conversation = memory.NewConversation()
	}
	if b.withSkills {
		skills = memory.NewSkills()
	}
	if b.withRules {
		rules = memory.NewRules()
	}
	if b.withProfile {
		loaded, err := memory.LoadProfile(b.volume.Root)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("loading agent profile: %w", err)
		}
		profile = loaded
	}

	if b.chat != nil {
		if err := b.wireOrchestrator(h, working, longTerm, conversation, skills, rules, profile); err != nil {
			cancel()
			return nil, err
		}
	}

	if b.toolHandler {
		deps := builtin.Deps{Skills: nilIfSkills(skills), Rules: nilIfRules(rules)}
		if working != nil {
			deps.Working = working
		}
		if longTerm != nil {
			deps.LongTerm = longTerm
		}
		if err := builtin.Register(h.registry, deps, logger); err != nil {
			cancel()
			return nil, fmt.Errorf("registering builtin tools: %w", err)
		}
	}

	if b.mcpProxy || b.a2aEnabled {
		b.wireProxyRouter(h, working, logger)
	}

	if b.mcpBridge {
		bridge := mcpbridge.NewBridge(mcpbridge.BridgeConfig{
			AgentName:     b.name,
			Publisher:     b.broker,
			ConfigPath:    b.volume.MCPConfigPath(),
			InvokeTimeout: b.toolTimeout,
			Logger:        logger,
		})
		h.pipeline.Register(messages.TypeToolInvokeRequest,
			dispatch.HandlerFor(func(ctx context.Context, env *bus.Envelope, msg messages.ToolInvokeRequest) (bus.MessageResult, error) {
				return bridge.OnInvoke(ctx, env, msg), nil
			}))
		h.pipeline.Register(messages.TypeMcpMetadataRefreshRequest,
			dispatch.HandlerFor(func(ctx context.Context, env *bus.Envelope, msg messages.McpMetadataRefreshRequest) (bus.MessageResult, error) {
				return bridge.OnRefresh(ctx, env, msg), nil
			}))
		h.specs = append(h.specs,
			subscriptionSpec{topic: messages.ToolInvokeTopic, name: b.name + "-tool-invoke"},
			subscriptionSpec{topic: messages.McpRefreshTopic, name: b.name + "-mcp-refresh"},
		)
		h.services = append(h.services, bridge)
	}

	if b.a2aEnabled {
		if err := b.wireA2A(h, logger); err != nil {
			cancel()
			return nil, err
		}
	}

	if b.subagents && h.orchestrator != nil {
		b.wireSubagents(h, conversation, logger)
	}

	if (b.heartbeat || len(b.tasks) > 0) && h.orchestrator != nil {
		tasks := b.tasks
		if b.heartbeat {
			tasks = append(tasks, scheduler.HeartbeatTask(b.heartbeatCron))
		}
		sched, err := scheduler.NewScheduler(scheduler.Config{
			AgentName:   b.name,
			Tasks:       tasks,
			Run:         h.orchestrator.RunScheduled,
			Publisher:   b.broker,
			ResultTopic: messages.UserResponseTopic(b.userProxy),
			Logger:      logger,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("building scheduler: %w", err)
		}
		h.services = append(h.services, schedulerService{sched})
	}

	if working != nil {
		b.wrapWithChunker(h, working, logger)
	}

	for _, reg := range b.typedRegs {
		reg(h)
	}
	h.specs = append(h.specs, b.extraSpecs...)

	return h, nil
}

// wireOrchestrator builds the assembler, orchestrator, and user-facing
// handlers and subscriptions.
func (b *Builder) wireOrchestrator(h *Host, working *memory.Working, longTerm *memory.LongTerm, conversation *memory.Conversation, skills *memory.Skills, rules *memory.Rules, profile *memory.AgentProfile) error {
	cfg := agent.AssemblerConfig{
		Profile:            profile,
		BriefingPath:       b.volume.SessionStartPath(),
		MaxHistoryTurns:    b.maxHistoryTurns,
		HistoryTokenBudget: b.historyTokenBudget,
		Logger:             h.logger,
	}
	if rules != nil {
		cfg.Rules = rules
	}
	if conversation != nil {
		cfg.Conversation = conversation
	}
	if longTerm != nil {
		cfg.LongTerm = longTerm
	}
	if working != nil {
		cfg.Working = working
	}
	if skills != nil {
		cfg.Skills = skills
	}
	assembler := agent.NewAssembler(cfg)

	orchCfg := agent.Config{
		AgentName:         b.name,
		Publisher:         b.broker,
		Registry:          h.registry,
		Chat:              b.chat,
		Assembler:         assembler,
		Serializer:        work.NewSerializer(),
		Sessions:          h.sessions,
		Behaviors:         agent.NewBehaviorSet(b.behaviors, b.volume.ModelBehaviorsDir()),
		DefaultReplyTopic: messages.UserResponseTopic(b.userProxy),
		MaxToolIterations: b.maxToolIterations,
		ToolTimeout:       b.toolTimeout,
		Logger:            h.logger,
	}
	if conversation != nil {
		orchCfg.Conversation = conversation
	}
	h.orchestrator = agent.New(h.hostCtx, orchCfg)

	h.pipeline.Register(messages.TypeUserMessage,
		dispatch.HandlerFor(func(ctx context.Context, env *bus.Envelope, msg messages.UserMessage) (bus.MessageResult, error) {
			return h.orchestrator.OnUserMessage(ctx, env, msg), nil
		}))
	h.specs = append(h.specs, subscriptionSpec{
		topic: messages.UserMessageTopic(b.userProxy),
		name:  b.name + "-user-messages",
	})

	if b.withFeedback {
		h.pipeline.Register(messages.TypeUserFeedback,
			dispatch.HandlerFor(func(ctx context.Context, env *bus.Envelope, msg messages.UserFeedback) (bus.MessageResult, error) {
				return h.orchestrator.OnFeedback(ctx, env, msg), nil
			}))
		h.specs = append(h.specs, subscriptionSpec{
			topic: messages.UserFeedbackTopic(b.userProxy),
			name:  b.name + "-user-feedback",
		})
	}

	if conversation != nil {
		h.pipeline.Register(messages.TypeConversationHistoryRequest,
			dispatch.HandlerFor(func(ctx context.Context, env *bus.Envelope, msg messages.ConversationHistoryRequest) (bus.MessageResult, error) {
				return h.orchestrator.OnHistoryRequest(ctx, env, msg), nil
			}))
		h.specs = append(h.specs, subscriptionSpec{
			topic: messages.ConversationHistoryTopic(b.userProxy),
			name:  b.name + "-history-requests",
		})
	}
	return nil
}

// wireProxyRouter routes tool results from the bus back to waiting
// proxy executors, and for MCP consumes availability announcements.
func (b *Builder) wireProxyRouter(h *Host, working *memory.Working, logger *zap.Logger) {
	router := shuttle.NewProxyRouter()

	h.pipeline.Register(messages.TypeToolInvokeResponse,
		dispatch.HandlerFor(func(ctx context.Context, env *bus.Envelope, msg messages.ToolInvokeResponse) (bus.MessageResult, error) {
			router.HandleInvokeResponse(env.CorrelationID, msg)
			return bus.Ack, nil
		}))
	h.pipeline.Register(messages.TypeToolError,
		dispatch.HandlerFor(func(ctx context.Context, env *bus.Envelope, msg messages.ToolError) (bus.MessageResult, error) {
			router.HandleToolError(env.CorrelationID, msg)
			return bus.Ack, nil
		}))
	h.specs = append(h.specs, subscriptionSpec{
		topic: messages.ToolResultTopic(b.name),
		name:  b.name + "-tool-results",
	})

	if !b.mcpProxy {
		return
	}

	proxy := shuttle.NewBusProxy(b.broker, router, b.name, b.toolTimeout, logger)
	var executor shuttle.Executor = proxy
	if working != nil {
		executor = shuttle.NewChunkingExecutor(proxy, working, b.chunkThreshold, builtin.ChunkingExempt(), logger)
	}

	h.pipeline.Register(messages.TypeMcpToolsAvailable,
		dispatch.HandlerFor(func(ctx context.Context, env *bus.Envelope, msg messages.McpToolsAvailable) (bus.MessageResult, error) {
			for _, name := range msg.RemovedTools {
				h.registry.Unregister(name)
			}
			for _, tool := range msg.Tools {
				h.registry.Unregister(tool.Name)
				if err := h.registry.Register(shuttle.Registration{
					Name:             tool.Name,
					Description:      tool.Description,
					ParametersSchema: tool.ParametersSchema,
					Source:           shuttle.SourceMCP,
				}, executor); err != nil {
					logger.Warn("Failed to register MCP tool",
						zap.String("tool", tool.Name), zap.Error(err))
				}
			}
			logger.Info("MCP tool set updated",
				zap.String("server", msg.ServerName),
				zap.Int("tools", len(msg.Tools)),
				zap.Int("removed", len(msg.RemovedTools)))
			return bus.Ack, nil
		}))
	h.specs = append(h.specs, subscriptionSpec{
		topic: messages.McpMetaTopic(b.name),
		name:  b.name + "-mcp-meta",
	})
}

// wireA2A registers the caller and handler sides of delegation plus the
// invoke_agent and list_agents tools.
func (b *Builder) wireA2A(h *Host, logger *zap.Logger) error {
	directory, err := a2a.LoadAgentDirectory(b.volume.KnownAgentsPath())
	if err != nil {
		return fmt.Errorf("loading agent directory: %w", err)
	}

	caller := a2a.NewCaller(b.name, b.broker, a2a.DefaultResultTopicBase, func(ctx context.Context, event a2a.TaskEvent) {
		logger.Info("A2A task event",
			zap.String("task", event.TaskID),
			zap.String("agent", event.AgentName),
			zap.String("state", event.State),
			zap.Bool("terminal", event.Terminal))
	}, logger)

	h.pipeline.Register(messages.TypeAgentTaskStatusUpdate,
		dispatch.HandlerFor(func(ctx context.Context, env *bus.Envelope, msg messages.AgentTaskStatusUpdate) (bus.MessageResult, error) {
			return caller.OnStatusUpdate(ctx, env, msg), nil
		}))
	h.pipeline.Register(messages.TypeAgentTaskResult,
		dispatch.HandlerFor(func(ctx context.Context, env *bus.Envelope, msg messages.AgentTaskResult) (bus.MessageResult, error) {
			return caller.OnResult(ctx, env, msg), nil
		}))
	h.pipeline.Register(messages.TypeAgentTaskError,
		dispatch.HandlerFor(func(ctx context.Context, env *bus.Envelope, msg messages.AgentTaskError) (bus.MessageResult, error) {
			return caller.OnError(ctx, env, msg), nil
		}))
	h.specs = append(h.specs, subscriptionSpec{
		topic: caller.ResultTopic(),
		name:  b.name + "-task-results",
	})

	if h.orchestrator != nil {
		handler := a2a.NewHandler(b.name, b.broker, "", func(ctx context.Context, req messages.AgentTaskRequest) (string, error) {
			return h.orchestrator.RunDetached(ctx, "a2a/"+req.TaskID, req.Message)
		}, logger)
		h.pipeline.Register(messages.TypeAgentTaskRequest,
			dispatch.HandlerFor(func(ctx context.Context, env *bus.Envelope, msg messages.AgentTaskRequest) (bus.MessageResult, error) {
				return handler.OnTaskRequest(ctx, env, msg), nil
			}))
		h.pipeline.Register(messages.TypeAgentTaskCancelRequest,
			dispatch.HandlerFor(func(ctx context.Context, env *bus.Envelope, msg messages.AgentTaskCancelRequest) (bus.MessageResult, error) {
				return handler.OnCancelRequest(ctx, env, msg), nil
			}))
		h.specs = append(h.specs,
			subscriptionSpec{topic: messages.AgentTaskTopic(b.name), name: b.name + "-task-requests"},
			subscriptionSpec{topic: messages.AgentTaskCancelTopic(b.name), name: b.name + "-task-cancels"},
		)
	}

	for _, tool := range a2a.Tools(caller, directory, logger) {
		if err := h.registry.Register(tool.Registration, tool.Executor); err != nil {
			return fmt.Errorf("registering A2A tool %s: %w", tool.Registration.Name, err)
		}
	}
	return nil
}

// wireSubagents builds the manager and registers its delegated tools.
func (b *Builder) wireSubagents(h *Host, conversation *memory.Conversation, logger *zap.Logger) {
	var inject subagent.InjectFunc
	if conversation != nil {
		inject = func(ctx context.Context, sessionID, content string) {
			if err := conversation.AddTurn(ctx, sessionID, memory.Turn{
				Role:      memory.RoleUser,
				Content:   content,
				Timestamp: time.Now().UTC(),
			}); err != nil {
				logger.Warn("Failed to inject subagent progress", zap.Error(err))
			}
		}
	}
	manager := subagent.NewManager(h.hostCtx, subagent.ManagerConfig{
		AgentName: b.name,
		Publisher: b.broker,
		Runner: func(ctx context.Context, taskID, prompt string) (string, error) {
			return h.orchestrator.RunDetached(ctx, "subagent/"+taskID, prompt)
		},
		Inject:      inject,
		ResultTopic: "subagent.result." + b.name,
		Logger:      logger,
	})
	h.subagents = manager

	for _, tool := range manager.Tools(logger) {
		if err := h.registry.Register(tool.Registration, tool.Executor); err != nil {
			logger.Warn("Failed to register subagent tool",
				zap.String("tool", tool.Registration.Name), zap.Error(err))
		}
	}
}

// wrapWithChunker re-registers every in-process executor behind the
// result chunker. Bus-proxied MCP executors are wrapped at proxy
// construction instead.
func (b *Builder) wrapWithChunker(h *Host, working *memory.Working, logger *zap.Logger) {
	exempt := builtin.ChunkingExempt()
	for _, reg := range h.registry.GetTools() {
		executor, ok := h.registry.GetExecutor(reg.Name)
		if !ok {
			continue
		}
		if _, already := executor.(*shuttle.ChunkingExecutor); already {
			continue
		}
		h.registry.Unregister(reg.Name)
		wrapped := shuttle.NewChunkingExecutor(executor, working, b.chunkThreshold, exempt, logger)
		if err := h.registry.Register(reg, wrapped); err != nil {
			logger.Warn("Failed to rewrap tool executor",
				zap.String("tool", reg.Name), zap.Error(err))
		}
	}
}

// schedulerService adapts the scheduler to the hosted-service shape.
type schedulerService struct {
	sched *scheduler.Scheduler
}

func (s schedulerService) Start(ctx context.Context) error { return s.sched.Start(ctx) }

func (s schedulerService) Stop() { s.sched.Stop() }

func nilIfSkills(s *memory.Skills) memory.SkillStore {
	if s == nil {
		return nil
	}
	return s
}

func nilIfRules(r *memory.Rules) memory.RulesStore {
	if r == nil {
		return nil
	}
	return r
}
