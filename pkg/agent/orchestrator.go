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
// Package agent implements the turn orchestrator: the per-message state
// machine that assembles context, calls the LLM, runs the tool loop
// under the work slot, streams progress, and publishes replies.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/llm"
	"github.com/teradata-labs/rockbot/pkg/memory"
	"github.com/teradata-labs/rockbot/pkg/messages"
	"github.com/teradata-labs/rockbot/pkg/shuttle"
	"github.com/teradata-labs/rockbot/pkg/work"
)

// Orchestrator defaults.
const (
	// DefaultMaxToolIterations bounds the LLM/tool loop per turn. The
	// last iteration runs without tools to force a text completion.
	DefaultMaxToolIterations = 5

	// DefaultToolTimeout bounds one tool execution unless the incoming
	// envelope carries a shorter timeout header.
	DefaultToolTimeout = 60 * time.Second

	// DefaultProgressInterval throttles periodic progress replies
	// during long tool executions.
	DefaultProgressInterval = 5 * time.Second
)

// setupPhrases are openings some models emit instead of a structured
// tool call. With NudgeOnHallucinatedToolCalls set, a first response
// matching one of these spawns the tool loop with a nudge instead of
// being returned as the final answer.
var setupPhrases = []string{
	"let me check",
	"let me look",
	"i'll check",
	"i will check",
	"one moment while i",
	"checking now",
}

// Config wires an Orchestrator.
type Config struct {
	AgentName    string
	Publisher    bus.Publisher
	Registry     *shuttle.Registry
	Chat         llm.ChatClient
	Assembler    *Assembler
	Conversation memory.ConversationMemory
	Serializer   *work.Serializer
	Sessions     *work.SessionTracker
	Behaviors    *BehaviorSet

	// DefaultReplyTopic receives replies when the incoming envelope has
	// no ReplyTo.
	DefaultReplyTopic string

	MaxToolIterations int
	ToolTimeout       time.Duration
	ProgressInterval  time.Duration

	Logger *zap.Logger
}

// Orchestrator runs the turn state machine for one agent process.
type Orchestrator struct {
	name         string
	publisher    bus.Publisher
	registry     *shuttle.Registry
	chat         llm.ChatClient
	assembler    *Assembler
	conversation memory.ConversationMemory
	serializer   *work.Serializer
	sessions     *work.SessionTracker
	behaviors    *BehaviorSet

	defaultReplyTopic string
	maxIterations     int
	toolTimeout       time.Duration
	progressInterval  time.Duration

	hostCtx context.Context
	loops   sync.WaitGroup
	logger  *zap.Logger
}

// New builds an orchestrator. hostCtx is the process lifetime context;
// background loops derive from it, not from the handler's delivery
// context, so they survive the ack.
func New(hostCtx context.Context, cfg Config) *Orchestrator {
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = DefaultMaxToolIterations
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = work.NewSessionTracker()
	}
	if cfg.Behaviors == nil {
		cfg.Behaviors = NewBehaviorSet(nil, "")
	}
	return &Orchestrator{
		name:              cfg.AgentName,
		publisher:         cfg.Publisher,
		registry:          cfg.Registry,
		chat:              cfg.Chat,
		assembler:         cfg.Assembler,
		conversation:      cfg.Conversation,
		serializer:        cfg.Serializer,
		sessions:          cfg.Sessions,
		behaviors:         cfg.Behaviors,
		defaultReplyTopic: cfg.DefaultReplyTopic,
		maxIterations:     cfg.MaxToolIterations,
		toolTimeout:       cfg.ToolTimeout,
		progressInterval:  cfg.ProgressInterval,
		hostCtx:           hostCtx,
		logger:            cfg.Logger,
	}
}

// Wait blocks until all background loops have finished. Called during
// host shutdown after the session tracker cancelled them.
func (o *Orchestrator) Wait() { o.loops.Wait() }

// OnUserMessage is the typed handler for inbound user messages. It
// records the turn, makes the first LLM call, and either answers
// directly or acks with progress and continues in a background loop.
func (o *Orchestrator) OnUserMessage(ctx context.Context, env *bus.Envelope, msg messages.UserMessage) bus.MessageResult {
	sessionID := msg.SessionID
	behavior := o.behaviors.For(o.chat.Model())
	maxIter := o.maxIterations
	if behavior.MaxToolIterationsOverride > 0 {
		maxIter = behavior.MaxToolIterationsOverride
	}

	if o.conversation != nil {
		if err := o.conversation.AddTurn(ctx, sessionID, memory.Turn{
			Role:      memory.RoleUser,
			Content:   msg.Content,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			o.logger.Error("Failed to record user turn", zap.String("session", sessionID), zap.Error(err))
			return bus.Retry
		}
	}

	// A new message for this session cancels whatever the previous one
	// left running, before any new tool executes.
	sessionCtx := o.sessions.BeginSession(sessionID, o.hostCtx)

	msgs, err := o.assembler.Assemble(ctx, TurnInput{
		SessionID:   sessionID,
		UserMessage: msg.Content,
		Namespace:   memory.SessionNamespace(sessionID),
		UserSession: true,
		Behavior:    behavior,
	})
	if err != nil {
		o.logger.Error("Context assembly failed", zap.String("session", sessionID), zap.Error(err))
		return bus.Retry
	}

	tools := o.toolSpecs()
	resp, err := o.chat.Chat(ctx, msgs, tools)
	if err != nil {
		if ctx.Err() != nil {
			return bus.Retry
		}
		apology := apologyFor(err)
		o.recordAssistantTurn(ctx, sessionID, apology)
		o.publishReply(ctx, env, sessionID, apology, true)
		return bus.Ack
	}

	content, calls := o.extractCalls(resp)
	nudged := false
	if len(calls) == 0 && behavior.NudgeOnHallucinatedToolCalls && looksLikeSetupPhrase(content) {
		nudged = true
	}

	if len(calls) == 0 && !nudged {
		o.recordAssistantTurn(ctx, sessionID, content)
		o.publishReply(ctx, env, sessionID, content, true)
		return bus.Ack
	}

	ack := content
	if ack == "" {
		ack = "Working on it…"
	}
	o.publishReply(ctx, env, sessionID, ack, false)

	msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: content, ToolCalls: calls})
	if nudged {
		msgs = append(msgs, llm.SystemMessage("Do not narrate tool use. Invoke the available tools directly to complete the request."))
	}

	replyEnv := env.Clone()
	o.loops.Add(1)
	go func() {
		defer o.loops.Done()
		o.runLoop(sessionCtx, replyEnv, sessionID, msgs, calls, tools, maxIter)
	}()
	return bus.Ack
}

// runLoop is the background tool loop. It holds the work slot for its
// whole run and exits silently when its session context is cancelled.
func (o *Orchestrator) runLoop(ctx context.Context, env *bus.Envelope, sessionID string, msgs []llm.Message, pending []llm.ToolCall, tools []llm.ToolSpec, maxIter int) {
	handle, err := o.serializer.AcquireForUser(ctx)
	if err != nil {
		return
	}
	defer handle.Release()

	final, done := o.iterate(ctx, env, sessionID, msgs, pending, tools, maxIter)
	if !done {
		return
	}
	o.recordAssistantTurn(ctx, sessionID, final)
	o.publishReply(ctx, env, sessionID, final, true)
}

// iterate runs the LLM/tool cycle until the model stops calling tools
// or the iteration cap forces a completion. It returns done=false only
// when ctx was cancelled, in which case nothing should be published.
func (o *Orchestrator) iterate(ctx context.Context, env *bus.Envelope, sessionID string, msgs []llm.Message, pending []llm.ToolCall, tools []llm.ToolSpec, maxIter int) (string, bool) {
	final := ""
	for iteration := 1; iteration <= maxIter; iteration++ {
		for _, call := range pending {
			result, err := o.executeCall(ctx, env, sessionID, call)
			if err != nil {
				return "", false
			}
			msgs = append(msgs, llm.ToolMessage(result.ToolCallID, result.Content))
		}

		loopTools := tools
		if iteration == maxIter {
			loopTools = nil
		}
		resp, err := o.chat.Chat(ctx, msgs, loopTools)
		if err != nil {
			if ctx.Err() != nil {
				return "", false
			}
			return apologyFor(err), true
		}

		var content string
		content, pending = o.extractCalls(resp)
		if len(pending) == 0 {
			final = content
			break
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: content, ToolCalls: pending})
	}

	if final == "" {
		final = "I ran out of tool iterations before reaching a conclusion. Here is where I got to; ask me to continue if you'd like."
	}
	return final, true
}

// executeCall runs one tool call with progress streaming and the
// per-tool timeout. A timeout produces a tool-visible result and a
// non-final explanation so the loop can try another approach; only
// session cancellation returns an error.
func (o *Orchestrator) executeCall(ctx context.Context, env *bus.Envelope, sessionID string, call llm.ToolCall) (*shuttle.Response, error) {
	o.publishReply(ctx, env, sessionID, fmt.Sprintf("Working on it — checking %s…", humanizeToolName(call.Name)), false)

	req := &shuttle.Request{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Arguments:  call.Arguments,
		SessionID:  sessionID,
	}
	executor, ok := o.registry.GetExecutor(call.Name)
	if !ok {
		return shuttle.ErrorResponse(req, fmt.Sprintf("unknown tool: %s", call.Name)), nil
	}

	timeout := o.toolTimeout
	if headerTimeout, ok := env.TimeoutMs(); ok && headerTimeout < timeout {
		timeout = headerTimeout
	}
	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Periodic progress while the tool runs.
	ticker := time.NewTicker(o.progressInterval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-toolCtx.Done():
				return
			case <-ticker.C:
				o.publishReply(ctx, env, sessionID, fmt.Sprintf("Still working on %s…", humanizeToolName(call.Name)), false)
			}
		}
	}()
	resp, err := executor.Execute(toolCtx, req)
	close(done)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			o.publishReply(ctx, env, sessionID, fmt.Sprintf("%s is taking longer than %s; I'll try a different approach.", humanizeToolName(call.Name), timeout), false)
			return shuttle.ErrorResponse(req, fmt.Sprintf("tool timed out after %s", timeout)), nil
		}
		return shuttle.ErrorResponse(req, err.Error()), nil
	}
	return resp, nil
}

// extractCalls returns the response text and its tool calls, falling
// back to the text-based parser when the model emitted calls as prose.
func (o *Orchestrator) extractCalls(resp *llm.Response) (string, []llm.ToolCall) {
	if len(resp.ToolCalls) > 0 {
		return resp.Content, resp.ToolCalls
	}
	pretext, parsed := ParseTextToolCalls(resp.Content, o.registry.IsRegistered)
	if len(parsed) > 0 {
		return pretext, parsed
	}
	return resp.Content, nil
}

// toolSpecs projects the registry into LLM tool declarations.
func (o *Orchestrator) toolSpecs() []llm.ToolSpec {
	regs := o.registry.GetTools()
	specs := make([]llm.ToolSpec, 0, len(regs))
	for _, reg := range regs {
		specs = append(specs, llm.ToolSpec{
			Name:             reg.Name,
			Description:      reg.Description,
			ParametersSchema: reg.ParametersSchema,
		})
	}
	return specs
}

// publishReply emits an AgentReply to the envelope's reply topic,
// preserving its correlation id. Publish failures are logged, not
// propagated; a lost progress message must not kill the loop.
func (o *Orchestrator) publishReply(ctx context.Context, env *bus.Envelope, sessionID, content string, final bool) {
	topic := env.ReplyTo
	if topic == "" {
		topic = o.defaultReplyTopic
	}
	if topic == "" {
		return
	}
	reply, err := bus.ToEnvelope(ctx, messages.TypeAgentReply, messages.AgentReply{
		Content:   content,
		SessionID: sessionID,
		AgentName: o.name,
		IsFinal:   final,
	}, o.name, bus.WithCorrelationID(env.CorrelationID))
	if err != nil {
		o.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}
	if err := o.publisher.Publish(ctx, topic, reply); err != nil {
		o.logger.Error("Failed to publish reply",
			zap.String("topic", topic),
			zap.Bool("final", final),
			zap.Error(err))
	}
}

func (o *Orchestrator) recordAssistantTurn(ctx context.Context, sessionID, content string) {
	if o.conversation == nil || content == "" {
		return
	}
	if err := o.conversation.AddTurn(ctx, sessionID, memory.Turn{
		Role:      memory.RoleAssistant,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		o.logger.Error("Failed to record assistant turn", zap.String("session", sessionID), zap.Error(err))
	}
}

// apologyFor turns an LLM failure into a user-facing reply.
func apologyFor(err error) string {
	switch llm.Classify(err).Kind {
	case llm.ErrorRateLimited:
		return "I'm being rate-limited by my language model right now. Please try again in a minute."
	case llm.ErrorTimeout:
		return "My language model took too long to respond. Please try again."
	case llm.ErrorContextTooLong:
		return "This conversation has grown past what I can process in one go. Starting a new session will help."
	default:
		return "Something went wrong while talking to my language model. Please try again."
	}
}

func looksLikeSetupPhrase(content string) bool {
	lowered := strings.ToLower(strings.TrimSpace(content))
	for _, phrase := range setupPhrases {
		if strings.HasPrefix(lowered, phrase) {
			return true
		}
	}
	return false
}

// humanizeToolName renders snake_case tool names for progress messages.
func humanizeToolName(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
