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
package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/llm"
	"github.com/teradata-labs/rockbot/pkg/memory"
	"github.com/teradata-labs/rockbot/pkg/messages"
)

// OnFeedback reacts to user feedback. Negative feedback triggers a
// re-evaluation of the session's last user message at scheduled
// priority, publishing an unsolicited improved reply when it completes.
func (o *Orchestrator) OnFeedback(ctx context.Context, env *bus.Envelope, msg messages.UserFeedback) bus.MessageResult {
	if msg.IsPositive {
		o.logger.Debug("Positive feedback received", zap.String("session", msg.SessionID))
		return bus.Ack
	}
	o.logger.Info("Negative feedback received, scheduling re-evaluation",
		zap.String("session", msg.SessionID))

	replyEnv := env.Clone()
	o.loops.Add(1)
	go func() {
		defer o.loops.Done()
		o.reEvaluate(replyEnv, msg.SessionID)
	}()
	return bus.Ack
}

// reEvaluate rebuilds context around the session's last user message
// with a "different approach" nudge and reruns the loop. It runs at
// scheduled priority, so a new user message preempts it and it exits
// silently.
func (o *Orchestrator) reEvaluate(env *bus.Envelope, sessionID string) {
	handle, runCtx, ok := o.serializer.TryAcquireForScheduled(o.hostCtx)
	if !ok {
		o.logger.Debug("Skipping re-evaluation, user work active", zap.String("session", sessionID))
		return
	}
	defer handle.Release()

	lastUser, ok := o.lastUserTurn(runCtx, sessionID)
	if !ok {
		return
	}

	behavior := o.behaviors.For(o.chat.Model())
	maxIter := o.maxIterations
	if behavior.MaxToolIterationsOverride > 0 {
		maxIter = behavior.MaxToolIterationsOverride
	}

	msgs, err := o.assembler.Assemble(runCtx, TurnInput{
		SessionID:   sessionID,
		UserMessage: lastUser,
		Namespace:   memory.SessionNamespace(sessionID),
		UserSession: true,
		Behavior:    behavior,
	})
	if err != nil {
		o.logger.Warn("Re-evaluation context assembly failed", zap.Error(err))
		return
	}
	msgs = append(msgs, llm.SystemMessage("The user was not satisfied with your previous answer. Reconsider the request and try a different approach."))

	tools := o.toolSpecs()
	resp, err := o.chat.Chat(runCtx, msgs, tools)
	if err != nil {
		if runCtx.Err() == nil {
			o.logger.Warn("Re-evaluation LLM call failed", zap.Error(err))
		}
		return
	}
	content, pending := o.extractCalls(resp)
	if len(pending) > 0 {
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: content, ToolCalls: pending})
		content, ok = o.iterate(runCtx, env, sessionID, msgs, pending, tools, maxIter)
		if !ok {
			return
		}
	}
	if content == "" {
		return
	}
	o.recordAssistantTurn(runCtx, sessionID, content)
	o.publishReply(runCtx, env, sessionID, content, true)
}

func (o *Orchestrator) lastUserTurn(ctx context.Context, sessionID string) (string, bool) {
	if o.conversation == nil {
		return "", false
	}
	turns, err := o.conversation.GetTurns(ctx, sessionID)
	if err != nil {
		o.logger.Warn("Failed to load turns for re-evaluation", zap.Error(err))
		return "", false
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == memory.RoleUser {
			return turns[i].Content, true
		}
	}
	return "", false
}
