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

	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/llm"
	"github.com/teradata-labs/rockbot/pkg/memory"
)

// RunDetached runs one prompt to completion outside the work slot.
// Subagents use this: they run on behalf of a user turn that already
// holds the slot, so they must not contend for it. Progress replies are
// suppressed; the final content is returned to the caller.
func (o *Orchestrator) RunDetached(ctx context.Context, sessionID, prompt string) (string, error) {
	behavior := o.behaviors.For(o.chat.Model())
	maxIter := o.maxIterations
	if behavior.MaxToolIterationsOverride > 0 {
		maxIter = behavior.MaxToolIterationsOverride
	}

	msgs, err := o.assembler.Assemble(ctx, TurnInput{
		SessionID:   sessionID,
		UserMessage: prompt,
		Namespace:   memory.SessionNamespace(sessionID),
		UserSession: false,
		Behavior:    behavior,
	})
	if err != nil {
		return "", err
	}

	tools := o.toolSpecs()
	resp, err := o.chat.Chat(ctx, msgs, tools)
	if err != nil {
		return "", err
	}

	content, calls := o.extractCalls(resp)
	if len(calls) == 0 {
		return content, nil
	}

	msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: content, ToolCalls: calls})
	env := &bus.Envelope{}
	final, done := o.iterate(ctx, env, sessionID, msgs, calls, tools, maxIter)
	if !done {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", context.Canceled
	}
	return final, nil
}
