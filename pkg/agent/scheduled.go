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
	"fmt"
	"strings"

	"github.com/teradata-labs/rockbot/pkg/bus"
	"github.com/teradata-labs/rockbot/pkg/llm"
	"github.com/teradata-labs/rockbot/pkg/memory"
)

// ErrYielded reports that a scheduled run never started or was
// preempted because user work held or claimed the slot.
var ErrYielded = fmt.Errorf("scheduled run yielded to user work")

// RunScheduled executes a scheduled prompt (heartbeat, patrol) at
// scheduled priority. It yields immediately when user work is active
// and exits early when user work preempts it mid-run. The result text
// is shaped by the model behavior's ScheduledTaskResultMode.
func (o *Orchestrator) RunScheduled(ctx context.Context, taskName, prompt string) (string, error) {
	handle, runCtx, ok := o.serializer.TryAcquireForScheduled(ctx)
	if !ok {
		return "", ErrYielded
	}
	defer handle.Release()

	behavior := o.behaviors.For(o.chat.Model())
	maxIter := o.maxIterations
	if behavior.MaxToolIterationsOverride > 0 {
		maxIter = behavior.MaxToolIterationsOverride
	}
	sessionID := "scheduled/" + taskName

	msgs, err := o.assembler.Assemble(runCtx, TurnInput{
		SessionID:   sessionID,
		UserMessage: prompt,
		Namespace:   memory.SessionNamespace(sessionID),
		UserSession: false,
		Behavior:    behavior,
	})
	if err != nil {
		return "", err
	}
	if behavior.ScheduledTaskResultMode == Summarize {
		msgs = append(msgs, llm.SystemMessage("Summarize your findings briefly when you finish."))
	}

	tools := o.toolSpecs()
	resp, err := o.chat.Chat(runCtx, msgs, tools)
	if err != nil {
		if runCtx.Err() != nil {
			return "", ErrYielded
		}
		return "", err
	}

	content, pending := o.extractCalls(resp)
	var outputs []string
	if len(pending) > 0 {
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: content, ToolCalls: pending})
		env := &bus.Envelope{ReplyTo: ""}
		for iteration := 1; iteration <= maxIter; iteration++ {
			for _, call := range pending {
				result, err := o.executeCall(runCtx, env, sessionID, call)
				if err != nil {
					return "", ErrYielded
				}
				outputs = append(outputs, result.Content)
				msgs = append(msgs, llm.ToolMessage(result.ToolCallID, result.Content))
			}
			loopTools := tools
			if iteration == maxIter {
				loopTools = nil
			}
			resp, err := o.chat.Chat(runCtx, msgs, loopTools)
			if err != nil {
				if runCtx.Err() != nil {
					return "", ErrYielded
				}
				return "", err
			}
			content, pending = o.extractCalls(resp)
			if len(pending) == 0 {
				break
			}
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: content, ToolCalls: pending})
		}
	}

	switch behavior.ScheduledTaskResultMode {
	case VerbatimOutput:
		if len(outputs) > 0 {
			return strings.Join(outputs, "\n\n"), nil
		}
		return content, nil
	case SummarizeWithOutput:
		if len(outputs) > 0 {
			return content + "\n\n---\n\n" + strings.Join(outputs, "\n\n"), nil
		}
		return content, nil
	default:
		return content, nil
	}
}
