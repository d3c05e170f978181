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
package a2a

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/shuttle"
)

// ToolRegistration pairs a registry entry with its executor.
type ToolRegistration struct {
	Registration shuttle.Registration
	Executor     shuttle.Executor
}

// Tools returns the delegation tools exposed to the LLM: invoke_agent
// to start a task on a known agent, list_agents to browse the
// directory.
func Tools(caller *Caller, directory *AgentDirectory, logger *zap.Logger) []ToolRegistration {
	defs := []struct {
		name        string
		description string
		schema      string
		fn          shuttle.Func
	}{
		{
			name:        "invoke_agent",
			description: "Delegate a task to another agent. Returns a task id immediately; the result arrives asynchronously.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"agent_name": shuttle.StringProperty("Name of the agent to delegate to, from list_agents."),
				"skill":      shuttle.StringProperty("The skill to request, from the agent's card."),
				"message":    shuttle.StringProperty("The task description, fully self-contained."),
			}, []string{"agent_name", "message"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				agentName, err := shuttle.StringArg(args, "agent_name")
				if err != nil {
					return "", err
				}
				message, err := shuttle.StringArg(args, "message")
				if err != nil {
					return "", err
				}
				skill := shuttle.OptionalStringArg(args, "skill")
				if _, ok := directory.Find(agentName); !ok {
					return "", fmt.Errorf("unknown agent %q, use list_agents to see who is available", agentName)
				}
				taskID, err := caller.Invoke(ctx, agentName, skill, message)
				if err != nil {
					return "", err
				}
				return "task_id: " + taskID, nil
			},
		},
		{
			name:        "list_agents",
			description: "List the known agents and the skills they offer.",
			schema:      shuttle.ObjectSchema("", map[string]any{}, nil),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				cards := directory.All()
				if len(cards) == 0 {
					return "No agents are known.", nil
				}
				var sb strings.Builder
				for _, card := range cards {
					fmt.Fprintf(&sb, "- %s: %s", card.Name, card.Description)
					if len(card.Skills) > 0 {
						fmt.Fprintf(&sb, " (skills: %s)", strings.Join(card.Skills, ", "))
					}
					sb.WriteString("\n")
				}
				return strings.TrimRight(sb.String(), "\n"), nil
			},
		},
	}

	out := make([]ToolRegistration, 0, len(defs))
	for _, def := range defs {
		reg := shuttle.Registration{
			Name:             def.name,
			Description:      def.description,
			ParametersSchema: def.schema,
			Source:           shuttle.SourceDelegated,
		}
		out = append(out, ToolRegistration{reg, shuttle.MustFuncExecutor(reg, def.fn, logger)})
	}
	return out
}
