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
// Package llm defines the abstract chat-client contract the orchestrator
// consumes. Concrete providers live outside this repository and plug in
// behind ChatClient.
package llm

import (
	"context"
	"time"
)

// DefaultTimeout is the chat-client timeout configured at construction.
// Generous to accommodate large subagent responses.
const DefaultTimeout = 5 * time.Minute

// Message roles mirror conversation turn roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a structured function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one chat message sent to or received from the model.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolSpec describes a callable tool to the model.
type ToolSpec struct {
	Name             string
	Description      string
	ParametersSchema string
}

// Usage tracks token consumption per call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the model's reply to one chat call.
type Response struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
	Usage      Usage
}

// ChatClient is the pluggable LLM surface. Chat blocks until the model
// responds or ctx is done.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (*Response, error)
	Model() string
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolMessage builds a tool-result message for a tool call id.
func ToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}
