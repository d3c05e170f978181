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
// Package messages defines the payload contracts and topic conventions
// shared by every agent process on the bus.
package messages

// Logical message type names carried in the envelope.
const (
	TypeUserMessage                 = "UserMessage"
	TypeAgentReply                  = "AgentReply"
	TypeUserFeedback                = "UserFeedback"
	TypeConversationHistoryRequest  = "ConversationHistoryRequest"
	TypeConversationHistoryResponse = "ConversationHistoryResponse"
	TypeToolInvokeRequest           = "ToolInvokeRequest"
	TypeToolInvokeResponse          = "ToolInvokeResponse"
	TypeToolError                   = "ToolError"
	TypeMcpToolsAvailable           = "McpToolsAvailable"
	TypeMcpMetadataRefreshRequest   = "McpMetadataRefreshRequest"
	TypeAgentTaskRequest            = "AgentTaskRequest"
	TypeAgentTaskCancelRequest      = "AgentTaskCancelRequest"
	TypeAgentTaskStatusUpdate       = "AgentTaskStatusUpdate"
	TypeAgentTaskResult             = "AgentTaskResult"
	TypeAgentTaskError              = "AgentTaskError"
	TypeScriptInvokeRequest         = "ScriptInvokeRequest"
	TypeScriptInvokeResponse        = "ScriptInvokeResponse"
	TypeSubagentResult              = "SubagentResult"
)

// Fixed topics.
const (
	ToolInvokeTopic = "tool.invoke"
	McpRefreshTopic = "tool.meta.mcp.refresh"
	ScriptInvoke    = "script.invoke"
	ScriptResult    = "script.result"
)

// UserMessageTopic returns the inbound user-message topic for a proxy.
func UserMessageTopic(userProxy string) string { return userProxy + ".userMessage" }

// UserResponseTopic returns the outbound reply topic for a proxy.
func UserResponseTopic(userProxy string) string { return userProxy + ".userResponse" }

// UserFeedbackTopic returns the inbound feedback topic for a proxy.
func UserFeedbackTopic(userProxy string) string { return userProxy + ".userFeedback" }

// ConversationHistoryTopic returns the history request topic for a proxy.
func ConversationHistoryTopic(userProxy string) string {
	return userProxy + ".conversationHistoryRequest"
}

// ToolResultTopic returns the per-agent tool result topic.
func ToolResultTopic(agent string) string { return "tool.result." + agent }

// McpMetaTopic returns the per-agent MCP tool availability topic.
func McpMetaTopic(agent string) string { return "tool.meta.mcp." + agent }

// AgentTaskTopic returns the A2A request topic for a target agent.
func AgentTaskTopic(target string) string { return "agent.task." + target }

// AgentTaskCancelTopic returns the A2A cancel topic for a target agent.
func AgentTaskCancelTopic(target string) string { return "agent.task.cancel." + target }

// UserMessage is an inbound message from a user proxy.
type UserMessage struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
}

// AgentReply is an outbound reply. Non-final replies stream progress;
// the final reply terminates the turn.
type AgentReply struct {
	Content   string `json:"content"`
	SessionID string `json:"sessionId"`
	AgentName string `json:"agentName"`
	IsFinal   bool   `json:"isFinal"`
}

// UserFeedback carries thumbs up/down for a delivered reply.
type UserFeedback struct {
	MessageID  string `json:"messageId"`
	SessionID  string `json:"sessionId"`
	IsPositive bool   `json:"isPositive"`
	AgentName  string `json:"agentName,omitempty"`
}

// ConversationHistoryRequest asks for the recorded turns of a session.
type ConversationHistoryRequest struct {
	SessionID string `json:"sessionId"`
	MaxTurns  int    `json:"maxTurns,omitempty"`
}

// HistoryTurn is one turn in a history response.
type HistoryTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ConversationHistoryResponse carries the recorded turns of a session.
type ConversationHistoryResponse struct {
	SessionID string        `json:"sessionId"`
	Turns     []HistoryTurn `json:"turns"`
}

// ToolInvokeRequest asks a bridge to execute a tool.
type ToolInvokeRequest struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	Arguments  string `json:"arguments"`
	SessionID  string `json:"sessionId,omitempty"`
}

// ToolInvokeResponse carries a successful (or tool-reported-error)
// execution result.
type ToolInvokeResponse struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	Content    string `json:"content"`
	IsError    bool   `json:"isError"`
}

// Tool error codes.
const (
	ToolErrorNotFound         = "ToolNotFound"
	ToolErrorTimeout          = "Timeout"
	ToolErrorExecutionFailed  = "ExecutionFailed"
	ToolErrorInvalidArguments = "InvalidArguments"
)

// ToolError reports a failed tool invocation.
type ToolError struct {
	ToolCallID  string `json:"toolCallId"`
	ToolName    string `json:"toolName"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	IsRetryable bool   `json:"isRetryable"`
}

// McpToolDescriptor describes one tool advertised by an MCP server.
type McpToolDescriptor struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	ParametersSchema string `json:"parametersSchema"`
}

// McpToolsAvailable announces the current tool set of an MCP server.
type McpToolsAvailable struct {
	ServerName   string              `json:"serverName"`
	Tools        []McpToolDescriptor `json:"tools"`
	RemovedTools []string            `json:"removedTools,omitempty"`
}

// McpMetadataRefreshRequest asks bridges to re-list tools. Empty
// ServerName means all servers.
type McpMetadataRefreshRequest struct {
	ServerName string `json:"serverName,omitempty"`
}

// A2A task states.
const (
	TaskStateWorking   = "Working"
	TaskStateCompleted = "Completed"
	TaskStateFailed    = "Failed"
)

// A2A task error codes.
const (
	TaskErrorExecutionFailed   = "ExecutionFailed"
	TaskErrorTaskNotCancelable = "TaskNotCancelable"
)

// AgentTaskRequest delegates work to another agent.
type AgentTaskRequest struct {
	TaskID      string `json:"taskId"`
	Skill       string `json:"skill,omitempty"`
	Message     string `json:"message"`
	CallerAgent string `json:"callerAgent"`
}

// AgentTaskCancelRequest asks the target to abort a task.
type AgentTaskCancelRequest struct {
	TaskID string `json:"taskId"`
}

// AgentTaskStatusUpdate is an intermediate task status.
type AgentTaskStatusUpdate struct {
	TaskID  string `json:"taskId"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

// AgentTaskResult is the terminal success message for a task.
type AgentTaskResult struct {
	TaskID string `json:"taskId"`
	State  string `json:"state"`
	Result string `json:"result"`
}

// AgentTaskError is the terminal failure message for a task.
type AgentTaskError struct {
	TaskID  string `json:"taskId"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScriptInvokeRequest asks the script runner to execute a script.
type ScriptInvokeRequest struct {
	ScriptID  string `json:"scriptId"`
	Language  string `json:"language"`
	Source    string `json:"source"`
	SessionID string `json:"sessionId,omitempty"`
}

// ScriptInvokeResponse carries script runner output.
type ScriptInvokeResponse struct {
	ScriptID string `json:"scriptId"`
	Output   string `json:"output"`
	IsError  bool   `json:"isError"`
}

// SubagentResult reports a finished in-process subagent task.
type SubagentResult struct {
	TaskID    string `json:"taskId"`
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
	IsError   bool   `json:"isError"`
}
