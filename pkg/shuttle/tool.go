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
// Package shuttle provides the uniform tool execution surface: a
// registry mapping tool names to executors, argument validation,
// chunking of oversized results, and the bus proxy for remote bridges.
//
// Why "shuttle"? Tools shuttle data and execution between the LLM and
// the outside world.
package shuttle

import (
	"context"
	"encoding/json"
)

// Tool sources, recorded on registrations for diagnostics.
const (
	SourceInProcess = "in-process"
	SourceMCP       = "mcp"
	SourceHTTP      = "http"
	SourceDelegated = "delegated"
)

// Registration describes a tool to the registry and to LLMs.
type Registration struct {
	Name             string
	Description      string
	ParametersSchema string
	Source           string
}

// Request carries one tool invocation. Arguments is a JSON object
// string; each executor decodes it against its declared schema.
type Request struct {
	ToolCallID string
	ToolName   string
	Arguments  string
	SessionID  string
}

// Response is the uniform tool result.
type Response struct {
	ToolCallID string
	ToolName   string
	Content    string
	IsError    bool
}

// Executor runs a tool invocation. Implementations must honor ctx
// cancellation; the orchestrator composes per-session tokens into it.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// ErrorResponse builds an error response for a request.
func ErrorResponse(req *Request, message string) *Response {
	return &Response{
		ToolCallID: req.ToolCallID,
		ToolName:   req.ToolName,
		Content:    message,
		IsError:    true,
	}
}

// TextResponse builds a success response for a request.
func TextResponse(req *Request, content string) *Response {
	return &Response{
		ToolCallID: req.ToolCallID,
		ToolName:   req.ToolName,
		Content:    content,
	}
}

// ObjectSchema builds a JSON Schema string for an object with the given
// properties. Properties map property name to a schema fragment.
func ObjectSchema(description string, properties map[string]any, required []string) string {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if description != "" {
		schema["description"] = description
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	data, _ := json.Marshal(schema)
	return string(data)
}

// StringProperty builds a string property fragment.
func StringProperty(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// IntProperty builds an integer property fragment.
func IntProperty(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}
