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
// Package openai implements the ChatClient interface over the
// OpenAI-compatible chat-completions protocol, which most self-hosted
// inference servers also speak.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/teradata-labs/rockbot/pkg/llm"
)

// Defaults for the chat-completions client.
const (
	DefaultEndpoint  = "https://api.openai.com/v1/chat/completions"
	DefaultMaxTokens = 4096

	// DefaultTimeout is generous to accommodate long tool-use turns
	// and large subagent responses.
	DefaultTimeout = 5 * time.Minute
)

// Config holds configuration for the client.
type Config struct {
	APIKey    string
	Model     string
	Endpoint  string
	Timeout   time.Duration
	MaxTokens int
}

// Client talks to one chat-completions endpoint.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	maxTokens  int
	httpClient *http.Client
}

// NewClient creates a client; zero config fields use defaults.
func NewClient(config Config) *Client {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	return &Client{
		apiKey:     config.APIKey,
		model:      config.Model,
		endpoint:   config.Endpoint,
		maxTokens:  config.MaxTokens,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Chat sends a conversation and returns the model's reply.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (*llm.Response, error) {
	req := &chatCompletionRequest{
		Model:     c.model,
		Messages:  convertMessages(messages),
		MaxTokens: c.maxTokens,
	}
	if len(tools) > 0 {
		req.Tools = convertTools(tools)
		req.ToolChoice = "auto"
	}

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, err
	}
	return convertResponse(resp), nil
}

func (c *Client) callAPI(ctx context.Context, req *chatCompletionRequest) (*chatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, llm.NewError(llm.ErrorTimeout, "chat request cancelled or timed out", err)
		}
		return nil, llm.NewError(llm.ErrorProvider, "chat request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, llm.NewError(llm.ErrorProvider, "reading chat response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyStatus(httpResp.StatusCode, respBody)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, llm.NewError(llm.ErrorProvider, "decoding chat response", err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewError(llm.ErrorProvider, "chat response has no choices", nil)
	}
	return &resp, nil
}

func classifyStatus(status int, body []byte) error {
	message := string(body)
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
		if apiErr.Error.Code == "context_length_exceeded" {
			return llm.NewError(llm.ErrorContextTooLong, message, nil)
		}
	}

	switch {
	case status == http.StatusTooManyRequests:
		return llm.NewError(llm.ErrorRateLimited, message, nil)
	case status == http.StatusRequestTimeout:
		return llm.NewError(llm.ErrorTimeout, message, nil)
	case status >= 500:
		return llm.NewError(llm.ErrorProvider, message, nil)
	default:
		return llm.NewError(llm.ErrorUnknown, fmt.Sprintf("status %d: %s", status, message), nil)
	}
}

func convertMessages(messages []llm.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		cm := chatMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, toolCall{
				ID:   call.ID,
				Type: "function",
				Function: functionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		out = append(out, cm)
	}
	return out
}

func convertTools(tools []llm.ToolSpec) []toolSpec {
	out := make([]toolSpec, 0, len(tools))
	for _, tool := range tools {
		out = append(out, toolSpec{
			Type: "function",
			Function: functionSpec{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  json.RawMessage(tool.ParametersSchema),
			},
		})
	}
	return out
}

func convertResponse(resp *chatCompletionResponse) *llm.Response {
	choice := resp.Choices[0]
	out := &llm.Response{
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out
}

var _ llm.ChatClient = (*Client)(nil)
