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
package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teradata-labs/rockbot/pkg/messages"
)

const mcpProtocolVersion = "2024-11-05"

// Client is the bridge's view of one MCP server connection. The
// interface exists so tests can run the bridge against a fake.
type Client interface {
	Connect(ctx context.Context) error
	ListTools(ctx context.Context) ([]messages.McpToolDescriptor, error)
	CallTool(ctx context.Context, tool string, args map[string]any) (content string, isError bool, err error)
	Close() error
}

// ClientFactory opens a client for a configured server.
type ClientFactory func(name string, cfg ServerConfig) (Client, error)

// NewSSEClient is the production factory over the mcp-go SSE transport.
func NewSSEClient(name string, cfg ServerConfig) (Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("MCP server %s has no url", name)
	}
	c, err := client.NewSSEMCPClient(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client for %s: %w", name, err)
	}
	return &sseClient{name: name, client: c}, nil
}

type sseClient struct {
	name   string
	client *client.Client
}

func (c *sseClient) Connect(ctx context.Context) error {
	if err := c.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MCP client for %s: %w", c.name, err)
	}
	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "rockbot", Version: "1.0.0"}
	initReq.Params.ProtocolVersion = mcpProtocolVersion
	if _, err := c.client.Initialize(ctx, initReq); err != nil {
		c.client.Close()
		return fmt.Errorf("failed to initialize MCP server %s: %w", c.name, err)
	}
	return nil
}

func (c *sseClient) ListTools(ctx context.Context) ([]messages.McpToolDescriptor, error) {
	resp, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools on %s: %w", c.name, err)
	}
	out := make([]messages.McpToolDescriptor, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s on %s has unencodable schema: %w", t.Name, c.name, err)
		}
		out = append(out, messages.McpToolDescriptor{
			Name:             t.Name,
			Description:      t.Description,
			ParametersSchema: string(schema),
		})
	}
	return out, nil
}

func (c *sseClient) CallTool(ctx context.Context, tool string, args map[string]any) (string, bool, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	resp, err := c.client.CallTool(ctx, req)
	if err != nil {
		return "", false, err
	}

	var texts []string
	for _, content := range resp.Content {
		if text, ok := content.(mcp.TextContent); ok {
			texts = append(texts, text.Text)
		}
	}
	return strings.Join(texts, "\n"), resp.IsError, nil
}

func (c *sseClient) Close() error {
	return c.client.Close()
}
