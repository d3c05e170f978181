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
	"encoding/json"
	"fmt"
	"os"
	"reflect"
)

// ServerConfig describes one external MCP server.
type ServerConfig struct {
	Type         string   `json:"type"`
	URL          string   `json:"url"`
	AllowedTools []string `json:"allowedTools,omitempty"`
	DeniedTools  []string `json:"deniedTools,omitempty"`
}

// Config is the bridge's mcp.json document.
type Config struct {
	McpServers map[string]ServerConfig `json:"mcpServers"`
}

// LoadConfig reads and parses an mcp.json file. A missing file yields
// an empty config so the bridge can start before configuration exists.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{McpServers: map[string]ServerConfig{}}, nil
		}
		return Config{}, fmt.Errorf("failed to read MCP config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse MCP config: %w", err)
	}
	if cfg.McpServers == nil {
		cfg.McpServers = map[string]ServerConfig{}
	}
	return cfg, nil
}

// Allows reports whether a tool passes the server's filter. A non-empty
// allow list wins; otherwise the deny list applies.
func (c ServerConfig) Allows(tool string) bool {
	if len(c.AllowedTools) > 0 {
		for _, name := range c.AllowedTools {
			if name == tool {
				return true
			}
		}
		return false
	}
	for _, name := range c.DeniedTools {
		if name == tool {
			return false
		}
	}
	return true
}

// Equal reports whether two server configs are identical, for config
// change diffing.
func (c ServerConfig) Equal(other ServerConfig) bool {
	return reflect.DeepEqual(c, other)
}
