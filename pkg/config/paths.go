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
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// GetDataDir returns the agent data directory.
//
// Priority:
// 1. ROCKBOT_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.rockbot (default)
//
// The returned path is always absolute. A leading tilde is expanded to
// the user's home directory, relative paths are made absolute against
// the working directory.
func GetDataDir() string {
	if dataDir := os.Getenv("ROCKBOT_DATA_DIR"); dataDir != "" {
		return expandPath(dataDir)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".rockbot"
	}
	return filepath.Join(homeDir, ".rockbot")
}

// DataVolume resolves the well-known files and subtrees of an agent
// data directory.
type DataVolume struct {
	Root string
}

// NewDataVolume wraps a data directory; empty root uses GetDataDir.
func NewDataVolume(root string) DataVolume {
	if root == "" {
		root = GetDataDir()
	}
	return DataVolume{Root: root}
}

// SoulPath is the agent's core identity document.
func (d DataVolume) SoulPath() string { return filepath.Join(d.Root, "soul.md") }

// DirectivesPath is the agent's standing instructions.
func (d DataVolume) DirectivesPath() string { return filepath.Join(d.Root, "directives.md") }

// StylePath is the optional tone and voice document.
func (d DataVolume) StylePath() string { return filepath.Join(d.Root, "style.md") }

// MemoryRulesPath is the optional memory-usage guidance document.
func (d DataVolume) MemoryRulesPath() string { return filepath.Join(d.Root, "memory-rules.md") }

// SessionStartPath is the optional first-turn briefing directive.
func (d DataVolume) SessionStartPath() string { return filepath.Join(d.Root, "session-start.md") }

// MCPConfigPath is the MCP server configuration file.
func (d DataVolume) MCPConfigPath() string { return filepath.Join(d.Root, "mcp.json") }

// KnownAgentsPath is the A2A agent directory file.
func (d DataVolume) KnownAgentsPath() string { return filepath.Join(d.Root, "known-agents.json") }

// ModelBehaviorsDir holds per-model-prefix prompt overrides.
func (d DataVolume) ModelBehaviorsDir() string { return filepath.Join(d.Root, "model-behaviors") }

// expandPath expands ~ and resolves to an absolute path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
