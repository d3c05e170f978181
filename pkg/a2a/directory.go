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
// Package a2a implements agent-to-agent task delegation over the bus:
// agent cards and discovery, the calling side with task tracking, and
// the handling side with status and terminal messages.
package a2a

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// AgentCard advertises an agent and its skills for discovery.
type AgentCard struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version,omitempty"`
	Skills      []string `json:"skills,omitempty"`
}

// AgentDirectory indexes known agents for skill-filtered lookup.
type AgentDirectory struct {
	mu     sync.RWMutex
	agents map[string]AgentCard
}

// NewAgentDirectory creates an empty directory.
func NewAgentDirectory() *AgentDirectory {
	return &AgentDirectory{agents: make(map[string]AgentCard)}
}

// LoadAgentDirectory reads a known-agents.json file: a JSON array of
// agent cards. A missing file yields an empty directory.
func LoadAgentDirectory(path string) (*AgentDirectory, error) {
	dir := NewAgentDirectory()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return dir, nil
		}
		return nil, fmt.Errorf("failed to read agent directory: %w", err)
	}
	var cards []AgentCard
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("failed to parse agent directory: %w", err)
	}
	for _, card := range cards {
		dir.Register(card)
	}
	return dir, nil
}

// Register adds or replaces an agent card.
func (d *AgentDirectory) Register(card AgentCard) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agents[strings.ToLower(card.Name)] = card
}

// Find returns the card for a name, case-insensitively.
func (d *AgentDirectory) Find(name string) (AgentCard, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	card, ok := d.agents[strings.ToLower(name)]
	return card, ok
}

// FindBySkill returns all agents advertising a skill, case-insensitively,
// sorted by name.
func (d *AgentDirectory) FindBySkill(skill string) []AgentCard {
	needle := strings.ToLower(skill)
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []AgentCard
	for _, card := range d.agents {
		for _, s := range card.Skills {
			if strings.ToLower(s) == needle {
				out = append(out, card)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// All returns every known card sorted by name.
func (d *AgentDirectory) All() []AgentCard {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]AgentCard, 0, len(d.agents))
	for _, card := range d.agents {
		out = append(out, card)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
