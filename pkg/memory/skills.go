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
package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"
)

// Skill names: lowercase with hyphens, optional slash-separated
// category prefix.
var skillNamePattern = regexp.MustCompile(`^[a-z0-9-]+(/[a-z0-9-]+)*$`)

// Skills is the in-memory skill store.
type Skills struct {
	mu     sync.RWMutex
	skills map[string]Skill
}

// NewSkills creates an empty skill store.
func NewSkills() *Skills {
	return &Skills{skills: make(map[string]Skill)}
}

// Get returns a skill by name and stamps LastUsedAt.
func (s *Skills) Get(ctx context.Context, name string) (Skill, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	skill, ok := s.skills[name]
	if ok {
		skill.LastUsedAt = time.Now().UTC()
		s.skills[name] = skill
	}
	return skill, ok, nil
}

// Save inserts or updates a skill.
func (s *Skills) Save(ctx context.Context, skill Skill) error {
	if !skillNamePattern.MatchString(skill.Name) {
		return fmt.Errorf("invalid skill name %q", skill.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if prev, ok := s.skills[skill.Name]; ok {
		skill.CreatedAt = prev.CreatedAt
	} else if skill.CreatedAt.IsZero() {
		skill.CreatedAt = now
	}
	skill.UpdatedAt = now
	s.skills[skill.Name] = skill
	return nil
}

// Delete removes a skill by name.
func (s *Skills) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.skills, name)
	return nil
}

// List returns all skills sorted by name.
func (s *Skills) List(ctx context.Context) ([]Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Skill, 0, len(s.skills))
	for _, skill := range s.skills {
		out = append(out, skill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var _ SkillStore = (*Skills)(nil)
