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
// Package memory defines the store contracts the orchestrator consumes:
// conversation history, long-term memory with BM25 recall, namespaced
// working memory, skills, and behavioral rules. The in-memory
// implementations in this package back tests and single-node agents;
// other backends plug in behind the same interfaces.
package memory

import (
	"context"
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Turn is one entry in a session's conversation history.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Entry is a long-term memory record. Categories are slash-separated
// hierarchical paths.
type Entry struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Category  string            `json:"category,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SearchCriteria narrows a long-term memory search.
type SearchCriteria struct {
	Query      string
	Category   string
	Tags       []string
	MaxResults int
}

// ScoredEntry is a ranked search hit.
type ScoredEntry struct {
	Entry
	Score float64
}

// WorkingEntry is a transient working-memory record. The first two
// segments of Key form the owning namespace.
type WorkingEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	StoredAt  time.Time `json:"storedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

// Skill is a learned procedure. Name is lowercase with hyphens and an
// optional slash-separated category prefix.
type Skill struct {
	Name       string    `json:"name"`
	Summary    string    `json:"summary"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	LastUsedAt time.Time `json:"lastUsedAt,omitempty"`
}

// ConversationMemory records turns per session. Bounded replay is the
// caller's concern.
type ConversationMemory interface {
	AddTurn(ctx context.Context, sessionID string, turn Turn) error
	GetTurns(ctx context.Context, sessionID string) ([]Turn, error)
}

// LongTermMemory persists entries and recalls them by BM25 ranking over
// content, tags, and category tokens.
type LongTermMemory interface {
	Save(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, criteria SearchCriteria) ([]ScoredEntry, error)
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// WorkingMemory is the short-lived, namespaced scratch store.
type WorkingMemory interface {
	Set(ctx context.Context, key, value string, ttl time.Duration, category string, tags []string) error
	Get(ctx context.Context, key string) (WorkingEntry, bool, error)
	List(ctx context.Context, prefix string) ([]WorkingEntry, error)
	Search(ctx context.Context, query, prefix string) ([]WorkingEntry, error)
	Delete(ctx context.Context, key string) error
}

// SkillStore persists skills.
type SkillStore interface {
	Get(ctx context.Context, name string) (Skill, bool, error)
	Save(ctx context.Context, skill Skill) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Skill, error)
}

// RulesStore is the ordered list of permanent behavioral rules,
// appended by tool calls and consulted every turn.
type RulesStore interface {
	Append(ctx context.Context, rule string) error
	List(ctx context.Context) ([]string, error)
}
