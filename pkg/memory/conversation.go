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
	"sync"
)

// Conversation is the in-memory conversation log. Turns are appended in
// completion order per session.
type Conversation struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

// NewConversation creates an empty conversation log.
func NewConversation() *Conversation {
	return &Conversation{turns: make(map[string][]Turn)}
}

// AddTurn appends a turn to the session history.
func (c *Conversation) AddTurn(ctx context.Context, sessionID string, turn Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns[sessionID] = append(c.turns[sessionID], turn)
	return nil
}

// GetTurns returns a copy of the session history in order.
func (c *Conversation) GetTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	turns := c.turns[sessionID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

var _ ConversationMemory = (*Conversation)(nil)
