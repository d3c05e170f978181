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
	"strings"
	"sync"
)

// Rules is the in-memory ordered rules store.
type Rules struct {
	mu    sync.RWMutex
	rules []string
}

// NewRules creates an empty rules store.
func NewRules() *Rules {
	return &Rules{}
}

// Append adds a rule to the end of the list. Blank rules are ignored.
func (r *Rules) Append(ctx context.Context, rule string) error {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
	return nil
}

// List returns the rules in insertion order.
func (r *Rules) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.rules))
	copy(out, r.rules)
	return out, nil
}

var _ RulesStore = (*Rules)(nil)
