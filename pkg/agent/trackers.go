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
package agent

import "sync"

// InjectedMemoryTracker remembers which long-term memory entries have
// already been surfaced to each session, so recall never repeats an
// entry within a process lifetime. State is in-process only; a restart
// clears it together with the LLM's context.
type InjectedMemoryTracker struct {
	mu       sync.Mutex
	injected map[string]map[string]struct{}
}

// NewInjectedMemoryTracker creates an empty tracker.
func NewInjectedMemoryTracker() *InjectedMemoryTracker {
	return &InjectedMemoryTracker{injected: make(map[string]map[string]struct{})}
}

// FilterNew returns the entry ids not yet surfaced to the session and
// marks them surfaced.
func (t *InjectedMemoryTracker) FilterNew(sessionID string, entryIDs []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen, ok := t.injected[sessionID]
	if !ok {
		seen = make(map[string]struct{})
		t.injected[sessionID] = seen
	}
	var fresh []string
	for _, id := range entryIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, id)
	}
	return fresh
}

// SessionFlag records a once-per-session event, backing the skill-index
// and session-start-briefing injections.
type SessionFlag struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSessionFlag creates an empty flag set.
func NewSessionFlag() *SessionFlag {
	return &SessionFlag{seen: make(map[string]struct{})}
}

// FirstTime reports whether this is the first call for the session, and
// marks it.
func (f *SessionFlag) FirstTime(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[sessionID]; ok {
		return false
	}
	f.seen[sessionID] = struct{}{}
	return true
}
