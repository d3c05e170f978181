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
package work

import (
	"context"
	"sync"
)

// SessionTracker maps session ids to the cancellation of their running
// background loop. Beginning a session cancels whatever the previous
// message of that session left running, so no two turns of one session
// ever overlap.
type SessionTracker struct {
	mu       sync.Mutex
	sessions map[string]context.CancelFunc
}

// NewSessionTracker creates an empty tracker.
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{sessions: make(map[string]context.CancelFunc)}
}

// BeginSession cancels any prior loop for the session and returns a
// fresh context linked to host.
func (t *SessionTracker) BeginSession(sessionID string, host context.Context) context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cancel, ok := t.sessions[sessionID]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(host)
	t.sessions[sessionID] = cancel
	return ctx
}

// EndSession cancels and forgets the session's loop. Ending an unknown
// session is a no-op.
func (t *SessionTracker) EndSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cancel, ok := t.sessions[sessionID]; ok {
		cancel()
		delete(t.sessions, sessionID)
	}
}

// CancelAll cancels every tracked loop, for host shutdown.
func (t *SessionTracker) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, cancel := range t.sessions {
		cancel()
		delete(t.sessions, id)
	}
}

// Active returns the number of tracked sessions.
func (t *SessionTracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
