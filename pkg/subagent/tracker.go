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
// Package subagent runs bounded in-process helper tasks on behalf of a
// parent session, with a shared whiteboard for structured handoff.
package subagent

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxConcurrent bounds simultaneously running subagents.
const DefaultMaxConcurrent = 3

type task struct {
	sessionID string
	cancel    context.CancelFunc
	startedAt time.Time
}

// Tracker maps running subagent task ids to their session and
// cancellation, enforcing the concurrency cap.
type Tracker struct {
	mu    sync.Mutex
	tasks map[string]*task
	max   int
}

// NewTracker creates a tracker; max <= 0 uses the default cap.
func NewTracker(max int) *Tracker {
	if max <= 0 {
		max = DefaultMaxConcurrent
	}
	return &Tracker{tasks: make(map[string]*task), max: max}
}

// Begin registers a task under the cap and returns its run context.
func (t *Tracker) Begin(taskID, sessionID string, parent context.Context) (context.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.tasks) >= t.max {
		return nil, fmt.Errorf("subagent limit reached (%d running)", t.max)
	}
	ctx, cancel := context.WithCancel(parent)
	t.tasks[taskID] = &task{
		sessionID: sessionID,
		cancel:    cancel,
		startedAt: time.Now().UTC(),
	}
	return ctx, nil
}

// SessionFor returns the parent session of a running task.
func (t *Tracker) SessionFor(taskID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.tasks[taskID]
	if !ok {
		return "", false
	}
	return entry.sessionID, true
}

// Done releases a finished task.
func (t *Tracker) Done(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.tasks[taskID]; ok {
		entry.cancel()
		delete(t.tasks, taskID)
	}
}

// Cancel aborts a running task.
func (t *Tracker) Cancel(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.tasks[taskID]
	if ok {
		entry.cancel()
		delete(t.tasks, taskID)
	}
	return ok
}

// Active returns the number of running tasks.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}
