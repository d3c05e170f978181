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
package subagent

import (
	"sort"
	"sync"
)

// Whiteboard is the shared scratch space parents and subagents hand
// structured data through. Unlike working memory it has no TTL; it
// lives as long as the process.
type Whiteboard struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewWhiteboard creates an empty whiteboard.
func NewWhiteboard() *Whiteboard {
	return &Whiteboard{entries: make(map[string]string)}
}

// Write stores a value under key, replacing any previous value.
func (w *Whiteboard) Write(key, value string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[key] = value
}

// Read returns the value for key.
func (w *Whiteboard) Read(key string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	value, ok := w.entries[key]
	return value, ok
}

// List returns all keys sorted.
func (w *Whiteboard) List() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	keys := make([]string, 0, len(w.entries))
	for key := range w.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Delete removes the entry for key.
func (w *Whiteboard) Delete(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, key)
}
