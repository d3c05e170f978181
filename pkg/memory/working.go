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
	"sort"
	"strings"
	"sync"
	"time"
)

// Working-memory defaults.
const (
	// DefaultWorkingTTL applies when Set is called with zero ttl.
	DefaultWorkingTTL = 30 * time.Minute

	// DefaultNamespaceCap bounds entries per namespace; the oldest
	// entry is evicted on overflow.
	DefaultNamespaceCap = 200
)

// Namespace returns the owning namespace of a working-memory key: its
// first two path segments (e.g. "session/abc" from "session/abc/notes").
func Namespace(key string) string {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) < 2 {
		return key
	}
	return parts[0] + "/" + parts[1]
}

// SessionNamespace maps an execution context's session id to the
// working-memory namespace its writes are confined to. Scheduled runs
// ("scheduled/<task>") own "patrol/<task>"; detached runs
// ("subagent/<id>", "a2a/<id>") own their session id; user sessions own
// "session/<id>". Empty session ids have no namespace.
func SessionNamespace(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	if task, ok := strings.CutPrefix(sessionID, "scheduled/"); ok {
		return Namespace("patrol/" + task)
	}
	if strings.HasPrefix(sessionID, "subagent/") || strings.HasPrefix(sessionID, "a2a/") {
		return Namespace(sessionID)
	}
	return Namespace("session/" + sessionID)
}

// Working is the in-memory working-memory store. Expired entries are
// dropped lazily on access.
type Working struct {
	mu           sync.Mutex
	entries      map[string]WorkingEntry
	namespaceCap int
	defaultTTL   time.Duration
	now          func() time.Time
}

// NewWorking creates a working-memory store with default TTL and caps.
func NewWorking() *Working {
	return &Working{
		entries:      make(map[string]WorkingEntry),
		namespaceCap: DefaultNamespaceCap,
		defaultTTL:   DefaultWorkingTTL,
		now:          time.Now,
	}
}

// SetDefaultTTL overrides the TTL used when Set receives zero.
func (w *Working) SetDefaultTTL(ttl time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ttl > 0 {
		w.defaultTTL = ttl
	}
}

// Set stores a value under key. The namespace cap evicts the oldest
// entry in the key's namespace on overflow.
func (w *Working) Set(ctx context.Context, key, value string, ttl time.Duration, category string, tags []string) error {
	if key == "" {
		return fmt.Errorf("working-memory key is required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if ttl <= 0 {
		ttl = w.defaultTTL
	}
	now := w.now().UTC()
	_, replacing := w.entries[key]
	w.entries[key] = WorkingEntry{
		Key:       key,
		Value:     value,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
		Category:  category,
		Tags:      tags,
	}

	if !replacing {
		w.evictOverflow(Namespace(key))
	}
	return nil
}

// Get returns the entry for key, if present and unexpired.
func (w *Working) Get(ctx context.Context, key string) (WorkingEntry, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sweep()
	entry, ok := w.entries[key]
	return entry, ok, nil
}

// List returns unexpired entries under prefix, oldest first. Empty
// prefix lists everything.
func (w *Working) List(ctx context.Context, prefix string) ([]WorkingEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sweep()

	var out []WorkingEntry
	for key, entry := range w.entries {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoredAt.Before(out[j].StoredAt) })
	return out, nil
}

// Search returns entries under prefix whose key, value, category, or
// tags contain the query, case-insensitively.
func (w *Working) Search(ctx context.Context, query, prefix string) ([]WorkingEntry, error) {
	all, err := w.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	var out []WorkingEntry
	for _, entry := range all {
		if entryContains(entry, needle) {
			out = append(out, entry)
		}
	}
	return out, nil
}

// Delete removes the entry for key.
func (w *Working) Delete(ctx context.Context, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, key)
	return nil
}

// evictOverflow drops the oldest entries of a namespace over the cap.
// Callers hold the lock.
func (w *Working) evictOverflow(namespace string) {
	var owned []WorkingEntry
	for key, entry := range w.entries {
		if Namespace(key) == namespace {
			owned = append(owned, entry)
		}
	}
	if len(owned) <= w.namespaceCap {
		return
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].StoredAt.Before(owned[j].StoredAt) })
	for _, entry := range owned[:len(owned)-w.namespaceCap] {
		delete(w.entries, entry.Key)
	}
}

// sweep drops expired entries. Callers hold the lock.
func (w *Working) sweep() {
	now := w.now().UTC()
	for key, entry := range w.entries {
		if entry.ExpiresAt.Before(now) {
			delete(w.entries, key)
		}
	}
}

func entryContains(entry WorkingEntry, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(entry.Key), needle) ||
		strings.Contains(strings.ToLower(entry.Value), needle) ||
		strings.Contains(strings.ToLower(entry.Category), needle) {
		return true
	}
	for _, tag := range entry.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// ScopedWorking restricts writes to one namespace while keeping reads
// cross-namespace. Execution contexts receive a scoped view so a session
// can never scribble over another context's state.
type ScopedWorking struct {
	WorkingMemory
	namespace string
}

// Scoped wraps a working memory with a write namespace.
func Scoped(wm WorkingMemory, namespace string) *ScopedWorking {
	return &ScopedWorking{WorkingMemory: wm, namespace: namespace}
}

// OwnNamespace returns the namespace writes are confined to.
func (s *ScopedWorking) OwnNamespace() string { return s.namespace }

// Set rejects keys outside the scoped namespace.
func (s *ScopedWorking) Set(ctx context.Context, key, value string, ttl time.Duration, category string, tags []string) error {
	if Namespace(key) != s.namespace {
		return fmt.Errorf("key %q is outside namespace %q", key, s.namespace)
	}
	return s.WorkingMemory.Set(ctx, key, value, ttl, category, tags)
}

// Delete rejects keys outside the scoped namespace.
func (s *ScopedWorking) Delete(ctx context.Context, key string) error {
	if Namespace(key) != s.namespace {
		return fmt.Errorf("key %q is outside namespace %q", key, s.namespace)
	}
	return s.WorkingMemory.Delete(ctx, key)
}

var (
	_ WorkingMemory = (*Working)(nil)
	_ WorkingMemory = (*ScopedWorking)(nil)
)
