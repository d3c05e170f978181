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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxResults bounds a long-term memory search when the criteria
// leave MaxResults unset.
const DefaultMaxResults = 8

// LongTerm is the in-memory long-term store with BM25 recall. A single
// lock guards both entries and index.
type LongTerm struct {
	mu      sync.Mutex
	entries map[string]Entry
	index   *bm25Index
}

// NewLongTerm creates an empty long-term store.
func NewLongTerm() *LongTerm {
	return &LongTerm{
		entries: make(map[string]Entry),
		index:   newBM25Index(),
	}
}

// Save inserts or updates an entry. A missing id is assigned; an
// existing entry keeps CreatedAt and gets UpdatedAt stamped.
func (l *LongTerm) Save(ctx context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if prev, ok := l.entries[entry.ID]; ok {
		entry.CreatedAt = prev.CreatedAt
		entry.UpdatedAt = time.Now().UTC()
	} else if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	l.entries[entry.ID] = entry
	l.index.add(entry.ID, indexTokens(entry))
	return nil
}

// Delete removes an entry by id. Deleting an unknown id is a no-op.
func (l *LongTerm) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, id)
	l.index.remove(id)
	return nil
}

// Search ranks entries by BM25 over content, tags, and category tokens,
// after applying category and tag filters.
func (l *LongTerm) Search(ctx context.Context, criteria SearchCriteria) ([]ScoredEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	maxResults := criteria.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	query := tokenize(criteria.Query)

	var hits []ScoredEntry
	for id, entry := range l.entries {
		if !matchesFilters(entry, criteria) {
			continue
		}
		score := l.index.score(id, query)
		if len(query) > 0 && score == 0 {
			continue
		}
		hits = append(hits, ScoredEntry{Entry: entry, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].CreatedAt.After(hits[j].CreatedAt)
	})
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits, nil
}

// Recent returns the newest entries, newest first.
func (l *LongTerm) Recent(ctx context.Context, limit int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := make([]Entry, 0, len(l.entries))
	for _, entry := range l.entries {
		all = append(all, entry)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func matchesFilters(entry Entry, criteria SearchCriteria) bool {
	if criteria.Category != "" && !strings.HasPrefix(entry.Category, criteria.Category) {
		return false
	}
	for _, want := range criteria.Tags {
		found := false
		for _, tag := range entry.Tags {
			if strings.EqualFold(tag, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func indexTokens(entry Entry) []string {
	parts := []string{entry.Content, entry.Category}
	parts = append(parts, entry.Tags...)
	return tokenize(strings.Join(parts, " "))
}

var _ LongTermMemory = (*LongTerm)(nil)
