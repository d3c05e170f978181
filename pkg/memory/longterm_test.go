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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLongTermSaveAssignsID(t *testing.T) {
	lt := NewLongTerm()
	ctx := context.Background()

	require.NoError(t, lt.Save(ctx, Entry{Content: "first"}))
	recent, err := lt.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.NotEmpty(t, recent[0].ID)
	assert.False(t, recent[0].CreatedAt.IsZero())
}

func TestLongTermUpdateKeepsCreatedAt(t *testing.T) {
	lt := NewLongTerm()
	ctx := context.Background()

	require.NoError(t, lt.Save(ctx, Entry{ID: "e1", Content: "original"}))
	recent, err := lt.Recent(ctx, 1)
	require.NoError(t, err)
	created := recent[0].CreatedAt

	require.NoError(t, lt.Save(ctx, Entry{ID: "e1", Content: "revised"}))
	recent, err = lt.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, created, recent[0].CreatedAt)
	assert.False(t, recent[0].UpdatedAt.IsZero())
	assert.Equal(t, "revised", recent[0].Content)
}

func TestLongTermSearchRanksByRelevance(t *testing.T) {
	lt := NewLongTerm()
	ctx := context.Background()

	require.NoError(t, lt.Save(ctx, Entry{ID: "dense", Content: "database migration database schema database backup"}))
	require.NoError(t, lt.Save(ctx, Entry{ID: "sparse", Content: "a note that mentions database once among many other words here"}))
	require.NoError(t, lt.Save(ctx, Entry{ID: "off", Content: "grocery list apples bananas"}))

	hits, err := lt.Search(ctx, SearchCriteria{Query: "database"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "dense", hits[0].ID)
	assert.Equal(t, "sparse", hits[1].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestLongTermSearchMatchesTagsAndCategory(t *testing.T) {
	lt := NewLongTerm()
	ctx := context.Background()

	require.NoError(t, lt.Save(ctx, Entry{ID: "tagged", Content: "nothing relevant", Tags: []string{"deploys"}}))
	require.NoError(t, lt.Save(ctx, Entry{ID: "categorized", Content: "nothing either", Category: "ops/deploys"}))

	hits, err := lt.Search(ctx, SearchCriteria{Query: "deploys"})
	require.NoError(t, err)
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	assert.ElementsMatch(t, []string{"tagged", "categorized"}, ids)
}

func TestLongTermSearchFilters(t *testing.T) {
	lt := NewLongTerm()
	ctx := context.Background()

	require.NoError(t, lt.Save(ctx, Entry{ID: "a", Content: "shared term", Category: "people/alice", Tags: []string{"vip"}}))
	require.NoError(t, lt.Save(ctx, Entry{ID: "b", Content: "shared term", Category: "projects/apollo"}))

	hits, err := lt.Search(ctx, SearchCriteria{Query: "shared", Category: "people"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)

	hits, err = lt.Search(ctx, SearchCriteria{Query: "shared", Tags: []string{"VIP"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}

func TestLongTermSearchEmptyQueryListsByFilter(t *testing.T) {
	lt := NewLongTerm()
	ctx := context.Background()

	require.NoError(t, lt.Save(ctx, Entry{ID: "a", Content: "x", Category: "people/alice"}))
	require.NoError(t, lt.Save(ctx, Entry{ID: "b", Content: "y", Category: "ops/deploys"}))

	hits, err := lt.Search(ctx, SearchCriteria{Category: "people"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}

func TestLongTermSearchCapsResults(t *testing.T) {
	lt := NewLongTerm()
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, lt.Save(ctx, Entry{Content: "widget inventory"}))
	}

	hits, err := lt.Search(ctx, SearchCriteria{Query: "widget"})
	require.NoError(t, err)
	assert.Len(t, hits, DefaultMaxResults)

	hits, err = lt.Search(ctx, SearchCriteria{Query: "widget", MaxResults: 3})
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestLongTermDeleteDropsFromIndex(t *testing.T) {
	lt := NewLongTerm()
	ctx := context.Background()

	require.NoError(t, lt.Save(ctx, Entry{ID: "gone", Content: "ephemeral fact"}))
	require.NoError(t, lt.Delete(ctx, "gone"))
	require.NoError(t, lt.Delete(ctx, "never-existed"))

	hits, err := lt.Search(ctx, SearchCriteria{Query: "ephemeral"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
