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

func TestSkillsSaveValidatesName(t *testing.T) {
	s := NewSkills()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Skill{Name: "ops/rotate-keys", Summary: "rotate keys"}))
	require.Error(t, s.Save(ctx, Skill{Name: "Rotate Keys"}))
	require.Error(t, s.Save(ctx, Skill{Name: ""}))
}

func TestSkillsGetStampsLastUsed(t *testing.T) {
	s := NewSkills()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Skill{Name: "summarize"}))
	skill, ok, err := s.Get(ctx, "summarize")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, skill.LastUsedAt.IsZero())

	_, ok, err = s.Get(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSkillsListSortedByName(t *testing.T) {
	s := NewSkills()
	ctx := context.Background()

	for _, name := range []string{"zebra", "alpha", "middle"} {
		require.NoError(t, s.Save(ctx, Skill{Name: name}))
	}
	skills, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, skills, 3)
	assert.Equal(t, "alpha", skills[0].Name)
	assert.Equal(t, "zebra", skills[2].Name)
}

func TestRulesAppendAndList(t *testing.T) {
	r := NewRules()
	ctx := context.Background()

	require.NoError(t, r.Append(ctx, "never share secrets"))
	require.NoError(t, r.Append(ctx, "   "))
	require.NoError(t, r.Append(ctx, "confirm before deleting"))

	rules, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"never share secrets", "confirm before deleting"}, rules)
}

func TestConversationTurnOrder(t *testing.T) {
	c := NewConversation()
	ctx := context.Background()

	require.NoError(t, c.AddTurn(ctx, "s1", Turn{Role: RoleUser, Content: "hi"}))
	require.NoError(t, c.AddTurn(ctx, "s1", Turn{Role: RoleAssistant, Content: "hello"}))
	require.NoError(t, c.AddTurn(ctx, "s2", Turn{Role: RoleUser, Content: "other"}))

	turns, err := c.GetTurns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "hello", turns[1].Content)
}
