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

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/rockbot/pkg/llm"
	"github.com/teradata-labs/rockbot/pkg/memory"
)

func testProfile(t *testing.T) *memory.AgentProfile {
	t.Helper()
	return &memory.AgentProfile{
		Soul:       memory.ParseDocument("I am Rocky."),
		Directives: memory.ParseDocument("Always be direct."),
	}
}

func TestAssembleOrdersSections(t *testing.T) {
	ctx := context.Background()
	conversation := memory.NewConversation()
	require.NoError(t, conversation.AddTurn(ctx, "s1", memory.Turn{Role: memory.RoleUser, Content: "earlier question"}))
	require.NoError(t, conversation.AddTurn(ctx, "s1", memory.Turn{Role: memory.RoleAssistant, Content: "earlier answer"}))

	longTerm := memory.NewLongTerm()
	require.NoError(t, longTerm.Save(ctx, memory.Entry{ID: "m1", Content: "user prefers espresso"}))

	working := memory.NewWorking()
	require.NoError(t, working.Set(ctx, "session/s1/plan", "draft", 0, "", nil))

	rules := memory.NewRules()
	require.NoError(t, rules.Append(ctx, "never guess"))

	a := NewAssembler(AssemblerConfig{
		Profile:      testProfile(t),
		Rules:        rules,
		Conversation: conversation,
		LongTerm:     longTerm,
		Working:      working,
		Logger:       zaptest.NewLogger(t),
	})

	msgs, err := a.Assemble(ctx, TurnInput{
		SessionID:   "s1",
		UserMessage: "what espresso did I like?",
		Namespace:   "session/s1",
		UserSession: true,
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(msgs), 5)

	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "I am Rocky.")
	assert.Contains(t, msgs[0].Content, "never guess")

	assert.Equal(t, "earlier question", msgs[1].Content)
	assert.Equal(t, "earlier answer", msgs[2].Content)

	assert.Contains(t, msgs[3].Content, "espresso")
	assert.Contains(t, msgs[3].Content, "Recalled from long-term memory")

	assert.Contains(t, msgs[4].Content, "session/s1/plan")

	last := msgs[len(msgs)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	assert.Equal(t, "what espresso did I like?", last.Content)
}

func TestAssembleFirstTurnRecentFallback(t *testing.T) {
	ctx := context.Background()
	longTerm := memory.NewLongTerm()
	for i := 0; i < 8; i++ {
		require.NoError(t, longTerm.Save(ctx, memory.Entry{Content: fmt.Sprintf("fact %d", i)}))
	}

	a := NewAssembler(AssemblerConfig{
		Profile:  testProfile(t),
		LongTerm: longTerm,
		Logger:   zaptest.NewLogger(t),
	})

	msgs, err := a.Assemble(ctx, TurnInput{SessionID: "s1", UserMessage: "zzzz qqqq"})
	require.NoError(t, err)

	var recall string
	for _, m := range msgs {
		if m.Role == llm.RoleSystem && len(m.Content) > 0 && m.Content != msgs[0].Content {
			recall = m.Content
		}
	}
	require.NotEmpty(t, recall, "first turn with no hits should inject recent entries")
	assert.Contains(t, recall, "fact")
}

func TestAssembleInjectedMemoryDedupe(t *testing.T) {
	ctx := context.Background()
	longTerm := memory.NewLongTerm()
	require.NoError(t, longTerm.Save(ctx, memory.Entry{ID: "m1", Content: "espresso preference"}))

	conversation := memory.NewConversation()
	a := NewAssembler(AssemblerConfig{
		Profile:      testProfile(t),
		Conversation: conversation,
		LongTerm:     longTerm,
		Logger:       zaptest.NewLogger(t),
	})

	first, err := a.Assemble(ctx, TurnInput{SessionID: "s1", UserMessage: "espresso?"})
	require.NoError(t, err)
	require.NoError(t, conversation.AddTurn(ctx, "s1", memory.Turn{Role: memory.RoleUser, Content: "espresso?"}))

	second, err := a.Assemble(ctx, TurnInput{SessionID: "s1", UserMessage: "espresso?"})
	require.NoError(t, err)

	countRecall := func(msgs []llm.Message) int {
		n := 0
		for _, m := range msgs {
			if m.Role == llm.RoleSystem && strings.HasPrefix(m.Content, "Recalled") {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, countRecall(first))
	assert.Equal(t, 0, countRecall(second), "an entry is injected at most once per session")
}

func TestAssembleBoundsHistoryByTurnCount(t *testing.T) {
	ctx := context.Background()
	conversation := memory.NewConversation()
	for i := 0; i < 10; i++ {
		require.NoError(t, conversation.AddTurn(ctx, "s1", memory.Turn{
			Role:    memory.RoleUser,
			Content: fmt.Sprintf("turn %d", i),
		}))
	}

	a := NewAssembler(AssemblerConfig{
		Profile:         testProfile(t),
		Conversation:    conversation,
		MaxHistoryTurns: 3,
		Logger:          zaptest.NewLogger(t),
	})

	msgs, err := a.Assemble(ctx, TurnInput{SessionID: "s1", UserMessage: "now"})
	require.NoError(t, err)

	// System prompt, three history turns, user message.
	require.Len(t, msgs, 5)
	assert.Equal(t, "turn 7", msgs[1].Content)
	assert.Equal(t, "turn 9", msgs[3].Content)
}

func TestAssemblePatrolFindingsOnlyForUserSessions(t *testing.T) {
	ctx := context.Background()
	working := memory.NewWorking()
	require.NoError(t, working.Set(ctx, "patrol/disk/alert", "disk filling", 0, "", nil))

	a := NewAssembler(AssemblerConfig{
		Profile: testProfile(t),
		Working: working,
		Logger:  zaptest.NewLogger(t),
	})

	userMsgs, err := a.Assemble(ctx, TurnInput{SessionID: "s1", UserMessage: "hi", UserSession: true})
	require.NoError(t, err)
	assert.True(t, anyContains(userMsgs, "patrol/disk/alert"))

	bgMsgs, err := a.Assemble(ctx, TurnInput{SessionID: "bg", UserMessage: "hi"})
	require.NoError(t, err)
	assert.False(t, anyContains(bgMsgs, "patrol/disk/alert"))
}

func anyContains(msgs []llm.Message, needle string) bool {
	for _, m := range msgs {
		if strings.Contains(m.Content, needle) {
			return true
		}
	}
	return false
}
