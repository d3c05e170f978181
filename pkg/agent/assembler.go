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
	"os"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/llm"
	"github.com/teradata-labs/rockbot/pkg/memory"
)

// Assembler defaults.
const (
	// DefaultMaxHistoryTurns bounds conversation replay per turn.
	DefaultMaxHistoryTurns = 20

	// DefaultHistoryTokenBudget additionally bounds replay by token
	// count, protecting small context windows from a few huge turns.
	DefaultHistoryTokenBudget = 24000

	// RecentFallbackCount is how many recent entries are injected when
	// recall finds nothing on a session's first turn.
	RecentFallbackCount = 5

	historyEncoding = "cl100k_base"
)

// PatrolPrefix is the working-memory prefix scheduled patrols write
// their findings under.
const PatrolPrefix = "patrol/"

// Assembler builds the ordered chat-message list for one turn: system
// prompt, bounded history, memory recall, working-memory inventories,
// skill index, and the session-start briefing.
type Assembler struct {
	profile      *memory.AgentProfile
	rules        memory.RulesStore
	conversation memory.ConversationMemory
	longTerm     memory.LongTermMemory
	working      memory.WorkingMemory
	skills       memory.SkillStore

	injected   *InjectedMemoryTracker
	skillIndex *SessionFlag
	briefed    *SessionFlag

	briefingPath string
	maxTurns     int
	tokenBudget  int
	encoder      *tiktoken.Tiktoken
	now          func() time.Time
	logger       *zap.Logger
}

// AssemblerConfig wires an Assembler. Nil stores skip their step.
type AssemblerConfig struct {
	Profile      *memory.AgentProfile
	Rules        memory.RulesStore
	Conversation memory.ConversationMemory
	LongTerm     memory.LongTermMemory
	Working      memory.WorkingMemory
	Skills       memory.SkillStore

	// BriefingPath points at an optional session-start briefing file on
	// the data volume.
	BriefingPath string

	MaxHistoryTurns    int
	HistoryTokenBudget int

	Logger *zap.Logger
}

// NewAssembler builds an assembler with fresh trackers.
func NewAssembler(cfg AssemblerConfig) *Assembler {
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = DefaultMaxHistoryTurns
	}
	if cfg.HistoryTokenBudget <= 0 {
		cfg.HistoryTokenBudget = DefaultHistoryTokenBudget
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	encoder, err := tiktoken.GetEncoding(historyEncoding)
	if err != nil {
		// Token bounding degrades to turn-count bounding.
		cfg.Logger.Warn("Failed to load token encoding, bounding history by turn count only", zap.Error(err))
		encoder = nil
	}
	return &Assembler{
		profile:      cfg.Profile,
		rules:        cfg.Rules,
		conversation: cfg.Conversation,
		longTerm:     cfg.LongTerm,
		working:      cfg.Working,
		skills:       cfg.Skills,
		injected:     NewInjectedMemoryTracker(),
		skillIndex:   NewSessionFlag(),
		briefed:      NewSessionFlag(),
		briefingPath: cfg.BriefingPath,
		maxTurns:     cfg.MaxHistoryTurns,
		tokenBudget:  cfg.HistoryTokenBudget,
		encoder:      encoder,
		now:          time.Now,
		logger:       cfg.Logger,
	}
}

// TurnInput describes the turn being assembled. Namespace is the
// caller's working-memory namespace; UserSession marks interactive
// sessions, which additionally see patrol findings.
type TurnInput struct {
	SessionID   string
	UserMessage string
	Namespace   string
	UserSession bool
	Behavior    ModelBehavior
}

// Assemble produces the ordered message list ending with the user
// message.
func (a *Assembler) Assemble(ctx context.Context, in TurnInput) ([]llm.Message, error) {
	var msgs []llm.Message

	system, err := a.systemPrompt(ctx, in.Behavior)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, llm.SystemMessage(system))

	history, firstTurn, err := a.boundedHistory(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, history...)

	if recall := a.recall(ctx, in.SessionID, in.UserMessage, firstTurn); recall != "" {
		msgs = append(msgs, llm.SystemMessage(recall))
	}
	if inventory := a.workingInventory(ctx, in.Namespace, "Working-memory entries in your namespace"); inventory != "" {
		msgs = append(msgs, llm.SystemMessage(inventory))
	}
	if in.UserSession {
		if patrol := a.workingInventory(ctx, PatrolPrefix, "Patrol findings in working memory"); patrol != "" {
			msgs = append(msgs, llm.SystemMessage(patrol))
		}
	}
	if a.skills != nil && a.skillIndex.FirstTime(in.SessionID) {
		if index := a.skillIndexMessage(ctx); index != "" {
			msgs = append(msgs, llm.SystemMessage(index))
		}
	}
	if firstTurn && a.briefingPath != "" && a.briefed.FirstTime(in.SessionID) {
		if briefing, err := os.ReadFile(a.briefingPath); err == nil && len(briefing) > 0 {
			msgs = append(msgs, llm.SystemMessage("Session-start briefing:\n"+string(briefing)))
		}
	}

	msgs = append(msgs, llm.UserMessage(in.UserMessage))
	return msgs, nil
}

// systemPrompt composes the profile prompt, active rules, and
// model-specific prompts.
func (a *Assembler) systemPrompt(ctx context.Context, behavior ModelBehavior) (string, error) {
	var parts []string
	if a.profile != nil {
		parts = append(parts, a.profile.SystemPrompt())
	}
	if a.rules != nil {
		rules, err := a.rules.List(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to load rules: %w", err)
		}
		if len(rules) > 0 {
			var sb strings.Builder
			sb.WriteString("Standing rules you must always follow:\n")
			for i, rule := range rules {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, rule)
			}
			parts = append(parts, sb.String())
		}
	}
	if behavior.PreToolLoopPrompt != "" {
		parts = append(parts, behavior.PreToolLoopPrompt)
	}
	if behavior.AdditionalSystemPrompt != "" {
		parts = append(parts, behavior.AdditionalSystemPrompt)
	}
	return strings.Join(parts, "\n\n"), nil
}

// boundedHistory replays the most recent turns within both the turn and
// token caps, oldest dropped first. It also reports whether this is the
// session's first turn.
func (a *Assembler) boundedHistory(ctx context.Context, sessionID string) ([]llm.Message, bool, error) {
	if a.conversation == nil {
		return nil, true, nil
	}
	turns, err := a.conversation.GetTurns(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load conversation: %w", err)
	}
	firstTurn := len(turns) == 0

	if len(turns) > a.maxTurns {
		turns = turns[len(turns)-a.maxTurns:]
	}
	if a.encoder != nil {
		total := 0
		start := len(turns)
		for i := len(turns) - 1; i >= 0; i-- {
			total += len(a.encoder.Encode(turns[i].Content, nil, nil))
			if total > a.tokenBudget {
				break
			}
			start = i
		}
		turns = turns[start:]
	}

	msgs := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		msgs = append(msgs, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return msgs, firstTurn, nil
}

// recall surfaces long-term memories relevant to the user message, at
// most once per entry per session.
func (a *Assembler) recall(ctx context.Context, sessionID, userMessage string, firstTurn bool) string {
	if a.longTerm == nil {
		return ""
	}
	hits, err := a.longTerm.Search(ctx, memory.SearchCriteria{
		Query:      userMessage,
		MaxResults: memory.DefaultMaxResults,
	})
	if err != nil {
		a.logger.Warn("Long-term memory search failed", zap.Error(err))
		return ""
	}

	var entries []memory.Entry
	for _, hit := range hits {
		entries = append(entries, hit.Entry)
	}
	if len(entries) == 0 && firstTurn {
		recent, err := a.longTerm.Recent(ctx, RecentFallbackCount)
		if err != nil {
			a.logger.Warn("Long-term memory recent lookup failed", zap.Error(err))
			return ""
		}
		entries = recent
	}
	if len(entries) == 0 {
		return ""
	}

	byID := make(map[string]memory.Entry, len(entries))
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		byID[entry.ID] = entry
		ids = append(ids, entry.ID)
	}
	fresh := a.injected.FilterNew(sessionID, ids)
	if len(fresh) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Recalled from long-term memory:\n")
	for _, id := range fresh {
		entry := byID[id]
		if entry.Category != "" {
			fmt.Fprintf(&sb, "- [%s] %s\n", entry.Category, entry.Content)
		} else {
			fmt.Fprintf(&sb, "- %s\n", entry.Content)
		}
	}
	return sb.String()
}

// workingInventory lists keys and expiries under a prefix, without
// contents. The model retrieves values it needs by key.
func (a *Assembler) workingInventory(ctx context.Context, prefix, title string) string {
	if a.working == nil || prefix == "" {
		return ""
	}
	entries, err := a.working.List(ctx, prefix)
	if err != nil {
		a.logger.Warn("Working-memory list failed", zap.String("prefix", prefix), zap.Error(err))
		return ""
	}
	if len(entries) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString(" (use working_memory_get to read one):\n")
	for _, entry := range entries {
		fmt.Fprintf(&sb, "- %s (expires %s)\n", entry.Key, entry.ExpiresAt.Format(time.RFC3339))
	}
	return sb.String()
}

// skillIndexMessage lists skills by name, summary, and age.
func (a *Assembler) skillIndexMessage(ctx context.Context) string {
	skills, err := a.skills.List(ctx)
	if err != nil {
		a.logger.Warn("Skill list failed", zap.Error(err))
		return ""
	}
	if len(skills) == 0 {
		return ""
	}
	now := a.now().UTC()
	var sb strings.Builder
	sb.WriteString("Skills you can load with skill_get:\n")
	for _, skill := range skills {
		age := now.Sub(skill.UpdatedAt).Round(time.Hour)
		fmt.Fprintf(&sb, "- %s: %s (updated %s ago)\n", skill.Name, skill.Summary, age)
	}
	return sb.String()
}
