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
	"os"
	"path/filepath"
	"strings"
)

// ScheduledTaskResultMode controls how scheduled-run output reaches the
// user.
type ScheduledTaskResultMode int

const (
	// Summarize asks the model to summarize the run's output.
	Summarize ScheduledTaskResultMode = iota
	// VerbatimOutput relays the run's output untouched.
	VerbatimOutput
	// SummarizeWithOutput appends the raw output after the summary.
	SummarizeWithOutput
)

// ModelBehavior tunes the orchestrator for a family of models, selected
// by model-id prefix. Zero values mean "use the default".
type ModelBehavior struct {
	Prefix                       string
	AdditionalSystemPrompt       string
	PreToolLoopPrompt            string
	NudgeOnHallucinatedToolCalls bool
	MaxToolIterationsOverride    int
	ScheduledTaskResultMode      ScheduledTaskResultMode
	ToolResultChunkingThreshold  int
}

// BehaviorSet resolves a ModelBehavior for a model id. Prompt files
// under promptDir/<prefix>/ override the inline prompt fields:
// additional-system-prompt.md and pre-tool-loop-prompt.md.
type BehaviorSet struct {
	behaviors []ModelBehavior
	promptDir string
}

// NewBehaviorSet builds a resolver over inline behaviors. promptDir may
// be empty to disable file overrides.
func NewBehaviorSet(behaviors []ModelBehavior, promptDir string) *BehaviorSet {
	return &BehaviorSet{behaviors: behaviors, promptDir: promptDir}
}

// For returns the behavior whose prefix is the longest match for the
// model id, with file-backed prompts applied. An unmatched model gets a
// zero behavior.
func (s *BehaviorSet) For(modelID string) ModelBehavior {
	var best ModelBehavior
	bestLen := -1
	for _, b := range s.behaviors {
		if strings.HasPrefix(modelID, b.Prefix) && len(b.Prefix) > bestLen {
			best = b
			bestLen = len(b.Prefix)
		}
	}
	if bestLen < 0 {
		return ModelBehavior{}
	}
	if s.promptDir != "" {
		if text, ok := readPromptFile(s.promptDir, best.Prefix, "additional-system-prompt.md"); ok {
			best.AdditionalSystemPrompt = text
		}
		if text, ok := readPromptFile(s.promptDir, best.Prefix, "pre-tool-loop-prompt.md"); ok {
			best.PreToolLoopPrompt = text
		}
	}
	return best
}

func readPromptFile(dir, prefix, name string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, prefix, name))
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", false
	}
	return text, true
}
