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
// Package builtin registers the agent's built-in tools: working-memory
// scratch operations, long-term memory save and recall, skills, and
// behavioral rules. Each tool is a thin adapter from validated JSON
// arguments to the store contracts in pkg/memory.
package builtin

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/memory"
	"github.com/teradata-labs/rockbot/pkg/shuttle"
)

// Deps are the stores the built-in tools operate on. Nil stores skip
// their tool group.
type Deps struct {
	Working  memory.WorkingMemory
	LongTerm memory.LongTermMemory
	Skills   memory.SkillStore
	Rules    memory.RulesStore
}

// ChunkingExempt lists built-in tools whose results must never be
// chunked: the working-memory reads used to retrieve chunks.
func ChunkingExempt() []string {
	return []string{"working_memory_get", "working_memory_list", "working_memory_search"}
}

// Register installs the built-in tools for the available stores.
func Register(registry *shuttle.Registry, deps Deps, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var groups [][]toolDef
	if deps.Working != nil {
		groups = append(groups, workingTools(deps.Working))
	}
	if deps.LongTerm != nil {
		groups = append(groups, longTermTools(deps.LongTerm))
	}
	if deps.Skills != nil {
		groups = append(groups, skillTools(deps.Skills))
	}
	if deps.Rules != nil {
		groups = append(groups, ruleTools(deps.Rules))
	}
	for _, group := range groups {
		for _, def := range group {
			reg := shuttle.Registration{
				Name:             def.name,
				Description:      def.description,
				ParametersSchema: def.schema,
				Source:           shuttle.SourceInProcess,
			}
			executor, err := shuttle.NewFuncExecutor(reg, def.fn, logger)
			if err != nil {
				return fmt.Errorf("failed to build builtin tool %s: %w", def.name, err)
			}
			if err := registry.Register(reg, executor); err != nil {
				return err
			}
		}
	}
	return nil
}

type toolDef struct {
	name        string
	description string
	schema      string
	fn          shuttle.Func
}
