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
package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/teradata-labs/rockbot/pkg/memory"
	"github.com/teradata-labs/rockbot/pkg/shuttle"
)

func skillTools(skills memory.SkillStore) []toolDef {
	return []toolDef{
		{
			name:        "skill_get",
			description: "Load the full content of a named skill. Check the skill index in your context for available names.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"name": shuttle.StringProperty("The skill name, e.g. reporting/weekly-digest."),
			}, []string{"name"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				name, err := shuttle.StringArg(args, "name")
				if err != nil {
					return "", err
				}
				skill, ok, err := skills.Get(ctx, name)
				if err != nil {
					return "", err
				}
				if !ok {
					return "", fmt.Errorf("no skill named %q", name)
				}
				return skill.Content, nil
			},
		},
		{
			name:        "skill_save",
			description: "Save or update a skill: a reusable procedure written as markdown. Saving an existing name replaces it.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"name":    shuttle.StringProperty("Lowercase hyphenated name with optional slash-separated category, e.g. reporting/weekly-digest."),
				"summary": shuttle.StringProperty("One line describing when to use this skill."),
				"content": shuttle.StringProperty("The full skill body in markdown."),
			}, []string{"name", "summary", "content"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				name, err := shuttle.StringArg(args, "name")
				if err != nil {
					return "", err
				}
				summary, err := shuttle.StringArg(args, "summary")
				if err != nil {
					return "", err
				}
				content, err := shuttle.StringArg(args, "content")
				if err != nil {
					return "", err
				}
				skill := memory.Skill{Name: name, Summary: summary, Content: content}
				if err := skills.Save(ctx, skill); err != nil {
					return "", err
				}
				return fmt.Sprintf("Saved skill %q", name), nil
			},
		},
		{
			name:        "skill_list",
			description: "List all saved skills with their summaries.",
			schema:      shuttle.ObjectSchema("", map[string]any{}, nil),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				all, err := skills.List(ctx)
				if err != nil {
					return "", err
				}
				if len(all) == 0 {
					return "No skills saved yet.", nil
				}
				var sb strings.Builder
				for _, skill := range all {
					fmt.Fprintf(&sb, "- %s: %s\n", skill.Name, skill.Summary)
				}
				return sb.String(), nil
			},
		},
		{
			name:        "skill_delete",
			description: "Delete a skill by name.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"name": shuttle.StringProperty("The skill name to delete."),
			}, []string{"name"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				name, err := shuttle.StringArg(args, "name")
				if err != nil {
					return "", err
				}
				if err := skills.Delete(ctx, name); err != nil {
					return "", err
				}
				return fmt.Sprintf("Deleted skill %q", name), nil
			},
		},
	}
}
