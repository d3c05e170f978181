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

func ruleTools(rules memory.RulesStore) []toolDef {
	return []toolDef{
		{
			name:        "rules_append",
			description: "Append a permanent behavioral rule. Rules are included in every future turn's context and cannot be removed by tools, so use sparingly.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"rule": shuttle.StringProperty("The rule, phrased as a standing instruction."),
			}, []string{"rule"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				rule, err := shuttle.StringArg(args, "rule")
				if err != nil {
					return "", err
				}
				if strings.TrimSpace(rule) == "" {
					return "", fmt.Errorf("rule must not be empty")
				}
				if err := rules.Append(ctx, rule); err != nil {
					return "", err
				}
				return "Rule recorded.", nil
			},
		},
		{
			name:        "rules_list",
			description: "List all permanent behavioral rules in order.",
			schema:      shuttle.ObjectSchema("", map[string]any{}, nil),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				all, err := rules.List(ctx)
				if err != nil {
					return "", err
				}
				if len(all) == 0 {
					return "No rules recorded.", nil
				}
				var sb strings.Builder
				for i, rule := range all {
					fmt.Fprintf(&sb, "%d. %s\n", i+1, rule)
				}
				return sb.String(), nil
			},
		},
	}
}
