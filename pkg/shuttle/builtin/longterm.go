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
	"encoding/json"
	"fmt"

	"github.com/teradata-labs/rockbot/pkg/memory"
	"github.com/teradata-labs/rockbot/pkg/shuttle"
)

func longTermTools(lt memory.LongTermMemory) []toolDef {
	return []toolDef{
		{
			name:        "memory_save",
			description: "Save a durable fact to long-term memory. Use a slash-separated category path to organize related facts.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"content":  shuttle.StringProperty("The fact to remember, self-contained and specific."),
				"category": shuttle.StringProperty("Optional slash-separated category, e.g. people/alice."),
				"tags":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Optional tags for recall."},
			}, []string{"content"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				content, err := shuttle.StringArg(args, "content")
				if err != nil {
					return "", err
				}
				entry := memory.Entry{
					Content:  content,
					Category: shuttle.OptionalStringArg(args, "category"),
					Tags:     stringSlice(args["tags"]),
				}
				if err := lt.Save(ctx, entry); err != nil {
					return "", err
				}
				return "Saved to long-term memory.", nil
			},
		},
		{
			name:        "memory_search",
			description: "Search long-term memory by ranked keyword relevance, optionally narrowed by category and tags.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"query":       shuttle.StringProperty("Keywords to search for."),
				"category":    shuttle.StringProperty("Optional category path to narrow results."),
				"max_results": shuttle.IntProperty("Maximum results to return. Defaults to 8."),
			}, []string{"query"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				query, err := shuttle.StringArg(args, "query")
				if err != nil {
					return "", err
				}
				criteria := memory.SearchCriteria{
					Query:    query,
					Category: shuttle.OptionalStringArg(args, "category"),
				}
				if max, ok := args["max_results"].(float64); ok && max > 0 {
					criteria.MaxResults = int(max)
				}
				hits, err := lt.Search(ctx, criteria)
				if err != nil {
					return "", err
				}
				if len(hits) == 0 {
					return "No matching memories.", nil
				}
				data, err := json.MarshalIndent(hits, "", "  ")
				if err != nil {
					return "", err
				}
				return string(data), nil
			},
		},
		{
			name:        "memory_delete",
			description: "Delete a long-term memory entry by its id (as returned by memory_search).",
			schema: shuttle.ObjectSchema("", map[string]any{
				"id": shuttle.StringProperty("The entry id to delete."),
			}, []string{"id"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				id, err := shuttle.StringArg(args, "id")
				if err != nil {
					return "", err
				}
				if err := lt.Delete(ctx, id); err != nil {
					return "", err
				}
				return fmt.Sprintf("Deleted memory %s", id), nil
			},
		},
	}
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
