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
	"time"

	"github.com/teradata-labs/rockbot/pkg/memory"
	"github.com/teradata-labs/rockbot/pkg/shuttle"
)

func workingTools(wm memory.WorkingMemory) []toolDef {
	return []toolDef{
		{
			name:        "working_memory_set",
			description: "Store a transient value in working memory under a slash-separated key. Values expire; use long-term memory for durable facts.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"key":         shuttle.StringProperty("Slash-separated key, e.g. session/abc/notes. Writes are confined to your own namespace."),
				"value":       shuttle.StringProperty("The value to store."),
				"ttl_minutes": shuttle.IntProperty("Optional time to live in minutes. Defaults to 30."),
				"category":    shuttle.StringProperty("Optional category label."),
			}, []string{"key", "value"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				key, err := shuttle.StringArg(args, "key")
				if err != nil {
					return "", err
				}
				value, err := shuttle.StringArg(args, "value")
				if err != nil {
					return "", err
				}
				var ttl time.Duration
				if minutes, ok := args["ttl_minutes"].(float64); ok && minutes > 0 {
					ttl = time.Duration(minutes) * time.Minute
				}
				scope, err := writeScope(wm, req)
				if err != nil {
					return "", err
				}
				if err := scope.Set(ctx, key, value, ttl, shuttle.OptionalStringArg(args, "category"), nil); err != nil {
					return "", err
				}
				return fmt.Sprintf("Stored %q (%d chars)", key, len(value)), nil
			},
		},
		{
			name:        "working_memory_get",
			description: "Retrieve a working-memory value by exact key.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"key": shuttle.StringProperty("The exact key to read."),
			}, []string{"key"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				key, err := shuttle.StringArg(args, "key")
				if err != nil {
					return "", err
				}
				entry, ok, err := wm.Get(ctx, key)
				if err != nil {
					return "", err
				}
				if !ok {
					return "", fmt.Errorf("no working-memory entry for key %q", key)
				}
				return entry.Value, nil
			},
		},
		{
			name:        "working_memory_list",
			description: "List working-memory keys under a prefix, oldest first.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"prefix": shuttle.StringProperty("Key prefix to list. Empty lists everything visible."),
			}, nil),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				entries, err := wm.List(ctx, shuttle.OptionalStringArg(args, "prefix"))
				if err != nil {
					return "", err
				}
				return renderWorkingEntries(entries)
			},
		},
		{
			name:        "working_memory_search",
			description: "Search working memory for entries whose key, value, category, or tags contain a query.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"query":  shuttle.StringProperty("Case-insensitive substring to match."),
				"prefix": shuttle.StringProperty("Optional key prefix to narrow the search."),
			}, []string{"query"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				query, err := shuttle.StringArg(args, "query")
				if err != nil {
					return "", err
				}
				entries, err := wm.Search(ctx, query, shuttle.OptionalStringArg(args, "prefix"))
				if err != nil {
					return "", err
				}
				return renderWorkingEntries(entries)
			},
		},
		{
			name:        "working_memory_delete",
			description: "Delete a working-memory entry by exact key.",
			schema: shuttle.ObjectSchema("", map[string]any{
				"key": shuttle.StringProperty("The exact key to delete."),
			}, []string{"key"}),
			fn: func(ctx context.Context, req *shuttle.Request, args map[string]any) (string, error) {
				key, err := shuttle.StringArg(args, "key")
				if err != nil {
					return "", err
				}
				scope, err := writeScope(wm, req)
				if err != nil {
					return "", err
				}
				if err := scope.Delete(ctx, key); err != nil {
					return "", err
				}
				return fmt.Sprintf("Deleted %q", key), nil
			},
		},
	}
}

// writeScope confines a tool call's writes to the calling session's
// namespace. Reads bypass it and stay cross-namespace.
func writeScope(wm memory.WorkingMemory, req *shuttle.Request) (memory.WorkingMemory, error) {
	namespace := memory.SessionNamespace(req.SessionID)
	if namespace == "" {
		return nil, fmt.Errorf("working-memory writes require a session")
	}
	return memory.Scoped(wm, namespace), nil
}

func renderWorkingEntries(entries []memory.WorkingEntry) (string, error) {
	if len(entries) == 0 {
		return "No matching working-memory entries.", nil
	}
	type listed struct {
		Key       string    `json:"key"`
		Category  string    `json:"category,omitempty"`
		StoredAt  time.Time `json:"storedAt"`
		ExpiresAt time.Time `json:"expiresAt"`
		Size      int       `json:"size"`
	}
	out := make([]listed, 0, len(entries))
	for _, entry := range entries {
		out = append(out, listed{
			Key:       entry.Key,
			Category:  entry.Category,
			StoredAt:  entry.StoredAt,
			ExpiresAt: entry.ExpiresAt,
			Size:      len(entry.Value),
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
