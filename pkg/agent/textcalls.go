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
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/teradata-labs/rockbot/pkg/llm"
)

// ParseTextToolCalls recovers tool invocations that a model emitted as
// plain text instead of structured calls. Two formats are recognized:
//
//	tool_call_name: <name>
//	tool_call_arguments: {...}
//
// and a bare known tool name on its own line, optionally followed by a
// JSON argument block. Markdown fences are stripped and multi-line JSON
// is reassembled by brace-depth balancing. The text preceding the first
// call is returned as pretext so it can be preserved as the assistant's
// message.
func ParseTextToolCalls(content string, isKnownTool func(string) bool) (pretext string, calls []llm.ToolCall) {
	lines := strings.Split(stripFences(content), "\n")
	var pre []string
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])

		if name, ok := strings.CutPrefix(line, "tool_call_name:"); ok {
			name = strings.TrimSpace(name)
			args, next := collectArguments(lines, i+1)
			calls = append(calls, llm.ToolCall{
				ID:        uuid.NewString(),
				Name:      name,
				Arguments: args,
			})
			i = next
			continue
		}

		if isKnownTool != nil && isKnownTool(line) {
			args, next := collectJSONBlock(lines, i+1)
			calls = append(calls, llm.ToolCall{
				ID:        uuid.NewString(),
				Name:      line,
				Arguments: args,
			})
			i = next
			continue
		}

		if len(calls) == 0 {
			pre = append(pre, lines[i])
		}
		i++
	}
	return strings.TrimSpace(strings.Join(pre, "\n")), calls
}

// collectArguments reads a tool_call_arguments line starting at idx,
// reassembling multi-line JSON until braces balance.
func collectArguments(lines []string, idx int) (string, int) {
	for idx < len(lines) {
		line := strings.TrimSpace(lines[idx])
		if line == "" {
			idx++
			continue
		}
		if rest, ok := strings.CutPrefix(line, "tool_call_arguments:"); ok {
			return balanceJSON(strings.TrimSpace(rest), lines, idx+1)
		}
		break
	}
	return "{}", idx
}

// collectJSONBlock reads an optional JSON object following a bare tool
// name.
func collectJSONBlock(lines []string, idx int) (string, int) {
	for idx < len(lines) {
		line := strings.TrimSpace(lines[idx])
		if line == "" {
			idx++
			continue
		}
		if strings.HasPrefix(line, "{") {
			return balanceJSON(line, lines, idx+1)
		}
		break
	}
	return "{}", idx
}

// balanceJSON appends lines until brace depth returns to zero, then
// validates the result. Unbalanced or invalid JSON degrades to an empty
// argument object so the tool still runs and can report the problem.
func balanceJSON(first string, lines []string, idx int) (string, int) {
	var sb strings.Builder
	sb.WriteString(first)
	depth := braceDelta(first)
	for depth > 0 && idx < len(lines) {
		sb.WriteString("\n")
		sb.WriteString(lines[idx])
		depth += braceDelta(lines[idx])
		idx++
	}
	raw := strings.TrimSpace(sb.String())
	if depth != 0 || !json.Valid([]byte(raw)) {
		return "{}", idx
	}
	return raw, idx
}

// braceDelta counts brace depth change outside JSON strings.
func braceDelta(line string) int {
	depth := 0
	inString := false
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inString:
			escaped = true
		case r == '"':
			inString = !inString
		case !inString && r == '{':
			depth++
		case !inString && r == '}':
			depth--
		}
	}
	return depth
}

// stripFences removes markdown code fences, keeping their content.
func stripFences(content string) string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
