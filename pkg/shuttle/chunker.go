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
package shuttle

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/rockbot/pkg/memory"
)

// Chunking defaults.
const (
	// DefaultChunkingThreshold is the largest result returned inline.
	DefaultChunkingThreshold = 16000

	// MaxChunkSize caps each stored chunk.
	MaxChunkSize = 20000

	// ChunkTTL is how long stored chunks stay retrievable.
	ChunkTTL = 20 * time.Minute
)

var (
	toolNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
	headingPattern    = regexp.MustCompile(`^#{1,6} `)
)

// ChunkingExecutor decorates an executor so oversized results are split
// into working memory and replaced with an index table. Exempt tools
// (the working-memory read operations themselves) pass through, or the
// chunker would recurse on its own retrievals.
type ChunkingExecutor struct {
	inner     Executor
	working   memory.WorkingMemory
	threshold int
	exempt    map[string]struct{}
	logger    *zap.Logger
}

// NewChunkingExecutor wraps inner with result chunking. A zero
// threshold uses the default; exempt lists tool names that never chunk.
func NewChunkingExecutor(inner Executor, working memory.WorkingMemory, threshold int, exempt []string, logger *zap.Logger) *ChunkingExecutor {
	if threshold <= 0 {
		threshold = DefaultChunkingThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	exemptSet := make(map[string]struct{}, len(exempt))
	for _, name := range exempt {
		exemptSet[name] = struct{}{}
	}
	return &ChunkingExecutor{
		inner:     inner,
		working:   working,
		threshold: threshold,
		exempt:    exemptSet,
		logger:    logger,
	}
}

// Execute runs the inner executor and post-processes oversized results.
func (c *ChunkingExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.inner.Execute(ctx, req)
	if err != nil || resp == nil {
		return resp, err
	}
	if len(resp.Content) <= c.threshold {
		return resp, nil
	}
	if _, exempt := c.exempt[req.ToolName]; exempt {
		return resp, nil
	}
	if req.SessionID == "" || c.working == nil {
		resp.Content = truncate(resp.Content, c.threshold)
		return resp, nil
	}

	chunks := splitChunks(resp.Content, MaxChunkSize)
	runID := uuid.NewString()[:8]
	tool := toolNameSanitizer.ReplaceAllString(req.ToolName, "_")

	var table strings.Builder
	fmt.Fprintf(&table, "The %s result is %d characters, too large to return inline. ", req.ToolName, len(resp.Content))
	table.WriteString("It was stored in working memory as the chunks below. ")
	table.WriteString("Retrieve individual chunks with the working_memory_get tool.\n\n")
	table.WriteString("| Section | Working-memory key |\n|---|---|\n")

	for i, chunk := range chunks {
		key := fmt.Sprintf("tool:%s:%s:chunk%d", tool, runID, i)
		if err := c.working.Set(ctx, key, chunk.text, ChunkTTL, "tool-result", []string{req.ToolName}); err != nil {
			c.logger.Warn("Failed to store result chunk, truncating instead",
				zap.String("tool", req.ToolName),
				zap.Error(err))
			resp.Content = truncate(resp.Content, c.threshold)
			return resp, nil
		}
		fmt.Fprintf(&table, "| %s | %s |\n", chunk.heading, key)
	}

	c.logger.Debug("Chunked oversized tool result",
		zap.String("tool", req.ToolName),
		zap.Int("size", len(resp.Content)),
		zap.Int("chunks", len(chunks)))

	resp.Content = table.String()
	return resp, nil
}

type chunk struct {
	heading string
	text    string
}

// splitChunks splits text into chunks of at most maxLen, preferring
// markdown heading boundaries, then blank lines, then a hard split.
func splitChunks(text string, maxLen int) []chunk {
	sections := splitAtHeadings(text)

	var chunks []chunk
	for _, section := range sections {
		if len(section.text) <= maxLen {
			chunks = append(chunks, section)
			continue
		}
		for i, part := range splitAtBlankLines(section.text, maxLen) {
			heading := section.heading
			if i > 0 {
				heading = fmt.Sprintf("%s (cont. %d)", section.heading, i+1)
			}
			chunks = append(chunks, chunk{heading: heading, text: part})
		}
	}
	return chunks
}

func splitAtHeadings(text string) []chunk {
	lines := strings.Split(text, "\n")
	var sections []chunk
	current := chunk{heading: "(start)"}
	var body strings.Builder

	flush := func() {
		if body.Len() > 0 {
			current.text = body.String()
			sections = append(sections, current)
			body.Reset()
		}
	}

	for _, line := range lines {
		if headingPattern.MatchString(line) {
			flush()
			current = chunk{heading: strings.TrimSpace(strings.TrimLeft(line, "# "))}
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	if len(sections) == 0 {
		sections = append(sections, chunk{heading: "(start)", text: text})
	}
	return sections
}

// splitAtBlankLines packs paragraphs up to maxLen, hard-splitting any
// single paragraph that alone exceeds it.
func splitAtBlankLines(text string, maxLen int) []string {
	paragraphs := strings.Split(text, "\n\n")
	var parts []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			parts = append(parts, buf.String())
			buf.Reset()
		}
	}

	for _, para := range paragraphs {
		if len(para) > maxLen {
			flush()
			for len(para) > maxLen {
				parts = append(parts, para[:maxLen])
				para = para[maxLen:]
			}
			if para != "" {
				parts = append(parts, para)
			}
			continue
		}
		if buf.Len()+len(para)+2 > maxLen {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	flush()
	return parts
}

func truncate(text string, maxLen int) string {
	marker := fmt.Sprintf("\n\n[%d chars omitted: no session available to store the full result]", len(text)-maxLen)
	keep := maxLen - len(marker)
	if keep < 0 {
		keep = 0
	}
	return text[:keep] + marker
}

var _ Executor = (*ChunkingExecutor)(nil)
