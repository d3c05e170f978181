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
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Profile document file names on the agent data volume.
const (
	SoulFile        = "soul.md"
	DirectivesFile  = "directives.md"
	StyleFile       = "style.md"
	MemoryRulesFile = "memory-rules.md"
)

// Document is a parsed markdown profile document split into sections by
// level-2 headings. Text before the first heading lands in the ""
// section.
type Document struct {
	Raw      string
	Sections map[string]string
	Order    []string
}

// AgentProfile is the agent's identity corpus, loaded once at startup
// and immutable thereafter.
type AgentProfile struct {
	Soul        Document
	Directives  Document
	Style       *Document
	MemoryRules *Document
}

// LoadProfile reads the profile documents from the data volume. Soul and
// directives are required; style and memory rules are optional.
func LoadProfile(dataDir string) (*AgentProfile, error) {
	soul, err := loadDocument(filepath.Join(dataDir, SoulFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load soul: %w", err)
	}
	directives, err := loadDocument(filepath.Join(dataDir, DirectivesFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load directives: %w", err)
	}

	profile := &AgentProfile{Soul: soul, Directives: directives}
	if doc, err := loadDocument(filepath.Join(dataDir, StyleFile)); err == nil {
		profile.Style = &doc
	}
	if doc, err := loadDocument(filepath.Join(dataDir, MemoryRulesFile)); err == nil {
		profile.MemoryRules = &doc
	}
	return profile, nil
}

// SystemPrompt composes the profile into the base system prompt.
func (p *AgentProfile) SystemPrompt() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(p.Soul.Raw))
	sb.WriteString("\n\n")
	sb.WriteString(strings.TrimSpace(p.Directives.Raw))
	if p.Style != nil {
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(p.Style.Raw))
	}
	return sb.String()
}

func loadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return ParseDocument(string(data)), nil
}

// ParseDocument splits markdown into sections keyed by "## " headings.
func ParseDocument(raw string) Document {
	doc := Document{Raw: raw, Sections: make(map[string]string)}
	current := ""
	var body strings.Builder

	flush := func() {
		text := strings.TrimSpace(body.String())
		if text != "" || current != "" {
			doc.Sections[current] = text
			doc.Order = append(doc.Order, current)
		}
		body.Reset()
	}

	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			current = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return doc
}
