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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentSections(t *testing.T) {
	doc := ParseDocument("intro text\n\n## Tone\nBe warm.\n\n## Limits\nNo medical advice.\n")

	assert.Equal(t, []string{"", "Tone", "Limits"}, doc.Order)
	assert.Equal(t, "intro text", doc.Sections[""])
	assert.Equal(t, "Be warm.", doc.Sections["Tone"])
	assert.Equal(t, "No medical advice.", doc.Sections["Limits"])
}

func TestParseDocumentNoHeadings(t *testing.T) {
	doc := ParseDocument("just a body")
	assert.Equal(t, []string{""}, doc.Order)
	assert.Equal(t, "just a body", doc.Sections[""])
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SoulFile), []byte("I am Rocky."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DirectivesFile), []byte("Always confirm."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, StyleFile), []byte("Short replies."), 0o644))

	profile, err := LoadProfile(dir)
	require.NoError(t, err)
	require.NotNil(t, profile.Style)
	assert.Nil(t, profile.MemoryRules)

	prompt := profile.SystemPrompt()
	assert.Contains(t, prompt, "I am Rocky.")
	assert.Contains(t, prompt, "Always confirm.")
	assert.Contains(t, prompt, "Short replies.")
}

func TestLoadProfileRequiresSoulAndDirectives(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadProfile(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "soul")

	require.NoError(t, os.WriteFile(filepath.Join(dir, SoulFile), []byte("soul"), 0o644))
	_, err = LoadProfile(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directives")
}
