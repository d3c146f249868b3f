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
package mentions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMentions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain forms",
			text: "see @docs/guide.md and @./local.md plus @~/home.md and @ns:shared/x.md",
			want: []string{"@docs/guide.md", "@./local.md", "@~/home.md", "@ns:shared/x.md"},
		},
		{
			name: "dedup preserves order",
			text: "@a.md then @b.md then @a.md again",
			want: []string{"@a.md", "@b.md"},
		},
		{
			name: "code fence ignored",
			text: "before @real.md\n```\n@fenced.md\n```\nafter",
			want: []string{"@real.md"},
		},
		{
			name: "inline code ignored",
			text: "use `@inline.md` but load @outside.md",
			want: []string{"@outside.md"},
		},
		{
			name: "trailing punctuation trimmed",
			text: "read @notes.md.",
			want: []string{"@notes.md"},
		},
		{
			name: "no mentions",
			text: "an email like user@ is not a mention",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMentions(tt.text))
		})
	}
}

func TestBaseResolver(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "guide.md"), []byte("guide"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "notes.md"), []byte("notes"), 0o644))

	nsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(nsDir, "shared.md"), []byte("shared"), 0o644))

	r := NewBaseResolver(map[string]string{"foundation": nsDir}, base)

	assert.Equal(t, filepath.Join(base, "guide.md"), r.Resolve("@guide.md"))
	// Markdown fallback: @notes resolves to notes.md.
	assert.Equal(t, filepath.Join(base, "notes.md"), r.Resolve("@notes"))
	// Namespace table.
	assert.Equal(t, filepath.Join(nsDir, "shared.md"), r.Resolve("@foundation:shared.md"))
	// Unknown namespace and missing file resolve to nothing.
	assert.Empty(t, r.Resolve("@unknown:x.md"))
	assert.Empty(t, r.Resolve("@missing.md"))
}

func TestLoadMentions_DedupAndFormat(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "a.md"), []byte("same content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "b.md"), []byte("same content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "c.md"), []byte("other"), 0o644))

	r := NewBaseResolver(nil, base)
	loaded := LoadMentions("@a.md @b.md @c.md", r, 0)

	require.Len(t, loaded.Results, 3)

	block := loaded.FormatContextBlock()
	// Identical contents collapse into one block with both attributions.
	assert.Equal(t, 2, strings.Count(block, "<context_file"))
	assert.Contains(t, block, "@a.md → "+filepath.Join(base, "a.md"))
	assert.Contains(t, block, "@b.md → "+filepath.Join(base, "b.md"))
	assert.Contains(t, block, "same content")
	assert.Contains(t, block, "other")
}

func TestLoadMentions_RecursionBounded(t *testing.T) {
	base := t.TempDir()
	// a mentions b, b mentions c, c mentions a (cycle).
	require.NoError(t, os.WriteFile(filepath.Join(base, "a.md"), []byte("a sees @b.md"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "b.md"), []byte("b sees @c.md"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "c.md"), []byte("c sees @a.md"), 0o644))

	r := NewBaseResolver(nil, base)
	loaded := LoadMentions("@a.md", r, 3)

	refs := make([]string, 0, len(loaded.Results))
	for _, res := range loaded.Results {
		refs = append(refs, res.Ref)
	}
	assert.Equal(t, []string{"@a.md", "@b.md", "@c.md"}, refs)
}

func TestLoadMentions_DirectoryListing(t *testing.T) {
	base := t.TempDir()
	sub := filepath.Join(base, "docs")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "z.md"), []byte("z"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.md"), []byte("a"), 0o644))

	r := NewBaseResolver(nil, base)
	loaded := LoadMentions("@docs", r, 1)

	require.Len(t, loaded.Results, 1)
	assert.True(t, loaded.Results[0].IsDir)
	listing := loaded.Results[0].Content
	// Directories first, then files sorted.
	assert.Regexp(t, `(?s)DIR  deep/.*FILE a\.md.*FILE z\.md`, listing)
}

func TestLoadMentions_MissingSkipped(t *testing.T) {
	r := NewBaseResolver(nil, t.TempDir())
	loaded := LoadMentions("@nope.md @also/missing.md", r, 2)
	assert.Empty(t, loaded.Results)
	assert.Empty(t, loaded.FormatContextBlock())
}
