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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DefaultMaxDepth bounds recursion into mentions found inside mentioned
// file contents.
const DefaultMaxDepth = 3

// Result is one successfully loaded mention.
type Result struct {
	Ref     string
	Path    string
	Content string
	IsDir   bool
}

// Loaded holds the results of a LoadMentions walk plus the deduplicated
// content set used for context block formatting.
type Loaded struct {
	Results []Result

	order  []string
	byHash map[string]*contentEntry
}

type contentEntry struct {
	content      string
	attributions []string
}

// LoadMentions parses text for @refs, resolves and reads each one, and
// recurses into mentions found inside loaded file contents. Identical
// contents reached by different refs deduplicate by SHA-256; missing or
// unresolvable refs are skipped silently. maxDepth ≤ 0 means
// DefaultMaxDepth.
func LoadMentions(text string, resolver Resolver, maxDepth int) *Loaded {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	l := &Loaded{byHash: make(map[string]*contentEntry)}
	l.walk(text, resolver, maxDepth, make(map[string]bool))
	return l
}

func (l *Loaded) walk(text string, resolver Resolver, depth int, visited map[string]bool) {
	if depth == 0 {
		return
	}
	for _, ref := range ParseMentions(text) {
		path := resolver.Resolve(ref)
		if path == "" || visited[path] {
			continue
		}
		visited[path] = true

		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		if info.IsDir() {
			listing, err := directoryListing(path)
			if err != nil {
				continue
			}
			l.record(ref, path, listing, true)
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content := string(data)
		if l.record(ref, path, content, false) {
			// New content may itself mention files.
			l.walk(content, resolver, depth-1, visited)
		}
	}
}

// record adds a result and attributes the ref to its content entry.
// Returns true when the content was not seen before.
func (l *Loaded) record(ref, path, content string, isDir bool) bool {
	l.Results = append(l.Results, Result{Ref: ref, Path: path, Content: content, IsDir: isDir})

	sum := sha256.Sum256([]byte(content))
	hash := hex.EncodeToString(sum[:])
	attribution := fmt.Sprintf("%s → %s", ref, path)

	if entry, ok := l.byHash[hash]; ok {
		entry.attributions = append(entry.attributions, attribution)
		return false
	}
	l.byHash[hash] = &contentEntry{content: content, attributions: []string{attribution}}
	l.order = append(l.order, hash)
	return true
}

// FormatContextBlock renders the deduplicated contents as context_file
// blocks with multi-path attribution.
func (l *Loaded) FormatContextBlock() string {
	if len(l.order) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(l.order))
	for _, hash := range l.order {
		entry := l.byHash[hash]
		blocks = append(blocks, fmt.Sprintf("<context_file paths=%q>\n%s\n</context_file>",
			strings.Join(entry.attributions, ", "), strings.TrimRight(entry.content, "\n")))
	}
	return strings.Join(blocks, "\n\n")
}

// directoryListing renders a directory's entries, directories first, each
// group sorted by name.
func directoryListing(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Directory: %s\n", dir)
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(&b, "DIR  %s/\n", entry.Name())
		} else {
			fmt.Fprintf(&b, "FILE %s\n", entry.Name())
		}
	}
	return b.String(), nil
}
