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

// Package mentions extracts @file references from text and loads their
// contents for context injection.
package mentions

import (
	"regexp"
	"strings"
)

// mentionPattern matches @path, @./path, @~/path, @.dir/file, @ns:path.
var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_~.][A-Za-z0-9_~./:-]*)`)

// inlineCodePattern matches `code` spans whose backticks are not adjacent
// to other backticks.
var inlineCodePattern = regexp.MustCompile("`[^`\n]+`")

// ParseMentions extracts @refs from text, ignoring anything inside triple
// backtick fences that start at a line start and inside inline backticks.
// Results are deduplicated and order preserving; the leading @ is kept.
func ParseMentions(text string) []string {
	stripped := stripCodeFences(text)
	stripped = inlineCodePattern.ReplaceAllString(stripped, "")

	var out []string
	seen := make(map[string]bool)
	for _, match := range mentionPattern.FindAllStringSubmatch(stripped, -1) {
		ref := "@" + strings.TrimRight(match[1], ".,:;")
		if ref == "@" || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

// stripCodeFences removes fenced code blocks delimited by ``` at the start
// of a line. An unterminated fence swallows the rest of the text.
func stripCodeFences(text string) string {
	var b strings.Builder
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
