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
package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/amplifier-labs/amplifier/pkg/sources"
)

// Manifest filenames probed in a bundle root, in order.
var manifestFiles = []string{"bundle.md", "bundle.yaml", "bundle.yml"}

// Loader materializes bundle URIs, parses their manifests, and composes
// their include graphs.
type Loader struct {
	resolver *sources.Resolver
	strict   bool
	logger   *zap.Logger
}

// NewLoader creates a loader over the given source resolver.
func NewLoader(resolver *sources.Resolver) *Loader {
	return &Loader{
		resolver: resolver,
		logger:   zap.L().Named("bundle.loader"),
	}
}

// SetStrict makes unresolved context refs fail loading instead of warning.
func (l *Loader) SetStrict(strict bool) { l.strict = strict }

// Load resolves a bundle URI, parses its manifest, recursively loads its
// includes, and returns the composed bundle.
func (l *Loader) Load(ctx context.Context, rawURI string) (*Bundle, error) {
	b, err := l.load(ctx, rawURI, nil)
	if err != nil {
		return nil, err
	}
	if err := b.ResolvePendingContext(l.strict); err != nil {
		return nil, err
	}
	return b, nil
}

func (l *Loader) load(ctx context.Context, rawURI string, chain []string) (*Bundle, error) {
	for _, seen := range chain {
		if seen == rawURI {
			return nil, &DependencyError{
				URI:   rawURI,
				Chain: append(append([]string(nil), chain...), rawURI),
				Cause: errors.New("circular include"),
			}
		}
	}

	resolved, err := l.resolver.Resolve(ctx, rawURI)
	if err != nil {
		var nf *sources.NotFoundError
		if errors.As(err, &nf) {
			return nil, &NotFoundError{URI: rawURI, Cause: err}
		}
		return nil, &LoadError{URI: rawURI, Cause: err}
	}

	b, err := LoadDir(resolved.ActivePath)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			return nil, err
		}
		return nil, &LoadError{URI: rawURI, Cause: err}
	}
	b.SourceURI = rawURI

	if len(b.Includes) == 0 {
		return b, nil
	}

	// Includes compose in order as bases; this bundle overlays last.
	childChain := append(append([]string(nil), chain...), rawURI)
	var layers []*Bundle
	for _, include := range b.Includes {
		child, err := l.load(ctx, include, childChain)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				return nil, &DependencyError{URI: rawURI, Chain: childChain, Cause: err}
			}
			return nil, err
		}
		layers = append(layers, child)
	}

	composed := Compose(layers[0], append(layers[1:], b)...)
	composed.Includes = nil
	return composed, nil
}

// LoadDir parses the bundle manifest found in dir. When bundle.md is used
// its YAML frontmatter carries the manifest and the markdown body becomes
// the instruction.
func LoadDir(dir string) (*Bundle, error) {
	for _, name := range manifestFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return parseManifest(dir, name, data)
	}
	return nil, fmt.Errorf("no bundle manifest (bundle.md or bundle.yaml) in %s", dir)
}

func parseManifest(dir, name string, data []byte) (*Bundle, error) {
	yamlDoc := data
	instruction := ""
	if strings.HasSuffix(name, ".md") {
		front, body, err := splitFrontmatter(data)
		if err != nil {
			return nil, err
		}
		yamlDoc = front
		instruction = strings.TrimSpace(body)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(yamlDoc, &raw); err != nil {
		return nil, fmt.Errorf("invalid manifest YAML: %w", err)
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	b, err := FromDict(raw)
	if err != nil {
		return nil, err
	}
	if instruction != "" {
		b.Instruction = instruction
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	b.BasePath = abs
	b.SourceBasePaths = map[string]string{b.Name: abs}

	if err := applyContextIncludes(b, raw, abs); err != nil {
		return nil, err
	}
	return b, nil
}

// applyContextIncludes resolves each literal context ref against the bundle
// root immediately and defers "ns:path" refs into PendingContext.
// Duplicate refs deduplicate by resolved path.
func applyContextIncludes(b *Bundle, raw map[string]interface{}, root string) error {
	section, ok := raw["context"].(map[string]interface{})
	if !ok {
		return nil
	}
	include, ok := section["include"].([]interface{})
	if !ok {
		return nil
	}

	seenPaths := make(map[string]bool)
	for _, item := range include {
		ref, ok := item.(string)
		if !ok {
			return &ValidationError{Field: "context.include", Value: item}
		}
		if isNamespaceRef(ref) {
			b.PendingContext = unionStrings(b.PendingContext, []string{ref})
			continue
		}
		resolved := joinContextPath(root, ref)
		if seenPaths[resolved] {
			continue
		}
		seenPaths[resolved] = true
		if b.Context == nil {
			b.Context = make(map[string]string)
		}
		b.Context[ref] = resolved
	}
	return nil
}

// splitFrontmatter separates a bundle.md document into its YAML
// frontmatter and markdown body. The frontmatter is delimited by "---"
// lines; a document without frontmatter is all body.
func splitFrontmatter(data []byte) (front []byte, body string, err error) {
	text := string(data)
	if !strings.HasPrefix(text, "---\n") && text != "---" {
		return nil, text, nil
	}
	rest := strings.TrimPrefix(text, "---\n")
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return nil, "", errors.New("unterminated YAML frontmatter")
	}
	front = []byte(rest[:idx])
	body = rest[idx+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")
	return front, body, nil
}

// isNamespaceRef reports whether a context ref uses "ns:path" syntax.
func isNamespaceRef(ref string) bool {
	ns, _, ok := strings.Cut(ref, ":")
	return ok && ns != "" && !strings.ContainsAny(ns, "/\\.")
}

func joinContextPath(base, rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(base, rel)
}
