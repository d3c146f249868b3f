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
)

// Resolver maps a parsed @ref to a local path. An empty return means the
// ref does not resolve; loaders skip it silently.
type Resolver interface {
	Resolve(ref string) string
}

// BaseResolver resolves @ns:path refs through a namespace table, @~/ refs
// through home expansion, and everything else relative to a base path.
// Paths that do not exist fall back to the same path with a .md suffix.
type BaseResolver struct {
	namespaces map[string]string
	basePath   string
}

// NewBaseResolver creates a resolver over a namespace-to-directory table
// and a base path for plain relative refs.
func NewBaseResolver(namespaces map[string]string, basePath string) *BaseResolver {
	if namespaces == nil {
		namespaces = make(map[string]string)
	}
	return &BaseResolver{namespaces: namespaces, basePath: basePath}
}

// AddNamespace registers or replaces one namespace mapping.
func (r *BaseResolver) AddNamespace(ns, dir string) {
	r.namespaces[ns] = dir
}

// Resolve maps an @ref to an existing local path, or "".
func (r *BaseResolver) Resolve(ref string) string {
	body := strings.TrimPrefix(ref, "@")
	if body == "" {
		return ""
	}

	if ns, rel, ok := splitNamespace(body); ok {
		base, known := r.namespaces[ns]
		if !known {
			return ""
		}
		return withMarkdownFallback(filepath.Join(base, rel))
	}

	if strings.HasPrefix(body, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return withMarkdownFallback(filepath.Join(home, body[2:]))
	}

	if filepath.IsAbs(body) {
		return withMarkdownFallback(filepath.Clean(body))
	}
	if r.basePath == "" {
		return ""
	}
	return withMarkdownFallback(filepath.Join(r.basePath, body))
}

// splitNamespace detects "ns:path" syntax; a leading "./" or "~" is never
// a namespace.
func splitNamespace(body string) (ns, rel string, ok bool) {
	ns, rel, found := strings.Cut(body, ":")
	if !found || ns == "" || strings.ContainsAny(ns, "/\\.~") {
		return "", "", false
	}
	return ns, rel, true
}

// withMarkdownFallback returns path if it exists, path+".md" if that
// exists, otherwise "".
func withMarkdownFallback(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if md := path + ".md"; !strings.HasSuffix(path, ".md") {
		if _, err := os.Stat(md); err == nil {
			return md
		}
	}
	return ""
}
