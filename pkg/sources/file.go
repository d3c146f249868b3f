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
package sources

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/amplifier-labs/amplifier/pkg/uri"
)

// FileHandler serves local filesystem paths and file:// URIs.
type FileHandler struct{}

// NewFileHandler creates a local path handler.
func NewFileHandler() *FileHandler {
	return &FileHandler{}
}

// CanHandle reports whether the URI is a local path.
func (h *FileHandler) CanHandle(p *uri.Parsed) bool {
	return p.IsLocal()
}

// Resolve canonicalizes the path and verifies it exists.
func (h *FileHandler) Resolve(_ context.Context, p *uri.Parsed) (*Resolved, error) {
	path := p.Path
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &NotFoundError{URI: p.Raw, Cause: err}
	}

	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, &PermissionDeniedError{URI: p.Raw, Cause: err}
		}
		return nil, &NotFoundError{URI: p.Raw, Cause: err}
	}

	active := abs
	if p.Subpath != "" {
		active = filepath.Join(abs, p.Subpath)
		if _, err := os.Stat(active); err != nil {
			return nil, &NotFoundError{URI: p.Raw, Cause: err}
		}
	}
	return &Resolved{ActivePath: active, SourceRoot: abs}, nil
}
