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
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/amplifier-labs/amplifier/pkg/uri"
)

// HTTPHandler downloads plain http(s) sources into the cache, once per URL.
type HTTPHandler struct {
	cacheDir string
	client   *http.Client
}

// NewHTTPHandler creates an HTTP source handler rooted at cacheDir.
func NewHTTPHandler(cacheDir string) *HTTPHandler {
	return &HTTPHandler{
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// CanHandle reports whether the URI is a plain http(s) URL.
func (h *HTTPHandler) CanHandle(p *uri.Parsed) bool {
	return p.IsHTTP()
}

// Resolve downloads the URL into cache/<hash>/content once and serves the
// cached copy afterwards.
func (h *HTTPHandler) Resolve(ctx context.Context, p *uri.Parsed) (*Resolved, error) {
	root := filepath.Join(h.cacheDir, CacheKey(p), "content")
	name := path.Base(p.Path)
	if name == "/" || name == "." || name == "" {
		name = "index"
	}
	target := filepath.Join(root, name)

	if _, err := os.Stat(target); err != nil {
		if err := h.download(ctx, p, root, target); err != nil {
			return nil, err
		}
	}

	active := target
	if p.Subpath != "" {
		active = filepath.Join(root, p.Subpath)
	}
	return &Resolved{ActivePath: active, SourceRoot: root}, nil
}

func (h *HTTPHandler) download(ctx context.Context, p *uri.Parsed, root, target string) error {
	url := p.RemoteURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &NetworkError{URI: p.Raw, Cause: err}
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return &NetworkError{URI: p.Raw, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{URI: p.Raw}
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		return &PermissionDeniedError{URI: p.Raw}
	case resp.StatusCode != http.StatusOK:
		return &NetworkError{URI: p.Raw, Cause: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir %s: %w", root, err)
	}
	tmp, err := os.CreateTemp(root, ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create download temp: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return &NetworkError{URI: p.Raw, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close download temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to place download: %w", err)
	}

	return WriteCacheMetadata(root, &CacheMetadata{
		URL:      url,
		CachedAt: time.Now().UTC(),
	})
}
