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
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/amplifier-labs/amplifier/pkg/uri"
)

// ZipHandler extracts zip+ sources into the cache, once per URL.
type ZipHandler struct {
	cacheDir string
	client   *http.Client
	logger   *zap.Logger
}

// NewZipHandler creates a zip source handler rooted at cacheDir.
func NewZipHandler(cacheDir string) *ZipHandler {
	return &ZipHandler{
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: 5 * time.Minute},
		logger:   zap.L().Named("sources.zip"),
	}
}

// CanHandle reports whether the URI uses a zip+ scheme.
func (h *ZipHandler) CanHandle(p *uri.Parsed) bool {
	return p.IsZip()
}

// Resolve extracts the archive into cache/<hash>/extracted once and serves
// the cached tree afterwards.
func (h *ZipHandler) Resolve(ctx context.Context, p *uri.Parsed) (*Resolved, error) {
	entry := filepath.Join(h.cacheDir, CacheKey(p))
	root := filepath.Join(entry, "extracted")

	if _, err := os.Stat(root); err != nil {
		archive, cleanup, err := h.fetchArchive(ctx, p)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		if err := h.extract(p, archive, root); err != nil {
			return nil, err
		}
		if err := WriteCacheMetadata(entry, &CacheMetadata{URL: p.Raw, CachedAt: time.Now().UTC()}); err != nil {
			return nil, err
		}
	}

	sourceRoot := stripSingleTopDir(root)
	active := sourceRoot
	if p.Subpath != "" {
		active = filepath.Join(sourceRoot, p.Subpath)
		if _, err := os.Stat(active); err != nil {
			return nil, &NotFoundError{URI: p.Raw, Cause: fmt.Errorf("subdirectory %q not in archive: %w", p.Subpath, err)}
		}
	}
	return &Resolved{ActivePath: active, SourceRoot: sourceRoot}, nil
}

// fetchArchive returns a local path for the archive, downloading when the
// scheme is zip+http(s).
func (h *ZipHandler) fetchArchive(ctx context.Context, p *uri.Parsed) (string, func(), error) {
	noop := func() {}
	if p.Scheme == "zip+file" {
		if _, err := os.Stat(p.Path); err != nil {
			return "", noop, &NotFoundError{URI: p.Raw, Cause: err}
		}
		return p.Path, noop, nil
	}

	url := p.RemoteURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", noop, &NetworkError{URI: p.Raw, Cause: err}
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", noop, &NetworkError{URI: p.Raw, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", noop, &NotFoundError{URI: p.Raw}
	case resp.StatusCode != http.StatusOK:
		return "", noop, &NetworkError{URI: p.Raw, Cause: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	tmp, err := os.CreateTemp("", "amplifier-zip-*")
	if err != nil {
		return "", noop, fmt.Errorf("failed to create archive temp: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", noop, &NetworkError{URI: p.Raw, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to close archive temp: %w", err)
	}
	return tmp.Name(), cleanup, nil
}

// extract unpacks the archive into root, rejecting path traversal.
func (h *ZipHandler) extract(p *uri.Parsed, archive, root string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return &InvalidArchiveError{URI: p.Raw, Cause: err}
	}
	defer func() { _ = reader.Close() }()

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create extract dir: %w", err)
	}

	for _, f := range reader.File {
		target := filepath.Join(root, filepath.Clean(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(root)+string(os.PathSeparator)) {
			return &InvalidArchiveError{URI: p.Raw, Cause: fmt.Errorf("entry %q escapes archive root", f.Name)}
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create dir %s: %w", target, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create dir for %s: %w", target, err)
		}
		src, err := f.Open()
		if err != nil {
			return &InvalidArchiveError{URI: p.Raw, Cause: err}
		}
		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm()|0o200)
		if err != nil {
			_ = src.Close()
			return fmt.Errorf("failed to create %s: %w", target, err)
		}
		_, err = io.Copy(dst, src)
		_ = src.Close()
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return &InvalidArchiveError{URI: p.Raw, Cause: err}
		}
	}

	h.logger.Debug("archive extracted",
		zap.String("uri", p.Raw),
		zap.String("root", root),
	)
	return nil
}

// stripSingleTopDir descends into the single top-level directory that
// GitHub-style archives wrap their contents in.
func stripSingleTopDir(root string) string {
	entries, err := os.ReadDir(root)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return root
	}
	return filepath.Join(root, entries[0].Name())
}
