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
	"os"
	"path/filepath"
	"testing"

	"github.com/amplifier-labs/amplifier/pkg/uri"
)

type countingHandler struct {
	scheme string
	calls  int
	result *Resolved
}

func (h *countingHandler) CanHandle(p *uri.Parsed) bool { return p.Scheme == h.scheme }

func (h *countingHandler) Resolve(ctx context.Context, p *uri.Parsed) (*Resolved, error) {
	h.calls++
	return h.result, nil
}

func TestResolver_DispatchAndCache(t *testing.T) {
	r := NewEmptyResolver()
	h := &countingHandler{scheme: "package", result: &Resolved{ActivePath: "/tmp/x", SourceRoot: "/tmp/x"}}
	r.Register(h)

	ctx := context.Background()
	first, err := r.Resolve(ctx, "foundation")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := r.Resolve(ctx, "foundation")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if h.calls != 1 {
		t.Errorf("Expected handler called once, got %d", h.calls)
	}
	if first != second {
		t.Error("Cached resolution should be returned")
	}
}

func TestResolver_NoHandler(t *testing.T) {
	r := NewEmptyResolver()
	_, err := r.Resolve(context.Background(), "foundation")
	if err == nil {
		t.Fatal("Expected error for unhandled scheme")
	}
}

func TestResolver_Invalidate(t *testing.T) {
	r := NewEmptyResolver()
	h := &countingHandler{scheme: "package", result: &Resolved{ActivePath: "/tmp/x", SourceRoot: "/tmp/x"}}
	r.Register(h)

	ctx := context.Background()
	if _, err := r.Resolve(ctx, "foundation"); err != nil {
		t.Fatal(err)
	}
	r.Invalidate("foundation")
	if _, err := r.Resolve(ctx, "foundation"); err != nil {
		t.Fatal(err)
	}
	if h.calls != 2 {
		t.Errorf("Expected re-resolution after invalidate, got %d calls", h.calls)
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	p1, _ := uri.Parse("git+https://github.com/org/repo@main#subdirectory=sub")
	p2, _ := uri.Parse("git+https://github.com/org/repo@main#subdirectory=sub")
	if CacheKey(p1) != CacheKey(p2) {
		t.Error("Cache key must be deterministic")
	}

	p3, _ := uri.Parse("git+https://github.com/org/repo@other")
	if CacheKey(p1) == CacheKey(p3) {
		t.Error("Different refs must produce different keys")
	}
}

func TestFileHandler(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "bundles", "core")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	h := NewFileHandler()
	ctx := context.Background()

	p, _ := uri.Parse(dir)
	res, err := h.Resolve(ctx, p)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.SourceRoot != dir || res.ActivePath != dir {
		t.Errorf("Unexpected resolution: %+v", res)
	}

	// Subpath selects a directory inside the root.
	p2 := &uri.Parsed{Scheme: uri.SchemeFile, Path: dir, Subpath: "bundles/core", Raw: dir + "#subdirectory=bundles/core"}
	res, err = h.Resolve(ctx, p2)
	if err != nil {
		t.Fatalf("Resolve with subpath failed: %v", err)
	}
	if res.ActivePath != sub {
		t.Errorf("ActivePath = %q, want %q", res.ActivePath, sub)
	}
	if res.SourceRoot != dir {
		t.Errorf("SourceRoot = %q, want %q", res.SourceRoot, dir)
	}
}

func TestFileHandler_NotFound(t *testing.T) {
	h := NewFileHandler()
	p, _ := uri.Parse("/definitely/not/here")
	_, err := h.Resolve(context.Background(), p)

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
}

func TestCacheMetadata_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	meta := &CacheMetadata{URL: "https://example.com/repo", Ref: "main", SHA: "abc", IsMutable: true}

	if err := WriteCacheMetadata(dir, meta); err != nil {
		t.Fatalf("WriteCacheMetadata failed: %v", err)
	}
	got, err := ReadCacheMetadata(dir)
	if err != nil {
		t.Fatalf("ReadCacheMetadata failed: %v", err)
	}
	if got.URL != meta.URL || got.Ref != meta.Ref || got.SHA != meta.SHA || got.IsMutable != meta.IsMutable {
		t.Errorf("Round trip mismatch: %+v", got)
	}
}
