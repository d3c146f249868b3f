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

// Package sources materializes module and bundle source URIs into local
// directories. A registry of per-scheme handlers resolves parsed URIs; the
// first handler whose CanHandle matches wins. Results are cached by a
// deterministic key derived from the URI, and each key serializes its own
// resolution.
package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amplifier-labs/amplifier/pkg/uri"
)

// Resolved is a materialized source: SourceRoot is the full extract/clone
// directory; ActivePath equals SourceRoot joined with the subpath when one
// was given.
type Resolved struct {
	ActivePath string
	SourceRoot string
}

// Status reports freshness of a cached mutable source.
type Status struct {
	// UpToDate is true when the cached SHA matches the remote head, or
	// when the source is immutable.
	UpToDate bool

	CachedSHA string
	RemoteSHA string

	// CachedAt is when the source was materialized.
	CachedAt time.Time
}

// Handler resolves one family of source URIs. Handlers must be idempotent:
// resolving the same URI twice returns the same local paths.
type Handler interface {
	// CanHandle reports whether this handler serves the parsed URI.
	CanHandle(p *uri.Parsed) bool

	// Resolve materializes the source locally.
	Resolve(ctx context.Context, p *uri.Parsed) (*Resolved, error)
}

// Updatable is implemented by handlers whose sources can go stale.
type Updatable interface {
	// Status compares the cached copy against the remote.
	Status(ctx context.Context, p *uri.Parsed) (*Status, error)

	// Update discards the cached copy and re-materializes.
	Update(ctx context.Context, p *uri.Parsed) (*Resolved, error)
}

// CacheKey returns the deterministic cache key for a parsed URI: for git,
// a hash of host+path+ref+subpath; for zip/http, a hash of the URL; for
// local files, a hash of the canonicalized path.
func CacheKey(p *uri.Parsed) string {
	var material string
	switch {
	case p.IsGit():
		material = fmt.Sprintf("git:%s%s@%s#%s", p.Host, p.Path, p.Ref, p.Subpath)
	case p.IsZip(), p.IsHTTP():
		material = fmt.Sprintf("url:%s", p.Raw)
	default:
		abs, err := filepath.Abs(p.Path)
		if err != nil {
			abs = p.Path
		}
		material = fmt.Sprintf("file:%s", filepath.Clean(abs))
	}
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:8])
}

// Resolver dispatches parsed URIs to registered handlers with caching.
type Resolver struct {
	mu       sync.Mutex
	handlers []Handler
	cache    map[string]*Resolved
	keyLocks map[string]*sync.Mutex
	logger   *zap.Logger
}

// NewResolver creates a resolver with the default handler set (file, git,
// zip, http) rooted at cacheDir.
func NewResolver(cacheDir string) *Resolver {
	r := NewEmptyResolver()
	r.Register(NewFileHandler())
	r.Register(NewGitHandler(cacheDir))
	r.Register(NewZipHandler(cacheDir))
	r.Register(NewHTTPHandler(cacheDir))
	return r
}

// NewEmptyResolver creates a resolver with no handlers registered.
func NewEmptyResolver() *Resolver {
	return &Resolver{
		cache:    make(map[string]*Resolved),
		keyLocks: make(map[string]*sync.Mutex),
		logger:   zap.L().Named("sources"),
	}
}

// Register appends a handler. Handlers are consulted in registration order.
func (r *Resolver) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

func (r *Resolver) handlerFor(p *uri.Parsed) (Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.handlers {
		if h.CanHandle(p) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("no source handler for scheme %q (uri %s)", p.Scheme, p.Raw)
}

func (r *Resolver) lockFor(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		r.keyLocks[key] = l
	}
	return l
}

// Resolve parses and materializes a raw URI.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Resolved, error) {
	p, err := uri.Parse(raw)
	if err != nil {
		return nil, err
	}
	return r.ResolveParsed(ctx, p)
}

// ResolveParsed materializes an already-parsed URI, serving repeated
// resolutions from the in-memory cache.
func (r *Resolver) ResolveParsed(ctx context.Context, p *uri.Parsed) (*Resolved, error) {
	key := CacheKey(p)

	// Serialize cache access per key; independent sources fan out freely.
	lock := r.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	h, err := r.handlerFor(p)
	if err != nil {
		return nil, err
	}

	resolved, err := h.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("source resolved",
		zap.String("uri", p.Raw),
		zap.String("active_path", resolved.ActivePath),
	)

	r.mu.Lock()
	r.cache[key] = resolved
	r.mu.Unlock()
	return resolved, nil
}

// Status reports freshness for a raw URI. Sources whose handler is not
// Updatable are always up to date.
func (r *Resolver) Status(ctx context.Context, raw string) (*Status, error) {
	p, err := uri.Parse(raw)
	if err != nil {
		return nil, err
	}
	h, err := r.handlerFor(p)
	if err != nil {
		return nil, err
	}
	if u, ok := h.(Updatable); ok {
		return u.Status(ctx, p)
	}
	return &Status{UpToDate: true}, nil
}

// Update re-materializes a raw URI and refreshes the cache entry.
func (r *Resolver) Update(ctx context.Context, raw string) (*Resolved, error) {
	p, err := uri.Parse(raw)
	if err != nil {
		return nil, err
	}
	h, err := r.handlerFor(p)
	if err != nil {
		return nil, err
	}
	u, ok := h.(Updatable)
	if !ok {
		return r.ResolveParsed(ctx, p)
	}

	key := CacheKey(p)
	lock := r.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	resolved, err := u.Update(ctx, p)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[key] = resolved
	r.mu.Unlock()
	return resolved, nil
}

// Invalidate drops the in-memory cache entry for a raw URI.
func (r *Resolver) Invalidate(raw string) {
	p, err := uri.Parse(raw)
	if err != nil {
		return
	}
	r.mu.Lock()
	delete(r.cache, CacheKey(p))
	r.mu.Unlock()
}
