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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/amplifier-labs/amplifier/pkg/sources"
	"github.com/amplifier-labs/amplifier/pkg/utils"
)

const memoryCacheSize = 64

// Registry maps bundle names to URIs and caches loaded bundles in memory
// and optionally on disk. Local bundle directories can be watched so edits
// invalidate the memory cache.
type Registry struct {
	loader   *Loader
	resolver *sources.Resolver
	logger   *zap.Logger

	mu      sync.Mutex
	names   map[string]string
	mem     *lru.Cache[string, *Bundle]
	diskDir string

	watcher *fsnotify.Watcher
	watched map[string]string
	closed  chan struct{}
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDiskCache persists loaded bundles as JSON under dir, keyed by a safe
// filename derived from the URI.
func WithDiskCache(dir string) RegistryOption {
	return func(r *Registry) { r.diskDir = dir }
}

// WithWatcher invalidates cached bundles when their local backing
// directories change.
func WithWatcher() RegistryOption {
	return func(r *Registry) {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			r.logger.Warn("bundle watcher unavailable", zap.Error(err))
			return
		}
		r.watcher = w
		r.watched = make(map[string]string)
		go r.watchLoop()
	}
}

// NewRegistry creates a registry over the given loader and resolver.
func NewRegistry(loader *Loader, resolver *sources.Resolver, opts ...RegistryOption) *Registry {
	mem, _ := lru.New[string, *Bundle](memoryCacheSize)
	r := &Registry{
		loader:   loader,
		resolver: resolver,
		logger:   zap.L().Named("bundle.registry"),
		names:    make(map[string]string),
		mem:      mem,
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds name to URI mappings. Later registrations win.
func (r *Registry) Register(mappings map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, uri := range mappings {
		r.names[name] = uri
	}
}

// resolveName maps a registered name to its URI; unregistered inputs are
// treated as URIs directly.
func (r *Registry) resolveName(nameOrURI string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if uri, ok := r.names[nameOrURI]; ok {
		return uri
	}
	return nameOrURI
}

// Load returns the bundle for a registered name or a raw URI, serving
// repeated loads from cache.
func (r *Registry) Load(ctx context.Context, nameOrURI string) (*Bundle, error) {
	uri := r.resolveName(nameOrURI)
	key := cacheFileKey(uri)

	if b, ok := r.mem.Get(key); ok {
		return b, nil
	}
	if b := r.readDiskCache(key); b != nil {
		r.mem.Add(key, b)
		return b, nil
	}

	b, err := r.loader.Load(ctx, uri)
	if err != nil {
		return nil, err
	}
	r.mem.Add(key, b)
	r.writeDiskCache(key, b)
	r.watchBundle(key, b)
	return b, nil
}

// Status reports freshness of the bundle's source.
func (r *Registry) Status(ctx context.Context, nameOrURI string) (*sources.Status, error) {
	return r.resolver.Status(ctx, r.resolveName(nameOrURI))
}

// Update re-materializes the bundle's source and reloads it.
func (r *Registry) Update(ctx context.Context, nameOrURI string) (*Bundle, error) {
	uri := r.resolveName(nameOrURI)
	if _, err := r.resolver.Update(ctx, uri); err != nil {
		return nil, err
	}
	r.Invalidate(nameOrURI)
	return r.Load(ctx, nameOrURI)
}

// Invalidate drops the cached bundle for a name or URI.
func (r *Registry) Invalidate(nameOrURI string) {
	uri := r.resolveName(nameOrURI)
	key := cacheFileKey(uri)
	r.mem.Remove(key)
	if r.diskDir != "" {
		_ = os.Remove(r.diskCachePath(key))
	}
	r.resolver.Invalidate(uri)
}

// Close stops the watcher, if one was started.
func (r *Registry) Close() error {
	close(r.closed)
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

// cacheFileKey derives a filesystem-safe cache key from a URI.
func cacheFileKey(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return hex.EncodeToString(sum[:8])
}

func (r *Registry) diskCachePath(key string) string {
	return filepath.Join(r.diskDir, key+".json")
}

func (r *Registry) readDiskCache(key string) *Bundle {
	if r.diskDir == "" {
		return nil
	}
	data, err := os.ReadFile(r.diskCachePath(key))
	if err != nil {
		return nil
	}
	var d map[string]interface{}
	if err := json.Unmarshal(data, &d); err != nil {
		r.logger.Warn("corrupt bundle disk cache", zap.String("key", key), zap.Error(err))
		return nil
	}
	b, err := FromDict(d)
	if err != nil {
		r.logger.Warn("stale bundle disk cache", zap.String("key", key), zap.Error(err))
		return nil
	}
	return b
}

func (r *Registry) writeDiskCache(key string, b *Bundle) {
	if r.diskDir == "" {
		return
	}
	data, err := json.MarshalIndent(b.ToDict(), "", "  ")
	if err != nil {
		r.logger.Warn("failed to serialize bundle", zap.String("bundle", b.Name), zap.Error(err))
		return
	}
	if err := utils.AtomicWrite(r.diskCachePath(key), data, 0o644); err != nil {
		r.logger.Warn("failed to write bundle disk cache", zap.String("key", key), zap.Error(err))
	}
}

// watchBundle registers the bundle's local base path with the watcher.
func (r *Registry) watchBundle(key string, b *Bundle) {
	if r.watcher == nil || b.BasePath == "" {
		return
	}
	r.mu.Lock()
	_, already := r.watched[b.BasePath]
	if !already {
		r.watched[b.BasePath] = key
	}
	r.mu.Unlock()
	if already {
		return
	}
	if err := r.watcher.Add(b.BasePath); err != nil {
		r.logger.Debug("cannot watch bundle dir",
			zap.String("path", b.BasePath),
			zap.Error(err),
		)
	}
}

func (r *Registry) watchLoop() {
	for {
		select {
		case <-r.closed:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			r.invalidateForPath(event.Name)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("bundle watcher error", zap.Error(err))
		}
	}
}

func (r *Registry) invalidateForPath(changed string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for dir, key := range r.watched {
		if changed == dir || strings.HasPrefix(changed, dir+string(os.PathSeparator)) {
			r.mem.Remove(key)
			r.logger.Info("bundle cache invalidated by file change",
				zap.String("dir", dir),
				zap.String("file", filepath.Base(changed)),
			)
		}
	}
}

// Names returns the registered bundle names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	return out
}
