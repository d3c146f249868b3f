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

// Package activate materializes module sources and runs their dependency
// install step exactly once per fingerprint. Activation makes a module's
// root available on the activator's search path so loaders can locate its
// code.
package activate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/amplifier-labs/amplifier/pkg/sources"
)

// ModuleActivationError reports a failed activation. Non-retryable; a
// failed module prevents session initialization.
type ModuleActivationError struct {
	ModuleID  string
	SourceURI string
	Cause     error
}

func (e *ModuleActivationError) Error() string {
	return fmt.Sprintf("failed to activate module %q from %s: %v", e.ModuleID, e.SourceURI, e.Cause)
}

func (e *ModuleActivationError) Unwrap() error { return e.Cause }

// Entry names one module to activate.
type Entry struct {
	ModuleID  string
	SourceURI string
}

// Activator resolves module sources, installs their dependencies when the
// fingerprint changed, and tracks the resulting search paths.
type Activator struct {
	resolver  *sources.Resolver
	installer DependencyInstaller
	store     *InstallStateStore
	logger    *zap.Logger

	mu          sync.Mutex
	searchPaths []string
	bundlePaths []string
	searchSeen  map[string]bool
	bundleSeen  map[string]bool
}

// NewActivator creates an activator over the given resolver and install
// state store.
func NewActivator(resolver *sources.Resolver, installer DependencyInstaller, store *InstallStateStore) *Activator {
	return &Activator{
		resolver:   resolver,
		installer:  installer,
		store:      store,
		logger:     zap.L().Named("activate"),
		searchSeen: make(map[string]bool),
		bundleSeen: make(map[string]bool),
	}
}

// Activate resolves a module source, runs the dependency install step when
// the recorded fingerprint does not match, and registers the module root on
// the search path. Returns the local module path.
func (a *Activator) Activate(ctx context.Context, moduleID, sourceURI string) (string, error) {
	resolved, err := a.resolver.Resolve(ctx, sourceURI)
	if err != nil {
		return "", &ModuleActivationError{ModuleID: moduleID, SourceURI: sourceURI, Cause: err}
	}
	localPath := resolved.ActivePath

	fingerprint, err := ModuleFingerprint(localPath)
	if err != nil {
		return "", &ModuleActivationError{ModuleID: moduleID, SourceURI: sourceURI, Cause: err}
	}

	recorded, err := a.store.Fingerprint(localPath)
	if err != nil {
		return "", &ModuleActivationError{ModuleID: moduleID, SourceURI: sourceURI, Cause: err}
	}

	if recorded != fingerprint {
		a.logger.Info("installing module dependencies",
			zap.String("module", moduleID),
			zap.String("path", localPath),
		)
		if err := a.installer.Install(ctx, localPath); err != nil {
			return "", &ModuleActivationError{ModuleID: moduleID, SourceURI: sourceURI, Cause: err}
		}
		if err := a.store.Record(localPath, fingerprint); err != nil {
			return "", &ModuleActivationError{ModuleID: moduleID, SourceURI: sourceURI, Cause: err}
		}
	} else {
		a.logger.Debug("module install up to date",
			zap.String("module", moduleID),
			zap.String("path", localPath),
		)
	}

	a.addSearchPath(localPath)
	return localPath, nil
}

// ActivateAll activates entries in parallel, collecting per-module errors
// without short-circuiting the batch. Returns the local path per module id
// and a map of failures; a module appears in exactly one of the two.
func (a *Activator) ActivateAll(ctx context.Context, entries []Entry) (map[string]string, map[string]error) {
	paths := make(map[string]string, len(entries))
	failures := make(map[string]error)
	var mu sync.Mutex

	var g errgroup.Group
	for _, entry := range entries {
		g.Go(func() error {
			path, err := a.Activate(ctx, entry.ModuleID, entry.SourceURI)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[entry.ModuleID] = err
			} else {
				paths[entry.ModuleID] = path
			}
			return nil
		})
	}
	_ = g.Wait()
	return paths, failures
}

// InstallBundlePackage installs a bundle's own package manifest before its
// child modules activate, and records the bundle's source directory so
// spawned sub-sessions inherit it.
func (a *Activator) InstallBundlePackage(ctx context.Context, bundleRoot string) error {
	if FindManifest(bundleRoot) == "" {
		return nil
	}

	fingerprint, err := ModuleFingerprint(bundleRoot)
	if err != nil {
		return fmt.Errorf("failed to fingerprint bundle package %s: %w", bundleRoot, err)
	}
	recorded, err := a.store.Fingerprint(bundleRoot)
	if err != nil {
		return err
	}
	if recorded != fingerprint {
		if err := a.installer.Install(ctx, bundleRoot); err != nil {
			return fmt.Errorf("failed to install bundle package %s: %w", bundleRoot, err)
		}
		if err := a.store.Record(bundleRoot, fingerprint); err != nil {
			return err
		}
	}

	pkgPath := bundleRoot
	if src := filepath.Join(bundleRoot, "src"); isDir(src) {
		pkgPath = src
	}
	a.addBundlePath(pkgPath)
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (a *Activator) addSearchPath(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.searchSeen[path] {
		a.searchSeen[path] = true
		a.searchPaths = append(a.searchPaths, path)
	}
}

func (a *Activator) addBundlePath(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.bundleSeen[path] {
		a.bundleSeen[path] = true
		a.bundlePaths = append(a.bundlePaths, path)
	}
}

// SearchPaths returns the activated module roots in activation order.
func (a *Activator) SearchPaths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.searchPaths))
	copy(out, a.searchPaths)
	return out
}

// BundlePackagePaths returns the bundle package directories recorded by
// InstallBundlePackage, in registration order.
func (a *Activator) BundlePackagePaths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.bundlePaths))
	copy(out, a.bundlePaths)
	return out
}

// SummarizeFailures renders an ActivateAll failure map as one combined
// message, module ids sorted for stable output.
func SummarizeFailures(failures map[string]error) string {
	if len(failures) == 0 {
		return ""
	}
	ids := make([]string, 0, len(failures))
	for id := range failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "%d module(s) failed to activate:", len(failures))
	for _, id := range ids {
		fmt.Fprintf(&b, "\n  %s: %v", id, failures[id])
	}
	return b.String()
}
