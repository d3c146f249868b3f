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
package activate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifier-labs/amplifier/pkg/sources"
)

type mockInstaller struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (m *mockInstaller) Install(ctx context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, dir)
	if m.fail != nil {
		if err, ok := m.fail[dir]; ok {
			return err
		}
	}
	return nil
}

func (m *mockInstaller) installCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func newTestActivator(t *testing.T, installer DependencyInstaller) *Activator {
	t.Helper()
	resolver := sources.NewResolver(t.TempDir())
	store := NewInstallStateStore(filepath.Join(t.TempDir(), "install-state.json"))
	return NewActivator(resolver, installer, store)
}

func moduleDir(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	if manifest != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte(manifest), 0o644))
	}
	return dir
}

func TestActivator_InstallOncePerFingerprint(t *testing.T) {
	installer := &mockInstaller{}
	a := newTestActivator(t, installer)
	dir := moduleDir(t, "requests==2.0\n")
	ctx := context.Background()

	path, err := a.Activate(ctx, "tool-web", dir)
	require.NoError(t, err)
	assert.Equal(t, dir, path)
	assert.Equal(t, 1, installer.installCount())

	// Unchanged manifest: the recorded fingerprint matches, no reinstall.
	_, err = a.Activate(ctx, "tool-web", dir)
	require.NoError(t, err)
	assert.Equal(t, 1, installer.installCount())

	// Manifest edit invalidates the fingerprint.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("requests==3.0\n"), 0o644))
	_, err = a.Activate(ctx, "tool-web", dir)
	require.NoError(t, err)
	assert.Equal(t, 2, installer.installCount())
}

func TestActivator_SearchPathRegistered(t *testing.T) {
	a := newTestActivator(t, &mockInstaller{})
	dir := moduleDir(t, "")

	_, err := a.Activate(context.Background(), "loop-basic", dir)
	require.NoError(t, err)
	assert.Contains(t, a.SearchPaths(), dir)

	// Repeat activation does not duplicate the entry.
	_, err = a.Activate(context.Background(), "loop-basic", dir)
	require.NoError(t, err)
	assert.Len(t, a.SearchPaths(), 1)
}

func TestActivator_ResolutionFailure(t *testing.T) {
	a := newTestActivator(t, &mockInstaller{})

	_, err := a.Activate(context.Background(), "tool-x", "/definitely/not/here")
	var actErr *ModuleActivationError
	require.ErrorAs(t, err, &actErr)
	assert.Equal(t, "tool-x", actErr.ModuleID)

	var nf *sources.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestActivateAll_CollectsPerModuleErrors(t *testing.T) {
	okDir := moduleDir(t, "")
	failDir := moduleDir(t, "broken\n")
	installer := &mockInstaller{fail: map[string]error{failDir: errors.New("pip exploded")}}
	a := newTestActivator(t, installer)

	paths, failures := a.ActivateAll(context.Background(), []Entry{
		{ModuleID: "good", SourceURI: okDir},
		{ModuleID: "bad", SourceURI: failDir},
		{ModuleID: "missing", SourceURI: "/no/such/module"},
	})

	assert.Equal(t, map[string]string{"good": okDir}, paths)
	require.Len(t, failures, 2)
	assert.Contains(t, failures, "bad")
	assert.Contains(t, failures, "missing")

	summary := SummarizeFailures(failures)
	assert.Contains(t, summary, "2 module(s) failed to activate")
	assert.Contains(t, summary, "pip exploded")
}

func TestInstallBundlePackage(t *testing.T) {
	installer := &mockInstaller{}
	a := newTestActivator(t, installer)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "pyproject.toml"), []byte("[project]\nname = \"b\"\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))

	require.NoError(t, a.InstallBundlePackage(context.Background(), root))
	assert.Equal(t, 1, installer.installCount())
	assert.Equal(t, []string{filepath.Join(root, "src")}, a.BundlePackagePaths())

	// No manifest: nothing to install, nothing recorded.
	empty := t.TempDir()
	require.NoError(t, a.InstallBundlePackage(context.Background(), empty))
	assert.Equal(t, 1, installer.installCount())
	assert.Len(t, a.BundlePackagePaths(), 1)
}

func TestInstallState_ToolchainRoundTrip(t *testing.T) {
	store := NewInstallStateStore(filepath.Join(t.TempDir(), "install-state.json"))

	require.NoError(t, store.Record("/mod/a", "fp-1"))
	fp, err := store.Fingerprint("/mod/a")
	require.NoError(t, err)
	assert.Equal(t, "fp-1", fp)

	// Unknown modules read back empty.
	fp, err = store.Fingerprint("/mod/unknown")
	require.NoError(t, err)
	assert.Empty(t, fp)
}

func TestInstallState_ToolchainMismatchInvalidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "install-state.json")
	store := NewInstallStateStore(path)
	require.NoError(t, store.Record("/mod/a", "fp-1"))

	// Rewrite the file with a different toolchain identity.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := []byte(`{"version":1,"toolchain":"go0.0-elsewhere","toolchain_mtime":1,"modules":{"/mod/a":{"fingerprint":"fp-1"}}}`)
	require.NotEqual(t, string(tampered), string(data))
	require.NoError(t, os.WriteFile(path, tampered, 0o644))

	fp, err := store.Fingerprint("/mod/a")
	require.NoError(t, err)
	assert.Empty(t, fp, "toolchain change must invalidate all entries")
}

func TestModuleFingerprint_TracksManifest(t *testing.T) {
	dir := moduleDir(t, "a==1\n")
	fp1, err := ModuleFingerprint(dir)
	require.NoError(t, err)

	fp2, err := ModuleFingerprint(dir)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2, "fingerprint must be deterministic")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("a==2\n"), 0o644))
	fp3, err := ModuleFingerprint(dir)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp3, "manifest change must change the fingerprint")
}
