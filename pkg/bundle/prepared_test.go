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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifier-labs/amplifier/pkg/activate"
	"github.com/amplifier-labs/amplifier/pkg/sources"
)

type noopInstaller struct{}

func (noopInstaller) Install(ctx context.Context, dir string) error { return nil }

func newTestActivator(t *testing.T) *activate.Activator {
	t.Helper()
	resolver := sources.NewResolver(t.TempDir())
	store := activate.NewInstallStateStore(filepath.Join(t.TempDir(), "install-state.json"))
	return activate.NewActivator(resolver, noopInstaller{}, store)
}

func TestPrepare_ResolvesSourcesToLocalPaths(t *testing.T) {
	moduleDir := t.TempDir()
	b := &Bundle{
		Name: "app",
		Session: SessionSpec{
			Orchestrator: &ModuleEntry{Module: "loop-basic"},
			Context:      &ModuleEntry{Module: "context-simple"},
		},
		Providers: []ModuleEntry{
			{Module: "provider-anthropic", Source: moduleDir},
		},
		Tools: []ModuleEntry{
			{Module: "tool-local"},
		},
		SourceBasePaths: map[string]string{"app": "/bundles/app"},
	}

	prep, err := b.Prepare(context.Background(), newTestActivator(t))
	require.NoError(t, err)

	// Sourced entries now carry local paths; unsourced entries are untouched.
	assert.Equal(t, moduleDir, prep.Plan.Providers[0].Source)
	assert.Empty(t, prep.Plan.Tools[0].Source)

	// The bundle itself is not mutated by preparation.
	assert.Equal(t, moduleDir, b.Providers[0].Source)
	require.NotNil(t, prep.Mentions)
}

func TestPrepare_CollectsActivationFailures(t *testing.T) {
	b := &Bundle{
		Name: "app",
		Providers: []ModuleEntry{
			{Module: "provider-x", Source: "/no/such/module"},
		},
	}

	_, err := b.Prepare(context.Background(), newTestActivator(t))
	var actErr *activate.ModuleActivationError
	require.ErrorAs(t, err, &actErr)
	assert.Contains(t, err.Error(), "provider-x")
}

func TestPrepare_InstallsBundlePackage(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "pyproject.toml"), []byte("[project]\nname = \"app\"\n"), 0o644))

	b := &Bundle{Name: "app", BasePath: root}
	prep, err := b.Prepare(context.Background(), newTestActivator(t))
	require.NoError(t, err)
	assert.Equal(t, []string{root}, prep.PackagePaths)
}
