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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// manifestNames are the dependency manifests recognized in a module root,
// in probe order.
var manifestNames = []string{"go.mod", "requirements.txt", "pyproject.toml", "package.json"}

// FindManifest returns the path of the first dependency manifest present in
// dir, or "" when the module carries no manifest.
func FindManifest(dir string) string {
	for _, name := range manifestNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// ModuleFingerprint hashes a module's dependency manifest together with the
// toolchain identity. Same fingerprint means the install step can be
// skipped. Modules without a manifest fingerprint to the toolchain alone.
func ModuleFingerprint(dir string) (string, error) {
	h := sha256.New()
	identity, mtime := toolchainIdentity()
	fmt.Fprintf(h, "%s:%d\n", identity, mtime)

	if manifest := FindManifest(dir); manifest != "" {
		data, err := os.ReadFile(manifest)
		if err != nil {
			return "", fmt.Errorf("failed to read manifest %s: %w", manifest, err)
		}
		fmt.Fprintf(h, "%s\n", filepath.Base(manifest))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DependencyInstaller runs the dependency install step for a resolved
// module directory. The reference implementation shells out to a package
// manager; tests substitute a mock.
type DependencyInstaller interface {
	Install(ctx context.Context, dir string) error
}

// ExecInstaller shells out to the package manager matching the module's
// manifest. Modules without a manifest need no install and succeed
// immediately.
type ExecInstaller struct{}

// installCommand maps a manifest basename to the command that installs it.
func installCommand(manifest string) []string {
	switch filepath.Base(manifest) {
	case "go.mod":
		return []string{"go", "mod", "download"}
	case "requirements.txt":
		return []string{"pip", "install", "-r", "requirements.txt"}
	case "pyproject.toml":
		return []string{"pip", "install", "-e", "."}
	case "package.json":
		return []string{"npm", "install"}
	}
	return nil
}

// Install runs the package manager for the module's manifest in dir.
func (ExecInstaller) Install(ctx context.Context, dir string) error {
	manifest := FindManifest(dir)
	if manifest == "" {
		return nil
	}
	argv := installCommand(manifest)
	if argv == nil {
		return nil
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("install command %v failed: %w\n%s", argv, err, out)
	}
	return nil
}
