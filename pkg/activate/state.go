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
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/gofrs/flock"

	"github.com/amplifier-labs/amplifier/pkg/utils"
)

// installStateVersion invalidates all entries on format changes.
const installStateVersion = 1

// InstallState is the on-disk record of completed module installs, keyed by
// module path. A change in toolchain identity or a missing toolchain mtime
// marks the whole environment stale.
type InstallState struct {
	Version        int                    `json:"version"`
	Toolchain      string                 `json:"toolchain"`
	ToolchainMtime int64                  `json:"toolchain_mtime"`
	Modules        map[string]ModuleState `json:"modules"`
}

// ModuleState records one installed module.
type ModuleState struct {
	Fingerprint string `json:"fingerprint"`
}

// InstallStateStore persists InstallState atomically, guarded by a file lock
// so concurrent processes do not clobber each other's records.
type InstallStateStore struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

// NewInstallStateStore creates a store backed by the given file path.
func NewInstallStateStore(path string) *InstallStateStore {
	return &InstallStateStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// toolchainIdentity fingerprints the running toolchain: the Go runtime
// version plus the executable path. The executable mtime is returned
// separately so a missing stat can invalidate the state.
func toolchainIdentity() (string, int64) {
	exe, err := os.Executable()
	if err != nil {
		return runtime.Version(), 0
	}
	identity := runtime.Version() + ":" + exe
	info, err := os.Stat(exe)
	if err != nil {
		return identity, 0
	}
	return identity, info.ModTime().Unix()
}

// Load reads the install state from disk. A missing file, a version bump, a
// toolchain change, or a missing toolchain mtime all yield a fresh empty
// state, discarding prior entries.
func (s *InstallStateStore) Load() (*InstallState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock install state: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()
	return s.loadLocked()
}

func (s *InstallStateStore) loadLocked() (*InstallState, error) {
	identity, mtime := toolchainIdentity()
	fresh := &InstallState{
		Version:        installStateVersion,
		Toolchain:      identity,
		ToolchainMtime: mtime,
		Modules:        make(map[string]ModuleState),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fresh, nil
		}
		return nil, fmt.Errorf("failed to read install state: %w", err)
	}

	var state InstallState
	if err := json.Unmarshal(data, &state); err != nil {
		return fresh, nil
	}
	if state.Version != installStateVersion ||
		state.Toolchain != identity ||
		state.ToolchainMtime == 0 ||
		state.ToolchainMtime != mtime {
		return fresh, nil
	}
	if state.Modules == nil {
		state.Modules = make(map[string]ModuleState)
	}
	return &state, nil
}

// Fingerprint returns the recorded fingerprint for a module path, or ""
// when the module has no valid install record.
func (s *InstallStateStore) Fingerprint(modulePath string) (string, error) {
	state, err := s.Load()
	if err != nil {
		return "", err
	}
	return state.Modules[modulePath].Fingerprint, nil
}

// Record persists a module's fingerprint, read-modify-writing the state
// under the file lock.
func (s *InstallStateStore) Record(modulePath, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock install state: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	state, err := s.loadLocked()
	if err != nil {
		return err
	}
	state.Modules[modulePath] = ModuleState{Fingerprint: fingerprint}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal install state: %w", err)
	}
	return utils.AtomicWrite(s.path, data, 0o644)
}
