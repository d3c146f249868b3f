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
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/amplifier-labs/amplifier/pkg/contextmgr"
	"github.com/amplifier-labs/amplifier/pkg/hooks"
	"github.com/amplifier-labs/amplifier/pkg/orchestrator"
)

// ModuleSpec is what a factory receives when the session mounts a module:
// the module id, its activated local path (empty for built-ins), the
// entry's config, and the session's hook registry for modules that emit.
type ModuleSpec struct {
	ID        string
	Path      string
	Config    map[string]interface{}
	SessionID string
	Hooks     *hooks.Registry
}

// Factory constructs one module instance. The returned value must satisfy
// the capability interface of the mount point it is destined for.
type Factory func(ctx context.Context, spec ModuleSpec) (interface{}, error)

// Loader maps module ids to factories. Module code is linked into the
// binary; the loader decides which constructor a mount-plan id names, and
// the activated path in the spec points factories at the module's on-disk
// resources.
type Loader struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{factories: make(map[string]Factory)}
}

// Register binds a module id to a factory, replacing any previous binding.
func (l *Loader) Register(id string, f Factory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.factories[id] = f
}

// Load constructs the module named by the spec.
func (l *Loader) Load(ctx context.Context, spec ModuleSpec) (interface{}, error) {
	l.mu.RLock()
	f, ok := l.factories[spec.ID]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no factory registered for module %q", spec.ID)
	}
	return f(ctx, spec)
}

// Known reports whether a factory is registered for the id.
func (l *Loader) Known(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.factories[id]
	return ok
}

// DefaultLoader returns a loader with the reference modules registered:
// the loop orchestrator and the in-memory context manager.
func DefaultLoader() *Loader {
	l := NewLoader()
	l.Register("loop-basic", func(ctx context.Context, spec ModuleSpec) (interface{}, error) {
		var opts []orchestrator.LoopOption
		if n, ok := configInt(spec.Config, "max_turns"); ok {
			opts = append(opts, orchestrator.WithMaxTurns(n))
		}
		return orchestrator.NewLoop(opts...), nil
	})
	l.Register("context-simple", func(ctx context.Context, spec ModuleSpec) (interface{}, error) {
		opts := []contextmgr.Option{contextmgr.WithHooks(spec.Hooks)}
		if n, ok := configInt(spec.Config, "max_tokens"); ok {
			opts = append(opts, contextmgr.WithMaxTokens(n))
		}
		if n, ok := configInt(spec.Config, "keep_recent"); ok {
			opts = append(opts, contextmgr.WithKeepRecent(n))
		}
		if b, ok := spec.Config["auto_compact"].(bool); ok {
			opts = append(opts, contextmgr.WithAutoCompact(b))
		}
		return contextmgr.New(opts...), nil
	})
	return l
}

// configInt reads a numeric config value, tolerating the number types YAML
// and JSON decoders produce.
func configInt(config map[string]interface{}, key string) (int, bool) {
	switch v := config[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
