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

// Package session owns the lifecycle of one agent session: mounting the
// modules of a prepared mount plan onto a coordinator, running prompts
// through the orchestrator, and tearing everything down exactly once.
package session

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amplifier-labs/amplifier/pkg/bundle"
	"github.com/amplifier-labs/amplifier/pkg/coordinator"
	"github.com/amplifier-labs/amplifier/pkg/hooks"
	"github.com/amplifier-labs/amplifier/pkg/mentions"
	"github.com/amplifier-labs/amplifier/pkg/orchestrator"
	"github.com/amplifier-labs/amplifier/pkg/tools"
	"github.com/amplifier-labs/amplifier/pkg/types"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusCreated      Status = "created"
	StatusInitialized  Status = "initialized"
	StatusExecuting    Status = "executing"
	StatusIdle         Status = "idle"
	StatusShuttingDown Status = "shutting_down"
	StatusClosed       Status = "closed"
)

// defaultProviderPriority orders providers whose entries carry no explicit
// priority after every explicitly prioritized one.
const defaultProviderPriority = 100

// HookModule is implemented by mounted hook modules; Attach registers the
// module's handlers on the session's registry.
type HookModule interface {
	Attach(reg *hooks.Registry) error
}

// CleanupModule is implemented by modules that hold resources. The session
// registers Cleanup on the coordinator's teardown stack.
type CleanupModule interface {
	Cleanup(ctx context.Context) error
}

// Session drives one conversation. It is single-consumer: callers must not
// run two Execute calls concurrently.
type Session struct {
	id           string
	plan         *bundle.MountPlan
	loader       *Loader
	coord        *coordinator.Coordinator
	tools        *tools.Registry
	mentions     *mentions.BaseResolver
	packagePaths []string
	logger       *zap.Logger

	status Status
	orch   orchestrator.Orchestrator
}

// Option configures a Session at construction.
type Option func(*Session)

// WithSessionID pins the session id instead of generating one. Used when
// spawning sub-sessions with lineage-bearing ids.
func WithSessionID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithLoader supplies the module loader. Defaults to DefaultLoader.
func WithLoader(l *Loader) Option {
	return func(s *Session) { s.loader = l }
}

// WithPackagePaths records the bundle package paths children inherit.
func WithPackagePaths(paths []string) Option {
	return func(s *Session) { s.packagePaths = append([]string(nil), paths...) }
}

// WithMentions attaches the bundle's mention resolver.
func WithMentions(r *mentions.BaseResolver) Option {
	return func(s *Session) { s.mentions = r }
}

// New creates a session over a prepared mount plan. The constructor
// validates the plan's singleton slots, assigns the session id, and emits
// session:start; mounting happens in Initialize.
func New(plan *bundle.MountPlan, opts ...Option) (*Session, error) {
	if plan == nil {
		return nil, fmt.Errorf("session requires a mount plan")
	}
	if !entrySet(plan.Session.Orchestrator) {
		return nil, fmt.Errorf("mount plan names no orchestrator module")
	}
	if !entrySet(plan.Session.Context) {
		return nil, fmt.Errorf("mount plan names no context module")
	}

	s := &Session{
		plan:   plan,
		status: StatusCreated,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.loader == nil {
		s.loader = DefaultLoader()
	}
	s.coord = coordinator.New(s.id)
	s.tools = tools.NewRegistry()
	s.logger = zap.L().Named("session").With(zap.String("session_id", s.id))

	s.coord.Hooks().SetDefaultFields(map[string]interface{}{"session_id": s.id})
	s.emit(context.Background(), hooks.EventSessionStart, map[string]interface{}{
		"status": string(StatusCreated),
	})
	return s, nil
}

// NewFromPrepared creates a session from a prepared bundle, carrying over
// its mention resolver and bundle package paths.
func NewFromPrepared(p *bundle.PreparedBundle, opts ...Option) (*Session, error) {
	opts = append([]Option{
		WithMentions(p.Mentions),
		WithPackagePaths(p.PackagePaths),
	}, opts...)
	return New(p.Plan, opts...)
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Status returns the current lifecycle state.
func (s *Session) Status() Status { return s.status }

// Coordinator exposes the session's coordinator.
func (s *Session) Coordinator() *coordinator.Coordinator { return s.coord }

// Hooks exposes the session's hook registry.
func (s *Session) Hooks() *hooks.Registry { return s.coord.Hooks() }

// Mentions returns the bundle's mention resolver, or nil.
func (s *Session) Mentions() *mentions.BaseResolver { return s.mentions }

// PackagePaths returns the bundle package paths sub-sessions inherit.
func (s *Session) PackagePaths() []string {
	return append([]string(nil), s.packagePaths...)
}

// Initialize mounts every module the plan names. Provider, tool, and hook
// failures are collected into one combined error after every entry has been
// attempted; a missing orchestrator or context module fails immediately.
func (s *Session) Initialize(ctx context.Context) error {
	if s.status != StatusCreated {
		return fmt.Errorf("session is %s, not created", s.status)
	}

	orch, err := s.loadModule(ctx, s.plan.Session.Orchestrator)
	if err != nil {
		return fmt.Errorf("mounting orchestrator: %w", err)
	}
	driver, ok := orch.(orchestrator.Orchestrator)
	if !ok {
		return fmt.Errorf("module %q does not implement Orchestrator", s.plan.Session.Orchestrator.Module)
	}
	if err := s.coord.Mount(coordinator.MountOrchestrator, driver); err != nil {
		return err
	}
	s.orch = driver
	s.registerCleanup(orch)

	ctxInst, err := s.loadModule(ctx, s.plan.Session.Context)
	if err != nil {
		return fmt.Errorf("mounting context: %w", err)
	}
	if err := s.coord.Mount(coordinator.MountContext, ctxInst); err != nil {
		return err
	}
	s.registerCleanup(ctxInst)

	var failures []string
	fail := func(kind, id string, err error) {
		failures = append(failures, fmt.Sprintf("%s/%s: %v", kind, id, err))
	}

	for _, entry := range providersByPriority(s.plan.Providers) {
		inst, err := s.loadModule(ctx, &entry)
		if err != nil {
			fail("providers", entry.Module, err)
			continue
		}
		p, ok := inst.(types.Provider)
		if !ok {
			fail("providers", entry.Module, fmt.Errorf("does not implement Provider"))
			continue
		}
		if err := s.coord.MountProvider(entry.Module, p); err != nil {
			fail("providers", entry.Module, err)
			continue
		}
		s.registerCleanup(inst)
	}

	for i := range s.plan.Tools {
		entry := s.plan.Tools[i]
		inst, err := s.loadModule(ctx, &entry)
		if err != nil {
			fail("tools", entry.Module, err)
			continue
		}
		t, ok := inst.(types.Tool)
		if !ok {
			fail("tools", entry.Module, fmt.Errorf("does not implement Tool"))
			continue
		}
		if err := s.coord.MountTool(entry.Module, t); err != nil {
			fail("tools", entry.Module, err)
			continue
		}
		s.tools.Register(t)
		s.registerCleanup(inst)
	}

	for i := range s.plan.Hooks {
		entry := s.plan.Hooks[i]
		inst, err := s.loadModule(ctx, &entry)
		if err != nil {
			fail("hooks", entry.Module, err)
			continue
		}
		hm, ok := inst.(HookModule)
		if !ok {
			fail("hooks", entry.Module, fmt.Errorf("does not implement HookModule"))
			continue
		}
		if err := hm.Attach(s.coord.Hooks()); err != nil {
			fail("hooks", entry.Module, err)
			continue
		}
		s.registerCleanup(inst)
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d module(s) failed to mount:\n%s",
			len(failures), strings.Join(failures, "\n"))
	}

	if err := s.seedContext(ctx); err != nil {
		return err
	}

	s.transition(ctx, StatusInitialized)
	return nil
}

// Execute runs one prompt through the orchestrator and returns the final
// assistant text. Sequential calls share the session's context.
func (s *Session) Execute(ctx context.Context, prompt string) (string, error) {
	switch s.status {
	case StatusInitialized, StatusIdle:
	default:
		return "", fmt.Errorf("session is %s, cannot execute", s.status)
	}

	s.transition(ctx, StatusExecuting)
	defer s.transition(ctx, StatusIdle)

	env := &orchestrator.Environment{
		Context:     s.coord.ContextManager(),
		Providers:   s.coord.Providers(),
		Tools:       s.tools,
		Hooks:       s.coord.Hooks(),
		Coordinator: s.coord,
	}
	return s.orch.Execute(ctx, prompt, env)
}

// Cleanup tears the session down: coordinator cleanups run in reverse
// order, session:end is emitted, and the session transitions to closed.
// Safe to call more than once.
func (s *Session) Cleanup(ctx context.Context) error {
	if s.status == StatusClosed {
		return nil
	}
	s.transition(ctx, StatusShuttingDown)

	err := s.coord.Cleanup(ctx)

	s.emit(ctx, hooks.EventSessionEnd, map[string]interface{}{
		"status": string(StatusClosed),
	})
	s.status = StatusClosed
	return err
}

func (s *Session) loadModule(ctx context.Context, entry *bundle.ModuleEntry) (interface{}, error) {
	id := entry.Module
	if id == "" {
		id = entry.Source
	}
	return s.loader.Load(ctx, ModuleSpec{
		ID:        id,
		Path:      entry.Source,
		Config:    entry.Config,
		SessionID: s.id,
		Hooks:     s.coord.Hooks(),
	})
}

func (s *Session) registerCleanup(inst interface{}) {
	if cm, ok := inst.(CleanupModule); ok {
		s.coord.RegisterCleanup(cm.Cleanup)
	}
}

// seedContext installs the bundle instruction and composed context files as
// leading system messages.
func (s *Session) seedContext(ctx context.Context) error {
	mgr := s.coord.ContextManager()

	if s.plan.Instruction != "" {
		if err := mgr.AddMessage(ctx, types.Message{
			Role:      types.RoleSystem,
			Content:   s.plan.Instruction,
			Timestamp: time.Now(),
		}); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(s.plan.ContextPaths))
	for name := range s.plan.ContextPaths {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := s.plan.ContextPaths[name]
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("context file unreadable",
				zap.String("name", name),
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		content := fmt.Sprintf("<context_file paths=%q>\n%s\n</context_file>",
			name+" → "+path, strings.TrimRight(string(data), "\n"))
		if err := mgr.AddMessage(ctx, types.Message{
			Role:      types.RoleSystem,
			Content:   content,
			Timestamp: time.Now(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) transition(ctx context.Context, to Status) {
	from := s.status
	s.status = to
	s.emit(ctx, hooks.EventSessionStatus, map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	})
}

func (s *Session) emit(ctx context.Context, event string, data map[string]interface{}) {
	if _, err := s.coord.Hooks().Emit(ctx, event, data); err != nil {
		s.logger.Warn("session event emission interrupted",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

func entrySet(e *bundle.ModuleEntry) bool {
	return e != nil && (e.Module != "" || e.Source != "")
}

// providersByPriority orders provider entries by config priority, lower
// first, ties broken by plan order. The orchestrator picks the first.
func providersByPriority(entries []bundle.ModuleEntry) []bundle.ModuleEntry {
	out := append([]bundle.ModuleEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return entryPriority(out[i]) < entryPriority(out[j])
	})
	return out
}

func entryPriority(e bundle.ModuleEntry) int {
	if n, ok := configInt(e.Config, "priority"); ok {
		return n
	}
	return defaultProviderPriority
}
