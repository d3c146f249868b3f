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

// Package coordinator holds a session's mount points, cleanup stack,
// contributor channels, and cancellation token. Mount points are populated
// during initialization and read-only afterwards.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/amplifier-labs/amplifier/pkg/hooks"
	"github.com/amplifier-labs/amplifier/pkg/types"
)

// Singleton mount point names.
const (
	MountOrchestrator = "orchestrator"
	MountContext      = "context"
)

type contributor struct {
	name     string
	callback func(ctx context.Context) (interface{}, error)
}

// Coordinator owns the per-session module wiring.
type Coordinator struct {
	sessionID string
	hooks     *hooks.Registry
	logger    *zap.Logger
	cancel    *CancellationToken

	mu           sync.Mutex
	orchestrator interface{}
	contextMgr   types.ContextManager
	providers    map[string]types.Provider
	providerIDs  []string
	tools        map[string]types.Tool
	toolIDs      []string
	cleanups     []func(ctx context.Context) error
	contributors map[string][]contributor
}

// New creates a coordinator for a session.
func New(sessionID string) *Coordinator {
	return &Coordinator{
		sessionID:    sessionID,
		hooks:        hooks.NewRegistry(),
		logger:       zap.L().Named("coordinator"),
		cancel:       NewCancellationToken(),
		providers:    make(map[string]types.Provider),
		tools:        make(map[string]types.Tool),
		contributors: make(map[string][]contributor),
	}
}

// SessionID returns the owning session's id.
func (c *Coordinator) SessionID() string { return c.sessionID }

// Hooks returns the session's hook registry.
func (c *Coordinator) Hooks() *hooks.Registry { return c.hooks }

// Cancellation returns the session's cancellation token.
func (c *Coordinator) Cancellation() *CancellationToken { return c.cancel }

// Mount records a singleton at a mount point. Remounting an occupied
// singleton is an error; mount points are created once per session.
func (c *Coordinator) Mount(mountPoint string, instance interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch mountPoint {
	case MountOrchestrator:
		if c.orchestrator != nil {
			return fmt.Errorf("mount point %q already occupied", mountPoint)
		}
		c.orchestrator = instance
	case MountContext:
		if c.contextMgr != nil {
			return fmt.Errorf("mount point %q already occupied", mountPoint)
		}
		mgr, ok := instance.(types.ContextManager)
		if !ok {
			return fmt.Errorf("instance mounted at %q does not implement ContextManager", mountPoint)
		}
		c.contextMgr = mgr
	default:
		return fmt.Errorf("unknown singleton mount point %q", mountPoint)
	}
	return nil
}

// MountProvider adds a provider to the providers collection.
func (c *Coordinator) MountProvider(id string, p types.Provider) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.providers[id]; ok {
		return fmt.Errorf("provider %q already mounted", id)
	}
	c.providers[id] = p
	c.providerIDs = append(c.providerIDs, id)
	return nil
}

// MountTool adds a tool to the tools collection.
func (c *Coordinator) MountTool(id string, t types.Tool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tools[id]; ok {
		return fmt.Errorf("tool %q already mounted", id)
	}
	c.tools[id] = t
	c.toolIDs = append(c.toolIDs, id)
	return nil
}

// Orchestrator returns the mounted orchestrator singleton, or nil.
func (c *Coordinator) Orchestrator() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orchestrator
}

// ContextManager returns the mounted context singleton, or nil.
func (c *Coordinator) ContextManager() types.ContextManager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contextMgr
}

// Providers returns the mounted providers in mount order.
func (c *Coordinator) Providers() []types.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Provider, 0, len(c.providerIDs))
	for _, id := range c.providerIDs {
		out = append(out, c.providers[id])
	}
	return out
}

// Provider returns one mounted provider by id.
func (c *Coordinator) Provider(id string) (types.Provider, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.providers[id]
	return p, ok
}

// Tools returns the mounted tools in mount order.
func (c *Coordinator) Tools() []types.Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Tool, 0, len(c.toolIDs))
	for _, id := range c.toolIDs {
		out = append(out, c.tools[id])
	}
	return out
}

// Tool returns one mounted tool by id.
func (c *Coordinator) Tool(id string) (types.Tool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tools[id]
	return t, ok
}

// RegisterCleanup pushes a cleanup to run on session teardown. Cleanups
// run in reverse registration order.
func (c *Coordinator) RegisterCleanup(fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups = append(c.cleanups, fn)
}

// Cleanup runs every registered cleanup in reverse order, exactly once.
// Regular errors are logged and swallowed; a cancellation error is
// remembered and returned only after every cleanup has been attempted.
func (c *Coordinator) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	cleanups := c.cleanups
	c.cleanups = nil
	c.mu.Unlock()

	var interrupt error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](ctx); err != nil {
			if isInterrupt(err) {
				interrupt = err
				continue
			}
			c.logger.Warn("cleanup failed",
				zap.String("session_id", c.sessionID),
				zap.Error(err),
			)
		}
	}
	return interrupt
}

// RegisterContributor joins a contribution channel.
func (c *Coordinator) RegisterContributor(channel, name string, callback func(ctx context.Context) (interface{}, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contributors[channel] = append(c.contributors[channel], contributor{name: name, callback: callback})
}

// CollectContributions calls every contributor on the channel and returns
// the non-nil values in registration order. Failing contributors are
// skipped; cancellation is re-raised after all contributors ran, via the
// token so callers observe it on their next check.
func (c *Coordinator) CollectContributions(ctx context.Context, channel string) []interface{} {
	c.mu.Lock()
	registered := append([]contributor(nil), c.contributors[channel]...)
	c.mu.Unlock()

	var out []interface{}
	var interrupt error
	for _, contrib := range registered {
		value, err := contrib.callback(ctx)
		if err != nil {
			if isInterrupt(err) {
				interrupt = err
				continue
			}
			c.logger.Warn("contributor failed",
				zap.String("channel", channel),
				zap.String("contributor", contrib.name),
				zap.Error(err),
			)
			continue
		}
		if value != nil {
			out = append(out, value)
		}
	}
	if interrupt != nil {
		c.cancel.CancelWith(interrupt)
	}
	return out
}

func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

var _ types.Coordinator = (*Coordinator)(nil)
