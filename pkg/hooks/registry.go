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

// Package hooks implements the ordered, prioritized event dispatch pipeline.
//
// Handlers are registered per event name with a priority (lower runs
// earlier; ties break by registration order). Emit runs all handlers
// serially and folds their results with the action lattice
// deny > ask_user > inject_context > modify > continue.
package hooks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultPriority is used when a registration does not specify one.
const DefaultPriority = 50

// Handler processes one event. The data map is a copy owned by the handler;
// mutating it has no effect unless returned via a modify result.
type Handler func(ctx context.Context, event string, data map[string]interface{}) (*Result, error)

// HandlerInfo describes a registered handler for diagnostics.
type HandlerInfo struct {
	Event    string
	Name     string
	Priority int
}

type registration struct {
	name     string
	priority int
	seq      uint64
	handler  Handler
}

// Registry is a named ordered multimap of event → handlers.
// Thread-safe: registration and emission may interleave; an emission
// observes the handler set present when it starts.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]*registration
	defaults map[string]interface{}
	seq      atomic.Uint64
	logger   *zap.Logger
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string][]*registration),
		logger:   zap.L().Named("hooks"),
	}
}

// RegisterOption configures a registration.
type RegisterOption func(*registration)

// WithPriority sets the handler priority (lower = earlier).
func WithPriority(p int) RegisterOption {
	return func(r *registration) { r.priority = p }
}

// WithName names the handler for diagnostics and logs.
func WithName(name string) RegisterOption {
	return func(r *registration) { r.name = name }
}

// Register adds a handler for an event and returns a function that removes
// it again.
func (r *Registry) Register(event string, handler Handler, opts ...RegisterOption) func() {
	reg := &registration{
		priority: DefaultPriority,
		seq:      r.seq.Add(1),
		handler:  handler,
	}
	for _, opt := range opts {
		opt(reg)
	}
	if reg.name == "" {
		reg.name = "anonymous"
	}

	r.mu.Lock()
	list := append(r.handlers[event], reg)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority < list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	r.handlers[event] = list
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		current := r.handlers[event]
		for i, c := range current {
			if c == reg {
				r.handlers[event] = append(append([]*registration{}, current[:i]...), current[i+1:]...)
				return
			}
		}
	}
}

// On is a synonym for Register.
func (r *Registry) On(event string, handler Handler, opts ...RegisterOption) func() {
	return r.Register(event, handler, opts...)
}

// SetDefaultFields installs a merge base applied to every emitted payload.
// Explicit payload fields win over defaults.
func (r *Registry) SetDefaultFields(fields map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.defaults == nil {
		r.defaults = make(map[string]interface{})
	}
	for k, v := range fields {
		r.defaults[k] = v
	}
}

// ListHandlers returns diagnostic info for one event, or for all events when
// event is empty.
func (r *Registry) ListHandlers(event string) []HandlerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []HandlerInfo
	appendEvent := func(ev string) {
		for _, reg := range r.handlers[ev] {
			infos = append(infos, HandlerInfo{Event: ev, Name: reg.name, Priority: reg.priority})
		}
	}
	if event != "" {
		appendEvent(event)
		return infos
	}
	events := make([]string, 0, len(r.handlers))
	for ev := range r.handlers {
		events = append(events, ev)
	}
	sort.Strings(events)
	for _, ev := range events {
		appendEvent(ev)
	}
	return infos
}

// snapshot returns the handler list for an event at emission start.
func (r *Registry) snapshot(event string) ([]*registration, map[string]interface{}) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := make([]*registration, len(r.handlers[event]))
	copy(regs, r.handlers[event])
	defaults := make(map[string]interface{}, len(r.defaults))
	for k, v := range r.defaults {
		defaults[k] = v
	}
	return regs, defaults
}

func mergeData(defaults, data map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(defaults)+len(data))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}
	return merged
}

func cloneData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// isInterrupt reports whether an error is a cancellation-class error that
// must be re-raised after the remaining handlers have run.
func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Emit runs all handlers for the event in order and folds their results into
// a single aggregate. Handler errors are logged and never crash emission;
// cancellation errors are tracked and returned only after every remaining
// handler has run, to keep cleanup deterministic.
func (r *Registry) Emit(ctx context.Context, event string, data map[string]interface{}) (*Result, error) {
	regs, defaults := r.snapshot(event)
	merged := mergeData(defaults, data)

	agg := &Result{Action: ActionContinue, Data: merged}
	var interrupt error

	for _, reg := range regs {
		res, err := reg.handler(ctx, event, cloneData(agg.Data))
		if err != nil {
			if isInterrupt(err) {
				if interrupt == nil {
					interrupt = err
				}
				continue
			}
			r.logger.Warn("hook handler failed",
				zap.String("event", event),
				zap.String("handler", reg.name),
				zap.Error(err),
			)
			continue
		}
		if res == nil {
			continue
		}

		switch res.Action {
		case ActionDeny:
			// Sticky and terminal: skip all remaining handlers.
			denied := *res
			if denied.Data == nil {
				denied.Data = agg.Data
			}
			return &denied, interrupt

		case ActionAskUser:
			agg.Action = ActionAskUser
			agg.ApprovalPrompt = res.ApprovalPrompt
			agg.ApprovalOptions = res.ApprovalOptions
			agg.ApprovalDefault = res.ApprovalDefault
			if res.Reason != "" {
				agg.Reason = res.Reason
			}

		case ActionInjectContext:
			if agg.Action != ActionAskUser {
				agg.Action = ActionInjectContext
			}
			if res.ContextInjection != "" {
				if agg.ContextInjection != "" {
					agg.ContextInjection += "\n\n" + res.ContextInjection
				} else {
					agg.ContextInjection = res.ContextInjection
				}
			}
			if res.ContextInjectionRole != "" {
				agg.ContextInjectionRole = res.ContextInjectionRole
			}
			if res.Ephemeral {
				agg.Ephemeral = true
			}
			if res.AppendToLastToolResult {
				agg.AppendToLastToolResult = true
			}

		case ActionModify:
			if agg.Action == ActionContinue || agg.Action == ActionModify {
				agg.Action = ActionModify
				if res.Data != nil {
					// Subsequent handlers see the modified data.
					agg.Data = res.Data
				}
			}

		case ActionContinue:
			if res.Data != nil {
				agg.Data = res.Data
			}
		}

		if res.Metadata != nil {
			if agg.Metadata == nil {
				agg.Metadata = make(map[string]interface{})
			}
			for k, v := range res.Metadata {
				agg.Metadata[k] = v
			}
		}
	}

	return agg, interrupt
}

// EmitAndCollect runs all handlers and returns the ordered list of non-error
// result payloads.
func (r *Registry) EmitAndCollect(ctx context.Context, event string, data map[string]interface{}) ([]map[string]interface{}, error) {
	regs, defaults := r.snapshot(event)
	merged := mergeData(defaults, data)

	var out []map[string]interface{}
	var interrupt error
	for _, reg := range regs {
		res, err := reg.handler(ctx, event, cloneData(merged))
		if err != nil {
			if isInterrupt(err) {
				if interrupt == nil {
					interrupt = err
				}
				continue
			}
			r.logger.Warn("hook handler failed",
				zap.String("event", event),
				zap.String("handler", reg.name),
				zap.Error(err),
			)
			continue
		}
		if res != nil && res.Data != nil {
			out = append(out, res.Data)
		}
	}
	return out, interrupt
}
