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

// Package tools provides the session tool registry with JSON Schema input
// validation.
package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/amplifier-labs/amplifier/pkg/types"
)

// Registry holds the tools available to a session. Registration is
// progressive: re-registering a name replaces the previous tool.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]types.Tool
	order  []string
	logger *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]types.Tool),
		logger: zap.L().Named("tools"),
	}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(tool types.Tool) {
	name := tool.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		r.logger.Debug("tool replaced", zap.String("tool", name))
	} else {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// IsRegistered reports whether a tool name is known.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (types.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools in registration order.
func (r *Registry) List() []types.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Schemas renders the registered tools as request tool schemas, in
// registration order.
func (r *Registry) Schemas() []types.ToolSchema {
	list := r.List()
	out := make([]types.ToolSchema, 0, len(list))
	for _, t := range list {
		out = append(out, types.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema(),
		})
	}
	return out
}

// ValidateInput checks args against the tool's JSON Schema. A tool with no
// schema accepts anything.
func (r *Registry) ValidateInput(tool types.Tool, args map[string]interface{}) error {
	schema := tool.Schema()
	if len(schema) == 0 {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return fmt.Errorf("schema validation for tool %q failed: %w", tool.Name(), err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("invalid arguments for tool %q: %s", tool.Name(), strings.Join(problems, "; "))
}

// Execute validates args and runs the named tool. Validation failures and
// unknown tools come back as failed ToolResults, not errors; errors are
// reserved for infrastructure faults.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (*types.ToolResult, error) {
	tool, ok := r.Get(name)
	if !ok {
		return &types.ToolResult{Success: false, Output: fmt.Sprintf("unknown tool %q", name)}, nil
	}
	if err := r.ValidateInput(tool, args); err != nil {
		return &types.ToolResult{Success: false, Output: err.Error()}, nil
	}
	return tool.Execute(ctx, args)
}
