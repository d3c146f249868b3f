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

// Package bundle implements the declarative unit of session composition:
// loading bundle manifests, composing overlays, registering bundles by
// name, and preparing composed bundles into mount plans.
package bundle

import (
	"github.com/amplifier-labs/amplifier/pkg/utils"
)

// ModuleEntry names one mountable module, optionally with the source URI
// it activates from and a module-specific config mapping.
type ModuleEntry struct {
	Module string                 `json:"module" yaml:"module"`
	Source string                 `json:"source,omitempty" yaml:"source,omitempty"`
	Config map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}

// Clone returns a deep copy of the entry.
func (e *ModuleEntry) Clone() *ModuleEntry {
	if e == nil {
		return nil
	}
	return &ModuleEntry{
		Module: e.Module,
		Source: e.Source,
		Config: utils.DeepCopyMap(e.Config),
	}
}

// SessionSpec names the two session singletons.
type SessionSpec struct {
	Orchestrator *ModuleEntry `json:"orchestrator,omitempty" yaml:"orchestrator,omitempty"`
	Context      *ModuleEntry `json:"context,omitempty" yaml:"context,omitempty"`
}

// Bundle is the logical unit of composition. Bundles are treated as
// immutable after composition; Compose always returns a new bundle.
type Bundle struct {
	Name        string
	Version     string
	Description string

	// Includes are consumed during loading and never merged by Compose.
	Includes []string

	Session   SessionSpec
	Providers []ModuleEntry
	Tools     []ModuleEntry
	Hooks     []ModuleEntry

	// Agents are opaque to the core and passed through to the mount plan.
	Agents map[string]map[string]interface{}

	// Context maps a ref to its resolved absolute path. PendingContext
	// holds "ns:path" refs awaiting resolution after composition.
	Context        map[string]string
	PendingContext []string

	// Instruction is the markdown body surfaced to the orchestrator.
	Instruction string

	// BasePath is the local directory backing the bundle, if any.
	BasePath string

	// SourceBasePaths maps namespace to base path for cross-bundle
	// "@ns:path" resolution.
	SourceBasePaths map[string]string

	// SourceURI is where the bundle was loaded from.
	SourceURI string
}

// Clone returns a deep copy.
func (b *Bundle) Clone() *Bundle {
	if b == nil {
		return nil
	}
	out := &Bundle{
		Name:            b.Name,
		Version:         b.Version,
		Description:     b.Description,
		Includes:        append([]string(nil), b.Includes...),
		Session:         SessionSpec{Orchestrator: b.Session.Orchestrator.Clone(), Context: b.Session.Context.Clone()},
		Providers:       cloneEntries(b.Providers),
		Tools:           cloneEntries(b.Tools),
		Hooks:           cloneEntries(b.Hooks),
		Context:         cloneStringMap(b.Context),
		PendingContext:  append([]string(nil), b.PendingContext...),
		Instruction:     b.Instruction,
		BasePath:        b.BasePath,
		SourceBasePaths: cloneStringMap(b.SourceBasePaths),
		SourceURI:       b.SourceURI,
	}
	if b.Agents != nil {
		out.Agents = make(map[string]map[string]interface{}, len(b.Agents))
		for name, desc := range b.Agents {
			out.Agents[name] = utils.DeepCopyMap(desc)
		}
	}
	return out
}

func cloneEntries(entries []ModuleEntry) []ModuleEntry {
	if entries == nil {
		return nil
	}
	out := make([]ModuleEntry, len(entries))
	for i := range entries {
		out[i] = *entries[i].Clone()
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate checks the structural invariants: non-empty name, every module
// entry carries a module id, session refs carry module or source.
func (b *Bundle) Validate() error {
	if b.Name == "" {
		return &ValidationError{Field: "bundle.name", Value: ""}
	}
	for _, field := range []struct {
		name    string
		entries []ModuleEntry
	}{
		{"providers", b.Providers},
		{"tools", b.Tools},
		{"hooks", b.Hooks},
	} {
		for _, entry := range field.entries {
			if entry.Module == "" {
				return &ValidationError{Field: field.name, Value: entry}
			}
		}
	}
	for _, ref := range []struct {
		name  string
		entry *ModuleEntry
	}{
		{"session.orchestrator", b.Session.Orchestrator},
		{"session.context", b.Session.Context},
	} {
		if ref.entry != nil && ref.entry.Module == "" && ref.entry.Source == "" {
			return &ValidationError{Field: ref.name, Value: ref.entry}
		}
	}
	return nil
}
