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

import "github.com/amplifier-labs/amplifier/pkg/utils"

// SessionPlan names the two singleton modules of a mount plan.
type SessionPlan struct {
	Orchestrator *ModuleEntry `json:"orchestrator,omitempty"`
	Context      *ModuleEntry `json:"context,omitempty"`
}

// MountPlan is the deterministic flat form of a composed bundle that a
// session consumes. Every entry source in a prepared plan is a local path;
// unknown module ids with no source fail at mount time.
type MountPlan struct {
	Session      SessionPlan                       `json:"session"`
	Providers    []ModuleEntry                     `json:"providers,omitempty"`
	Tools        []ModuleEntry                     `json:"tools,omitempty"`
	Hooks        []ModuleEntry                     `json:"hooks,omitempty"`
	Agents       map[string]map[string]interface{} `json:"agents,omitempty"`
	ContextPaths map[string]string                 `json:"context_paths,omitempty"`
	Instruction  string                            `json:"instruction,omitempty"`
}

// ToMountPlan derives the mount plan from a composed bundle. The plan is
// a deep copy; mutating it never affects the bundle.
func (b *Bundle) ToMountPlan() *MountPlan {
	plan := &MountPlan{
		Session: SessionPlan{
			Orchestrator: b.Session.Orchestrator.Clone(),
			Context:      b.Session.Context.Clone(),
		},
		Providers:    cloneEntries(b.Providers),
		Tools:        cloneEntries(b.Tools),
		Hooks:        cloneEntries(b.Hooks),
		ContextPaths: cloneStringMap(b.Context),
		Instruction:  b.Instruction,
	}
	if b.Agents != nil {
		plan.Agents = make(map[string]map[string]interface{}, len(b.Agents))
		for name, desc := range b.Agents {
			plan.Agents[name] = utils.DeepCopyMap(desc)
		}
	}
	return plan
}

// Clone returns a deep copy of the plan.
func (p *MountPlan) Clone() *MountPlan {
	if p == nil {
		return nil
	}
	out := &MountPlan{
		Session: SessionPlan{
			Orchestrator: p.Session.Orchestrator.Clone(),
			Context:      p.Session.Context.Clone(),
		},
		Providers:    cloneEntries(p.Providers),
		Tools:        cloneEntries(p.Tools),
		Hooks:        cloneEntries(p.Hooks),
		ContextPaths: cloneStringMap(p.ContextPaths),
		Instruction:  p.Instruction,
	}
	if p.Agents != nil {
		out.Agents = make(map[string]map[string]interface{}, len(p.Agents))
		for name, desc := range p.Agents {
			out.Agents[name] = utils.DeepCopyMap(desc)
		}
	}
	return out
}
