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
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/amplifier-labs/amplifier/pkg/utils"
)

// Compose layers overlays onto base, in order, and returns a new bundle.
// Neither input is mutated. Rules per overlay:
//
//   - session: deep merge, overlay scalars win
//   - providers, tools, hooks: merge by module id, new ids append
//   - instruction: replace unless the overlay's is empty
//   - includes: not merged, consumed during loading
//   - context: union of resolved entries; pending_context: union
//   - source_base_paths: union, later wins
//   - name: overlay wins
func Compose(base *Bundle, overlays ...*Bundle) *Bundle {
	out := base.Clone()
	for _, overlay := range overlays {
		if overlay == nil {
			continue
		}
		out = composeOne(out, overlay)
	}
	return out
}

func composeOne(base, overlay *Bundle) *Bundle {
	out := base

	if overlay.Name != "" {
		out.Name = overlay.Name
	}
	if overlay.Version != "" {
		out.Version = overlay.Version
	}
	if overlay.Description != "" {
		out.Description = overlay.Description
	}

	out.Session.Orchestrator = mergeRef(out.Session.Orchestrator, overlay.Session.Orchestrator)
	out.Session.Context = mergeRef(out.Session.Context, overlay.Session.Context)

	out.Providers = mergeByModule(out.Providers, overlay.Providers)
	out.Tools = mergeByModule(out.Tools, overlay.Tools)
	out.Hooks = mergeByModule(out.Hooks, overlay.Hooks)

	if len(overlay.Agents) > 0 {
		if out.Agents == nil {
			out.Agents = make(map[string]map[string]interface{})
		}
		for name, desc := range overlay.Agents {
			out.Agents[name] = utils.DeepCopyMap(desc)
		}
	}

	if overlay.Instruction != "" {
		out.Instruction = overlay.Instruction
	}

	if len(overlay.Context) > 0 {
		if out.Context == nil {
			out.Context = make(map[string]string)
		}
		for ref, path := range overlay.Context {
			out.Context[ref] = path
		}
	}
	out.PendingContext = unionStrings(out.PendingContext, overlay.PendingContext)

	if len(overlay.SourceBasePaths) > 0 {
		if out.SourceBasePaths == nil {
			out.SourceBasePaths = make(map[string]string)
		}
		for ns, path := range overlay.SourceBasePaths {
			out.SourceBasePaths[ns] = path
		}
	}

	if overlay.BasePath != "" {
		out.BasePath = overlay.BasePath
	}
	if overlay.SourceURI != "" {
		out.SourceURI = overlay.SourceURI
	}
	return out
}

// mergeRef deep-merges two session refs. The overlay's module and source
// win when set; configs merge recursively.
func mergeRef(base, overlay *ModuleEntry) *ModuleEntry {
	if overlay == nil {
		return base
	}
	if base == nil {
		return overlay.Clone()
	}
	merged := base.Clone()
	if overlay.Module != "" {
		merged.Module = overlay.Module
	}
	if overlay.Source != "" {
		merged.Source = overlay.Source
	}
	if overlay.Config != nil {
		merged.Config = utils.DeepMerge(merged.Config, overlay.Config)
	}
	return merged
}

// mergeByModule merges two module entry lists by module id: entries sharing
// an id deep-merge in place, new ids append in overlay order.
func mergeByModule(base, overlay []ModuleEntry) []ModuleEntry {
	if len(overlay) == 0 {
		return base
	}
	out := cloneEntries(base)
	index := make(map[string]int, len(out))
	for i := range out {
		index[out[i].Module] = i
	}
	for i := range overlay {
		entry := overlay[i]
		if at, ok := index[entry.Module]; ok {
			out[at] = *mergeRef(&out[at], &entry)
			continue
		}
		index[entry.Module] = len(out)
		out = append(out, *entry.Clone())
	}
	return out
}

func unionStrings(base, overlay []string) []string {
	if len(overlay) == 0 {
		return base
	}
	seen := make(map[string]bool, len(base))
	out := append([]string(nil), base...)
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range overlay {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// ResolvePendingContext resolves deferred "ns:path" refs against the
// composed source base paths. Self-references (ns equal to the bundle
// name) resolve against BasePath. Under strict mode an unresolvable ref is
// an error; otherwise it is logged and left pending.
func (b *Bundle) ResolvePendingContext(strict bool) error {
	if len(b.PendingContext) == 0 {
		return nil
	}

	var remaining []string
	for _, ref := range b.PendingContext {
		ns, rel, ok := strings.Cut(ref, ":")
		if !ok {
			if strict {
				return &ValidationError{Field: "pending_context", Value: ref}
			}
			remaining = append(remaining, ref)
			continue
		}

		basePath := b.SourceBasePaths[ns]
		if basePath == "" && ns == b.Name {
			basePath = b.BasePath
		}
		if basePath == "" {
			if strict {
				return &DependencyError{
					URI:   b.SourceURI,
					Cause: fmt.Errorf("context ref %q names unknown namespace %q", ref, ns),
				}
			}
			zap.L().Named("bundle").Warn("unresolved context ref",
				zap.String("ref", ref),
				zap.String("bundle", b.Name),
			)
			remaining = append(remaining, ref)
			continue
		}

		if b.Context == nil {
			b.Context = make(map[string]string)
		}
		b.Context[ref] = joinContextPath(basePath, rel)
	}
	b.PendingContext = remaining
	return nil
}
