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

	"github.com/amplifier-labs/amplifier/pkg/utils"
)

// FromDict reconstructs a bundle from its generic mapping form, as decoded
// from YAML manifests or the disk cache. Structural violations surface as
// *ValidationError naming the field and offending value.
func FromDict(d map[string]interface{}) (*Bundle, error) {
	b := &Bundle{}

	if meta, ok := d["bundle"]; ok {
		m, ok := meta.(map[string]interface{})
		if !ok {
			return nil, &ValidationError{Field: "bundle", Value: meta}
		}
		b.Name = stringField(m, "name")
		b.Version = stringField(m, "version")
		b.Description = stringField(m, "description")
	}
	// The flat form (disk cache) stores name at top level.
	if b.Name == "" {
		b.Name = stringField(d, "name")
		b.Version = stringField(d, "version")
		b.Description = stringField(d, "description")
	}

	var err error
	if b.Includes, err = stringList(d, "includes"); err != nil {
		return nil, err
	}

	if raw, ok := d["session"]; ok && raw != nil {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, &ValidationError{Field: "session", Value: raw}
		}
		if b.Session.Orchestrator, err = moduleRef("session.orchestrator", m["orchestrator"]); err != nil {
			return nil, err
		}
		if b.Session.Context, err = moduleRef("session.context", m["context"]); err != nil {
			return nil, err
		}
	}

	if b.Providers, err = entryList(d, "providers"); err != nil {
		return nil, err
	}
	if b.Tools, err = entryList(d, "tools"); err != nil {
		return nil, err
	}
	if b.Hooks, err = entryList(d, "hooks"); err != nil {
		return nil, err
	}

	if raw, ok := d["agents"]; ok && raw != nil {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, &ValidationError{Field: "agents", Value: raw}
		}
		b.Agents = make(map[string]map[string]interface{}, len(m))
		for name, desc := range m {
			dm, ok := desc.(map[string]interface{})
			if !ok {
				return nil, &ValidationError{Field: "agents." + name, Value: desc}
			}
			b.Agents[name] = dm
		}
	}

	if raw, ok := d["context_paths"]; ok && raw != nil {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, &ValidationError{Field: "context_paths", Value: raw}
		}
		b.Context = make(map[string]string, len(m))
		for ref, p := range m {
			s, ok := p.(string)
			if !ok {
				return nil, &ValidationError{Field: "context_paths." + ref, Value: p}
			}
			b.Context[ref] = s
		}
	}
	if b.PendingContext, err = stringList(d, "pending_context"); err != nil {
		return nil, err
	}

	if raw, ok := d["source_base_paths"]; ok && raw != nil {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, &ValidationError{Field: "source_base_paths", Value: raw}
		}
		b.SourceBasePaths = make(map[string]string, len(m))
		for ns, p := range m {
			s, ok := p.(string)
			if !ok {
				return nil, &ValidationError{Field: "source_base_paths." + ns, Value: p}
			}
			b.SourceBasePaths[ns] = s
		}
	}

	b.Instruction = stringField(d, "instruction")
	b.BasePath = stringField(d, "base_path")
	b.SourceURI = stringField(d, "source_uri")

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// ToDict renders the bundle in its flat mapping form, suitable for JSON
// serialization and reconstruction via FromDict.
func (b *Bundle) ToDict() map[string]interface{} {
	d := map[string]interface{}{
		"name": b.Name,
	}
	if b.Version != "" {
		d["version"] = b.Version
	}
	if b.Description != "" {
		d["description"] = b.Description
	}
	if len(b.Includes) > 0 {
		d["includes"] = toAnyList(b.Includes)
	}

	session := map[string]interface{}{}
	if b.Session.Orchestrator != nil {
		session["orchestrator"] = entryDict(b.Session.Orchestrator)
	}
	if b.Session.Context != nil {
		session["context"] = entryDict(b.Session.Context)
	}
	if len(session) > 0 {
		d["session"] = session
	}

	for _, field := range []struct {
		name    string
		entries []ModuleEntry
	}{
		{"providers", b.Providers},
		{"tools", b.Tools},
		{"hooks", b.Hooks},
	} {
		if len(field.entries) == 0 {
			continue
		}
		list := make([]interface{}, len(field.entries))
		for i := range field.entries {
			list[i] = entryDict(&field.entries[i])
		}
		d[field.name] = list
	}

	if len(b.Agents) > 0 {
		agents := make(map[string]interface{}, len(b.Agents))
		for name, desc := range b.Agents {
			agents[name] = utils.DeepCopyMap(desc)
		}
		d["agents"] = agents
	}
	if len(b.Context) > 0 {
		paths := make(map[string]interface{}, len(b.Context))
		for ref, p := range b.Context {
			paths[ref] = p
		}
		d["context_paths"] = paths
	}
	if len(b.PendingContext) > 0 {
		d["pending_context"] = toAnyList(b.PendingContext)
	}
	if len(b.SourceBasePaths) > 0 {
		paths := make(map[string]interface{}, len(b.SourceBasePaths))
		for ns, p := range b.SourceBasePaths {
			paths[ns] = p
		}
		d["source_base_paths"] = paths
	}
	if b.Instruction != "" {
		d["instruction"] = b.Instruction
	}
	if b.BasePath != "" {
		d["base_path"] = b.BasePath
	}
	if b.SourceURI != "" {
		d["source_uri"] = b.SourceURI
	}
	return d
}

func entryDict(e *ModuleEntry) map[string]interface{} {
	d := map[string]interface{}{"module": e.Module}
	if e.Source != "" {
		d["source"] = e.Source
	}
	if e.Config != nil {
		d["config"] = utils.DeepCopyMap(e.Config)
	}
	return d
}

// moduleRef accepts the two forms a session ref takes: a bare string id or
// a mapping carrying module/source/config.
func moduleRef(field string, raw interface{}) (*ModuleEntry, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return &ModuleEntry{Module: v}, nil
	case map[string]interface{}:
		entry, err := entryFromMap(field, v)
		if err != nil {
			return nil, err
		}
		if entry.Module == "" && entry.Source == "" {
			return nil, &ValidationError{Field: field, Value: raw}
		}
		return entry, nil
	default:
		return nil, &ValidationError{Field: field, Value: raw}
	}
}

func entryFromMap(field string, m map[string]interface{}) (*ModuleEntry, error) {
	entry := &ModuleEntry{
		Module: stringField(m, "module"),
		Source: stringField(m, "source"),
	}
	if raw, ok := m["config"]; ok && raw != nil {
		cfg, ok := raw.(map[string]interface{})
		if !ok {
			return nil, &ValidationError{Field: field + ".config", Value: raw}
		}
		entry.Config = cfg
	}
	return entry, nil
}

func entryList(d map[string]interface{}, field string) ([]ModuleEntry, error) {
	raw, ok := d[field]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, &ValidationError{Field: field, Value: raw}
	}
	entries := make([]ModuleEntry, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, &ValidationError{Field: field, Value: item}
		}
		entry, err := entryFromMap(field, m)
		if err != nil {
			return nil, err
		}
		if entry.Module == "" {
			return nil, &ValidationError{Field: field, Value: item}
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func stringList(d map[string]interface{}, field string) ([]string, error) {
	raw, ok := d[field]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, &ValidationError{Field: field, Value: raw}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, &ValidationError{Field: fmt.Sprintf("%s[%d]", field, len(out)), Value: item}
		}
		out = append(out, s)
	}
	return out, nil
}

func toAnyList(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
