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
package subsession

import (
	"context"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/amplifier-labs/amplifier/pkg/bundle"
	"github.com/amplifier-labs/amplifier/pkg/types"
)

// ProviderPreference steers a spawned child toward a provider and model.
// Model may be a glob pattern resolved against the provider's model list.
type ProviderPreference struct {
	Provider string
	Model    string
}

// ProviderLookup resolves a mounted provider instance by its module id.
// The coordinator's Provider method satisfies it.
type ProviderLookup func(id string) (types.Provider, bool)

// ApplyProviderPreferences returns a new mount plan with the first
// matching preference applied: the matched provider entry gets priority 0
// and the preferred model; every other entry is untouched. Provider ids
// match with flexible aliasing, "x" matching both "x" and "provider-x".
// The input plan is never mutated.
func ApplyProviderPreferences(plan *bundle.MountPlan, prefs []ProviderPreference) *bundle.MountPlan {
	return applyPreferences(context.Background(), plan, prefs, nil)
}

// ApplyProviderPreferencesWithResolution additionally resolves glob model
// patterns against the matched provider's ListModels: candidates sort
// descending so the latest date or version wins. A pattern matching
// nothing passes through unchanged with a warning.
func ApplyProviderPreferencesWithResolution(ctx context.Context, plan *bundle.MountPlan, prefs []ProviderPreference, lookup ProviderLookup) *bundle.MountPlan {
	return applyPreferences(ctx, plan, prefs, lookup)
}

func applyPreferences(ctx context.Context, plan *bundle.MountPlan, prefs []ProviderPreference, lookup ProviderLookup) *bundle.MountPlan {
	out := plan.Clone()
	for _, pref := range prefs {
		idx := matchEntry(out.Providers, pref.Provider)
		if idx < 0 {
			continue
		}
		entry := &out.Providers[idx]
		if entry.Config == nil {
			entry.Config = make(map[string]interface{})
		}
		entry.Config["priority"] = 0
		entry.Config["model"] = resolveModel(ctx, pref, entry.Module, lookup)
		return out
	}
	return out
}

func matchEntry(entries []bundle.ModuleEntry, provider string) int {
	want := canonicalProviderID(provider)
	for i := range entries {
		if canonicalProviderID(entries[i].Module) == want {
			return i
		}
	}
	return -1
}

func canonicalProviderID(id string) string {
	return strings.TrimPrefix(id, "provider-")
}

// resolveModel turns a glob model preference into a concrete model id when
// a lookup is available; otherwise the preference is taken literally.
func resolveModel(ctx context.Context, pref ProviderPreference, moduleID string, lookup ProviderLookup) string {
	if lookup == nil {
		return pref.Model
	}
	provider, ok := lookup(moduleID)
	if !ok {
		return pref.Model
	}
	models, err := provider.ListModels(ctx)
	if err != nil {
		zap.L().Named("subsession").Warn("model listing failed, keeping pattern",
			zap.String("provider", moduleID),
			zap.String("pattern", pref.Model),
			zap.Error(err),
		)
		return pref.Model
	}

	sort.Sort(sort.Reverse(sort.StringSlice(models)))
	for _, model := range models {
		if ok, _ := doublestar.Match(pref.Model, model); ok {
			return model
		}
	}
	zap.L().Named("subsession").Warn("no model matched pattern, keeping pattern",
		zap.String("provider", moduleID),
		zap.String("pattern", pref.Model),
	)
	return pref.Model
}
