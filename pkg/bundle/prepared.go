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
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/amplifier-labs/amplifier/pkg/activate"
	"github.com/amplifier-labs/amplifier/pkg/mentions"
)

// PreparedBundle is a composed bundle whose module sources have all been
// materialized and activated. Its mount plan carries local paths only; the
// mention resolver knows every composed namespace.
type PreparedBundle struct {
	Bundle       *Bundle
	Plan         *MountPlan
	Mentions     *mentions.BaseResolver
	PackagePaths []string
}

// Prepare activates every sourced module entry and derives the final mount
// plan. Activation fans out; all per-module failures are collected into one
// error.
func (b *Bundle) Prepare(ctx context.Context, activator *activate.Activator) (*PreparedBundle, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	if b.BasePath != "" {
		if err := activator.InstallBundlePackage(ctx, b.BasePath); err != nil {
			return nil, err
		}
	}

	plan := b.ToMountPlan()

	entries, slots := sourcedEntries(plan)
	paths, failures := activator.ActivateAll(ctx, entries)
	if len(failures) > 0 {
		return nil, &activate.ModuleActivationError{
			ModuleID:  firstKey(failures),
			SourceURI: b.SourceURI,
			Cause:     errors.New(activate.SummarizeFailures(failures)),
		}
	}
	for key, entry := range slots {
		entry.Source = paths[key]
	}

	resolver := mentions.NewBaseResolver(cloneStringMap(b.SourceBasePaths), b.BasePath)

	zap.L().Named("bundle").Info("bundle prepared",
		zap.String("bundle", b.Name),
		zap.Int("activated", len(entries)),
	)
	return &PreparedBundle{
		Bundle:       b,
		Plan:         plan,
		Mentions:     resolver,
		PackagePaths: activator.BundlePackagePaths(),
	}, nil
}

// sourcedEntries collects every plan entry that names a source, keyed
// uniquely so two collections can hold the same module id.
func sourcedEntries(plan *MountPlan) ([]activate.Entry, map[string]*ModuleEntry) {
	var entries []activate.Entry
	slots := make(map[string]*ModuleEntry)

	add := func(kind string, entry *ModuleEntry) {
		if entry == nil || entry.Source == "" {
			return
		}
		key := fmt.Sprintf("%s/%s", kind, entry.Module)
		entries = append(entries, activate.Entry{ModuleID: key, SourceURI: entry.Source})
		slots[key] = entry
	}

	add("session", plan.Session.Orchestrator)
	add("session", plan.Session.Context)
	for i := range plan.Providers {
		add("providers", &plan.Providers[i])
	}
	for i := range plan.Tools {
		add("tools", &plan.Tools[i])
	}
	for i := range plan.Hooks {
		add("hooks", &plan.Hooks[i])
	}
	return entries, slots
}

func firstKey(m map[string]error) string {
	for k := range m {
		return k
	}
	return ""
}
