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

// Package orchestrator defines the loop-driver contract and the reference
// tool-use loop implementation.
package orchestrator

import (
	"context"

	"github.com/amplifier-labs/amplifier/pkg/hooks"
	"github.com/amplifier-labs/amplifier/pkg/tools"
	"github.com/amplifier-labs/amplifier/pkg/types"
)

// Environment is everything an orchestrator needs for one execution.
// Providers are ordered by selection preference; the session sorts them by
// configured priority before mounting.
type Environment struct {
	Context     types.ContextManager
	Providers   []types.Provider
	Tools       *tools.Registry
	Hooks       *hooks.Registry
	Coordinator types.Coordinator
}

// Orchestrator drives the prompt-response-tool loop for a session.
type Orchestrator interface {
	Execute(ctx context.Context, prompt string, env *Environment) (string, error)
}
