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
package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifier-labs/amplifier/pkg/bundle"
	"github.com/amplifier-labs/amplifier/pkg/hooks"
	"github.com/amplifier-labs/amplifier/pkg/orchestrator"
	"github.com/amplifier-labs/amplifier/pkg/types"
)

type fakeProvider struct {
	name     string
	reply    string
	cleaned  int
	requests int
}

func (p *fakeProvider) Name() string             { return p.name }
func (p *fakeProvider) Info() types.ProviderInfo { return types.ProviderInfo{ID: p.name} }
func (p *fakeProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{p.name + "-model"}, nil
}

func (p *fakeProvider) Complete(ctx context.Context, req *types.ChatRequest, opts types.CompleteOptions) (*types.ChatResponse, error) {
	p.requests++
	return &types.ChatResponse{
		Content: []types.ContentBlock{types.TextBlock(p.reply)},
	}, nil
}

func (p *fakeProvider) ParseToolCalls(resp *types.ChatResponse) []types.ContentBlock {
	return resp.ToolCalls()
}

func (p *fakeProvider) Cleanup(ctx context.Context) error {
	p.cleaned++
	return nil
}

type fakeHookModule struct {
	attached bool
}

func (m *fakeHookModule) Attach(reg *hooks.Registry) error {
	m.attached = true
	reg.Register(hooks.EventPromptComplete, func(ctx context.Context, event string, data map[string]interface{}) (*hooks.Result, error) {
		return hooks.Continue(), nil
	})
	return nil
}

func planWith(providers ...bundle.ModuleEntry) *bundle.MountPlan {
	return &bundle.MountPlan{
		Session: bundle.SessionPlan{
			Orchestrator: &bundle.ModuleEntry{Module: "loop-basic"},
			Context:      &bundle.ModuleEntry{Module: "context-simple"},
		},
		Providers: providers,
	}
}

func testLoader(providers map[string]*fakeProvider) *Loader {
	l := DefaultLoader()
	for id, p := range providers {
		p := p
		l.Register(id, func(ctx context.Context, spec ModuleSpec) (interface{}, error) {
			return p, nil
		})
	}
	return l
}

func TestNew_ValidatesSingletons(t *testing.T) {
	_, err := New(&bundle.MountPlan{
		Session: bundle.SessionPlan{Context: &bundle.ModuleEntry{Module: "context-simple"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orchestrator")

	_, err = New(&bundle.MountPlan{
		Session: bundle.SessionPlan{Orchestrator: &bundle.ModuleEntry{Module: "loop-basic"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

func TestLifecycle(t *testing.T) {
	p := &fakeProvider{name: "fake", reply: "hello"}
	s, err := New(
		planWith(bundle.ModuleEntry{Module: "fake"}),
		WithLoader(testLoader(map[string]*fakeProvider{"fake": p})),
	)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, s.Status())

	var transitions []string
	s.Hooks().Register(hooks.EventSessionStatus, func(ctx context.Context, event string, data map[string]interface{}) (*hooks.Result, error) {
		transitions = append(transitions, fmt.Sprintf("%v→%v", data["from"], data["to"]))
		// Default fields carry the session id on every event.
		assert.Equal(t, s.ID(), data["session_id"])
		return hooks.Continue(), nil
	})

	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	assert.Equal(t, StatusInitialized, s.Status())

	out, err := s.Execute(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, StatusIdle, s.Status())

	// Sequential executions share the context history.
	_, err = s.Execute(ctx, "again")
	require.NoError(t, err)
	msgs, err := s.Coordinator().ContextManager().GetMessages(ctx)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)

	require.NoError(t, s.Cleanup(ctx))
	assert.Equal(t, StatusClosed, s.Status())
	assert.Equal(t, 1, p.cleaned)

	// Cleanup is idempotent; execution after close fails.
	require.NoError(t, s.Cleanup(ctx))
	assert.Equal(t, 1, p.cleaned)
	_, err = s.Execute(ctx, "late")
	assert.Error(t, err)

	assert.Equal(t, []string{
		"created→initialized",
		"initialized→executing",
		"executing→idle",
		"idle→executing",
		"executing→idle",
		"idle→shutting_down",
	}, transitions)
}

func TestInitialize_ProviderPriorityOrdersMounts(t *testing.T) {
	primary := &fakeProvider{name: "primary", reply: "from primary"}
	fallback := &fakeProvider{name: "fallback", reply: "from fallback"}
	s, err := New(
		planWith(
			bundle.ModuleEntry{Module: "fallback", Config: map[string]interface{}{"priority": 50}},
			bundle.ModuleEntry{Module: "primary", Config: map[string]interface{}{"priority": 0}},
		),
		WithLoader(testLoader(map[string]*fakeProvider{"primary": primary, "fallback": fallback})),
	)
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))

	mounted := s.Coordinator().Providers()
	require.Len(t, mounted, 2)
	assert.Equal(t, "primary", mounted[0].Name())

	out, err := s.Execute(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "from primary", out)
}

func TestInitialize_CombinedFailureSummary(t *testing.T) {
	good := &fakeProvider{name: "good", reply: "ok"}
	plan := planWith(
		bundle.ModuleEntry{Module: "good"},
		bundle.ModuleEntry{Module: "ghost-provider"},
	)
	plan.Tools = []bundle.ModuleEntry{{Module: "ghost-tool"}}

	s, err := New(plan, WithLoader(testLoader(map[string]*fakeProvider{"good": good})))
	require.NoError(t, err)

	err = s.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 module(s) failed to mount")
	assert.Contains(t, err.Error(), "ghost-provider")
	assert.Contains(t, err.Error(), "ghost-tool")
}

func TestInitialize_MissingOrchestratorIsFatal(t *testing.T) {
	plan := planWith()
	plan.Session.Orchestrator = &bundle.ModuleEntry{Module: "no-such-loop"}
	s, err := New(plan)
	require.NoError(t, err)

	err = s.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orchestrator")
}

func TestExecute_NoProvidersFailsExecutionNotInit(t *testing.T) {
	s, err := New(planWith())
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))

	_, err = s.Execute(context.Background(), "hi")
	assert.ErrorIs(t, err, orchestrator.ErrNoProviders)
}

func TestInitialize_SeedsInstructionAndHooks(t *testing.T) {
	hm := &fakeHookModule{}
	l := testLoader(map[string]*fakeProvider{"fake": {name: "fake", reply: "ok"}})
	l.Register("audit", func(ctx context.Context, spec ModuleSpec) (interface{}, error) {
		return hm, nil
	})

	plan := planWith(bundle.ModuleEntry{Module: "fake"})
	plan.Instruction = "You are a careful assistant."
	plan.Hooks = []bundle.ModuleEntry{{Module: "audit"}}

	s, err := New(plan, WithLoader(l))
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))
	assert.True(t, hm.attached)

	msgs, err := s.Coordinator().ContextManager().GetMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
	assert.Equal(t, "You are a careful assistant.", msgs[0].Content)
}

func TestLoader_ConfigPlumbing(t *testing.T) {
	var got ModuleSpec
	l := DefaultLoader()
	l.Register("probe", func(ctx context.Context, spec ModuleSpec) (interface{}, error) {
		got = spec
		return &fakeProvider{name: "probe", reply: "x"}, nil
	})

	s, err := New(
		planWith(bundle.ModuleEntry{
			Module: "probe",
			Source: "/opt/modules/probe",
			Config: map[string]interface{}{"priority": 1, "model": "m-1"},
		}),
		WithLoader(l),
	)
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))

	assert.Equal(t, "probe", got.ID)
	assert.Equal(t, "/opt/modules/probe", got.Path)
	assert.Equal(t, "m-1", got.Config["model"])
	assert.Equal(t, s.ID(), got.SessionID)
	assert.NotNil(t, got.Hooks)
}
