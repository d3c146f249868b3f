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
package contextmgr

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifier-labs/amplifier/pkg/hooks"
	"github.com/amplifier-labs/amplifier/pkg/types"
)

func TestAddAndGetPreservesOrder(t *testing.T) {
	m := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.AddMessage(ctx, types.Message{Role: types.RoleUser, Content: fmt.Sprintf("msg %d", i)}))
	}

	msgs, err := m.GetMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, msg := range msgs {
		assert.Equal(t, fmt.Sprintf("msg %d", i), msg.Content)
	}

	// The returned slice is a copy.
	msgs[0].Content = "mutated"
	again, err := m.GetMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, "msg 0", again[0].Content)
}

func TestClear(t *testing.T) {
	m := New()
	ctx := context.Background()
	require.NoError(t, m.AddMessage(ctx, types.Message{Role: types.RoleUser, Content: "x"}))
	require.NoError(t, m.Clear(ctx))
	assert.Equal(t, 0, m.Len())
}

func TestShouldCompact(t *testing.T) {
	m := New()
	assert.False(t, m.ShouldCompact(100, 1000))
	assert.True(t, m.ShouldCompact(850, 1000))
	assert.True(t, m.ShouldCompact(1000, 1000))
	assert.False(t, m.ShouldCompact(1000, 0))
}

func TestCompact_KeepsHeadAndTail(t *testing.T) {
	m := New(WithKeepRecent(3))
	ctx := context.Background()

	require.NoError(t, m.AddMessage(ctx, types.Message{Role: types.RoleSystem, Content: "system rules"}))
	for i := 0; i < 10; i++ {
		require.NoError(t, m.AddMessage(ctx, types.Message{Role: types.RoleUser, Content: fmt.Sprintf("turn %d", i)}))
	}

	require.NoError(t, m.Compact(ctx))

	msgs, err := m.GetMessages(ctx)
	require.NoError(t, err)
	// system head + elision note + 3 recent.
	require.Len(t, msgs, 5)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "elided")
	assert.Equal(t, "turn 7", msgs[2].Content)
	assert.Equal(t, "turn 9", msgs[4].Content)
}

func TestCompact_NoopWhenShort(t *testing.T) {
	m := New(WithKeepRecent(10))
	ctx := context.Background()
	require.NoError(t, m.AddMessage(ctx, types.Message{Role: types.RoleUser, Content: "only one"}))

	require.NoError(t, m.Compact(ctx))
	assert.Equal(t, 1, m.Len())
}

func TestCompact_EmitsHookEvents(t *testing.T) {
	reg := hooks.NewRegistry()
	var events []string
	for _, ev := range []string{hooks.EventContextPreCompact, hooks.EventContextPostCompact} {
		reg.Register(ev, func(ctx context.Context, event string, data map[string]interface{}) (*hooks.Result, error) {
			events = append(events, event)
			return hooks.Continue(), nil
		})
	}

	m := New(WithKeepRecent(1), WithHooks(reg))
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.AddMessage(ctx, types.Message{Role: types.RoleUser, Content: "x"}))
	}

	require.NoError(t, m.Compact(ctx))
	assert.Equal(t, []string{hooks.EventContextPreCompact, hooks.EventContextPostCompact}, events)
}

func TestGetMessagesForRequest_AutoCompacts(t *testing.T) {
	m := New(WithMaxTokens(50), WithKeepRecent(2), WithAutoCompact(true))
	ctx := context.Background()

	long := strings.Repeat("many words fill the context window ", 40)
	for i := 0; i < 6; i++ {
		require.NoError(t, m.AddMessage(ctx, types.Message{Role: types.RoleUser, Content: long}))
	}

	msgs, err := m.GetMessagesForRequest(ctx, "anthropic")
	require.NoError(t, err)
	// elision note + 2 recent.
	assert.Len(t, msgs, 3)
}

func TestTokenCount_GrowsWithContent(t *testing.T) {
	m := New()
	ctx := context.Background()
	base := m.TokenCount()

	require.NoError(t, m.AddMessage(ctx, types.Message{Role: types.RoleUser, Content: strings.Repeat("token ", 100)}))
	assert.Greater(t, m.TokenCount(), base)
}
