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
package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amplifier-labs/amplifier/pkg/types"
)

func TestDetectCapabilities(t *testing.T) {
	tests := []struct {
		model            string
		family           string
		major, minor     int
		supportsThinking bool
		adaptive         bool
	}{
		{"claude-sonnet-4-5-20250929", "sonnet", 4, 5, true, true},
		{"claude-3-7-sonnet-20250219", "sonnet", 3, 7, true, false},
		{"claude-3-5-sonnet-20241022", "sonnet", 3, 5, false, false},
		{"claude-opus-4-1-20250805", "opus", 4, 1, true, true},
		{"claude-3-opus-20240229", "opus", 3, 0, false, false},
		{"claude-3-5-haiku-20241022", "haiku", 3, 5, false, false},
		{"claude-haiku-4-5-20251001", "haiku", 4, 5, true, false},
	}
	for _, tt := range tests {
		caps := DetectCapabilities(tt.model)
		assert.Equal(t, tt.family, caps.Family, tt.model)
		assert.Equal(t, tt.major, caps.Major, tt.model)
		assert.Equal(t, tt.minor, caps.Minor, tt.model)
		assert.Equal(t, tt.supportsThinking, caps.SupportsThinking, tt.model)
		assert.Equal(t, tt.adaptive, caps.SupportsAdaptiveThinking, tt.model)
	}

	unknown := DetectCapabilities("gpt-4o")
	assert.Empty(t, unknown.Family)
	assert.False(t, unknown.SupportsThinking)
	assert.Equal(t, 4096, unknown.MaxOutputTokens)
}

// Every capability record keeps headroom above the default thinking
// budget so thinking never starves text output.
func TestCapabilities_BudgetHeadroom(t *testing.T) {
	for _, model := range knownModels {
		caps := DetectCapabilities(model)
		if !caps.SupportsThinking {
			continue
		}
		assert.LessOrEqual(t, caps.DefaultThinkingBudget+thinkingHeadroom, caps.MaxOutputTokens, model)
	}
}

func TestThinkingParam(t *testing.T) {
	nonThinking := DetectCapabilities("claude-3-5-sonnet-20241022")
	enabledOnly := DetectCapabilities("claude-3-7-sonnet-20250219")
	adaptive := DetectCapabilities("claude-sonnet-4-5-20250929")

	// Non-thinking model never gets a thinking param, whatever the ask.
	assert.Nil(t, thinkingParam(nonThinking, types.EffortHigh, nil))
	assert.Nil(t, thinkingParam(nonThinking, "", types.CompleteOptions{"extended_thinking": true}))

	// No effort, no opts: no thinking.
	assert.Nil(t, thinkingParam(enabledOnly, "", nil))

	// Low pins the small budget.
	p := thinkingParam(enabledOnly, types.EffortLow, nil)
	assert.Equal(t, &ThinkingParam{Type: "enabled", BudgetTokens: lowEffortBudget}, p)

	// Medium/high prefer adaptive when supported, default budget otherwise.
	assert.Equal(t, &ThinkingParam{Type: "adaptive"}, thinkingParam(adaptive, types.EffortMedium, nil))
	assert.Equal(t, &ThinkingParam{Type: "adaptive"}, thinkingParam(adaptive, types.EffortHigh, nil))
	p = thinkingParam(enabledOnly, types.EffortHigh, nil)
	assert.Equal(t, &ThinkingParam{Type: "enabled", BudgetTokens: enabledOnly.DefaultThinkingBudget}, p)

	// Explicit opt-out beats effort.
	assert.Nil(t, thinkingParam(adaptive, types.EffortHigh, types.CompleteOptions{"extended_thinking": false}))

	// Opt-in with no effort uses the default budget.
	p = thinkingParam(enabledOnly, "", types.CompleteOptions{"extended_thinking": true})
	assert.Equal(t, &ThinkingParam{Type: "enabled", BudgetTokens: enabledOnly.DefaultThinkingBudget}, p)

	// An explicit budget overrides everything, including adaptive.
	p = thinkingParam(adaptive, types.EffortHigh, types.CompleteOptions{"thinking_budget_tokens": 2048})
	assert.Equal(t, &ThinkingParam{Type: "enabled", BudgetTokens: 2048}, p)
}
