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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifier-labs/amplifier/pkg/hooks"
	"github.com/amplifier-labs/amplifier/pkg/llm"
	"github.com/amplifier-labs/amplifier/pkg/types"
)

func fastRetry() *llm.RetryConfig {
	return &llm.RetryConfig{
		MaxRetries:    3,
		MinRetryDelay: time.Millisecond,
		MaxRetryDelay: 60 * time.Second,
	}
}

func newTestProvider(t *testing.T, model string, reg *hooks.Registry, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		APIKey:   "test-key",
		Model:    model,
		Endpoint: srv.URL,
		Retry:    fastRetry(),
		Hooks:    reg,
	})
}

func respondJSON(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{
		"id": "msg_1", "type": "message", "role": "assistant",
		"model": "claude-sonnet-4-5-20250929", "stop_reason": "end_turn",
		"content": [{"type": "text", "text": %q}],
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`, text)
}

func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func TestComplete_Success(t *testing.T) {
	var body map[string]interface{}
	p := newTestProvider(t, "claude-sonnet-4-5-20250929", nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		body = decodeBody(t, r)
		respondJSON(w, "hello there")
	})

	resp, err := p.Complete(context.Background(), &types.ChatRequest{
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: "Be brief."},
			{Role: types.RoleUser, Content: "hi"},
		},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Text())
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "claude-sonnet-4-5-20250929", body["model"])
	assert.Equal(t, "Be brief.", body["system"])
	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 1)
}

func TestComplete_ToolSequenceRepair(t *testing.T) {
	var bodies []map[string]interface{}
	reg := hooks.NewRegistry()
	repairEvents := 0
	reg.Register(hooks.EventProviderToolSequenceRepair, func(ctx context.Context, event string, data map[string]interface{}) (*hooks.Result, error) {
		repairEvents++
		assert.Equal(t, 1, data["repair_count"])
		return hooks.Continue(), nil
	})

	p := newTestProvider(t, "claude-sonnet-4-5-20250929", reg, func(w http.ResponseWriter, r *http.Request) {
		bodies = append(bodies, decodeBody(t, r))
		respondJSON(w, "ok")
	})

	// Assistant issued call_1 but no result was ever recorded.
	req := &types.ChatRequest{Messages: []types.Message{
		{Role: types.RoleUser, Content: "go"},
		{Role: types.RoleAssistant, Blocks: []types.ContentBlock{
			types.ToolCallBlock("call_1", "search", map[string]interface{}{"q": "x"}),
		}},
		{Role: types.RoleUser, Content: "continue"},
	}}

	_, err := p.Complete(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, bodies, 1)

	// The synthetic error result sits right after the assistant message.
	msgs := bodies[0]["messages"].([]interface{})
	require.Len(t, msgs, 4)
	spliced := msgs[2].(map[string]interface{})
	assert.Equal(t, "user", spliced["role"])
	block := spliced["content"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "tool_result", block["type"])
	assert.Equal(t, "call_1", block["tool_use_id"])
	assert.Equal(t, true, block["is_error"])
	assert.Equal(t, repairedOutput, block["content"])
	assert.Equal(t, 1, repairEvents)

	// Identical messages again: spliced again, but not re-announced.
	_, err = p.Complete(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, bodies, 2)
	assert.Len(t, bodies[1]["messages"].([]interface{}), 4)
	assert.Equal(t, 1, repairEvents)
}

func TestComplete_RateLimitFailFast(t *testing.T) {
	attempts := 0
	p := newTestProvider(t, "claude-sonnet-4-5-20250929", nil, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"rate limited"}}`)
	})

	start := time.Now()
	_, err := p.Complete(context.Background(), &types.ChatRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	}, nil)
	elapsed := time.Since(start)

	// Retry-After exceeds the 60s policy cap: exactly one attempt, no sleep.
	require.Error(t, err)
	var rl *llm.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 120*time.Second, rl.RetryAfter)
	assert.Equal(t, 1, attempts)
	assert.Less(t, elapsed, time.Second)
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	attempts := 0
	reg := hooks.NewRegistry()
	var retryTypes []interface{}
	reg.Register(hooks.EventProviderRetry, func(ctx context.Context, event string, data map[string]interface{}) (*hooks.Result, error) {
		retryTypes = append(retryTypes, data["error_type"])
		return hooks.Continue(), nil
	})

	p := newTestProvider(t, "claude-sonnet-4-5-20250929", reg, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		respondJSON(w, "recovered")
	})

	resp, err := p.Complete(context.Background(), &types.ChatRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text())
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []interface{}{"provider_unavailable"}, retryTypes)
}

func TestComplete_ErrorTranslation(t *testing.T) {
	tests := []struct {
		status  int
		message string
		check   func(t *testing.T, err error)
	}{
		{http.StatusUnauthorized, "invalid x-api-key", func(t *testing.T, err error) {
			var e *llm.AuthenticationError
			assert.ErrorAs(t, err, &e)
		}},
		{http.StatusBadRequest, "prompt is too long: 250000 tokens", func(t *testing.T, err error) {
			var e *llm.ContextLengthError
			assert.ErrorAs(t, err, &e)
		}},
		{http.StatusBadRequest, "request blocked by safety system", func(t *testing.T, err error) {
			var e *llm.ContentFilterError
			assert.ErrorAs(t, err, &e)
		}},
		{http.StatusBadRequest, "messages: unexpected field", func(t *testing.T, err error) {
			var e *llm.InvalidRequestError
			assert.ErrorAs(t, err, &e)
		}},
	}

	for _, tt := range tests {
		attempts := 0
		p := newTestProvider(t, "claude-sonnet-4-5-20250929", nil, func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(tt.status)
			fmt.Fprintf(w, `{"type":"error","error":{"type":"api_error","message":%q}}`, tt.message)
		})

		_, err := p.Complete(context.Background(), &types.ChatRequest{
			Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
		}, nil)
		require.Error(t, err, tt.message)
		tt.check(t, err)
		// Non-retryable errors consume exactly one attempt.
		assert.Equal(t, 1, attempts, tt.message)
		assert.Contains(t, err.Error(), "anthropic")
	}
}

func TestComplete_ThinkingOnWire(t *testing.T) {
	var body map[string]interface{}
	p := newTestProvider(t, "claude-sonnet-4-5-20250929", nil, func(w http.ResponseWriter, r *http.Request) {
		body = decodeBody(t, r)
		respondJSON(w, "ok")
	})

	_, err := p.Complete(context.Background(), &types.ChatRequest{
		Messages:        []types.Message{{Role: types.RoleUser, Content: "hi"}},
		ReasoningEffort: types.EffortHigh,
	}, nil)
	require.NoError(t, err)

	thinking := body["thinking"].(map[string]interface{})
	assert.Equal(t, "adaptive", thinking["type"])
	assert.Equal(t, 1.0, body["temperature"])
}

func TestComplete_NoThinkingOnNonThinkingModel(t *testing.T) {
	var body map[string]interface{}
	p := newTestProvider(t, "claude-3-5-sonnet-20241022", nil, func(w http.ResponseWriter, r *http.Request) {
		body = decodeBody(t, r)
		respondJSON(w, "ok")
	})

	_, err := p.Complete(context.Background(), &types.ChatRequest{
		Messages:        []types.Message{{Role: types.RoleUser, Content: "hi"}},
		ReasoningEffort: types.EffortHigh,
	}, nil)
	require.NoError(t, err)

	// Neither a thinking param nor a forced temperature.
	_, hasThinking := body["thinking"]
	assert.False(t, hasThinking)
	_, hasTemperature := body["temperature"]
	assert.False(t, hasTemperature)
}

func TestComplete_ThinkingBudgetRaisesMaxTokens(t *testing.T) {
	var body map[string]interface{}
	p := newTestProvider(t, "claude-3-7-sonnet-20250219", nil, func(w http.ResponseWriter, r *http.Request) {
		body = decodeBody(t, r)
		respondJSON(w, "ok")
	})

	_, err := p.Complete(context.Background(), &types.ChatRequest{
		Messages:        []types.Message{{Role: types.RoleUser, Content: "hi"}},
		ReasoningEffort: types.EffortLow,
	}, nil)
	require.NoError(t, err)

	// Default 4096 output tokens would not clear the 4096 budget.
	thinking := body["thinking"].(map[string]interface{})
	assert.Equal(t, "enabled", thinking["type"])
	assert.Equal(t, float64(lowEffortBudget), thinking["budget_tokens"])
	assert.Equal(t, float64(lowEffortBudget+thinkingHeadroom), body["max_tokens"])
}

const streamBody = `event: message_start
data: {"type":"message_start","message":{"id":"msg_1","model":"claude-sonnet-4-5-20250929","usage":{"input_tokens":25}}}

data: {"type":"content_block_start","index":0,"content_block":{"type":"text"}}

data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}

data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}

data: {"type":"content_block_stop","index":0}

data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"call_9","name":"calc"}}

data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"n\":"}}

data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"7}"}}

data: {"type":"content_block_stop","index":1}

data: {"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":12}}

data: {"type":"message_stop"}
`

func TestComplete_StreamingFold(t *testing.T) {
	reg := hooks.NewRegistry()
	events := map[string]int{}
	for _, ev := range []string{hooks.EventContentBlockStart, hooks.EventContentBlockDelta, hooks.EventContentBlockEnd} {
		reg.Register(ev, func(ctx context.Context, event string, data map[string]interface{}) (*hooks.Result, error) {
			events[event]++
			return hooks.Continue(), nil
		})
	}

	p := newTestProvider(t, "claude-sonnet-4-5-20250929", reg, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, true, body["stream"])
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, streamBody)
	})

	resp, err := p.Complete(context.Background(), &types.ChatRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
		Stream:   true,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Hello", resp.Text())
	calls := resp.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_9", calls[0].ID)
	assert.Equal(t, "calc", calls[0].Name)
	assert.Equal(t, float64(7), calls[0].Input["n"])
	assert.Equal(t, "tool_use", resp.StopReason)
	assert.Equal(t, 25, resp.Usage.InputTokens)
	assert.Equal(t, 12, resp.Usage.OutputTokens)

	assert.Equal(t, 2, events[hooks.EventContentBlockStart])
	assert.Equal(t, 4, events[hooks.EventContentBlockDelta])
	assert.Equal(t, 2, events[hooks.EventContentBlockEnd])
}

func TestListModelsAndInfo(t *testing.T) {
	p := New(Config{APIKey: "k"})
	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Contains(t, models, DefaultModel)

	info := p.Info()
	assert.Equal(t, "anthropic", info.ID)
	require.NotEmpty(t, info.ConfigFields)
	assert.True(t, info.ConfigFields[0].Secret)
}
