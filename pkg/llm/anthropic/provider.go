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

// Package anthropic is the reference provider adapter for the Anthropic
// Messages API: message conversion, capability-gated extended thinking,
// retry with error translation, tool-sequence repair, and SSE streaming.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amplifier-labs/amplifier/pkg/config"
	"github.com/amplifier-labs/amplifier/pkg/hooks"
	"github.com/amplifier-labs/amplifier/pkg/llm"
	"github.com/amplifier-labs/amplifier/pkg/types"
)

const (
	// DefaultModel is the default Claude model.
	DefaultModel = "claude-sonnet-4-5-20250929"
	// DefaultEndpoint is the default Anthropic Messages API endpoint.
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"
	// DefaultMaxTokens is the default maximum output tokens per request.
	DefaultMaxTokens = 4096
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 120 * time.Second

	apiVersion   = "2023-06-01"
	providerName = "anthropic"
)

// knownModels is the model list served when the API is not consulted, in
// the order newest first.
var knownModels = []string{
	"claude-sonnet-4-5-20250929",
	"claude-opus-4-1-20250805",
	"claude-haiku-4-5-20251001",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-sonnet-20241022",
	"claude-3-5-haiku-20241022",
	"claude-3-opus-20240229",
}

// Config holds configuration for the Anthropic provider.
type Config struct {
	APIKey    string
	Model     string // Default: DefaultModel
	Endpoint  string // Default: DefaultEndpoint
	Timeout   time.Duration
	MaxTokens int // Default: 4096

	// Retry overrides the default retry policy when non-nil.
	Retry *llm.RetryConfig

	// Hooks receives provider:* and content_block:* events when set.
	Hooks *hooks.Registry
}

// Provider implements types.Provider against the Anthropic Messages API.
// It is single-consumer per session; the repaired-id set is not locked.
type Provider struct {
	apiKey     string
	model      string
	endpoint   string
	maxTokens  int
	httpClient *http.Client
	retry      llm.RetryConfig
	hooks      *hooks.Registry
	logger     *zap.Logger

	// repaired tracks tool-sequence repairs already announced by this
	// instance so repeated detections do not re-emit.
	repaired map[string]bool
}

// New creates an Anthropic provider. A missing API key falls back to the
// ambient settings (ANTHROPIC_API_KEY).
func New(cfg Config) *Provider {
	if cfg.APIKey == "" {
		cfg.APIKey = config.NewSettings().AnthropicAPIKey()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	retry := llm.DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	return &Provider{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		endpoint:   cfg.Endpoint,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      retry,
		hooks:      cfg.Hooks,
		logger:     zap.L().Named("anthropic"),
		repaired:   make(map[string]bool),
	}
}

// Name returns the provider id.
func (p *Provider) Name() string { return providerName }

// Model returns the configured model id.
func (p *Provider) Model() string { return p.model }

// Info returns discovery metadata.
func (p *Provider) Info() types.ProviderInfo {
	return types.ProviderInfo{
		ID:           providerName,
		DisplayName:  "Anthropic Claude",
		DefaultModel: DefaultModel,
		ConfigFields: []types.ConfigField{
			{Name: "api_key", Description: "Anthropic API key", Required: true, Secret: true},
			{Name: "model", Description: "Model id", Default: DefaultModel},
		},
	}
}

// ListModels returns the model ids this provider can serve.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	return append([]string(nil), knownModels...), nil
}

// ParseToolCalls extracts tool_call blocks from a response.
func (p *Provider) ParseToolCalls(resp *types.ChatResponse) []types.ContentBlock {
	return resp.ToolCalls()
}

// Complete performs one chat completion. Dangling tool calls are repaired
// before sending; retryable wire failures go through the retry policy; a
// streaming request is folded into the same terminal response shape.
func (p *Provider) Complete(ctx context.Context, req *types.ChatRequest, opts types.CompleteOptions) (*types.ChatResponse, error) {
	messages, repairs := repairToolSequences(req.Messages, p.repaired)
	if len(repairs) > 0 {
		details := make([]map[string]interface{}, 0, len(repairs))
		for _, r := range repairs {
			details = append(details, map[string]interface{}{
				"tool_call_id": r.ToolCallID,
				"tool_name":    r.ToolName,
			})
		}
		p.emit(ctx, hooks.EventProviderToolSequenceRepair, map[string]interface{}{
			"provider":     providerName,
			"repair_count": len(repairs),
			"repairs":      details,
		})
		p.logger.Warn("repaired dangling tool calls", zap.Int("count", len(repairs)))
	}

	system, wireMessages := convertMessages(messages)
	caps := DetectCapabilities(p.model)

	wireReq := &MessagesRequest{
		Model:    p.model,
		Messages: wireMessages,
		System:   system,
		Tools:    convertTools(req.Tools),
		Stream:   req.Stream,
	}

	wireReq.MaxTokens = p.maxTokens
	if req.MaxTokens > 0 {
		wireReq.MaxTokens = req.MaxTokens
	}
	if wireReq.MaxTokens > caps.MaxOutputTokens {
		wireReq.MaxTokens = caps.MaxOutputTokens
	}

	if thinking := thinkingParam(caps, req.ReasoningEffort, opts); thinking != nil {
		wireReq.Thinking = thinking
		// Thinking requires temperature 1.0.
		one := 1.0
		wireReq.Temperature = &one
		if thinking.Type == "enabled" && wireReq.MaxTokens <= thinking.BudgetTokens {
			wireReq.MaxTokens = thinking.BudgetTokens + thinkingHeadroom
			if wireReq.MaxTokens > caps.MaxOutputTokens {
				wireReq.MaxTokens = caps.MaxOutputTokens
			}
		}
	} else if req.Temperature != nil {
		wireReq.Temperature = req.Temperature
	}

	p.emit(ctx, hooks.EventProviderRequest, map[string]interface{}{
		"provider": providerName,
		"model":    wireReq.Model,
		"stream":   wireReq.Stream,
	})

	resp, err := llm.CallWithRetry(ctx, p.retry, p.notifyRetry, func(ctx context.Context) (*types.ChatResponse, error) {
		if wireReq.Stream {
			return p.doStream(ctx, wireReq)
		}
		return p.doRequest(ctx, wireReq)
	})
	if err != nil {
		p.emit(ctx, hooks.EventProviderError, map[string]interface{}{
			"provider":   providerName,
			"error":      err.Error(),
			"error_type": llm.ErrorType(err),
		})
		return nil, err
	}

	p.emit(ctx, hooks.EventProviderResponse, map[string]interface{}{
		"provider":      providerName,
		"model":         resp.Model,
		"stop_reason":   resp.StopReason,
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
	})
	return resp, nil
}

// thinkingParam maps reasoning effort and per-call options onto the wire
// thinking parameter. A model without thinking support never gets one,
// regardless of what the caller asked for.
func thinkingParam(caps ModelCapabilities, effort string, opts types.CompleteOptions) *ThinkingParam {
	if !caps.SupportsThinking {
		return nil
	}

	enabled := false
	adaptive := false
	budget := caps.DefaultThinkingBudget

	switch effort {
	case types.EffortLow:
		enabled = true
		budget = lowEffortBudget
	case types.EffortMedium, types.EffortHigh:
		enabled = true
		adaptive = caps.SupportsAdaptiveThinking
	}

	if v, ok := opts.Bool("extended_thinking"); ok {
		if !v {
			return nil
		}
		if !enabled {
			enabled = true
			budget = caps.DefaultThinkingBudget
		}
	}
	if b, ok := opts.Int("thinking_budget_tokens"); ok {
		enabled = true
		adaptive = false
		budget = b
	}

	if !enabled {
		return nil
	}
	if adaptive {
		return &ThinkingParam{Type: "adaptive"}
	}
	return &ThinkingParam{Type: "enabled", BudgetTokens: budget}
}

// doRequest performs one non-streaming attempt.
func (p *Provider) doRequest(ctx context.Context, req *MessagesRequest) (*types.ChatResponse, error) {
	httpResp, err := p.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, p.translateTransport(ctx, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, p.translateHTTP(httpResp, body)
	}

	var resp MessagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, llm.NewError(providerName, fmt.Errorf("unmarshaling response: %w", err))
	}
	return convertResponse(&resp), nil
}

// send marshals and posts the request, translating transport failures.
func (p *Provider) send(ctx context.Context, req *MessagesRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, llm.NewInvalidRequestError(providerName, 0, fmt.Errorf("marshaling request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, llm.NewInvalidRequestError(providerName, 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, p.translateTransport(ctx, err)
	}
	return httpResp, nil
}

// translateTransport classifies a client-side failure. Cancellation passes
// through untranslated so it is never retried.
func (p *Provider) translateTransport(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return llm.NewTimeoutError(providerName, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.NewTimeoutError(providerName, err)
	}
	return llm.NewError(providerName, err)
}

// translateHTTP maps a non-200 response onto the shared error taxonomy.
func (p *Provider) translateHTTP(resp *http.Response, body []byte) error {
	msg := string(body)
	var envelope ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}
	cause := fmt.Errorf("API error (status %d): %s", resp.StatusCode, msg)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return llm.NewRateLimitError(providerName, resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After")), cause)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return llm.NewAuthenticationError(providerName, resp.StatusCode, cause)

	case resp.StatusCode == http.StatusBadRequest:
		lower := strings.ToLower(msg)
		switch {
		case containsAny(lower, "context length", "too many tokens", "prompt is too long"):
			return llm.NewContextLengthError(providerName, resp.StatusCode, cause)
		case containsAny(lower, "safety", "blocked", "content filter"):
			return llm.NewContentFilterError(providerName, resp.StatusCode, cause)
		default:
			return llm.NewInvalidRequestError(providerName, resp.StatusCode, cause)
		}

	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return llm.NewTimeoutError(providerName, cause)

	case resp.StatusCode >= 500:
		return llm.NewProviderUnavailableError(providerName, resp.StatusCode, cause)

	default:
		return llm.NewError(providerName, cause)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func (p *Provider) notifyRetry(attempt int, delay time.Duration, errType string) {
	p.emit(context.Background(), hooks.EventProviderRetry, map[string]interface{}{
		"provider":   providerName,
		"attempt":    attempt,
		"delay_ms":   delay.Milliseconds(),
		"error_type": errType,
	})
}

func (p *Provider) emit(ctx context.Context, event string, data map[string]interface{}) {
	if p.hooks == nil {
		return
	}
	if _, err := p.hooks.Emit(ctx, event, data); err != nil {
		p.logger.Warn("provider event emission interrupted",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

var _ types.Provider = (*Provider)(nil)
