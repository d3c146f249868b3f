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

// Package types contains shared transport types used across the amplifier
// runtime. This package breaks import cycles by providing common types that
// the session, provider, tool, and orchestrator packages all depend on.
package types

import (
	"context"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleDeveloper = "developer"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Content block types.
const (
	BlockText       = "text"
	BlockImage      = "image"
	BlockThinking   = "thinking"
	BlockToolCall   = "tool_call"
	BlockToolResult = "tool_result"
)

// ImageSource contains base64-encoded image data.
type ImageSource struct {
	// Type is the source type (currently always "base64")
	Type string `json:"type"`

	// MediaType is the MIME type ("image/jpeg", "image/png", "image/gif", "image/webp")
	MediaType string `json:"media_type"`

	// Data contains base64-encoded image data
	Data string `json:"data"`
}

// ContentBlock represents a piece of content in a multi-modal message.
// The Type field selects which of the remaining fields are meaningful:
//
//	text        → Text
//	image       → Image
//	thinking    → Text
//	tool_call   → ID, Name, Input
//	tool_result → ToolCallID, Output, IsError
type ContentBlock struct {
	Type string `json:"type"`

	// Text content (for "text" and "thinking" blocks)
	Text string `json:"text,omitempty"`

	// Image content (for "image" blocks)
	Image *ImageSource `json:"image,omitempty"`

	// Tool call fields (for "tool_call" blocks)
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// Tool result fields (for "tool_result" blocks)
	ToolCallID string      `json:"tool_call_id,omitempty"`
	Output     interface{} `json:"output,omitempty"`
	IsError    bool        `json:"is_error,omitempty"`
}

// TextBlock creates a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ThinkingBlock creates a thinking content block.
func ThinkingBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockThinking, Text: text}
}

// ToolCallBlock creates a tool_call content block.
func ToolCallBlock(id, name string, input map[string]interface{}) ContentBlock {
	return ContentBlock{Type: BlockToolCall, ID: id, Name: name, Input: input}
}

// ToolResultBlock creates a tool_result content block.
func ToolResultBlock(toolCallID string, output interface{}, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolCallID: toolCallID, Output: output, IsError: isError}
}

// Message represents a single message in the conversation.
type Message struct {
	// Role is the message sender (user, assistant, developer, tool, system)
	Role string `json:"role"`

	// Content is the message text (for text-only messages)
	Content string `json:"content,omitempty"`

	// Blocks contains multi-modal content. If present, this takes
	// precedence over Content.
	Blocks []ContentBlock `json:"blocks,omitempty"`

	// Timestamp when the message was created
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Text returns the concatenated text of the message, preferring blocks.
func (m *Message) Text() string {
	if len(m.Blocks) == 0 {
		return m.Content
	}
	var out string
	for _, b := range m.Blocks {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolCalls returns the tool_call blocks of the message, if any.
func (m *Message) ToolCalls() []ContentBlock {
	var calls []ContentBlock
	for _, b := range m.Blocks {
		if b.Type == BlockToolCall {
			calls = append(calls, b)
		}
	}
	return calls
}

// ToolSchema describes a tool to the model.
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Reasoning effort levels for ChatRequest.ReasoningEffort.
const (
	EffortLow    = "low"
	EffortMedium = "medium"
	EffortHigh   = "high"
)

// ChatRequest is a provider-neutral chat completion request.
type ChatRequest struct {
	Messages []Message    `json:"messages"`
	Tools    []ToolSchema `json:"tools,omitempty"`

	// ReasoningEffort is one of "", "low", "medium", "high". Empty means
	// no extended thinking is requested.
	ReasoningEffort string `json:"reasoning_effort,omitempty"`

	// Temperature overrides the provider default when non-nil.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens limits output tokens; 0 means provider default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Stream requests incremental delta events.
	Stream bool `json:"stream,omitempty"`
}

// Usage tracks token accounting for one completion.
type Usage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	TotalTokens     int `json:"total_tokens"`
	CacheReadTokens int `json:"cache_read_tokens,omitempty"`
	// CacheWriteTokens counts cache-creation input tokens
	CacheWriteTokens int `json:"cache_write_tokens,omitempty"`
	ReasoningTokens  int `json:"reasoning_tokens,omitempty"`

	// Extra retains provider-native counters as opaque values for
	// observability.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// ChatResponse is a provider-neutral chat completion response.
type ChatResponse struct {
	Content    []ContentBlock `json:"content"`
	Usage      Usage          `json:"usage"`
	StopReason string         `json:"stop_reason,omitempty"`
	Model      string         `json:"model,omitempty"`
}

// Text returns the concatenated text blocks of the response.
func (r *ChatResponse) Text() string {
	var out string
	for _, b := range r.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolCalls returns the tool_call blocks of the response.
func (r *ChatResponse) ToolCalls() []ContentBlock {
	var calls []ContentBlock
	for _, b := range r.Content {
		if b.Type == BlockToolCall {
			calls = append(calls, b)
		}
	}
	return calls
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	// Success indicates if the tool executed successfully
	Success bool `json:"success"`

	// Output contains the result payload: a string or a JSON-shaped map
	Output interface{} `json:"output"`
}

// CompleteOptions carries per-call provider options. Recognized keys are
// provider-specific; the reference adapter understands "extended_thinking"
// (bool) and "thinking_budget_tokens" (int).
type CompleteOptions map[string]interface{}

// Bool reads a boolean option. The second return reports presence.
func (o CompleteOptions) Bool(key string) (bool, bool) {
	v, ok := o[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Int reads an integer option. The second return reports presence.
func (o CompleteOptions) Int(key string) (int, bool) {
	switch v := o[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// ConfigField documents one provider configuration knob for front ends.
type ConfigField struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Secret      bool   `json:"secret,omitempty"`
	Default     string `json:"default,omitempty"`
}

// ProviderInfo describes a provider for discovery and configuration UIs.
type ProviderInfo struct {
	ID           string        `json:"id"`
	DisplayName  string        `json:"display_name"`
	ConfigFields []ConfigField `json:"config_fields,omitempty"`
	DefaultModel string        `json:"default_model,omitempty"`
}

// Provider is the capability interface for chat completion backends.
// Implementations translate native wire errors into the llm error taxonomy
// and are the only layer allowed to retry.
type Provider interface {
	// Name returns the provider id (e.g. "anthropic")
	Name() string

	// Info returns discovery metadata
	Info() ProviderInfo

	// ListModels returns the model ids this provider can serve
	ListModels(ctx context.Context) ([]string, error)

	// Complete performs one chat completion, folding any stream into a
	// single terminal response
	Complete(ctx context.Context, req *ChatRequest, opts CompleteOptions) (*ChatResponse, error)

	// ParseToolCalls extracts tool_call blocks from a response
	ParseToolCalls(resp *ChatResponse) []ContentBlock
}

// Tool is the capability interface for executable tools.
type Tool interface {
	// Name returns the tool's unique identifier
	Name() string

	// Description returns a human-readable description for LLM context
	Description() string

	// Schema returns the JSON Schema for tool parameters
	Schema() map[string]interface{}

	// Execute runs the tool. Implementations should return a failed
	// ToolResult rather than an error wherever possible; errors are
	// reserved for infrastructure failures.
	Execute(ctx context.Context, args map[string]interface{}) (*ToolResult, error)
}

// ContextManager is the capability interface for conversation context.
// History order is preserved; no silent drops.
type ContextManager interface {
	// AddMessage appends a message to the history
	AddMessage(ctx context.Context, msg Message) error

	// GetMessages returns the full history
	GetMessages(ctx context.Context) ([]Message, error)

	// GetMessagesForRequest returns the view suitable for sending to the
	// given provider; the manager may elide or compact internally.
	GetMessagesForRequest(ctx context.Context, provider string) ([]Message, error)

	// Clear removes all messages (for forks)
	Clear(ctx context.Context) error
}

// Compactor is optionally implemented by context managers that support
// compaction.
type Compactor interface {
	ShouldCompact(tokenCount, budget int) bool
	Compact(ctx context.Context) error
}

// Coordinator is the narrow view of the session coordinator handed to
// orchestrators. The concrete type lives in pkg/coordinator.
type Coordinator interface {
	// SessionID returns the owning session's id
	SessionID() string

	// CollectContributions calls every contributor on a channel and
	// returns their non-nil values in registration order
	CollectContributions(ctx context.Context, channel string) []interface{}
}
