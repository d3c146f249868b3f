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
package hooks

// Action is the effect a hook handler requests on the event being emitted.
// Precedence (highest first): deny > ask_user > inject_context > modify > continue.
type Action string

const (
	// ActionContinue lets processing proceed unchanged.
	ActionContinue Action = "continue"
	// ActionModify replaces the event payload for downstream handlers and
	// the emitter.
	ActionModify Action = "modify"
	// ActionDeny blocks the operation. Deny is sticky and terminal: no
	// later handler can override it and emission short-circuits.
	ActionDeny Action = "deny"
	// ActionInjectContext asks the runtime to inject content into the
	// conversation context.
	ActionInjectContext Action = "inject_context"
	// ActionAskUser requires interactive approval before proceeding.
	ActionAskUser Action = "ask_user"
)

// Result is returned by hook handlers and aggregated by Registry.Emit.
type Result struct {
	Action Action `json:"action"`

	// Data is the (possibly modified) event payload.
	Data map[string]interface{} `json:"data,omitempty"`

	// Reason explains a deny.
	Reason string `json:"reason,omitempty"`

	// ContextInjection is content to add to the conversation context when
	// Action is inject_context. Multiple injections from one emission are
	// concatenated with a blank line.
	ContextInjection     string `json:"context_injection,omitempty"`
	ContextInjectionRole string `json:"context_injection_role,omitempty"`

	// Approval fields, used when Action is ask_user.
	ApprovalPrompt  string   `json:"approval_prompt,omitempty"`
	ApprovalOptions []string `json:"approval_options,omitempty"`
	ApprovalDefault string   `json:"approval_default,omitempty"`

	// Ephemeral marks injected context as not to be persisted.
	Ephemeral bool `json:"ephemeral,omitempty"`

	// AppendToLastToolResult routes an injection into the most recent
	// tool result instead of a standalone message.
	AppendToLastToolResult bool `json:"append_to_last_tool_result,omitempty"`

	// Metadata carries handler-specific extras for observability.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Continue returns a pass-through result.
func Continue() *Result {
	return &Result{Action: ActionContinue}
}

// Modify returns a result that replaces the event payload.
func Modify(data map[string]interface{}) *Result {
	return &Result{Action: ActionModify, Data: data}
}

// Deny returns a terminal denial with the given reason.
func Deny(reason string) *Result {
	return &Result{Action: ActionDeny, Reason: reason}
}

// InjectContext returns a context injection result.
func InjectContext(content string) *Result {
	return &Result{Action: ActionInjectContext, ContextInjection: content}
}

// AskUser returns an approval request result.
func AskUser(prompt string) *Result {
	return &Result{Action: ActionAskUser, ApprovalPrompt: prompt}
}
