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
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amplifier-labs/amplifier/pkg/hooks"
	"github.com/amplifier-labs/amplifier/pkg/types"
)

// DefaultMaxTurns bounds the tool-use loop.
const DefaultMaxTurns = 50

// ErrNoProviders is returned when execution is attempted with no mounted
// providers.
var ErrNoProviders = errors.New("no providers available for execution")

// Loop is the reference orchestrator: submit the prompt, call the first
// provider, execute hook-gated tool calls, repeat until the model stops
// requesting tools.
type Loop struct {
	maxTurns int
	logger   *zap.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithMaxTurns overrides the loop bound.
func WithMaxTurns(n int) LoopOption {
	return func(l *Loop) { l.maxTurns = n }
}

// NewLoop creates the reference orchestrator.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		maxTurns: DefaultMaxTurns,
		logger:   zap.L().Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Execute runs one prompt to completion and returns the final assistant
// text. Sequential calls share the environment's context.
func (l *Loop) Execute(ctx context.Context, prompt string, env *Environment) (string, error) {
	start := time.Now()

	submit, err := env.Hooks.Emit(ctx, hooks.EventPromptSubmit, map[string]interface{}{
		"prompt": prompt,
	})
	if err != nil {
		return "", err
	}
	switch submit.Action {
	case hooks.ActionDeny:
		return "", fmt.Errorf("prompt denied: %s", submit.Reason)
	case hooks.ActionModify:
		if p, ok := submit.Data["prompt"].(string); ok && p != "" {
			prompt = p
		}
	case hooks.ActionInjectContext:
		if submit.ContextInjection != "" {
			role := submit.ContextInjectionRole
			if role == "" {
				role = types.RoleDeveloper
			}
			if err := env.Context.AddMessage(ctx, types.Message{Role: role, Content: submit.ContextInjection}); err != nil {
				return "", err
			}
		}
	}

	if err := env.Context.AddMessage(ctx, types.Message{
		Role:      types.RoleUser,
		Content:   prompt,
		Timestamp: time.Now(),
	}); err != nil {
		return "", err
	}

	if len(env.Providers) == 0 {
		return "", ErrNoProviders
	}
	provider := env.Providers[0]

	var total types.Usage
	for turn := 0; turn < l.maxTurns; turn++ {
		msgs, err := env.Context.GetMessagesForRequest(ctx, provider.Name())
		if err != nil {
			return "", err
		}

		req := &types.ChatRequest{Messages: msgs}
		if env.Tools != nil {
			req.Tools = env.Tools.Schemas()
		}

		resp, err := provider.Complete(ctx, req, nil)
		if err != nil {
			return "", err
		}
		accumulate(&total, &resp.Usage)

		if err := env.Context.AddMessage(ctx, types.Message{
			Role:      types.RoleAssistant,
			Blocks:    resp.Content,
			Timestamp: time.Now(),
		}); err != nil {
			return "", err
		}

		calls := provider.ParseToolCalls(resp)
		if len(calls) == 0 {
			text := resp.Text()
			l.emitComplete(ctx, env, prompt, text, &total, start)
			return text, nil
		}

		for _, call := range calls {
			result := l.runToolCall(ctx, env, call)
			if err := env.Context.AddMessage(ctx, types.Message{
				Role:      types.RoleTool,
				Blocks:    []types.ContentBlock{result},
				Timestamp: time.Now(),
			}); err != nil {
				return "", err
			}
		}

		if _, err := env.Hooks.Emit(ctx, hooks.EventOrchestratorTurnComplete, map[string]interface{}{
			"turn": turn,
		}); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("tool loop did not converge within %d turns", l.maxTurns)
}

// runToolCall gates one tool call through tool:pre, executes it, and emits
// tool:post. The returned block is always a tool_result carrying the
// call's id.
func (l *Loop) runToolCall(ctx context.Context, env *Environment, call types.ContentBlock) types.ContentBlock {
	args := call.Input

	pre, err := env.Hooks.Emit(ctx, hooks.EventToolPre, map[string]interface{}{
		"tool": call.Name,
		"args": args,
	})
	if err != nil {
		return types.ToolResultBlock(call.ID, fmt.Sprintf("tool execution interrupted: %v", err), true)
	}

	switch pre.Action {
	case hooks.ActionDeny:
		// Short-circuit with a synthetic result so the model sees the
		// denial.
		reason := pre.Reason
		if reason == "" {
			reason = "tool call denied by policy"
		}
		l.emitToolPost(ctx, env, call, &types.ToolResult{Success: false, Output: reason})
		return types.ToolResultBlock(call.ID, reason, true)

	case hooks.ActionAskUser:
		approved := l.resolveApproval(ctx, env, call, pre)
		if !approved {
			reason := "tool call denied by user"
			l.emitToolPost(ctx, env, call, &types.ToolResult{Success: false, Output: reason})
			return types.ToolResultBlock(call.ID, reason, true)
		}

	case hooks.ActionModify:
		if modified, ok := pre.Data["args"].(map[string]interface{}); ok {
			args = modified
		}
	}

	result, err := env.Tools.Execute(ctx, call.Name, args)
	if err != nil {
		if isCancellation(err) {
			return types.ToolResultBlock(call.ID, "tool execution cancelled", true)
		}
		// A raising tool becomes a failed result and the loop continues.
		l.logger.Warn("tool raised",
			zap.String("tool", call.Name),
			zap.Error(err),
		)
		if _, emitErr := env.Hooks.Emit(ctx, hooks.EventToolError, map[string]interface{}{
			"tool":  call.Name,
			"error": err.Error(),
		}); emitErr != nil {
			l.logger.Warn("tool:error emission interrupted", zap.Error(emitErr))
		}
		result = &types.ToolResult{Success: false, Output: err.Error()}
	}

	l.emitToolPost(ctx, env, call, result)
	return types.ToolResultBlock(call.ID, result.Output, !result.Success)
}

// resolveApproval surfaces an ask_user gate through the approval hook
// channel and blocks on the aggregate answer. With no approval handlers
// registered the call proceeds.
func (l *Loop) resolveApproval(ctx context.Context, env *Environment, call types.ContentBlock, pre *hooks.Result) bool {
	res, err := env.Hooks.Emit(ctx, hooks.EventApprovalRequired, map[string]interface{}{
		"tool":    call.Name,
		"prompt":  pre.ApprovalPrompt,
		"options": pre.ApprovalOptions,
		"default": pre.ApprovalDefault,
	})
	if err != nil {
		return false
	}
	if res.Action == hooks.ActionDeny {
		l.emit(ctx, env, hooks.EventApprovalDenied, map[string]interface{}{"tool": call.Name})
		return false
	}
	l.emit(ctx, env, hooks.EventApprovalGranted, map[string]interface{}{"tool": call.Name})
	return true
}

func (l *Loop) emitToolPost(ctx context.Context, env *Environment, call types.ContentBlock, result *types.ToolResult) {
	l.emit(ctx, env, hooks.EventToolPost, map[string]interface{}{
		"tool":    call.Name,
		"success": result.Success,
		"result":  result.Output,
	})
}

func (l *Loop) emitComplete(ctx context.Context, env *Environment, prompt, response string, usage *types.Usage, start time.Time) {
	l.emit(ctx, env, hooks.EventPromptComplete, map[string]interface{}{
		"prompt":        prompt,
		"response":      response,
		"duration_ms":   time.Since(start).Milliseconds(),
		"input_tokens":  usage.InputTokens,
		"output_tokens": usage.OutputTokens,
	})
}

func (l *Loop) emit(ctx context.Context, env *Environment, event string, data map[string]interface{}) {
	if _, err := env.Hooks.Emit(ctx, event, data); err != nil {
		l.logger.Warn("hook emission interrupted", zap.String("event", event), zap.Error(err))
	}
}

func accumulate(total, u *types.Usage) {
	total.InputTokens += u.InputTokens
	total.OutputTokens += u.OutputTokens
	total.TotalTokens += u.TotalTokens
	total.CacheReadTokens += u.CacheReadTokens
	total.CacheWriteTokens += u.CacheWriteTokens
	total.ReasoningTokens += u.ReasoningTokens
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

var _ Orchestrator = (*Loop)(nil)
