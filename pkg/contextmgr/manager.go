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

// Package contextmgr provides the reference in-memory context manager:
// ordered message history, tiktoken-based token accounting, and threshold
// compaction that keeps the leading system messages and a recent tail.
package contextmgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/amplifier-labs/amplifier/pkg/hooks"
	"github.com/amplifier-labs/amplifier/pkg/types"
)

const (
	// DefaultMaxTokens is the compaction budget when none is configured.
	DefaultMaxTokens = 100000

	// DefaultKeepRecent is how many trailing messages survive compaction.
	DefaultKeepRecent = 20

	// compactThreshold triggers compaction when the token count crosses
	// this fraction of the budget.
	compactThreshold = 0.85

	encodingName = "cl100k_base"
)

// Manager is the reference in-memory context manager.
type Manager struct {
	mu       sync.Mutex
	messages []types.Message

	maxTokens   int
	keepRecent  int
	autoCompact bool
	hooks       *hooks.Registry
	encoder     *tiktoken.Tiktoken
	logger      *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxTokens sets the token budget used by compaction decisions.
func WithMaxTokens(n int) Option {
	return func(m *Manager) { m.maxTokens = n }
}

// WithKeepRecent sets how many trailing messages compaction retains.
func WithKeepRecent(n int) Option {
	return func(m *Manager) { m.keepRecent = n }
}

// WithAutoCompact makes GetMessagesForRequest compact when over threshold.
func WithAutoCompact(on bool) Option {
	return func(m *Manager) { m.autoCompact = on }
}

// WithHooks wires the registry that receives context:pre_compact and
// context:post_compact events.
func WithHooks(r *hooks.Registry) Option {
	return func(m *Manager) { m.hooks = r }
}

// New creates a context manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		maxTokens:  DefaultMaxTokens,
		keepRecent: DefaultKeepRecent,
		logger:     zap.L().Named("contextmgr"),
	}
	for _, opt := range opts {
		opt(m)
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		// Token counts fall back to a length heuristic.
		m.logger.Warn("tiktoken encoding unavailable", zap.Error(err))
	} else {
		m.encoder = enc
	}
	return m
}

// AddMessage appends a message. History order is preserved; nothing is
// dropped silently.
func (m *Manager) AddMessage(ctx context.Context, msg types.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// GetMessages returns a copy of the full history.
func (m *Manager) GetMessages(ctx context.Context) ([]types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Message(nil), m.messages...), nil
}

// GetMessagesForRequest returns the history view to send to a provider,
// compacting first when auto-compaction is on and the budget is crossed.
func (m *Manager) GetMessagesForRequest(ctx context.Context, provider string) ([]types.Message, error) {
	if m.autoCompact && m.ShouldCompact(m.TokenCount(), m.maxTokens) {
		if err := m.Compact(ctx); err != nil {
			return nil, err
		}
	}
	return m.GetMessages(ctx)
}

// Clear removes all messages.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	return nil
}

// TokenCount estimates the token footprint of the current history.
func (m *Manager) TokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for i := range m.messages {
		total += m.countMessage(&m.messages[i])
	}
	return total
}

func (m *Manager) countMessage(msg *types.Message) int {
	text := msg.Text()
	for _, b := range msg.Blocks {
		if b.Type == types.BlockThinking {
			text += b.Text
		}
		if b.Type == types.BlockToolResult {
			text += fmt.Sprint(b.Output)
		}
	}
	if m.encoder != nil {
		return len(m.encoder.Encode(text, nil, nil)) + 4
	}
	return len(text)/4 + 4
}

// ShouldCompact reports whether the token count crosses the compaction
// threshold of the budget.
func (m *Manager) ShouldCompact(tokenCount, budget int) bool {
	if budget <= 0 {
		return false
	}
	return float64(tokenCount) >= float64(budget)*compactThreshold
}

// Compact elides the middle of the history, keeping the leading
// system/developer messages and the most recent tail, and splices in a
// note recording how many messages were dropped. Hook handlers observe
// context:pre_compact and context:post_compact around the operation.
func (m *Manager) Compact(ctx context.Context) error {
	before := m.TokenCount()
	m.emit(ctx, hooks.EventContextPreCompact, map[string]interface{}{
		"token_count":   before,
		"message_count": m.Len(),
	})

	m.mu.Lock()
	head := 0
	for head < len(m.messages) {
		role := m.messages[head].Role
		if role != types.RoleSystem && role != types.RoleDeveloper {
			break
		}
		head++
	}

	tailStart := len(m.messages) - m.keepRecent
	if tailStart <= head {
		m.mu.Unlock()
		m.emit(ctx, hooks.EventContextPostCompact, map[string]interface{}{
			"token_count": before,
			"elided":      0,
		})
		return nil
	}

	elided := tailStart - head
	compacted := make([]types.Message, 0, head+1+m.keepRecent)
	compacted = append(compacted, m.messages[:head]...)
	compacted = append(compacted, types.Message{
		Role:    types.RoleDeveloper,
		Content: fmt.Sprintf("[%d earlier messages elided during context compaction]", elided),
	})
	compacted = append(compacted, m.messages[tailStart:]...)
	m.messages = compacted
	m.mu.Unlock()

	after := m.TokenCount()
	m.logger.Info("context compacted",
		zap.Int("elided_messages", elided),
		zap.Int("tokens_before", before),
		zap.Int("tokens_after", after),
	)
	m.emit(ctx, hooks.EventContextPostCompact, map[string]interface{}{
		"token_count": after,
		"elided":      elided,
	})
	return nil
}

// Len returns the current message count.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *Manager) emit(ctx context.Context, event string, data map[string]interface{}) {
	if m.hooks == nil {
		return
	}
	if _, err := m.hooks.Emit(ctx, event, data); err != nil {
		m.logger.Warn("compaction hook interrupted", zap.String("event", event), zap.Error(err))
	}
}

var (
	_ types.ContextManager = (*Manager)(nil)
	_ types.Compactor      = (*Manager)(nil)
)
