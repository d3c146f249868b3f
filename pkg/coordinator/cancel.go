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
package coordinator

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// CancellationToken carries a session's cancellation state and the
// callbacks to fire when it trips. Cancellation always wins: a callback
// raising cancellation is recorded but never stops the remaining
// callbacks.
type CancellationToken struct {
	mu        sync.Mutex
	cancelled bool
	cause     error
	callbacks []func() error
	done      chan struct{}
}

// NewCancellationToken creates an untripped token.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{done: make(chan struct{})}
}

// Done returns a channel closed when the token is cancelled, for use in
// select statements at I/O sites.
func (t *CancellationToken) Done() <-chan struct{} { return t.done }

// Cancelled reports whether the token has tripped.
func (t *CancellationToken) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Cause returns the cancellation cause, or nil when not cancelled.
func (t *CancellationToken) Cause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}

// Err returns context.Canceled once the token has tripped, so callers can
// propagate a conventional cancellation error.
func (t *CancellationToken) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cancelled {
		return nil
	}
	if t.cause != nil {
		return t.cause
	}
	return context.Canceled
}

// OnCancel registers a callback to run when the token trips. Registering
// on an already-cancelled token fires the callback immediately.
func (t *CancellationToken) OnCancel(fn func() error) {
	t.mu.Lock()
	if !t.cancelled {
		t.callbacks = append(t.callbacks, fn)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	if err := fn(); err != nil && !isInterrupt(err) {
		zap.L().Named("coordinator").Warn("cancellation callback failed", zap.Error(err))
	}
}

// Cancel trips the token with the default cause.
func (t *CancellationToken) Cancel() { t.CancelWith(context.Canceled) }

// CancelWith trips the token, records the cause, and fires every
// registered callback. Callback errors never stop the remaining
// callbacks; non-cancellation failures are logged.
func (t *CancellationToken) CancelWith(cause error) {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	t.cause = cause
	callbacks := t.callbacks
	t.callbacks = nil
	close(t.done)
	t.mu.Unlock()

	for _, fn := range callbacks {
		if err := fn(); err != nil && !isInterrupt(err) {
			zap.L().Named("coordinator").Warn("cancellation callback failed", zap.Error(err))
		}
	}
}
