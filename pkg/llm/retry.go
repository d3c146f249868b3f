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
package llm

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls the retry policy for provider calls.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Total attempts = MaxRetries + 1.
	MaxRetries int

	// MinRetryDelay is the base delay for exponential backoff.
	MinRetryDelay time.Duration

	// MaxRetryDelay caps the backoff delay. A server-requested Retry-After
	// larger than this fails fast without sleeping.
	MaxRetryDelay time.Duration

	// Jitter adds up to 25% random slack to computed delays.
	Jitter bool
}

// DefaultRetryConfig returns the policy used by the reference adapter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		MinRetryDelay: 1 * time.Second,
		MaxRetryDelay: 60 * time.Second,
		Jitter:        true,
	}
}

// RetryNotifier observes each scheduled retry. Adapters use it to emit
// provider:retry events.
type RetryNotifier func(attempt int, delay time.Duration, errType string)

// Delay computes the backoff delay for the given zero-based attempt.
func (c RetryConfig) Delay(attempt int) time.Duration {
	delay := c.MinRetryDelay << uint(attempt)
	if delay > c.MaxRetryDelay || delay <= 0 {
		delay = c.MaxRetryDelay
	}
	if c.Jitter {
		delay += time.Duration(rand.Int63n(int64(delay)/4 + 1))
	}
	return delay
}

// CallWithRetry runs fn under the retry policy. Non-retryable errors raise
// immediately without consuming attempts. A Retry-After above MaxRetryDelay
// fails fast. Cancellation is checked between attempts and during each
// sleep. Exhausted retries re-raise the last kernel error unchanged.
func CallWithRetry[T any](ctx context.Context, cfg RetryConfig, notify RetryNotifier, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				zap.L().Info("llm retry succeeded", zap.Int("attempt", attempt+1))
			}
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		delay := cfg.Delay(attempt)
		if ra := RetryAfterOf(err); ra > 0 {
			if ra > cfg.MaxRetryDelay {
				// Server asked us to wait longer than policy allows.
				return zero, err
			}
			delay = ra
		}

		if notify != nil {
			notify(attempt+1, delay, ErrorType(err))
		}
		zap.L().Warn("llm call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", cfg.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	zap.L().Error("llm retries exhausted",
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Error(lastErr),
	)
	return zero, lastErr
}
