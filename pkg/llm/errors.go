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

// Package llm defines the provider-neutral error taxonomy and retry policy
// shared by all provider adapters. Adapters translate native wire errors
// into these types; the adapter is the only layer that retries.
package llm

import (
	"errors"
	"fmt"
	"time"
)

// LLMError is the base kernel error for LLM provider failures. Every
// translated error preserves the original cause via Unwrap. The subtypes
// embed it by name so the promoted Error method stays visible.
type LLMError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Message    string
	Cause      error
}

func (e *LLMError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s", e.Provider, msg)
	}
	return msg
}

func (e *LLMError) Unwrap() error { return e.Cause }

// RateLimitError indicates HTTP 429. Retryable.
type RateLimitError struct {
	LLMError

	// RetryAfter is the server-requested delay, zero when absent.
	RetryAfter time.Duration
}

func (e *RateLimitError) Unwrap() error { return &e.LLMError }

// AuthenticationError indicates HTTP 401/403. Not retryable.
type AuthenticationError struct{ LLMError }

func (e *AuthenticationError) Unwrap() error { return &e.LLMError }

// ContextLengthError indicates the prompt exceeded the model's context
// window. Not retryable.
type ContextLengthError struct{ LLMError }

func (e *ContextLengthError) Unwrap() error { return &e.LLMError }

// ContentFilterError indicates the request was blocked by a safety filter.
// Not retryable.
type ContentFilterError struct{ LLMError }

func (e *ContentFilterError) Unwrap() error { return &e.LLMError }

// InvalidRequestError indicates a malformed request (other HTTP 400). Not
// retryable.
type InvalidRequestError struct{ LLMError }

func (e *InvalidRequestError) Unwrap() error { return &e.LLMError }

// ProviderUnavailableError indicates HTTP 5xx or service unavailability.
// Retryable.
type ProviderUnavailableError struct{ LLMError }

func (e *ProviderUnavailableError) Unwrap() error { return &e.LLMError }

// TimeoutError indicates a client or server timeout. Retryable.
type TimeoutError struct{ LLMError }

func (e *TimeoutError) Unwrap() error { return &e.LLMError }

// NewRateLimitError builds a retryable rate-limit error.
func NewRateLimitError(provider string, statusCode int, retryAfter time.Duration, cause error) *RateLimitError {
	return &RateLimitError{
		LLMError: LLMError{
			Provider:   provider,
			StatusCode: statusCode,
			Retryable:  true,
			Message:    "rate limited",
			Cause:      cause,
		},
		RetryAfter: retryAfter,
	}
}

// NewAuthenticationError builds a non-retryable authentication error.
func NewAuthenticationError(provider string, statusCode int, cause error) *AuthenticationError {
	return &AuthenticationError{LLMError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    "authentication failed",
		Cause:      cause,
	}}
}

// NewContextLengthError builds a non-retryable context-length error.
func NewContextLengthError(provider string, statusCode int, cause error) *ContextLengthError {
	return &ContextLengthError{LLMError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    "context length exceeded",
		Cause:      cause,
	}}
}

// NewContentFilterError builds a non-retryable content-filter error.
func NewContentFilterError(provider string, statusCode int, cause error) *ContentFilterError {
	return &ContentFilterError{LLMError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    "content filtered",
		Cause:      cause,
	}}
}

// NewInvalidRequestError builds a non-retryable invalid-request error.
func NewInvalidRequestError(provider string, statusCode int, cause error) *InvalidRequestError {
	return &InvalidRequestError{LLMError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    "invalid request",
		Cause:      cause,
	}}
}

// NewProviderUnavailableError builds a retryable availability error.
func NewProviderUnavailableError(provider string, statusCode int, cause error) *ProviderUnavailableError {
	return &ProviderUnavailableError{LLMError{
		Provider:   provider,
		StatusCode: statusCode,
		Retryable:  true,
		Message:    "provider unavailable",
		Cause:      cause,
	}}
}

// NewTimeoutError builds a retryable timeout error.
func NewTimeoutError(provider string, cause error) *TimeoutError {
	return &TimeoutError{LLMError{
		Provider:  provider,
		Retryable: true,
		Message:   "request timed out",
		Cause:     cause,
	}}
}

// NewError builds a generic retryable kernel error for unclassified
// failures.
func NewError(provider string, cause error) *LLMError {
	return &LLMError{
		Provider:  provider,
		Retryable: true,
		Message:   "llm call failed",
		Cause:     cause,
	}
}

// IsRetryable reports whether err (or any error in its chain) is a kernel
// error marked retryable. Unknown errors are not retryable.
func IsRetryable(err error) bool {
	var kernel *LLMError
	if errors.As(err, &kernel) {
		return kernel.Retryable
	}
	return false
}

// RetryAfterOf extracts the server-requested retry delay from a rate-limit
// error, or zero.
func RetryAfterOf(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// ErrorType returns a short machine-readable name for the kernel error
// class, used in provider:retry event payloads.
func ErrorType(err error) string {
	switch {
	case isAs[*RateLimitError](err):
		return "rate_limit"
	case isAs[*AuthenticationError](err):
		return "authentication"
	case isAs[*ContextLengthError](err):
		return "context_length"
	case isAs[*ContentFilterError](err):
		return "content_filter"
	case isAs[*InvalidRequestError](err):
		return "invalid_request"
	case isAs[*ProviderUnavailableError](err):
		return "provider_unavailable"
	case isAs[*TimeoutError](err):
		return "timeout"
	case isAs[*LLMError](err):
		return "llm_error"
	default:
		return "unknown"
	}
}

func isAs[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// Every subtype must keep satisfying error through the embedded base.
var (
	_ error = (*LLMError)(nil)
	_ error = (*RateLimitError)(nil)
	_ error = (*AuthenticationError)(nil)
	_ error = (*ContextLengthError)(nil)
	_ error = (*ContentFilterError)(nil)
	_ error = (*InvalidRequestError)(nil)
	_ error = (*ProviderUnavailableError)(nil)
	_ error = (*TimeoutError)(nil)
)
