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
package sources

import "fmt"

// NotFoundError indicates a source URI that resolved to nothing.
type NotFoundError struct {
	URI   string
	Cause error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("source not found: %s", e.URI)
}

func (e *NotFoundError) Unwrap() error { return e.Cause }

// NetworkError indicates a transient fetch failure. Retryable.
type NetworkError struct {
	URI   string
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URI, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// InvalidArchiveError indicates a corrupt or unreadable archive.
type InvalidArchiveError struct {
	URI   string
	Cause error
}

func (e *InvalidArchiveError) Error() string {
	return fmt.Sprintf("invalid archive %s: %v", e.URI, e.Cause)
}

func (e *InvalidArchiveError) Unwrap() error { return e.Cause }

// PermissionDeniedError indicates the source exists but is not readable.
type PermissionDeniedError struct {
	URI   string
	Cause error
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied for %s", e.URI)
}

func (e *PermissionDeniedError) Unwrap() error { return e.Cause }
