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
package bundle

import "fmt"

// NotFoundError reports a bundle that could not be located at its URI.
type NotFoundError struct {
	URI   string
	Cause error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("bundle not found: %s: %v", e.URI, e.Cause)
}

func (e *NotFoundError) Unwrap() error { return e.Cause }

// LoadError reports a bundle that was located but could not be parsed.
type LoadError struct {
	URI   string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load bundle %s: %v", e.URI, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// ValidationError reports a structural invariant violation, naming the
// offending field and value.
type ValidationError struct {
	Field string
	Value interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid bundle: field %q has invalid value %v", e.Field, e.Value)
}

// DependencyError reports a broken include graph: a circular include chain
// or a missing transitive bundle.
type DependencyError struct {
	URI   string
	Chain []string
	Cause error
}

func (e *DependencyError) Error() string {
	if len(e.Chain) > 0 {
		return fmt.Sprintf("bundle dependency error at %s (chain %v): %v", e.URI, e.Chain, e.Cause)
	}
	return fmt.Sprintf("bundle dependency error at %s: %v", e.URI, e.Cause)
}

func (e *DependencyError) Unwrap() error { return e.Cause }
