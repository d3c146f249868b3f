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

// Package subsession spawns child sessions: W3C-style lineage ids and
// provider-preference application over mount plans.
package subsession

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

const zeroSpan = "0000000000000000"

var (
	idPattern      = regexp.MustCompile(`^([0-9a-f]{16})-([0-9a-f]{16})_([a-z0-9-]+)$`)
	tracePattern   = regexp.MustCompile(`^[0-9a-f]{32}$`)
	nonAlnumRun    = regexp.MustCompile(`[^a-z0-9]+`)
	leadingTrimSet = "-."
)

// GenerateSubSessionID produces a child session id of the form
// {parent-span}-{child-span}_{name}. The parent span carries lineage: a
// parent session id contributes its own child span, a 32-char trace id
// contributes its middle 16 chars, and with neither the span is zeros. The
// child span is fresh randomness on every call.
func GenerateSubSessionID(agentName, parentSessionID, parentTraceID string) string {
	parentSpan := zeroSpan
	if m := idPattern.FindStringSubmatch(parentSessionID); m != nil {
		parentSpan = m[2]
	} else if tracePattern.MatchString(parentTraceID) {
		parentSpan = parentTraceID[8:24]
	}
	return parentSpan + "-" + newSpan() + "_" + sanitizeAgentName(agentName)
}

// ParseSubSessionID splits a sub-session id into parent span, child span,
// and agent name. ok is false when the id does not carry lineage.
func ParseSubSessionID(id string) (parentSpan, childSpan, name string, ok bool) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return "", "", "", false
	}
	return m[1], m[2], m[3], true
}

func newSpan() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// sanitizeAgentName makes an agent name filesystem-safe: lowercase, runs
// of non-alphanumerics collapsed to "-", leading "-" and "." trimmed.
func sanitizeAgentName(name string) string {
	s := nonAlnumRun.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.TrimLeft(s, leadingTrimSet)
	if s == "" {
		return "agent"
	}
	return s
}
