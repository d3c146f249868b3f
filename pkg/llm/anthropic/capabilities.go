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
package anthropic

import (
	"strconv"
	"strings"
)

// thinkingHeadroom is the output-token room kept above the default
// thinking budget so a thinking-enabled request can still produce text.
// Every capability record satisfies DefaultThinkingBudget + thinkingHeadroom
// <= MaxOutputTokens.
const thinkingHeadroom = 4096

// lowEffortBudget is the thinking budget for reasoning_effort=low.
const lowEffortBudget = 4096

// ModelCapabilities describes what one Claude model supports, derived from
// its model id.
type ModelCapabilities struct {
	Family                   string
	Major                    int
	Minor                    int
	MaxOutputTokens          int
	SupportsThinking         bool
	SupportsAdaptiveThinking bool
	DefaultThinkingBudget    int
	Supports1MContext        bool
}

// DetectCapabilities derives a capability record from a model id. Both id
// layouts are understood: version-first ("claude-3-5-sonnet-20241022") and
// family-first ("claude-sonnet-4-5-20250929"). Unknown models get a
// conservative record with thinking disabled.
func DetectCapabilities(model string) ModelCapabilities {
	family, major, minor := parseModelID(model)
	caps := ModelCapabilities{Family: family, Major: major, Minor: minor}

	switch family {
	case "opus":
		caps.MaxOutputTokens = 32000
		caps.SupportsThinking = major >= 4
		caps.SupportsAdaptiveThinking = versionAtLeast(major, minor, 4, 1)
		if caps.SupportsThinking {
			caps.DefaultThinkingBudget = 16384
		}
	case "sonnet":
		caps.MaxOutputTokens = 64000
		caps.SupportsThinking = versionAtLeast(major, minor, 3, 7)
		caps.SupportsAdaptiveThinking = versionAtLeast(major, minor, 4, 5)
		caps.Supports1MContext = versionAtLeast(major, minor, 4, 0)
		if caps.SupportsThinking {
			caps.DefaultThinkingBudget = 10000
		}
	case "haiku":
		caps.MaxOutputTokens = 8192
		caps.SupportsThinking = versionAtLeast(major, minor, 4, 5)
		if caps.SupportsThinking {
			caps.MaxOutputTokens = 32000
			caps.DefaultThinkingBudget = 8192
		}
	default:
		caps.MaxOutputTokens = 4096
	}
	return caps
}

func versionAtLeast(major, minor, wantMajor, wantMinor int) bool {
	if major != wantMajor {
		return major > wantMajor
	}
	return minor >= wantMinor
}

// parseModelID extracts family and version from a model id. Version
// numbers are the small numeric tokens adjacent to the family name; 8-digit
// date suffixes are ignored.
func parseModelID(model string) (family string, major, minor int) {
	tokens := strings.Split(strings.ToLower(model), "-")

	familyIdx := -1
	for i, tok := range tokens {
		switch tok {
		case "opus", "sonnet", "haiku":
			family = tok
			familyIdx = i
		}
	}
	if familyIdx < 0 {
		return "", 0, 0
	}

	var nums []int
	// Version-first layout: numbers immediately before the family token.
	for i := familyIdx - 1; i >= 0; i-- {
		n, ok := versionToken(tokens[i])
		if !ok {
			break
		}
		nums = append([]int{n}, nums...)
	}
	// Family-first layout: numbers immediately after.
	if len(nums) == 0 {
		for i := familyIdx + 1; i < len(tokens); i++ {
			n, ok := versionToken(tokens[i])
			if !ok {
				break
			}
			nums = append(nums, n)
		}
	}

	if len(nums) > 0 {
		major = nums[0]
	}
	if len(nums) > 1 {
		minor = nums[1]
	}
	return family, major, minor
}

// versionToken accepts short numeric tokens as version components,
// rejecting 8-digit dates.
func versionToken(tok string) (int, bool) {
	if len(tok) == 0 || len(tok) > 2 {
		return 0, false
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false
	}
	return n, true
}
