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
	"github.com/amplifier-labs/amplifier/pkg/types"
)

// repairedOutput is the synthetic result spliced for a dangling tool call.
const repairedOutput = "<no result recorded>"

// repairInfo describes one spliced synthetic tool result.
type repairInfo struct {
	ToolCallID string
	ToolName   string
}

// repairToolSequences scans for tool_call blocks whose id never appears as
// a tool_call_id in a later message, and splices a synthetic error
// tool_result immediately after the originating assistant message. Every
// dangling id is repaired on every pass (the upstream store may not persist
// the splice), but only ids not in seen are returned as fresh repairs.
func repairToolSequences(messages []types.Message, seen map[string]bool) ([]types.Message, []repairInfo) {
	answered := make(map[string]bool)
	for _, msg := range messages {
		for _, block := range msg.Blocks {
			if block.Type == types.BlockToolResult {
				answered[block.ToolCallID] = true
			}
		}
	}

	var out []types.Message
	var fresh []repairInfo
	for _, msg := range messages {
		out = append(out, msg)
		if msg.Role != types.RoleAssistant {
			continue
		}
		var splice []types.ContentBlock
		for _, block := range msg.Blocks {
			if block.Type != types.BlockToolCall || answered[block.ID] {
				continue
			}
			splice = append(splice, types.ToolResultBlock(block.ID, repairedOutput, true))
			if !seen[block.ID] {
				seen[block.ID] = true
				fresh = append(fresh, repairInfo{ToolCallID: block.ID, ToolName: block.Name})
			}
		}
		if len(splice) > 0 {
			out = append(out, types.Message{Role: types.RoleTool, Blocks: splice})
		}
	}
	return out, fresh
}
