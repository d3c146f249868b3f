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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifier-labs/amplifier/pkg/types"
)

func TestConvertMessages_SystemCollapse(t *testing.T) {
	system, msgs := convertMessages([]types.Message{
		{Role: types.RoleSystem, Content: "Be precise."},
		{Role: types.RoleDeveloper, Content: "Prefer short answers."},
		{Role: types.RoleUser, Content: "hi"},
	})

	assert.Equal(t, "Be precise.\n\nPrefer short answers.", system)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content[0].Text)
}

func TestConvertMessages_ToolResultsMergeIntoUser(t *testing.T) {
	_, msgs := convertMessages([]types.Message{
		{Role: types.RoleUser, Content: "run it"},
		{Role: types.RoleAssistant, Blocks: []types.ContentBlock{
			types.ToolCallBlock("call_1", "search", map[string]interface{}{"q": "x"}),
			types.ToolCallBlock("call_2", "read", nil),
		}},
		{Role: types.RoleTool, Blocks: []types.ContentBlock{
			types.ToolResultBlock("call_1", "found it", false),
		}},
		{Role: types.RoleTool, Blocks: []types.ContentBlock{
			types.ToolResultBlock("call_2", "boom", true),
		}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "tool_use", msgs[1].Content[0].Type)

	// Both tool messages fold into one user message, is_error preserved.
	merged := msgs[2]
	assert.Equal(t, "user", merged.Role)
	require.Len(t, merged.Content, 2)
	assert.Equal(t, "tool_result", merged.Content[0].Type)
	assert.Equal(t, "call_1", merged.Content[0].ToolUseID)
	assert.False(t, merged.Content[0].IsError)
	assert.Equal(t, "call_2", merged.Content[1].ToolUseID)
	assert.True(t, merged.Content[1].IsError)
	assert.Equal(t, "boom", merged.Content[1].Content)
}

func TestConvertMessages_BlockOrderPreserved(t *testing.T) {
	_, msgs := convertMessages([]types.Message{
		{Role: types.RoleAssistant, Blocks: []types.ContentBlock{
			types.ThinkingBlock("pondering"),
			types.TextBlock("answer:"),
			types.ToolCallBlock("call_1", "calc", map[string]interface{}{"n": 1}),
		}},
	})

	require.Len(t, msgs, 1)
	content := msgs[0].Content
	require.Len(t, content, 3)
	assert.Equal(t, "thinking", content[0].Type)
	assert.Equal(t, "pondering", content[0].Thinking)
	assert.Equal(t, "text", content[1].Type)
	assert.Equal(t, "tool_use", content[2].Type)
}

func TestConvertMessages_ImageBlocks(t *testing.T) {
	_, msgs := convertMessages([]types.Message{
		{Role: types.RoleUser, Blocks: []types.ContentBlock{
			types.TextBlock("what is this?"),
			{Type: types.BlockImage, Image: &types.ImageSource{
				Type: "base64", MediaType: "image/png", Data: "aGk=",
			}},
		}},
	})

	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Content, 2)
	img := msgs[0].Content[1]
	assert.Equal(t, "image", img.Type)
	require.NotNil(t, img.Source)
	assert.Equal(t, "image/png", img.Source.MediaType)
}

func TestConvertResponse_Usage(t *testing.T) {
	resp := convertResponse(&MessagesResponse{
		Model:      "claude-sonnet-4-5-20250929",
		StopReason: "tool_use",
		Content: []ContentBlock{
			{Type: "text", Text: "calling"},
			{Type: "tool_use", ID: "call_1", Name: "calc", Input: map[string]interface{}{"n": float64(2)}},
		},
		Usage: Usage{
			InputTokens:              100,
			OutputTokens:             20,
			CacheReadInputTokens:     40,
			CacheCreationInputTokens: 10,
		},
	})

	assert.Equal(t, "calling", resp.Text())
	require.Len(t, resp.ToolCalls(), 1)
	assert.Equal(t, "call_1", resp.ToolCalls()[0].ID)
	assert.Equal(t, 120, resp.Usage.TotalTokens)
	assert.Equal(t, 40, resp.Usage.CacheReadTokens)
	assert.Equal(t, 10, resp.Usage.CacheWriteTokens)
	assert.Equal(t, 40, resp.Usage.Extra["cache_read_input_tokens"])
}

func TestStringifyOutput(t *testing.T) {
	assert.Equal(t, "plain", stringifyOutput("plain"))
	assert.Equal(t, "", stringifyOutput(nil))
	assert.Equal(t, `{"rows":3}`, stringifyOutput(map[string]interface{}{"rows": 3}))
}

func TestRepairToolSequences(t *testing.T) {
	seen := make(map[string]bool)
	messages := []types.Message{
		{Role: types.RoleUser, Content: "go"},
		{Role: types.RoleAssistant, Blocks: []types.ContentBlock{
			types.ToolCallBlock("call_1", "search", nil),
		}},
		{Role: types.RoleUser, Content: "continue"},
	}

	repaired, fresh := repairToolSequences(messages, seen)
	require.Len(t, fresh, 1)
	assert.Equal(t, "call_1", fresh[0].ToolCallID)
	assert.Equal(t, "search", fresh[0].ToolName)

	// Synthetic result spliced immediately after the assistant message.
	require.Len(t, repaired, 4)
	splice := repaired[2]
	assert.Equal(t, types.RoleTool, splice.Role)
	assert.Equal(t, "call_1", splice.Blocks[0].ToolCallID)
	assert.True(t, splice.Blocks[0].IsError)

	// Second pass still splices but reports nothing new.
	repaired, fresh = repairToolSequences(messages, seen)
	assert.Len(t, repaired, 4)
	assert.Empty(t, fresh)

	// An answered call needs no repair.
	answered := append(messages, types.Message{
		Role:   types.RoleTool,
		Blocks: []types.ContentBlock{types.ToolResultBlock("call_1", "ok", false)},
	})
	repaired, fresh = repairToolSequences(answered, make(map[string]bool))
	assert.Len(t, repaired, 4)
	assert.Empty(t, fresh)
}
