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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/amplifier-labs/amplifier/pkg/types"
)

// convertMessages converts internal messages to Anthropic wire format.
// System and developer messages collapse into a single system string
// separated by blank lines; tool-role messages merge into a user message
// carrying tool_result blocks. Block order within a message is preserved.
func convertMessages(messages []types.Message) (string, []Message) {
	var systemParts []string
	var apiMessages []Message

	appendMessage := func(role string, content []ContentBlock) {
		if len(content) == 0 {
			return
		}
		apiMessages = append(apiMessages, Message{Role: role, Content: content})
	}

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem, types.RoleDeveloper:
			if text := msg.Text(); text != "" {
				systemParts = append(systemParts, text)
			}

		case types.RoleUser:
			appendMessage("user", convertUserBlocks(msg))

		case types.RoleAssistant:
			appendMessage("assistant", convertAssistantBlocks(msg))

		case types.RoleTool:
			results := convertToolResults(msg)
			// Tool results ride in a user message. Consecutive tool
			// messages share one.
			if n := len(apiMessages); n > 0 && apiMessages[n-1].Role == "user" && isToolResultOnly(apiMessages[n-1]) {
				apiMessages[n-1].Content = append(apiMessages[n-1].Content, results...)
			} else {
				appendMessage("user", results)
			}
		}
	}

	return strings.Join(systemParts, "\n\n"), apiMessages
}

func convertUserBlocks(msg types.Message) []ContentBlock {
	if len(msg.Blocks) == 0 {
		if msg.Content == "" {
			return nil
		}
		return []ContentBlock{{Type: "text", Text: msg.Content}}
	}
	var content []ContentBlock
	for _, block := range msg.Blocks {
		switch block.Type {
		case types.BlockText:
			content = append(content, ContentBlock{Type: "text", Text: block.Text})
		case types.BlockImage:
			if block.Image != nil {
				content = append(content, ContentBlock{
					Type: "image",
					Source: &ImageSource{
						Type:      block.Image.Type,
						MediaType: block.Image.MediaType,
						Data:      block.Image.Data,
					},
				})
			}
		case types.BlockToolResult:
			content = append(content, toolResultBlock(block))
		}
	}
	return content
}

// convertAssistantBlocks keeps the assistant's block order, echoing prior
// thinking blocks back verbatim.
func convertAssistantBlocks(msg types.Message) []ContentBlock {
	if len(msg.Blocks) == 0 {
		if msg.Content == "" {
			return nil
		}
		return []ContentBlock{{Type: "text", Text: msg.Content}}
	}
	var content []ContentBlock
	for _, block := range msg.Blocks {
		switch block.Type {
		case types.BlockText:
			content = append(content, ContentBlock{Type: "text", Text: block.Text})
		case types.BlockThinking:
			content = append(content, ContentBlock{Type: "thinking", Thinking: block.Text})
		case types.BlockToolCall:
			input := block.Input
			if input == nil {
				input = map[string]interface{}{}
			}
			content = append(content, ContentBlock{
				Type:  "tool_use",
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}
	return content
}

func convertToolResults(msg types.Message) []ContentBlock {
	var content []ContentBlock
	for _, block := range msg.Blocks {
		if block.Type == types.BlockToolResult {
			content = append(content, toolResultBlock(block))
		}
	}
	return content
}

func toolResultBlock(block types.ContentBlock) ContentBlock {
	return ContentBlock{
		Type:      "tool_result",
		ToolUseID: block.ToolCallID,
		Content:   stringifyOutput(block.Output),
		IsError:   block.IsError,
	}
}

func isToolResultOnly(msg Message) bool {
	for _, b := range msg.Content {
		if b.Type != "tool_result" {
			return false
		}
	}
	return len(msg.Content) > 0
}

// stringifyOutput renders a tool output payload for the wire: strings pass
// through, structured values are JSON-encoded.
func stringifyOutput(output interface{}) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// convertTools renders tool schemas for the request.
func convertTools(tools []types.ToolSchema) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]interface{}{"type": "object"}
		}
		out = append(out, Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return out
}

// convertResponse converts an Anthropic response to the neutral form,
// retaining provider-native usage counters as opaque extras.
func convertResponse(resp *MessagesResponse) *types.ChatResponse {
	out := &types.ChatResponse{
		StopReason: resp.StopReason,
		Model:      resp.Model,
		Usage:      convertUsage(resp.Usage),
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content = append(out.Content, types.TextBlock(block.Text))
		case "thinking":
			out.Content = append(out.Content, types.ThinkingBlock(block.Thinking))
		case "tool_use":
			out.Content = append(out.Content, types.ToolCallBlock(block.ID, block.Name, block.Input))
		}
	}
	return out
}

func convertUsage(u Usage) types.Usage {
	return types.Usage{
		InputTokens:      u.InputTokens,
		OutputTokens:     u.OutputTokens,
		TotalTokens:      u.InputTokens + u.OutputTokens,
		CacheReadTokens:  u.CacheReadInputTokens,
		CacheWriteTokens: u.CacheCreationInputTokens,
		Extra: map[string]interface{}{
			"cache_read_input_tokens":     u.CacheReadInputTokens,
			"cache_creation_input_tokens": u.CacheCreationInputTokens,
		},
	}
}
