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
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/amplifier-labs/amplifier/pkg/hooks"
	"github.com/amplifier-labs/amplifier/pkg/types"
)

// streamBlock accumulates one content block while its deltas arrive.
type streamBlock struct {
	block     ContentBlock
	inputJSON strings.Builder
}

// doStream performs one streaming attempt, surfacing incremental deltas as
// content_block:* events and folding the stream into a single terminal
// response. Block order follows the wire indices.
func (p *Provider) doStream(ctx context.Context, req *MessagesRequest) (*types.ChatResponse, error) {
	httpResp, err := p.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, p.translateHTTP(httpResp, body)
	}

	folded := MessagesResponse{Model: req.Model}
	blocks := make(map[int]*streamBlock)
	var order []int

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &event); err != nil {
			// Malformed events are skipped; the stream continues.
			continue
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				folded.ID = event.Message.ID
				folded.Usage = event.Message.Usage
				if event.Message.Model != "" {
					folded.Model = event.Message.Model
				}
			}

		case "content_block_start":
			if event.ContentBlock == nil {
				continue
			}
			sb := &streamBlock{block: *event.ContentBlock}
			blocks[event.Index] = sb
			order = append(order, event.Index)
			p.emit(ctx, hooks.EventContentBlockStart, map[string]interface{}{
				"provider": providerName,
				"index":    event.Index,
				"type":     event.ContentBlock.Type,
			})

		case "content_block_delta":
			sb, ok := blocks[event.Index]
			if !ok || event.Delta == nil {
				continue
			}
			data := map[string]interface{}{
				"provider": providerName,
				"index":    event.Index,
			}
			switch event.Delta.Type {
			case "text_delta":
				sb.block.Text += event.Delta.Text
				data["text"] = event.Delta.Text
			case "thinking_delta":
				sb.block.Thinking += event.Delta.Thinking
				data["thinking"] = event.Delta.Thinking
			case "input_json_delta":
				sb.inputJSON.WriteString(event.Delta.PartialJSON)
				data["partial_json"] = event.Delta.PartialJSON
			}
			p.emit(ctx, hooks.EventContentBlockDelta, data)

		case "content_block_stop":
			sb, ok := blocks[event.Index]
			if !ok {
				continue
			}
			if sb.inputJSON.Len() > 0 {
				var input map[string]interface{}
				if err := json.Unmarshal([]byte(sb.inputJSON.String()), &input); err == nil {
					sb.block.Input = input
				}
			}
			p.emit(ctx, hooks.EventContentBlockEnd, map[string]interface{}{
				"provider": providerName,
				"index":    event.Index,
			})

		case "message_delta":
			if event.Delta != nil && event.Delta.StopReason != "" {
				folded.StopReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				folded.Usage.OutputTokens = event.Usage.OutputTokens
			}

		case "message_stop":
			if event.Usage != nil {
				mergeUsage(&folded.Usage, event.Usage)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, p.translateTransport(ctx, err)
	}

	for _, idx := range order {
		folded.Content = append(folded.Content, blocks[idx].block)
	}
	return convertResponse(&folded), nil
}

// mergeUsage folds terminal usage counters over the accumulated ones,
// keeping earlier values where the final event omits a counter.
func mergeUsage(into *Usage, final *Usage) {
	if final.InputTokens > 0 {
		into.InputTokens = final.InputTokens
	}
	if final.OutputTokens > 0 {
		into.OutputTokens = final.OutputTokens
	}
	if final.CacheReadInputTokens > 0 {
		into.CacheReadInputTokens = final.CacheReadInputTokens
	}
	if final.CacheCreationInputTokens > 0 {
		into.CacheCreationInputTokens = final.CacheCreationInputTokens
	}
}
