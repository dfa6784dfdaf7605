// Package anthropic provides an LLM provider backed directly by the
// Anthropic Messages API, without going through the multi-provider anyllm
// abstraction. Requests carry messages, system prompt, tools, temperature
// and max tokens; prompt caching and extended thinking are not set.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/vaultmind/vaultmind/pkg/provider/llm"
	"github.com/vaultmind/vaultmind/pkg/types"
)

// defaultMaxTokens is used when a CompletionRequest does not set MaxTokens;
// the Anthropic API requires a positive max_tokens on every request.
const defaultMaxTokens = 4096

// Provider implements llm.Provider using the Anthropic Messages API.
type Provider struct {
	client anthropicsdk.Client
	model  string
}

// New constructs a new Anthropic LLM Provider for the given model (e.g.
// "claude-3-5-sonnet-latest").
func New(apiKey string, model string, opts ...option.RequestOption) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic: model must not be empty")
	}

	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := anthropicsdk.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build params: %w", err)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)

		toolCallAccum := map[int64]*types.ToolCall{}
		toolCallArgsAccum := map[int64]*strings.Builder{}

		for stream.Next() {
			event := stream.Current()

			switch event.Type {
			case "content_block_start":
				if event.ContentBlock.Type == "tool_use" {
					toolCallAccum[event.Index] = &types.ToolCall{
						ID:   event.ContentBlock.ID,
						Name: event.ContentBlock.Name,
					}
					toolCallArgsAccum[event.Index] = &strings.Builder{}
				}

			case "content_block_delta":
				switch event.Delta.Type {
				case "text_delta":
					select {
					case ch <- llm.Chunk{Text: event.Delta.Text}:
					case <-ctx.Done():
						return
					}
				case "input_json_delta":
					if b, ok := toolCallArgsAccum[event.Index]; ok {
						b.WriteString(event.Delta.PartialJSON)
					}
				}

			case "message_delta":
				finish := stopReasonToFinishReason(string(event.Delta.StopReason))
				if finish == "" {
					continue
				}
				out := llm.Chunk{FinishReason: finish}
				for idx, tc := range toolCallAccum {
					if b, ok := toolCallArgsAccum[idx]; ok {
						tc.Arguments = b.String()
					}
					out.ToolCalls = append(out.ToolCalls, *tc)
				}
				select {
				case ch <- out:
				case <-ctx.Done():
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case ch <- llm.Chunk{FinishReason: "error", Text: err.Error()}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build params: %w", err)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: messages.new: %w", err)
	}

	result := &llm.CompletionResponse{
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Content += block.Text
		case "tool_use":
			args, err := json.Marshal(block.Input)
			if err != nil {
				return nil, fmt.Errorf("anthropic: marshal tool_use input: %w", err)
			}
			result.ToolCalls = append(result.ToolCalls, types.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(args),
			})
		}
	}
	return result, nil
}

// CountTokens implements llm.Provider.
// TODO: call the Anthropic count_tokens endpoint for exact counts; this is a
// rough character-based approximation.
func (p *Provider) CountTokens(messages []types.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
		total += 4
	}
	return total, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	return modelCapabilities(p.model)
}

// buildParams converts a CompletionRequest into Anthropic SDK params.
func (p *Provider) buildParams(req llm.CompletionRequest) (anthropicsdk.MessageNewParams, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(p.model),
		MaxTokens: maxTokens,
	}

	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemPrompt}}
	}

	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return anthropicsdk.MessageNewParams{}, err
		}
		params.Messages = append(params.Messages, msg)
	}

	if req.Temperature != 0 {
		params.Temperature = anthropicsdk.Float(req.Temperature)
	}

	for _, td := range req.Tools {
		params.Tools = append(params.Tools, anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        td.Name,
				Description: anthropicsdk.String(td.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{
					Properties: td.Parameters,
				},
			},
		})
	}

	return params, nil
}

// convertMessage converts a types.Message to an Anthropic SDK message param.
func convertMessage(m types.Message) (anthropicsdk.MessageParam, error) {
	switch m.Role {
	case "user":
		return anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)), nil

	case "assistant":
		var blocks []anthropicsdk.ContentBlockParamUnion
		if m.Content != "" {
			blocks = append(blocks, anthropicsdk.NewTextBlock(m.Content))
		}
		for _, tc := range m.ToolCalls {
			var input any
			if tc.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
					return anthropicsdk.MessageParam{}, fmt.Errorf("anthropic: unmarshal tool call arguments: %w", err)
				}
			}
			blocks = append(blocks, anthropicsdk.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		return anthropicsdk.NewAssistantMessage(blocks...), nil

	case "tool":
		return anthropicsdk.NewUserMessage(anthropicsdk.NewToolResultBlock(m.ToolCallID, m.Content, false)), nil

	case "system":
		// Anthropic has no per-message system role; fold it into the user turn.
		return anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)), nil

	default:
		return anthropicsdk.MessageParam{}, fmt.Errorf("anthropic: unknown message role %q", m.Role)
	}
}

// stopReasonToFinishReason maps Anthropic stop reasons to our FinishReason vocabulary.
func stopReasonToFinishReason(stopReason string) string {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return ""
	}
}

// modelCapabilities returns ModelCapabilities for known Claude model names.
func modelCapabilities(model string) types.ModelCapabilities {
	caps := types.ModelCapabilities{
		SupportsToolCalling: true,
		SupportsStreaming:   true,
		SupportsVision:      true,
		ContextWindow:       200_000,
		MaxOutputTokens:     8_192,
	}

	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "claude-3-opus"):
		caps.MaxOutputTokens = 4_096
	case strings.Contains(lower, "claude-3-haiku"):
		caps.MaxOutputTokens = 4_096
	case strings.Contains(lower, "claude-3-5-haiku"):
		caps.MaxOutputTokens = 8_192
	}
	return caps
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
