package anthropic

import (
	"testing"

	"github.com/vaultmind/vaultmind/pkg/types"
)

func TestConvertMessageUser(t *testing.T) {
	msg := types.Message{Role: "user", Content: "Hello!"}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(param.Role) != "user" {
		t.Errorf("expected role user, got %s", param.Role)
	}
	if len(param.Content) != 1 {
		t.Fatalf("expected 1 content block, got %d", len(param.Content))
	}
}

func TestConvertMessageAssistantWithToolCalls(t *testing.T) {
	msg := types.Message{
		Role: "assistant",
		ToolCalls: []types.ToolCall{
			{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Berlin"}`},
		},
	}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(param.Role) != "assistant" {
		t.Errorf("expected role assistant, got %s", param.Role)
	}
	if len(param.Content) != 1 {
		t.Fatalf("expected 1 content block (tool_use only, no text), got %d", len(param.Content))
	}
}

func TestConvertMessageAssistantWithContentAndToolCalls(t *testing.T) {
	msg := types.Message{
		Role:    "assistant",
		Content: "Let me check that.",
		ToolCalls: []types.ToolCall{
			{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Berlin"}`},
		},
	}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(param.Content) != 2 {
		t.Fatalf("expected 2 content blocks (text + tool_use), got %d", len(param.Content))
	}
}

func TestConvertMessageToolResultBecomesUserMessage(t *testing.T) {
	msg := types.Message{Role: "tool", Content: "sunny", ToolCallID: "call_1"}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(param.Role) != "user" {
		t.Errorf("expected tool result folded into user role, got %s", param.Role)
	}
}

func TestConvertMessageUnknownRole(t *testing.T) {
	_, err := convertMessage(types.Message{Role: "unknown", Content: "test"})
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestConvertMessageInvalidToolCallArguments(t *testing.T) {
	msg := types.Message{
		Role: "assistant",
		ToolCalls: []types.ToolCall{
			{ID: "call_1", Name: "broken", Arguments: `not json`},
		},
	}
	_, err := convertMessage(msg)
	if err == nil {
		t.Fatal("expected error for malformed tool call arguments")
	}
}

func TestStopReasonToFinishReason(t *testing.T) {
	cases := map[string]string{
		"end_turn":      "stop",
		"stop_sequence": "stop",
		"max_tokens":    "length",
		"tool_use":      "tool_calls",
		"":              "",
		"unrecognised":  "",
	}
	for in, want := range cases {
		if got := stopReasonToFinishReason(in); got != want {
			t.Errorf("stopReasonToFinishReason(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestModelCapabilitiesClaudeDefaults(t *testing.T) {
	caps := modelCapabilities("claude-3-5-sonnet-latest")
	if caps.ContextWindow != 200_000 {
		t.Errorf("ContextWindow = %d, want 200000", caps.ContextWindow)
	}
	if !caps.SupportsToolCalling || !caps.SupportsVision || !caps.SupportsStreaming {
		t.Errorf("capabilities = %+v, want all true", caps)
	}
}

func TestModelCapabilitiesOpusHasLowerOutputTokens(t *testing.T) {
	caps := modelCapabilities("claude-3-opus-20240229")
	if caps.MaxOutputTokens != 4_096 {
		t.Errorf("MaxOutputTokens = %d, want 4096", caps.MaxOutputTokens)
	}
}

func TestCountTokensEstimation(t *testing.T) {
	p := &Provider{model: "claude-3-5-sonnet-latest"}
	count, err := p.CountTokens([]types.Message{{Role: "user", Content: "Hello world"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count <= 0 {
		t.Errorf("expected positive token count, got %d", count)
	}
}

func TestNewRejectsEmptyAPIKey(t *testing.T) {
	_, err := New("", "claude-3-5-sonnet-latest")
	if err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestNewRejectsEmptyModel(t *testing.T) {
	_, err := New("sk-ant-test", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

func TestNewAcceptsValidArguments(t *testing.T) {
	p, err := New("sk-ant-test", "claude-3-5-sonnet-latest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != "claude-3-5-sonnet-latest" {
		t.Errorf("model = %q", p.model)
	}
}
