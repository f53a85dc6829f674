package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/draumabilar/sunna/pkg/provider/chat"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestBuildParamsDefaults(t *testing.T) {
	t.Parallel()

	params, err := buildParams("claude-sonnet-4-5", chat.Request{
		System:      "Þú ert Sunna.",
		Messages:    []chat.Message{{Role: chat.RoleUser, Text: "Halló"}},
		Temperature: -1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if params.MaxTokens != defaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", params.MaxTokens, defaultMaxTokens)
	}
	if len(params.System) != 1 || params.System[0].Text != "Þú ert Sunna." {
		t.Errorf("system prompt not mapped: %+v", params.System)
	}
	if params.Temperature.Valid() {
		t.Error("negative temperature should leave the provider default")
	}
	if len(params.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(params.Messages))
	}
}

func TestBuildParamsToolRoundTrip(t *testing.T) {
	t.Parallel()

	req := chat.Request{
		Messages: []chat.Message{
			{Role: chat.RoleUser, Text: "Áttu rafbíl?"},
			{
				Role: chat.RoleAssistant,
				Text: "Ég skal athuga það.",
				ToolUses: []chat.ToolUse{
					{ID: "tu_1", Name: "search_inventory", Input: json.RawMessage(`{"fuel_type":"rafmagn"}`)},
				},
			},
			{
				Role: chat.RoleUser,
				ToolResults: []chat.ToolResult{
					{ToolUseID: "tu_1", Content: `{"count":2}`},
				},
			},
		},
		Tools: []chat.ToolDefinition{
			{
				Name:        "search_inventory",
				Description: "Leita í bílalager",
				Properties:  map[string]any{"fuel_type": map[string]any{"type": "string"}},
			},
		},
		MaxTokens:   300,
		Temperature: 0.7,
	}

	params, err := buildParams("claude-sonnet-4-5", req)
	if err != nil {
		t.Fatal(err)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(params.Messages))
	}
	if got := len(params.Messages[1].Content); got != 2 {
		t.Errorf("assistant message has %d blocks, want 2 (text + tool_use)", got)
	}
	if len(params.Tools) != 1 || params.Tools[0].OfTool == nil {
		t.Fatalf("tool catalog not mapped: %+v", params.Tools)
	}
	if params.Tools[0].OfTool.Name != "search_inventory" {
		t.Errorf("tool name = %q", params.Tools[0].OfTool.Name)
	}
	if params.MaxTokens != 300 {
		t.Errorf("MaxTokens = %d, want 300", params.MaxTokens)
	}
	if !params.Temperature.Valid() {
		t.Error("temperature 0.7 should be set")
	}
}

func TestBuildParamsRejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	_, err := buildParams("claude-sonnet-4-5", chat.Request{
		Messages: []chat.Message{{Role: chat.RoleUser}},
	})
	if err == nil {
		t.Fatal("expected error for message without content")
	}
}
