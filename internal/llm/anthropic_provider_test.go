// SPDX-License-Identifier: AGPL-3.0-only
package llm

import (
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/aman-senpai/macassist/internal/errors"
)

func TestToAnthropicTools(t *testing.T) {
	tools := []ToolSchema{
		NewToolSchema("get_weather", "Get current weather", map[string]interface{}{
			"city": map[string]interface{}{"type": "string"},
		}, []string{"city"}),
	}

	out := toAnthropicTools(tools)
	if len(out) != 1 || out[0].OfTool == nil {
		t.Fatalf("Expected 1 tool param, got %+v", out)
	}
	tool := out[0].OfTool
	if tool.Name != "get_weather" {
		t.Errorf("Expected name get_weather, got %q", tool.Name)
	}
	props, ok := tool.InputSchema.Properties.(map[string]interface{})
	if !ok || props["city"] == nil {
		t.Errorf("Properties not carried over: %+v", tool.InputSchema.Properties)
	}
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "city" {
		t.Errorf("Required not split out: %v", tool.InputSchema.Required)
	}
}

func TestToAnthropicToolsEmptySchema(t *testing.T) {
	out := toAnthropicTools([]ToolSchema{NewToolSchema("noop", "Does nothing", nil, nil)})
	props, ok := out[0].OfTool.InputSchema.Properties.(map[string]interface{})
	if !ok || props == nil {
		t.Errorf("Expected non-nil properties map, got %+v", out[0].OfTool.InputSchema.Properties)
	}
}

func TestToAnthropicMessage_ToolResult(t *testing.T) {
	msg := toAnthropicMessage(Message{
		Role:       RoleTool,
		Content:    "72F",
		ToolCallID: "toolu_1",
		Name:       "get_weather",
	})
	if msg.Role != anthropic.MessageParamRoleUser {
		t.Errorf("Tool results must travel as user messages, got %q", msg.Role)
	}
	if len(msg.Content) != 1 || msg.Content[0].OfToolResult == nil {
		t.Fatalf("Expected one tool_result block, got %+v", msg.Content)
	}
	result := msg.Content[0].OfToolResult
	if result.ToolUseID != "toolu_1" {
		t.Errorf("Tool use ID lost: %+v", result)
	}
	if len(result.Content) != 1 || result.Content[0].OfText == nil {
		t.Fatalf("Expected one text content block, got %+v", result.Content)
	}
	if result.Content[0].OfText.Text != "72F" {
		t.Errorf("Tool output lost: %q", result.Content[0].OfText.Text)
	}
}

func TestToAnthropicMessage_AssistantToolUse(t *testing.T) {
	msg := toAnthropicMessage(Message{
		Role:    RoleAssistant,
		Content: "checking",
		ToolCalls: []ToolCall{
			{ID: "toolu_1", Name: "get_weather", Arguments: `{"city":"Oslo"}`},
			{ID: "toolu_2", Name: "noop", Arguments: ""},
		},
	})
	if msg.Role != anthropic.MessageParamRoleAssistant {
		t.Errorf("Expected assistant role, got %q", msg.Role)
	}
	if len(msg.Content) != 3 {
		t.Fatalf("Expected text + 2 tool_use blocks, got %d", len(msg.Content))
	}
	tu := msg.Content[1].OfToolUse
	if tu == nil || tu.ID != "toolu_1" || tu.Name != "get_weather" {
		t.Fatalf("Unexpected tool_use block: %+v", msg.Content[1])
	}
	if empty := msg.Content[2].OfToolUse; string(empty.Input.([]byte)) != "{}" {
		t.Errorf("Empty arguments must serialize as {}, got %v", empty.Input)
	}
}

func TestMapAnthropicError(t *testing.T) {
	req := Request{Model: "claude-sonnet-4-20250514", Tools: []ToolSchema{NewToolSchema("t", "", nil, nil)}}

	cases := []struct {
		status int
		want   errors.Kind
	}{
		{401, errors.KindInvalidCredential},
		{403, errors.KindInvalidCredential},
		{404, errors.KindModelNotFound},
		{429, errors.KindAPI},
		{500, errors.KindAPI},
	}
	for _, tc := range cases {
		// A sparsely populated SDK error (no request or response attached)
		// must classify cleanly, never panic.
		err := mapAnthropicError(&anthropic.Error{StatusCode: tc.status}, req)
		if got := errors.KindOf(err); got != tc.want {
			t.Errorf("status %d: got %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestAnthropicErrorMessageFallback(t *testing.T) {
	msg := anthropicErrorMessage(&anthropic.Error{StatusCode: 500})
	if !strings.Contains(msg, "HTTP status 500") {
		t.Errorf("Expected status fallback message, got %q", msg)
	}
}
