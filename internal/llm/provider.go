// SPDX-License-Identifier: AGPL-3.0-only
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Conversation roles of the unified message model. Adapters remap these into
// whatever role vocabulary their wire protocol speaks.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall represents a single tool invocation requested by the model.
// Arguments is the raw JSON object string as the provider emitted it; the
// agent loop parses it exactly once when dispatching the call.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one provider-agnostic turn in a conversation. Messages are
// immutable once appended; a conversation is an ordered, append-only slice
// with the first entry conventionally the system prompt.
//
// A message with Role == RoleTool must carry both ToolCallID and Name so the
// adapters can associate the result with the originating call. An assistant
// message with tool calls may have empty Content.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string // set when Role == RoleTool
	Name       string // tool name, set when Role == RoleTool
}

// ToolSchema is a provider-agnostic declaration of one tool the model may
// call. Parameters holds a JSON-schema-like object ("type", "properties",
// "required"); each adapter renders it into its native declaration shape.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// NewToolSchema assembles a ToolSchema from a property map and required list.
func NewToolSchema(name, description string, properties map[string]interface{}, required []string) ToolSchema {
	if properties == nil {
		properties = map[string]interface{}{}
	}
	params := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return ToolSchema{Name: name, Description: description, Parameters: params}
}

// Request is the unified completion request every adapter accepts.
type Request struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Messages    []Message
	Tools       []ToolSchema
}

// CompletionResult is the normalized adapter output. Adapters never return a
// result with both Content empty and ToolCalls absent without also returning
// an error (see ErrEmptyCompletion).
type CompletionResult struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Empty reports whether the result carries neither content nor tool calls.
func (r *CompletionResult) Empty() bool {
	return r == nil || (r.Content == "" && len(r.ToolCalls) == 0)
}

// ErrEmptyCompletion is returned when a response decoded cleanly but carried
// neither content nor tool calls. It is distinct from a decoding
// ProviderError: the wire exchange succeeded, the model just had nothing to
// say. Callers decide whether that is a benign terminal state.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// ChatProvider abstracts a chat-completion back end so the orchestration
// layer and agent loop can work with any LLM provider. Implementations hold
// only network configuration, never conversation state, and are safe to
// reuse across turns.
type ChatProvider interface {
	// CreateCompletion sends one synchronous completion request and returns
	// the normalized result. Failures are ProviderError values carrying the
	// most specific kind the adapter could determine.
	CreateCompletion(ctx context.Context, req Request) (*CompletionResult, error)
}

// maxCallIDLen bounds synthesized tool-call IDs. OpenAI-compatible endpoints
// reject tool_call_id values longer than 40 characters, and IDs we mint here
// are round-tripped back through whichever provider is active.
const maxCallIDLen = 40

// newCallID synthesizes a tool-call ID for providers that do not assign one.
func newCallID() string {
	return capCallID("call_" + strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// capCallID truncates an ID to the bounded length accepted downstream.
func capCallID(id string) string {
	if len(id) > maxCallIDLen {
		return id[:maxCallIDLen]
	}
	return id
}
