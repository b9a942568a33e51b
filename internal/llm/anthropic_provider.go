// SPDX-License-Identifier: AGPL-3.0-only
package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aman-senpai/macassist/internal/errors"
)

// AnthropicProvider implements ChatProvider using the Anthropic SDK.
//
// Anthropic's API has only "user" and "assistant" roles: system messages
// travel in the dedicated system field, tool results are user messages
// wrapping a tool_result block, and assistant tool calls are tool_use
// blocks.
type AnthropicProvider struct {
	client *anthropic.Client
}

var _ ChatProvider = (*AnthropicProvider)(nil)

// defaultAnthropicMaxTokens applies when the caller does not bound the
// output; the Messages API requires an explicit value.
const defaultAnthropicMaxTokens = 4096

// NewAnthropicProvider creates a new Anthropic-backed ChatProvider.
func NewAnthropicProvider(apiKey string, timeout time.Duration) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	)
	return &AnthropicProvider{client: &client}
}

func (p *AnthropicProvider) CreateCompletion(ctx context.Context, req Request) (*CompletionResult, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	var system []anthropic.TextBlockParam
	var msgs []anthropic.MessageParam
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
			continue
		}
		msgs = append(msgs, toAnthropicMessage(m))
	}
	params.Messages = msgs
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapAnthropicError(err, req)
	}
	return fromAnthropicMessage(resp)
}

// toAnthropicTools converts unified tool schemas to Anthropic tool params.
// Anthropic wants the schema split into properties and required rather than
// one JSON-schema object.
func toAnthropicTools(tools []ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		props, _ := t.Parameters["properties"].(map[string]interface{})
		if props == nil {
			props = map[string]interface{}{}
		}
		var required []string
		switch req := t.Parameters["required"].(type) {
		case []string:
			required = req
		case []interface{}:
			for _, r := range req {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}

		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		}
	}
	return out
}

// toAnthropicMessage remaps one non-system unified message.
func toAnthropicMessage(m Message) anthropic.MessageParam {
	switch m.Role {
	case RoleTool:
		block := anthropic.NewToolResultBlock(m.ToolCallID)
		block.OfToolResult.Content = []anthropic.ToolResultBlockParamContentUnion{
			{OfText: &anthropic.TextBlockParam{Text: m.Content}},
		}
		return anthropic.NewUserMessage(block)
	case RoleAssistant:
		blocks := make([]anthropic.ContentBlockParamUnion, 0)
		if m.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(m.Content))
		}
		for _, tc := range m.ToolCalls {
			input := tc.Arguments
			if input == "" {
				input = "{}"
			}
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    tc.ID,
					Name:  tc.Name,
					Input: []byte(input),
				},
			})
		}
		return anthropic.NewAssistantMessage(blocks...)
	default: // user
		return anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content))
	}
}

// fromAnthropicMessage flattens the response blocks into the unified result.
func fromAnthropicMessage(resp *anthropic.Message) (*CompletionResult, error) {
	if resp == nil {
		return nil, errors.Decoding(stderrors.New("nil response message"))
	}
	res := &CompletionResult{FinishReason: string(resp.StopReason)}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if res.Content != "" {
				res.Content += "\n"
			}
			res.Content += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			id := capCallID(tu.ID)
			if id == "" {
				id = newCallID()
			}
			res.ToolCalls = append(res.ToolCalls, ToolCall{
				ID:        id,
				Name:      tu.Name,
				Arguments: string(tu.Input),
			})
		}
	}
	if res.Empty() {
		return res, ErrEmptyCompletion
	}
	return res, nil
}

// anthropicErrorMessage pulls the human-readable message out of the parsed
// error body. It never calls the SDK's Error() formatter, which dereferences
// the request and response and is not nil-safe.
func anthropicErrorMessage(apierr *anthropic.Error) string {
	if raw := apierr.RawJSON(); raw != "" {
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(raw), &body); err == nil && body.Error.Message != "" {
			return body.Error.Message
		}
	}
	return fmt.Sprintf("HTTP status %d", apierr.StatusCode)
}

// mapAnthropicError classifies an Anthropic SDK error into the
// ProviderError taxonomy.
func mapAnthropicError(err error, req Request) error {
	var apierr *anthropic.Error
	if stderrors.As(err, &apierr) {
		msg := anthropicErrorMessage(apierr)
		switch {
		case apierr.StatusCode == 401 || apierr.StatusCode == 403:
			return errors.InvalidCredential(msg)
		case apierr.StatusCode == 404:
			return errors.ModelNotFound(req.Model)
		case apierr.StatusCode == 400 && len(req.Tools) > 0 && mentionsToolSupport(msg):
			return errors.ToolsNotSupported(req.Model)
		default:
			return errors.API(msg)
		}
	}
	return classifyTransportError(err, "")
}
