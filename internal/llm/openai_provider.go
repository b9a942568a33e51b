// SPDX-License-Identifier: AGPL-3.0-only
package llm

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/aman-senpai/macassist/internal/errors"
)

// OpenAIProvider implements ChatProvider using the OpenAI SDK.
// It supports any OpenAI-compatible endpoint (OpenAI, vLLM, Groq, LiteLLM,
// etc.) via a configurable base URL.
type OpenAIProvider struct {
	client  *openai.Client
	baseURL string
}

var _ ChatProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAI-backed ChatProvider. If baseURL is
// non-empty it overrides the default API endpoint. The timeout bounds each
// completion request; retries are disabled so a failed turn is surfaced to
// the user instead of silently replayed.
func NewOpenAIProvider(apiKey, baseURL string, timeout time.Duration) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client, baseURL: baseURL}
}

func (p *OpenAIProvider) CreateCompletion(ctx context.Context, req Request) (*CompletionResult, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.mapError(err, req)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Decoding(stderrors.New("response contained no choices"))
	}
	return fromOpenAIChoice(resp.Choices[0])
}

// toOpenAITools converts unified tool schemas to the OpenAI SDK
// representation.
func toOpenAITools(tools []ToolSchema) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		}
	}
	return out
}

// toOpenAIMessages converts unified messages to OpenAI SDK message unions.
// OpenAI speaks all four unified roles natively, so the remapping is direct.
func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		default: // assistant
			asst := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				asst.Content.OfString = openai.String(m.Content)
			}
			if len(m.ToolCalls) > 0 {
				asst.ToolCalls = make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
				for i, tc := range m.ToolCalls {
					asst.ToolCalls[i] = openai.ChatCompletionMessageToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					}
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		}
	}
	return out
}

// fromOpenAIChoice decodes the first choice into the unified result shape.
func fromOpenAIChoice(choice openai.ChatCompletionChoice) (*CompletionResult, error) {
	res := &CompletionResult{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = newCallID()
		}
		res.ToolCalls = append(res.ToolCalls, ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if res.Empty() {
		return res, ErrEmptyCompletion
	}
	return res, nil
}

// mapError classifies an OpenAI SDK error into the ProviderError taxonomy.
// The SDK surfaces non-2xx responses as *openai.Error with the parsed body
// message; anything else is a transport failure named after the endpoint.
func (p *OpenAIProvider) mapError(err error, req Request) error {
	var apierr *openai.Error
	if stderrors.As(err, &apierr) {
		msg := apierr.Message
		if msg == "" {
			msg = apierr.Error()
		}
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
	return classifyTransportError(err, p.baseURL)
}

// mentionsToolSupport matches the error phrasings OpenAI-compatible servers
// use when a model cannot accept tool declarations.
func mentionsToolSupport(msg string) bool {
	lower := strings.ToLower(msg)
	if !strings.Contains(lower, "tool") && !strings.Contains(lower, "function") {
		return false
	}
	return strings.Contains(lower, "does not support") ||
		strings.Contains(lower, "not supported") ||
		strings.Contains(lower, "no function") ||
		strings.Contains(lower, "unsupported")
}
