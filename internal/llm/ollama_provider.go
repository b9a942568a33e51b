// SPDX-License-Identifier: AGPL-3.0-only
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aman-senpai/macassist/internal/errors"
)

// OllamaProvider implements ChatProvider against a local Ollama server's
// /api/chat endpoint. No SDK exists for the corpus to lean on, so this
// adapter speaks the JSON wire protocol directly. Streaming is always
// disabled; one request yields one complete response.
type OllamaProvider struct {
	endpoint string
	client   *http.Client
}

var _ ChatProvider = (*OllamaProvider)(nil)

// DefaultOllamaEndpoint is where a stock Ollama install listens.
const DefaultOllamaEndpoint = "http://localhost:11434"

// NewOllamaProvider creates a ChatProvider for the Ollama server at
// endpoint (DefaultOllamaEndpoint when empty). The timeout should be
// generous: a local model may need tens of seconds to cold-start.
func NewOllamaProvider(endpoint string, timeout time.Duration) *OllamaProvider {
	if endpoint == "" {
		endpoint = DefaultOllamaEndpoint
	}
	return &OllamaProvider{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

// Wire shapes for /api/chat. These stay private to this adapter; nothing
// outside this file sees Ollama's field names.

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message    ollamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

func (p *OllamaProvider) CreateCompletion(ctx context.Context, req Request) (*CompletionResult, error) {
	body := ollamaChatRequest{
		Model:    req.Model,
		Messages: toOllamaMessages(req.Messages),
		Stream:   false,
	}
	if len(req.Tools) > 0 {
		body.Tools = toOllamaTools(req.Tools)
	}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		body.Options = &ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Decoding(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.InvalidEndpoint(p.endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err, p.endpoint)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Network(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, p.mapHTTPError(resp.StatusCode, raw, req)
	}

	var chat ollamaChatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return nil, errors.Decoding(err)
	}
	return fromOllamaMessage(chat)
}

// toOllamaMessages converts unified messages to the Ollama wire shape.
// Ollama accepts all four unified roles; tool results keep the tool name so
// newer servers can route them back to the right call.
func toOllamaMessages(messages []Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		om := ollamaMessage{Role: m.Role, Content: m.Content}
		if m.Role == RoleTool {
			om.ToolName = m.Name
		}
		for _, tc := range m.ToolCalls {
			args := tc.Arguments
			if args == "" {
				args = "{}"
			}
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{
				Function: ollamaFunctionCall{
					Name:      tc.Name,
					Arguments: json.RawMessage(args),
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func toOllamaTools(tools []ToolSchema) []ollamaTool {
	out := make([]ollamaTool, len(tools))
	for i, t := range tools {
		out[i] = ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

// fromOllamaMessage decodes the response message. Ollama never assigns call
// IDs, so each decoded call gets a synthesized bounded ID that the agent
// loop round-trips back on the matching tool message.
func fromOllamaMessage(chat ollamaChatResponse) (*CompletionResult, error) {
	res := &CompletionResult{
		Content:      chat.Message.Content,
		FinishReason: chat.DoneReason,
	}
	for _, tc := range chat.Message.ToolCalls {
		args := string(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		res.ToolCalls = append(res.ToolCalls, ToolCall{
			ID:        newCallID(),
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	if res.Empty() {
		return res, ErrEmptyCompletion
	}
	return res, nil
}

// mapHTTPError extracts Ollama's {"error": "..."} body before falling back
// to a generic status error.
func (p *OllamaProvider) mapHTTPError(status int, raw []byte, req Request) error {
	msg := fmt.Sprintf("unexpected HTTP status %d", status)
	var body ollamaErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		msg = body.Error
	}

	lower := strings.ToLower(msg)
	switch {
	case len(req.Tools) > 0 && mentionsToolSupport(msg):
		return errors.ToolsNotSupported(req.Model)
	case status == 404 && strings.Contains(lower, "model"):
		return errors.ModelNotFound(req.Model)
	case strings.Contains(lower, "not found") && strings.Contains(lower, "model"):
		return errors.ModelNotFound(req.Model)
	case status == 401 || status == 403:
		return errors.InvalidCredential(msg)
	default:
		return errors.API(msg)
	}
}
