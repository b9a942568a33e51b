// SPDX-License-Identifier: AGPL-3.0-only
package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/aman-senpai/macassist/internal/errors"
)

// GeminiProvider implements ChatProvider using the Google Gen AI SDK.
//
// Gemini has only two conversational roles ("user" and "model"), so the
// unified roles are remapped: system messages become the request's system
// instruction, assistant messages become "model" turns, and tool results are
// sent as "user" turns carrying a FunctionResponse part so the model can
// still associate each result with the originating call.
type GeminiProvider struct {
	client  *genai.Client
	baseURL string
}

var _ ChatProvider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini-backed ChatProvider. If baseURL is
// non-empty it overrides the default API endpoint.
func NewGeminiProvider(ctx context.Context, apiKey, baseURL string, timeout time.Duration) (*GeminiProvider, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, errors.InvalidEndpoint(baseURL, err)
	}
	return &GeminiProvider{client: client, baseURL: baseURL}, nil
}

func (p *GeminiProvider) CreateCompletion(ctx context.Context, req Request) (*CompletionResult, error) {
	contents, systemInstruction := toGeminiContents(req.Messages)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		cfg.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		cfg.Tools = toGeminiTools(req.Tools)
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, p.mapError(err, req)
	}
	return fromGeminiResponse(resp)
}

// toGeminiContents converts unified messages into genai contents plus an
// optional system instruction. System messages never appear in the content
// list; Gemini rejects them there.
func toGeminiContents(messages []Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemParts []*genai.Part

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			systemParts = append(systemParts, &genai.Part{Text: m.Content})
		case RoleTool:
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:   m.ToolCallID,
						Name: m.Name,
						Response: map[string]any{
							"result": m.Content,
						},
					},
				}},
			})
		case RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: parseCallArgs(tc.Arguments),
					},
				})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}
		default: // user
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}

	var systemInstruction *genai.Content
	if len(systemParts) > 0 {
		systemInstruction = &genai.Content{Parts: systemParts}
	}
	return contents, systemInstruction
}

// parseCallArgs re-parses a serialized argument object for providers that
// want structured args on the wire. A malformed payload degrades to an empty
// object rather than failing the whole request.
func parseCallArgs(raw string) map[string]any {
	args := map[string]any{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &args)
	}
	return args
}

// toGeminiTools renders unified tool schemas as Gemini function
// declarations. Gemini uses uppercase type constants ("STRING", "OBJECT"),
// so the lowercase JSON-schema types are translated via toGeminiSchema.
func toGeminiTools(tools []ToolSchema) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGeminiSchema(t.Parameters),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGeminiSchema recursively converts a JSON-schema-like parameter map into
// the genai schema shape.
func toGeminiSchema(params map[string]interface{}) *genai.Schema {
	if params == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	schema := &genai.Schema{Type: geminiType(params["type"])}
	if desc, ok := params["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := params["properties"].(map[string]interface{}); ok {
		schema.Properties = map[string]*genai.Schema{}
		for name, raw := range props {
			if sub, ok := raw.(map[string]interface{}); ok {
				schema.Properties[name] = toGeminiSchema(sub)
			}
		}
	}
	if items, ok := params["items"].(map[string]interface{}); ok {
		schema.Items = toGeminiSchema(items)
	}
	switch req := params["required"].(type) {
	case []string:
		schema.Required = req
	case []interface{}:
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

// geminiType maps a lowercase JSON-schema type onto Gemini's uppercase type
// constants.
func geminiType(raw interface{}) genai.Type {
	t, _ := raw.(string)
	switch strings.ToLower(t) {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object", "":
		return genai.TypeObject
	default:
		return genai.TypeObject
	}
}

// fromGeminiResponse decodes the first candidate into the unified result
// shape, synthesizing bounded call IDs when the API supplies none.
func fromGeminiResponse(resp *genai.GenerateContentResponse) (*CompletionResult, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, errors.Decoding(stderrors.New("response contained no candidates"))
	}
	cand := resp.Candidates[0]
	res := &CompletionResult{FinishReason: string(cand.FinishReason)}
	if cand.Content == nil {
		return res, ErrEmptyCompletion
	}

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			fc := part.FunctionCall
			id := capCallID(fc.ID)
			if id == "" {
				id = newCallID()
			}
			args, err := json.Marshal(fc.Args)
			if err != nil {
				return nil, errors.Decoding(err)
			}
			res.ToolCalls = append(res.ToolCalls, ToolCall{
				ID:        id,
				Name:      fc.Name,
				Arguments: string(args),
			})
		}
	}
	res.Content = text.String()
	if res.Empty() {
		return res, ErrEmptyCompletion
	}
	return res, nil
}

// mapError classifies a Gen AI SDK error into the ProviderError taxonomy.
func (p *GeminiProvider) mapError(err error, req Request) error {
	var apierr genai.APIError
	if stderrors.As(err, &apierr) {
		msg := apierr.Message
		if msg == "" {
			msg = apierr.Error()
		}
		switch {
		case apierr.Code == 401 || apierr.Code == 403:
			return errors.InvalidCredential(msg)
		case apierr.Code == 404:
			return errors.ModelNotFound(req.Model)
		case apierr.Code == 400 && len(req.Tools) > 0 && mentionsToolSupport(msg):
			return errors.ToolsNotSupported(req.Model)
		default:
			return errors.API(msg)
		}
	}
	return classifyTransportError(err, p.baseURL)
}
