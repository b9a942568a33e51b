// SPDX-License-Identifier: AGPL-3.0-only
package orchestrator

import (
	"context"
	"testing"

	"github.com/aman-senpai/macassist/internal/config"
	"github.com/aman-senpai/macassist/internal/errors"
	"github.com/aman-senpai/macassist/internal/llm"
)

// recordingProvider captures every request it receives and replays canned
// results.
type recordingProvider struct {
	requests []llm.Request
	result   *llm.CompletionResult
	err      error
}

func (r *recordingProvider) CreateCompletion(ctx context.Context, req llm.Request) (*llm.CompletionResult, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func testProviderConfig() config.ProviderConfig {
	return config.ProviderConfig{
		Model:       "test-model",
		Temperature: 0.5,
		MaxTokens:   1024,
	}
}

func TestCompleteWithToolsPassesCatalogue(t *testing.T) {
	fake := &recordingProvider{result: &llm.CompletionResult{Content: "ok"}}
	svc := NewWithProvider(fake, testProviderConfig(), nil)

	tools := []llm.ToolSchema{llm.NewToolSchema("get_weather", "Get weather", nil, nil)}
	res, err := svc.CompleteWithTools(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, tools)
	if err != nil {
		t.Fatalf("CompleteWithTools: %v", err)
	}
	if res.Content != "ok" {
		t.Errorf("Expected content 'ok', got %q", res.Content)
	}

	req := fake.requests[0]
	if len(req.Tools) != 1 || req.Tools[0].Name != "get_weather" {
		t.Errorf("Expected tool catalogue on request, got %+v", req.Tools)
	}
	if req.Model != "test-model" || req.Temperature != 0.5 || req.MaxTokens != 1024 {
		t.Errorf("Generation settings not propagated: %+v", req)
	}
}

func TestCompleteForcesToolsAbsent(t *testing.T) {
	fake := &recordingProvider{result: &llm.CompletionResult{Content: "plain"}}
	svc := NewWithProvider(fake, testProviderConfig(), nil)

	if _, err := svc.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(fake.requests[0].Tools) != 0 {
		t.Errorf("Expected no tools on request, got %+v", fake.requests[0].Tools)
	}
}

func TestCompletePreservesProviderError(t *testing.T) {
	fake := &recordingProvider{err: errors.ToolsNotSupported("test-model")}
	svc := NewWithProvider(fake, testProviderConfig(), nil)

	_, err := svc.CompleteWithTools(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	if !errors.IsKind(err, errors.KindToolsNotSupported) {
		t.Errorf("Expected tools_not_supported passed through unchanged, got %v", err)
	}
}

func TestCompleteIsStateless(t *testing.T) {
	fake := &recordingProvider{result: &llm.CompletionResult{Content: "x"}}
	svc := NewWithProvider(fake, testProviderConfig(), nil)

	msgs := []llm.Message{{Role: llm.RoleUser, Content: "same"}}
	for i := 0; i < 3; i++ {
		if _, err := svc.Complete(context.Background(), msgs); err != nil {
			t.Fatalf("Complete #%d: %v", i, err)
		}
	}
	for i, req := range fake.requests {
		if len(req.Messages) != 1 || req.Messages[0].Content != "same" {
			t.Errorf("Request %d carried unexpected history: %+v", i, req.Messages)
		}
	}
}

func TestNewMissingCredential(t *testing.T) {
	cfg := config.DefaultConfig() // openai selected without a key
	_, err := New(context.Background(), cfg, nil)
	if !errors.IsKind(err, errors.KindInvalidCredential) {
		t.Errorf("Expected invalid_credential, got %v", err)
	}
}

func TestReloadSwapsProvider(t *testing.T) {
	fake := &recordingProvider{result: &llm.CompletionResult{Content: "old"}}
	svc := NewWithProvider(fake, testProviderConfig(), nil)

	cfg := config.DefaultConfig()
	cfg.LLM.Provider = config.ProviderOllama
	if err := svc.Reload(context.Background(), cfg); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	svc.mu.Lock()
	_, isOllama := svc.provider.(*llm.OllamaProvider)
	model := svc.pc.Model
	svc.mu.Unlock()
	if !isOllama {
		t.Errorf("Expected reloaded provider to be *llm.OllamaProvider")
	}
	if model != "llama3.2" {
		t.Errorf("Expected reloaded model llama3.2, got %q", model)
	}
}

func TestReloadFailureKeepsOldProvider(t *testing.T) {
	fake := &recordingProvider{result: &llm.CompletionResult{Content: "still here"}}
	svc := NewWithProvider(fake, testProviderConfig(), nil)

	cfg := config.DefaultConfig() // openai without key fails to build
	if err := svc.Reload(context.Background(), cfg); err == nil {
		t.Fatal("Expected Reload to fail without a credential")
	}

	res, err := svc.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if err != nil || res.Content != "still here" {
		t.Errorf("Expected original provider to keep serving, got %v / %v", res, err)
	}
}
