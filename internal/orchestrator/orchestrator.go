// SPDX-License-Identifier: AGPL-3.0-only
package orchestrator

import (
	"context"
	"sync"

	"github.com/aman-senpai/macassist/internal/config"
	"github.com/aman-senpai/macassist/internal/llm"
	"github.com/aman-senpai/macassist/internal/logging"
)

// Service wraps one provider adapter and its static generation settings.
// It is stateless between calls: it holds no conversation, performs no
// retries, and never downgrades the specificity of a provider error. The
// agent loop owns all recovery decisions so the step-bound invariant lives
// in exactly one place.
type Service struct {
	mu       sync.Mutex
	provider llm.ChatProvider
	pc       config.ProviderConfig
	logger   *logging.Logger
}

// New resolves the currently selected provider from cfg and wraps it.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Service, error) {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	provider, pc, err := llm.ProviderFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Infof("Using provider %s with model %s", cfg.LLM.Provider, pc.Model)
	return &Service{provider: provider, pc: pc, logger: logger}, nil
}

// Reload rebuilds the adapter from fresh settings. The previous adapter
// instance is discarded so it never survives a credential or endpoint
// change.
func (s *Service) Reload(ctx context.Context, cfg *config.Config) error {
	provider, pc, err := llm.ProviderFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.provider = provider
	s.pc = pc
	s.mu.Unlock()
	s.logger.Infof("Reloaded provider %s with model %s", cfg.LLM.Provider, pc.Model)
	return nil
}

// NewWithProvider wraps an already-built adapter. The factory path through
// New is the normal route; this exists for callers that construct adapters
// themselves.
func NewWithProvider(provider llm.ChatProvider, pc config.ProviderConfig, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Service{provider: provider, pc: pc, logger: logger}
}

// CompleteWithTools requests a completion offering the given tool
// catalogue.
func (s *Service) CompleteWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (*llm.CompletionResult, error) {
	return s.complete(ctx, messages, tools)
}

// Complete requests a completion with tools forced absent. Sub-tasks that
// must not recurse into tool calling (and the tools-not-supported fallback)
// go through here.
func (s *Service) Complete(ctx context.Context, messages []llm.Message) (*llm.CompletionResult, error) {
	return s.complete(ctx, messages, nil)
}

func (s *Service) complete(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (*llm.CompletionResult, error) {
	s.mu.Lock()
	provider, pc := s.provider, s.pc
	s.mu.Unlock()

	req := llm.Request{
		Model:       pc.Model,
		Temperature: pc.Temperature,
		MaxTokens:   pc.MaxTokens,
		Messages:    messages,
		Tools:       tools,
	}
	s.logger.Debugf("Requesting completion: model=%s messages=%d tools=%d", pc.Model, len(messages), len(tools))
	return provider.CreateCompletion(ctx, req)
}
