// SPDX-License-Identifier: AGPL-3.0-only
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aman-senpai/macassist/internal/config"
	"github.com/aman-senpai/macassist/internal/errors"
)

// NewProvider builds the concrete adapter for a provider type. It fails
// with an invalid_credential ProviderError when a credential-requiring type
// has no API key; Ollama needs none.
func NewProvider(ctx context.Context, providerType string, pc config.ProviderConfig) (ChatProvider, error) {
	switch strings.ToLower(providerType) {
	case config.ProviderGemini:
		if pc.APIKey == "" {
			return nil, errors.InvalidCredential("Gemini API key is not set in configuration")
		}
		return NewGeminiProvider(ctx, pc.APIKey, pc.Endpoint, pc.Timeout())
	case config.ProviderOllama:
		return NewOllamaProvider(pc.Endpoint, pc.Timeout()), nil
	case config.ProviderAnthropic:
		if pc.APIKey == "" {
			return nil, errors.InvalidCredential("Anthropic API key is not set in configuration")
		}
		return NewAnthropicProvider(pc.APIKey, pc.Timeout()), nil
	case config.ProviderOpenAI, "":
		if pc.APIKey == "" {
			return nil, errors.InvalidCredential("OpenAI API key is not set in configuration")
		}
		return NewOpenAIProvider(pc.APIKey, pc.Endpoint, pc.Timeout()), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", providerType)
	}
}

// ProviderFromConfig resolves the currently selected provider and its
// settings into a fresh adapter instance. Callers re-invoke this whenever
// settings change so an adapter never outlives the credentials it was built
// with.
func ProviderFromConfig(ctx context.Context, cfg *config.Config) (ChatProvider, config.ProviderConfig, error) {
	pc := cfg.Active()
	provider, err := NewProvider(ctx, cfg.LLM.Provider, pc)
	if err != nil {
		return nil, config.ProviderConfig{}, err
	}
	return provider, pc, nil
}
