// SPDX-License-Identifier: AGPL-3.0-only
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Provider type identifiers accepted by Config.LLM.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// ProviderConfig holds the per-provider settings: credential, endpoint
// override, model selection and generation parameters. One of these exists
// for every provider type; which one is live is Config.LLM.Provider.
type ProviderConfig struct {
	APIKey         string  `json:"apiKey,omitempty"`
	Endpoint       string  `json:"endpoint,omitempty"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"maxTokens"`
	TimeoutSeconds int     `json:"timeoutSeconds"`
}

// Timeout returns the per-request timeout as a duration.
func (pc ProviderConfig) Timeout() time.Duration {
	return time.Duration(pc.TimeoutSeconds) * time.Second
}

// LLMConfig selects the active provider and bounds the agent loop.
type LLMConfig struct {
	Provider          string `json:"provider"`
	MaxToolIterations int    `json:"maxToolIterations"`

	OpenAI    ProviderConfig `json:"openai"`
	Gemini    ProviderConfig `json:"gemini"`
	Ollama    ProviderConfig `json:"ollama"`
	Anthropic ProviderConfig `json:"anthropic"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level    string `json:"level"`
	FilePath string `json:"filePath,omitempty"`
}

// HistoryConfig controls the on-disk conversation store.
type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

// ToolsConfig controls the tool registry.
type ToolsConfig struct {
	ShellTimeoutSeconds int    `json:"shellTimeoutSeconds"`
	MCPConfigFilePath   string `json:"mcpConfigFilePath,omitempty"`
}

// Config is the complete application configuration, assembled as
// defaults -> settings file -> environment -> flags and validated before
// use. Nothing reads settings ambiently; the loaded Config is passed into
// each component at construction.
type Config struct {
	LLM     LLMConfig     `json:"llm"`
	Logging LoggingConfig `json:"logging"`
	History HistoryConfig `json:"history"`
	Tools   ToolsConfig   `json:"tools"`
}

// DefaultConfig returns the built-in defaults. The step cap and timeouts
// are deliberately configuration, not constants: they are product-tuned
// values with no derivation worth hard-coding.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:          ProviderOpenAI,
			MaxToolIterations: 5,
			OpenAI: ProviderConfig{
				Model:          "gpt-4o",
				Temperature:    0.7,
				MaxTokens:      4096,
				TimeoutSeconds: 30,
			},
			Gemini: ProviderConfig{
				Model:          "gemini-2.0-flash",
				Temperature:    0.7,
				MaxTokens:      4096,
				TimeoutSeconds: 30,
			},
			Ollama: ProviderConfig{
				Endpoint:       "http://localhost:11434",
				Model:          "llama3.2",
				Temperature:    0.7,
				MaxTokens:      4096,
				TimeoutSeconds: 60, // local models cold-start slowly
			},
			Anthropic: ProviderConfig{
				Model:          "claude-sonnet-4-20250514",
				Temperature:    0.7,
				MaxTokens:      4096,
				TimeoutSeconds: 30,
			},
		},
		Logging: LoggingConfig{Level: "info"},
		History: HistoryConfig{Enabled: true, DBPath: defaultDBPath()},
		Tools:   ToolsConfig{ShellTimeoutSeconds: 30},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "macassist.db"
	}
	return filepath.Join(home, ".macassist", "history.db")
}

// LoadFile merges the JSON settings file at path into cfg. A missing file
// is not an error; the defaults simply stand.
func LoadFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read settings file %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return nil
}

// FromEnv overrides cfg from the environment. MACASSIST_-prefixed variables
// map onto the struct fields; the conventional provider key variables
// (OPENAI_API_KEY and friends) are honored as well so existing shells keep
// working.
func FromEnv(cfg *Config) error {
	if err := envconfig.Process("macassist", cfg); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAI.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.LLM.Gemini.APIKey = v
	} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.LLM.Gemini.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.Anthropic.APIKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.LLM.Ollama.Endpoint = v
	}
	return nil
}

// Validate checks the configuration for values that would break at runtime.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case ProviderOpenAI, ProviderGemini, ProviderOllama, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider %q", c.LLM.Provider)
	}
	if c.LLM.MaxToolIterations < 1 {
		return fmt.Errorf("maxToolIterations must be at least 1, got %d", c.LLM.MaxToolIterations)
	}
	if pc := c.Active(); pc.Model == "" {
		return fmt.Errorf("no model configured for provider %q", c.LLM.Provider)
	}
	return nil
}

// Active returns the ProviderConfig for the currently selected provider.
func (c *Config) Active() ProviderConfig {
	switch strings.ToLower(c.LLM.Provider) {
	case ProviderGemini:
		return c.LLM.Gemini
	case ProviderOllama:
		return c.LLM.Ollama
	case ProviderAnthropic:
		return c.LLM.Anthropic
	default:
		return c.LLM.OpenAI
	}
}
