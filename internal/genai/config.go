package genai

import (
	"context"
	"log/slog"
	"time"
)

// Provider names in priority order.
const (
	ProviderMoonshot = "moonshot"
	ProviderGoogle   = "google"
	ProviderOpenAI   = "openai"
)

// Default endpoints and models for the built-in providers.
const (
	DefaultMoonshotModel   = "kimi-k2-turbo-preview"
	DefaultMoonshotBaseURL = "https://api.moonshot.cn/v1"
	// GoogleOpenAICompatBaseURL is Gemini's OpenAI-compatible endpoint.
	GoogleOpenAICompatBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// ProviderConfig holds the settings of one provider. A provider without an
// APIKey is not registered.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Config describes all providers the service may use.
type Config struct {
	Moonshot ProviderConfig
	Google   ProviderConfig
	OpenAI   ProviderConfig
	// GoogleOpenAICompat routes the Google provider through its OpenAI-compatible endpoint.
	GoogleOpenAICompat bool
	// Timeout bounds each provider call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewChainFromConfig registers providers in the fixed order moonshot, google,
// openai, skipping those without an API key. A provider that fails to
// initialize is logged and skipped.
func NewChainFromConfig(ctx context.Context, cfg Config, opts ...ChainOption) *Chain {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var providers []Provider
	add := func(p Provider, err error, name string) {
		if err != nil {
			slog.Error("genai.NewChainFromConfig: provider init failed, skipping", "provider", name, "error", err)
			return
		}
		providers = append(providers, p)
	}

	if cfg.Moonshot.APIKey != "" {
		base := cfg.Moonshot.BaseURL
		if base == "" {
			base = DefaultMoonshotBaseURL
		}
		model := cfg.Moonshot.Model
		if model == "" {
			model = DefaultMoonshotModel
		}
		p, err := NewOpenAIClient(WithName(ProviderMoonshot), WithAPIKey(cfg.Moonshot.APIKey), WithBaseURL(base), WithModel(model), WithTimeout(timeout))
		add(p, err, ProviderMoonshot)
	}

	if cfg.Google.APIKey != "" {
		model := cfg.Google.Model
		if model == "" {
			model = DefaultGeminiModel
		}
		if cfg.GoogleOpenAICompat {
			base := cfg.Google.BaseURL
			if base == "" {
				base = GoogleOpenAICompatBaseURL
			}
			p, err := NewOpenAIClient(WithName(ProviderGoogle), WithAPIKey(cfg.Google.APIKey), WithBaseURL(base), WithModel(model), WithTimeout(timeout))
			add(p, err, ProviderGoogle)
		} else {
			p, err := NewGeminiClient(ctx, WithName(ProviderGoogle), WithAPIKey(cfg.Google.APIKey), WithBaseURL(cfg.Google.BaseURL), WithModel(model), WithTimeout(timeout))
			add(p, err, ProviderGoogle)
		}
	}

	if cfg.OpenAI.APIKey != "" {
		p, err := NewOpenAIClient(WithName(ProviderOpenAI), WithAPIKey(cfg.OpenAI.APIKey), WithBaseURL(cfg.OpenAI.BaseURL), WithModel(cfg.OpenAI.Model), WithTimeout(timeout))
		add(p, err, ProviderOpenAI)
	}

	chain := NewChain(providers, opts...)
	slog.Info("genai.NewChainFromConfig: provider chain ready", "providers", chain.Names())
	return chain
}
