// Package provider selects a text-generation backend from configuration and
// adapts it to the pipeline's generation capability.
package provider

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/threatbrief/ai/anthropic"
	"github.com/teranos/threatbrief/ai/openai"
	"github.com/teranos/threatbrief/am"
	"github.com/teranos/threatbrief/errors"
)

// Provider represents an LLM provider type
type Provider string

const (
	// ProviderAuto selects based on configuration
	ProviderAuto Provider = "auto"
	// ProviderGroq uses Groq's OpenAI-compatible API
	ProviderGroq Provider = "groq"
	// ProviderOpenRouter uses OpenRouter.ai
	ProviderOpenRouter Provider = "openrouter"
	// ProviderAnthropic uses the Anthropic Messages API
	ProviderAnthropic Provider = "anthropic"
	// ProviderLocal uses local inference (Ollama)
	ProviderLocal Provider = "local"
)

// AIClient is implemented by every backend
type AIClient interface {
	Chat(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error)
}

// ParseProvider converts a string to a Provider type
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return ProviderAuto, nil
	case "groq":
		return ProviderGroq, nil
	case "openrouter", "or":
		return ProviderOpenRouter, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "local", "ollama":
		return ProviderLocal, nil
	default:
		return "", errors.Newf("unknown provider: %s (valid: auto, groq, openrouter, anthropic, local)", s)
	}
}

// NewAIClient creates the client named by generator.provider.
// Returns the concrete provider chosen, which differs from the configured one under auto.
func NewAIClient(cfg *am.Config, logger *zap.SugaredLogger) (AIClient, Provider, error) {
	p, err := ParseProvider(cfg.Generator.Provider)
	if err != nil {
		return nil, "", err
	}
	if p == ProviderAuto {
		p = AutoSelect(cfg)
	}
	client, err := NewAIClientWithProvider(cfg, p, logger)
	if err != nil {
		return nil, "", err
	}
	return client, p, nil
}

// AutoSelect picks a provider from configuration.
// Priority: local (if enabled) → Groq → Anthropic → OpenRouter, each only when its key is set.
// Falls back to Groq, which reports the missing key on first use.
func AutoSelect(cfg *am.Config) Provider {
	g := cfg.Generator
	switch {
	case g.Local.Enabled && g.Local.BaseURL != "":
		return ProviderLocal
	case g.Groq.APIKey != "":
		return ProviderGroq
	case g.Anthropic.APIKey != "":
		return ProviderAnthropic
	case g.OpenRouter.APIKey != "":
		return ProviderOpenRouter
	default:
		return ProviderGroq
	}
}

// NewAIClientWithProvider creates a client for a specific, non-auto provider
func NewAIClientWithProvider(cfg *am.Config, p Provider, logger *zap.SugaredLogger) (AIClient, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	g := cfg.Generator
	timeout := time.Duration(g.RequestTimeoutSeconds) * time.Second
	temperature := g.GetTemperature()

	switch p {
	case ProviderGroq:
		return openai.NewClient(openai.Config{
			Name:        string(ProviderGroq),
			APIKey:      g.Groq.APIKey,
			BaseURL:     g.Groq.BaseURL,
			Model:       g.Groq.Model,
			Temperature: &temperature,
			MaxTokens:   g.MaxTokens,
			MaxRetries:  g.MaxRetries,
			Timeout:     timeout,
			Logger:      logger.Named("groq"),
		}), nil
	case ProviderOpenRouter:
		return openai.NewClient(openai.Config{
			Name:        string(ProviderOpenRouter),
			APIKey:      g.OpenRouter.APIKey,
			BaseURL:     g.OpenRouter.BaseURL,
			Model:       g.OpenRouter.Model,
			Temperature: &temperature,
			MaxTokens:   g.MaxTokens,
			MaxRetries:  g.MaxRetries,
			Timeout:     timeout,
			Title:       "threatbrief",
			Logger:      logger.Named("openrouter"),
		}), nil
	case ProviderAnthropic:
		return anthropic.NewClient(anthropic.Config{
			APIKey:      g.Anthropic.APIKey,
			BaseURL:     g.Anthropic.BaseURL,
			Model:       g.Anthropic.Model,
			Temperature: &temperature,
			MaxTokens:   g.MaxTokens,
			Timeout:     timeout,
			Logger:      logger.Named("anthropic"),
		}), nil
	case ProviderLocal:
		return NewLocalClient(LocalClientConfig{
			BaseURL:     g.Local.BaseURL,
			Model:       g.Local.Model,
			Temperature: temperature,
			MaxTokens:   g.MaxTokens,
			Timeout:     timeout,
		}), nil
	default:
		return nil, errors.Newf("cannot construct client for provider %q", p)
	}
}

// GetAvailableProviders returns the providers with usable configuration
func GetAvailableProviders(cfg *am.Config) []Provider {
	var providers []Provider
	g := cfg.Generator
	if g.Local.Enabled {
		providers = append(providers, ProviderLocal)
	}
	if g.Groq.APIKey != "" {
		providers = append(providers, ProviderGroq)
	}
	if g.Anthropic.APIKey != "" {
		providers = append(providers, ProviderAnthropic)
	}
	if g.OpenRouter.APIKey != "" {
		providers = append(providers, ProviderOpenRouter)
	}
	return providers
}

// NewGeneratorFromConfig builds the configured client, applies the
// requests-per-minute limit and adapts it to the generation capability.
func NewGeneratorFromConfig(cfg *am.Config, logger *zap.SugaredLogger) (*Generator, error) {
	client, p, err := NewAIClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	if rpm := cfg.Generator.RequestsPerMinute; rpm > 0 {
		client = RateLimited(client, rpm)
	}
	return NewGenerator(client, p), nil
}

var (
	_ AIClient = (*openai.Client)(nil)
	_ AIClient = (*anthropic.Client)(nil)
	_ AIClient = (*LocalClient)(nil)
)
