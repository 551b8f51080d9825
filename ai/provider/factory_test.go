package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/threatbrief/ai/anthropic"
	"github.com/teranos/threatbrief/ai/openai"
	"github.com/teranos/threatbrief/am"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"", ProviderAuto, false},
		{"auto", ProviderAuto, false},
		{"Groq", ProviderGroq, false},
		{"or", ProviderOpenRouter, false},
		{"claude", ProviderAnthropic, false},
		{"ollama", ProviderLocal, false},
		{"openai", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProvider(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAutoSelect(t *testing.T) {
	tests := []struct {
		name string
		gen  am.GeneratorConfig
		want Provider
	}{
		{
			name: "local enabled wins",
			gen: am.GeneratorConfig{
				Local: am.LocalInferenceConfig{Enabled: true, BaseURL: "http://localhost:11434"},
				Groq:  am.CompatibleConfig{APIKey: "gsk"},
			},
			want: ProviderLocal,
		},
		{
			name: "local enabled without base URL is skipped",
			gen: am.GeneratorConfig{
				Local:     am.LocalInferenceConfig{Enabled: true},
				Anthropic: am.AnthropicConfig{APIKey: "sk-ant"},
			},
			want: ProviderAnthropic,
		},
		{
			name: "groq before anthropic",
			gen: am.GeneratorConfig{
				Groq:      am.CompatibleConfig{APIKey: "gsk"},
				Anthropic: am.AnthropicConfig{APIKey: "sk-ant"},
			},
			want: ProviderGroq,
		},
		{
			name: "openrouter when only key",
			gen:  am.GeneratorConfig{OpenRouter: am.CompatibleConfig{APIKey: "sk-or"}},
			want: ProviderOpenRouter,
		},
		{
			name: "nothing configured falls back to groq",
			gen:  am.GeneratorConfig{},
			want: ProviderGroq,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AutoSelect(&am.Config{Generator: tt.gen}))
		})
	}
}

func TestNewAIClient(t *testing.T) {
	cfg := &am.Config{Generator: am.GeneratorConfig{
		Provider:  "anthropic",
		Anthropic: am.AnthropicConfig{APIKey: "sk-ant"},
	}}

	client, p, err := NewAIClient(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p)
	assert.IsType(t, &anthropic.Client{}, client)

	cfg.Generator.Provider = "auto"
	cfg.Generator.Groq.APIKey = "gsk"
	client, p, err = NewAIClient(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderGroq, p)
	require.IsType(t, &openai.Client{}, client)
	assert.Equal(t, "groq", client.(*openai.Client).Name())

	cfg.Generator.Provider = "bogus"
	_, _, err = NewAIClient(cfg, nil)
	assert.Error(t, err)
}

func TestNewGeneratorFromConfig_RateLimit(t *testing.T) {
	cfg := &am.Config{Generator: am.GeneratorConfig{
		Provider:          "groq",
		RequestsPerMinute: 30,
	}}

	gen, err := NewGeneratorFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderGroq, gen.Provider())
	assert.IsType(t, &rateLimitedClient{}, gen.client)

	cfg.Generator.RequestsPerMinute = 0
	gen, err = NewGeneratorFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &openai.Client{}, gen.client)
}

func TestGetAvailableProviders(t *testing.T) {
	cfg := &am.Config{Generator: am.GeneratorConfig{
		Local:      am.LocalInferenceConfig{Enabled: true},
		OpenRouter: am.CompatibleConfig{APIKey: "sk-or"},
	}}
	assert.Equal(t, []Provider{ProviderLocal, ProviderOpenRouter}, GetAvailableProviders(cfg))
}
