package am

import (
	"strings"

	"github.com/teranos/threatbrief/errors"
)

var validProviders = map[string]bool{
	"":           true,
	"auto":       true,
	"groq":       true,
	"openrouter": true,
	"anthropic":  true,
	"local":      true,
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Server port: 0 is invalid, negative is invalid
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeoutSeconds < 0 {
		return errors.Newf("server.shutdown_timeout_seconds must be >= 0, got %d", c.Server.ShutdownTimeoutSeconds)
	}
	if c.Server.MaxBodyBytes < 0 {
		return errors.Newf("server.max_body_bytes must be >= 0, got %d", c.Server.MaxBodyBytes)
	}

	if !validProviders[strings.ToLower(c.Generator.Provider)] {
		return errors.Newf("generator.provider must be one of auto, groq, openrouter, anthropic, local, got %q", c.Generator.Provider)
	}
	if t := c.Generator.Temperature; t != nil && (*t < 0 || *t > 2) {
		return errors.Newf("generator.temperature must be in 0..2, got %f", *t)
	}
	if c.Generator.MaxTokens != nil && *c.Generator.MaxTokens <= 0 {
		return errors.Newf("generator.max_tokens must be > 0, got %d (omit for provider default)", *c.Generator.MaxTokens)
	}
	if c.Generator.MaxRetries < 0 {
		return errors.Newf("generator.max_retries must be >= 0, got %d", c.Generator.MaxRetries)
	}
	// 0 = unlimited
	if c.Generator.RequestsPerMinute < 0 {
		return errors.Newf("generator.requests_per_minute must be >= 0, got %d", c.Generator.RequestsPerMinute)
	}

	if c.Generator.Local.Enabled || strings.EqualFold(c.Generator.Provider, "local") {
		if c.Generator.Local.BaseURL == "" {
			return errors.New("generator.local.base_url cannot be empty when local inference is used")
		}
		if c.Generator.Local.Model == "" {
			return errors.New("generator.local.model cannot be empty when local inference is used")
		}
	}

	if c.Pipeline.Parallelism < 1 {
		return errors.Newf("pipeline.parallelism must be >= 1, got %d", c.Pipeline.Parallelism)
	}
	// 0 = no per-stage deadline
	if c.Pipeline.StageTimeoutSeconds < 0 {
		return errors.Newf("pipeline.stage_timeout_seconds must be >= 0, got %d", c.Pipeline.StageTimeoutSeconds)
	}

	switch c.Render.Format {
	case "pdf", "html":
	default:
		return errors.Newf("render.format must be pdf or html, got %q", c.Render.Format)
	}
	if c.Render.TimeoutSeconds < 0 {
		return errors.Newf("render.timeout_seconds must be >= 0, got %d", c.Render.TimeoutSeconds)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.Newf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}

	return nil
}
