package am

import (
	"os"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.max_body_bytes", 10<<20) // 10 MiB of evidence

	// Generator defaults
	v.SetDefault("generator.provider", "auto")
	v.SetDefault("generator.temperature", 0.0)
	v.SetDefault("generator.max_tokens", 4096)
	v.SetDefault("generator.max_retries", 3)
	v.SetDefault("generator.requests_per_minute", 30) // Groq free tier ceiling
	v.SetDefault("generator.request_timeout_seconds", 120)

	v.SetDefault("generator.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("generator.groq.model", "llama-3.3-70b-versatile")

	v.SetDefault("generator.openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("generator.openrouter.model", "openai/gpt-4o-mini")

	v.SetDefault("generator.anthropic.base_url", "https://api.anthropic.com/v1")
	v.SetDefault("generator.anthropic.model", "claude-3-5-haiku-latest")

	v.SetDefault("generator.local.enabled", false)
	v.SetDefault("generator.local.base_url", "http://localhost:11434")
	v.SetDefault("generator.local.model", "llama3.2:3b")

	// Pipeline defaults
	v.SetDefault("pipeline.blueprint", "full")
	v.SetDefault("pipeline.roles_file", "")
	v.SetDefault("pipeline.parallelism", 1) // Sequential baseline
	v.SetDefault("pipeline.stage_timeout_seconds", 180)

	// Render defaults
	v.SetDefault("render.format", "pdf")
	v.SetDefault("render.output_dir", os.TempDir())
	v.SetDefault("render.chrome_path", "")
	v.SetDefault("render.timeout_seconds", 60)
	v.SetDefault("render.llm_styling", false)
	v.SetDefault("render.keep_artifacts", false)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables.
// Unprefixed provider variables (GROQ_API_KEY, ...) are accepted as fallbacks.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("generator.groq.api_key", "THREATBRIEF_GENERATOR_GROQ_API_KEY", "GROQ_API_KEY")
	v.BindEnv("generator.openrouter.api_key", "THREATBRIEF_GENERATOR_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	v.BindEnv("generator.anthropic.api_key", "THREATBRIEF_GENERATOR_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	// MODEL overrides the Groq model
	v.BindEnv("generator.groq.model", "THREATBRIEF_GENERATOR_GROQ_MODEL", "MODEL")
}

// GetAllowedOrigins returns the allowed CORS/WebSocket origins
func (c *Config) GetAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return []string{
			"http://localhost",
			"https://localhost",
			"http://127.0.0.1",
			"https://127.0.0.1",
		}
	}
	return c.Server.AllowedOrigins
}

// GetTemperature returns the sampling temperature (default 0)
func (g GeneratorConfig) GetTemperature() float64 {
	if g.Temperature == nil {
		return 0
	}
	return *g.Temperature
}
