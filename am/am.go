// Package am holds threatbrief's core configuration ("I am").
//
// Configuration is assembled by Viper from defaults, TOML files, a .env file
// and THREATBRIEF_* environment variables, then unmarshalled once into Config
// and passed explicitly to the components that need it.
package am

// Config represents the core threatbrief configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server" toml:"server" yaml:"server" json:"server"`
	Generator GeneratorConfig `mapstructure:"generator" toml:"generator" yaml:"generator" json:"generator"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" toml:"pipeline" yaml:"pipeline" json:"pipeline"`
	Render    RenderConfig    `mapstructure:"render" toml:"render" yaml:"render" json:"render"`
	Metrics   MetricsConfig   `mapstructure:"metrics" toml:"metrics" yaml:"metrics" json:"metrics"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port                   int      `mapstructure:"port" toml:"port" yaml:"port" json:"port"`
	AllowedOrigins         []string `mapstructure:"allowed_origins" toml:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" json:"shutdown_timeout_seconds"`
	MaxBodyBytes           int64    `mapstructure:"max_body_bytes" toml:"max_body_bytes" yaml:"max_body_bytes" json:"max_body_bytes"`
}

// Server port constants
const (
	DefaultServerPort = 8002
)

// GeneratorConfig configures the text-generation backend shared by all stages
type GeneratorConfig struct {
	Provider              string   `mapstructure:"provider" toml:"provider" yaml:"provider" json:"provider"`                                     // auto, groq, openrouter, anthropic, local
	Temperature           *float64 `mapstructure:"temperature" toml:"temperature" yaml:"temperature" json:"temperature"`                         // nil = 0
	MaxTokens             *int     `mapstructure:"max_tokens" toml:"max_tokens" yaml:"max_tokens" json:"max_tokens"`                             // nil = provider default
	MaxRetries            int      `mapstructure:"max_retries" toml:"max_retries" yaml:"max_retries" json:"max_retries"`                         // client-side retries on network errors
	RequestsPerMinute     int      `mapstructure:"requests_per_minute" toml:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"` // 0 = unlimited
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds" toml:"request_timeout_seconds" yaml:"request_timeout_seconds" json:"request_timeout_seconds"`

	Groq       CompatibleConfig     `mapstructure:"groq" toml:"groq" yaml:"groq" json:"groq"`
	OpenRouter CompatibleConfig     `mapstructure:"openrouter" toml:"openrouter" yaml:"openrouter" json:"openrouter"`
	Anthropic  AnthropicConfig      `mapstructure:"anthropic" toml:"anthropic" yaml:"anthropic" json:"anthropic"`
	Local      LocalInferenceConfig `mapstructure:"local" toml:"local" yaml:"local" json:"local"`
}

// CompatibleConfig configures an OpenAI-compatible chat completions endpoint
type CompatibleConfig struct {
	APIKey  string `mapstructure:"api_key" toml:"api_key" yaml:"api_key" json:"-"`
	BaseURL string `mapstructure:"base_url" toml:"base_url" yaml:"base_url" json:"base_url"`
	Model   string `mapstructure:"model" toml:"model" yaml:"model" json:"model"`
}

// AnthropicConfig configures direct Anthropic API access
type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key" toml:"api_key" yaml:"api_key" json:"-"`
	BaseURL string `mapstructure:"base_url" toml:"base_url" yaml:"base_url" json:"base_url"`
	Model   string `mapstructure:"model" toml:"model" yaml:"model" json:"model"`
}

// LocalInferenceConfig configures local model inference (Ollama, LocalAI, etc.)
type LocalInferenceConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled" yaml:"enabled" json:"enabled"`
	BaseURL string `mapstructure:"base_url" toml:"base_url" yaml:"base_url" json:"base_url"` // e.g., "http://localhost:11434" for Ollama
	Model   string `mapstructure:"model" toml:"model" yaml:"model" json:"model"`
}

// PipelineConfig configures stage construction and execution
type PipelineConfig struct {
	Blueprint           string `mapstructure:"blueprint" toml:"blueprint" yaml:"blueprint" json:"blueprint"`    // full, compact, or a YAML file path
	RolesFile           string `mapstructure:"roles_file" toml:"roles_file" yaml:"roles_file" json:"roles_file"` // optional YAML role registry override
	Parallelism         int    `mapstructure:"parallelism" toml:"parallelism" yaml:"parallelism" json:"parallelism"`
	StageTimeoutSeconds int    `mapstructure:"stage_timeout_seconds" toml:"stage_timeout_seconds" yaml:"stage_timeout_seconds" json:"stage_timeout_seconds"`
}

// RenderConfig configures document rendering
type RenderConfig struct {
	Format         string `mapstructure:"format" toml:"format" yaml:"format" json:"format"` // pdf or html
	OutputDir      string `mapstructure:"output_dir" toml:"output_dir" yaml:"output_dir" json:"output_dir"`
	ChromePath     string `mapstructure:"chrome_path" toml:"chrome_path" yaml:"chrome_path" json:"chrome_path"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
	LLMStyling     bool   `mapstructure:"llm_styling" toml:"llm_styling" yaml:"llm_styling" json:"llm_styling"`
	KeepArtifacts  bool   `mapstructure:"keep_artifacts" toml:"keep_artifacts" yaml:"keep_artifacts" json:"keep_artifacts"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled" yaml:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" toml:"path" yaml:"path" json:"path"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)
