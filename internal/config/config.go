package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/multiworker/internal/model"
	"github.com/Iron-Ham/multiworker/internal/orchestrator"
	"github.com/Iron-Ham/multiworker/internal/retry"
)

// EnvPrefix is prepended to every environment override, e.g.
// MULTIWORKER_WORKERS_COUNT=6.
const EnvPrefix = "MULTIWORKER"

// Config represents the complete multiworker configuration
type Config struct {
	Model      ModelConfig      `mapstructure:"model" yaml:"model"`
	Workers    WorkersConfig    `mapstructure:"workers" yaml:"workers"`
	Retry      RetryConfig      `mapstructure:"retry" yaml:"retry"`
	API        APIConfig        `mapstructure:"api" yaml:"api"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Transcript TranscriptConfig `mapstructure:"transcript" yaml:"transcript"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
	Sessions   SessionsConfig   `mapstructure:"sessions" yaml:"sessions"`
}

// ModelConfig selects the model and its per-call options
type ModelConfig struct {
	// ID is the model every worker and the synthesizer call (default: "gpt-5")
	ID string `mapstructure:"id" yaml:"id"`
	// Choices lists the models /set model accepts. Empty means any.
	Choices []string `mapstructure:"choices" yaml:"choices"`
	// Reasoning is the reasoning effort: minimal, low, medium, high (default: "medium")
	Reasoning string `mapstructure:"reasoning" yaml:"reasoning"`
	// Verbosity is the text verbosity: low, medium, high (default: "low")
	Verbosity string `mapstructure:"verbosity" yaml:"verbosity"`
}

// WorkersConfig controls the fan-out
type WorkersConfig struct {
	// Count is the number of concurrent workers per turn (default: 4, 1-16)
	Count int `mapstructure:"count" yaml:"count"`
	// TimeoutSeconds bounds each worker's retrying task (0 = no budget)
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// RetryConfig controls per-task retry and backoff
type RetryConfig struct {
	// MaxAttempts is the attempt cap per task, first attempt included (default: 5)
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// InitialDelayMs is the wait after the first failed attempt (default: 5000)
	InitialDelayMs int `mapstructure:"initial_delay_ms" yaml:"initial_delay_ms"`
	// MaxDelayMs caps the wait between attempts (default: 60000)
	MaxDelayMs int `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
	// Multiplier grows the delay after each failure (default: 2.0)
	Multiplier float64 `mapstructure:"multiplier" yaml:"multiplier"`
}

// APIConfig controls the completion endpoint
type APIConfig struct {
	// BaseURL is the endpoint root (default: "https://api.openai.com/v1")
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// KeyEnv names the environment variable holding the API key (default: "OPENAI_API_KEY")
	KeyEnv string `mapstructure:"key_env" yaml:"key_env"`
	// RequestTimeoutSeconds bounds a single HTTP request (0 = no timeout)
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is active (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level sets the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// MaxSizeMB is the maximum size of debug.log before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Dir is where debug.log lives (default: "" uses <config dir>/logs)
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// TranscriptConfig controls the per-turn trace file
type TranscriptConfig struct {
	// Enabled writes a multiworker_trace_*.txt file after every turn (default: false)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Dir is where transcript files are written (default: "." )
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// TracingConfig controls OpenTelemetry span export
type TracingConfig struct {
	// Enabled installs a tracer provider (default: false)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Output is the file spans are written to (default: "" writes to stdout)
	Output string `mapstructure:"output" yaml:"output"`
}

// SessionsConfig controls saved conversations
type SessionsConfig struct {
	// Dir holds <slug>.json session files (default: "sessions")
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			ID:        "gpt-5",
			Choices:   []string{"gpt-5", "gpt-5-mini", "gpt-5-nano"},
			Reasoning: model.ReasoningMedium,
			Verbosity: model.VerbosityLow,
		},
		Workers: WorkersConfig{
			Count:          orchestrator.DefaultWorkers,
			TimeoutSeconds: 0,
		},
		Retry: RetryConfig{
			MaxAttempts:    retry.DefaultMaxAttempts,
			InitialDelayMs: int(retry.DefaultInitialDelay / time.Millisecond),
			MaxDelayMs:     int(retry.DefaultMaxDelay / time.Millisecond),
			Multiplier:     retry.DefaultMultiplier,
		},
		API: APIConfig{
			BaseURL:               "https://api.openai.com/v1",
			KeyEnv:                "OPENAI_API_KEY",
			RequestTimeoutSeconds: 0,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Transcript: TranscriptConfig{
			Enabled: false,
			Dir:     ".",
		},
		Tracing: TracingConfig{
			Enabled: false,
		},
		Sessions: SessionsConfig{
			Dir: "sessions",
		},
	}
}

// Policy converts the retry section into a retry.Policy.
func (c RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: time.Duration(c.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(c.MaxDelayMs) * time.Millisecond,
		Multiplier:   c.Multiplier,
	}
}

// Timeout returns the worker budget as a time.Duration (0 means none)
func (c WorkersConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RequestTimeout returns the HTTP timeout as a time.Duration (0 means none)
func (c APIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// LogDir returns the directory debug.log is written to.
func (c LoggingConfig) LogDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return filepath.Join(ConfigDir(), "logs")
}

// TurnConfig builds the snapshot a turn runs with.
func (c *Config) TurnConfig() orchestrator.TurnConfig {
	return orchestrator.TurnConfig{
		Options: model.Options{
			ModelID:   c.Model.ID,
			Reasoning: c.Model.Reasoning,
			Verbosity: c.Model.Verbosity,
		},
		WorkerCount:   c.Workers.Count,
		WorkerTimeout: c.Workers.Timeout(),
		Retry:         c.Retry.Policy(),
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values and environment binding on v.
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	// Model defaults
	v.SetDefault("model.id", defaults.Model.ID)
	v.SetDefault("model.choices", defaults.Model.Choices)
	v.SetDefault("model.reasoning", defaults.Model.Reasoning)
	v.SetDefault("model.verbosity", defaults.Model.Verbosity)

	// Worker defaults
	v.SetDefault("workers.count", defaults.Workers.Count)
	v.SetDefault("workers.timeout_seconds", defaults.Workers.TimeoutSeconds)

	// Retry defaults
	v.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	v.SetDefault("retry.initial_delay_ms", defaults.Retry.InitialDelayMs)
	v.SetDefault("retry.max_delay_ms", defaults.Retry.MaxDelayMs)
	v.SetDefault("retry.multiplier", defaults.Retry.Multiplier)

	// API defaults
	v.SetDefault("api.base_url", defaults.API.BaseURL)
	v.SetDefault("api.key_env", defaults.API.KeyEnv)
	v.SetDefault("api.request_timeout_seconds", defaults.API.RequestTimeoutSeconds)

	// Logging defaults
	v.SetDefault("logging.enabled", defaults.Logging.Enabled)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.dir", defaults.Logging.Dir)

	// Transcript defaults
	v.SetDefault("transcript.enabled", defaults.Transcript.Enabled)
	v.SetDefault("transcript.dir", defaults.Transcript.Dir)

	// Tracing defaults
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.output", defaults.Tracing.Output)

	// Sessions defaults
	v.SetDefault("sessions.dir", defaults.Sessions.Dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "multiworker")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".multiworker"
	}
	return filepath.Join(home, ".config", "multiworker")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// IsValidModel reports whether id is allowed by choices. An empty choices
// list allows any non-empty id.
func IsValidModel(id string, choices []string) bool {
	if id == "" {
		return false
	}
	return len(choices) == 0 || slices.Contains(choices, id)
}
