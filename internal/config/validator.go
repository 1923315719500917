package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/Iron-Ham/multiworker/internal/model"
	"github.com/Iron-Ham/multiworker/internal/orchestrator"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "workers.count")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateModel()...)
	errors = append(errors, c.validateWorkers()...)
	errors = append(errors, c.validateRetry()...)
	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validatePaths()...)

	return errors
}

func (c *Config) validateModel() []ValidationError {
	var errors []ValidationError

	if !IsValidModel(c.Model.ID, c.Model.Choices) {
		msg := "must not be empty"
		if c.Model.ID != "" {
			msg = fmt.Sprintf("must be one of: %s", strings.Join(c.Model.Choices, ", "))
		}
		errors = append(errors, ValidationError{
			Field:   "model.id",
			Value:   c.Model.ID,
			Message: msg,
		})
	}

	if !slices.Contains(model.ValidReasoningLevels(), c.Model.Reasoning) {
		errors = append(errors, ValidationError{
			Field:   "model.reasoning",
			Value:   c.Model.Reasoning,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(model.ValidReasoningLevels(), ", ")),
		})
	}

	if !slices.Contains(model.ValidVerbosityLevels(), c.Model.Verbosity) {
		errors = append(errors, ValidationError{
			Field:   "model.verbosity",
			Value:   c.Model.Verbosity,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(model.ValidVerbosityLevels(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateWorkers() []ValidationError {
	var errors []ValidationError

	if c.Workers.Count < orchestrator.MinWorkers || c.Workers.Count > orchestrator.MaxWorkers {
		errors = append(errors, ValidationError{
			Field:   "workers.count",
			Value:   c.Workers.Count,
			Message: fmt.Sprintf("must be between %d and %d", orchestrator.MinWorkers, orchestrator.MaxWorkers),
		})
	}

	if c.Workers.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "workers.timeout_seconds",
			Value:   c.Workers.TimeoutSeconds,
			Message: "must be non-negative (0 = no budget)",
		})
	}

	return errors
}

func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	if c.Retry.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_attempts",
			Value:   c.Retry.MaxAttempts,
			Message: "must be at least 1",
		})
	}

	if c.Retry.InitialDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.initial_delay_ms",
			Value:   c.Retry.InitialDelayMs,
			Message: "must be non-negative",
		})
	}

	if c.Retry.MaxDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_delay_ms",
			Value:   c.Retry.MaxDelayMs,
			Message: "must be non-negative (0 = no cap)",
		})
	} else if c.Retry.MaxDelayMs > 0 && c.Retry.MaxDelayMs < c.Retry.InitialDelayMs {
		errors = append(errors, ValidationError{
			Field:   "retry.max_delay_ms",
			Value:   c.Retry.MaxDelayMs,
			Message: fmt.Sprintf("must be at least retry.initial_delay_ms (%d)", c.Retry.InitialDelayMs),
		})
	}

	if c.Retry.Multiplier < 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.multiplier",
			Value:   c.Retry.Multiplier,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateAPI() []ValidationError {
	var errors []ValidationError

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "api.base_url",
			Value:   c.API.BaseURL,
			Message: "must be an absolute URL",
		})
	}

	if strings.TrimSpace(c.API.KeyEnv) == "" {
		errors = append(errors, ValidationError{
			Field:   "api.key_env",
			Value:   c.API.KeyEnv,
			Message: "must name an environment variable",
		})
	}

	if c.API.RequestTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "api.request_timeout_seconds",
			Value:   c.API.RequestTimeoutSeconds,
			Message: "must be non-negative (0 = no timeout)",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 1 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be at least 1",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Sessions.Dir) == "" {
		errors = append(errors, ValidationError{
			Field:   "sessions.dir",
			Value:   c.Sessions.Dir,
			Message: "must not be empty",
		})
	}

	return errors
}
