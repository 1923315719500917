package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/Iron-Ham/multiworker/internal/model"
	"github.com/Iron-Ham/multiworker/internal/orchestrator"
)

// Keys accepted by Settings.Set.
const (
	KeyModel      = "model"
	KeyReasoning  = "reasoning"
	KeyVerbosity  = "verbosity"
	KeyWorkers    = "workers"
	KeyTranscript = "transcript"
)

// SettableKeys returns the keys Settings.Set accepts.
func SettableKeys() []string {
	return []string{KeyModel, KeyReasoning, KeyVerbosity, KeyWorkers, KeyTranscript}
}

// Settings holds the runtime-mutable configuration of an interactive
// session. Turns never read it directly; they run with a Snapshot taken
// before dispatch, so a change only affects the next turn.
type Settings struct {
	mu  sync.RWMutex
	cfg Config
}

// NewSettings creates Settings seeded from cfg. A nil cfg uses Default().
func NewSettings(cfg *Config) *Settings {
	if cfg == nil {
		cfg = Default()
	}
	s := &Settings{}
	s.cfg = cloneConfig(cfg)
	return s
}

// Snapshot returns the TurnConfig the next turn should run with.
func (s *Settings) Snapshot() orchestrator.TurnConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.TurnConfig()
}

// Config returns a copy of the current configuration.
func (s *Settings) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneConfig(&s.cfg)
}

// TranscriptEnabled reports whether turns should be written to a trace file.
func (s *Settings) TranscriptEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Transcript.Enabled
}

// Replace swaps in a whole new configuration, e.g. after a config file reload.
func (s *Settings) Replace(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cloneConfig(cfg)
}

// Set changes one runtime setting. The value is validated against the same
// rules as the config file; on error nothing changes.
func (s *Settings) Set(key, value string) error {
	value = strings.TrimSpace(value)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch strings.ToLower(key) {
	case KeyModel:
		if !IsValidModel(value, s.cfg.Model.Choices) {
			return ValidationError{Field: "model.id", Value: value,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(s.cfg.Model.Choices, ", "))}
		}
		s.cfg.Model.ID = value
	case KeyReasoning:
		value = strings.ToLower(value)
		if !slices.Contains(model.ValidReasoningLevels(), value) {
			return ValidationError{Field: "model.reasoning", Value: value,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(model.ValidReasoningLevels(), ", "))}
		}
		s.cfg.Model.Reasoning = value
	case KeyVerbosity:
		value = strings.ToLower(value)
		if !slices.Contains(model.ValidVerbosityLevels(), value) {
			return ValidationError{Field: "model.verbosity", Value: value,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(model.ValidVerbosityLevels(), ", "))}
		}
		s.cfg.Model.Verbosity = value
	case KeyWorkers:
		n, err := strconv.Atoi(value)
		if err != nil || n < orchestrator.MinWorkers || n > orchestrator.MaxWorkers {
			return ValidationError{Field: "workers.count", Value: value,
				Message: fmt.Sprintf("must be between %d and %d", orchestrator.MinWorkers, orchestrator.MaxWorkers)}
		}
		s.cfg.Workers.Count = n
	case KeyTranscript:
		switch strings.ToLower(value) {
		case "on", "true", "1":
			s.cfg.Transcript.Enabled = true
		case "off", "false", "0":
			s.cfg.Transcript.Enabled = false
		case "toggle", "":
			s.cfg.Transcript.Enabled = !s.cfg.Transcript.Enabled
		default:
			return ValidationError{Field: "transcript.enabled", Value: value,
				Message: "must be one of: on, off, toggle"}
		}
	default:
		return ValidationError{Field: key, Value: value,
			Message: fmt.Sprintf("unknown setting, expected one of: %s", strings.Join(SettableKeys(), ", "))}
	}
	return nil
}

// Describe renders the current settings as "key: value" lines in
// SettableKeys order, followed by the retry policy.
func (s *Settings) Describe() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transcript := "off"
	if s.cfg.Transcript.Enabled {
		transcript = "on"
	}
	return []string{
		fmt.Sprintf("%s: %s (choices: %s)", KeyModel, s.cfg.Model.ID, strings.Join(s.cfg.Model.Choices, ", ")),
		fmt.Sprintf("%s: %s (choices: %s)", KeyReasoning, s.cfg.Model.Reasoning, strings.Join(model.ValidReasoningLevels(), ", ")),
		fmt.Sprintf("%s: %s (choices: %s)", KeyVerbosity, s.cfg.Model.Verbosity, strings.Join(model.ValidVerbosityLevels(), ", ")),
		fmt.Sprintf("%s: %d (%d-%d)", KeyWorkers, s.cfg.Workers.Count, orchestrator.MinWorkers, orchestrator.MaxWorkers),
		fmt.Sprintf("%s: %s", KeyTranscript, transcript),
		fmt.Sprintf("retry: %s", s.cfg.Retry.Policy()),
	}
}

func cloneConfig(cfg *Config) Config {
	c := *cfg
	c.Model.Choices = slices.Clone(cfg.Model.Choices)
	return c
}
