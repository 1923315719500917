package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/multiworker/internal/config"
	"github.com/Iron-Ham/multiworker/internal/event"
	"github.com/Iron-Ham/multiworker/internal/logging"
	"github.com/Iron-Ham/multiworker/internal/model"
	"github.com/Iron-Ham/multiworker/internal/model/openai"
	"github.com/Iron-Ham/multiworker/internal/orchestrator"
	"github.com/Iron-Ham/multiworker/internal/retry"
	"github.com/Iron-Ham/multiworker/internal/session"
	"github.com/Iron-Ham/multiworker/internal/tracing"
	"github.com/Iron-Ham/multiworker/internal/transcript"
)

// Version is reported in traces. It is overridden at link time.
var Version = "dev"

// appDeps overrides the collaborators newApp would otherwise build from the
// config. Zero fields get the production implementation.
type appDeps struct {
	Caller model.Caller
	Fs     afero.Fs
	Logger *logging.Logger
	Sleep  retry.SleepFunc
	Now    func() time.Time
}

// app is everything one CLI invocation needs to run turns.
type app struct {
	settings    *config.Settings
	logger      *logging.Logger
	bus         *event.Bus
	engine      *orchestrator.Engine
	sessions    *session.Store
	transcripts *transcript.Writer
	printer     *statusPrinter
	now         func() time.Time

	closers []func(context.Context) error
}

func newApp(cfg *config.Config, out io.Writer, deps appDeps) (*app, error) {
	a := &app{
		settings: config.NewSettings(cfg),
		bus:      event.NewBus(),
		now:      deps.Now,
	}
	if a.now == nil {
		a.now = time.Now
	}

	a.logger = deps.Logger
	if a.logger == nil {
		logger, err := newLogger(cfg.Logging)
		if err != nil {
			return nil, err
		}
		a.logger = logger
	}
	a.closers = append(a.closers, func(context.Context) error { return a.logger.Close() })

	if cfg.Tracing.Enabled {
		if err := tracing.Init("multiworker", Version, cfg.Tracing.Output); err != nil {
			_ = a.close(context.Background())
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		a.closers = append(a.closers, tracing.Shutdown)
	}

	caller := deps.Caller
	if caller == nil {
		caller = openai.NewClient(
			openai.WithBaseURL(cfg.API.BaseURL),
			openai.WithAPIKey(os.Getenv(cfg.API.KeyEnv)),
			openai.WithTimeout(cfg.API.RequestTimeout()),
		)
	}

	fs := deps.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	a.sessions = session.NewStore(fs, cfg.Sessions.Dir)
	a.transcripts = transcript.NewWriter(fs, cfg.Transcript.Dir)

	a.printer = newStatusPrinter(out)
	a.printer.attach(a.bus)

	a.engine = orchestrator.NewEngine(orchestrator.EngineConfig{
		Caller: caller,
		Sink:   a.bus,
		Logger: a.logger,
		Sleep:  deps.Sleep,
		Now:    deps.Now,
	})
	return a, nil
}

func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLogger(cfg.LogDir(), cfg.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return logger, nil
}

// applyFlags copies the per-run flag overrides into the settings.
func (a *app) applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	for flag, key := range map[string]string{
		"model":     config.KeyModel,
		"reasoning": config.KeyReasoning,
		"workers":   config.KeyWorkers,
	} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := a.settings.Set(key, f.Value.String()); err != nil {
				return fmt.Errorf("--%s: %w", flag, err)
			}
		}
	}
	if f := flags.Lookup("transcript"); f != nil && f.Changed {
		value := "off"
		if f.Value.String() == "true" {
			value = "on"
		}
		if err := a.settings.Set(config.KeyTranscript, value); err != nil {
			return err
		}
	}
	return nil
}

// runTurn answers userMessage with the current settings, reports progress
// and the result, and writes the transcript when enabled.
func (a *app) runTurn(ctx context.Context, history []model.Message, userMessage string) orchestrator.Outcome {
	snapshot := a.settings.Snapshot()
	outcome := a.engine.RunTurn(ctx, history, userMessage, snapshot)

	if a.settings.TranscriptEnabled() {
		path, err := a.transcripts.Write(transcript.Record{
			At:          a.now(),
			ModelID:     snapshot.Options.ModelID,
			History:     history,
			UserMessage: userMessage,
			Outcome:     outcome,
		})
		if err != nil {
			a.logger.Warn("failed to write transcript", "turn_id", outcome.TurnID, "error", err)
			a.printer.warn(fmt.Sprintf("transcript not written: %v", err))
		} else {
			a.printer.note(fmt.Sprintf("transcript written to %s", path))
		}
	}

	a.printer.outcome(outcome)
	return outcome
}

func (a *app) close(ctx context.Context) error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// loadApp builds an app from the viper configuration and the command's flags.
func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg, cmd.OutOrStdout(), appDeps{})
	if err != nil {
		return nil, err
	}
	if err := a.applyFlags(cmd); err != nil {
		_ = a.close(context.Background())
		return nil, err
	}
	return a, nil
}
