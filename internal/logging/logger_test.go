package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/multiworker/internal/errors"
)

func decodeLines(t *testing.T, data string) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file in log directory", func(t *testing.T) {
		dir := t.TempDir()

		logger, err := NewLogger(dir, LevelDebug, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		logPath := filepath.Join(dir, LogFileName)
		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", logPath)
		}
	})

	t.Run("writes to stderr when logDir is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger.closer != nil {
			t.Error("expected no closer when logDir is empty")
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close() = %v, want nil", err)
		}
	})
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{LevelDebug, 4},
		{LevelInfo, 3},
		{LevelWarn, 2},
		{LevelError, 1},
		{"bogus", 3},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(&buf, tt.level)

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Error("error message")

			if got := len(decodeLines(t, buf.String())); got != tt.want {
				t.Errorf("got %d lines, want %d", got, tt.want)
			}
		})
	}
}

func TestFailure_LevelFollowsSeverity(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{"transient model error", errors.Transient("rate limited", nil), "WARN"},
		{"fatal model error", errors.Fatal("bad request", nil), "ERROR"},
		{"canceled task", errors.NewTaskError("Worker-1", 1, errors.ErrCanceled), "INFO"},
		{"plain error", errors.New("boom"), "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewLoggerWithWriter(&buf, LevelDebug).Failure("task failed", tt.err, "attempts", 1)

			entries := decodeLines(t, buf.String())
			if len(entries) != 1 {
				t.Fatalf("got %d entries, want 1", len(entries))
			}
			if entries[0]["level"] != tt.level {
				t.Errorf("level = %v, want %s", entries[0]["level"], tt.level)
			}
			if entries[0]["error"] != tt.err.Error() {
				t.Errorf("error = %v, want %q", entries[0]["error"], tt.err.Error())
			}
			if entries[0]["attempts"] != float64(1) {
				t.Errorf("attempts = %v, want 1", entries[0]["attempts"])
			}
		})
	}
}

func TestPersistentAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter(&buf, LevelDebug)

	child := base.WithTurn("turn-1").WithPhase("collecting").WithWorker("Worker-2").With("model", "gpt-5")
	child.Info("attempt failed", "attempt", 2)
	base.Info("untagged")

	entries := decodeLines(t, buf.String())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	tagged := entries[0]
	for key, want := range map[string]any{
		"turn_id": "turn-1",
		"phase":   "collecting",
		"worker":  "Worker-2",
		"model":   "gpt-5",
		"attempt": float64(2),
		"msg":     "attempt failed",
	} {
		if tagged[key] != want {
			t.Errorf("%s = %v, want %v", key, tagged[key], want)
		}
	}

	if _, ok := entries[1]["turn_id"]; ok {
		t.Error("parent logger must not inherit child attributes")
	}
}

func TestWith_IgnoresNonStringKeysAndEmptyArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LevelInfo)

	if logger.With() != logger {
		t.Error("With() with no args should return the same logger")
	}

	logger.With(42, "value", "ok", true).Info("msg")
	entries := decodeLines(t, buf.String())
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["ok"] != true {
		t.Errorf("ok = %v, want true", entries[0]["ok"])
	}
}

func TestConcurrentLogging(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := logger.WithWorker("Worker")
			for j := 0; j < 25; j++ {
				w.Info("tick", "i", i, "j", j)
			}
		}(i)
	}
	wg.Wait()

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if got := len(decodeLines(t, string(content))); got != 200 {
		t.Errorf("got %d entries, want 200", got)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Error("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug": LevelDebug,
		"INFO":  LevelInfo,
		"Warn":  LevelWarn,
		"error": LevelError,
		"":      LevelInfo,
		"trace": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
	if len(ValidLevels()) != 4 {
		t.Errorf("ValidLevels() = %v", ValidLevels())
	}
}
