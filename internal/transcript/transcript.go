// Package transcript renders a finished turn as a plain-text trace and
// writes it to multiworker_trace_<timestamp>.txt.
package transcript

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/multiworker/internal/errors"
	"github.com/Iron-Ham/multiworker/internal/model"
	"github.com/Iron-Ham/multiworker/internal/orchestrator"
	"github.com/Iron-Ham/multiworker/internal/util"
)

// FilePrefix starts every transcript file name.
const FilePrefix = "multiworker_trace_"

// Record is everything a transcript shows about one turn.
type Record struct {
	At          time.Time
	ModelID     string
	History     []model.Message
	UserMessage string
	Outcome     orchestrator.Outcome
}

// Build renders rec as text. History is the conversation before the turn.
func Build(rec Record) string {
	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("[Run @ %s]", rec.At.Format("2006-01-02 15:04:05"))
	add("")
	add("=== CHAT HISTORY BEFORE THIS TURN ===")
	for _, m := range rec.History {
		add("%s: %s", m.Role, m.Content)
	}
	add("")
	add("=== LATEST USER MESSAGE ===")
	add("%s", strings.TrimSpace(rec.UserMessage))
	add("")
	add("=== WORKER DRAFTS ===")
	for _, res := range rec.Outcome.Results {
		status := "ok"
		if !res.OK() {
			status = "error"
		}
		add("\n--- %s (%s) | elapsed %s | attempts %d | status: %s ---",
			res.Name, rec.ModelID, util.FormatElapsed(res.Elapsed), res.Attempts, status)
		switch {
		case res.OK() && res.Draft != "":
			add("%s", res.Draft)
		case res.Err != nil:
			add("[ERROR] %v", res.Err)
		default:
			add("[no output]")
		}
	}
	add("")
	add("=== FINAL ANSWER ===")
	if rec.Outcome.OK() {
		add("%s", rec.Outcome.Answer)
	} else if rec.Outcome.Err != nil {
		add("[FAILED] %v", rec.Outcome.Err)
	}
	add("")
	return strings.Join(lines, "\n")
}

// FileName returns the transcript file name for a turn finished at t.
func FileName(t time.Time) string {
	return FilePrefix + t.Format("20060102-150405") + ".txt"
}

// Writer writes transcripts into a directory.
type Writer struct {
	fs  afero.Fs
	dir string
}

// NewWriter creates a Writer. An empty dir means the working directory.
func NewWriter(fs afero.Fs, dir string) *Writer {
	if dir == "" {
		dir = "."
	}
	return &Writer{fs: fs, dir: dir}
}

// Write renders rec and writes it, returning the path.
func (w *Writer) Write(rec Record) (string, error) {
	if err := w.fs.MkdirAll(w.dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create transcript directory")
	}
	path := filepath.Join(w.dir, FileName(rec.At))
	if err := afero.WriteFile(w.fs, path, []byte(Build(rec)), 0644); err != nil {
		return "", errors.Wrapf(err, "failed to write transcript %s", path)
	}
	return path, nil
}
