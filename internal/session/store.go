// Package session persists conversation histories as named JSON files.
//
// Each session is stored as <dir>/<slug>.json holding {"messages": [...]}.
// The store works on an afero.Fs so the CLI uses the OS filesystem and tests
// use an in-memory one.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/multiworker/internal/errors"
	"github.com/Iron-Ham/multiworker/internal/model"
)

// DefaultDir is the directory sessions are stored in when none is configured.
const DefaultDir = "sessions"

// FileExt is the extension of session files.
const FileExt = ".json"

// ErrNotFound indicates that no session file exists for the name.
var ErrNotFound = errors.New("session not found")

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9_\-]+`)

// Slug converts a user-supplied session name into a safe file stem. Runs of
// characters outside [A-Za-z0-9_-] become "_", leading and trailing
// underscores are trimmed, and an empty result becomes "session".
func Slug(name string) string {
	s := strings.Trim(slugPattern.ReplaceAllString(name, "_"), "_")
	if s == "" {
		return "session"
	}
	return s
}

// File is the on-disk shape of a session.
type File struct {
	Messages []model.Message `json:"messages"`
}

// Store reads and writes session files. It is safe for concurrent use.
type Store struct {
	fs  afero.Fs
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store rooted at dir on fs. The directory is created
// lazily on the first Save.
func NewStore(fs afero.Fs, dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{fs: fs, dir: dir}
}

// NewOSStore creates a Store on the OS filesystem.
func NewOSStore(dir string) *Store {
	return NewStore(afero.NewOsFs(), dir)
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path used for the named session.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, Slug(name)+FileExt)
}

// List returns the names of all stored sessions, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != FileExt {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), FileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Save writes history under the slug of name, replacing any previous file,
// and returns the path written.
func (s *Store) Save(ctx context.Context, name string, history []model.Message) (string, error) {
	if history == nil {
		history = []model.Message{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(File{Messages: history}); err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create sessions directory: %w", err)
	}
	path := s.Path(name)
	if err := atomicWriteFile(s.fs, path, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads the named session. Entries without both a role and a content
// field are dropped; non-string values are converted to their text form.
// Returns ErrNotFound when no file exists.
func (s *Store) Load(ctx context.Context, name string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.Path(name)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, Slug(name))
		}
		return nil, errors.Wrap(err, "failed to read session")
	}

	var raw struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "failed to parse session %s", path)
	}

	history := make([]model.Message, 0, len(raw.Messages))
	for _, item := range raw.Messages {
		var entry map[string]any
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		role, hasRole := entry["role"]
		content, hasContent := entry["content"]
		if !hasRole || !hasContent {
			continue
		}
		history = append(history, model.Message{Role: text(role), Content: text(content)})
	}
	return history, nil
}

func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return "None"
	}
	return fmt.Sprint(v)
}

// atomicWriteFile writes data to a temp file in the same directory and
// renames it over path.
func atomicWriteFile(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	tmp, err := afero.TempFile(fs, filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = fs.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := fs.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
