package session

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/multiworker/internal/errors"
	"github.com/Iron-Ham/multiworker/internal/model"
)

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"my session":       "my_session",
		"  spaced  ":       "spaced",
		"a/b\\c":           "a_b_c",
		"keep-dash_under":  "keep-dash_under",
		"???":              "session",
		"":                 "session",
		"__x__":            "x",
		"héllo wörld":      "h_llo_w_rld",
		"../../etc/passwd": "etc_passwd",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func sampleHistory() []model.Message {
	return []model.Message{
		model.UserMessage("what is <b>2+2</b>?"),
		model.AssistantMessage("4 ✓ naturally"),
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "sessions")
	ctx := context.Background()

	path, err := store.Save(ctx, "math chat", sampleHistory())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if path != "sessions/math_chat.json" {
		t.Errorf("path = %q", path)
	}

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !json.Valid(raw) {
		t.Fatalf("invalid JSON written: %s", raw)
	}
	if !strings.Contains(string(raw), "<b>2+2</b>") || !strings.Contains(string(raw), "✓") {
		t.Errorf("content should be written unescaped: %s", raw)
	}

	got, err := store.Load(ctx, "math chat")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, sampleHistory()) {
		t.Errorf("Load = %+v", got)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "s")
	ctx := context.Background()

	if _, err := store.Save(ctx, "x", sampleHistory()); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(ctx, "x", nil); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty history after overwrite, got %+v", got)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "sessions")
	_, err := store.Load(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_LoadFiltersEntries(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "sessions")
	content := `{"messages": [
		{"role": "user", "content": "hi"},
		{"role": "assistant"},
		"not an object",
		{"content": "orphan"},
		{"role": "assistant", "content": 42, "extra": true}
	]}`
	if err := afero.WriteFile(fs, "sessions/old.json", []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(context.Background(), "old")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []model.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "42"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "sessions/bad.json", []byte("{"), 0644)

	_, err := NewStore(fs, "sessions").Load(context.Background(), "bad")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want a parse error", err)
	}
}

func TestStore_List(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "sessions")
	ctx := context.Background()

	names, err := store.List(ctx)
	if err != nil || names != nil {
		t.Fatalf("List on missing dir = %v, %v", names, err)
	}

	for _, name := range []string{"zeta", "alpha", "mid dle"} {
		if _, err := store.Save(ctx, name, sampleHistory()); err != nil {
			t.Fatal(err)
		}
	}
	_ = afero.WriteFile(fs, "sessions/notes.txt", []byte("x"), 0644)
	_ = fs.MkdirAll("sessions/sub.json", 0755)

	names, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"alpha", "mid_dle", "zeta"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("List = %v, want %v", names, want)
	}
}

func TestNewStore_DefaultDir(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "")
	if store.Dir() != DefaultDir {
		t.Errorf("Dir() = %q, want %q", store.Dir(), DefaultDir)
	}
}
