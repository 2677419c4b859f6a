package job_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reframe/internal/job"
)

func TestResolveIsDeterministic(t *testing.T) {
	first, err := job.Resolve("/work", "/a/face.jpg", "/b/clip.mp4")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := job.Resolve("/work", "/other/face.jpg", "/elsewhere/clip.mp4")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first.Key != "job__face.jpg__clip.mp4" {
		t.Fatalf("unexpected key %q", first.Key)
	}
	if first.Key != second.Key {
		t.Fatalf("same base names should share a key: %q vs %q", first.Key, second.Key)
	}
	if first.WorkDir != filepath.Join("/work", first.Key) {
		t.Fatalf("unexpected work dir %q", first.WorkDir)
	}
	if _, err := os.Stat(first.WorkDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Resolve must not create the work dir")
	}
}

func TestKeyNormalizesUnicode(t *testing.T) {
	composed, err := job.Key("/in/caf\u00e9.jpg", "/in/clip.mp4")
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	decomposed, err := job.Key("/in/cafe\u0301.jpg", "/in/clip.mp4")
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if composed != decomposed {
		t.Fatalf("expected equal keys, got %q and %q", composed, decomposed)
	}
}

func TestResolveRejectsEmptyPaths(t *testing.T) {
	if _, err := job.Resolve("/work", "", "/b/clip.mp4"); !errors.Is(err, job.ErrEmptyPath) {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
	if _, err := job.Resolve("/work", "/a/face.jpg", "  "); !errors.Is(err, job.ErrEmptyPath) {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
}

func TestDetectState(t *testing.T) {
	root := t.TempDir()
	missing := filepath.Join(root, "missing")
	if state, err := job.DetectState(missing); err != nil || state != job.Fresh {
		t.Fatalf("missing dir = %v, %v", state, err)
	}

	empty := filepath.Join(root, "empty")
	if err := os.Mkdir(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	if state, err := job.DetectState(empty); err != nil || state != job.Fresh {
		t.Fatalf("empty dir = %v, %v", state, err)
	}

	lockOnly := filepath.Join(root, "locked")
	if err := os.Mkdir(lockOnly, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(lockOnly, job.LockFileName), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if state, err := job.DetectState(lockOnly); err != nil || state != job.Fresh {
		t.Fatalf("lock-only dir = %v, %v", state, err)
	}

	if err := os.WriteFile(filepath.Join(lockOnly, "frame0.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if state, err := job.DetectState(lockOnly); err != nil || state != job.Resumable {
		t.Fatalf("populated dir = %v, %v", state, err)
	}
}

func TestParseDecision(t *testing.T) {
	cases := map[string]job.Decision{
		"":         job.Continue,
		"continue": job.Continue,
		"RESTART":  job.Restart,
	}
	for input, want := range cases {
		got, err := job.ParseDecision(input)
		if err != nil || got != want {
			t.Fatalf("ParseDecision(%q) = %v, %v", input, got, err)
		}
	}
	if _, err := job.ParseDecision("maybe"); err == nil {
		t.Fatal("expected error for unknown decision")
	}
}

func TestResetKeepsLock(t *testing.T) {
	dir := t.TempDir()
	lock, err := job.Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	if err := os.WriteFile(filepath.Join(dir, "frame0.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := job.Reset(dir); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != job.LockFileName {
		t.Fatalf("expected only the lock file to remain, got %v", entries)
	}
}

func TestAcquireRejectsSecondHolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "job__a__b")
	first, err := job.Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := job.Acquire(dir); !errors.Is(err, job.ErrJobLocked) {
		t.Fatalf("expected ErrJobLocked, got %v", err)
	}
	held, err := job.Held(dir)
	if err != nil || !held {
		t.Fatalf("Held = %v, %v", held, err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	held, err = job.Held(dir)
	if err != nil || held {
		t.Fatalf("Held after release = %v, %v", held, err)
	}
	again, err := job.Acquire(dir)
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	_ = again.Release()
}
