package staging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reframe/internal/job"
	"reframe/internal/logging"
	"reframe/internal/testsupport"
)

func makeJobDir(t *testing.T, root, key string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, key)
	testsupport.WriteFrames(t, dir, 2, "jpg")
	if age > 0 {
		old := time.Now().Add(-age)
		for _, name := range []string{"frame0.jpg", "frame1.jpg", ""} {
			if err := os.Chtimes(filepath.Join(dir, name), old, old); err != nil {
				t.Fatalf("chtimes: %v", err)
			}
		}
	}
	return dir
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldJobs(t *testing.T) {
	root := t.TempDir()
	oldDir := makeJobDir(t, root, "job__a.png__old.mp4", 48*time.Hour)
	recentDir := makeJobDir(t, root, "job__a.png__new.mp4", 0)
	foreign := filepath.Join(root, "not-a-job")
	if err := os.Mkdir(foreign, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(foreign, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := CleanStale(context.Background(), root, 24*time.Hour, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("removed = %v, want [%s]", result.Removed, oldDir)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("old job directory should have been removed")
	}
	if _, err := os.Stat(recentDir); err != nil {
		t.Error("recent job directory should still exist")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Error("directories without the job prefix must be left alone")
	}
}

func TestCleanStaleSkipsLockedJobs(t *testing.T) {
	root := t.TempDir()
	dir := makeJobDir(t, root, "job__a.png__busy.mp4", 0)
	lock, err := job.Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(dir, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 || len(result.Skipped) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatal("locked job must survive cleanup")
	}
}

func TestCleanStaleHonoursLedgerActivity(t *testing.T) {
	root := t.TempDir()
	dir := makeJobDir(t, root, "job__a.png__active.mp4", 48*time.Hour)
	if err := os.WriteFile(filepath.Join(dir, "progress.txt"), []byte("frame0.jpg\n"), 0o644); err != nil {
		t.Fatalf("write ledger: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(dir, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("job with a fresh ledger was removed: %v", result.Removed)
	}
}

func TestListJobs(t *testing.T) {
	root := t.TempDir()
	makeJobDir(t, root, "job__a.png__one.mp4", 0)
	if err := os.WriteFile(filepath.Join(root, "job__stray-file"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dirs, err := ListJobs(root)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(dirs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(dirs))
	}
	if dirs[0].Key != "job__a.png__one.mp4" || dirs[0].Size != int64(len("frame0.jpg")+len("frame1.jpg")) || dirs[0].Locked {
		t.Fatalf("unexpected dir info: %+v", dirs[0])
	}

	if dirs, err := ListJobs(filepath.Join(root, "missing")); err != nil || dirs != nil {
		t.Fatalf("missing root: %v, %v", dirs, err)
	}
}

func TestRemoveRefusesLockedJob(t *testing.T) {
	root := t.TempDir()
	dir := makeJobDir(t, root, "job__a.png__busy.mp4", 0)
	lock, err := job.Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if err := Remove(dir); !errors.Is(err, job.ErrJobLocked) {
		t.Fatalf("expected ErrJobLocked, got %v", err)
	}
	lock.Release()
	if err := Remove(dir); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("job directory should be gone")
	}
	if err := Remove(dir); err != nil {
		t.Fatalf("removing a missing job should be a no-op, got %v", err)
	}
}
