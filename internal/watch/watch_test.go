package watch_test

import (
	"context"
	"os"
	"testing"
	"time"

	"reframe/internal/framestore"
	"reframe/internal/ledger"
	"reframe/internal/logging"
	"reframe/internal/testsupport"
	"reframe/internal/watch"
)

func TestFollowerReportsLedgerProgress(t *testing.T) {
	dir := t.TempDir()
	frames := testsupport.WriteFrames(t, dir, 3, "jpg")

	follower, err := watch.New(dir, framestore.New(nil, "jpg"), logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer follower.Close()
	follower.SetSettle(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snapshots := make(chan watch.Snapshot, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- follower.Run(ctx, func(s watch.Snapshot) bool {
			snapshots <- s
			return !s.Complete()
		})
	}()

	first := <-snapshots
	if first.Total != 3 || first.Done != 0 || first.Remaining() != 3 {
		t.Fatalf("initial snapshot = %+v", first)
	}

	l, err := ledger.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()
	if err := l.AppendBatch(frames[:2]); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	if err := l.AppendBatch(frames[2:]); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("follower never saw the job complete")
	}

	var last watch.Snapshot
	for len(snapshots) > 0 {
		last = <-snapshots
	}
	if !last.Complete() || last.Remaining() != 0 {
		t.Fatalf("final snapshot = %+v", last)
	}
}

func TestFollowerStopsWhenDirectoryRemoved(t *testing.T) {
	dir := t.TempDir() + "/job"
	testsupport.WriteFrames(t, dir, 1, "jpg")

	follower, err := watch.New(dir, framestore.New(nil, "jpg"), logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer follower.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	started := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- follower.Run(ctx, func(watch.Snapshot) bool {
			select {
			case <-started:
			default:
				close(started)
			}
			return true
		})
	}()
	<-started

	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-ctx.Done():
		t.Fatal("follower kept running after the work directory was removed")
	}
}

func TestNewRequiresExistingDirectory(t *testing.T) {
	if _, err := watch.New(t.TempDir()+"/missing", framestore.New(nil, "jpg"), logging.NewNop()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
