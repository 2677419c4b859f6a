package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"reframe/internal/framestore"
	"reframe/internal/ledger"
	"reframe/internal/logging"
)

// DefaultSettle coalesces bursts of ledger writes into one snapshot.
const DefaultSettle = 200 * time.Millisecond

// Counter reports how many frames a work directory holds.
type Counter interface {
	Count(workDir string) (int, error)
}

// Snapshot is the progress of a job at one moment.
type Snapshot struct {
	Total int
	Done  int
	At    time.Time
}

// Remaining is the number of frames not yet in the ledger.
func (s Snapshot) Remaining() int {
	return max(s.Total-s.Done, 0)
}

// Complete reports whether every frame is recorded.
func (s Snapshot) Complete() bool {
	return s.Total > 0 && s.Done >= s.Total
}

// Handler receives snapshots. Returning false stops the follower.
type Handler func(Snapshot) bool

// Follower watches one work directory.
type Follower struct {
	workDir string
	counter Counter
	settle  time.Duration
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// New starts watching workDir. The directory must exist.
func New(workDir string, counter Counter, logger *slog.Logger) (*Follower, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(workDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}
	return &Follower{
		workDir: workDir,
		counter: counter,
		settle:  DefaultSettle,
		watcher: watcher,
		logger:  logging.NewComponentLogger(logger, "watch"),
	}, nil
}

// SetSettle overrides the coalescing delay. Zero reports every write.
func (f *Follower) SetSettle(d time.Duration) {
	f.settle = max(d, 0)
}

// Snapshot reads the current progress without waiting for events.
func (f *Follower) Snapshot() (Snapshot, error) {
	total, err := f.counter.Count(f.workDir)
	if err != nil {
		return Snapshot{}, err
	}
	done, err := ledger.Load(f.workDir)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Total: total, Done: min(len(done), total), At: time.Now()}, nil
}

// Run delivers an initial snapshot and then one per settled ledger change
// until fn returns false, ctx ends, or the work directory disappears.
func (f *Follower) Run(ctx context.Context, fn Handler) error {
	snap, err := f.Snapshot()
	if err != nil {
		return err
	}
	if !fn(snap) {
		return nil
	}

	ledgerName := framestore.LedgerFileName
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-f.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if filepath.Clean(event.Name) == filepath.Clean(f.workDir) && event.Has(fsnotify.Remove) {
				f.logger.Info("work directory removed; stopping", logging.String("work_dir", f.workDir))
				return nil
			}
			if filepath.Base(event.Name) != ledgerName {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			if f.settle == 0 {
				if stop, err := f.emit(fn); stop || err != nil {
					return err
				}
				continue
			}
			if timer == nil {
				timer = time.NewTimer(f.settle)
				fire = timer.C
			}

		case <-fire:
			timer, fire = nil, nil
			if stop, err := f.emit(fn); stop || err != nil {
				return err
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			f.logger.Debug("watcher error", logging.Error(err))
		}
	}
}

func (f *Follower) emit(fn Handler) (bool, error) {
	snap, err := f.Snapshot()
	if err != nil {
		return true, err
	}
	return !fn(snap), nil
}

// Close stops watching.
func (f *Follower) Close() error {
	return f.watcher.Close()
}
