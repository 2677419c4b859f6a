package job

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the hidden advisory lock inside each job directory.
const LockFileName = ".lock"

// ErrJobLocked is returned when another process already holds the job.
var ErrJobLocked = errors.New("job is locked by another run")

// Lock is an acquired job lock.
type Lock struct {
	flock *flock.Flock
}

// Acquire creates workDir if needed and takes its advisory lock without waiting.
func Acquire(workDir string) (*Lock, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	fl := flock.New(filepath.Join(workDir, LockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", workDir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrJobLocked, workDir)
	}
	return &Lock{flock: fl}, nil
}

// Release drops the lock. Safe on nil.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}

// Held reports whether workDir is currently locked by some process.
func Held(workDir string) (bool, error) {
	path := filepath.Join(workDir, LockFileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	probe := flock.New(path)
	locked, err := probe.TryRLock()
	if err != nil {
		return false, err
	}
	if locked {
		_ = probe.Unlock()
		return false, nil
	}
	return true, nil
}
