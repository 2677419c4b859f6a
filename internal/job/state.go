package job

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// State classifies a job's working directory before a run.
type State int

const (
	// Fresh means no usable working directory exists yet.
	Fresh State = iota
	// Resumable means a working directory with prior work exists.
	Resumable
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Resumable:
		return "resumable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DetectState is a pure function of the directory's contents: a missing or
// empty directory is Fresh, anything else is Resumable.
func DetectState(workDir string) (State, error) {
	dir, err := os.Open(workDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Fresh, nil
		}
		return Fresh, fmt.Errorf("inspect work dir: %w", err)
	}
	defer dir.Close()

	info, err := dir.Stat()
	if err != nil {
		return Fresh, fmt.Errorf("inspect work dir: %w", err)
	}
	if !info.IsDir() {
		return Fresh, fmt.Errorf("inspect work dir: %s is not a directory", workDir)
	}

	for {
		names, err := dir.Readdirnames(16)
		for _, name := range names {
			if name != LockFileName {
				return Resumable, nil
			}
		}
		if errors.Is(err, io.EOF) {
			return Fresh, nil
		}
		if err != nil {
			return Fresh, fmt.Errorf("inspect work dir: %w", err)
		}
	}
}

// Decision is the caller's choice for a Resumable job.
type Decision int

const (
	// Continue keeps the existing frames and ledger.
	Continue Decision = iota
	// Restart wipes the working directory and starts over.
	Restart
)

func (d Decision) String() string {
	if d == Restart {
		return "restart"
	}
	return "continue"
}

// ParseDecision accepts "continue" or "restart" (case-insensitive).
func ParseDecision(value string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "continue", "resume":
		return Continue, nil
	case "restart":
		return Restart, nil
	default:
		return Continue, fmt.Errorf("unknown resume decision %q (want continue or restart)", value)
	}
}

// Reset removes everything inside workDir, leaving the directory itself and
// its lock file in place.
func Reset(workDir string) error {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reset work dir: %w", err)
	}
	for _, entry := range entries {
		if entry.Name() == LockFileName {
			continue
		}
		if err := os.RemoveAll(workDir + string(os.PathSeparator) + entry.Name()); err != nil {
			return fmt.Errorf("reset work dir: %w", err)
		}
	}
	return nil
}
