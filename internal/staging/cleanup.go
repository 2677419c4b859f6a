// Package staging maintains the work root: listing job directories, removing
// single jobs, and sweeping stale ones.
package staging

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reframe/internal/job"
	"reframe/internal/ledger"
	"reframe/internal/logging"
)

// CleanResult contains the outcome of a cleanup sweep.
type CleanResult struct {
	Removed []string
	Skipped []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// DirInfo describes one job directory.
type DirInfo struct {
	Key     string
	Path    string
	ModTime time.Time
	Size    int64
	Locked  bool
}

// ListJobs returns every job directory under workRoot. Directories that do
// not carry the job key prefix are ignored.
func ListJobs(workRoot string) ([]DirInfo, error) {
	workRoot = strings.TrimSpace(workRoot)
	if workRoot == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(workRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() || !job.IsJobDir(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirPath := filepath.Join(workRoot, entry.Name())
		size, _ := dirSize(dirPath)
		locked, _ := job.Held(dirPath)
		dirs = append(dirs, DirInfo{
			Key:     entry.Name(),
			Path:    dirPath,
			ModTime: lastActivity(dirPath, info.ModTime()),
			Size:    size,
			Locked:  locked,
		})
	}
	return dirs, nil
}

// Remove deletes one job directory. It refuses while another process holds
// the job lock.
func Remove(workDir string) error {
	if _, err := os.Stat(workDir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	lock, err := job.Acquire(workDir)
	if err != nil {
		return err
	}
	defer lock.Release()
	if err := os.RemoveAll(workDir); err != nil {
		return fmt.Errorf("remove %s: %w", workDir, err)
	}
	return nil
}

// CleanStale removes job directories whose last activity is older than
// maxAge. Locked jobs are skipped.
func CleanStale(ctx context.Context, workRoot string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	result := CleanResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	dirs, err := ListJobs(workRoot)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: workRoot, Error: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if !dir.ModTime.Before(cutoff) {
			continue
		}
		if dir.Locked {
			result.Skipped = append(result.Skipped, dir.Path)
			logger.Info("skipping stale job held by a running process",
				logging.String("path", dir.Path),
				logging.String(logging.FieldEventType, "staging_cleanup_skipped"),
			)
			continue
		}
		if err := Remove(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale job directory", "staging_cleanup_failed",
				logging.String("path", dir.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check work_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		logger.Info("removed stale job directory",
			logging.String("path", dir.Path),
			logging.Duration("age", time.Since(dir.ModTime)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

// lastActivity is the later of the directory and ledger modification times;
// ledger appends do not touch the directory entry.
func lastActivity(dirPath string, dirMod time.Time) time.Time {
	info, err := os.Stat(ledger.Path(dirPath))
	if err != nil || !info.ModTime().After(dirMod) {
		return dirMod
	}
	return info.ModTime()
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // best effort
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
