// Package ledger persists which frames of a job are already transformed.
//
// The ledger is progress.txt inside the work directory: one absolute frame
// path per line. Records are only ever appended, each batch with a single
// write followed by fsync, so a crash can at worst leave one torn final line.
// Open truncates such a tail and Load ignores it.
//
// Appending once per chunk keeps lock traffic low but means a crash can
// re-apply the transform to up to one chunk per worker on resume. Appending
// once per frame narrows that window to one frame per worker.
package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"reframe/internal/framestore"
)

// Ledger is an open, append-only progress file. Safe for concurrent use.
type Ledger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

var writeRecords = func(file *os.File, data []byte) (int, error) {
	return file.Write(data)
}

// Path returns the ledger location for workDir.
func Path(workDir string) string {
	return filepath.Join(workDir, framestore.LedgerFileName)
}

// Open creates or opens the ledger of workDir for appending, trimming any
// incomplete final record left by an interrupted write.
func Open(workDir string) (*Ledger, error) {
	path := Path(workDir)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := repairTail(file); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("repair ledger %s: %w", path, err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("seek ledger: %w", err)
	}
	return &Ledger{file: file, path: path}, nil
}

// AppendBatch durably records paths as done.
func (l *Ledger) AppendBatch(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, p := range paths {
		if strings.ContainsAny(p, "\r\n") {
			return fmt.Errorf("ledger record contains a newline: %q", p)
		}
		buf.WriteString(p)
		buf.WriteByte('\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("ledger is closed")
	}
	offset, err := l.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek ledger: %w", err)
	}
	if _, err := writeRecords(l.file, buf.Bytes()); err != nil {
		// drop any partial batch so the next append starts on a record boundary
		if truncErr := l.file.Truncate(offset); truncErr != nil {
			return fmt.Errorf("append ledger: %w (rollback: %v)", err, truncErr)
		}
		if _, seekErr := l.file.Seek(offset, io.SeekStart); seekErr != nil {
			return fmt.Errorf("append ledger: %w (rollback: %v)", err, seekErr)
		}
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	return nil
}

// Path returns the file backing the ledger.
func (l *Ledger) Path() string {
	return l.path
}

// Close releases the file. Further appends fail.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Load returns the set of completed frame paths recorded in workDir's ledger.
// A missing ledger is an empty set.
func Load(workDir string) (map[string]struct{}, error) {
	done := make(map[string]struct{})
	file, err := os.Open(Path(workDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return done, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer file.Close()

	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// torn final record
			return done, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger: %w", err)
		}
		record := strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(record) == "" {
			continue
		}
		if !filepath.IsAbs(record) {
			record = filepath.Join(absDir, record)
		}
		done[filepath.Clean(record)] = struct{}{}
	}
}

func repairTail(file *os.File) error {
	info, err := file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, size-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}

	const window = 4096
	end := size
	for end > 0 {
		start := end - window
		if start < 0 {
			start = 0
		}
		buf := make([]byte, end-start)
		if _, err := file.ReadAt(buf, start); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if idx := bytes.LastIndexByte(buf, '\n'); idx >= 0 {
			return file.Truncate(start + int64(idx) + 1)
		}
		end = start
	}
	return file.Truncate(0)
}
