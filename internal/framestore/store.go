package framestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Decoder splits a media file into numbered images.
type Decoder interface {
	ExtractFrames(ctx context.Context, inputPath, outputPattern string) error
}

// ErrFramesPresent is returned when Extract is pointed at a populated directory.
var ErrFramesPresent = errors.New("work dir already contains frames")

// Store describes the frame layout of one work directory format.
type Store struct {
	Extension string
	Decoder   Decoder
}

// New returns a Store for frames with the given extension.
func New(decoder Decoder, ext string) *Store {
	return &Store{Extension: normalizeExt(ext), Decoder: decoder}
}

// Extract decodes targetPath into frame0..frameN-1 inside workDir and returns
// the number of frames written.
func (s *Store) Extract(ctx context.Context, targetPath, workDir string) (int, error) {
	if s.Decoder == nil {
		return 0, errors.New("extract frames: no decoder configured")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return 0, fmt.Errorf("create work dir: %w", err)
	}
	existing, err := s.Count(workDir)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, fmt.Errorf("%w: %s holds %d frames", ErrFramesPresent, workDir, existing)
	}
	if err := s.Decoder.ExtractFrames(ctx, targetPath, FramePattern(workDir, s.Extension)); err != nil {
		return 0, err
	}
	count, err := s.Count(workDir)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, fmt.Errorf("extract frames: decoder produced no frames from %s", targetPath)
	}
	return count, nil
}

// List returns absolute frame paths in workDir, in numeric-aware order,
// skipping control files, hidden files, directories, foreign extensions and
// every path in exclude.
func (s *Store) List(workDir string, exclude map[string]struct{}) ([]string, error) {
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}
	entries, err := os.ReadDir(absDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list frames: %w", err)
	}

	suffix := "." + s.ext()
	frames := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || IsControlFile(name) {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), suffix) {
			continue
		}
		path := filepath.Join(absDir, name)
		if _, skip := exclude[path]; skip {
			continue
		}
		frames = append(frames, path)
	}
	SortNatural(frames)
	return frames, nil
}

// Count returns the number of frame artifacts in workDir.
func (s *Store) Count(workDir string) (int, error) {
	frames, err := s.List(workDir, nil)
	if err != nil {
		return 0, err
	}
	return len(frames), nil
}

func (s *Store) ext() string {
	if s == nil {
		return DefaultExtension
	}
	return normalizeExt(s.Extension)
}
