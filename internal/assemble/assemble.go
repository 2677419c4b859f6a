package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reframe/internal/fileutil"
	"reframe/internal/framestore"
	"reframe/internal/logging"
	"reframe/internal/services"
)

// Encoder renders an ordered frame list into a video.
type Encoder interface {
	EncodeFrames(ctx context.Context, frames []string, fps float64, outputPath string) error
}

// FrameLister enumerates frame artifacts in order.
type FrameLister interface {
	List(workDir string, exclude map[string]struct{}) ([]string, error)
}

// Assembler builds output videos from work directories.
type Assembler struct {
	frames  FrameLister
	encoder Encoder
	logger  *slog.Logger
}

// New returns an Assembler.
func New(frames FrameLister, encoder Encoder, logger *slog.Logger) *Assembler {
	return &Assembler{
		frames:  frames,
		encoder: encoder,
		logger:  logging.NewComponentLogger(logger, "assembler"),
	}
}

// Assemble encodes every frame in workDir, in numeric order, into outputPath
// at frameRate. The video is encoded inside workDir and only replaces
// outputPath once the encoder succeeds. With no frames it writes nothing and
// returns 0.
func (a *Assembler) Assemble(ctx context.Context, workDir string, frameRate float64, outputPath string) (int, error) {
	frames, err := a.frames.List(workDir, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "assembling", "list frames", workDir, err)
	}
	if len(frames) == 0 {
		a.logger.Info("no frames to assemble; output not written",
			logging.String(logging.FieldEventType, "assemble_empty"),
			logging.String("work_dir", workDir),
		)
		return 0, nil
	}
	if frameRate <= 0 {
		return 0, services.Wrap(services.ErrValidation, "assembling", "frame rate",
			fmt.Sprintf("invalid frame rate %v", frameRate), nil)
	}
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create output dir: %w", err)
		}
	}
	encoded := encodePath(workDir, outputPath)
	if err := a.encoder.EncodeFrames(ctx, frames, frameRate, encoded); err != nil {
		_ = os.Remove(encoded)
		return 0, err
	}
	if err := fileutil.ReplaceFile(encoded, outputPath); err != nil {
		_ = os.Remove(encoded)
		return 0, services.Wrap(services.ErrTransient, "assembling", "move video", outputPath, err)
	}
	a.logger.Info("video assembled",
		logging.String(logging.FieldEventType, "assemble_complete"),
		logging.Int("frames", len(frames)),
		logging.Float64("fps", frameRate),
		logging.String("output", outputPath),
	)
	return len(frames), nil
}

// encodePath keeps the output's extension so the encoder picks the same
// container.
func encodePath(workDir, outputPath string) string {
	ext := strings.ToLower(filepath.Ext(outputPath))
	if ext == "" || ext == filepath.Ext(framestore.VideoFileName) {
		return filepath.Join(workDir, framestore.VideoFileName)
	}
	return filepath.Join(workDir, strings.TrimSuffix(framestore.VideoFileName, filepath.Ext(framestore.VideoFileName))+ext)
}

// ensure the framestore satisfies FrameLister.
var _ FrameLister = (*framestore.Store)(nil)
