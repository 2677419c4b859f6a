package assemble

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"reframe/internal/fileutil"
	"reframe/internal/framestore"
	"reframe/internal/logging"
	"reframe/internal/services"
)

// AudioTool extracts and remuxes soundtracks.
type AudioTool interface {
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
	Remux(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// Reattacher copies the target's soundtrack onto an assembled video.
type Reattacher struct {
	tool   AudioTool
	logger *slog.Logger
}

// NewReattacher returns a Reattacher backed by tool.
func NewReattacher(tool AudioTool, logger *slog.Logger) *Reattacher {
	return &Reattacher{tool: tool, logger: logging.NewComponentLogger(logger, "audio")}
}

// Reattach extracts the audio of targetPath into workDir, remuxes it with
// videoPath into a temp file in workDir, and moves the result over videoPath.
// videoPath is never left partially written.
func (r *Reattacher) Reattach(ctx context.Context, targetPath, workDir, videoPath string) error {
	audioPath := filepath.Join(workDir, framestore.AudioFileName)
	tmpPath := filepath.Join(workDir, framestore.TempVideoFileName)
	_ = os.Remove(tmpPath)

	if err := r.tool.ExtractAudio(ctx, targetPath, audioPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "audio", "extract", targetPath, err)
	}
	if err := r.tool.Remux(ctx, videoPath, audioPath, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrExternalTool, "audio", "remux", videoPath, err)
	}
	if _, err := os.Stat(tmpPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "audio", "remux", "remux produced no output", err)
	}
	if err := fileutil.ReplaceFile(tmpPath, videoPath); err != nil {
		return services.Wrap(services.ErrTransient, "audio", "replace output", videoPath, err)
	}
	r.logger.Info("audio reattached",
		logging.String(logging.FieldEventType, "audio_reattached"),
		logging.String("output", videoPath),
	)
	return nil
}
