package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"reframe/internal/config"
	"reframe/internal/logging"
	"reframe/internal/media/ffprobe"
	"reframe/internal/services"
)

const (
	maxStderr = 4096
	waitDelay = 5 * time.Second
)

// Toolchain runs ffmpeg and ffprobe child processes.
type Toolchain struct {
	FFmpeg       string
	FFprobe      string
	VideoCodec   string
	PixelFormat  string
	AudioBitrate int
	logger       *slog.Logger
}

// New builds a Toolchain from media settings.
func New(cfg config.Media, logger *slog.Logger) *Toolchain {
	return &Toolchain{
		FFmpeg:       orDefault(cfg.FFmpegBinary, "ffmpeg"),
		FFprobe:      orDefault(cfg.FFprobeBinary, "ffprobe"),
		VideoCodec:   orDefault(cfg.VideoCodec, "libx264"),
		PixelFormat:  orDefault(cfg.PixelFormat, "yuv420p"),
		AudioBitrate: cfg.AudioBitrate,
		logger:       logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// ExtractFrames decodes every frame of inputPath into outputPattern, a
// printf-style path numbered from zero.
func (t *Toolchain) ExtractFrames(ctx context.Context, inputPath, outputPattern string) error {
	args := []string{
		"-hide_banner", "-v", "error", "-nostdin", "-y",
		"-i", inputPath,
		"-start_number", "0",
		"-fps_mode", "passthrough",
		"-q:v", "2",
		outputPattern,
	}
	return t.run(ctx, "extract frames", nil, args)
}

// EncodeFrames streams frames, in the given order, into a video at fps.
func (t *Toolchain) EncodeFrames(ctx context.Context, frames []string, fps float64, outputPath string) error {
	if len(frames) == 0 {
		return errors.New("encode frames: no frames")
	}
	args := []string{
		"-hide_banner", "-v", "error", "-y",
		"-f", "image2pipe",
		"-framerate", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-c:v", t.VideoCodec,
		"-pix_fmt", t.PixelFormat,
		outputPath,
	}
	reader, writer := io.Pipe()
	go func() {
		writer.CloseWithError(streamFrames(ctx, writer, frames))
	}()
	defer reader.Close()
	return t.run(ctx, "encode frames", reader, args)
}

// ExtractAudio writes the soundtrack of inputPath to outputPath as mp3.
func (t *Toolchain) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	bitrate := t.AudioBitrate
	if bitrate <= 0 {
		bitrate = 192000
	}
	args := []string{
		"-hide_banner", "-v", "error", "-nostdin", "-y",
		"-i", inputPath,
		"-f", "mp3",
		"-ab", strconv.Itoa(bitrate),
		"-vn",
		outputPath,
	}
	return t.run(ctx, "extract audio", nil, args)
}

// Remux combines the video stream of videoPath with the audio of audioPath.
func (t *Toolchain) Remux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	args := []string{
		"-hide_banner", "-v", "error", "-nostdin",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-map", "0:v",
		"-map", "1:a",
		"-y",
		outputPath,
	}
	return t.run(ctx, "remux", nil, args)
}

// Probe inspects a media file with ffprobe.
func (t *Toolchain) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, t.FFprobe, path)
}

func (t *Toolchain) run(ctx context.Context, operation string, stdin io.Reader, args []string) error {
	cmd := exec.CommandContext(ctx, t.FFmpeg, args...)
	cmd.WaitDelay = waitDelay
	cmd.Stdin = stdin
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	started := time.Now()
	t.logger.Debug("running ffmpeg",
		logging.String("operation", operation),
		logging.String("args", strings.Join(args, " ")),
	)
	err := cmd.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", operation, ctxErr)
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", operation, tail(stderr.String()), err)
	}
	t.logger.Debug("ffmpeg finished",
		logging.String("operation", operation),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func streamFrames(ctx context.Context, w io.Writer, frames []string) error {
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copyFile(w, frame); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("stream %s: %w", path, err)
	}
	return nil
}

func tail(output string) string {
	output = strings.TrimSpace(output)
	if len(output) > maxStderr {
		output = output[len(output)-maxStderr:]
	}
	return output
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
