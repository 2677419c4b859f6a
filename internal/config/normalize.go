package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeMedia()
	c.normalizeTransformer()
	c.normalizeLogging()
	c.normalizePublish()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		if value, ok := os.LookupEnv("REFRAME_WORK_DIR"); ok && strings.TrimSpace(value) != "" {
			c.Paths.WorkDir = value
		} else {
			c.Paths.WorkDir = defaultWorkDir
		}
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}

	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.ChunkSize <= 0 {
		c.Pipeline.ChunkSize = defaultChunkSize
	}
	c.Pipeline.Checkpoint = strings.ToLower(strings.TrimSpace(c.Pipeline.Checkpoint))
	if c.Pipeline.Checkpoint == "" {
		c.Pipeline.Checkpoint = CheckpointChunk
	}
	if c.Pipeline.Sequential {
		c.Pipeline.Checkpoint = CheckpointFrame
	}
	c.Pipeline.OnResume = strings.ToLower(strings.TrimSpace(c.Pipeline.OnResume))
	if c.Pipeline.OnResume == "" {
		c.Pipeline.OnResume = ResumeContinue
	}
	c.Pipeline.RemuxFailure = strings.ToLower(strings.TrimSpace(c.Pipeline.RemuxFailure))
	if c.Pipeline.RemuxFailure == "" {
		c.Pipeline.RemuxFailure = RemuxFailureFatal
	}
	if c.Pipeline.StaleJobDays == 0 {
		c.Pipeline.StaleJobDays = defaultStaleJobDays
	}
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	c.Media.FrameExtension = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Media.FrameExtension)), ".")
	if c.Media.FrameExtension == "" {
		c.Media.FrameExtension = defaultFrameExtension
	}
	if strings.TrimSpace(c.Media.VideoCodec) == "" {
		c.Media.VideoCodec = defaultVideoCodec
	}
	if strings.TrimSpace(c.Media.PixelFormat) == "" {
		c.Media.PixelFormat = defaultPixelFormat
	}
	if c.Media.AudioBitrate <= 0 {
		c.Media.AudioBitrate = defaultAudioBitrate
	}
	if c.Media.FallbackFPS <= 0 {
		c.Media.FallbackFPS = defaultFallbackFPS
	}
}

func (c *Config) normalizeTransformer() {
	c.Transformer.Command = strings.TrimSpace(c.Transformer.Command)
	if c.Transformer.Command == "" {
		if value, ok := os.LookupEnv("REFRAME_TRANSFORMER"); ok {
			c.Transformer.Command = strings.TrimSpace(value)
		}
	}
	c.Transformer.Kind = strings.ToLower(strings.TrimSpace(c.Transformer.Kind))
	if c.Transformer.Kind == "" {
		if c.Transformer.Command != "" {
			c.Transformer.Kind = TransformerCommand
		} else {
			c.Transformer.Kind = TransformerPassthrough
		}
	}
	if c.Transformer.NoTargetExitCode == 0 {
		c.Transformer.NoTargetExitCode = DefaultNoTargetExitCode
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console":
		c.Logging.Format = defaultLogFormat
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case "":
		c.Logging.Level = defaultLogLevel
	case "off":
		c.Logging.Level = "error"
	case "minimum":
		c.Logging.Level = "info"
	case "verbose":
		c.Logging.Level = "debug"
	default:
		c.Logging.Level = level
	}
	if strings.TrimSpace(c.Metrics.Bind) == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
	if strings.TrimSpace(c.Tracing.ServiceName) == "" {
		c.Tracing.ServiceName = defaultServiceName
	}
}

func (c *Config) normalizePublish() {
	c.Publish.Bucket = strings.TrimSpace(c.Publish.Bucket)
	c.Publish.Region = strings.TrimSpace(c.Publish.Region)
	if c.Publish.Region == "" {
		if value, ok := os.LookupEnv("AWS_REGION"); ok {
			c.Publish.Region = strings.TrimSpace(value)
		}
	}
	if c.Publish.AccessKey == "" {
		if value, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok {
			c.Publish.AccessKey = value
		}
	}
	if c.Publish.SecretKey == "" {
		if value, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok {
			c.Publish.SecretKey = value
		}
	}
	c.Publish.Prefix = strings.TrimLeft(strings.TrimSpace(c.Publish.Prefix), "/")
}
