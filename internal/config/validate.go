package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateTransformer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.ChunkSize <= 0 {
		return errors.New("pipeline.chunk_size must be positive")
	}
	if c.Pipeline.Workers < 0 {
		return errors.New("pipeline.workers must be >= 0 (0 uses every CPU)")
	}
	switch c.Pipeline.Checkpoint {
	case CheckpointChunk, CheckpointFrame:
	default:
		return fmt.Errorf("pipeline.checkpoint: unsupported value %q (want %q or %q)", c.Pipeline.Checkpoint, CheckpointChunk, CheckpointFrame)
	}
	switch c.Pipeline.OnResume {
	case ResumeContinue, ResumeRestart:
	default:
		return fmt.Errorf("pipeline.on_resume: unsupported value %q (want %q or %q)", c.Pipeline.OnResume, ResumeContinue, ResumeRestart)
	}
	switch c.Pipeline.RemuxFailure {
	case RemuxFailureFatal, RemuxFailureWarn:
	default:
		return fmt.Errorf("pipeline.remux_failure: unsupported value %q (want %q or %q)", c.Pipeline.RemuxFailure, RemuxFailureFatal, RemuxFailureWarn)
	}
	if c.Pipeline.StaleJobDays < 0 {
		return errors.New("pipeline.stale_job_days must be >= 0")
	}
	return nil
}

func (c *Config) validateMedia() error {
	if strings.ContainsAny(c.Media.FrameExtension, "/\\%") {
		return fmt.Errorf("media.frame_extension: invalid value %q", c.Media.FrameExtension)
	}
	if c.Media.AudioBitrate < 8000 {
		return errors.New("media.audio_bitrate must be at least 8000")
	}
	return nil
}

func (c *Config) validateTransformer() error {
	switch c.Transformer.Kind {
	case TransformerPassthrough:
		return nil
	case TransformerCommand:
	default:
		return fmt.Errorf("transformer.kind: unsupported value %q (want %q or %q)", c.Transformer.Kind, TransformerCommand, TransformerPassthrough)
	}
	if strings.TrimSpace(c.Transformer.Command) == "" {
		return errors.New("transformer.command is required when transformer.kind is \"command\" (or set REFRAME_TRANSFORMER)")
	}
	joined := strings.Join(c.Transformer.Args, " ")
	for _, placeholder := range []string{"{input}", "{output}"} {
		if !strings.Contains(joined, placeholder) {
			return fmt.Errorf("transformer.args must reference %s", placeholder)
		}
	}
	if c.Transformer.NoTargetExitCode <= 0 || c.Transformer.NoTargetExitCode > 255 {
		return errors.New("transformer.no_target_exit_code must be between 1 and 255")
	}
	if c.Transformer.TimeoutSeconds < 0 {
		return errors.New("transformer.timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validatePublish() error {
	if !c.Publish.Enabled {
		return nil
	}
	if c.Publish.Bucket == "" {
		return errors.New("publish.bucket must be set when publish is enabled")
	}
	if c.Publish.Region == "" {
		return errors.New("publish.region must be set when publish is enabled (or set AWS_REGION)")
	}
	if c.Publish.AccessKey == "" || c.Publish.SecretKey == "" {
		return errors.New("publish credentials missing: set publish.access_key/secret_key or AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY")
	}
	return nil
}
