package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Pipeline contains the frame-processing knobs.
type Pipeline struct {
	ChunkSize    int    `toml:"chunk_size"`
	Workers      int    `toml:"workers"`
	Sequential   bool   `toml:"sequential"`
	Checkpoint   string `toml:"checkpoint"`
	OnResume     string `toml:"on_resume"`
	RemuxFailure string `toml:"remux_failure"`
	StaleJobDays int    `toml:"stale_job_days"`
}

// Media contains ffmpeg/ffprobe settings.
type Media struct {
	FFmpegBinary    string  `toml:"ffmpeg_binary"`
	FFprobeBinary   string  `toml:"ffprobe_binary"`
	FrameExtension  string  `toml:"frame_extension"`
	VideoCodec      string  `toml:"video_codec"`
	PixelFormat     string  `toml:"pixel_format"`
	AudioBitrate    int     `toml:"audio_bitrate"`
	FallbackFPS     float64 `toml:"fallback_fps"`
	SkipSilentAudio bool    `toml:"skip_silent_audio"`
}

// Transformer describes the external per-frame transformation.
type Transformer struct {
	Kind             string   `toml:"kind"`
	Command          string   `toml:"command"`
	Args             []string `toml:"args"`
	DetectArgs       []string `toml:"detect_args"`
	NoTargetExitCode int      `toml:"no_target_exit_code"`
	TimeoutSeconds   int      `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics contains the Prometheus endpoint settings.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Tracing contains OpenTelemetry exporter settings.
type Tracing struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	ServiceName string `toml:"service_name"`
}

// Publish contains the optional S3 upload of finished videos.
type Publish struct {
	Enabled      bool   `toml:"enabled"`
	Bucket       string `toml:"bucket"`
	Prefix       string `toml:"prefix"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	UsePathStyle bool   `toml:"use_path_style"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
}

// Config encapsulates all configuration values for reframe.
//
// Configuration sections by subsystem:
//   - Paths: job work root, registry location, log directory
//   - Pipeline: chunking, worker count, checkpoint granularity, resume policy
//   - Media: ffmpeg/ffprobe binaries and encode settings
//   - Transformer: external per-frame transformation command
//   - Logging: log format and level
//   - Metrics: Prometheus endpoint
//   - Tracing: OTLP trace export
//   - Publish: S3 upload of finished videos
type Config struct {
	Paths       Paths       `toml:"paths"`
	Pipeline    Pipeline    `toml:"pipeline"`
	Media       Media       `toml:"media"`
	Transformer Transformer `toml:"transformer"`
	Logging     Logging     `toml:"logging"`
	Metrics     Metrics     `toml:"metrics"`
	Tracing     Tracing     `toml:"tracing"`
	Publish     Publish     `toml:"publish"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reframe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the work root, state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RegistryPath returns the location of the SQLite job registry.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.Paths.StateDir, "reframe.db")
}

// WorkerCount resolves the effective number of pipeline workers.
func (c *Config) WorkerCount() int {
	if c.Pipeline.Sequential {
		return 1
	}
	if c.Pipeline.Workers > 0 {
		return c.Pipeline.Workers
	}
	return runtime.NumCPU()
}

// FrameTimeout returns the per-frame transformer timeout, zero when disabled.
func (c *Config) FrameTimeout() time.Duration {
	if c.Transformer.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Transformer.TimeoutSeconds) * time.Second
}

// StaleJobAge returns the age after which job directories are considered stale.
func (c *Config) StaleJobAge() time.Duration {
	return time.Duration(c.Pipeline.StaleJobDays) * 24 * time.Hour
}

// RemuxFailureFatal reports whether audio reattachment failures abort the job.
func (c *Config) RemuxFailureFatal() bool {
	return c.Pipeline.RemuxFailure != RemuxFailureWarn
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
