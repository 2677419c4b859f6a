package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reframe/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("REFRAME_WORK_DIR", "")
	t.Setenv("REFRAME_TRANSFORMER", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "reframe", "jobs")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.RegistryPath() != filepath.Join(tempHome, ".local", "share", "reframe", "reframe.db") {
		t.Fatalf("unexpected registry path: %q", cfg.RegistryPath())
	}
	if cfg.Pipeline.ChunkSize != 10 {
		t.Fatalf("expected default chunk size 10, got %d", cfg.Pipeline.ChunkSize)
	}
	if cfg.Pipeline.Checkpoint != config.CheckpointChunk {
		t.Fatalf("expected chunk checkpoint, got %q", cfg.Pipeline.Checkpoint)
	}
	if !cfg.RemuxFailureFatal() {
		t.Fatal("expected remux failures to be fatal by default")
	}
	if cfg.Transformer.Kind != config.TransformerPassthrough {
		t.Fatalf("expected passthrough transformer without a command, got %q", cfg.Transformer.Kind)
	}
	if cfg.WorkerCount() < 1 {
		t.Fatalf("expected at least one worker, got %d", cfg.WorkerCount())
	}
	if cfg.FrameTimeout() != 0 {
		t.Fatalf("expected frame timeout disabled, got %s", cfg.FrameTimeout())
	}
}

func TestLoadFromFileAppliesOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("REFRAME_TRANSFORMER", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	payload := map[string]any{
		"paths": map[string]any{
			"work_dir": filepath.Join(dir, "jobs"),
		},
		"pipeline": map[string]any{
			"chunk_size": 4,
			"workers":    3,
			"on_resume":  "RESTART",
		},
		"transformer": map[string]any{
			"command":         "/usr/local/bin/swapper",
			"timeout_seconds": 30,
		},
		"logging": map[string]any{
			"level": "verbose",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config to be read from %s, got %s (exists=%v)", path, resolved, exists)
	}
	if cfg.Pipeline.ChunkSize != 4 || cfg.WorkerCount() != 3 {
		t.Fatalf("unexpected pipeline settings: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.OnResume != config.ResumeRestart {
		t.Fatalf("expected on_resume normalized to restart, got %q", cfg.Pipeline.OnResume)
	}
	if cfg.Transformer.Kind != config.TransformerCommand {
		t.Fatalf("expected command transformer inferred from command, got %q", cfg.Transformer.Kind)
	}
	if cfg.FrameTimeout().Seconds() != 30 {
		t.Fatalf("unexpected frame timeout: %s", cfg.FrameTimeout())
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected verbose to map to debug, got %q", cfg.Logging.Level)
	}
}

func TestSequentialForcesSingleWorkerAndFrameCheckpoint(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[pipeline]\nsequential = true\nworkers = 8\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorkerCount() != 1 {
		t.Fatalf("expected 1 worker in sequential mode, got %d", cfg.WorkerCount())
	}
	if cfg.Pipeline.Checkpoint != config.CheckpointFrame {
		t.Fatalf("expected frame checkpoint in sequential mode, got %q", cfg.Pipeline.Checkpoint)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"checkpoint", func(c *config.Config) { c.Pipeline.Checkpoint = "sometimes" }, "pipeline.checkpoint"},
		{"resume", func(c *config.Config) { c.Pipeline.OnResume = "ask" }, "pipeline.on_resume"},
		{"remux", func(c *config.Config) { c.Pipeline.RemuxFailure = "ignore" }, "pipeline.remux_failure"},
		{"command missing", func(c *config.Config) { c.Transformer.Kind = config.TransformerCommand }, "transformer.command"},
		{"args without output", func(c *config.Config) {
			c.Transformer.Kind = config.TransformerCommand
			c.Transformer.Command = "swap"
			c.Transformer.Args = []string{"{input}"}
		}, "{output}"},
		{"publish bucket", func(c *config.Config) { c.Publish.Enabled = true }, "publish.bucket"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Transformer.Kind = config.TransformerPassthrough
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("REFRAME_TRANSFORMER", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Transformer.Kind != config.TransformerPassthrough {
		t.Fatalf("expected sample to use passthrough transformer, got %q", cfg.Transformer.Kind)
	}
}
