package main

import (
	"testing"

	"reframe/internal/config"
)

func TestRunFlagsApply(t *testing.T) {
	tests := []struct {
		name       string
		flags      runFlags
		wantErr    bool
		checkpoint string
		sequential bool
	}{
		{name: "defaults", flags: runFlags{}, checkpoint: config.CheckpointChunk},
		{name: "checkpoint frame", flags: runFlags{checkpoint: "Frame"}, checkpoint: config.CheckpointFrame},
		{name: "sequential", flags: runFlags{sequential: true}, checkpoint: config.CheckpointFrame, sequential: true},
		{name: "sequential with frame", flags: runFlags{sequential: true, checkpoint: "frame"}, checkpoint: config.CheckpointFrame, sequential: true},
		{name: "sequential with chunk", flags: runFlags{sequential: true, checkpoint: "chunk"}, wantErr: true},
		{name: "unknown checkpoint", flags: runFlags{checkpoint: "sometimes"}, wantErr: true},
		{name: "negative workers", flags: runFlags{workers: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Pipeline.Checkpoint = config.CheckpointChunk
			err := tt.flags.apply(&cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if cfg.Pipeline.Checkpoint != tt.checkpoint || cfg.Pipeline.Sequential != tt.sequential {
				t.Fatalf("checkpoint=%q sequential=%v, want %q %v", cfg.Pipeline.Checkpoint, cfg.Pipeline.Sequential, tt.checkpoint, tt.sequential)
			}
		})
	}
}
