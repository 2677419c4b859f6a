package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reframe/internal/config"
	"reframe/internal/job"
	"reframe/internal/pipeline"
	"reframe/internal/preflight"
	"reframe/internal/services"
)

type runFlags struct {
	workers       int
	chunkSize     int
	sequential    bool
	checkpoint    string
	restart       bool
	resume        bool
	noProgress    bool
	skipPreflight bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run SUBJECT TARGET OUTPUT",
		Short: "Transform every frame of TARGET with SUBJECT and write OUTPUT",
		Long: `Run extracts TARGET's frames into a job directory, applies the transformer
to each frame in parallel, reassembles the video and restores its soundtrack.

Interrupted jobs keep their directory; running the same command again
continues with only the frames that were not finished.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cfg); err != nil {
				return err
			}
			decision, err := flags.decision(cfg)
			if err != nil {
				return err
			}
			if !flags.skipPreflight {
				if err := requirePreflight(cmd.Context(), cfg); err != nil {
					return err
				}
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			sess, err := openSession(signalCtx, ctx, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			req := pipeline.Request{
				Subject:  args[0],
				Target:   args[1],
				Output:   args[2],
				Decision: decision,
			}
			var bar *barObserver
			if !flags.noProgress && shouldColorize(cmd.ErrOrStderr()) {
				bar = newBarObserver(cmd.ErrOrStderr())
				req.Observer = bar
			}

			rep, runErr := sess.runner.Run(signalCtx, req)
			if bar != nil {
				bar.finish()
			}
			printRunReport(cmd.OutOrStdout(), rep, runErr)
			return runErr
		},
	}

	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "Worker count (default: pipeline.workers, 0 uses every CPU)")
	cmd.Flags().IntVar(&flags.chunkSize, "chunk-size", 0, "Frames per chunk (default: pipeline.chunk_size)")
	cmd.Flags().BoolVar(&flags.sequential, "sequential", false, "Process frames one at a time with a per-frame checkpoint")
	cmd.Flags().StringVar(&flags.checkpoint, "checkpoint", "", "Ledger checkpoint granularity: chunk or frame")
	cmd.Flags().BoolVar(&flags.restart, "restart", false, "Discard an existing job directory and start over")
	cmd.Flags().BoolVar(&flags.resume, "continue", false, "Continue an existing job directory (default unless pipeline.on_resume = restart)")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "Disable the progress bar")
	cmd.Flags().BoolVar(&flags.skipPreflight, "skip-preflight", false, "Skip work directory and free space checks")
	return cmd
}

func (f runFlags) apply(cfg *config.Config) error {
	if f.workers < 0 {
		return fmt.Errorf("--workers must be >= 0")
	}
	if f.chunkSize < 0 {
		return fmt.Errorf("--chunk-size must be >= 0")
	}
	if f.workers > 0 {
		cfg.Pipeline.Workers = f.workers
	}
	if f.chunkSize > 0 {
		cfg.Pipeline.ChunkSize = f.chunkSize
	}
	checkpoint := strings.ToLower(strings.TrimSpace(f.checkpoint))
	switch checkpoint {
	case "":
	case config.CheckpointChunk, config.CheckpointFrame:
		cfg.Pipeline.Checkpoint = checkpoint
	default:
		return fmt.Errorf("--checkpoint: unsupported value %q (want chunk or frame)", f.checkpoint)
	}
	if f.sequential {
		if checkpoint == config.CheckpointChunk {
			return fmt.Errorf("--sequential checkpoints every frame; it cannot be combined with --checkpoint chunk")
		}
		cfg.Pipeline.Sequential = true
		cfg.Pipeline.Checkpoint = config.CheckpointFrame
	}
	return nil
}

func (f runFlags) decision(cfg *config.Config) (job.Decision, error) {
	switch {
	case f.restart && f.resume:
		return job.Continue, fmt.Errorf("--restart and --continue are mutually exclusive")
	case f.restart:
		return job.Restart, nil
	case f.resume:
		return job.Continue, nil
	default:
		return job.ParseDecision(cfg.Pipeline.OnResume)
	}
}

func requirePreflight(ctx context.Context, cfg *config.Config) error {
	failed := preflight.Failed(preflight.RunAll(ctx, cfg))
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return fmt.Errorf("preflight failed (use --skip-preflight to override): %s", strings.Join(parts, "; "))
}

func printRunReport(out io.Writer, rep pipeline.Report, err error) {
	if rep.JobKey == "" {
		return
	}
	fmt.Fprintf(out, "Job:        %s\n", rep.JobKey)
	if rep.Initial == job.Resumable {
		fmt.Fprintf(out, "Resumed:    %s (%s of %s frames already done)\n",
			rep.Decision, humanize.Comma(int64(rep.AlreadyDone)), humanize.Comma(int64(rep.FramesTotal)))
	}
	fmt.Fprintf(out, "Processed:  %s frames in %s\n", humanize.Comma(int64(rep.Processed)), rep.Elapsed.Round(10*time.Millisecond))
	if rep.FailedChunks > 0 {
		fmt.Fprintf(out, "Failed:     %d chunks\n", rep.FailedChunks)
	}
	switch {
	case err == nil && rep.Assembled == 0:
		fmt.Fprintln(out, "Output:     not written (job has no frames)")
	case err == nil:
		audio := "attached"
		if rep.AudioSkipped {
			audio = "none in target"
		} else if !rep.AudioAttached {
			audio = "missing (reattach failed)"
		}
		fmt.Fprintf(out, "Output:     %s (%.3g fps, audio %s)\n", rep.Output, rep.FrameRate, audio)
		if rep.Published != "" {
			fmt.Fprintf(out, "Published:  %s\n", rep.Published)
		}
	case errors.Is(err, services.ErrAudioPending):
		fmt.Fprintf(out, "Output:     %s written without audio; rerun to retry the remux\n", rep.Output)
	case errors.Is(err, services.ErrIncomplete), errors.Is(err, context.Canceled):
		fmt.Fprintf(out, "Status:     incomplete, %s frames outstanding; rerun the same command to continue\n", humanize.Comma(int64(rep.Outstanding)))
	}
}
