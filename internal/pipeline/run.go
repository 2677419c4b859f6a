package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"reframe/internal/job"
	"reframe/internal/ledger"
	"reframe/internal/logging"
	"reframe/internal/registry"
	"reframe/internal/services"
	"reframe/internal/tracing"
	"reframe/internal/transform"
	"reframe/internal/workpool"
)

// Run processes one video job to completion or to a resumable stop.
func (r *Runner) Run(ctx context.Context, req Request) (rep Report, err error) {
	started := time.Now()
	rep.Decision = req.Decision
	rep.Output = req.Output
	ctx, span := tracing.Tracer().Start(ctx, "reframe.run")
	defer func() {
		rep.Elapsed = time.Since(started)
		endSpan(span, err)
	}()

	if err := validateRequest(req); err != nil {
		return rep, err
	}
	// Subject first: nothing touches disk until there is something to apply.
	subject, err := r.deps.Subjects.CheckSubject(ctx, req.Subject)
	if err != nil {
		return rep, err
	}

	id, err := job.Resolve(r.cfg.Paths.WorkDir, req.Subject, req.Target)
	if err != nil {
		return rep, services.Wrap(services.ErrValidation, "setup", "resolve job", "", err)
	}
	rep.JobKey, rep.WorkDir = id.Key, id.WorkDir
	rep.RunID = uuid.NewString()
	span.SetAttributes(attribute.String("reframe.job", id.Key), attribute.String("reframe.run_id", rep.RunID))

	ctx = services.WithJobKey(ctx, id.Key)
	ctx = services.WithRunID(ctx, rep.RunID)
	logger := logging.WithContext(ctx, r.logger)

	lock, err := job.Acquire(id.WorkDir)
	if err != nil {
		return rep, err
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.Debug("release job lock", logging.Error(releaseErr))
		}
	}()

	state, err := job.DetectState(id.WorkDir)
	if err != nil {
		return rep, err
	}
	rep.Initial = state
	rep.Phase = PhaseFresh
	if state == job.Resumable {
		rep.Phase = PhaseResumable
	}

	r.journal.upsert(ctx, registry.Job{
		Key:         id.Key,
		SubjectPath: absPath(req.Subject),
		TargetPath:  absPath(req.Target),
		OutputPath:  absPath(req.Output),
		WorkDir:     id.WorkDir,
		State:       registry.StatePending,
	})
	r.journal.startRun(ctx, registry.Run{
		ID:       rep.RunID,
		JobKey:   id.Key,
		Decision: req.Decision.String(),
		Workers:  r.cfg.WorkerCount(),
	})
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("state", state.String()),
		logging.String("decision", req.Decision.String()),
		logging.String("work_dir", id.WorkDir),
	)

	err = r.execute(ctx, logger, id, subject, req, &rep)
	r.finish(ctx, logger, &rep, err)
	return rep, err
}

func (r *Runner) execute(ctx context.Context, logger *slog.Logger, id job.Identity, subject transform.Subject, req Request, rep *Report) error {
	if rep.Initial == job.Resumable && req.Decision == job.Restart {
		logger.Info("restarting job from scratch", logging.String(logging.FieldEventType, "job_restart"))
		if err := job.Reset(id.WorkDir); err != nil {
			return services.Wrap(services.ErrTransient, "setup", "reset work dir", id.WorkDir, err)
		}
		rep.Phase = PhaseFresh
	}

	if rep.Phase == PhaseFresh {
		if err := r.stage(ctx, logger, PhaseFresh, func(ctx context.Context) error {
			count, err := r.deps.Frames.Extract(ctx, req.Target, id.WorkDir)
			if err != nil {
				// A partial extraction must not look resumable.
				_ = job.Reset(id.WorkDir)
				return services.Wrap(services.ErrExternalTool, "extracting", "extract frames", req.Target, err)
			}
			logger.Info("frames extracted", logging.Int("frames", count))
			return nil
		}); err != nil {
			return err
		}
	}

	done, err := ledger.Load(id.WorkDir)
	if err != nil {
		return services.Wrap(services.ErrValidation, "draining", "load ledger", id.WorkDir, err)
	}
	all, err := r.deps.Frames.List(id.WorkDir, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "draining", "list frames", id.WorkDir, err)
	}
	outstanding, err := r.deps.Frames.List(id.WorkDir, done)
	if err != nil {
		return services.Wrap(services.ErrValidation, "draining", "list frames", id.WorkDir, err)
	}
	rep.FramesTotal = len(all)
	rep.AlreadyDone = len(all) - len(outstanding)
	r.journal.progress(ctx, id.Key, rep.FramesTotal, rep.AlreadyDone)

	rep.Phase = PhaseDraining
	if err := r.stage(ctx, logger, PhaseDraining, func(ctx context.Context) error {
		return r.drain(ctx, logger, id, subject, outstanding, req.Observer, rep)
	}); err != nil {
		return err
	}

	rep.Phase = PhaseAssembling
	var hasAudio bool
	if err := r.stage(ctx, logger, PhaseAssembling, func(ctx context.Context) error {
		rep.FrameRate, hasAudio = r.probe(ctx, logger, req.Target)
		count, err := r.deps.Assembler.Assemble(ctx, id.WorkDir, rep.FrameRate, req.Output)
		rep.Assembled = count
		return err
	}); err != nil {
		return err
	}
	if rep.Assembled == 0 {
		rep.Phase = PhaseDone
		return nil
	}

	if !hasAudio && r.cfg.Media.SkipSilentAudio {
		rep.AudioSkipped = true
		logger.Info("target has no audio stream; skipping reattach",
			logging.String(logging.FieldEventType, "audio_skipped"))
	} else {
		rep.Phase = PhaseAudioPending
		if err := r.stage(ctx, logger, PhaseAudioPending, func(ctx context.Context) error {
			return r.deps.Audio.Reattach(ctx, req.Target, id.WorkDir, req.Output)
		}); err != nil {
			if r.cfg.RemuxFailureFatal() {
				return services.Wrap(services.ErrAudioPending, "audio", "reattach", req.Output, err)
			}
			logging.WarnWithContext(logger, "audio reattach failed; keeping silent output", "audio_reattach_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "rerun the job once ffmpeg can read the target's audio"),
				logging.String(logging.FieldImpact, "output video has no soundtrack"),
			)
		} else {
			rep.AudioAttached = true
		}
	}

	if r.deps.Publisher != nil {
		location, err := r.deps.Publisher.Publish(ctx, id.Key, req.Output)
		if err != nil {
			return err
		}
		rep.Published = location
	}
	rep.Phase = PhaseDone
	return nil
}

func (r *Runner) drain(ctx context.Context, logger *slog.Logger, id job.Identity, subject transform.Subject, outstanding []string, extra workpool.Observer, rep *Report) error {
	if len(outstanding) == 0 {
		logger.Info("no outstanding frames", logging.Int("frames", rep.FramesTotal))
		return nil
	}
	l, err := ledger.Open(id.WorkDir)
	if err != nil {
		return services.Wrap(services.ErrTransient, "draining", "open ledger", id.WorkDir, err)
	}
	defer l.Close()

	observers := []workpool.Observer{workpool.NewLogObserver(logger, len(outstanding)), extra}
	if r.deps.Metrics != nil {
		observers = append(observers, r.deps.Metrics.Observer())
	}
	pool, err := workpool.New(workpool.Options{
		Workers:      r.cfg.WorkerCount(),
		Factory:      r.deps.Factory,
		Subject:      subject,
		Ledger:       l,
		Checkpoint:   r.cfg.Pipeline.Checkpoint,
		FrameTimeout: r.cfg.FrameTimeout(),
		Observer:     workpool.NewMultiObserver(observers...),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	chunks := workpool.Partition(outstanding, r.cfg.Pipeline.ChunkSize)
	logger.Info("draining outstanding frames",
		logging.Int("outstanding", len(outstanding)),
		logging.Int("already_done", rep.AlreadyDone),
		logging.Int("chunks", len(chunks)),
		logging.Int("workers", pool.Workers()),
	)
	if starter, ok := extra.(DrainStarter); ok {
		starter.DrainStarted(rep.FramesTotal, len(outstanding))
	}
	result, err := pool.Run(ctx, chunks)
	rep.Processed = result.Logged
	rep.Outstanding = result.Remaining
	rep.FailedChunks = len(result.Failed)
	r.journal.progress(ctx, id.Key, rep.FramesTotal, rep.AlreadyDone+result.Logged)
	return err
}

// probe returns the target's frame rate (or the configured fallback) and
// whether it carries audio. A failed probe assumes audio is present.
func (r *Runner) probe(ctx context.Context, logger *slog.Logger, target string) (float64, bool) {
	fallback := r.cfg.Media.FallbackFPS
	result, err := r.deps.Prober.Probe(ctx, target)
	if err != nil {
		logging.WarnWithContext(logger, "probe failed; using fallback frame rate", "probe_failed",
			logging.Error(err),
			logging.Float64("fallback_fps", fallback),
			logging.String(logging.FieldErrorHint, "check ffprobe is installed and can read the target"),
			logging.String(logging.FieldImpact, "output may play at the wrong speed"),
		)
		return fallback, true
	}
	fps, ok := result.FrameRate()
	if !ok {
		logger.Info("target frame rate unknown; using fallback", logging.Float64("fallback_fps", fallback))
		fps = fallback
	}
	attrs := []logging.Attr{
		logging.Float64("fps", fps),
		logging.Bool("has_audio", result.HasAudio()),
	}
	if seconds := result.DurationSeconds(); seconds > 0 {
		attrs = append(attrs, logging.Float64("duration_seconds", seconds))
	}
	logger.Debug("target probed", logging.Args(attrs...)...)
	return fps, result.HasAudio()
}

// stage runs fn as phase p: it persists the phase, opens a span and logs
// start and completion.
func (r *Runner) stage(ctx context.Context, logger *slog.Logger, p Phase, fn func(context.Context) error) (err error) {
	ctx = services.WithStage(ctx, p.String())
	stageLogger := logger.With(logging.String(logging.FieldStage, p.String()))
	ctx, span := tracing.Tracer().Start(ctx, "reframe."+p.String())
	started := time.Now()
	defer func() {
		r.deps.Metrics.ObservePhase(p.String(), time.Since(started))
		endSpan(span, err)
	}()

	key, _ := services.JobKeyFromContext(ctx)
	r.journal.state(ctx, key, p.registryState(), "")
	stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	if err = fn(ctx); err != nil {
		return err
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func (r *Runner) finish(ctx context.Context, logger *slog.Logger, rep *Report, err error) {
	state := registry.StateDone
	message := ""
	if err != nil {
		state = services.FailureState(err)
		message = err.Error()
	}
	r.journal.state(ctx, rep.JobKey, state, message)
	r.journal.finishRun(ctx, rep.RunID, state, rep.Processed, rep.FailedChunks, message)
	r.deps.Metrics.RunFinished(string(state))

	attrs := []logging.Attr{
		logging.String("state", string(state)),
		logging.Int("frames_total", rep.FramesTotal),
		logging.Int("already_done", rep.AlreadyDone),
		logging.Int("processed", rep.Processed),
		logging.Int("failed_chunks", rep.FailedChunks),
	}
	switch {
	case err == nil:
		logger.Info("job finished", logging.Args(append(attrs, logging.String(logging.FieldEventType, "job_complete"))...)...)
	case errors.Is(err, context.Canceled):
		logger.Info("job interrupted; rerun to resume", logging.Args(append(attrs, logging.String(logging.FieldEventType, "job_interrupted"))...)...)
	default:
		logging.ErrorWithContext(logger, "job stopped", "job_failed", append(attrs,
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)...)
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrIncomplete):
		return "rerun the job; only the failed chunks will be processed again"
	case errors.Is(err, services.ErrAudioPending):
		return "the silent video is in place; rerun to retry the audio remux"
	case errors.Is(err, services.ErrExternalTool):
		return "check the external tool output in the error message"
	default:
		return "check logs for details"
	}
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.Target) == "" || strings.TrimSpace(req.Output) == "" {
		return services.Wrap(services.ErrValidation, "setup", "validate request", "target and output paths are required", nil)
	}
	info, err := os.Stat(req.Target)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "setup", "validate request", req.Target, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "setup", "validate request", fmt.Sprintf("%s is a directory", req.Target), nil)
	}
	if absPath(req.Output) == absPath(req.Target) {
		return services.Wrap(services.ErrValidation, "setup", "validate request", "output must differ from target", nil)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func absPath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
