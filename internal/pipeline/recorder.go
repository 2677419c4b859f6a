package pipeline

import (
	"context"
	"log/slog"

	"reframe/internal/logging"
	"reframe/internal/registry"
)

// Recorder persists job and run history. *registry.Store implements it.
type Recorder interface {
	UpsertJob(ctx context.Context, job registry.Job) error
	SetState(ctx context.Context, key string, state registry.State, message string) error
	UpdateProgress(ctx context.Context, key string, total, done int) error
	StartRun(ctx context.Context, run registry.Run) error
	FinishRun(ctx context.Context, id string, outcome registry.State, processed, failedChunks int, message string) error
}

var _ Recorder = (*registry.Store)(nil)

// journal wraps a Recorder so bookkeeping failures are logged, not fatal, and
// still land after the run context is cancelled.
type journal struct {
	rec    Recorder
	logger *slog.Logger
}

func (j journal) warn(op string, err error) {
	logging.WarnWithContext(j.logger, "registry update failed", "registry_write_failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the state directory is writable"),
		logging.String(logging.FieldImpact, "job history may be stale; processing is unaffected"),
	)
}

func (j journal) upsert(ctx context.Context, job registry.Job) {
	if j.rec == nil {
		return
	}
	if err := j.rec.UpsertJob(context.WithoutCancel(ctx), job); err != nil {
		j.warn("upsert job", err)
	}
}

func (j journal) state(ctx context.Context, key string, state registry.State, message string) {
	if j.rec == nil {
		return
	}
	if err := j.rec.SetState(context.WithoutCancel(ctx), key, state, message); err != nil {
		j.warn("set state", err)
	}
}

func (j journal) progress(ctx context.Context, key string, total, done int) {
	if j.rec == nil {
		return
	}
	if err := j.rec.UpdateProgress(context.WithoutCancel(ctx), key, total, done); err != nil {
		j.warn("update progress", err)
	}
}

func (j journal) startRun(ctx context.Context, run registry.Run) {
	if j.rec == nil {
		return
	}
	if err := j.rec.StartRun(context.WithoutCancel(ctx), run); err != nil {
		j.warn("start run", err)
	}
}

func (j journal) finishRun(ctx context.Context, id string, outcome registry.State, processed, failed int, message string) {
	if j.rec == nil {
		return
	}
	if err := j.rec.FinishRun(context.WithoutCancel(ctx), id, outcome, processed, failed, message); err != nil {
		j.warn("finish run", err)
	}
}
