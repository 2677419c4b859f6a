package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"reframe/internal/fileutil"
	"reframe/internal/logging"
	"reframe/internal/services"
	"reframe/internal/transform"
	"reframe/internal/workpool"
)

// ImageReport summarises a single-image run.
type ImageReport struct {
	Output  string
	Outcome transform.Outcome
	Elapsed time.Duration
}

// RunImage applies the subject to one still image. Images have no work
// directory or ledger; a NoTarget outcome copies the target through unchanged.
func (r *Runner) RunImage(ctx context.Context, subjectPath, target, output string) (ImageReport, error) {
	started := time.Now()
	rep := ImageReport{Output: output}
	if err := validateRequest(Request{Target: target, Output: output}); err != nil {
		return rep, err
	}
	subject, err := r.deps.Subjects.CheckSubject(ctx, subjectPath)
	if err != nil {
		return rep, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath(output)), 0o755); err != nil {
		return rep, services.Wrap(services.ErrValidation, "image", "create output dir", output, err)
	}

	tr, err := r.deps.Factory(ctx)
	if err != nil {
		return rep, services.Wrap(services.ErrExternalTool, "image", "create transformer", "", err)
	}
	defer tr.Close()

	tmp := workpool.TempPath(absPath(output))
	_ = os.Remove(tmp)
	defer os.Remove(tmp)

	ctx, cancel := r.frameContext(ctx)
	defer cancel()
	outcome, err := tr.Transform(ctx, target, tmp, subject)
	if err != nil {
		return rep, services.Wrap(services.ErrExternalTool, "image", "transform", target, err)
	}
	rep.Outcome = outcome
	if outcome == transform.NoTarget {
		err = fileutil.CopyFile(target, output)
	} else {
		err = fileutil.ReplaceFile(tmp, output)
	}
	if err != nil {
		return rep, services.Wrap(services.ErrTransient, "image", "write output", output, err)
	}
	rep.Elapsed = time.Since(started)
	r.logger.Info("image processed",
		logging.String(logging.FieldEventType, "image_complete"),
		logging.String("outcome", outcome.String()),
		logging.String("output", output),
		logging.Duration("elapsed", rep.Elapsed),
	)
	return rep, nil
}

func (r *Runner) frameContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := r.cfg.FrameTimeout(); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
