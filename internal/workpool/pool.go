package workpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"reframe/internal/config"
	"reframe/internal/logging"
	"reframe/internal/services"
	"reframe/internal/transform"
)

// Appender durably records completed frames.
type Appender interface {
	AppendBatch(paths []string) error
}

// Options configures a Pool.
type Options struct {
	Workers      int
	Factory      transform.Factory
	Subject      transform.Subject
	Ledger       Appender
	Checkpoint   string
	FrameTimeout time.Duration
	Progress     *Progress
	Observer     Observer
	Logger       *slog.Logger
}

// ChunkFailure describes a chunk whose frames stay outstanding.
type ChunkFailure struct {
	Chunk  int
	Frames int
	Err    error
}

// Result summarises a drain.
type Result struct {
	Chunks      int
	Dispatched  int
	Completed   int
	Logged      int
	Transformed int
	NoTarget    int
	Remaining   int
	Failed      []ChunkFailure
	Canceled    bool
}

// Pool drains chunks of frames through transformers.
type Pool struct {
	opts   Options
	logger *slog.Logger
}

// New validates opts and returns a Pool.
func New(opts Options) (*Pool, error) {
	if opts.Factory == nil {
		return nil, errors.New("workpool: transformer factory is required")
	}
	if opts.Ledger == nil {
		return nil, errors.New("workpool: ledger is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Checkpoint == "" {
		opts.Checkpoint = config.CheckpointChunk
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	return &Pool{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "workpool"),
	}, nil
}

// Workers returns the goroutine count used by Run.
func (p *Pool) Workers() int {
	return p.opts.Workers
}

type chunkResult struct {
	chunk       Chunk
	logged      int
	transformed int
	noTarget    int
	err         error
}

// Run drains chunks. It returns an error wrapping services.ErrIncomplete when
// any chunk failed, or the context error when ctx was cancelled before every
// chunk was dispatched.
func (p *Pool) Run(ctx context.Context, chunks []Chunk) (Result, error) {
	result := Result{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return result, nil
	}
	progress := p.opts.Progress
	if progress == nil {
		progress = NewProgress(FrameCount(chunks))
	}

	workers := min(p.opts.Workers, len(chunks))
	// In-flight chunks must finish and log even after cancellation.
	workCtx := context.WithoutCancel(ctx)
	jobs := make(chan Chunk)
	results := make(chan chunkResult, len(chunks))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.work(workCtx, worker, jobs, results, progress)
		}(w)
	}

dispatch:
	for _, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- chunk:
			result.Dispatched++
		}
	}
	close(jobs)
	wg.Wait()
	close(results)
	result.Remaining = int(progress.Remaining())

	var failures []error
	for r := range results {
		result.Logged += r.logged
		result.Transformed += r.transformed
		result.NoTarget += r.noTarget
		if r.err != nil {
			result.Failed = append(result.Failed, ChunkFailure{Chunk: r.chunk.Index, Frames: len(r.chunk.Frames), Err: r.err})
			failures = append(failures, fmt.Errorf("chunk %d: %w", r.chunk.Index, r.err))
			continue
		}
		result.Completed++
	}

	if result.Dispatched < len(chunks) {
		result.Canceled = true
		return result, fmt.Errorf("drain interrupted after %d of %d chunks: %w",
			result.Dispatched, len(chunks), ctx.Err())
	}
	if len(failures) > 0 {
		return result, services.Wrap(services.ErrIncomplete, "draining", "run",
			fmt.Sprintf("%d of %d chunks failed", len(failures), len(chunks)), errors.Join(failures...))
	}
	return result, nil
}

func (p *Pool) work(ctx context.Context, worker int, jobs <-chan Chunk, results chan<- chunkResult, progress *Progress) {
	logger := p.logger.With(logging.Int(logging.FieldWorker, worker))
	ctx = services.WithWorker(ctx, worker)
	var tr transform.Transformer
	defer func() {
		if tr != nil {
			if err := tr.Close(); err != nil {
				logger.Debug("close transformer", logging.Error(err))
			}
		}
	}()

	for chunk := range jobs {
		p.opts.Observer.ChunkStarted(worker, chunk)
		started := time.Now()

		if tr == nil {
			created, err := p.opts.Factory(ctx)
			if err != nil {
				err = services.Wrap(services.ErrExternalTool, "draining", "create transformer", "", err)
				p.opts.Observer.ChunkFailed(worker, chunk, err)
				results <- chunkResult{chunk: chunk, err: err}
				continue
			}
			tr = created
		}

		res := p.runChunk(ctx, worker, tr, chunk, progress)
		if res.err != nil {
			p.opts.Observer.ChunkFailed(worker, chunk, res.err)
			if err := tr.Close(); err != nil {
				logger.Debug("close failed transformer", logging.Error(err))
			}
			tr = nil
		} else {
			p.opts.Observer.ChunkDone(worker, chunk, time.Since(started))
		}
		results <- res
	}
}

func (p *Pool) runChunk(ctx context.Context, worker int, tr transform.Transformer, chunk Chunk, progress *Progress) (res chunkResult) {
	res.chunk = chunk
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("transformer panic: %v", r)
		}
	}()

	perFrame := p.opts.Checkpoint == config.CheckpointFrame
	for _, frame := range chunk.Frames {
		outcome, err := p.transformFrame(ctx, tr, frame)
		if err != nil {
			res.err = fmt.Errorf("%s: %w", filepath.Base(frame), err)
			return res
		}
		if outcome == transform.NoTarget {
			res.noTarget++
		} else {
			res.transformed++
		}
		if perFrame {
			if err := p.record(worker, []string{frame}, progress); err != nil {
				res.err = err
				return res
			}
			res.logged++
		}
	}
	if !perFrame {
		if err := p.record(worker, chunk.Frames, progress); err != nil {
			res.err = err
			return res
		}
		res.logged = len(chunk.Frames)
	}
	return res
}

func (p *Pool) record(worker int, frames []string, progress *Progress) error {
	if err := p.opts.Ledger.AppendBatch(frames); err != nil {
		return services.Wrap(services.ErrTransient, "draining", "append ledger", "", err)
	}
	remaining := progress.Done(len(frames))
	p.opts.Observer.FramesLogged(worker, len(frames), remaining)
	return nil
}

// transformFrame writes into a hidden sibling and swaps it over the frame so
// a frame file is never half written.
func (p *Pool) transformFrame(ctx context.Context, tr transform.Transformer, frame string) (transform.Outcome, error) {
	tmp := TempPath(frame)
	_ = os.Remove(tmp)
	defer os.Remove(tmp)

	frameCtx := ctx
	if p.opts.FrameTimeout > 0 {
		var cancel context.CancelFunc
		frameCtx, cancel = context.WithTimeout(ctx, p.opts.FrameTimeout)
		defer cancel()
	}

	outcome, err := tr.Transform(frameCtx, frame, tmp, p.opts.Subject)
	if err != nil {
		if errors.Is(frameCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
			err = services.Wrap(services.ErrTimeout, "draining", "transform frame", p.opts.FrameTimeout.String(), err)
		}
		return outcome, err
	}
	if outcome == transform.NoTarget {
		return outcome, nil
	}
	if err := os.Rename(tmp, frame); err != nil {
		return outcome, fmt.Errorf("replace frame: %w", err)
	}
	return outcome, nil
}

// TempPath is the hidden scratch file a frame is transformed into. It keeps
// the frame's extension so encoders pick the same format.
func TempPath(frame string) string {
	dir, name := filepath.Split(frame)
	ext := filepath.Ext(name)
	return filepath.Join(dir, "."+strings.TrimSuffix(name, ext)+".tmp"+ext)
}
