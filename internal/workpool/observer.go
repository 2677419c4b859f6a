package workpool

import (
	"log/slog"
	"time"

	"reframe/internal/logging"
)

// Observer receives drain events. Implementations must be safe for concurrent
// use; events arrive from every worker goroutine.
type Observer interface {
	ChunkStarted(worker int, chunk Chunk)
	// FramesLogged fires after each ledger append with the frames just
	// recorded and the outstanding count afterwards.
	FramesLogged(worker, frames int, remaining int64)
	ChunkDone(worker int, chunk Chunk, elapsed time.Duration)
	ChunkFailed(worker int, chunk Chunk, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ChunkStarted(int, Chunk) {}
func (NopObserver) FramesLogged(int, int, int64) {}
func (NopObserver) ChunkDone(int, Chunk, time.Duration) {}
func (NopObserver) ChunkFailed(int, Chunk, error) {}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

// NewMultiObserver drops nil entries.
func NewMultiObserver(observers ...Observer) MultiObserver {
	out := make(MultiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m MultiObserver) ChunkStarted(worker int, chunk Chunk) {
	for _, o := range m {
		o.ChunkStarted(worker, chunk)
	}
}

func (m MultiObserver) FramesLogged(worker, frames int, remaining int64) {
	for _, o := range m {
		o.FramesLogged(worker, frames, remaining)
	}
}

func (m MultiObserver) ChunkDone(worker int, chunk Chunk, elapsed time.Duration) {
	for _, o := range m {
		o.ChunkDone(worker, chunk, elapsed)
	}
}

func (m MultiObserver) ChunkFailed(worker int, chunk Chunk, err error) {
	for _, o := range m {
		o.ChunkFailed(worker, chunk, err)
	}
}

// LogObserver writes drain events to a logger, sampling the remaining-frame
// signal into percentage buckets.
type LogObserver struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	total   int64
}

// NewLogObserver logs progress for a drain of total frames.
func NewLogObserver(logger *slog.Logger, total int) *LogObserver {
	return &LogObserver{
		logger:  logging.NewComponentLogger(logger, "workpool"),
		sampler: logging.NewProgressSampler(10),
		total:   int64(total),
	}
}

func (l *LogObserver) ChunkStarted(worker int, chunk Chunk) {
	l.logger.Debug("chunk started",
		logging.Int(logging.FieldWorker, worker),
		logging.Int(logging.FieldChunk, chunk.Index),
		logging.Int("frames", len(chunk.Frames)),
	)
}

func (l *LogObserver) FramesLogged(_ int, _ int, remaining int64) {
	done := l.total - remaining
	if !l.sampler.ShouldLog(done, l.total) {
		return
	}
	l.logger.Info("frames remaining",
		logging.String(logging.FieldEventType, "drain_progress"),
		logging.Int64("remaining", remaining),
		logging.Int64("done", done),
		logging.Int64("total", l.total),
	)
}

func (l *LogObserver) ChunkDone(worker int, chunk Chunk, elapsed time.Duration) {
	l.logger.Debug("chunk done",
		logging.Int(logging.FieldWorker, worker),
		logging.Int(logging.FieldChunk, chunk.Index),
		logging.Duration("elapsed", elapsed),
	)
}

func (l *LogObserver) ChunkFailed(worker int, chunk Chunk, err error) {
	logging.WarnWithContext(l.logger, "chunk failed; its frames stay outstanding", "chunk_failed",
		logging.Int(logging.FieldWorker, worker),
		logging.Int(logging.FieldChunk, chunk.Index),
		logging.Int("frames", len(chunk.Frames)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "rerun the job to retry the outstanding frames"),
		logging.String(logging.FieldImpact, "output cannot be assembled until every frame is done"),
	)
}
