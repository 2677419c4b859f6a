package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reframe/internal/assemble"
	"reframe/internal/config"
	"reframe/internal/framestore"
	"reframe/internal/job"
	"reframe/internal/logging"
	"reframe/internal/media/ffmpeg"
	"reframe/internal/media/ffprobe"
	"reframe/internal/metrics"
	"reframe/internal/transform"
	"reframe/internal/workpool"
)

// Prober reads stream metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
}

// Publisher ships a finished output somewhere else.
type Publisher interface {
	Publish(ctx context.Context, jobKey, path string) (string, error)
}

// Dependencies are the collaborators a Runner drives. Frames, Assembler,
// Audio, Prober, Factory and Subjects are required.
type Dependencies struct {
	Frames    *framestore.Store
	Assembler *assemble.Assembler
	Audio     *assemble.Reattacher
	Prober    Prober
	Factory   transform.Factory
	Subjects  transform.SubjectChecker
	Recorder  Recorder
	Publisher Publisher
	Metrics   *metrics.Collectors
	Logger    *slog.Logger
}

// Request describes one video job.
type Request struct {
	Subject  string
	Target   string
	Output   string
	Decision job.Decision
	// Observer receives drain events in addition to logging and metrics.
	Observer workpool.Observer
}

// DrainStarter is an optional extension of a Request observer, told how many
// frames the job holds and how many this run will process.
type DrainStarter interface {
	DrainStarted(total, outstanding int)
}

// Report summarises a run. It is returned alongside any error.
type Report struct {
	RunID         string
	JobKey        string
	WorkDir       string
	Output        string
	Initial       job.State
	Decision      job.Decision
	Phase         Phase
	FramesTotal   int
	AlreadyDone   int
	Processed     int
	Outstanding   int
	FailedChunks  int
	Assembled     int
	FrameRate     float64
	AudioAttached bool
	AudioSkipped  bool
	Published     string
	Elapsed       time.Duration
}

// Runner executes jobs against a configuration.
type Runner struct {
	cfg     *config.Config
	deps    Dependencies
	journal journal
	logger  *slog.Logger
}

// NewRunner validates deps and returns a Runner.
func NewRunner(cfg *config.Config, deps Dependencies) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	switch {
	case deps.Frames == nil:
		return nil, errors.New("pipeline: frame store is required")
	case deps.Assembler == nil:
		return nil, errors.New("pipeline: assembler is required")
	case deps.Audio == nil:
		return nil, errors.New("pipeline: audio reattacher is required")
	case deps.Prober == nil:
		return nil, errors.New("pipeline: prober is required")
	case deps.Factory == nil || deps.Subjects == nil:
		return nil, errors.New("pipeline: transformer is required")
	}
	logger := logging.NewComponentLogger(deps.Logger, "pipeline")
	return &Runner{
		cfg:     cfg,
		deps:    deps,
		journal: journal{rec: deps.Recorder, logger: logger},
		logger:  logger,
	}, nil
}

// FromConfig wires the ffmpeg toolchain and configured transformer into a Runner.
func FromConfig(cfg *config.Config, recorder Recorder, publisher Publisher, collectors *metrics.Collectors, logger *slog.Logger) (*Runner, error) {
	toolchain := ffmpeg.New(cfg.Media, logger)
	factory, subjects, err := transform.FromConfig(cfg.Transformer, logger)
	if err != nil {
		return nil, err
	}
	frames := framestore.New(toolchain, cfg.Media.FrameExtension)
	deps := Dependencies{
		Frames:    frames,
		Assembler: assemble.New(frames, toolchain, logger),
		Audio:     assemble.NewReattacher(toolchain, logger),
		Prober:    toolchain,
		Factory:   factory,
		Subjects:  subjects,
		Recorder:  recorder,
		Publisher: publisher,
		Metrics:   collectors,
		Logger:    logger,
	}
	return NewRunner(cfg, deps)
}
