// Package metrics exposes Prometheus collectors for drains and runs, and the
// HTTP endpoint that serves them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"reframe/internal/workpool"
)

// Collectors holds the pipeline metrics registered on one registry.
type Collectors struct {
	Registry        *prometheus.Registry
	FramesProcessed prometheus.Counter
	FramesRemaining prometheus.Gauge
	Chunks          *prometheus.CounterVec
	ChunkDuration   prometheus.Histogram
	ActiveWorkers   prometheus.Gauge
	Runs            *prometheus.CounterVec
	PhaseDuration   *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, alongside the Go and
// process collectors.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collectors{
		Registry: reg,
		FramesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "reframe_frames_processed_total",
			Help: "Frames recorded in a job ledger",
		}),
		FramesRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reframe_frames_remaining",
			Help: "Frames still outstanding in the current drain",
		}),
		Chunks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reframe_chunks_total",
			Help: "Chunks processed, by outcome",
		}, []string{"outcome"}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reframe_chunk_duration_seconds",
			Help:    "Wall time to transform one chunk",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		ActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reframe_active_workers",
			Help: "Workers currently processing a chunk",
		}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reframe_runs_total",
			Help: "Pipeline runs, by final state",
		}, []string{"state"}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reframe_phase_duration_seconds",
			Help:    "Duration of pipeline phases",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"phase"}),
	}
}

// ObservePhase records the duration of a finished phase.
func (c *Collectors) ObservePhase(phase string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.PhaseDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// RunFinished counts a run by its final registry state.
func (c *Collectors) RunFinished(state string) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(state).Inc()
}

// Observer adapts the collectors to drain events.
func (c *Collectors) Observer() workpool.Observer {
	return observer{c: c}
}

type observer struct {
	c *Collectors
}

func (o observer) ChunkStarted(int, workpool.Chunk) {
	o.c.ActiveWorkers.Inc()
}

func (o observer) FramesLogged(_ int, frames int, remaining int64) {
	o.c.FramesProcessed.Add(float64(frames))
	o.c.FramesRemaining.Set(float64(remaining))
}

func (o observer) ChunkDone(_ int, _ workpool.Chunk, elapsed time.Duration) {
	o.c.ActiveWorkers.Dec()
	o.c.Chunks.WithLabelValues("done").Inc()
	o.c.ChunkDuration.Observe(elapsed.Seconds())
}

func (o observer) ChunkFailed(int, workpool.Chunk, error) {
	o.c.ActiveWorkers.Dec()
	o.c.Chunks.WithLabelValues("failed").Inc()
}
