// Package logging assembles structured slog loggers and formatting helpers used
// across reframe.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with job keys, stages, run identifiers, and worker indexes. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail, and a sampler that keeps remaining-frame progress lines readable.
package logging
