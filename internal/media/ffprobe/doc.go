// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect executes ffprobe and returns a Result; helpers on Result answer
// the questions the pipeline asks of a target: its frame rate, whether it
// carries audio, and its duration.
package ffprobe
