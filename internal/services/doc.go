// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job keys, stage names, run identifiers, and
//     worker indexes for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent registry states (failed, interrupted, audio pending).
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
