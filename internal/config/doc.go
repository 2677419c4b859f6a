// Package config loads, normalizes, and validates reframe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REFRAME_WORK_DIR and the AWS credential variables. The Config type gathers
// every knob the CLI and pipeline need: the job work root, chunking and
// worker settings, the external transformer command, and the optional
// metrics, tracing, and publish integrations.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
