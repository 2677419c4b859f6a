// Package main hosts the reframe CLI entrypoint and command graph.
//
// The Cobra-based command tree runs jobs in the foreground, inspects and
// follows job directories, sweeps stale work, and checks the host for the
// binaries and paths a run needs. It centralizes configuration resolution and
// structured logging setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
