// Package pipeline runs a job end to end: it validates the subject, resolves
// the job directory, chooses between continuing and restarting, extracts and
// drains frames, assembles the output and reattaches audio.
//
// The work directory is the source of truth. A run interrupted at any point
// leaves the job resumable, and the next run picks up only the frames the
// ledger does not list. The registry mirrors each phase for reporting but is
// never consulted to decide what to do.
package pipeline
