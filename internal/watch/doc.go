// Package watch follows a job's progress ledger from outside the process
// that is draining it, so a second terminal can report live progress.
package watch
