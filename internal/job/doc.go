// Package job derives the deterministic identity of a (subject, target) pair,
// classifies its working directory as fresh or resumable, and guards it with
// an advisory lock so two runs never drain the same job at once.
package job
