// Package framestore owns the on-disk layout of a job's frames: extraction of
// the target into numbered frame files, enumeration of frame artifacts apart
// from control files, and the numeric-aware order used for assembly.
package framestore
