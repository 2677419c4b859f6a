// Package assemble turns a drained work directory back into a video and
// reattaches the target's soundtrack to it.
package assemble
