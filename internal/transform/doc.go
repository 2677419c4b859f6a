// Package transform defines the per-frame transformation contract and its
// implementations.
//
// A Transformer rewrites one image into an output path, reporting whether a
// target region was found. Implementations must tolerate being applied to a
// frame they already transformed, because a crash between the frame write
// and the ledger append replays that frame on resume.
//
// Kinds:
//   - command: an external executable driven by argument templates
//   - passthrough: never finds a target; frames pass through unchanged
package transform
