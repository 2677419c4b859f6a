// Package workpool splits outstanding frames into chunks and drains them with
// a fixed set of goroutines.
//
// Each worker owns one transformer for its lifetime, replacing it only after a
// failed chunk. Completed frames reach the ledger after every chunk (or every
// frame in frame checkpoint mode); a shared atomic counter tracks what is
// left and is reported through an Observer. A failing or panicking chunk
// fails alone. Cancelling the context stops dispatch while chunks already
// running finish and record their progress.
package workpool
