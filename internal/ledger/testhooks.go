package ledger

import "os"

// SetWriteForTests overrides how batches reach the ledger file during tests.
func SetWriteForTests(fn func(*os.File, []byte) (int, error)) func() {
	previous := writeRecords
	writeRecords = fn
	return func() {
		writeRecords = previous
	}
}
