package workpool

import "sync/atomic"

// Progress counts frames still outstanding in a drain. Safe for concurrent use.
type Progress struct {
	remaining atomic.Int64
}

// NewProgress starts a counter at total.
func NewProgress(total int) *Progress {
	p := &Progress{}
	p.remaining.Store(int64(total))
	return p
}

// Done marks n frames complete and returns what remains.
func (p *Progress) Done(n int) int64 {
	if p == nil {
		return 0
	}
	return p.remaining.Add(-int64(n))
}

// Remaining returns the outstanding frame count.
func (p *Progress) Remaining() int64 {
	if p == nil {
		return 0
	}
	return p.remaining.Load()
}
