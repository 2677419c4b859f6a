package main

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"reframe/internal/workpool"
)

// barObserver draws drain progress on a terminal.
type barObserver struct {
	workpool.NopObserver

	out io.Writer
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newBarObserver(out io.Writer) *barObserver {
	return &barObserver{out: out}
}

func (b *barObserver) DrainStarted(total, outstanding int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	desc := "frames"
	if done := total - outstanding; done > 0 {
		desc = "frames (resumed)"
	}
	b.bar = progressbar.NewOptions(outstanding,
		progressbar.OptionSetWriter(b.out),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (b *barObserver) FramesLogged(_ int, frames int, _ int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Add(frames)
	}
}

func (b *barObserver) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}
