package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"reframe/internal/transform"
)

// TransformedPrefix is prepended to frame content by FakeTransforms.
const TransformedPrefix = "T:"

// FakeTransforms is an in-process transformer family. Each Transform call
// writes TransformedPrefix plus the input bytes to the output path.
type FakeTransforms struct {
	// FailOn maps frame base names to the error their transform returns.
	FailOn map[string]error
	// PanicOn lists frame base names whose transform panics.
	PanicOn map[string]bool
	// NoTarget lists frame base names reported as NoTarget.
	NoTarget map[string]bool
	// Before runs ahead of every transform; it may block.
	Before func(ctx context.Context, inputPath string)

	mu      sync.Mutex
	calls   map[string]int
	created atomic.Int32
	closed  atomic.Int32
}

// Factory returns a transform.Factory backed by f.
func (f *FakeTransforms) Factory() transform.Factory {
	return func(context.Context) (transform.Transformer, error) {
		f.created.Add(1)
		return &fakeTransformer{parent: f}, nil
	}
}

// Calls returns how often the frame with base name was transformed.
func (f *FakeTransforms) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// TotalCalls returns the number of Transform invocations.
func (f *FakeTransforms) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// Created returns the number of transformers built by the factory.
func (f *FakeTransforms) Created() int { return int(f.created.Load()) }

// Closed returns the number of transformers closed.
func (f *FakeTransforms) Closed() int { return int(f.closed.Load()) }

type fakeTransformer struct {
	parent *FakeTransforms
}

func (t *fakeTransformer) Transform(ctx context.Context, inputPath, outputPath string, _ transform.Subject) (transform.Outcome, error) {
	f := t.parent
	name := filepath.Base(inputPath)
	if f.Before != nil {
		f.Before(ctx, inputPath)
	}
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
	f.mu.Unlock()

	if f.PanicOn[name] {
		panic("fake transformer panic on " + name)
	}
	if err := f.FailOn[name]; err != nil {
		return transform.Transformed, err
	}
	if f.NoTarget[name] {
		return transform.NoTarget, nil
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return transform.Transformed, err
	}
	if err := os.WriteFile(outputPath, append([]byte(TransformedPrefix), data...), 0o644); err != nil {
		return transform.Transformed, err
	}
	return transform.Transformed, nil
}

func (t *fakeTransformer) Close() error {
	t.parent.closed.Add(1)
	return nil
}
