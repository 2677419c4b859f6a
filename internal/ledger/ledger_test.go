package ledger_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"reframe/internal/ledger"
)

func TestLoadMissingLedgerIsEmpty(t *testing.T) {
	done, err := ledger.Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(done) != 0 {
		t.Fatalf("expected empty set, got %v", done)
	}
}

func TestAppendBatchThenLoad(t *testing.T) {
	dir := t.TempDir()
	l, err := ledger.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a := filepath.Join(dir, "frame0.jpg")
	b := filepath.Join(dir, "frame1.jpg")
	if err := l.AppendBatch([]string{a, b}); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	if err := l.AppendBatch([]string{a}); err != nil {
		t.Fatalf("AppendBatch duplicate: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.AppendBatch([]string{b}); err == nil {
		t.Fatal("append after close should fail")
	}

	done, err := ledger.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("duplicates should collapse, got %v", done)
	}
	for _, p := range []string{a, b} {
		if _, ok := done[p]; !ok {
			t.Fatalf("missing %s in %v", p, done)
		}
	}
}

func TestLoadResolvesRelativeAndIgnoresTornTail(t *testing.T) {
	dir := t.TempDir()
	content := "frame0.jpg\n" + filepath.Join(dir, "frame1.jpg") + "\n\n" + filepath.Join(dir, "frame2")
	if err := os.WriteFile(ledger.Path(dir), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	done, err := ledger.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("expected 2 complete records, got %v", done)
	}
	if _, ok := done[filepath.Join(dir, "frame0.jpg")]; !ok {
		t.Fatalf("relative record not resolved: %v", done)
	}
}

func TestOpenRepairsTornTail(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "frame0.jpg") + "\n"
	if err := os.WriteFile(ledger.Path(dir), []byte(good+filepath.Join(dir, "fra")), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := ledger.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.AppendBatch([]string{filepath.Join(dir, "frame1.jpg")}); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	_ = l.Close()

	data, err := os.ReadFile(ledger.Path(dir))
	if err != nil {
		t.Fatal(err)
	}
	want := good + filepath.Join(dir, "frame1.jpg") + "\n"
	if string(data) != want {
		t.Fatalf("ledger = %q, want %q", data, want)
	}
}

func TestOpenTruncatesSingleTornRecord(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(ledger.Path(dir), []byte("/w/frame"), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := ledger.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = l.Close()
	info, err := os.Stat(ledger.Path(dir))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected empty ledger, got %d bytes", info.Size())
	}
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	dir := t.TempDir()
	l, err := ledger.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			batch := make([]string, 0, perWriter)
			for i := 0; i < perWriter; i++ {
				batch = append(batch, filepath.Join(dir, fmt.Sprintf("frame%d.jpg", w*perWriter+i)))
			}
			if err := l.AppendBatch(batch); err != nil {
				t.Errorf("AppendBatch: %v", err)
			}
		}(w)
	}
	wg.Wait()

	data, err := os.ReadFile(ledger.Path(dir))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != writers*perWriter {
		t.Fatalf("expected %d lines, got %d", writers*perWriter, len(lines))
	}
	done, err := ledger.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(done) != writers*perWriter {
		t.Fatalf("expected %d unique records, got %d", writers*perWriter, len(done))
	}
}

func TestAppendRejectsNewlines(t *testing.T) {
	l, err := ledger.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()
	if err := l.AppendBatch([]string{"bad\nname"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestAppendBatchRollsBackPartialWrite(t *testing.T) {
	dir := t.TempDir()
	l, err := ledger.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	first := filepath.Join(dir, "frame0.jpg")
	if err := l.AppendBatch([]string{first}); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}

	restore := ledger.SetWriteForTests(func(f *os.File, data []byte) (int, error) {
		n, _ := f.Write(data[:len(data)/2])
		return n, errors.New("no space left on device")
	})
	if err := l.AppendBatch([]string{filepath.Join(dir, "frame1.jpg"), filepath.Join(dir, "frame2.jpg")}); err == nil {
		restore()
		t.Fatal("expected write failure")
	}
	restore()

	third := filepath.Join(dir, "frame3.jpg")
	if err := l.AppendBatch([]string{third}); err != nil {
		t.Fatalf("AppendBatch after failure: %v", err)
	}

	data, err := os.ReadFile(ledger.Path(dir))
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if want := first + "\n" + third + "\n"; string(data) != want {
		t.Fatalf("ledger = %q, want %q", data, want)
	}
}
