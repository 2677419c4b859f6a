package assemble_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"reframe/internal/assemble"
	"reframe/internal/framestore"
	"reframe/internal/services"
	"reframe/internal/testsupport"
)

type fakeEncoder struct {
	frames []string
	fps    float64
	calls  int
	path   string
	err    error
}

func (e *fakeEncoder) EncodeFrames(_ context.Context, frames []string, fps float64, outputPath string) error {
	e.calls++
	e.frames = frames
	e.fps = fps
	e.path = outputPath
	if e.err != nil {
		// a failed encoder can still leave a truncated file behind
		_ = os.WriteFile(outputPath, []byte("trunc"), 0o644)
		return e.err
	}
	return os.WriteFile(outputPath, []byte("video"), 0o644)
}

type fakeAudio struct {
	extractErr error
	remuxErr   error
	remuxed    string
}

func (a *fakeAudio) ExtractAudio(_ context.Context, _, outputPath string) error {
	if a.extractErr != nil {
		return a.extractErr
	}
	return os.WriteFile(outputPath, []byte("mp3"), 0o644)
}

func (a *fakeAudio) Remux(_ context.Context, videoPath, _, outputPath string) error {
	if a.remuxErr != nil {
		return a.remuxErr
	}
	a.remuxed = videoPath
	return os.WriteFile(outputPath, []byte("video+audio"), 0o644)
}

func TestAssembleStreamsFramesInNumericOrder(t *testing.T) {
	dir := t.TempDir()
	paths := testsupport.WriteFrames(t, dir, 12, "jpg")
	testsupport.WriteFile(t, filepath.Join(dir, framestore.LedgerFileName), 10)
	encoder := &fakeEncoder{}
	asm := assemble.New(framestore.New(nil, "jpg"), encoder, nil)

	output := filepath.Join(t.TempDir(), "out", "video.mp4")
	count, err := asm.Assemble(context.Background(), dir, 30, output)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if count != 12 || encoder.fps != 30 {
		t.Fatalf("count=%d fps=%v", count, encoder.fps)
	}
	if !reflect.DeepEqual(encoder.frames, paths) {
		t.Fatalf("frames out of order: %v", encoder.frames)
	}
	if encoder.path != filepath.Join(dir, framestore.VideoFileName) {
		t.Fatalf("encoder wrote to %q, want the work dir", encoder.path)
	}
	data, err := os.ReadFile(output)
	if err != nil || string(data) != "video" {
		t.Fatalf("output = %q, %v", data, err)
	}
	if _, err := os.Stat(encoder.path); !os.IsNotExist(err) {
		t.Fatal("encoded video should have been moved to the output")
	}
}

func TestAssembleFailureKeepsPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFrames(t, dir, 3, "jpg")
	output := filepath.Join(t.TempDir(), "clip.mkv")
	if err := os.WriteFile(output, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}
	encoder := &fakeEncoder{err: errors.New("broken pipe")}
	asm := assemble.New(framestore.New(nil, "jpg"), encoder, nil)

	if _, err := asm.Assemble(context.Background(), dir, 25, output); err == nil {
		t.Fatal("expected encoder failure")
	}
	if filepath.Base(encoder.path) != "video.mkv" || filepath.Dir(encoder.path) != dir {
		t.Fatalf("encoder wrote to %q", encoder.path)
	}
	data, err := os.ReadFile(output)
	if err != nil || string(data) != "previous" {
		t.Fatalf("previous output should survive, got %q, %v", data, err)
	}
	if _, err := os.Stat(encoder.path); !os.IsNotExist(err) {
		t.Fatal("partial video should be removed")
	}
}

func TestAssembleZeroFramesIsNoop(t *testing.T) {
	encoder := &fakeEncoder{}
	asm := assemble.New(framestore.New(nil, "jpg"), encoder, nil)
	output := filepath.Join(t.TempDir(), "video.mp4")

	count, err := asm.Assemble(context.Background(), t.TempDir(), 25, output)
	if err != nil || count != 0 {
		t.Fatalf("Assemble = %d, %v", count, err)
	}
	if encoder.calls != 0 {
		t.Fatal("encoder must not run without frames")
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatal("no output should be written")
	}
}

func TestAssembleRejectsBadFrameRate(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFrames(t, dir, 1, "jpg")
	asm := assemble.New(framestore.New(nil, "jpg"), &fakeEncoder{}, nil)
	if _, err := asm.Assemble(context.Background(), dir, 0, filepath.Join(dir, "v.mp4")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestReattachReplacesOutput(t *testing.T) {
	work := t.TempDir()
	video := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(video, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := &fakeAudio{}
	r := assemble.NewReattacher(tool, nil)

	if err := r.Reattach(context.Background(), "/in/clip.mp4", work, video); err != nil {
		t.Fatalf("Reattach: %v", err)
	}
	data, _ := os.ReadFile(video)
	if string(data) != "video+audio" {
		t.Fatalf("output = %q", data)
	}
	if tool.remuxed != video {
		t.Fatalf("remux used %q", tool.remuxed)
	}
	if _, err := os.Stat(filepath.Join(work, framestore.TempVideoFileName)); !os.IsNotExist(err) {
		t.Fatal("temp video should have been moved")
	}
	if _, err := os.Stat(filepath.Join(work, framestore.AudioFileName)); err != nil {
		t.Fatalf("audio file expected in work dir: %v", err)
	}
}

func TestReattachFailureLeavesVideoIntact(t *testing.T) {
	video := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(video, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := assemble.NewReattacher(&fakeAudio{remuxErr: errors.New("no audio stream")}, nil)
	err := r.Reattach(context.Background(), "/in/clip.mp4", t.TempDir(), video)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	data, _ := os.ReadFile(video)
	if string(data) != "video" {
		t.Fatalf("video was modified: %q", data)
	}
}
