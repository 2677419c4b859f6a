package transform_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reframe/internal/config"
	"reframe/internal/services"
	"reframe/internal/testsupport"
	"reframe/internal/transform"
)

const copyScript = `
subject=""; input=""; output=""; detect=""
while [ $# -gt 0 ]; do
  case "$1" in
    --subject) subject="$2"; shift 2 ;;
    --input) input="$2"; shift 2 ;;
    --output) output="$2"; shift 2 ;;
    --detect) detect="$2"; shift 2 ;;
    *) shift ;;
  esac
done
if [ -n "$detect" ]; then
  case "$detect" in
    *blank*) exit 3 ;;
  esac
  exit 0
fi
case "$input" in
  *notarget*) exit 3 ;;
  *broken*) echo "decoder exploded" >&2; exit 7 ;;
  *silent*) exit 0 ;;
esac
printf 'T:' > "$output"
cat "$input" >> "$output"
`

func newCommand(t *testing.T, body string) *transform.Command {
	t.Helper()
	cfg := config.Default().Transformer
	cfg.Kind = config.TransformerCommand
	cfg.Command = testsupport.WriteScript(t, t.TempDir(), "swap", body)
	cmd, err := transform.NewCommand(cfg, nil)
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	return cmd
}

func TestCommandTransformOutcomes(t *testing.T) {
	cmd := newCommand(t, copyScript)
	dir := t.TempDir()
	subject := transform.Subject{Path: filepath.Join(dir, "face.jpg")}
	ctx := context.Background()

	input := filepath.Join(dir, "frame0.jpg")
	if err := os.WriteFile(input, []byte("pixels"), 0o644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, ".frame0.jpg.tmp")
	outcome, err := cmd.Transform(ctx, input, output, subject)
	if err != nil || outcome != transform.Transformed {
		t.Fatalf("Transform = %v, %v", outcome, err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "T:pixels" {
		t.Fatalf("unexpected output %q", data)
	}

	outcome, err = cmd.Transform(ctx, filepath.Join(dir, "notarget.jpg"), output, subject)
	if err != nil || outcome != transform.NoTarget {
		t.Fatalf("no-target Transform = %v, %v", outcome, err)
	}

	_, err = cmd.Transform(ctx, filepath.Join(dir, "broken.jpg"), output, subject)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}

	_, err = cmd.Transform(ctx, filepath.Join(dir, "silent.jpg"), filepath.Join(dir, "never-written.jpg"), subject)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected missing output to be an error, got %v", err)
	}
}

func TestCommandCheckSubject(t *testing.T) {
	cmd := newCommand(t, copyScript)
	dir := t.TempDir()
	face := filepath.Join(dir, "face.jpg")
	blank := filepath.Join(dir, "blank.jpg")
	for _, p := range []string{face, blank} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ctx := context.Background()

	subject, err := cmd.CheckSubject(ctx, face)
	if err != nil || subject.Path != face {
		t.Fatalf("CheckSubject = %#v, %v", subject, err)
	}
	if _, err := cmd.CheckSubject(ctx, blank); !errors.Is(err, services.ErrNoSubject) {
		t.Fatalf("expected ErrNoSubject, got %v", err)
	}
	if _, err := cmd.CheckSubject(ctx, filepath.Join(dir, "missing.jpg")); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommandTimeout(t *testing.T) {
	cmd := newCommand(t, "exec sleep 5\n")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := cmd.Transform(ctx, "/in.jpg", "/out.jpg", transform.Subject{})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestNewCommandValidatesTemplates(t *testing.T) {
	cfg := config.Default().Transformer
	cfg.Command = "/bin/true"
	cfg.Args = []string{"--input", "{input}"}
	if _, err := transform.NewCommand(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	cfg.Command = ""
	if _, err := transform.NewCommand(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for empty command, got %v", err)
	}
}

func TestFromConfigSelectsKind(t *testing.T) {
	cfg := config.Default().Transformer
	cfg.Kind = config.TransformerPassthrough
	factory, checker, err := transform.FromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	tr, err := factory(context.Background())
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	defer tr.Close()
	outcome, err := tr.Transform(context.Background(), "/a.jpg", "/b.jpg", transform.Subject{})
	if err != nil || outcome != transform.NoTarget {
		t.Fatalf("passthrough = %v, %v", outcome, err)
	}

	subject := filepath.Join(t.TempDir(), "face.jpg")
	if err := os.WriteFile(subject, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := checker.CheckSubject(context.Background(), subject); err != nil {
		t.Fatalf("CheckSubject: %v", err)
	}

	cfg.Kind = "neural"
	if _, _, err := transform.FromConfig(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
