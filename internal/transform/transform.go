package transform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"reframe/internal/config"
	"reframe/internal/services"
)

// Outcome reports what a Transform call did with a frame.
type Outcome int

const (
	// Transformed means the output holds a rewritten frame.
	Transformed Outcome = iota
	// NoTarget means nothing in the frame needed rewriting; the output is unused.
	NoTarget
)

func (o Outcome) String() string {
	if o == NoTarget {
		return "no_target"
	}
	return "transformed"
}

// Subject is the validated reference input applied to every frame.
type Subject struct {
	Path string
}

// Transformer rewrites single frames. One instance is used by one goroutine.
type Transformer interface {
	Transform(ctx context.Context, inputPath, outputPath string, subject Subject) (Outcome, error)
	Close() error
}

// Factory creates a Transformer for a worker.
type Factory func(ctx context.Context) (Transformer, error)

// SubjectChecker verifies that a subject reference contains something usable.
type SubjectChecker interface {
	CheckSubject(ctx context.Context, path string) (Subject, error)
}

// SubjectCheckerFunc adapts a function to SubjectChecker.
type SubjectCheckerFunc func(ctx context.Context, path string) (Subject, error)

// CheckSubject calls f.
func (f SubjectCheckerFunc) CheckSubject(ctx context.Context, path string) (Subject, error) {
	return f(ctx, path)
}

// FromConfig builds the factory and subject checker for the configured kind.
func FromConfig(cfg config.Transformer, logger *slog.Logger) (Factory, SubjectChecker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case config.TransformerCommand:
		cmd, err := NewCommand(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return cmd.Factory(), cmd, nil
	case config.TransformerPassthrough, "":
		return PassthroughFactory(), SubjectCheckerFunc(requireSubjectFile), nil
	default:
		return nil, nil, services.Wrap(services.ErrConfiguration, "transform", "select kind",
			fmt.Sprintf("unknown transformer kind %q", cfg.Kind), nil)
	}
}

func requireSubjectFile(_ context.Context, path string) (Subject, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Subject{}, services.Wrap(services.ErrValidation, "transform", "check subject", "subject path is required", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Subject{}, services.Wrap(services.ErrNotFound, "transform", "check subject", path, err)
	}
	if info.IsDir() {
		return Subject{}, services.Wrap(services.ErrValidation, "transform", "check subject",
			fmt.Sprintf("%s is a directory", path), nil)
	}
	return Subject{Path: path}, nil
}
