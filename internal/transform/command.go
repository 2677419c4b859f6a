package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"reframe/internal/config"
	"reframe/internal/logging"
	"reframe/internal/services"
)

// Template placeholders substituted into command arguments.
const (
	PlaceholderSubject = "{subject}"
	PlaceholderInput   = "{input}"
	PlaceholderOutput  = "{output}"
)

const (
	maxToolOutput = 2048
	waitDelay     = 2 * time.Second
)

// Command drives an external executable per frame. Exit 0 means the output
// was written; NoTargetExitCode means the frame holds no target.
type Command struct {
	Binary           string
	Args             []string
	DetectArgs       []string
	NoTargetExitCode int
	logger           *slog.Logger
}

// NewCommand validates cfg and returns a command-backed transformer.
func NewCommand(cfg config.Transformer, logger *slog.Logger) (*Command, error) {
	binary := strings.TrimSpace(cfg.Command)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transform", "init", "transformer.command is required", nil)
	}
	if !containsPlaceholder(cfg.Args, PlaceholderInput) || !containsPlaceholder(cfg.Args, PlaceholderOutput) {
		return nil, services.Wrap(services.ErrConfiguration, "transform", "init",
			"transformer.args must reference {input} and {output}", nil)
	}
	code := cfg.NoTargetExitCode
	if code == 0 {
		code = config.DefaultNoTargetExitCode
	}
	return &Command{
		Binary:           binary,
		Args:             append([]string(nil), cfg.Args...),
		DetectArgs:       append([]string(nil), cfg.DetectArgs...),
		NoTargetExitCode: code,
		logger:           logging.NewComponentLogger(logger, "transformer"),
	}, nil
}

// Factory hands out the command itself; it holds no per-worker state.
func (c *Command) Factory() Factory {
	return func(context.Context) (Transformer, error) {
		return c, nil
	}
}

// Transform runs the command for one frame.
func (c *Command) Transform(ctx context.Context, inputPath, outputPath string, subject Subject) (Outcome, error) {
	args := expandArgs(c.Args, subject.Path, inputPath, outputPath)
	code, output, err := c.run(ctx, args)
	if err != nil {
		return Transformed, err
	}
	switch code {
	case 0:
		if _, statErr := os.Stat(outputPath); statErr != nil {
			return Transformed, services.Wrap(services.ErrExternalTool, "transform", "frame",
				fmt.Sprintf("%s exited 0 without writing %s", c.Binary, outputPath), statErr)
		}
		return Transformed, nil
	case c.NoTargetExitCode:
		return NoTarget, nil
	default:
		return Transformed, services.Wrap(services.ErrExternalTool, "transform", "frame",
			fmt.Sprintf("%s exited %d: %s", c.Binary, code, output), nil)
	}
}

// CheckSubject verifies the subject file exists and, when detect args are
// configured, that the command finds a subject in it.
func (c *Command) CheckSubject(ctx context.Context, path string) (Subject, error) {
	subject, err := requireSubjectFile(ctx, path)
	if err != nil {
		return Subject{}, err
	}
	if len(c.DetectArgs) == 0 {
		return subject, nil
	}
	code, output, err := c.run(ctx, expandArgs(c.DetectArgs, subject.Path, "", ""))
	if err != nil {
		return Subject{}, err
	}
	switch code {
	case 0:
		return subject, nil
	case c.NoTargetExitCode:
		return Subject{}, services.Wrap(services.ErrNoSubject, "transform", "check subject", subject.Path, nil)
	default:
		return Subject{}, services.Wrap(services.ErrExternalTool, "transform", "check subject",
			fmt.Sprintf("%s exited %d: %s", c.Binary, code, output), nil)
	}
}

// Close is a no-op; each call spawns its own process.
func (c *Command) Close() error { return nil }

func (c *Command) run(ctx context.Context, args []string) (int, string, error) {
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.WaitDelay = waitDelay
	output, err := cmd.CombinedOutput()
	trimmed := trimOutput(output)
	if err == nil {
		return 0, trimmed, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return -1, trimmed, services.Wrap(services.ErrTimeout, "transform", "run", c.Binary, ctxErr)
		}
		return -1, trimmed, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		if c.logger != nil {
			c.logger.Debug("transformer exited non-zero",
				logging.Int("exit_code", exitErr.ExitCode()),
				logging.String("output", trimmed),
			)
		}
		return exitErr.ExitCode(), trimmed, nil
	}
	return -1, trimmed, services.Wrap(services.ErrExternalTool, "transform", "run", c.Binary, err)
}

func expandArgs(templates []string, subject, input, output string) []string {
	replacer := strings.NewReplacer(
		PlaceholderSubject, subject,
		PlaceholderInput, input,
		PlaceholderOutput, output,
	)
	args := make([]string, len(templates))
	for i, tmpl := range templates {
		args[i] = replacer.Replace(tmpl)
	}
	return args
}

func containsPlaceholder(args []string, placeholder string) bool {
	for _, arg := range args {
		if strings.Contains(arg, placeholder) {
			return true
		}
	}
	return false
}

func trimOutput(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) > maxToolOutput {
		text = text[len(text)-maxToolOutput:]
	}
	return text
}
