package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

// Version runs `binary -version` and returns the first line of its output,
// which for ffmpeg and ffprobe names the build.
func Version(ctx context.Context, binary string) (string, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return "", fmt.Errorf("version: no binary configured")
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "-version").Output() //nolint:gosec
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", binary, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("%s -version: empty output", binary)
}

// Annotate fills Detail on available statuses with the binary's version line.
// Statuses whose binary fails to report a version are left untouched.
func Annotate(ctx context.Context, statuses []Status) {
	for i := range statuses {
		s := &statuses[i]
		if !s.Available || s.Name == "Transformer" || s.Detail != "" {
			continue
		}
		if version, err := Version(ctx, s.Path); err == nil {
			s.Detail = version
		}
	}
}
