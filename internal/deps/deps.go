package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"reframe/internal/config"
)

// Requirement defines an external binary reframe relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries cfg needs. The transformer command is only
// required when the command transformer is selected.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: cfg.Media.FFmpegBinary, Description: "Frame extraction, encoding and audio remux"},
		{Name: "FFprobe", Command: cfg.Media.FFprobeBinary, Description: "Frame rate and audio detection", Optional: true},
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Transformer.Kind), config.TransformerCommand) {
		reqs = append(reqs, Requirement{
			Name:        "Transformer",
			Command:     cfg.Transformer.Command,
			Description: "Per-frame transformation",
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Path = path
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the required dependencies that are unavailable.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
