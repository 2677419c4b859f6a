package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reframe/internal/deps"
	"reframe/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check binaries, directories and configured endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			failures := 0

			lines := renderSectionHeader("Dependencies", colorize)
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			for _, s := range statuses {
				lines = append(lines, renderStatusLine(s.Name, passKind(s.Available, s.Optional), dependencyDetail(s), colorize))
			}
			failures += len(deps.MissingRequired(statuses))

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Directories", colorize)...)
			for _, r := range preflight.RunAll(cmd.Context(), cfg) {
				if r.Name == "Tracing" {
					continue
				}
				lines = append(lines, renderStatusLine(r.Name, passKind(r.Passed, false), r.Detail, colorize))
				if !r.Passed {
					failures++
				}
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Services", colorize)...)
			for _, r := range []preflight.Result{
				preflight.CheckTracingFromConfig(cmd.Context(), cfg),
				preflight.CheckPublishFromConfig(cmd.Context(), cfg),
				preflight.CheckMetricsFromConfig(cfg),
			} {
				kind := passKind(r.Passed, true)
				if r.Passed && r.Detail == "Disabled" {
					kind = statusInfo
				}
				lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			lines = append(lines, renderInfoLine("Transformer", transformerDetail(cfg.Transformer.Kind, cfg.Transformer.Command)))
			lines = append(lines, renderInfoLine("Workers", fmt.Sprint(cfg.WorkerCount())))

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			if failures > 0 {
				return fmt.Errorf("%d required checks failed", failures)
			}
			return nil
		},
	}
}

func dependencyDetail(s deps.Status) string {
	switch {
	case !s.Available:
		return s.Detail
	case s.Detail != "":
		return s.Detail
	default:
		return s.Path
	}
}

func transformerDetail(kind, command string) string {
	if strings.TrimSpace(command) == "" {
		return kind
	}
	return fmt.Sprintf("%s (%s)", kind, command)
}
