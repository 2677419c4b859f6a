package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reframe/internal/job"
	"reframe/internal/logging"
	"reframe/internal/pipeline"
	"reframe/internal/registry"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var runLimit int

	cmd := &cobra.Command{
		Use:   "show (KEY | SUBJECT TARGET)",
		Short: "Show a job's directory state and run history",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			id, err := ctx.resolveJob(args)
			if err != nil {
				return err
			}
			runner, err := pipeline.FromConfig(cfg, nil, nil, nil, logging.NewNop())
			if err != nil {
				return err
			}
			st, err := runner.StatusOf(id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := renderSectionHeader("Job "+id.Key, colorize)
			lines = append(lines, renderInfoLine("Work directory", id.WorkDir))
			if st.State == job.Fresh {
				lines = append(lines, renderStatusLine("On disk", statusInfo, "nothing yet", colorize))
			} else {
				kind := statusWarn
				if st.Outstanding == 0 {
					kind = statusOK
				}
				lines = append(lines, renderStatusLine("Frames", kind, formatProgress(st.Done, st.Frames), colorize))
				lines = append(lines, renderInfoLine("Outstanding", humanize.Comma(int64(st.Outstanding))))
			}
			lines = append(lines, renderInfoLine("Running", yesNo(st.Locked)))

			err = ctx.withRegistry(func(store *registry.Store) error {
				rec, err := store.GetJob(cmd.Context(), id.Key)
				if err != nil {
					return err
				}
				if rec == nil {
					lines = append(lines, renderInfoLine("Registry", "no record"))
					return nil
				}
				lines = append(lines, renderStatusLine("Last state", stateKind(rec.State), string(rec.State), colorize))
				if rec.ErrorMessage != "" {
					lines = append(lines, renderInfoLine("Last error", rec.ErrorMessage))
				}
				lines = append(lines,
					renderInfoLine("Subject", rec.SubjectPath),
					renderInfoLine("Target", rec.TargetPath),
					renderInfoLine("Output", rec.OutputPath),
					renderInfoLine("Updated", humanize.Time(rec.UpdatedAt)),
				)

				runs, err := store.Runs(cmd.Context(), id.Key, runLimit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					finished := "running"
					if r.FinishedAt != nil {
						finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
					}
					rows = append(rows, []string{
						shortID(r.ID),
						r.StartedAt.Local().Format("2006-01-02 15:04"),
						r.Decision,
						fmt.Sprint(r.Workers),
						humanize.Comma(int64(r.Processed)),
						fmt.Sprint(r.FailedChunks),
						string(r.Outcome),
						finished,
					})
				}
				lines = append(lines, "", renderTable(
					[]string{"Run", "Started", "Decision", "Workers", "Processed", "Failed", "Outcome", "Took"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight},
				))
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().IntVar(&runLimit, "runs", 5, "Number of recent runs to list")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
