package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reframe/internal/registry"
	"reframe/internal/staging"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale job directories",
		Long: `Clean removes job directories whose frames and ledger have not changed for
longer than pipeline.stale_job_days (or --older-than). Jobs that are running
are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			maxAge := cfg.StaleJobAge()
			if cmd.Flags().Changed("older-than") {
				maxAge = olderThan
			}
			out := cmd.OutOrStdout()

			if dryRun {
				dirs, err := staging.ListJobs(cfg.Paths.WorkDir)
				if err != nil {
					return err
				}
				cutoff := time.Now().Add(-maxAge)
				count := 0
				for _, d := range dirs {
					if d.Locked || !d.ModTime.Before(cutoff) {
						continue
					}
					count++
					fmt.Fprintf(out, "Would remove %s (%s, last active %s)\n", d.Key, humanize.IBytes(uint64(d.Size)), humanize.Time(d.ModTime))
				}
				if count == 0 {
					fmt.Fprintln(out, "Nothing to clean")
				}
				return nil
			}

			result := staging.CleanStale(cmd.Context(), cfg.Paths.WorkDir, maxAge, logger)
			keys := make([]string, 0, len(result.Removed))
			for _, path := range result.Removed {
				keys = append(keys, filepath.Base(path))
				fmt.Fprintf(out, "Removed %s\n", filepath.Base(path))
			}
			for _, path := range result.Skipped {
				fmt.Fprintf(out, "Skipped %s (running)\n", filepath.Base(path))
			}
			if len(keys) > 0 {
				if err := ctx.withRegistry(func(store *registry.Store) error {
					return forgetJobs(cmd.Context(), store, keys)
				}); err != nil {
					return err
				}
			}
			if len(result.Removed) == 0 && len(result.Skipped) == 0 && len(result.Errors) == 0 {
				fmt.Fprintln(out, "Nothing to clean")
			}
			if len(result.Errors) > 0 {
				first := result.Errors[0]
				return fmt.Errorf("%d job directories could not be removed; first: %s: %w", len(result.Errors), first.Path, first.Error)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Override pipeline.stale_job_days, e.g. 72h")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed without deleting")
	return cmd
}
