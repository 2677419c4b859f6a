package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reframe/internal/registry"
	"reframe/internal/staging"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var states []string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List known jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStates(states)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := staging.ListJobs(cfg.Paths.WorkDir)
			if err != nil {
				return fmt.Errorf("list work directory: %w", err)
			}
			onDisk := make(map[string]staging.DirInfo, len(dirs))
			for _, d := range dirs {
				onDisk[d.Key] = d
			}

			return ctx.withRegistry(func(store *registry.Store) error {
				jobs, err := store.ListJobs(cmd.Context(), filter...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, j := range jobs {
					size := "-"
					if d, ok := onDisk[j.Key]; ok {
						size = humanize.IBytes(uint64(d.Size))
						if d.Locked {
							size += " (running)"
						}
					}
					rows = append(rows, []string{
						j.Key,
						string(j.State),
						formatProgress(j.FramesDone, j.FramesTotal),
						size,
						humanize.Time(j.UpdatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Job", "State", "Frames", "Disk", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&states, "state", nil, "Only list jobs in these states")
	cmd.AddCommand(newJobsRemoveCommand(ctx))
	return cmd
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm KEY [KEY...]",
		Aliases: []string{"remove"},
		Short:   "Delete job directories and forget them",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withRegistry(func(store *registry.Store) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					id, err := ctx.resolveJob([]string{arg})
					if err != nil {
						return err
					}
					if err := staging.Remove(filepath.Join(cfg.Paths.WorkDir, id.Key)); err != nil {
						return fmt.Errorf("remove %s: %w", id.Key, err)
					}
					if _, err := store.RemoveJob(cmd.Context(), id.Key); err != nil {
						return err
					}
					fmt.Fprintf(out, "Removed %s\n", id.Key)
				}
				return nil
			})
		},
	}
}

func parseStates(values []string) ([]registry.State, error) {
	var states []registry.State
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			state, ok := registry.ParseState(part)
			if !ok {
				return nil, fmt.Errorf("unknown state %q", part)
			}
			states = append(states, state)
		}
	}
	return states, nil
}

// forgetJobs drops registry rows for the given keys, ignoring missing ones.
func forgetJobs(ctx context.Context, store *registry.Store, keys []string) error {
	for _, key := range keys {
		if _, err := store.RemoveJob(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
