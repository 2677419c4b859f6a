package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reframe/internal/pipeline"
	"reframe/internal/transform"
)

func newImageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "image SUBJECT TARGET OUTPUT",
		Short: "Transform a single still image",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			runner, err := pipeline.FromConfig(cfg, nil, nil, nil, logger)
			if err != nil {
				return err
			}
			rep, err := runner.RunImage(signalCtx, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rep.Outcome == transform.NoTarget {
				fmt.Fprintf(out, "Nothing to transform in %s; copied to %s\n", args[1], rep.Output)
				return nil
			}
			fmt.Fprintf(out, "Wrote %s\n", rep.Output)
			return nil
		},
	}
}
