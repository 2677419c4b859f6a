package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"reframe/internal/framestore"
	"reframe/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch (KEY | SUBJECT TARGET)",
		Short: "Follow the progress of a job running elsewhere",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			id, err := ctx.resolveJob(args)
			if err != nil {
				return err
			}
			if _, err := os.Stat(id.WorkDir); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no job directory for %s", id.Key)
				}
				return err
			}

			follower, err := watch.New(id.WorkDir, framestore.New(nil, cfg.Media.FrameExtension), logger)
			if err != nil {
				return err
			}
			defer follower.Close()

			out := cmd.OutOrStdout()
			if once {
				snap, err := follower.Snapshot()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s\n", id.Key, formatProgress(snap.Done, snap.Total))
				return nil
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var bar *progressbar.ProgressBar
			useBar := shouldColorize(out)
			err = follower.Run(signalCtx, func(s watch.Snapshot) bool {
				if useBar {
					if bar == nil {
						bar = progressbar.NewOptions(s.Total,
							progressbar.OptionSetWriter(out),
							progressbar.OptionSetDescription(id.Key),
							progressbar.OptionShowCount(),
							progressbar.OptionSetPredictTime(true),
						)
					}
					_ = bar.Set(s.Done)
				} else {
					fmt.Fprintf(out, "%s %s\n", s.At.Format("15:04:05"), formatProgress(s.Done, s.Total))
				}
				return !s.Complete()
			})
			if bar != nil {
				_ = bar.Finish()
				fmt.Fprintln(out)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Print the current progress and exit")
	return cmd
}
