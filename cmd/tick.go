package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"adspace-cli/scheduler"

	"github.com/spf13/cobra"
)

func tickCmd() *cobra.Command {
	var watch bool
	var interval time.Duration
	var at string

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Activate and complete bookings whose dates have arrived",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			sweeper := scheduler.NewSweeper(a.service, logger)

			if watch {
				if interval <= 0 {
					if interval, err = cfg.Interval(); err != nil {
						return err
					}
				}
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
				defer stop()
				logger.WithField("interval", interval.String()).Info("watching bookings")
				if err := sweeper.Run(ctx, interval, func() time.Time { return localNow(a.location) }); err != nil && ctx.Err() == nil {
					return err
				}
				return nil
			}

			now, err := nowOrDate(at)
			if err != nil {
				return err
			}
			result, err := sweeper.Sweep(context.Background(), now)
			if err != nil {
				return err
			}

			if outputJSON {
				return writeJSON(result)
			}
			fmt.Printf("Activated %d, completed %d, failed %d.\n", len(result.Activated), len(result.Completed), len(result.Failed))
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep sweeping until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Sweep interval with --watch (default from config)")
	cmd.Flags().StringVar(&at, "at", "", "Sweep as of this date (default now)")
	return cmd
}
