package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// defaultSpec fires hourly so every timezone's midnight is followed by a sweep within the hour.
const defaultSpec = "5 * * * *"

func newScheduleCommand(opts *rootOptions) *cobra.Command {
	var (
		spec     string
		attempts uint
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the expiry sweep on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			t := &trigger{client: newHTTPClient(opts), baseURL: opts.URL, secret: opts.Secret, attempts: attempts, log: opts.log}
			c, err := newScheduler(spec, t, opts.log)
			if err != nil {
				return err
			}

			c.Start()
			opts.log.Info("sweep scheduler started", zap.String("spec", spec), zap.String("url", opts.URL))
			<-ctx.Done()

			// Let a running sweep finish before exiting
			<-c.Stop().Done()
			opts.log.Info("sweep scheduler stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&spec, "spec", defaultSpec, "standard 5-field cron spec or @descriptor")
	cmd.Flags().UintVar(&attempts, "attempts", 3, "attempts per run before giving up on network or 5xx errors")
	return cmd
}

// newScheduler registers one sweep job on spec. Overlapping runs are skipped.
func newScheduler(spec string, t *trigger, log *zap.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger), cron.Recover(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := t.run(context.Background()); err != nil {
			log.Error("scheduled sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return c, nil
}
