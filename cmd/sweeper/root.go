package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cppla/podstreak/config"
	"github.com/cppla/podstreak/utils"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	URL      string
	Secret   string
	Timeout  time.Duration
	LogLevel string

	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sweeper",
		Short: "Trigger the streak expiry sweep",
		Long: `Calls POST /api/v1/cron/expire-streaks on a podstreak API server with the shared
cron secret. Run "trigger" from an external scheduler, or "schedule" to keep a
long-lived process that fires on a cron spec.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Secret == "" {
				return fmt.Errorf("cron secret is required (--secret or CRON_SECRET)")
			}
			if err := utils.InitLogger(config.AppConfig{LogLevel: opts.LogLevel}); err != nil {
				return err
			}
			opts.log = utils.Logger.Named("sweeper")
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.URL, "url", envOr("SWEEPER_URL", "http://127.0.0.1:8080"), "base URL of the API server")
	cmd.PersistentFlags().StringVar(&opts.Secret, "secret", os.Getenv("CRON_SECRET"), "shared cron secret")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 5*time.Minute, "timeout for one sweep request")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level (debug|info|warn|error)")

	cmd.AddCommand(newTriggerCommand(opts))
	cmd.AddCommand(newScheduleCommand(opts))

	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
