package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the proximity tracker in the foreground",
	Long:  "Polls every subject on the configured interval and logs warnings until interrupted. With the scripted feed the run ends once every path has been replayed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyTrackerFlags(cmd)
		if err := cfg.Validate("watch"); err != nil {
			return err
		}

		env, err := initTracker(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("watching subjects",
			zap.Int("subjects", len(cfg.Subjects)),
			zap.String("feed", cfg.Feed.Mode),
			zap.Duration("interval", cfg.Tracker.Interval),
		)
		env.Harness.Run(ctx)

		for _, s := range env.Harness.Snapshot() {
			zap.L().Info("final status",
				zap.String("subject", s.Name),
				zap.String("status", s.Status),
				zap.Bool("alert", s.Alert != nil),
			)
		}
		return nil
	},
}

// applyTrackerFlags lets command-line flags override tracker settings.
func applyTrackerFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("interval") {
		cfg.Tracker.Interval, _ = cmd.Flags().GetDuration("interval")
	}
	if cmd.Flags().Changed("lang") {
		cfg.Tracker.Language, _ = cmd.Flags().GetString("lang")
	}
	if cmd.Flags().Changed("feed") {
		cfg.Feed.Mode, _ = cmd.Flags().GetString("feed")
	}
}

func addTrackerFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("interval", 0, "polling interval (default from config)")
	cmd.Flags().String("lang", "", "message language: en or sr (default from config)")
	cmd.Flags().String("feed", "", "position feed: scripted or http (default from config)")
}

func init() {
	addTrackerFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}
