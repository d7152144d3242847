package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	appLog "weeklybrief/internal/log"
	"weeklybrief/internal/pipeline"
	"weeklybrief/internal/schedule"
)

func newScheduleCmd(root *rootOptions) *cobra.Command {
	var (
		spec     string
		runNow   bool
		skipFeed bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Keep running and produce the brief on a cron schedule",
		Long: `schedule stays in the foreground and runs the pipeline whenever the cron
expression fires (default: Sundays at 08:00 in the configured timezone).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			if spec != "" {
				cfg.Schedule = spec
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			// Authorize up front so a consent prompt never blocks a tick.
			deps, err := buildDeps(ctx, cfg, cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			job := func(ctx context.Context) error {
				res, err := pipeline.Run(ctx, cfg, deps, pipeline.Options{SkipFeed: skipFeed})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Message())
				return nil
			}

			s, err := schedule.New(cfg.Schedule, loc, job)
			if err != nil {
				return err
			}
			if runNow {
				if err := job(ctx); err != nil {
					appLog.Error("initial run failed", err)
				}
			}
			return s.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "Cron expression (overrides config schedule)")
	cmd.Flags().BoolVar(&runNow, "now", false, "Also run once immediately")
	cmd.Flags().BoolVar(&skipFeed, "skip-feed", false, "Leave feed.xml untouched")
	return cmd
}
