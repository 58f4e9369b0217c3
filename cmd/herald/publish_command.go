package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"herald/internal/config"
	"herald/internal/notifications"
	"herald/internal/schedule"
)

func newPublishDueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish-due",
		Short: "Publish every currently due job and exit",
		Long: `Run a single publishing pass over all due jobs, exactly as one tick of
the daemon would. A running daemon and a manual pass never double-post; each
job is claimed by at most one of them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *schedule.Store) error {
				logger, err := newCommandLogger(cfg)
				if err != nil {
					return err
				}

				dispatcher, _, warnings, err := newDispatcher(cfg, store, logger)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, warning := range warnings {
					fmt.Fprintf(out, "warn: %s\n", warning)
				}

				result, err := dispatcher.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				if result.Published == 0 && result.Failed == 0 && result.Skipped == 0 {
					fmt.Fprintln(out, "No jobs due")
					return nil
				}
				fmt.Fprintf(out, "Published %d, failed %d", result.Published, result.Failed)
				if result.Skipped > 0 {
					fmt.Fprintf(out, ", skipped %d already claimed", result.Skipped)
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Notifications.NtfyTopic == "" {
				return fmt.Errorf("notifications.ntfy_topic is not configured")
			}
			svc := notifications.NewService(cfg)
			if err := svc.TestNotification(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
