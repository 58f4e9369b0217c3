package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"herald/internal/config"
	"herald/internal/schedule"
)

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending job and release its media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withPlanner(func(cfg *config.Config, store *schedule.Store, planner *schedule.Planner) error {
				if err := planner.Cancel(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %d\n", id)
				return nil
			})
		},
	}
}

func newRescheduleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule <job-id> <time>",
		Short: "Move a pending job to a new time",
		Long:  `Move a pending job to an explicit time, given as "2006-01-02 15:04" in the configured schedule timezone.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *schedule.Store) error {
				at, err := parseWhen(cfg, args[1])
				if err != nil {
					return err
				}
				if err := store.Reschedule(cmd.Context(), id, at); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rescheduled job %d for %s\n", id, formatLocal(cfg, at))
				return nil
			})
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var retryAll bool

	cmd := &cobra.Command{
		Use:   "retry [job-id]",
		Short: "Move failed jobs back to pending",
		Long: `Retry a failed job a couple of minutes from now, or with --all retry
every failed job with their new times staggered so they do not fire at once.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if retryAll == (len(args) == 1) {
				return fmt.Errorf("provide either a job id or --all")
			}
			return ctx.withStore(func(cfg *config.Config, store *schedule.Store) error {
				if retryAll {
					count, err := store.RetryAll(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Queued %d failed job(s) for retry\n", count)
					return nil
				}

				id, err := parseJobID(args[0])
				if err != nil {
					return err
				}
				job, err := store.Retry(cmd.Context(), id, time.Time{})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying job %d at %s\n", id, formatLocal(cfg, job.ScheduledAt))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&retryAll, "all", false, "Retry every failed job")
	return cmd
}
