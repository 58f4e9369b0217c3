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

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the publishing queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueClearPostedCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]schedule.Status, 0, len(listStatuses))
			for _, raw := range listStatuses {
				status, ok := schedule.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}

			return ctx.withStore(func(cfg *config.Config, store *schedule.Store) error {
				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						string(job.Platform),
						job.Account,
						string(job.Status),
						formatLocal(cfg, job.ScheduledAt),
						captionSummary(job),
					})
				}
				table := renderTable(queueListColumns, rows)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (pending, publishing, posted, failed)")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *schedule.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(stats))
				for _, status := range schedule.AllStatuses() {
					count, ok := stats[status]
					if !ok {
						continue
					}
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(queueStatusColumns, rows)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueClearPostedCommand(ctx *commandContext) *cobra.Command {
	var olderThanDays int

	cmd := &cobra.Command{
		Use:   "clear-posted",
		Short: "Delete posted jobs past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *schedule.Store) error {
				days := olderThanDays
				if days < 0 {
					return fmt.Errorf("--older-than must not be negative")
				}
				if days == 0 {
					days = cfg.Workflow.PostedRetentionDays
				}

				cutoff := time.Now().AddDate(0, 0, -days)
				removed, err := store.ClearPosted(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d posted job(s) older than %d day(s)\n", removed, days)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Age threshold in days (defaults to workflow.posted_retention_days)")
	return cmd
}

func captionSummary(job *schedule.Job) string {
	caption := strings.TrimSpace(job.Caption)
	runes := []rune(caption)
	if len(runes) > 40 {
		caption = string(runes[:40]) + "…"
	}
	if job.Status == schedule.StatusFailed && job.ErrorMessage != "" {
		message := job.ErrorMessage
		if mr := []rune(message); len(mr) > 60 {
			message = string(mr[:60]) + "…"
		}
		return caption + "\n! " + message
	}
	return caption
}
