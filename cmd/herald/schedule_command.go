package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"herald/internal/config"
	"herald/internal/schedule"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	var (
		caption   string
		mediaPath string
		mediaURL  string
		replyTo   string
		at        string
	)

	cmd := &cobra.Command{
		Use:   "schedule <platform> <account>",
		Short: "Schedule a post for the next free slot",
		Long: `Schedule a post on one of the configured accounts. Without --at the job
is assigned the earliest configured slot after both the current time and the
last pending job for the same platform and account.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, ok := schedule.ParsePlatform(args[0])
			if !ok {
				return fmt.Errorf("unknown platform %q (expected one of: %s)", args[0], platformNames())
			}

			return ctx.withPlanner(func(cfg *config.Config, store *schedule.Store, planner *schedule.Planner) error {
				req := schedule.CreateRequest{
					Platform:  platform,
					Account:   args[1],
					Caption:   caption,
					ReplyToID: replyTo,
					MediaPath: strings.TrimSpace(mediaPath),
					MediaURL:  strings.TrimSpace(mediaURL),
				}
				if strings.TrimSpace(at) != "" {
					parsed, err := parseWhen(cfg, at)
					if err != nil {
						return err
					}
					req.At = parsed
				}

				job, err := planner.Create(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scheduled job %d on %s (%s) for %s\n",
					job.ID, job.Platform, job.Account, formatLocal(cfg, job.ScheduledAt))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&caption, "caption", "m", "", "Post caption text (required)")
	cmd.Flags().StringVar(&mediaPath, "media", "", "Local media file to stage and attach")
	cmd.Flags().StringVar(&mediaURL, "media-url", "", "Already-hosted media URL to attach")
	cmd.Flags().StringVar(&replyTo, "reply-to", "", "Remote post id this post replies to")
	cmd.Flags().StringVar(&at, "at", "", "Explicit time (2006-01-02 15:04, schedule timezone) instead of slot assignment")
	cmd.MarkFlagRequired("caption")

	return cmd
}

func platformNames() string {
	names := make([]string, 0, len(schedule.AllPlatforms()))
	for _, p := range schedule.AllPlatforms() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// parseWhen interprets a CLI timestamp in the configured schedule timezone.
func parseWhen(cfg *config.Config, value string) (time.Time, error) {
	location, err := cfg.Schedule.Location()
	if err != nil {
		return time.Time{}, err
	}
	value = strings.TrimSpace(value)
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", time.RFC3339} {
		if parsed, err := time.ParseInLocation(layout, value, location); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (expected 2006-01-02 15:04)", value)
}

func formatLocal(cfg *config.Config, value time.Time) string {
	location, err := cfg.Schedule.Location()
	if err != nil {
		return value.Format("2006-01-02 15:04 MST")
	}
	return value.In(location).Format("2006-01-02 15:04 MST")
}
