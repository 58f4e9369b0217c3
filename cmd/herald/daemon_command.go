package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"herald/internal/config"
	"herald/internal/daemon"
	"herald/internal/logging"
	"herald/internal/schedule"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the publishing daemon in the foreground",
		Long: `Run the background publisher: due jobs are claimed and published every
check interval, jobs interrupted by a previous shutdown are failed over at
startup, and posted jobs and stale media are swept daily.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *schedule.Store) error {
				logger, err := logging.New(logging.Options{
					Level:       cfg.Logging.Level,
					Format:      cfg.Logging.Format,
					OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "herald.log")},
				})
				if err != nil {
					return fmt.Errorf("initialize logging: %w", err)
				}

				dispatcher, bucket, warnings, err := newDispatcher(cfg, store, logger)
				if err != nil {
					return err
				}
				for _, warning := range warnings {
					logger.Warn(warning)
				}

				d, err := daemon.New(cfg, store, bucket, dispatcher, logger)
				if err != nil {
					return err
				}

				signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				if err := d.Start(signalCtx); err != nil {
					return err
				}
				<-signalCtx.Done()
				d.Stop()
				return nil
			})
		},
	}
}
