package main

import (
	"fmt"
	"log/slog"

	"herald/internal/config"
	"herald/internal/dispatch"
	"herald/internal/logging"
	"herald/internal/notifications"
	"herald/internal/publish"
	"herald/internal/publish/igreel"
	"herald/internal/publish/xpost"
	"herald/internal/schedule"
	"herald/internal/storage"
)

// newRegistry builds adapters for every platform whose config section is
// usable. Platforms with incomplete credentials are skipped with a warning
// so the rest of the queue still publishes.
func newRegistry(cfg *config.Config, logger *slog.Logger) (publish.Registry, []string) {
	registry := publish.Registry{}
	var warnings []string

	if len(cfg.XAPI.Accounts) > 0 {
		client, err := xpost.NewClient(cfg, logger)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("x adapter disabled: %v", err))
		} else {
			registry[schedule.PlatformTextPost] = client
			registry[schedule.PlatformVideoPost] = client
		}
	}
	if len(cfg.Instagram.Accounts) > 0 {
		client, err := igreel.NewClient(cfg, logger)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("instagram adapter disabled: %v", err))
		} else {
			registry[schedule.PlatformReel] = client
		}
	}
	return registry, warnings
}

func newDispatcher(cfg *config.Config, store *schedule.Store, logger *slog.Logger) (*dispatch.Dispatcher, *storage.Bucket, []string, error) {
	bucket, err := storage.NewBucket(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	registry, warnings := newRegistry(cfg, logger)
	notifier := notifications.NewService(cfg)
	return dispatch.New(cfg, store, bucket, registry, notifier, logger), bucket, warnings, nil
}

func newCommandLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}
