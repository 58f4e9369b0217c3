package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"herald/internal/config"
	"herald/internal/logging"
	"herald/internal/schedule"
	"herald/internal/storage"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the job store for the duration of one command.
func (c *commandContext) withStore(fn func(*config.Config, *schedule.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := schedule.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// withPlanner additionally wires the media bucket and slot planner.
func (c *commandContext) withPlanner(fn func(*config.Config, *schedule.Store, *schedule.Planner) error) error {
	return c.withStore(func(cfg *config.Config, store *schedule.Store) error {
		bucket, err := storage.NewBucket(cfg, logging.NewNop())
		if err != nil {
			return err
		}
		planner, err := schedule.NewPlanner(cfg, store, bucket, logging.NewNop())
		if err != nil {
			return err
		}
		return fn(cfg, store, planner)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
