package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"herald/internal/config"
	"herald/internal/dispatch"
	"herald/internal/logging"
	"herald/internal/schedule"
	"herald/internal/storage"
)

// retentionSchedule runs the cleanup sweep once a day, during the quiet
// hours between the last evening slot and the first morning one.
const retentionSchedule = "0 4 * * *"

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *schedule.Store
	bucket     *storage.Bucket
	dispatcher *dispatch.Dispatcher

	lockPath string
	lock     *flock.Flock
	cron     *cron.Cron

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *schedule.Store, bucket *storage.Bucket, dispatcher *dispatch.Dispatcher, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || bucket == nil || dispatcher == nil {
		return nil, errors.New("daemon requires config, store, bucket, and dispatcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "heraldd.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		bucket:     bucket,
		dispatcher: dispatcher,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, fails over jobs interrupted by a
// previous shutdown, and launches the dispatcher and retention sweep.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another herald daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)

	reset, err := d.store.ResetStuckPublishing(runCtx)
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("reset interrupted jobs: %w", err)
	}
	if reset > 0 {
		d.logger.Warn("failed jobs interrupted by previous shutdown", logging.Int64("count", reset))
	}

	if err := d.dispatcher.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start dispatcher: %w", err)
	}

	d.cron = cron.New()
	if _, err := d.cron.AddFunc(retentionSchedule, func() { d.runRetention(runCtx) }); err != nil {
		d.dispatcher.Stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("schedule retention sweep: %w", err)
	}
	d.cron.Start()

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cron != nil {
		<-d.cron.Stop().Done()
		d.cron = nil
	}
	d.dispatcher.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Running reports whether the daemon's background services are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// runRetention clears posted jobs and stale bucket media past their
// configured retention windows.
func (d *Daemon) runRetention(ctx context.Context) {
	now := time.Now()

	if days := d.cfg.Workflow.PostedRetentionDays; days > 0 {
		cutoff := now.AddDate(0, 0, -days)
		removed, err := d.store.ClearPosted(ctx, cutoff)
		if err != nil {
			d.logger.Error("clear posted jobs", logging.Error(err))
		} else if removed > 0 {
			d.logger.Info("posted jobs cleared", logging.Int64("count", removed))
		}
	}

	if days := d.cfg.Storage.RetentionDays; days > 0 {
		cutoff := now.AddDate(0, 0, -days)
		removed, err := d.bucket.RemoveStale(ctx, cutoff)
		if err != nil {
			d.logger.Error("remove stale media", logging.Error(err))
		} else if removed > 0 {
			d.logger.Info("stale media cleared", logging.Int("count", removed))
		}
	}
}
