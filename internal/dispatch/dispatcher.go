package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"herald/internal/config"
	"herald/internal/logging"
	"herald/internal/notifications"
	"herald/internal/publish"
	"herald/internal/schedule"
)

// MediaStore is the slice of the bucket the dispatcher needs: mapping a
// job's media URL to a local file when it is staged here, and releasing it
// once the job is done with it.
type MediaStore interface {
	Resolve(publicURL string) (string, bool)
	Remove(ctx context.Context, publicURL string) error
}

// PassResult summarizes one dispatcher pass.
type PassResult struct {
	Published int
	Failed    int
	Skipped   int
}

// Dispatcher publishes due jobs. Multiple dispatchers may point at the same
// store; the conditional claim keeps them from double-posting.
type Dispatcher struct {
	store      *schedule.Store
	bucket     MediaStore
	publishers publish.Registry
	notifier   notifications.Service
	logger     *slog.Logger
	httpClient publish.HTTPDoer
	stagingDir string

	checkInterval time.Duration
	retryInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a dispatcher.
func New(cfg *config.Config, store *schedule.Store, bucket MediaStore, publishers publish.Registry, notifier notifications.Service, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Dispatcher{
		store:         store,
		bucket:        bucket,
		publishers:    publishers,
		notifier:      notifier,
		logger:        logging.NewComponentLogger(logger, "dispatch"),
		httpClient:    defaultDownloadClient(),
		stagingDir:    cfg.Paths.StagingDir,
		checkInterval: time.Duration(cfg.Workflow.CheckInterval) * time.Second,
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
	}
}

// SetHTTPClient overrides the client used to download remote media.
func (d *Dispatcher) SetHTTPClient(client publish.HTTPDoer) {
	d.httpClient = client
}

// RunOnce performs a single publishing pass over every currently due job.
// It is the unit behind both the background loop and the manual trigger.
func (d *Dispatcher) RunOnce(ctx context.Context) (PassResult, error) {
	var result PassResult
	started := time.Now()

	due, err := d.store.DueJobs(ctx, time.Now())
	if err != nil {
		return result, err
	}

	for _, job := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		won, err := d.store.Claim(ctx, job.ID, schedule.StatusPending, schedule.StatusPublishing)
		if err != nil {
			return result, err
		}
		if !won {
			result.Skipped++
			continue
		}

		if d.publishJob(ctx, job) {
			result.Published++
		} else {
			result.Failed++
		}
	}

	if result.Published > 0 || result.Failed > 0 {
		if err := d.notifier.NotifyPassSummary(ctx, result.Published, result.Failed, time.Since(started)); err != nil {
			d.logger.Warn("pass summary notification", logging.Error(err))
		}
	}
	return result, nil
}

// publishJob runs one claimed job to a terminal status and reports success.
func (d *Dispatcher) publishJob(ctx context.Context, job *schedule.Job) bool {
	logger := d.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldPlatform, string(job.Platform)),
		logging.String(logging.FieldAccount, job.Account))

	publisher := d.publishers.For(job.Platform)
	if publisher == nil {
		d.fail(ctx, job, logger, publish.Wrap(publish.ErrConfiguration, string(job.Platform), "dispatch", "no adapter registered", nil))
		return false
	}

	mediaPath, cleanup, err := d.localMedia(ctx, job)
	if err != nil {
		d.fail(ctx, job, logger, err)
		return false
	}
	defer cleanup()

	result, err := publisher.Publish(ctx, job, mediaPath)
	if err != nil {
		d.fail(ctx, job, logger, err)
		return false
	}

	ok, err := d.store.MarkPosted(ctx, job.ID, result.RemoteID, result.PostedAt)
	if err != nil {
		logger.Error("record publish outcome", logging.Error(err))
		return false
	}
	if !ok {
		logger.Warn("job left publishing state before outcome was recorded")
		return false
	}

	if job.MediaURL != "" {
		if err := d.bucket.Remove(ctx, job.MediaURL); err != nil {
			logger.Warn("release media after publish", logging.Error(err))
		}
	}

	logger.Info("job published", logging.String("remote_id", result.RemoteID))
	if err := d.notifier.NotifyPublished(ctx, job); err != nil {
		logger.Warn("publish notification", logging.Error(err))
	}
	return true
}

func (d *Dispatcher) fail(ctx context.Context, job *schedule.Job, logger *slog.Logger, cause error) {
	logger.Error("job failed",
		logging.Error(cause),
		logging.Bool("retryable", publish.Retryable(cause)))

	if _, err := d.store.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		logger.Error("record failure", logging.Error(err))
	}
	if err := d.notifier.NotifyPublishFailed(ctx, job, cause.Error()); err != nil {
		logger.Warn("failure notification", logging.Error(err))
	}
}

// Start launches the background loop. It is an error to start a running
// dispatcher.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return errors.New("dispatcher already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(runCtx)
	return nil
}

// Stop terminates the background loop and waits for the in-flight pass to
// finish. Stopping an idle dispatcher is a no-op.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	interval := d.checkInterval
	if interval <= 0 {
		interval = time.Minute
	}
	retry := d.retryInterval
	if retry <= 0 || retry > interval {
		retry = interval
	}

	d.logger.Info("dispatcher started", logging.Duration("check_interval", interval))
	for {
		wait := interval
		if result, err := d.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				d.logger.Info("dispatcher stopped")
				return
			}
			d.logger.Error("publishing pass", logging.Error(err))
			wait = retry
		} else if result.Published > 0 || result.Failed > 0 || result.Skipped > 0 {
			d.logger.Info("publishing pass complete",
				logging.Int("published", result.Published),
				logging.Int("failed", result.Failed),
				logging.Int("skipped", result.Skipped))
		}

		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return
		case <-time.After(wait):
		}
	}
}
