package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"herald/internal/config"
	"herald/internal/logging"
)

// MediaBucket stages local media files into publicly reachable storage and
// releases them once a post no longer needs them.
type MediaBucket interface {
	Stage(ctx context.Context, localPath string) (string, error)
	Remove(ctx context.Context, publicURL string) error
}

// Planner turns scheduling requests into persisted jobs. It owns slot
// assignment and media staging; the store below it only persists.
type Planner struct {
	store  *Store
	bucket MediaBucket
	plan   SlotPlan
	logger *slog.Logger
}

// NewPlanner wires a planner from configuration. The schedule section must
// already be validated.
func NewPlanner(cfg *config.Config, store *Store, bucket MediaBucket, logger *slog.Logger) (*Planner, error) {
	minutes, err := cfg.Schedule.SlotMinutes()
	if err != nil {
		return nil, fmt.Errorf("parse slots: %w", err)
	}
	location, err := cfg.Schedule.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Planner{
		store:  store,
		bucket: bucket,
		plan:   NewSlotPlan(minutes, location),
		logger: logging.NewComponentLogger(logger, "planner"),
	}, nil
}

// CreateRequest describes a post to schedule. Exactly one of MediaPath and
// MediaURL may be set; At overrides slot assignment when non-zero.
type CreateRequest struct {
	Platform  Platform
	Account   string
	Caption   string
	ReplyToID string
	MediaPath string
	MediaURL  string
	At        time.Time
}

// Create stages media as needed, assigns the next free slot for the job's
// (platform, account) queue unless an explicit time was given, and persists
// the job. Staged media is released again if the insert is rejected.
func (p *Planner) Create(ctx context.Context, req CreateRequest) (*Job, error) {
	if req.MediaPath != "" && req.MediaURL != "" {
		return nil, fmt.Errorf("%w: media path and media URL are mutually exclusive", ErrValidation)
	}

	mediaURL := req.MediaURL
	staged := false
	if req.MediaPath != "" {
		url, err := p.bucket.Stage(ctx, req.MediaPath)
		if err != nil {
			return nil, fmt.Errorf("stage media: %w", err)
		}
		mediaURL = url
		staged = true
	}

	at := req.At
	if at.IsZero() {
		last, err := p.store.LastPendingTime(ctx, req.Platform, req.Account)
		if err != nil {
			p.release(ctx, staged, mediaURL)
			return nil, err
		}
		at = p.plan.Next(time.Now(), last)
	}

	job, err := p.store.Insert(ctx, Draft{
		Platform:    req.Platform,
		Account:     req.Account,
		Caption:     req.Caption,
		ReplyToID:   strings.TrimSpace(req.ReplyToID),
		MediaURL:    mediaURL,
		ScheduledAt: at,
	})
	if err != nil {
		p.release(ctx, staged, mediaURL)
		return nil, err
	}

	p.logger.Info("job scheduled",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldPlatform, string(job.Platform)),
		logging.String(logging.FieldAccount, job.Account),
		logging.Time("scheduled_at", job.ScheduledAt))
	return job, nil
}

// Cancel deletes a pending job and releases its staged media. Jobs that are
// publishing or already resolved cannot be cancelled.
func (p *Planner) Cancel(ctx context.Context, id int64) error {
	job, err := p.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: job %d", ErrNotFound, id)
	}
	if job.Status != StatusPending {
		return fmt.Errorf("%w: job %d is %s", ErrNotPending, id, job.Status)
	}

	if _, err := p.store.Delete(ctx, id); err != nil {
		return err
	}
	if job.MediaURL != "" {
		if err := p.bucket.Remove(ctx, job.MediaURL); err != nil {
			p.logger.Warn("release media after cancel",
				logging.Int64(logging.FieldJobID, id),
				logging.Error(err))
		}
	}

	p.logger.Info("job cancelled", logging.Int64(logging.FieldJobID, id))
	return nil
}

func (p *Planner) release(ctx context.Context, staged bool, mediaURL string) {
	if !staged || mediaURL == "" {
		return
	}
	if err := p.bucket.Remove(ctx, mediaURL); err != nil {
		p.logger.Warn("release staged media", logging.Error(err))
	}
}
