package schedule

import (
	"context"
	"fmt"
	"time"
)

const (
	// retryDelay is how far into the future a single retried job is pushed.
	retryDelay = 2 * time.Minute
	// retryStagger spaces bulk-retried jobs so they do not all fire at once.
	retryStagger = 2 * time.Minute
)

// Claim moves a job from one status to another in a single conditional
// update. It reports true only when this caller won the transition, so
// concurrent dispatchers cannot both claim the same job.
func (s *Store) Claim(ctx context.Context, id int64, from, to Status) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE schedule_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		formatTime(time.Now()),
		id,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("claim job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// MarkPosted records a successful publish. The transition is conditional on
// the job still being in publishing so a stale worker cannot overwrite a
// newer state.
func (s *Store) MarkPosted(ctx context.Context, id int64, remoteID string, postedAt time.Time) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE schedule_jobs
         SET status = ?, remote_id = ?, posted_at = ?, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusPosted,
		nullableString(remoteID),
		formatTime(postedAt),
		formatTime(time.Now()),
		id,
		StatusPublishing,
	)
	if err != nil {
		return false, fmt.Errorf("mark posted %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// MarkFailed records a publish failure with a truncated error message.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE schedule_jobs
         SET status = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed,
		TruncateError(message),
		formatTime(time.Now()),
		id,
		StatusPublishing,
	)
	if err != nil {
		return false, fmt.Errorf("mark failed %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// Reschedule moves a pending job to a new scheduled time. Jobs that have
// already been claimed or resolved are left untouched.
func (s *Store) Reschedule(ctx context.Context, id int64, at time.Time) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: job %d", ErrNotFound, id)
	}
	if job.Status != StatusPending {
		return fmt.Errorf("%w: job %d is %s", ErrNotPending, id, job.Status)
	}

	_, err = s.execWithRetry(
		ctx,
		`UPDATE schedule_jobs SET scheduled_time = ?, updated_at = ? WHERE id = ? AND status = ?`,
		formatTime(at),
		formatTime(time.Now()),
		id,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("reschedule job %d: %w", id, err)
	}
	return nil
}

// Retry moves a failed job back to pending. With a zero time the job is
// scheduled a short delay from now; otherwise the supplied time is used.
func (s *Store) Retry(ctx context.Context, id int64, at time.Time) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %d", ErrNotFound, id)
	}
	if job.Status != StatusFailed {
		return nil, fmt.Errorf("%w: job %d is %s, only failed jobs can be retried", ErrValidation, id, job.Status)
	}

	if at.IsZero() {
		at = time.Now().Add(retryDelay)
	}
	_, err = s.execWithRetry(
		ctx,
		`UPDATE schedule_jobs
         SET status = ?, scheduled_time = ?, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusPending,
		formatTime(at),
		formatTime(time.Now()),
		id,
		StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("retry job %d: %w", id, err)
	}
	return s.GetByID(ctx, id)
}

// RetryAll moves every failed job back to pending, staggering their new
// scheduled times a fixed interval apart so retried posts do not land in a
// burst. Returns the number of jobs rescheduled.
func (s *Store) RetryAll(ctx context.Context) (int, error) {
	failed, err := s.List(ctx, StatusFailed)
	if err != nil {
		return 0, err
	}

	next := time.Now().Add(retryDelay)
	for _, job := range failed {
		if _, err := s.Retry(ctx, job.ID, next); err != nil {
			return 0, err
		}
		next = next.Add(retryStagger)
	}
	return len(failed), nil
}

// ResetStuckPublishing fails any job left in publishing by a previous run.
// Called at daemon startup before the dispatcher begins, so an interrupted
// publish surfaces as an explicit failure instead of hanging forever.
func (s *Store) ResetStuckPublishing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE schedule_jobs SET status = ?, error_message = ?, updated_at = ? WHERE status = ?`,
		StatusFailed,
		ShutdownStopReason,
		formatTime(time.Now()),
		StatusPublishing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck publishing: %w", err)
	}
	return res.RowsAffected()
}
