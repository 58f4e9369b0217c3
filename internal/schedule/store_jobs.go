package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Draft carries the fields a caller supplies when scheduling a post.
type Draft struct {
	Platform    Platform
	Account     string
	MediaURL    string
	Caption     string
	ReplyToID   string
	ScheduledAt time.Time
}

func (d Draft) validate() error {
	if _, ok := ParsePlatform(string(d.Platform)); !ok {
		return fmt.Errorf("%w: unknown platform %q", ErrValidation, d.Platform)
	}
	if strings.TrimSpace(d.Account) == "" {
		return fmt.Errorf("%w: account is required", ErrValidation)
	}
	if strings.TrimSpace(d.Caption) == "" {
		return fmt.Errorf("%w: caption is required", ErrValidation)
	}
	if limit := d.Platform.CaptionLimit(); utf8.RuneCountInString(d.Caption) > limit {
		return fmt.Errorf("%w: caption exceeds %d characters for %s", ErrValidation, limit, d.Platform)
	}
	if d.Platform.RequiresMedia() && strings.TrimSpace(d.MediaURL) == "" {
		return fmt.Errorf("%w: %s requires media", ErrValidation, d.Platform)
	}
	if d.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduled time is required", ErrValidation)
	}
	return nil
}

// Insert validates a draft and persists it with status pending.
func (s *Store) Insert(ctx context.Context, draft Draft) (*Job, error) {
	if err := draft.validate(); err != nil {
		return nil, err
	}

	timestamp := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO schedule_jobs (
            platform, account, media_url, caption, reply_to_id,
            scheduled_time, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		draft.Platform,
		draft.Account,
		nullableString(draft.MediaURL),
		draft.Caption,
		nullableString(draft.ReplyToID),
		formatTime(draft.ScheduledAt),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Missing jobs return nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM schedule_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), ordered by scheduled time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM schedule_jobs`
	orderClause := ` ORDER BY scheduled_time`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DueJobs returns pending jobs whose scheduled time has passed, earliest
// first, so the oldest overdue job is attempted first.
func (s *Store) DueJobs(ctx context.Context, now time.Time) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM schedule_jobs
         WHERE status = ? AND scheduled_time <= ?
         ORDER BY scheduled_time`,
		StatusPending,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("query due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// LastPendingTime returns the latest pending scheduled time for one
// (platform, account) queue, or nil when the queue is empty. Queues for
// different accounts, and text versus video queues on the same account, are
// spaced independently.
func (s *Store) LastPendingTime(ctx context.Context, platform Platform, account string) (*time.Time, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT scheduled_time FROM schedule_jobs
         WHERE status = ? AND platform = ? AND account = ?
         ORDER BY scheduled_time DESC LIMIT 1`,
		StatusPending,
		platform,
		account,
	)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last pending time: %w", err)
	}
	parsed, err := parseTimeString(raw)
	if err != nil {
		return nil, fmt.Errorf("parse last pending time: %w", err)
	}
	return &parsed, nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM schedule_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Delete removes a job row by identifier.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM schedule_jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearPosted removes posted jobs older than cutoff. Retention only; media
// for posted jobs was already released at publish time.
func (s *Store) ClearPosted(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM schedule_jobs WHERE status = ? AND posted_at IS NOT NULL AND posted_at < ?`,
		StatusPosted,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("clear posted: %w", err)
	}
	return res.RowsAffected()
}
