package schedule

import (
	"database/sql"
	"errors"
	"time"
	"unicode/utf8"
)

const jobColumns = "id, platform, account, media_url, caption, reply_to_id, scheduled_time, status, remote_id, posted_at, error_message, created_at, updated_at"

// errorMessageLimit bounds what gets persisted to error_message.
const errorMessageLimit = 500

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		platformStr  string
		account      string
		mediaURL     sql.NullString
		caption      string
		replyToID    sql.NullString
		scheduledRaw string
		statusStr    string
		remoteID     sql.NullString
		postedRaw    sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&platformStr,
		&account,
		&mediaURL,
		&caption,
		&replyToID,
		&scheduledRaw,
		&statusStr,
		&remoteID,
		&postedRaw,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		Platform:     Platform(platformStr),
		Account:      account,
		MediaURL:     mediaURL.String,
		Caption:      caption,
		ReplyToID:    replyToID.String,
		Status:       Status(statusStr),
		RemoteID:     remoteID.String,
		ErrorMessage: errorMessage.String,
	}

	if scheduled, err := parseTimeString(scheduledRaw); err == nil {
		job.ScheduledAt = scheduled
	}
	if postedRaw.Valid {
		if posted, err := parseTimeString(postedRaw.String); err == nil {
			job.PostedAt = &posted
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout is fixed width so lexicographic comparison of stored values in
// SQL matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

// TruncateError bounds a failure message for persistence.
func TruncateError(message string) string {
	if utf8.RuneCountInString(message) <= errorMessageLimit {
		return message
	}
	runes := []rune(message)
	return string(runes[:errorMessageLimit-1]) + "…"
}
