package schedule

import (
	"strings"
	"time"
)

// Platform identifies the destination surface a job publishes to.
type Platform string

const (
	PlatformTextPost  Platform = "text_post"
	PlatformVideoPost Platform = "video_post"
	PlatformReel      Platform = "instagram_reel"
)

var allPlatforms = []Platform{PlatformTextPost, PlatformVideoPost, PlatformReel}

// AllPlatforms returns the ordered list of known platforms.
func AllPlatforms() []Platform {
	cp := make([]Platform, len(allPlatforms))
	copy(cp, allPlatforms)
	return cp
}

// ParsePlatform converts a string into a known Platform.
func ParsePlatform(value string) (Platform, bool) {
	normalized := Platform(strings.ToLower(strings.TrimSpace(value)))
	for _, p := range allPlatforms {
		if p == normalized {
			return p, true
		}
	}
	return "", false
}

// RequiresMedia reports whether jobs on this platform must carry a media reference.
func (p Platform) RequiresMedia() bool {
	return p == PlatformVideoPost || p == PlatformReel
}

// CaptionLimit returns the maximum caption length the destination accepts.
func (p Platform) CaptionLimit() int {
	switch p {
	case PlatformReel:
		return 2200
	default:
		return 280
	}
}

// Status represents the lifecycle of a scheduled job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPublishing Status = "publishing"
	StatusPosted     Status = "posted"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusPublishing, StatusPosted, StatusFailed}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the job lifecycle (absent an
// operator retry).
func (s Status) IsTerminal() bool {
	return s == StatusPosted || s == StatusFailed
}

// ShutdownStopReason is the error message set on publishing jobs found at
// daemon startup; their previous owner died mid-publish.
const ShutdownStopReason = "interrupted by shutdown"

// Job represents a scheduled post persisted in SQLite.
type Job struct {
	ID           int64
	Platform     Platform
	Account      string
	MediaURL     string
	Caption      string
	ReplyToID    string
	ScheduledAt  time.Time
	Status       Status
	RemoteID     string
	PostedAt     *time.Time
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Due reports whether the job is eligible for dispatch at now.
func (j *Job) Due(now time.Time) bool {
	return j.Status == StatusPending && !j.ScheduledAt.After(now)
}
