package publish

import (
	"context"
	"net/http"
	"time"

	"herald/internal/schedule"
)

// HTTPDoer describes the HTTP client used by platform adapters.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result reports a successful publish.
type Result struct {
	// RemoteID is the platform's identifier for the created post.
	RemoteID string
	// PostedAt is when the platform accepted the post.
	PostedAt time.Time
}

// Publisher sends a claimed job to its platform. Implementations classify
// failures with the sentinel errors in this package so the dispatcher can
// tell final rejections from transient ones. The media path, when non-empty,
// is a local copy of the job's media the adapter may upload directly.
type Publisher interface {
	Publish(ctx context.Context, job *schedule.Job, mediaPath string) (*Result, error)
}

// Registry maps platforms to their adapters.
type Registry map[schedule.Platform]Publisher

// For returns the publisher for a platform, or nil when none is registered.
func (r Registry) For(platform schedule.Platform) Publisher {
	return r[platform]
}
