package testsupport

import (
	"context"
	"testing"
	"time"

	"herald/internal/config"
	"herald/internal/schedule"
)

// MustOpenStore opens a schedule.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *schedule.Store {
	t.Helper()

	store, err := schedule.Open(cfg)
	if err != nil {
		t.Fatalf("schedule.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a pending job for tests using the provided store.
func NewJob(t testing.TB, store *schedule.Store, platform schedule.Platform, account, caption string, at time.Time) *schedule.Job {
	t.Helper()

	draft := schedule.Draft{
		Platform:    platform,
		Account:     account,
		Caption:     caption,
		ScheduledAt: at,
	}
	if platform.RequiresMedia() {
		draft.MediaURL = "http://media.test/bucket/clip.mp4"
	}
	job, err := store.Insert(context.Background(), draft)
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return job
}
