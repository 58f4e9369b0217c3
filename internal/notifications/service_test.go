package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"herald/internal/config"
	"herald/internal/notifications"
	"herald/internal/schedule"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	job := &schedule.Job{ID: 1, Platform: schedule.PlatformTextPost, Account: "main"}
	if err := svc.NotifyPublished(context.Background(), job); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceSendsEvents(t *testing.T) {
	type captured struct {
		title    string
		priority string
		tags     string
		body     string
	}
	var got []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			priority: r.Header.Get("Priority"),
			tags:     r.Header.Get("Tags"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.PassSummary = true
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	job := &schedule.Job{ID: 7, Platform: schedule.PlatformTextPost, Account: "main", Caption: "good news"}
	if err := svc.NotifyPublished(ctx, job); err != nil {
		t.Fatalf("NotifyPublished: %v", err)
	}
	if err := svc.NotifyPublishFailed(ctx, job, "rate limited"); err != nil {
		t.Fatalf("NotifyPublishFailed: %v", err)
	}
	if err := svc.NotifyPassSummary(ctx, 3, 1, 42*time.Second); err != nil {
		t.Fatalf("NotifyPassSummary: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("server saw %d notifications, want 3", len(got))
	}
	if got[0].title != "Herald - Published" || !strings.Contains(got[0].body, "good news") {
		t.Fatalf("published notification = %+v", got[0])
	}
	if got[1].priority != "high" || !strings.Contains(got[1].body, "rate limited") {
		t.Fatalf("failure notification = %+v", got[1])
	}
	if !strings.Contains(got[2].body, "3 published, 1 failed") {
		t.Fatalf("summary notification = %+v", got[2])
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Published = false
	cfg.Notifications.Failures = false
	cfg.Notifications.PassSummary = false
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	job := &schedule.Job{ID: 2, Platform: schedule.PlatformTextPost, Account: "main"}
	if err := svc.NotifyPublished(ctx, job); err != nil {
		t.Fatalf("NotifyPublished: %v", err)
	}
	if err := svc.NotifyPublishFailed(ctx, job, "boom"); err != nil {
		t.Fatalf("NotifyPublishFailed: %v", err)
	}
	if err := svc.NotifyPassSummary(ctx, 1, 0, time.Second); err != nil {
		t.Fatalf("NotifyPassSummary: %v", err)
	}
	if calls != 0 {
		t.Fatalf("server saw %d notifications with all toggles off", calls)
	}

	// The explicit test notification ignores the toggles.
	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if calls != 1 {
		t.Fatalf("server saw %d notifications after test ping, want 1", calls)
	}
}

func TestNtfyServiceSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	job := &schedule.Job{ID: 3, Platform: schedule.PlatformTextPost, Account: "main"}
	err := svc.NotifyPublished(context.Background(), job)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("error = %v, want ntfy status error", err)
	}
}
