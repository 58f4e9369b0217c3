package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"herald/internal/config"
	"herald/internal/schedule"
)

const userAgent = "Herald/0.1.0"

// Service defines the notification surface exposed to the dispatcher and
// daemon.
type Service interface {
	NotifyPublished(ctx context.Context, job *schedule.Job) error
	NotifyPublishFailed(ctx context.Context, job *schedule.Job, reason string) error
	NotifyPassSummary(ctx context.Context, published, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		published:   cfg.Notifications.Published,
		failures:    cfg.Notifications.Failures,
		passSummary: cfg.Notifications.PassSummary,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	published   bool
	failures    bool
	passSummary bool
}

func (n *ntfyService) NotifyPublished(ctx context.Context, job *schedule.Job) error {
	if !n.published {
		return nil
	}
	data := payload{
		title:   "Herald - Published",
		message: fmt.Sprintf("%s published to %s (%s)\n%s", jobLabel(job), job.Platform, job.Account, excerpt(job.Caption)),
		tags:    []string{"herald", "published"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublishFailed(ctx context.Context, job *schedule.Job, reason string) error {
	if !n.failures {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Herald - Publish Failed",
		message:  fmt.Sprintf("%s failed on %s (%s): %s", jobLabel(job), job.Platform, job.Account, reason),
		tags:     []string{"herald", "failed", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPassSummary(ctx context.Context, published, failed int, duration time.Duration) error {
	if !n.passSummary {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "Herald - Pass Complete"
		message = fmt.Sprintf("Publishing pass complete: %d posts in %s", published, duration)
	} else {
		title = "Herald - Pass Complete (with errors)"
		message = fmt.Sprintf("Publishing pass complete: %d published, %d failed in %s", published, failed, duration)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"herald", "pass", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Herald - Test",
		message:  "Notification system test",
		tags:     []string{"herald", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func jobLabel(job *schedule.Job) string {
	if job == nil {
		return "job"
	}
	return fmt.Sprintf("Job %d", job.ID)
}

func excerpt(caption string) string {
	caption = strings.TrimSpace(caption)
	runes := []rune(caption)
	if len(runes) <= 80 {
		return caption
	}
	return string(runes[:80]) + "…"
}

type noopService struct{}

func (noopService) NotifyPublished(context.Context, *schedule.Job) error             { return nil }
func (noopService) NotifyPublishFailed(context.Context, *schedule.Job, string) error { return nil }
func (noopService) NotifyPassSummary(context.Context, int, int, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                           { return nil }
