// Package igreel publishes reels through the Instagram Graph API: container
// creation, readiness polling, then publish.
package igreel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"herald/internal/config"
	"herald/internal/logging"
	"herald/internal/publish"
	"herald/internal/schedule"
)

const (
	// pollInterval and pollBudget bound the container readiness loop.
	// Graph processes reels asynchronously and gives no progress hint.
	pollInterval = 5 * time.Second
	pollBudget   = 300 * time.Second
	// publishAttempts and publishRetryDelay cover the window where the
	// container reports finished but media_publish still refuses it.
	publishAttempts   = 3
	publishRetryDelay = 10 * time.Second
)

// errNotReady marks publish rejections worth repeating while the container
// settles.
var errNotReady = errors.New("container not ready")

// Client publishes reels for configured Instagram business accounts.
type Client struct {
	graphBase   string
	accessToken string
	accounts    map[string]string
	http        publish.HTTPDoer
	clock       publish.Clock
	logger      *slog.Logger
}

// Option adjusts client construction.
type Option func(*Client)

// WithClock overrides the polling clock.
func WithClock(clock publish.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(doer publish.HTTPDoer) Option {
	return func(c *Client) { c.http = doer }
}

// NewClient builds a Graph API client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	accounts := make(map[string]string, len(cfg.Instagram.Accounts))
	for name := range cfg.Instagram.Accounts {
		businessID, err := cfg.IGAccountID(name)
		if err != nil {
			return nil, publish.Wrap(publish.ErrConfiguration, "instagram", "credentials", "", err)
		}
		accounts[name] = businessID
	}

	client := &Client{
		graphBase:   strings.TrimRight(cfg.Instagram.GraphBaseURL, "/"),
		accessToken: cfg.Instagram.AccessToken,
		accounts:    accounts,
		http:        &http.Client{Timeout: 30 * time.Second},
		clock:       publish.SystemClock(),
		logger:      logging.NewComponentLogger(logger, "igreel"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Publish creates a reel container from the job's public media URL, waits
// for Graph to finish processing it, and publishes it.
func (c *Client) Publish(ctx context.Context, job *schedule.Job, mediaPath string) (*publish.Result, error) {
	businessID, ok := c.accounts[job.Account]
	if !ok {
		return nil, publish.Wrap(publish.ErrConfiguration, "instagram", "credentials",
			fmt.Sprintf("no business id for account %q", job.Account), nil)
	}
	if job.MediaURL == "" {
		return nil, publish.Wrap(publish.ErrValidation, "instagram", "container", "reel without a media URL", nil)
	}

	containerID, err := c.createContainer(ctx, businessID, job.MediaURL, job.Caption)
	if err != nil {
		return nil, err
	}
	c.logger.Info("container created",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("container_id", containerID))

	if err := c.awaitContainer(ctx, containerID); err != nil {
		return nil, err
	}

	mediaID, err := c.publishContainer(ctx, businessID, containerID)
	if err != nil {
		return nil, err
	}
	c.logger.Info("reel published",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("media_id", mediaID))
	return &publish.Result{RemoteID: mediaID, PostedAt: c.clock.Now()}, nil
}

type graphResponse struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Error      *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Client) createContainer(ctx context.Context, businessID, videoURL, caption string) (string, error) {
	form := url.Values{
		"media_type":   {"REELS"},
		"video_url":    {videoURL},
		"caption":      {caption},
		"access_token": {c.accessToken},
	}
	parsed, status, err := c.post(ctx, c.graphBase+"/"+businessID+"/media", form)
	if err != nil {
		return "", publish.Wrap(publish.ErrTransient, "instagram", "container", "create request", err)
	}
	if parsed.Error != nil || status < 200 || status >= 300 {
		return "", classifyGraphError("container", parsed, status)
	}
	if parsed.ID == "" {
		return "", publish.Wrap(publish.ErrTransient, "instagram", "container", "response missing container id", nil)
	}
	return parsed.ID, nil
}

// awaitContainer polls the container's status code until Graph reports it
// finished. ERROR and EXPIRED are final.
func (c *Client) awaitContainer(ctx context.Context, containerID string) error {
	deadline := c.clock.Now().Add(pollBudget)
	for {
		parsed, status, err := c.get(ctx, c.graphBase+"/"+containerID+"?"+url.Values{
			"fields":       {"status_code"},
			"access_token": {c.accessToken},
		}.Encode())
		if err != nil {
			return publish.Wrap(publish.ErrTransient, "instagram", "poll", "status request", err)
		}
		if parsed.Error != nil || status < 200 || status >= 300 {
			return classifyGraphError("poll", parsed, status)
		}

		switch parsed.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR":
			return publish.Wrap(publish.ErrValidation, "instagram", "poll", "container processing failed", nil)
		case "EXPIRED":
			return publish.Wrap(publish.ErrValidation, "instagram", "poll", "container expired before publishing", nil)
		}

		if c.clock.Now().Add(pollInterval).After(deadline) {
			return publish.Wrap(publish.ErrTransient, "instagram", "poll",
				fmt.Sprintf("container not ready within %s", pollBudget), nil)
		}
		if err := c.clock.Sleep(ctx, pollInterval); err != nil {
			return publish.Wrap(publish.ErrTransient, "instagram", "poll", "wait for container", err)
		}
	}
}

// publishContainer calls media_publish, retrying the handful of times Graph
// is known to still report a freshly finished container as not ready.
func (c *Client) publishContainer(ctx context.Context, businessID, containerID string) (string, error) {
	form := url.Values{
		"creation_id":  {containerID},
		"access_token": {c.accessToken},
	}

	retry := publish.RetryPolicy{
		Attempts:    publishAttempts,
		Delay:       publishRetryDelay,
		ShouldRetry: func(err error) bool { return errors.Is(err, errNotReady) },
	}
	var mediaID string
	err := retry.Do(ctx, c.clock, func(attempt int) error {
		if attempt > 1 {
			c.logger.Warn("media not ready, retrying publish",
				logging.String("container_id", containerID),
				logging.Int("attempt", attempt))
		}
		parsed, status, err := c.post(ctx, c.graphBase+"/"+businessID+"/media_publish", form)
		if err != nil {
			return publish.Wrap(publish.ErrTransient, "instagram", "publish", "publish request", err)
		}
		if parsed.Error == nil && status >= 200 && status < 300 {
			if parsed.ID == "" {
				return publish.Wrap(publish.ErrTransient, "instagram", "publish", "response missing media id", nil)
			}
			mediaID = parsed.ID
			return nil
		}
		classified := classifyGraphError("publish", parsed, status)
		if isNotReadyError(parsed) {
			return fmt.Errorf("%w: %w", errNotReady, classified)
		}
		return classified
	})
	if err != nil {
		return "", err
	}
	return mediaID, nil
}

func isNotReadyError(parsed *graphResponse) bool {
	if parsed.Error == nil {
		return false
	}
	message := strings.ToLower(parsed.Error.Message)
	return strings.Contains(message, "not ready") || strings.Contains(message, "invalid")
}

func classifyGraphError(operation string, parsed *graphResponse, status int) error {
	message := fmt.Sprintf("status %d", status)
	code := 0
	if parsed.Error != nil {
		code = parsed.Error.Code
		if parsed.Error.Message != "" {
			message = fmt.Sprintf("status %d: %s", status, parsed.Error.Message)
		}
	}
	switch {
	case status == http.StatusUnauthorized, code == 190:
		return publish.Wrap(publish.ErrConfiguration, "instagram", operation, message, nil)
	case status == http.StatusTooManyRequests, code == 4, code == 17:
		return publish.Wrap(publish.ErrRateLimited, "instagram", operation, message, nil)
	case status == http.StatusBadRequest:
		return publish.Wrap(publish.ErrValidation, "instagram", operation, message, nil)
	default:
		return publish.Wrap(publish.ErrTransient, "instagram", operation, message, nil)
	}
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) (*graphResponse, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req)
}

func (c *Client) get(ctx context.Context, endpoint string) (*graphResponse, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	return c.send(req)
}

func (c *Client) send(req *http.Request) (*graphResponse, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	var parsed graphResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return &parsed, resp.StatusCode, nil
}
