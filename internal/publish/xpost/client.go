// Package xpost publishes text and video posts through the X API: v2 post
// creation plus the v1.1 chunked media upload protocol.
package xpost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"golang.org/x/time/rate"

	"herald/internal/config"
	"herald/internal/logging"
	"herald/internal/publish"
	"herald/internal/schedule"
)

const (
	captionLimit = 280
	// createInterval paces post creation well inside the per-user write
	// quota.
	createInterval = 5 * time.Second
)

// Client talks to the X API for a set of configured accounts. One client
// serves both text and video posts; video posts run the chunked upload
// first and attach the resulting media id.
type Client struct {
	apiBase    string
	uploadBase string
	accounts   map[string]publish.HTTPDoer
	base       *http.Client
	limiter    *rate.Limiter
	clock      publish.Clock
	logger     *slog.Logger
}

// Option adjusts client construction.
type Option func(*Client)

// WithClock overrides the clock used for upload status polling.
func WithClock(clock publish.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithHTTPClient sets the base HTTP client that OAuth signing wraps.
func WithHTTPClient(base *http.Client) Option {
	return func(c *Client) { c.base = base }
}

// WithLimiter overrides the pacing limiter for post creation.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) { c.limiter = limiter }
}

// NewClient builds a client with an OAuth 1.0a signing transport per
// configured account.
func NewClient(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	client := &Client{
		apiBase:    strings.TrimRight(cfg.XAPI.APIBaseURL, "/"),
		uploadBase: strings.TrimRight(cfg.XAPI.UploadBaseURL, "/"),
		accounts:   make(map[string]publish.HTTPDoer, len(cfg.XAPI.Accounts)),
		limiter:    rate.NewLimiter(rate.Every(createInterval), 1),
		clock:      publish.SystemClock(),
		logger:     logging.NewComponentLogger(logger, "xpost"),
	}
	for _, opt := range opts {
		opt(client)
	}

	oauthCfg := oauth1.NewConfig(cfg.XAPI.ConsumerKey, cfg.XAPI.ConsumerSecret)
	signCtx := context.Background()
	if client.base != nil {
		signCtx = context.WithValue(signCtx, oauth1.HTTPClient, client.base)
	}
	for name := range cfg.XAPI.Accounts {
		account, err := cfg.XAccountCreds(name)
		if err != nil {
			return nil, publish.Wrap(publish.ErrConfiguration, "x", "credentials", "", err)
		}
		token := oauth1.NewToken(account.AccessToken, account.AccessSecret)
		client.accounts[name] = oauthCfg.Client(signCtx, token)
	}
	return client, nil
}

// Publish sends the job to X. Video posts upload mediaPath through the
// chunked protocol first. A duplicate rejection is retried exactly once
// with a timestamp suffix before giving up.
func (c *Client) Publish(ctx context.Context, job *schedule.Job, mediaPath string) (*publish.Result, error) {
	doer, ok := c.accounts[job.Account]
	if !ok {
		return nil, publish.Wrap(publish.ErrConfiguration, "x", "credentials",
			fmt.Sprintf("no credentials for account %q", job.Account), nil)
	}

	var mediaID string
	if job.Platform == schedule.PlatformVideoPost {
		if mediaPath == "" {
			return nil, publish.Wrap(publish.ErrValidation, "x", "upload", "video post without local media", nil)
		}
		id, err := c.uploadVideo(ctx, doer, mediaPath)
		if err != nil {
			return nil, err
		}
		mediaID = id
	}

	dupRetry := publish.RetryPolicy{
		Attempts:    2,
		ShouldRetry: func(err error) bool { return errors.Is(err, publish.ErrDuplicate) },
	}
	var result *publish.Result
	err := dupRetry.Do(ctx, c.clock, func(attempt int) error {
		caption := job.Caption
		if attempt > 1 {
			caption = dedupeCaption(job.Caption, c.clock.Now())
			c.logger.Warn("duplicate rejection, retrying with timestamp suffix",
				logging.Int64(logging.FieldJobID, job.ID))
		}
		var callErr error
		result, callErr = c.createPost(ctx, doer, caption, job.ReplyToID, mediaID)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type createRequest struct {
	Text  string `json:"text"`
	Reply *struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply,omitempty"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
}

type createResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

func (c *Client) createPost(ctx context.Context, doer publish.HTTPDoer, caption, replyTo, mediaID string) (*publish.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, publish.Wrap(publish.ErrTransient, "x", "create", "rate limiter wait", err)
	}

	payload := createRequest{Text: caption}
	if replyTo != "" {
		payload.Reply = &struct {
			InReplyToTweetID string `json:"in_reply_to_tweet_id"`
		}{InReplyToTweetID: replyTo}
	}
	if mediaID != "" {
		payload.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{MediaIDs: []string{mediaID}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, publish.Wrap(publish.ErrTransient, "x", "create", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, publish.Wrap(publish.ErrTransient, "x", "create", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return nil, publish.Wrap(publish.ErrTransient, "x", "create", "send request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, publish.Wrap(publish.ErrTransient, "x", "create", "read response", err)
	}

	var parsed createResponse
	_ = json.Unmarshal(raw, &parsed)

	switch {
	case resp.StatusCode == http.StatusCreated:
		if parsed.Data.ID == "" {
			return nil, publish.Wrap(publish.ErrTransient, "x", "create", "response missing post id", nil)
		}
		return &publish.Result{RemoteID: parsed.Data.ID, PostedAt: c.clock.Now()}, nil
	case resp.StatusCode == http.StatusForbidden && isDuplicateBody(parsed, raw):
		return nil, publish.Wrap(publish.ErrDuplicate, "x", "create", responseDetail(parsed, resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, publish.Wrap(publish.ErrRateLimited, "x", "create", responseDetail(parsed, resp.StatusCode), nil)
	case resp.StatusCode == http.StatusBadRequest:
		return nil, publish.Wrap(publish.ErrValidation, "x", "create", responseDetail(parsed, resp.StatusCode), nil)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, publish.Wrap(publish.ErrConfiguration, "x", "create", responseDetail(parsed, resp.StatusCode), nil)
	default:
		return nil, publish.Wrap(publish.ErrTransient, "x", "create", responseDetail(parsed, resp.StatusCode), nil)
	}
}

func responseDetail(parsed createResponse, status int) string {
	if parsed.Detail != "" {
		return fmt.Sprintf("status %d: %s", status, parsed.Detail)
	}
	if parsed.Title != "" {
		return fmt.Sprintf("status %d: %s", status, parsed.Title)
	}
	return fmt.Sprintf("status %d", status)
}

func isDuplicateBody(parsed createResponse, raw []byte) bool {
	if strings.Contains(strings.ToLower(parsed.Detail), "duplicate") {
		return true
	}
	return bytes.Contains(bytes.ToLower(raw), []byte("duplicate"))
}

// dedupeCaption appends a UTC timestamp suffix so the retried post differs
// from the one the platform saw, trimming the base caption to stay within
// the limit.
func dedupeCaption(caption string, now time.Time) string {
	suffix := now.UTC().Format(" [15:04]")
	runes := []rune(caption)
	budget := captionLimit - len([]rune(suffix))
	if len(runes) > budget {
		runes = runes[:budget]
	}
	return string(runes) + suffix
}
