package xpost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"herald/internal/logging"
	"herald/internal/publish"
)

const (
	// appendChunkSize is the APPEND segment size. The protocol caps
	// segments at 5 MB.
	appendChunkSize = 4 * 1024 * 1024
	// processingBudget bounds how long FINALIZE processing is polled
	// before the upload is abandoned.
	processingBudget = 120 * time.Second
	mediaCategory    = "tweet_video"
	mediaType        = "video/mp4"
)

type uploadResponse struct {
	MediaIDString  string `json:"media_id_string"`
	ProcessingInfo *struct {
		State          string `json:"state"`
		CheckAfterSecs int    `json:"check_after_secs"`
		Error          *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"processing_info"`
}

// uploadVideo runs the chunked upload protocol (INIT, APPEND, FINALIZE,
// STATUS) and returns the media id to attach to a post.
func (c *Client) uploadVideo(ctx context.Context, doer publish.HTTPDoer, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", publish.Wrap(publish.ErrTransient, "x", "upload", "open media", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", publish.Wrap(publish.ErrTransient, "x", "upload", "stat media", err)
	}
	if info.Size() == 0 {
		return "", publish.Wrap(publish.ErrValidation, "x", "upload", "media file is empty", nil)
	}

	mediaID, err := c.uploadInit(ctx, doer, info.Size())
	if err != nil {
		return "", err
	}
	c.logger.Info("upload started",
		logging.String("media_id", mediaID),
		logging.Int64("total_bytes", info.Size()),
		logging.String("file", filepath.Base(path)))

	if err := c.uploadAppend(ctx, doer, mediaID, file); err != nil {
		return "", err
	}
	status, err := c.uploadFinalize(ctx, doer, mediaID)
	if err != nil {
		return "", err
	}
	if err := c.awaitProcessing(ctx, doer, mediaID, status); err != nil {
		return "", err
	}

	c.logger.Info("upload complete", logging.String("media_id", mediaID))
	return mediaID, nil
}

func (c *Client) uploadInit(ctx context.Context, doer publish.HTTPDoer, totalBytes int64) (string, error) {
	form := url.Values{
		"command":        {"INIT"},
		"total_bytes":    {strconv.FormatInt(totalBytes, 10)},
		"media_type":     {mediaType},
		"media_category": {mediaCategory},
	}
	parsed, err := c.uploadForm(ctx, doer, form)
	if err != nil {
		return "", publish.Wrap(publish.ErrTransient, "x", "upload", "INIT", err)
	}
	if parsed.MediaIDString == "" {
		return "", publish.Wrap(publish.ErrTransient, "x", "upload", "INIT response missing media id", nil)
	}
	return parsed.MediaIDString, nil
}

func (c *Client) uploadAppend(ctx context.Context, doer publish.HTTPDoer, mediaID string, file io.Reader) error {
	buf := make([]byte, appendChunkSize)
	for segment := 0; ; segment++ {
		n, readErr := io.ReadFull(file, buf)
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF {
			return publish.Wrap(publish.ErrTransient, "x", "upload", "read media chunk", readErr)
		}

		if err := c.appendSegment(ctx, doer, mediaID, segment, buf[:n]); err != nil {
			return publish.Wrap(publish.ErrTransient, "x", "upload", fmt.Sprintf("APPEND segment %d", segment), err)
		}
		if readErr == io.ErrUnexpectedEOF {
			return nil
		}
	}
}

func (c *Client) appendSegment(ctx context.Context, doer publish.HTTPDoer, mediaID string, segment int, chunk []byte) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("command", "APPEND"); err != nil {
		return err
	}
	if err := writer.WriteField("media_id", mediaID); err != nil {
		return err
	}
	if err := writer.WriteField("segment_index", strconv.Itoa(segment)); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("media", "chunk")
	if err != nil {
		return err
	}
	if _, err := part.Write(chunk); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadBase+"/media/upload.json", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) uploadFinalize(ctx context.Context, doer publish.HTTPDoer, mediaID string) (*uploadResponse, error) {
	form := url.Values{
		"command":  {"FINALIZE"},
		"media_id": {mediaID},
	}
	parsed, err := c.uploadForm(ctx, doer, form)
	if err != nil {
		return nil, publish.Wrap(publish.ErrTransient, "x", "upload", "FINALIZE", err)
	}
	return parsed, nil
}

// awaitProcessing polls STATUS until the platform reports the upload
// succeeded, honoring each check_after_secs hint within an overall budget.
func (c *Client) awaitProcessing(ctx context.Context, doer publish.HTTPDoer, mediaID string, last *uploadResponse) error {
	deadline := c.clock.Now().Add(processingBudget)
	for {
		info := last.ProcessingInfo
		if info == nil || info.State == "succeeded" {
			return nil
		}
		if info.State == "failed" {
			message := "processing failed"
			if info.Error != nil && info.Error.Message != "" {
				message = info.Error.Message
			}
			return publish.Wrap(publish.ErrValidation, "x", "upload", message, nil)
		}

		wait := time.Duration(info.CheckAfterSecs) * time.Second
		if wait <= 0 {
			wait = time.Second
		}
		if c.clock.Now().Add(wait).After(deadline) {
			return publish.Wrap(publish.ErrTransient, "x", "upload",
				fmt.Sprintf("processing did not finish within %s", processingBudget), nil)
		}
		if err := c.clock.Sleep(ctx, wait); err != nil {
			return publish.Wrap(publish.ErrTransient, "x", "upload", "wait for processing", err)
		}

		next, err := c.uploadStatus(ctx, doer, mediaID)
		if err != nil {
			return err
		}
		last = next
	}
}

func (c *Client) uploadStatus(ctx context.Context, doer publish.HTTPDoer, mediaID string) (*uploadResponse, error) {
	endpoint := c.uploadBase + "/media/upload.json?" + url.Values{
		"command":  {"STATUS"},
		"media_id": {mediaID},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, publish.Wrap(publish.ErrTransient, "x", "upload", "STATUS", err)
	}
	resp, err := doer.Do(req)
	if err != nil {
		return nil, publish.Wrap(publish.ErrTransient, "x", "upload", "STATUS", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, publish.Wrap(publish.ErrTransient, "x", "upload", "STATUS read", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, publish.Wrap(publish.ErrTransient, "x", "upload",
			fmt.Sprintf("STATUS returned %d", resp.StatusCode), nil)
	}
	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, publish.Wrap(publish.ErrTransient, "x", "upload", "STATUS decode", err)
	}
	return &parsed, nil
}

func (c *Client) uploadForm(ctx context.Context, doer publish.HTTPDoer, form url.Values) (*uploadResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadBase+"/media/upload.json",
		bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &parsed, nil
}
