package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"herald/internal/publish"
	"herald/internal/schedule"
)

func defaultDownloadClient() publish.HTTPDoer {
	return &http.Client{Timeout: 5 * time.Minute}
}

func noopCleanup() {}

// localMedia produces a local file path for the job's media when its
// adapter uploads bytes directly. Bucket-staged media is used in place;
// anything else is downloaded to the staging directory for the duration of
// the publish. The cleanup func removes only files this call created.
func (d *Dispatcher) localMedia(ctx context.Context, job *schedule.Job) (string, func(), error) {
	if job.Platform != schedule.PlatformVideoPost || job.MediaURL == "" {
		return "", noopCleanup, nil
	}

	if path, ok := d.bucket.Resolve(job.MediaURL); ok {
		if _, err := os.Stat(path); err != nil {
			return "", noopCleanup, publish.Wrap(publish.ErrValidation, string(job.Platform), "media",
				fmt.Sprintf("staged media missing for job %d", job.ID), err)
		}
		return path, noopCleanup, nil
	}

	if err := os.MkdirAll(d.stagingDir, 0o755); err != nil {
		return "", noopCleanup, publish.Wrap(publish.ErrTransient, string(job.Platform), "media", "create staging dir", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.MediaURL, nil)
	if err != nil {
		return "", noopCleanup, publish.Wrap(publish.ErrValidation, string(job.Platform), "media", "build download request", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", noopCleanup, publish.Wrap(publish.ErrTransient, string(job.Platform), "media", "download media", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", noopCleanup, publish.Wrap(publish.ErrTransient, string(job.Platform), "media",
			fmt.Sprintf("media download returned %d", resp.StatusCode), nil)
	}

	tmp, err := os.CreateTemp(d.stagingDir, fmt.Sprintf("job-%d-*.media", job.ID))
	if err != nil {
		return "", noopCleanup, publish.Wrap(publish.ErrTransient, string(job.Platform), "media", "create temp file", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		cleanup()
		return "", noopCleanup, publish.Wrap(publish.ErrTransient, string(job.Platform), "media", "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", noopCleanup, publish.Wrap(publish.ErrTransient, string(job.Platform), "media", "close temp file", err)
	}
	return tmp.Name(), cleanup, nil
}
