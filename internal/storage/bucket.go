// Package storage implements the media bucket: a local directory of staged
// media files exposed over a public base URL for platform adapters that
// ingest by URL.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"herald/internal/config"
	"herald/internal/fileutil"
	"herald/internal/logging"
	"herald/internal/textutil"
)

// Bucket stores staged media under a flat directory. Keys are prefixed with
// a random UUID so distinct posts staging the same file never collide.
type Bucket struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

// NewBucket creates the bucket directory if needed.
func NewBucket(cfg *config.Config, logger *slog.Logger) (*Bucket, error) {
	if cfg.Storage.BucketDir == "" {
		return nil, fmt.Errorf("bucket directory is not configured")
	}
	if err := os.MkdirAll(cfg.Storage.BucketDir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bucket{
		dir:     cfg.Storage.BucketDir,
		baseURL: strings.TrimRight(cfg.Storage.PublicBaseURL, "/"),
		logger:  logging.NewComponentLogger(logger, "bucket"),
	}, nil
}

// Stage copies a local media file into the bucket and returns its public
// URL. The file must sniff as video or image; extensions are not trusted.
func (b *Bucket) Stage(ctx context.Context, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := sniffMedia(localPath); err != nil {
		return "", err
	}

	key := uuid.New().String() + "_" + textutil.SanitizeMediaKey(filepath.Base(localPath))
	target := filepath.Join(b.dir, key)
	if err := fileutil.CopyVerified(localPath, target); err != nil {
		return "", fmt.Errorf("stage media: %w", err)
	}

	publicURL := b.baseURL + "/" + key
	b.logger.Info("media staged",
		logging.String("key", key),
		logging.String("source", localPath))
	return publicURL, nil
}

// Remove deletes the staged file behind a public URL. URLs outside this
// bucket and already-removed files are ignored.
func (b *Bucket) Remove(ctx context.Context, publicURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	localPath, ok := b.Resolve(publicURL)
	if !ok {
		return nil
	}
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove staged media: %w", err)
	}
	b.logger.Info("media released", logging.String("key", filepath.Base(localPath)))
	return nil
}

// Resolve maps a public URL back to the staged file path when the URL
// belongs to this bucket. Callers use this to skip an HTTP round trip for
// locally staged media.
func (b *Bucket) Resolve(publicURL string) (string, bool) {
	if b.baseURL == "" || !strings.HasPrefix(publicURL, b.baseURL+"/") {
		return "", false
	}
	parsed, err := url.Parse(publicURL)
	if err != nil {
		return "", false
	}
	key := path.Base(parsed.Path)
	if key == "" || key == "." || key == "/" {
		return "", false
	}
	return filepath.Join(b.dir, key), true
}

// RemoveStale deletes staged files last modified before cutoff and returns
// how many were removed. Jobs release their media at publish time, so stale
// files are leftovers from cancelled work or crashes.
func (b *Bucket) RemoveStale(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0, fmt.Errorf("read bucket dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(b.dir, entry.Name())); err != nil {
			b.logger.Warn("remove stale media",
				logging.String("key", entry.Name()),
				logging.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		b.logger.Info("stale media removed", logging.Int("count", removed))
	}
	return removed, nil
}

// sniffMedia rejects files whose leading bytes do not identify a known video
// or image format. Extensions are not trusted.
func sniffMedia(localPath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open media: %w", err)
	}
	defer src.Close()

	head := make([]byte, 261)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("read media header: %w", err)
	}
	head = head[:n]
	if !filetype.IsVideo(head) && !filetype.IsImage(head) {
		kind, _ := filetype.Match(head)
		return fmt.Errorf("%s is not a supported media file (detected %s)", filepath.Base(localPath), kind.MIME.Value)
	}
	return nil
}
