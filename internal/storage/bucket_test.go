package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"herald/internal/logging"
	"herald/internal/storage"
	"herald/internal/testsupport"
)

func newBucket(t *testing.T) *storage.Bucket {
	t.Helper()
	bucket, err := storage.NewBucket(testsupport.NewConfig(t), logging.NewNop())
	if err != nil {
		t.Fatalf("NewBucket: %v", err)
	}
	return bucket
}

func TestBucketStageAndRemove(t *testing.T) {
	bucket := newBucket(t)
	ctx := context.Background()

	source := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteVideo(t, source, 4096)

	publicURL, err := bucket.Stage(ctx, source)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if !strings.HasPrefix(publicURL, "http://media.test/bucket/") {
		t.Fatalf("public URL = %q, want bucket base prefix", publicURL)
	}
	if !strings.HasSuffix(publicURL, "_clip.mp4") {
		t.Fatalf("public URL = %q, want original name suffix", publicURL)
	}

	localPath, ok := bucket.Resolve(publicURL)
	if !ok {
		t.Fatalf("Resolve(%q) did not match bucket", publicURL)
	}
	if _, err := os.Stat(localPath); err != nil {
		t.Fatalf("staged file missing: %v", err)
	}

	if err := bucket.Remove(ctx, publicURL); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(localPath); !os.IsNotExist(err) {
		t.Fatalf("staged file still present after Remove (err=%v)", err)
	}

	// Removing twice and removing foreign URLs are both no-ops.
	if err := bucket.Remove(ctx, publicURL); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if err := bucket.Remove(ctx, "https://elsewhere.example/file.mp4"); err != nil {
		t.Fatalf("Remove foreign URL: %v", err)
	}
}

func TestBucketStageDistinctKeysForSameFile(t *testing.T) {
	bucket := newBucket(t)
	ctx := context.Background()

	source := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteVideo(t, source, 1024)

	first, err := bucket.Stage(ctx, source)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	second, err := bucket.Stage(ctx, source)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if first == second {
		t.Fatalf("staging the same file twice produced the same URL %q", first)
	}
}

func TestBucketStageRejectsNonMedia(t *testing.T) {
	bucket := newBucket(t)

	source := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(source, []byte("just some text"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if _, err := bucket.Stage(context.Background(), source); err == nil {
		t.Fatal("Stage accepted a text file")
	}
}

func TestBucketRemoveStale(t *testing.T) {
	bucket := newBucket(t)
	ctx := context.Background()

	source := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteVideo(t, source, 512)

	oldURL, err := bucket.Stage(ctx, source)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	freshURL, err := bucket.Stage(ctx, source)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	oldPath, _ := bucket.Resolve(oldURL)
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := bucket.RemoveStale(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("RemoveStale: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d files, want 1", removed)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("stale file still present (err=%v)", err)
	}
	freshPath, _ := bucket.Resolve(freshURL)
	if _, err := os.Stat(freshPath); err != nil {
		t.Fatalf("fresh file removed: %v", err)
	}
}
