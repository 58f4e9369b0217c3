package dispatch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"herald/internal/config"
	"herald/internal/dispatch"
	"herald/internal/logging"
	"herald/internal/publish"
	"herald/internal/schedule"
	"herald/internal/storage"
	"herald/internal/testsupport"
)

type fakePublisher struct {
	mu     sync.Mutex
	calls  []publishedCall
	err    error
	result publish.Result
}

type publishedCall struct {
	jobID     int64
	mediaPath string
}

func (f *fakePublisher) Publish(ctx context.Context, job *schedule.Job, mediaPath string) (*publish.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, publishedCall{jobID: job.ID, mediaPath: mediaPath})
	if f.err != nil {
		return nil, f.err
	}
	result := f.result
	if result.RemoteID == "" {
		result.RemoteID = "remote-1"
	}
	if result.PostedAt.IsZero() {
		result.PostedAt = time.Now()
	}
	return &result, nil
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type harness struct {
	cfg        *config.Config
	store      *schedule.Store
	bucket     *storage.Bucket
	dispatcher *dispatch.Dispatcher
	text       *fakePublisher
	video      *fakePublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	bucket, err := storage.NewBucket(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewBucket: %v", err)
	}

	text := &fakePublisher{}
	video := &fakePublisher{}
	registry := publish.Registry{
		schedule.PlatformTextPost:  text,
		schedule.PlatformVideoPost: video,
	}
	dispatcher := dispatch.New(cfg, store, bucket, registry, nil, logging.NewNop())
	return &harness{cfg: cfg, store: store, bucket: bucket, dispatcher: dispatcher, text: text, video: video}
}

func TestRunOncePublishesDueJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	due := testsupport.NewJob(t, h.store, schedule.PlatformTextPost, "main", "due now", time.Now().Add(-time.Minute))
	future := testsupport.NewJob(t, h.store, schedule.PlatformTextPost, "main", "not yet", time.Now().Add(time.Hour))

	result, err := h.dispatcher.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Published != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v, want one published", result)
	}

	posted, err := h.store.GetByID(ctx, due.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if posted.Status != schedule.StatusPosted {
		t.Fatalf("due job status = %s, want posted", posted.Status)
	}
	if posted.RemoteID != "remote-1" {
		t.Fatalf("remote id = %q", posted.RemoteID)
	}

	untouched, err := h.store.GetByID(ctx, future.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if untouched.Status != schedule.StatusPending {
		t.Fatalf("future job status = %s, want pending", untouched.Status)
	}
}

func TestRunOnceReleasesStagedMediaAfterPublish(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	source := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteVideo(t, source, 2048)
	mediaURL, err := h.bucket.Stage(ctx, source)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	job, err := h.store.Insert(ctx, schedule.Draft{
		Platform:    schedule.PlatformVideoPost,
		Account:     "main",
		Caption:     "clip day",
		MediaURL:    mediaURL,
		ScheduledAt: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	stagedPath, _ := h.bucket.Resolve(mediaURL)
	result, err := h.dispatcher.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Published != 1 {
		t.Fatalf("result = %+v, want one published", result)
	}

	if h.video.callCount() != 1 {
		t.Fatalf("video adapter called %d times, want 1", h.video.callCount())
	}
	h.video.mu.Lock()
	mediaPath := h.video.calls[0].mediaPath
	h.video.mu.Unlock()
	if mediaPath != stagedPath {
		t.Fatalf("adapter media path = %q, want staged path %q", mediaPath, stagedPath)
	}

	if _, err := os.Stat(stagedPath); !os.IsNotExist(err) {
		t.Fatalf("staged media still present after publish (err=%v)", err)
	}

	posted, err := h.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if posted.Status != schedule.StatusPosted {
		t.Fatalf("job status = %s, want posted", posted.Status)
	}
}

func TestRunOnceDownloadsRemoteMedia(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	payload := []byte("remote video bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	if _, err := h.store.Insert(ctx, schedule.Draft{
		Platform:    schedule.PlatformVideoPost,
		Account:     "main",
		Caption:     "remote clip",
		MediaURL:    server.URL + "/clip.mp4",
		ScheduledAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var downloaded string
	h.video.result = publish.Result{RemoteID: "remote-2"}
	result, err := h.dispatcher.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Published != 1 {
		t.Fatalf("result = %+v, want one published", result)
	}

	h.video.mu.Lock()
	downloaded = h.video.calls[0].mediaPath
	h.video.mu.Unlock()
	if downloaded == "" {
		t.Fatal("adapter saw no local media path")
	}
	if !strings.HasPrefix(downloaded, h.cfg.Paths.StagingDir) {
		t.Fatalf("download path %q outside staging dir", downloaded)
	}
	if _, err := os.Stat(downloaded); !os.IsNotExist(err) {
		t.Fatalf("temp download not cleaned up (err=%v)", err)
	}
}

func TestRunOnceRecordsFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job := testsupport.NewJob(t, h.store, schedule.PlatformTextPost, "main", "doomed", time.Now().Add(-time.Minute))
	h.text.err = publish.Wrap(publish.ErrValidation, "text_post", "create", "caption rejected", nil)

	result, err := h.dispatcher.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Failed != 1 || result.Published != 0 {
		t.Fatalf("result = %+v, want one failure", result)
	}

	failed, err := h.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if failed.Status != schedule.StatusFailed {
		t.Fatalf("job status = %s, want failed", failed.Status)
	}
	if !strings.Contains(failed.ErrorMessage, "caption rejected") {
		t.Fatalf("error message = %q", failed.ErrorMessage)
	}

	// A failed job is not retried on the next pass.
	again, err := h.dispatcher.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if again.Published != 0 || again.Failed != 0 {
		t.Fatalf("second pass = %+v, want empty", again)
	}
	if h.text.callCount() != 1 {
		t.Fatalf("adapter called %d times, want 1", h.text.callCount())
	}
}

func TestRunOnceFailsJobsWithoutAdapter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	bucket, err := storage.NewBucket(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewBucket: %v", err)
	}
	dispatcher := dispatch.New(cfg, store, bucket, publish.Registry{}, nil, logging.NewNop())

	ctx := context.Background()
	job := testsupport.NewJob(t, store, schedule.PlatformTextPost, "main", "orphaned", time.Now().Add(-time.Minute))

	result, err := dispatcher.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("result = %+v, want one failure", result)
	}
	failed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !strings.Contains(failed.ErrorMessage, "no adapter") {
		t.Fatalf("error message = %q", failed.ErrorMessage)
	}
}

func TestConcurrentPassesPublishExactlyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	testsupport.NewJob(t, h.store, schedule.PlatformTextPost, "main", "only once", time.Now().Add(-time.Minute))

	second := dispatch.New(h.cfg, h.store, h.bucket, publish.Registry{
		schedule.PlatformTextPost: h.text,
	}, nil, logging.NewNop())

	var wg sync.WaitGroup
	for _, d := range []*dispatch.Dispatcher{h.dispatcher, second} {
		wg.Add(1)
		go func(d *dispatch.Dispatcher) {
			defer wg.Done()
			if _, err := d.RunOnce(ctx); err != nil {
				t.Errorf("RunOnce: %v", err)
			}
		}(d)
	}
	wg.Wait()

	if h.text.callCount() != 1 {
		t.Fatalf("adapter called %d times across concurrent passes, want 1", h.text.callCount())
	}
}

func TestStartStop(t *testing.T) {
	h := newHarness(t)

	if err := h.dispatcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.dispatcher.Start(context.Background()); err == nil {
		t.Fatal("second Start did not error")
	}

	h.dispatcher.Stop()
	h.dispatcher.Stop()

	if err := h.dispatcher.Start(context.Background()); err != nil {
		t.Fatalf("restart after Stop: %v", err)
	}
	h.dispatcher.Stop()
}

func TestRunOnceStopsOnContextCancel(t *testing.T) {
	h := newHarness(t)

	testsupport.NewJob(t, h.store, schedule.PlatformTextPost, "main", "never sent", time.Now().Add(-time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.dispatcher.RunOnce(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if h.text.callCount() != 0 {
		t.Fatalf("adapter called %d times after cancel", h.text.callCount())
	}
}
