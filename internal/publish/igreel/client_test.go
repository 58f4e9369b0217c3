package igreel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"herald/internal/logging"
	"herald/internal/publish"
	"herald/internal/schedule"
	"herald/internal/testsupport"
)

const businessID = "17890000000000000"

func newTestClient(t *testing.T, server *httptest.Server, clock publish.Clock) *Client {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Instagram.GraphBaseURL = server.URL

	client, err := NewClient(cfg, logging.NewNop(), WithClock(clock))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func reelJob() *schedule.Job {
	return &schedule.Job{
		ID:       5,
		Platform: schedule.PlatformReel,
		Account:  "main",
		Caption:  "behind the scenes",
		MediaURL: "http://media.test/bucket/reel.mp4",
	}
}

func TestPublishReel(t *testing.T) {
	var (
		containerForm map[string]string
		pollCount     int
		publishCalls  int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/" + businessID + "/media":
			r.ParseForm()
			containerForm = map[string]string{
				"media_type": r.FormValue("media_type"),
				"video_url":  r.FormValue("video_url"),
				"caption":    r.FormValue("caption"),
			}
			fmt.Fprint(w, `{"id":"container-9"}`)
		case "/container-9":
			pollCount++
			if pollCount < 3 {
				fmt.Fprint(w, `{"status_code":"IN_PROGRESS"}`)
				return
			}
			fmt.Fprint(w, `{"status_code":"FINISHED"}`)
		case "/" + businessID + "/media_publish":
			publishCalls++
			r.ParseForm()
			if r.FormValue("creation_id") != "container-9" {
				t.Errorf("creation_id = %q", r.FormValue("creation_id"))
			}
			fmt.Fprint(w, `{"id":"18000000000000001"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	clock := &publish.FakeClock{}
	client := newTestClient(t, server, clock)

	result, err := client.Publish(context.Background(), reelJob(), "")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.RemoteID != "18000000000000001" {
		t.Fatalf("remote id = %q", result.RemoteID)
	}
	if containerForm["media_type"] != "REELS" {
		t.Fatalf("media_type = %q", containerForm["media_type"])
	}
	if containerForm["video_url"] != "http://media.test/bucket/reel.mp4" {
		t.Fatalf("video_url = %q", containerForm["video_url"])
	}
	if containerForm["caption"] != "behind the scenes" {
		t.Fatalf("caption = %q", containerForm["caption"])
	}
	if pollCount != 3 {
		t.Fatalf("polled %d times, want 3", pollCount)
	}
	if publishCalls != 1 {
		t.Fatalf("media_publish called %d times, want 1", publishCalls)
	}
}

func TestPublishRetriesWhenMediaNotReady(t *testing.T) {
	var publishCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/media"):
			fmt.Fprint(w, `{"id":"container-1"}`)
		case r.URL.Path == "/container-1":
			fmt.Fprint(w, `{"status_code":"FINISHED"}`)
		case strings.HasSuffix(r.URL.Path, "/media_publish"):
			publishCalls++
			if publishCalls < 3 {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":{"message":"Media ID is not ready for publishing","type":"OAuthException","code":9007}}`)
				return
			}
			fmt.Fprint(w, `{"id":"18000000000000002"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	clock := &publish.FakeClock{}
	client := newTestClient(t, server, clock)

	result, err := client.Publish(context.Background(), reelJob(), "")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.RemoteID != "18000000000000002" {
		t.Fatalf("remote id = %q", result.RemoteID)
	}
	if publishCalls != 3 {
		t.Fatalf("media_publish called %d times, want 3", publishCalls)
	}
	if clock.Slept() < 2*publishRetryDelay {
		t.Fatalf("slept %s between retries, want at least %s", clock.Slept(), 2*publishRetryDelay)
	}
}

func TestPublishGivesUpAfterRetryBudget(t *testing.T) {
	var publishCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/media"):
			fmt.Fprint(w, `{"id":"container-2"}`)
		case r.URL.Path == "/container-2":
			fmt.Fprint(w, `{"status_code":"FINISHED"}`)
		case strings.HasSuffix(r.URL.Path, "/media_publish"):
			publishCalls++
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"Media ID is not ready for publishing","type":"OAuthException","code":9007}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server, &publish.FakeClock{})
	_, err := client.Publish(context.Background(), reelJob(), "")
	if err == nil {
		t.Fatal("Publish succeeded despite permanent not-ready responses")
	}
	if publishCalls != publishAttempts {
		t.Fatalf("media_publish called %d times, want %d", publishCalls, publishAttempts)
	}
}

func TestPublishContainerError(t *testing.T) {
	for _, statusCode := range []string{"ERROR", "EXPIRED"} {
		t.Run(statusCode, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch {
				case strings.HasSuffix(r.URL.Path, "/media"):
					fmt.Fprint(w, `{"id":"container-3"}`)
				case r.URL.Path == "/container-3":
					fmt.Fprintf(w, `{"status_code":%q}`, statusCode)
				default:
					t.Errorf("unexpected path %s", r.URL.Path)
				}
			}))
			defer server.Close()

			client := newTestClient(t, server, &publish.FakeClock{})
			_, err := client.Publish(context.Background(), reelJob(), "")
			if !errors.Is(err, publish.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestPublishPollBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/media"):
			fmt.Fprint(w, `{"id":"container-4"}`)
		case r.URL.Path == "/container-4":
			fmt.Fprint(w, `{"status_code":"IN_PROGRESS"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	clock := &publish.FakeClock{}
	client := newTestClient(t, server, clock)
	_, err := client.Publish(context.Background(), reelJob(), "")
	if !errors.Is(err, publish.ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}
	if clock.Slept() > pollBudget {
		t.Fatalf("polled for %s, beyond the %s budget", clock.Slept(), pollBudget)
	}
}

func TestPublishExpiredToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Error validating access token","type":"OAuthException","code":190}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server, &publish.FakeClock{})
	_, err := client.Publish(context.Background(), reelJob(), "")
	if !errors.Is(err, publish.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}

func TestPublishRequiresMediaURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent for a job without media")
	}))
	defer server.Close()

	job := reelJob()
	job.MediaURL = ""
	client := newTestClient(t, server, &publish.FakeClock{})
	_, err := client.Publish(context.Background(), job, "")
	if !errors.Is(err, publish.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestNewClientRejectsIncompleteCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Instagram.AccessToken = ""
	_, err := NewClient(cfg, logging.NewNop())
	if !errors.Is(err, publish.ErrConfiguration) {
		t.Fatalf("NewClient returned %v, want ErrConfiguration", err)
	}

	cfg = testsupport.NewConfig(t)
	account := cfg.Instagram.Accounts["main"]
	account.BusinessID = ""
	cfg.Instagram.Accounts["main"] = account
	_, err = NewClient(cfg, logging.NewNop())
	if !errors.Is(err, publish.ErrConfiguration) {
		t.Fatalf("NewClient returned %v, want ErrConfiguration", err)
	}
}
