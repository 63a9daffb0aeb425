package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelsmith/internal/notifications"
	"reelsmith/internal/testsupport"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func captureServer(t *testing.T, captured *capturedRequest, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		*calls++
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(cfg)
	if err := svc.NotifyRunCompleted(context.Background(), "Example", "video/p/final.mp4"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsEvents(t *testing.T) {
	var captured capturedRequest
	var calls int
	server := captureServer(t, &captured, &calls)
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.RunStarted = true
	cfg.Notifications.RunCompleted = true
	cfg.Notifications.RunFailed = true
	cfg.Notifications.Uploaded = true
	svc := notifications.NewService(cfg)

	if err := svc.NotifyRunCompleted(context.Background(), "The Lighthouse Keeper", "video/proj-1/final.mp4"); err != nil {
		t.Fatalf("notify completed: %v", err)
	}
	if captured.title != "Reelsmith - Complete" {
		t.Fatalf("unexpected title %q", captured.title)
	}
	if captured.body != "Video ready: The Lighthouse Keeper\nFile: video/proj-1/final.mp4" {
		t.Fatalf("unexpected body %q", captured.body)
	}
	if captured.priority != "high" {
		t.Fatalf("unexpected priority %q", captured.priority)
	}

	if err := svc.NotifyRunFailed(context.Background(), "Broken Run", "composing_video", "no segments rendered"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if captured.body != "Run failed: Broken Run\nStage: composing_video\nno segments rendered" {
		t.Fatalf("unexpected body %q", captured.body)
	}
	if captured.tags != "reelsmith,run,failed" {
		t.Fatalf("unexpected tags %q", captured.tags)
	}

	if err := svc.NotifyUploaded(context.Background(), "", "https://www.youtube.com/watch?v=abc"); err != nil {
		t.Fatalf("notify uploaded: %v", err)
	}
	if captured.body != "Uploaded: untitled video\nhttps://www.youtube.com/watch?v=abc" {
		t.Fatalf("unexpected body %q", captured.body)
	}
}

func TestNtfyServiceSkipsDisabledEvents(t *testing.T) {
	var captured capturedRequest
	var calls int
	server := captureServer(t, &captured, &calls)
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RunStarted = false
	svc := notifications.NewService(cfg)

	if err := svc.NotifyRunStarted(context.Background(), "Example"); err != nil {
		t.Fatalf("expected disabled event to return nil, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no requests, got %d", calls)
	}
}
