package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/config"
)

const userAgent = "Reelsmith/0.1.0"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyRunStarted(ctx context.Context, title string) error
	NotifyRunCompleted(ctx context.Context, title, videoPath string) error
	NotifyRunFailed(ctx context.Context, title, stage, message string) error
	NotifyUploaded(ctx context.Context, title, url string) error
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		events:   cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	events   config.Notifications
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, title string) error {
	if !n.events.RunStarted {
		return nil
	}
	data := payload{
		title:   "Reelsmith - Run Started",
		message: fmt.Sprintf("Generating video: %s", fallbackTitle(title)),
		tags:    []string{"reelsmith", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, title, videoPath string) error {
	if !n.events.RunCompleted {
		return nil
	}
	message := fmt.Sprintf("Video ready: %s", fallbackTitle(title))
	if videoPath = strings.TrimSpace(videoPath); videoPath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, videoPath)
	}
	data := payload{
		title:    "Reelsmith - Complete",
		message:  message,
		tags:     []string{"reelsmith", "run", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, title, stage, message string) error {
	if !n.events.RunFailed {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Run failed: ")
	builder.WriteString(fallbackTitle(title))
	if stage = strings.TrimSpace(stage); stage != "" {
		builder.WriteString("\nStage: ")
		builder.WriteString(stage)
	}
	if message = strings.TrimSpace(message); message != "" {
		builder.WriteString("\n")
		builder.WriteString(message)
	}
	data := payload{
		title:    "Reelsmith - Failed",
		message:  builder.String(),
		tags:     []string{"reelsmith", "run", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploaded(ctx context.Context, title, url string) error {
	if !n.events.Uploaded {
		return nil
	}
	message := fmt.Sprintf("Uploaded: %s", fallbackTitle(title))
	if url = strings.TrimSpace(url); url != "" {
		message = fmt.Sprintf("%s\n%s", message, url)
	}
	data := payload{
		title:   "Reelsmith - Uploaded",
		message: message,
		tags:    []string{"reelsmith", "upload", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Reelsmith - Test",
		message:  "Notification system test",
		tags:     []string{"reelsmith", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func fallbackTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "untitled video"
	}
	return title
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

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string) error            { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, string) error  { return nil }
func (noopService) NotifyRunFailed(context.Context, string, string, string) error {
	return nil
}
func (noopService) NotifyUploaded(context.Context, string, string) error { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
