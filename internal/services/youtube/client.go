package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"reelsmith/internal/services"
)

const defaultUploadTimeout = 15 * time.Minute

// Config captures the credentials and upload defaults.
type Config struct {
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	CategoryID     string
	PrivacyStatus  string
	Tags           []string
	TimeoutSeconds int
}

// UploadRequest describes one video upload.
type UploadRequest struct {
	FilePath    string
	Title       string
	Description string
	Tags        []string
	// PublishAt schedules the video. A scheduled video is uploaded private
	// with the publish time set; YouTube flips it public itself.
	PublishAt time.Time
}

// UploadResult reports the uploaded video.
type UploadResult struct {
	VideoID string
	URL     string
}

type insertFunc func(ctx context.Context, video *youtubeapi.Video, media io.Reader) (*youtubeapi.Video, error)

// Service uploads finished videos through the YouTube Data API.
type Service struct {
	cfg    Config
	insert insertFunc
}

// Option customizes the service.
type Option func(*Service)

// WithInsert overrides the upload call (for testing).
func WithInsert(insert insertFunc) Option {
	return func(s *Service) {
		if insert != nil {
			s.insert = insert
		}
	}
}

// NewService constructs an uploader from the supplied configuration.
func NewService(cfg Config, opts ...Option) *Service {
	svc := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Configured reports whether all three OAuth credentials are present.
func (s *Service) Configured() bool {
	return strings.TrimSpace(s.cfg.ClientID) != "" &&
		strings.TrimSpace(s.cfg.ClientSecret) != "" &&
		strings.TrimSpace(s.cfg.RefreshToken) != ""
}

// Upload sends the video file to YouTube and returns the assigned video ID.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	var result UploadResult
	if !s.Configured() {
		return result, services.Wrap(services.ErrConfiguration, "uploading", "upload",
			"youtube credentials are not configured", nil)
	}
	if strings.TrimSpace(req.FilePath) == "" {
		return result, services.Wrap(services.ErrValidation, "uploading", "upload", "video path required", nil)
	}
	if strings.TrimSpace(req.Title) == "" {
		return result, services.Wrap(services.ErrValidation, "uploading", "upload", "title required", nil)
	}

	file, err := os.Open(req.FilePath)
	if err != nil {
		return result, services.Wrap(services.ErrNotFound, "uploading", "upload", "open video file", err)
	}
	defer file.Close()

	timeout := defaultUploadTimeout
	if s.cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(s.cfg.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	video := s.buildVideo(req)

	insert := s.insert
	if insert == nil {
		insert, err = s.apiInsert(ctx)
		if err != nil {
			return result, classifyError("create service", err)
		}
	}

	uploaded, err := insert(ctx, video, file)
	if err != nil {
		return result, classifyError("insert video", err)
	}
	result.VideoID = uploaded.Id
	result.URL = "https://www.youtube.com/watch?v=" + uploaded.Id
	return result, nil
}

func (s *Service) buildVideo(req UploadRequest) *youtubeapi.Video {
	tags := req.Tags
	if len(tags) == 0 {
		tags = s.cfg.Tags
	}
	categoryID := s.cfg.CategoryID
	if categoryID == "" {
		categoryID = "22"
	}
	privacy := strings.TrimSpace(s.cfg.PrivacyStatus)
	if privacy == "" {
		privacy = "private"
	}

	status := &youtubeapi.VideoStatus{PrivacyStatus: privacy}
	if !req.PublishAt.IsZero() {
		// Scheduling requires the video to start out private.
		status.PrivacyStatus = "private"
		status.PublishAt = req.PublishAt.UTC().Format(time.RFC3339)
	}

	return &youtubeapi.Video{
		Snippet: &youtubeapi.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        tags,
			CategoryId:  categoryID,
		},
		Status: status,
	}
}

func (s *Service) apiInsert(ctx context.Context) (insertFunc, error) {
	conf := &oauth2.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtubeapi.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		RefreshToken: s.cfg.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	svc, err := youtubeapi.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, token)))
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, video *youtubeapi.Video, media io.Reader) (*youtubeapi.Video, error) {
		call := svc.Videos.Insert([]string{"snippet", "status"}, video)
		call.Media(media)
		return call.Context(ctx).Do()
	}, nil
}

// classifyError maps API failures onto the pipeline error taxonomy: quota
// exhaustion and bad credentials are fatal, server-side failures are
// retryable.
func classifyError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		for _, item := range apiErr.Errors {
			switch item.Reason {
			case "quotaExceeded", "dailyLimitExceeded", "uploadLimitExceeded", "rateLimitExceeded":
				return services.Wrap(services.ErrQuota, "uploading", operation, "youtube quota exhausted", err)
			}
		}
		switch {
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "uploading", operation,
				fmt.Sprintf("youtube rejected credentials (http %d)", apiErr.Code), err)
		case apiErr.Code >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "uploading", operation,
				fmt.Sprintf("youtube server error (http %d)", apiErr.Code), err)
		}
		return services.Wrap(services.ErrValidation, "uploading", operation,
			fmt.Sprintf("youtube rejected request (http %d)", apiErr.Code), err)
	}
	if strings.Contains(err.Error(), "invalid_grant") {
		return services.Wrap(services.ErrConfiguration, "uploading", operation, "refresh token rejected", err)
	}
	return services.Wrap(services.ErrTransient, "uploading", operation, "youtube request failed", err)
}
