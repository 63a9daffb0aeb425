package upload

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/project"
	"reelsmith/internal/services"
	"reelsmith/internal/services/youtube"
	"reelsmith/internal/stage"
)

type videoService interface {
	Upload(ctx context.Context, req youtube.UploadRequest) (youtube.UploadResult, error)
	Configured() bool
}

// Uploader is the upload stage handler: it publishes the composed video to
// YouTube and records the assigned video ID on the run.
type Uploader struct {
	cfg     *config.Config
	logger  *slog.Logger
	service videoService
}

// NewUploader constructs the upload handler.
func NewUploader(cfg *config.Config, logger *slog.Logger) *Uploader {
	service := youtube.NewService(youtube.Config{
		ClientID:       cfg.Upload.ClientID,
		ClientSecret:   cfg.Upload.ClientSecret,
		RefreshToken:   cfg.Upload.RefreshToken,
		CategoryID:     cfg.Upload.CategoryID,
		PrivacyStatus:  cfg.Upload.PrivacyStatus,
		Tags:           cfg.Upload.Tags,
		TimeoutSeconds: cfg.Upload.TimeoutSeconds,
	})
	return NewUploaderWithDependencies(cfg, logger, service)
}

// NewUploaderWithDependencies allows injecting a custom upload service (used for tests).
func NewUploaderWithDependencies(cfg *config.Config, logger *slog.Logger, service videoService) *Uploader {
	return &Uploader{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "upload"),
		service: service,
	}
}

func (u *Uploader) Prepare(ctx context.Context, item *project.Item) error {
	logger := logging.WithContext(ctx, u.logger)
	logger.Debug("starting upload preparation")
	return nil
}

func (u *Uploader) Execute(ctx context.Context, item *project.Item) error {
	logger := logging.WithContext(ctx, u.logger)

	if strings.TrimSpace(item.VideoPath) == "" {
		return services.Wrap(services.ErrPrecondition, "uploading", "validate inputs",
			"No composed video available; ensure composition completed", nil)
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = "Untitled video"
	}

	result, err := u.service.Upload(ctx, youtube.UploadRequest{
		FilePath:    filepath.Join(u.cfg.Paths.StaticDir, filepath.FromSlash(item.VideoPath)),
		Title:       title,
		Description: strings.TrimSpace(item.Prompt),
	})
	if err != nil {
		return err
	}

	item.UploadVideoID = result.VideoID
	logger.Info("video uploaded",
		logging.String("video_id", result.VideoID),
		logging.String("url", result.URL))
	return nil
}

func (u *Uploader) HealthCheck(ctx context.Context) stage.Health {
	const name = "upload"
	if u.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if !u.cfg.Upload.Enabled {
		return stage.Healthy(name)
	}
	if u.service == nil || !u.service.Configured() {
		return stage.Unhealthy(name, "youtube credentials not configured")
	}
	return stage.Healthy(name)
}
