package compose

import (
	"context"
	"log/slog"
	"os"

	"reelsmith/internal/align"
	"reelsmith/internal/captions"
	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/project"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

type clipAligner interface {
	Available() error
	Align(ctx context.Context, audioPath, workDir string) ([]captions.Word, error)
}

// Composer is the composing stage handler. It gathers the run's clips and
// assets, optionally force-aligns captions, and delegates rendering to the
// compositor.
type Composer struct {
	cfg        *config.Config
	logger     *slog.Logger
	compositor *Compositor
	aligner    clipAligner
}

// NewComposer constructs the composing handler.
func NewComposer(cfg *config.Config, logger *slog.Logger) *Composer {
	return NewComposerWithDependencies(cfg, logger,
		NewCompositor(cfg, logger),
		align.NewAligner(cfg.Captions.WhisperModel))
}

// NewComposerWithDependencies allows injecting custom dependencies (used for tests).
func NewComposerWithDependencies(cfg *config.Config, logger *slog.Logger, compositor *Compositor, aligner clipAligner) *Composer {
	return &Composer{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "composer"),
		compositor: compositor,
		aligner:    aligner,
	}
}

func (c *Composer) Prepare(ctx context.Context, item *project.Item) error {
	logger := logging.WithContext(ctx, c.logger)
	logger.Debug("starting composition preparation")
	return nil
}

func (c *Composer) Execute(ctx context.Context, item *project.Item) error {
	logger := logging.WithContext(ctx, c.logger)

	clips, err := item.Clips()
	if err != nil {
		return services.Wrap(services.ErrValidation, "composing_video", "load clips",
			"Stored audio clips are unreadable; rerun synthesis", err)
	}
	if len(clips) == 0 {
		return services.Wrap(services.ErrPrecondition, "composing_video", "validate inputs",
			"No synthesized audio available; ensure the synthesis stage completed", nil)
	}
	scenes, err := item.Scenes()
	if err != nil {
		return services.Wrap(services.ErrValidation, "composing_video", "load scenes",
			"Stored script is unreadable; rerun script generation", err)
	}
	assets, err := item.GetAssets()
	if err != nil {
		return services.Wrap(services.ErrValidation, "composing_video", "load assets",
			"Stored assets are unreadable", err)
	}

	relPath, err := c.compositor.Compose(ctx, Request{
		ProjectID: item.ProjectID,
		Scenes:    scenes,
		Clips:     clips,
		Assets:    assets,
		Alignment: c.alignClips(ctx, clips, logger),
	})
	if err != nil {
		return err
	}

	item.SetVideo(relPath)
	logger.Info("composition complete", logging.String("video_path", relPath))
	return nil
}

// alignClips runs forced alignment over each clip when enabled. Alignment is
// advisory: any failure falls back to uniform word timing for that scene.
func (c *Composer) alignClips(ctx context.Context, clips []project.AudioClipRef, logger *slog.Logger) map[int][]captions.Word {
	if !c.cfg.Captions.AlignmentEnabled || c.aligner == nil {
		return nil
	}
	if err := c.aligner.Available(); err != nil {
		logger.Warn("alignment unavailable, using uniform caption timing", logging.Error(err))
		return nil
	}
	workDir, err := os.MkdirTemp("", "reelsmith-align-")
	if err != nil {
		logger.Warn("alignment work dir unavailable", logging.Error(err))
		return nil
	}
	defer os.RemoveAll(workDir)

	alignment := make(map[int][]captions.Word, len(clips))
	for _, clip := range clips {
		words, err := c.aligner.Align(ctx, c.compositor.absStatic(clip.FilePath), workDir)
		if err != nil {
			logger.Warn("clip alignment failed, using uniform caption timing",
				logging.Int("scene_index", clip.SceneIndex), logging.Error(err))
			continue
		}
		if len(words) > 0 {
			alignment[clip.SceneIndex] = words
		}
	}
	return alignment
}

func (c *Composer) HealthCheck(ctx context.Context) stage.Health {
	const name = "composer"
	if c.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if err := ffmpeg.LookPath(c.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy(name, "ffmpeg not found on PATH")
	}
	if err := ffmpeg.LookPath(c.cfg.FFprobeBinary()); err != nil {
		return stage.Unhealthy(name, "ffprobe not found on PATH")
	}
	return stage.Healthy(name)
}
