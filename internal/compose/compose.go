package compose

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/semaphore"

	"reelsmith/internal/audiomix"
	"reelsmith/internal/captions"
	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/project"
	"reelsmith/internal/services"
	"reelsmith/internal/timeline"
)

// DurationProber reports a media file's duration in seconds.
type DurationProber func(ctx context.Context, binary, path string) (float64, error)

// Request carries everything the compositor needs for one render. All asset
// and clip paths are static-root-relative.
type Request struct {
	ProjectID string
	Scenes    []project.Scene
	Clips     []project.AudioClipRef
	Assets    project.Assets
	// Alignment maps scene index to word timestamps from forced alignment.
	// Scenes without an entry fall back to uniform word timing.
	Alignment map[int][]captions.Word
}

// Compositor renders the final vertical video from synthesized clips and
// background assets.
type Compositor struct {
	cfg    *config.Config
	logger *slog.Logger
	runner ffmpeg.Runner
	prober DurationProber
	slots  *semaphore.Weighted
}

// Option customizes the compositor.
type Option func(*Compositor)

// WithRunner overrides ffmpeg execution (for testing).
func WithRunner(runner ffmpeg.Runner) Option {
	return func(c *Compositor) {
		if runner != nil {
			c.runner = runner
		}
	}
}

// WithProber overrides duration probing (for testing).
func WithProber(prober DurationProber) Option {
	return func(c *Compositor) {
		if prober != nil {
			c.prober = prober
		}
	}
}

// NewCompositor constructs a compositor. Render admission is bounded by the
// configured slot count so concurrent runs cannot exhaust the host.
func NewCompositor(cfg *config.Config, logger *slog.Logger, opts ...Option) *Compositor {
	slots := int64(cfg.Render.Slots)
	if slots < 1 {
		slots = 1
	}
	compositor := &Compositor{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "compose"),
		runner: ffmpeg.Run,
		prober: func(ctx context.Context, binary, path string) (float64, error) {
			return ffprobe.Duration(ctx, binary, path)
		},
		slots: semaphore.NewWeighted(slots),
	}
	for _, opt := range opts {
		opt(compositor)
	}
	return compositor
}

// Compose renders the video and returns its static-root-relative path.
func (c *Compositor) Compose(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.ProjectID) == "" {
		return "", services.Wrap(services.ErrValidation, "composing_video", "compose", "project id required", nil)
	}
	if len(req.Clips) == 0 {
		return "", services.Wrap(services.ErrPrecondition, "composing_video", "compose", "no audio clips to compose", nil)
	}

	if err := c.slots.Acquire(ctx, 1); err != nil {
		return "", services.Wrap(services.ErrTimeout, "composing_video", "compose", "acquire render slot", err)
	}
	defer c.slots.Release(1)

	segments, total, err := c.buildTimeline(ctx, req)
	if err != nil {
		return "", err
	}

	workDir, err := os.MkdirTemp("", "reelsmith-render-")
	if err != nil {
		return "", services.Wrap(services.ErrRender, "composing_video", "compose", "create work dir", err)
	}
	defer os.RemoveAll(workDir)

	rendered := c.renderSegments(ctx, req, segments, workDir)
	if len(rendered) == 0 {
		return "", services.Wrap(services.ErrRender, "composing_video", "compose",
			"no segments rendered successfully", nil)
	}

	joined := filepath.Join(workDir, "joined.mp4")
	if err := c.concatSegments(ctx, rendered, workDir, joined); err != nil {
		return "", err
	}

	final := joined
	if strings.TrimSpace(req.Assets.Music) != "" {
		mixed := filepath.Join(workDir, "mixed.mp4")
		if err := c.mixMusic(ctx, req, joined, mixed, total); err != nil {
			return "", err
		}
		final = mixed
	}

	relPath, err := c.publish(final, req.ProjectID)
	if err != nil {
		return "", err
	}
	c.logger.InfoContext(ctx, "video composed",
		logging.String("video_path", relPath),
		logging.Int("segments", len(rendered)),
		logging.Float64("duration_seconds", total))
	return relPath, nil
}

func (c *Compositor) buildTimeline(ctx context.Context, req Request) ([]timeline.Segment, float64, error) {
	input := timeline.Input{
		Clips:             req.Clips,
		Scenes:            req.Scenes,
		Images:            req.Assets.Images,
		ImageSceneIndices: req.Assets.ImageSceneIndices,
		BackgroundVideo:   req.Assets.BackgroundVideo,
		PaddingSeconds:    c.cfg.Render.PaddingSeconds,
		SolidColor:        c.cfg.Render.BackgroundColor,
	}
	if input.BackgroundVideo != "" {
		duration, err := c.prober(ctx, c.cfg.FFprobeBinary(), c.absStatic(input.BackgroundVideo))
		if err != nil {
			c.logger.WarnContext(ctx, "background video unusable, falling back to solid",
				logging.String("path", input.BackgroundVideo), logging.Error(err))
			input.BackgroundVideo = ""
		} else {
			input.BackgroundVideoDuration = duration
		}
	}
	segments, total, err := timeline.Build(input)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrValidation, "composing_video", "build timeline", "", err)
	}
	return segments, total, nil
}

// renderSegments renders each segment, degrading to a solid background when a
// segment's resolved background fails, and skipping segments that still fail.
func (c *Compositor) renderSegments(ctx context.Context, req Request, segments []timeline.Segment, workDir string) []string {
	style := captions.Style{
		FontFile: c.cfg.Captions.FontFile,
		FontSize: c.cfg.Captions.FontSize,
	}
	rendered := make([]string, 0, len(segments))
	for i, seg := range segments {
		words := captions.Words(seg.Line, seg.Duration, req.Alignment[seg.SceneIndex])
		out := filepath.Join(workDir, fmt.Sprintf("segment_%03d.mp4", i))

		err := c.renderOne(ctx, seg, words, out, style)
		if err != nil && seg.Background.Kind != timeline.BackgroundSolid {
			c.logger.WarnContext(ctx, "segment background failed, retrying with solid color",
				logging.Int("scene_index", seg.SceneIndex), logging.Error(err))
			seg.Background = timeline.Background{Kind: timeline.BackgroundSolid, Color: c.cfg.Render.BackgroundColor}
			err = c.renderOne(ctx, seg, words, out, style)
		}
		if err != nil {
			c.logger.WarnContext(ctx, "skipping failed segment",
				logging.Int("scene_index", seg.SceneIndex), logging.Error(err))
			continue
		}
		rendered = append(rendered, out)
	}
	return rendered
}

func (c *Compositor) renderOne(ctx context.Context, seg timeline.Segment, words []captions.Word, out string, style captions.Style) error {
	args := buildSegmentArgs(segmentSpec{
		Segment:    seg,
		Words:      words,
		Style:      style,
		Render:     c.cfg.Render,
		AudioPath:  c.absStatic(seg.AudioPath),
		ImagePath:  c.absStatic(seg.Background.ImagePath),
		VideoPath:  c.absStatic(seg.Background.VideoPath),
		OutputPath: out,
	})
	return c.runner(ctx, c.cfg.FFmpegBinary(), args)
}

func (c *Compositor) concatSegments(ctx context.Context, rendered []string, workDir, out string) error {
	var list strings.Builder
	for _, path := range rendered {
		list.WriteString("file '")
		list.WriteString(strings.ReplaceAll(path, "'", `'\''`))
		list.WriteString("'\n")
	}
	listPath := filepath.Join(workDir, "segments.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return services.Wrap(services.ErrRender, "composing_video", "concat", "write concat list", err)
	}
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		out,
	}
	if err := c.runner(ctx, c.cfg.FFmpegBinary(), args); err != nil {
		return services.Wrap(services.ErrRender, "composing_video", "concat", "join segments", err)
	}
	return nil
}

func (c *Compositor) mixMusic(ctx context.Context, req Request, in, out string, total float64) error {
	musicPath := c.absStatic(req.Assets.Music)
	sourceDuration, err := c.prober(ctx, c.cfg.FFprobeBinary(), musicPath)
	if err != nil {
		c.logger.WarnContext(ctx, "music track unusable, keeping narration only",
			logging.String("path", req.Assets.Music), logging.Error(err))
		return copyFile(in, out)
	}

	volume := c.cfg.Music.Volume
	if req.Assets.MusicVolume != nil {
		volume = *req.Assets.MusicVolume
	}
	plan, err := audiomix.BuildPlan(sourceDuration, total, volume)
	if err != nil {
		return services.Wrap(services.ErrValidation, "composing_video", "mix music", "", err)
	}

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", in,
		"-i", musicPath,
		"-filter_complex", plan.FilterComplex(),
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", c.cfg.Render.AudioCodec,
		out,
	}
	if err := c.runner(ctx, c.cfg.FFmpegBinary(), args); err != nil {
		return services.Wrap(services.ErrRender, "composing_video", "mix music", "", err)
	}
	return nil
}

func (c *Compositor) publish(src, projectID string) (string, error) {
	destDir := filepath.Join(c.cfg.Paths.StaticDir, "video", projectID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrRender, "composing_video", "publish", "create output dir", err)
	}
	dest := filepath.Join(destDir, "final.mp4")
	if err := os.Rename(src, dest); err != nil {
		// Rename fails across filesystems; fall back to a copy.
		if copyErr := copyFile(src, dest); copyErr != nil {
			return "", services.Wrap(services.ErrRender, "composing_video", "publish", "move output", copyErr)
		}
	}
	return filepath.ToSlash(filepath.Join("video", projectID, "final.mp4")), nil
}

func (c *Compositor) absStatic(rel string) string {
	if rel == "" {
		return ""
	}
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.cfg.Paths.StaticDir, filepath.FromSlash(rel))
}

func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
