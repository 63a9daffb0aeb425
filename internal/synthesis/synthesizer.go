package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/project"
	"reelsmith/internal/services"
	"reelsmith/internal/services/tts"
	"reelsmith/internal/stage"
)

// DurationProber reports a media file's duration in seconds.
type DurationProber func(ctx context.Context, binary, path string) (float64, error)

// Synthesizer is the audio stage handler: it renders each scene's line through
// the configured TTS provider and records the resulting clips with their
// measured durations.
type Synthesizer struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider tts.Provider
	prober   DurationProber
}

// NewSynthesizer constructs the synthesis handler. Provider construction
// errors are deferred to Execute so the daemon can start with a broken TTS
// section and report it per run.
func NewSynthesizer(cfg *config.Config, logger *slog.Logger) *Synthesizer {
	provider, err := tts.NewProvider(tts.Config{
		Provider:       cfg.TTS.Provider,
		Rate:           cfg.TTS.Rate,
		Pitch:          cfg.TTS.Pitch,
		PiperModelPath: cfg.TTS.PiperModelPath,
	})
	if err != nil {
		logging.NewComponentLogger(logger, "synthesis").Warn("tts provider unavailable", logging.Error(err))
	}
	return NewSynthesizerWithDependencies(cfg, logger, provider, nil)
}

// NewSynthesizerWithDependencies allows injecting custom dependencies (used for tests).
func NewSynthesizerWithDependencies(cfg *config.Config, logger *slog.Logger, provider tts.Provider, prober DurationProber) *Synthesizer {
	if prober == nil {
		prober = func(ctx context.Context, binary, path string) (float64, error) {
			return ffprobe.Duration(ctx, binary, path)
		}
	}
	return &Synthesizer{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "synthesis"),
		provider: provider,
		prober:   prober,
	}
}

func (s *Synthesizer) Prepare(ctx context.Context, item *project.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	logger.Debug("starting synthesis preparation")
	return nil
}

func (s *Synthesizer) Execute(ctx context.Context, item *project.Item) error {
	logger := logging.WithContext(ctx, s.logger)

	if s.provider == nil {
		return services.Wrap(services.ErrConfiguration, "synthesizing_audio", "validate provider",
			"TTS provider is not configured; check the tts section of the config", nil)
	}
	scenes, err := item.Scenes()
	if err != nil {
		return services.Wrap(services.ErrValidation, "synthesizing_audio", "load script",
			"Stored script is unreadable; rerun script generation", err)
	}
	if len(scenes) == 0 {
		return services.Wrap(services.ErrPrecondition, "synthesizing_audio", "validate inputs",
			"No script available; ensure script generation completed", nil)
	}
	cast, err := item.Cast()
	if err != nil {
		return services.Wrap(services.ErrValidation, "synthesizing_audio", "load cast",
			"Stored cast is unreadable; rerun casting", err)
	}
	if len(cast) == 0 {
		return services.Wrap(services.ErrPrecondition, "synthesizing_audio", "validate inputs",
			"No cast available; ensure casting completed", nil)
	}

	clips := make([]project.AudioClipRef, 0, len(scenes))
	for i, scene := range scenes {
		voice, ok := cast[scene.Speaker]
		if !ok {
			return services.Wrap(services.ErrPrecondition, "synthesizing_audio", "resolve voice",
				fmt.Sprintf("Speaker %q has no cast voice; rerun casting", scene.Speaker), nil)
		}

		relPath := s.clipPath(item.ProjectID, i)
		absPath := filepath.Join(s.cfg.Paths.StaticDir, filepath.FromSlash(relPath))
		err := s.provider.Synthesize(ctx, tts.Request{
			Text:       scene.Line,
			VoiceID:    voice.VoiceID,
			Rate:       voice.Rate,
			Pitch:      voice.Pitch,
			OutputPath: absPath,
		})
		if err != nil {
			return services.Wrap(services.ErrTransient, "synthesizing_audio", "synthesize scene",
				fmt.Sprintf("Synthesis failed for scene %d", i), err)
		}

		duration, err := s.prober(ctx, s.cfg.FFprobeBinary(), absPath)
		if err != nil {
			return services.Wrap(services.ErrTransient, "synthesizing_audio", "probe clip",
				fmt.Sprintf("Synthesized clip for scene %d is unreadable", i), err)
		}
		if duration <= 0 {
			return services.Wrap(services.ErrRender, "synthesizing_audio", "probe clip",
				fmt.Sprintf("Synthesized clip for scene %d has no duration", i), nil)
		}

		clips = append(clips, project.AudioClipRef{
			SceneIndex:      i,
			FilePath:        relPath,
			DurationSeconds: duration,
		})
		logger.Debug("scene synthesized",
			logging.Int("scene_index", i),
			logging.String("voice", voice.VoiceID),
			logging.Float64("duration_seconds", duration))
	}

	if err := item.SetClips(clips); err != nil {
		return services.Wrap(services.ErrValidation, "synthesizing_audio", "store clips", "", err)
	}
	logger.Info("synthesis complete", logging.Int("clips", len(clips)))
	return nil
}

func (s *Synthesizer) HealthCheck(ctx context.Context) stage.Health {
	const name = "synthesis"
	if s.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if s.provider == nil {
		return stage.Unhealthy(name, "tts provider unavailable")
	}
	if err := s.provider.Available(); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}

// clipPath names a scene's clip under the static root. Piper emits WAV; edge
// emits MP3.
func (s *Synthesizer) clipPath(projectID string, sceneIndex int) string {
	ext := "mp3"
	if s.provider != nil && strings.EqualFold(s.provider.Name(), "piper") {
		ext = "wav"
	}
	return filepath.ToSlash(filepath.Join("audio", projectID, fmt.Sprintf("scene_%03d.%s", sceneIndex, ext)))
}
