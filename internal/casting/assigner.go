package casting

import (
	"context"
	"log/slog"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/project"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

// Assigner is the casting stage handler: it maps each distinct speaker in the
// script onto a voice from the configured pool. Assignment is round-robin in
// order of first appearance, so the same script always yields the same cast.
type Assigner struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewAssigner constructs the casting handler.
func NewAssigner(cfg *config.Config, logger *slog.Logger) *Assigner {
	return &Assigner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "casting"),
	}
}

func (a *Assigner) Prepare(ctx context.Context, item *project.Item) error {
	logger := logging.WithContext(ctx, a.logger)
	logger.Debug("starting cast preparation")
	return nil
}

func (a *Assigner) Execute(ctx context.Context, item *project.Item) error {
	logger := logging.WithContext(ctx, a.logger)

	scenes, err := item.Scenes()
	if err != nil {
		return services.Wrap(services.ErrValidation, "assigning_cast", "load script",
			"Stored script is unreadable; rerun script generation", err)
	}
	if len(scenes) == 0 {
		return services.Wrap(services.ErrPrecondition, "assigning_cast", "validate inputs",
			"No script available; ensure script generation completed", nil)
	}

	voices := voicePool(a.cfg.TTS.Voices)
	if len(voices) == 0 {
		return services.Wrap(services.ErrConfiguration, "assigning_cast", "validate voices",
			"No voices configured; set tts.voices in the config", nil)
	}

	cast := Assign(scenes, voices, project.VoiceParams{
		Provider: a.cfg.TTS.Provider,
		Rate:     a.cfg.TTS.Rate,
		Pitch:    a.cfg.TTS.Pitch,
	})
	if err := item.SetCast(cast); err != nil {
		return services.Wrap(services.ErrValidation, "assigning_cast", "store cast", "", err)
	}
	logger.Info("cast assigned",
		logging.Int("speakers", len(cast)),
		logging.Int("voices", len(voices)))
	return nil
}

func (a *Assigner) HealthCheck(ctx context.Context) stage.Health {
	const name = "casting"
	if a.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if len(voicePool(a.cfg.TTS.Voices)) == 0 {
		return stage.Unhealthy(name, "no voices configured")
	}
	return stage.Healthy(name)
}

// Assign walks the scenes in order and gives each newly seen speaker the next
// voice in the pool, wrapping around when speakers outnumber voices.
func Assign(scenes []project.Scene, voices []string, defaults project.VoiceParams) map[string]project.VoiceParams {
	cast := make(map[string]project.VoiceParams)
	next := 0
	for _, scene := range scenes {
		speaker := strings.ToLower(strings.TrimSpace(scene.Speaker))
		if speaker == "" {
			continue
		}
		if _, ok := cast[speaker]; ok {
			continue
		}
		params := defaults
		params.VoiceID = voices[next%len(voices)]
		cast[speaker] = params
		next++
	}
	return cast
}

func voicePool(voices []string) []string {
	pool := make([]string, 0, len(voices))
	for _, voice := range voices {
		if trimmed := strings.TrimSpace(voice); trimmed != "" {
			pool = append(pool, trimmed)
		}
	}
	return pool
}
