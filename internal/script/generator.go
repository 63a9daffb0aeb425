package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/project"
	"reelsmith/internal/services"
	"reelsmith/internal/services/llm"
	"reelsmith/internal/stage"
)

type completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Generator is the script stage handler: it turns the run prompt into a
// validated list of narrated scenes via an LLM chat completion.
type Generator struct {
	cfg    *config.Config
	logger *slog.Logger
	client completer
}

// NewGenerator constructs the script handler.
func NewGenerator(cfg *config.Config, logger *slog.Logger) *Generator {
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	return NewGeneratorWithDependencies(cfg, logger, client)
}

// NewGeneratorWithDependencies allows injecting a custom LLM client (used for tests).
func NewGeneratorWithDependencies(cfg *config.Config, logger *slog.Logger, client completer) *Generator {
	return &Generator{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "script"),
		client: client,
	}
}

func (g *Generator) Prepare(ctx context.Context, item *project.Item) error {
	logger := logging.WithContext(ctx, g.logger)
	logger.Debug("starting script preparation")
	return nil
}

func (g *Generator) Execute(ctx context.Context, item *project.Item) error {
	logger := logging.WithContext(ctx, g.logger)

	prompt := strings.TrimSpace(item.Prompt)
	if prompt == "" {
		return services.Wrap(services.ErrValidation, "generating_script", "validate inputs",
			"Run has no prompt to generate a script from", nil)
	}

	content, err := g.client.CompleteJSON(ctx, systemPrompt, userPrompt(prompt))
	if err != nil {
		return services.Wrap(services.ErrTransient, "generating_script", "chat completion",
			"Script generation request failed", err)
	}

	var payload scriptPayload
	if err := llm.DecodeLLMJSON(content, &payload); err != nil {
		return services.Wrap(services.ErrTransient, "generating_script", "parse script",
			"Model returned an unparseable script", err)
	}

	scenes, err := validateScenes(payload.Scenes)
	if err != nil {
		return services.Wrap(services.ErrValidation, "generating_script", "validate script", "", err)
	}

	if err := item.SetScenes(scenes); err != nil {
		return services.Wrap(services.ErrValidation, "generating_script", "store script", "", err)
	}
	if title := strings.TrimSpace(payload.Title); title != "" && strings.TrimSpace(item.Title) == "" {
		item.Title = title
	}
	logger.Info("script generated",
		logging.Int("scenes", len(scenes)),
		logging.String("title", item.Title))
	return nil
}

func (g *Generator) HealthCheck(ctx context.Context) stage.Health {
	const name = "script"
	if g.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(g.cfg.LLM.APIKey) == "" {
		return stage.Unhealthy(name, "llm api key not configured")
	}
	if g.client == nil {
		return stage.Unhealthy(name, "llm client unavailable")
	}
	return stage.Healthy(name)
}

type rawScene struct {
	Speaker               string  `json:"speaker"`
	Line                  string  `json:"line"`
	TargetDurationSeconds float64 `json:"target_duration_seconds"`
}

type scriptPayload struct {
	Title  string     `json:"title"`
	Scenes []rawScene `json:"scenes"`
}

func validateScenes(raw []rawScene) ([]project.Scene, error) {
	scenes := make([]project.Scene, 0, len(raw))
	for i, s := range raw {
		speaker := strings.ToLower(strings.TrimSpace(s.Speaker))
		line := strings.TrimSpace(s.Line)
		if speaker == "" {
			return nil, fmt.Errorf("scene %d has no speaker", i)
		}
		if line == "" {
			return nil, fmt.Errorf("scene %d has no line", i)
		}
		if s.TargetDurationSeconds < 0 {
			return nil, fmt.Errorf("scene %d has negative target duration", i)
		}
		scenes = append(scenes, project.Scene{
			Speaker:               speaker,
			Line:                  line,
			TargetDurationSeconds: s.TargetDurationSeconds,
		})
	}
	if len(scenes) == 0 {
		return nil, fmt.Errorf("model returned an empty script")
	}
	return scenes, nil
}
