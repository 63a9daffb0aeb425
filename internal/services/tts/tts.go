package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"
)

// CommandRunner executes an external synthesis command. Tests swap it out to
// avoid invoking real binaries.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Request describes one synthesis job: a sanitized line of narration rendered
// to an audio file with a specific voice.
type Request struct {
	Text       string
	VoiceID    string
	Rate       string
	Pitch      string
	OutputPath string
}

// Provider synthesizes narration audio. Implementations wrap an external
// engine selected by configuration.
type Provider interface {
	// Name returns the provider identifier used in configuration ("edge", "piper").
	Name() string
	// Synthesize renders the request text to the request output path.
	Synthesize(ctx context.Context, req Request) error
	// Available reports whether the provider's binary can be found.
	Available() error
}

// Config carries the provider selection and engine settings.
type Config struct {
	Provider       string
	Rate           string
	Pitch          string
	PiperModelPath string
}

// NewProvider constructs the configured provider. Unknown provider names are
// an error so misconfiguration surfaces before any synthesis is attempted.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "edge":
		return NewEdgeProvider(cfg), nil
	case "piper":
		if strings.TrimSpace(cfg.PiperModelPath) == "" {
			return nil, fmt.Errorf("tts: piper provider requires a model path")
		}
		return NewPiperProvider(cfg), nil
	default:
		return nil, fmt.Errorf("tts: unknown provider %q", cfg.Provider)
	}
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("tts: text required")
	}
	if strings.TrimSpace(req.VoiceID) == "" {
		return fmt.Errorf("tts: voice required")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return fmt.Errorf("tts: output path required")
	}
	return nil
}

func ensureOutputDir(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("tts: ensure output dir: %w", err)
		}
	}
	return nil
}

func runCommand(ctx context.Context, runner CommandRunner, name string, args ...string) error {
	if runner != nil {
		return runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// SanitizeText strips markup and control characters that confuse speech
// engines and collapses whitespace. A line that sanitizes to nothing becomes
// an ellipsis so the scene still produces a clip and the timeline keeps its
// shape.
func SanitizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	depth := 0
	for _, r := range text {
		switch {
		case r == '<':
			depth++
		case r == '>':
			if depth > 0 {
				depth--
			}
		case depth > 0:
			// inside a tag
		case unicode.IsControl(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")
	if cleaned == "" {
		return "…"
	}
	return cleaned
}
