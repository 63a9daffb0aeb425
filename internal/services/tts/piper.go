package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// PiperCommand is the piper CLI entry point.
const PiperCommand = "piper"

// StdinCommandRunner executes a command that reads its payload from stdin.
type StdinCommandRunner func(ctx context.Context, stdin, name string, args ...string) error

// PiperProvider synthesizes speech through a local piper model. Piper reads
// the narration text from stdin and writes a WAV file.
type PiperProvider struct {
	cfg    Config
	runner StdinCommandRunner
}

// NewPiperProvider constructs a piper backed provider.
func NewPiperProvider(cfg Config) *PiperProvider {
	return &PiperProvider{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (p *PiperProvider) WithCommandRunner(runner StdinCommandRunner) {
	p.runner = runner
}

// Name implements Provider.
func (p *PiperProvider) Name() string { return "piper" }

// Available implements Provider.
func (p *PiperProvider) Available() error {
	if _, err := exec.LookPath(PiperCommand); err != nil {
		return fmt.Errorf("tts: %s not found on PATH: %w", PiperCommand, err)
	}
	return nil
}

// Synthesize renders the request through piper. The configured model path is
// always used; piper has no per-request voice selection, so the request voice
// only participates in validation.
func (p *PiperProvider) Synthesize(ctx context.Context, req Request) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	if err := ensureOutputDir(req.OutputPath); err != nil {
		return err
	}

	args := []string{
		"--model", p.cfg.PiperModelPath,
		"--output_file", req.OutputPath,
	}
	text := SanitizeText(req.Text)
	if p.runner != nil {
		return p.runner(ctx, text, PiperCommand, args...)
	}

	cmd := exec.CommandContext(ctx, PiperCommand, args...) //nolint:gosec
	cmd.Stdin = strings.NewReader(text + "\n")
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("piper: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
