package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// EdgeCommand is the edge-tts CLI entry point.
const EdgeCommand = "edge-tts"

// EdgeProvider synthesizes speech through the edge-tts command line tool.
type EdgeProvider struct {
	cfg    Config
	runner CommandRunner
}

// NewEdgeProvider constructs an edge-tts backed provider.
func NewEdgeProvider(cfg Config) *EdgeProvider {
	return &EdgeProvider{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (p *EdgeProvider) WithCommandRunner(runner CommandRunner) {
	p.runner = runner
}

// Name implements Provider.
func (p *EdgeProvider) Name() string { return "edge" }

// Available implements Provider.
func (p *EdgeProvider) Available() error {
	if _, err := exec.LookPath(EdgeCommand); err != nil {
		return fmt.Errorf("tts: %s not found on PATH: %w", EdgeCommand, err)
	}
	return nil
}

// Synthesize renders the request through edge-tts. Rate and pitch fall back to
// the configured defaults when the request leaves them empty.
func (p *EdgeProvider) Synthesize(ctx context.Context, req Request) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	if err := ensureOutputDir(req.OutputPath); err != nil {
		return err
	}

	args := []string{
		"--text", SanitizeText(req.Text),
		"--voice", req.VoiceID,
		"--write-media", req.OutputPath,
	}
	if rate := firstValue(req.Rate, p.cfg.Rate); rate != "" {
		args = append(args, "--rate", rate)
	}
	if pitch := firstValue(req.Pitch, p.cfg.Pitch); pitch != "" {
		args = append(args, "--pitch", pitch)
	}

	if err := runCommand(ctx, p.runner, EdgeCommand, args...); err != nil {
		return fmt.Errorf("edge-tts: %w", err)
	}
	return nil
}

func firstValue(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
