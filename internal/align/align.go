// Package align produces word-level timestamps for synthesized narration by
// running whisper over each clip. Alignment is best effort: when the binary
// is missing or a clip fails to transcribe, callers fall back to uniform word
// timing and the render continues.
package align

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"reelsmith/internal/captions"
)

// WhisperCommand is the whisper CLI entry point.
const WhisperCommand = "whisper"

// CommandRunner executes the whisper command. Tests swap it out.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Aligner wraps the whisper CLI for per-clip forced alignment.
type Aligner struct {
	model  string
	runner CommandRunner

	probe singleflight.Group
}

// NewAligner constructs an aligner for the given whisper model size.
func NewAligner(model string) *Aligner {
	if strings.TrimSpace(model) == "" {
		model = "small"
	}
	return &Aligner{model: model}
}

// WithCommandRunner sets a custom command runner (for testing).
func (a *Aligner) WithCommandRunner(runner CommandRunner) {
	a.runner = runner
}

// Available reports whether the whisper binary can be found. Concurrent
// callers share one lookup.
func (a *Aligner) Available() error {
	_, err, _ := a.probe.Do("lookup", func() (any, error) {
		if _, err := exec.LookPath(WhisperCommand); err != nil {
			return nil, fmt.Errorf("align: %s not found on PATH: %w", WhisperCommand, err)
		}
		return nil, nil
	})
	return err
}

// Align transcribes the clip with word timestamps and returns the words in
// clip-relative time. workDir receives whisper's output files.
func (a *Aligner) Align(ctx context.Context, audioPath, workDir string) ([]captions.Word, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, fmt.Errorf("align: audio path required")
	}
	if workDir == "" {
		workDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("align: ensure work dir: %w", err)
	}

	args := []string{
		audioPath,
		"--model", a.model,
		"--output_format", "json",
		"--output_dir", workDir,
		"--word_timestamps", "True",
		"--fp16", "False",
	}
	if err := a.run(ctx, WhisperCommand, args...); err != nil {
		return nil, fmt.Errorf("align: whisper: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	return LoadWords(filepath.Join(workDir, baseName+".json"))
}

func (a *Aligner) run(ctx context.Context, name string, args ...string) error {
	if a.runner != nil {
		return a.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

type whisperWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperPayload struct {
	Segments []struct {
		Words []whisperWord `json:"words"`
	} `json:"segments"`
}

// LoadWords parses a whisper JSON transcript into caption words.
func LoadWords(jsonPath string) ([]captions.Word, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("align: read transcript: %w", err)
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("align: parse transcript: %w", err)
	}
	var words []captions.Word
	for _, segment := range payload.Segments {
		for _, w := range segment.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" {
				continue
			}
			words = append(words, captions.Word{Text: text, Start: w.Start, End: w.End})
		}
	}
	return words, nil
}
