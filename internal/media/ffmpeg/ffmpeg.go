// Package ffmpeg isolates ffmpeg process execution so composition logic can be
// unit tested with an injected runner.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an ffmpeg invocation. The production runner shells out; tests
// substitute a recorder.
type Runner func(ctx context.Context, binary string, args []string) error

// Run is the production Runner. It captures combined output and folds the tail
// into the returned error, since ffmpeg reports diagnostics on stderr.
func Run(ctx context.Context, binary string, args []string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(string(output), 2048))
	}
	return nil
}

// LookPath reports whether the binary is resolvable on PATH.
func LookPath(binary string) error {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	_, err := exec.LookPath(binary)
	return err
}

func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
