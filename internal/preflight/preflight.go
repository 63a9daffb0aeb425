package preflight

import (
	"context"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/services/tts"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results,
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Static root", cfg.Paths.StaticDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	)

	results = append(results,
		CheckBinary("FFmpeg", cfg.FFmpegBinary(), false),
		CheckBinary("FFprobe", cfg.FFprobeBinary(), false),
		CheckBinary("TTS engine", ttsBinary(cfg), false),
	)
	if cfg.Captions.AlignmentEnabled {
		// Alignment degrades to uniform caption timing, so a missing binary
		// is a warning rather than a blocker.
		results = append(results, CheckBinary("Whisper", "whisper", true))
	}

	if cfg.Preflight.MinFreeGiB > 0 {
		results = append(results, CheckFreeSpace("Static root disk", cfg.Paths.StaticDir, cfg.Preflight.MinFreeGiB))
	}

	results = append(results, CheckLLM(ctx, "LLM API", cfg))

	return results
}

// Passed reports whether every non-optional check succeeded.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed && !result.Optional {
			return false
		}
	}
	return true
}

func ttsBinary(cfg *config.Config) string {
	if strings.EqualFold(strings.TrimSpace(cfg.TTS.Provider), "piper") {
		return tts.PiperCommand
	}
	return tts.EdgeCommand
}
