package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reelsmith/internal/logging"
	"reelsmith/internal/project"
	"reelsmith/internal/services"
	"reelsmith/internal/services/tts"
	"reelsmith/internal/testsupport"
)

type stubProvider struct {
	name     string
	requests []tts.Request
	err      error
}

func (p *stubProvider) Name() string {
	if p.name == "" {
		return "edge"
	}
	return p.name
}

func (p *stubProvider) Synthesize(ctx context.Context, req tts.Request) error {
	p.requests = append(p.requests, req)
	return p.err
}

func (p *stubProvider) Available() error { return nil }

func castItem(t *testing.T) *project.Item {
	t.Helper()
	item := &project.Item{ProjectID: "proj-1", Status: project.StatusSynthesizingAudio}
	err := item.SetScenes([]project.Scene{
		{Speaker: "narrator", Line: "The sea was calm."},
		{Speaker: "sailor", Line: "Storm's coming."},
	})
	if err != nil {
		t.Fatalf("set scenes: %v", err)
	}
	err = item.SetCast(map[string]project.VoiceParams{
		"narrator": {Provider: "edge", VoiceID: "en-US-AriaNeural"},
		"sailor":   {Provider: "edge", VoiceID: "en-US-GuyNeural"},
	})
	if err != nil {
		t.Fatalf("set cast: %v", err)
	}
	return item
}

func fixedProber(duration float64) DurationProber {
	return func(ctx context.Context, binary, path string) (float64, error) {
		return duration, nil
	}
}

func TestSynthesizerEmitsClipPerScene(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	provider := &stubProvider{}
	synth := NewSynthesizerWithDependencies(cfg, logging.NewNop(), provider, fixedProber(2.5))

	item := castItem(t)
	if err := synth.Execute(context.Background(), item); err != nil {
		t.Fatalf("execute: %v", err)
	}

	clips, err := item.Clips()
	if err != nil {
		t.Fatalf("clips: %v", err)
	}
	if len(clips) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(clips))
	}
	if clips[0].SceneIndex != 0 || clips[1].SceneIndex != 1 {
		t.Fatalf("unexpected scene indexes %+v", clips)
	}
	if clips[0].FilePath != "audio/proj-1/scene_000.mp3" {
		t.Fatalf("unexpected clip path %q", clips[0].FilePath)
	}
	if clips[0].DurationSeconds != 2.5 {
		t.Fatalf("unexpected duration %v", clips[0].DurationSeconds)
	}
	if provider.requests[0].VoiceID != "en-US-AriaNeural" || provider.requests[1].VoiceID != "en-US-GuyNeural" {
		t.Fatalf("voices not taken from cast: %+v", provider.requests)
	}
	if !strings.HasPrefix(provider.requests[0].OutputPath, cfg.Paths.StaticDir) {
		t.Fatalf("expected absolute output under static root, got %q", provider.requests[0].OutputPath)
	}
}

func TestSynthesizerPiperUsesWavExtension(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	provider := &stubProvider{name: "piper"}
	synth := NewSynthesizerWithDependencies(cfg, logging.NewNop(), provider, fixedProber(1))

	item := castItem(t)
	if err := synth.Execute(context.Background(), item); err != nil {
		t.Fatalf("execute: %v", err)
	}
	clips, _ := item.Clips()
	if clips[0].FilePath != "audio/proj-1/scene_000.wav" {
		t.Fatalf("unexpected clip path %q", clips[0].FilePath)
	}
}

func TestSynthesizerMissingVoiceIsPrecondition(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	synth := NewSynthesizerWithDependencies(cfg, logging.NewNop(), &stubProvider{}, fixedProber(1))

	item := castItem(t)
	if err := item.SetCast(map[string]project.VoiceParams{"narrator": {VoiceID: "v"}}); err != nil {
		t.Fatalf("set cast: %v", err)
	}
	err := synth.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestSynthesizerProviderFailureIsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	provider := &stubProvider{err: errors.New("engine crashed")}
	synth := NewSynthesizerWithDependencies(cfg, logging.NewNop(), provider, fixedProber(1))

	err := synth.Execute(context.Background(), castItem(t))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !services.Recoverable(err) {
		t.Fatal("provider failures should be retryable")
	}
}

func TestSynthesizerZeroDurationClipIsRenderError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	synth := NewSynthesizerWithDependencies(cfg, logging.NewNop(), &stubProvider{}, fixedProber(0))

	err := synth.Execute(context.Background(), castItem(t))
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected render error, got %v", err)
	}
}

func TestSynthesizerWithoutProviderIsConfigurationError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	synth := NewSynthesizerWithDependencies(cfg, logging.NewNop(), nil, fixedProber(1))

	err := synth.Execute(context.Background(), castItem(t))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
