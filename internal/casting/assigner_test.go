package casting

import (
	"context"
	"errors"
	"testing"

	"reelsmith/internal/logging"
	"reelsmith/internal/project"
	"reelsmith/internal/services"
	"reelsmith/internal/testsupport"
)

func scriptedItem(t *testing.T, scenes []project.Scene) *project.Item {
	t.Helper()
	item := &project.Item{ProjectID: "proj-1", Status: project.StatusAssigningCast}
	if err := item.SetScenes(scenes); err != nil {
		t.Fatalf("set scenes: %v", err)
	}
	return item
}

func TestAssignRoundRobinByFirstAppearance(t *testing.T) {
	scenes := []project.Scene{
		{Speaker: "narrator", Line: "a"},
		{Speaker: "sailor", Line: "b"},
		{Speaker: "narrator", Line: "c"},
		{Speaker: "captain", Line: "d"},
	}
	cast := Assign(scenes, []string{"voice-a", "voice-b"}, project.VoiceParams{Provider: "edge"})

	if cast["narrator"].VoiceID != "voice-a" {
		t.Fatalf("narrator got %q", cast["narrator"].VoiceID)
	}
	if cast["sailor"].VoiceID != "voice-b" {
		t.Fatalf("sailor got %q", cast["sailor"].VoiceID)
	}
	// Pool wraps around for the third distinct speaker.
	if cast["captain"].VoiceID != "voice-a" {
		t.Fatalf("captain got %q", cast["captain"].VoiceID)
	}
}

func TestAssignIsStableAcrossRuns(t *testing.T) {
	scenes := []project.Scene{
		{Speaker: "b_speaker", Line: "x"},
		{Speaker: "a_speaker", Line: "y"},
	}
	first := Assign(scenes, []string{"v1", "v2"}, project.VoiceParams{})
	second := Assign(scenes, []string{"v1", "v2"}, project.VoiceParams{})
	if first["b_speaker"].VoiceID != second["b_speaker"].VoiceID {
		t.Fatal("assignment changed between runs")
	}
	// Appearance order wins, not lexical order.
	if first["b_speaker"].VoiceID != "v1" {
		t.Fatalf("first speaker got %q", first["b_speaker"].VoiceID)
	}
}

func TestExecuteStoresCast(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithVoices("en-US-AriaNeural", "en-US-GuyNeural"))
	assigner := NewAssigner(cfg, logging.NewNop())
	item := scriptedItem(t, []project.Scene{
		{Speaker: "narrator", Line: "hello"},
		{Speaker: "guest", Line: "hi"},
	})

	if err := assigner.Execute(context.Background(), item); err != nil {
		t.Fatalf("execute: %v", err)
	}
	cast, err := item.Cast()
	if err != nil {
		t.Fatalf("cast: %v", err)
	}
	if len(cast) != 2 {
		t.Fatalf("expected 2 cast entries, got %d", len(cast))
	}
	if cast["narrator"].Provider != cfg.TTS.Provider {
		t.Fatalf("expected provider carried into cast, got %q", cast["narrator"].Provider)
	}
}

func TestExecuteEmptyVoicePoolIsConfigurationError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithVoices())
	cfg.TTS.Voices = nil
	assigner := NewAssigner(cfg, logging.NewNop())
	item := scriptedItem(t, []project.Scene{{Speaker: "narrator", Line: "hello"}})

	err := assigner.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if services.Recoverable(err) {
		t.Fatal("configuration errors must not be retried")
	}
}

func TestExecuteWithoutScriptIsPreconditionError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	assigner := NewAssigner(cfg, logging.NewNop())
	item := &project.Item{ProjectID: "proj-1", Status: project.StatusAssigningCast}

	err := assigner.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}
