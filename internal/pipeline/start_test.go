package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"reelsmith/internal/logging"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/project"
	"reelsmith/internal/services"
	"reelsmith/internal/testsupport"
)

func newIdleManager(t *testing.T) (*pipeline.Manager, *project.Store) {
	t.Helper()
	cfg := pipelineConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := pipeline.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	set, _, _, _, _, _ := workingStages()
	mgr.ConfigureStages(set)
	return mgr, store
}

func TestStartRunRejectsMissingPrompt(t *testing.T) {
	mgr, _ := newIdleManager(t)
	_, err := mgr.StartRun(context.Background(), pipeline.RunRequest{ProjectID: "proj"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartRunRejectsActiveProject(t *testing.T) {
	mgr, _ := newIdleManager(t)
	ctx := context.Background()

	first, err := mgr.StartRun(ctx, pipeline.RunRequest{ProjectID: "proj", Prompt: "first"})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if first.Status != project.StatusPending {
		t.Fatalf("expected pending status, got %s", first.Status)
	}

	_, err = mgr.StartRun(ctx, pipeline.RunRequest{ProjectID: "proj", Prompt: "second"})
	if !errors.Is(err, services.ErrAlreadyRunning) {
		t.Fatalf("expected already-running error, got %v", err)
	}
}

func TestStartRunSerializesConcurrentCallers(t *testing.T) {
	mgr, store := newIdleManager(t)
	ctx := context.Background()

	const callers = 8
	start := make(chan struct{})
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := mgr.StartRun(ctx, pipeline.RunRequest{ProjectID: "proj-race", Prompt: "same prompt"})
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var created, rejected int
	for err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, services.ErrAlreadyRunning):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 || rejected != callers-1 {
		t.Fatalf("expected exactly one winner, got %d created / %d rejected", created, rejected)
	}

	runs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected a single run in the store, got %d", len(runs))
	}
}

func TestStartRunAllowsNewRunAfterTerminal(t *testing.T) {
	mgr, store := newIdleManager(t)
	ctx := context.Background()

	first, err := mgr.StartRun(ctx, pipeline.RunRequest{ProjectID: "proj", Prompt: "first"})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	first.SetFailed("boom")
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	second, err := mgr.StartRun(ctx, pipeline.RunRequest{ProjectID: "proj", Prompt: "second"})
	if err != nil {
		t.Fatalf("expected new run after failure, got %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a fresh run")
	}
}

func completedRun(t *testing.T, store *project.Store, projectID string) *project.Item {
	t.Helper()
	ctx := context.Background()
	item, err := store.NewRun(ctx, projectID, "Done", "prompt", false, project.Assets{})
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	if err := item.SetScenes([]project.Scene{{Speaker: "narrator", Line: "hello"}}); err != nil {
		t.Fatalf("SetScenes failed: %v", err)
	}
	if err := item.SetCast(map[string]project.VoiceParams{"narrator": {VoiceID: "en-US-AriaNeural"}}); err != nil {
		t.Fatalf("SetCast failed: %v", err)
	}
	if err := item.SetClips([]project.AudioClipRef{{SceneIndex: 0, FilePath: "audio/p/scene_000.mp3", DurationSeconds: 2}}); err != nil {
		t.Fatalf("SetClips failed: %v", err)
	}
	item.SetVideo("video/p/final.mp4")
	item.Status = project.StatusCompleted
	item.Progress = 1.0
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	return item
}

func TestRegenerateFromVideo(t *testing.T) {
	mgr, store := newIdleManager(t)
	item := completedRun(t, store, "proj-regen")

	updated, err := mgr.RegenerateFrom(context.Background(), "proj-regen", pipeline.RegenerateVideo)
	if err != nil {
		t.Fatalf("RegenerateFrom failed: %v", err)
	}
	if updated.ID != item.ID {
		t.Fatal("expected latest run to be reused")
	}
	if updated.Status != project.StatusAudioReady {
		t.Fatalf("expected audio_ready, got %s", updated.Status)
	}
	if updated.VideoPath != "" {
		t.Fatalf("expected video path cleared, got %q", updated.VideoPath)
	}
	if updated.ClipsJSON == "" {
		t.Fatal("expected narration clips preserved")
	}
}

func TestRegenerateFromAudio(t *testing.T) {
	mgr, store := newIdleManager(t)
	completedRun(t, store, "proj-regen-audio")

	updated, err := mgr.RegenerateFrom(context.Background(), "proj-regen-audio", pipeline.RegenerateAudio)
	if err != nil {
		t.Fatalf("RegenerateFrom failed: %v", err)
	}
	if updated.Status != project.StatusCastReady {
		t.Fatalf("expected cast_ready, got %s", updated.Status)
	}
	if updated.ClipsJSON != "" || updated.VideoPath != "" {
		t.Fatalf("expected downstream outputs cleared, got clips %q video %q", updated.ClipsJSON, updated.VideoPath)
	}
	if updated.CastJSON == "" {
		t.Fatal("expected cast preserved")
	}
}

func TestRegenerateRequiresSurvivingOutputs(t *testing.T) {
	mgr, store := newIdleManager(t)
	ctx := context.Background()

	item, err := store.NewRun(ctx, "proj-regen-missing", "", "prompt", false, project.Assets{})
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	item.SetFailed("script never generated")
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if _, err := mgr.RegenerateFrom(ctx, "proj-regen-missing", pipeline.RegenerateVideo); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}

	// The failed run must not have been touched.
	reloaded, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.Status != project.StatusFailed {
		t.Fatalf("expected run untouched, got %s", reloaded.Status)
	}
}

func TestRegenerateRejectsActiveRun(t *testing.T) {
	mgr, store := newIdleManager(t)
	ctx := context.Background()

	item, err := store.NewRun(ctx, "proj-regen-active", "", "prompt", false, project.Assets{})
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	item.Status = project.StatusComposingVideo
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if _, err := mgr.RegenerateFrom(ctx, "proj-regen-active", pipeline.RegenerateVideo); !errors.Is(err, services.ErrAlreadyRunning) {
		t.Fatalf("expected already-running error, got %v", err)
	}
}

func TestParseRegenerateEntry(t *testing.T) {
	if entry, ok := pipeline.ParseRegenerateEntry(" Video "); !ok || entry != pipeline.RegenerateVideo {
		t.Fatalf("expected video entry, got %q ok=%v", entry, ok)
	}
	if _, ok := pipeline.ParseRegenerateEntry("script"); ok {
		t.Fatal("script is not a regeneration entry point")
	}
}
