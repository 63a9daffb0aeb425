package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/project"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
	"reelsmith/internal/testsupport"
)

type stubStage struct {
	name        string
	health      stage.Health
	prepareErr  error
	executeHook func(*project.Item) error

	mu        sync.Mutex
	execCalls int
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, _ *project.Item) error {
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, item *project.Item) error {
	s.mu.Lock()
	s.execCalls++
	s.mu.Unlock()
	if s.executeHook != nil {
		return s.executeHook(item)
	}
	return nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

func (s *stubStage) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execCalls
}

type recordingNotifier struct {
	mu        sync.Mutex
	starts    []string
	completes []string
	failures  []string
	uploads   []string
}

func (r *recordingNotifier) NotifyRunStarted(_ context.Context, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, title)
	return nil
}

func (r *recordingNotifier) NotifyRunCompleted(_ context.Context, title, videoPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes = append(r.completes, videoPath)
	return nil
}

func (r *recordingNotifier) NotifyRunFailed(_ context.Context, _, stageName, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, stageName)
	return nil
}

func (r *recordingNotifier) NotifyUploaded(_ context.Context, _, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, url)
	return nil
}

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

func (r *recordingNotifier) snapshot() (starts, completes, failures, uploads []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.starts...),
		append([]string(nil), r.completes...),
		append([]string(nil), r.failures...),
		append([]string(nil), r.uploads...)
}

func pipelineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.PollInterval = 0
	cfg.Workflow.RetryBackoffSeconds = 0
	return cfg
}

func workingStages() (pipeline.StageSet, *stubStage, *stubStage, *stubStage, *stubStage, *stubStage) {
	script := newStubStage("script")
	script.executeHook = func(item *project.Item) error {
		item.Title = "Generated Title"
		return item.SetScenes([]project.Scene{
			{Speaker: "narrator", Line: "Once upon a time."},
			{Speaker: "narrator", Line: "The end."},
		})
	}
	casting := newStubStage("casting")
	casting.executeHook = func(item *project.Item) error {
		return item.SetCast(map[string]project.VoiceParams{
			"narrator": {VoiceID: "en-US-AriaNeural"},
		})
	}
	synthesis := newStubStage("synthesis")
	synthesis.executeHook = func(item *project.Item) error {
		return item.SetClips([]project.AudioClipRef{
			{SceneIndex: 0, FilePath: "audio/proj/scene_000.mp3", DurationSeconds: 2.5},
			{SceneIndex: 1, FilePath: "audio/proj/scene_001.mp3", DurationSeconds: 1.5},
		})
	}
	compose := newStubStage("compose")
	compose.executeHook = func(item *project.Item) error {
		item.SetVideo("video/proj/final.mp4")
		return nil
	}
	upload := newStubStage("upload")
	upload.executeHook = func(item *project.Item) error {
		item.UploadVideoID = "vid-123"
		return nil
	}
	set := pipeline.StageSet{
		Script:    script,
		Casting:   casting,
		Synthesis: synthesis,
		Compose:   compose,
		Upload:    upload,
	}
	return set, script, casting, synthesis, compose, upload
}

func startManager(t *testing.T, cfg *config.Config, store *project.Store, set pipeline.StageSet, notifier *recordingNotifier) *pipeline.Manager {
	t.Helper()
	mgr := pipeline.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(set)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)
	return mgr
}

func waitForStatus(t *testing.T, store *project.Store, id int64, want project.Status) *project.Item {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for status %s", want)
		default:
		}
		item, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if item != nil && item.Status == want {
			return item
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestManagerRunsLadderToCompletion(t *testing.T) {
	cfg := pipelineConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	set, _, _, _, _, upload := workingStages()
	notifier := &recordingNotifier{}
	mgr := startManager(t, cfg, store, set, notifier)

	item, err := mgr.StartRun(context.Background(), pipeline.RunRequest{
		ProjectID: "proj-ladder",
		Prompt:    "A story about lighthouses",
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	final := waitForStatus(t, store, item.ID, project.StatusCompleted)
	if final.Progress != 1.0 {
		t.Fatalf("expected progress 1.0, got %f", final.Progress)
	}
	if final.VideoPath != "video/proj/final.mp4" {
		t.Fatalf("unexpected video path %q", final.VideoPath)
	}
	if final.Title != "Generated Title" {
		t.Fatalf("unexpected title %q", final.Title)
	}
	if upload.calls() != 0 {
		t.Fatalf("upload stage should not run without auto-upload, got %d calls", upload.calls())
	}

	deadline := time.After(5 * time.Second)
	for {
		starts, completes, _, uploads := notifier.snapshot()
		if len(starts) == 1 && len(completes) == 1 {
			if completes[0] != "video/proj/final.mp4" {
				t.Fatalf("unexpected completion payload %q", completes[0])
			}
			if len(uploads) != 0 {
				t.Fatalf("unexpected upload notifications %v", uploads)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected start and completion notifications, got %d/%d", len(starts), len(completes))
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestManagerRunsUploadWhenRequested(t *testing.T) {
	cfg := pipelineConfig(t)
	cfg.Upload.Enabled = true
	cfg.Upload.ClientID = "client"
	cfg.Upload.ClientSecret = "secret"
	cfg.Upload.RefreshToken = "token"
	store := testsupport.MustOpenStore(t, cfg)

	set, _, _, _, _, upload := workingStages()
	notifier := &recordingNotifier{}
	mgr := startManager(t, cfg, store, set, notifier)

	item, err := mgr.StartRun(context.Background(), pipeline.RunRequest{
		ProjectID:  "proj-upload",
		Prompt:     "A story about satellites",
		AutoUpload: true,
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	final := waitForStatus(t, store, item.ID, project.StatusCompleted)
	if final.UploadVideoID != "vid-123" {
		t.Fatalf("expected upload video id, got %q", final.UploadVideoID)
	}
	if upload.calls() != 1 {
		t.Fatalf("expected one upload call, got %d", upload.calls())
	}

	deadline := time.After(5 * time.Second)
	for {
		_, _, _, uploads := notifier.snapshot()
		if len(uploads) == 1 {
			if !strings.Contains(uploads[0], "vid-123") {
				t.Fatalf("expected video id in upload notification, got %q", uploads[0])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("expected upload notification")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestManagerAdvancesProjectsConcurrently(t *testing.T) {
	cfg := pipelineConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	set, _, _, _, compose, _ := workingStages()
	release := make(chan struct{})
	var releaseOnce sync.Once
	releaseSlowRender := func() { releaseOnce.Do(func() { close(release) }) }
	baseCompose := compose.executeHook
	compose.executeHook = func(item *project.Item) error {
		if item.ProjectID == "proj-slow" {
			<-release
		}
		return baseCompose(item)
	}

	notifier := &recordingNotifier{}
	mgr := startManager(t, cfg, store, set, notifier)
	t.Cleanup(releaseSlowRender)

	slow, err := mgr.StartRun(context.Background(), pipeline.RunRequest{
		ProjectID: "proj-slow",
		Prompt:    "A story stuck in the render",
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitForStatus(t, store, slow.ID, project.StatusComposingVideo)

	// A second project's run must reach completion while the first render
	// is still in flight.
	fast, err := mgr.StartRun(context.Background(), pipeline.RunRequest{
		ProjectID: "proj-fast",
		Prompt:    "A story that finishes first",
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitForStatus(t, store, fast.ID, project.StatusCompleted)

	inFlight, err := store.GetByID(context.Background(), slow.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if inFlight.Status != project.StatusComposingVideo {
		t.Fatalf("expected slow render still in flight, got %s", inFlight.Status)
	}

	releaseSlowRender()
	waitForStatus(t, store, slow.ID, project.StatusCompleted)
}

func TestManagerRetriesRecoverableFailures(t *testing.T) {
	cfg := pipelineConfig(t)
	cfg.Workflow.MaxRetries = 3
	store := testsupport.MustOpenStore(t, cfg)

	set, _, _, synthesis, _, _ := workingStages()
	var attempts int
	var attemptsMu sync.Mutex
	baseHook := synthesis.executeHook
	synthesis.executeHook = func(item *project.Item) error {
		attemptsMu.Lock()
		attempts++
		current := attempts
		attemptsMu.Unlock()
		if current <= 2 {
			return services.Wrap(services.ErrTransient, "synthesizing_audio", "synthesize clip",
				"Speech synthesis command failed", errors.New("exit status 1"))
		}
		return baseHook(item)
	}

	notifier := &recordingNotifier{}
	mgr := startManager(t, cfg, store, set, notifier)

	item, err := mgr.StartRun(context.Background(), pipeline.RunRequest{
		ProjectID: "proj-retry",
		Prompt:    "A story about persistence",
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	final := waitForStatus(t, store, item.ID, project.StatusCompleted)
	if synthesis.calls() != 3 {
		t.Fatalf("expected 3 synthesis attempts, got %d", synthesis.calls())
	}
	history, err := final.Errors()
	if err != nil {
		t.Fatalf("Errors failed: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("retried errors should not be recorded, got %d", len(history))
	}
	if final.RetryCount != 2 {
		t.Fatalf("expected retry count 2 after two transient failures, got %d", final.RetryCount)
	}
}

func TestManagerFailsAfterRetriesExhausted(t *testing.T) {
	cfg := pipelineConfig(t)
	cfg.Workflow.MaxRetries = 1
	store := testsupport.MustOpenStore(t, cfg)

	set, script, _, _, _, _ := workingStages()
	script.executeHook = func(*project.Item) error {
		return services.Wrap(services.ErrTransient, "generating_script", "chat completion",
			"Script generation request failed", errors.New("connection refused"))
	}

	notifier := &recordingNotifier{}
	mgr := startManager(t, cfg, store, set, notifier)

	item, err := mgr.StartRun(context.Background(), pipeline.RunRequest{
		ProjectID: "proj-exhausted",
		Prompt:    "A story that never starts",
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	final := waitForStatus(t, store, item.ID, project.StatusFailed)
	if script.calls() != 2 {
		t.Fatalf("expected 2 script attempts, got %d", script.calls())
	}
	if final.FatalError == "" {
		t.Fatal("expected fatal error to be recorded")
	}
	if final.RetryCount != 1 {
		t.Fatalf("expected retry count to stop at the cap, got %d", final.RetryCount)
	}
	history, err := final.Errors()
	if err != nil {
		t.Fatalf("Errors failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected only the exhaustion to be recorded, got %d entries", len(history))
	}
	if history[0].Stage != "script" {
		t.Fatalf("unexpected error stage %q", history[0].Stage)
	}
}

func TestManagerFatalErrorFailsImmediately(t *testing.T) {
	cfg := pipelineConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	set, _, casting, _, _, _ := workingStages()
	casting.executeHook = func(*project.Item) error {
		return services.Wrap(services.ErrConfiguration, "assigning_cast", "build voice pool",
			"No synthesis voices are configured", nil)
	}

	notifier := &recordingNotifier{}
	mgr := startManager(t, cfg, store, set, notifier)

	item, err := mgr.StartRun(context.Background(), pipeline.RunRequest{
		ProjectID: "proj-fatal",
		Prompt:    "A story without voices",
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	final := waitForStatus(t, store, item.ID, project.StatusFailed)
	if casting.calls() != 1 {
		t.Fatalf("expected one casting attempt, got %d", casting.calls())
	}
	if !strings.Contains(final.FatalError, "No synthesis voices are configured") {
		t.Fatalf("unexpected fatal error %q", final.FatalError)
	}

	deadline := time.After(5 * time.Second)
	for {
		_, _, failures, _ := notifier.snapshot()
		if len(failures) == 1 {
			if failures[0] != string(project.StatusAssigningCast) {
				t.Fatalf("unexpected failure stage %q", failures[0])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("expected failure notification")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestManagerRecoversFromPanickingHandler(t *testing.T) {
	cfg := pipelineConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	set, _, _, _, compose, _ := workingStages()
	compose.executeHook = func(*project.Item) error {
		panic("render slot corrupted")
	}

	notifier := &recordingNotifier{}
	mgr := startManager(t, cfg, store, set, notifier)

	item, err := mgr.StartRun(context.Background(), pipeline.RunRequest{
		ProjectID: "proj-panic",
		Prompt:    "A story that crashes",
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	final := waitForStatus(t, store, item.ID, project.StatusFailed)
	if !strings.Contains(final.FatalError, "panicked") {
		t.Fatalf("expected panic in fatal error, got %q", final.FatalError)
	}
}

func TestManagerStatusIncludesStageHealth(t *testing.T) {
	cfg := pipelineConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	script := newStubStage("script")
	script.health = stage.Unhealthy("script", "llm api key not configured")

	mgr := pipeline.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	mgr.ConfigureStages(pipeline.StageSet{Script: script})

	status := mgr.Status(context.Background())
	health, ok := status.StageHealth["script"]
	if !ok {
		t.Fatal("expected stage health entry for script")
	}
	if health.Ready {
		t.Fatalf("expected not ready health, got %+v", health)
	}
	if health.Detail != "llm api key not configured" {
		t.Fatalf("unexpected detail %q", health.Detail)
	}
}
