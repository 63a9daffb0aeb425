package daemon_test

import (
	"context"
	"testing"

	"reelsmith/internal/daemon"
	"reelsmith/internal/logging"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/project"
	"reelsmith/internal/stage"
	"reelsmith/internal/testsupport"
)

func newTestDaemon(t *testing.T) (*daemon.Daemon, *project.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.PollInterval = 0
	store := testsupport.MustOpenStore(t, cfg)

	mgr := pipeline.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(pipeline.StageSet{Script: noopHandler{}})

	d, err := daemon.New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath == "" {
		t.Fatal("expected lock file path")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to report stopped")
	}
}

func TestDaemonResetsInterruptedRuns(t *testing.T) {
	d, store := newTestDaemon(t)
	ctx := context.Background()

	item, err := store.NewRun(ctx, "proj", "", "prompt", false, project.Assets{})
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	item.Status = project.StatusSynthesizingAudio
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	reloaded, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.Status != project.StatusCastReady {
		t.Fatalf("expected run reset to cast_ready, got %s", reloaded.Status)
	}
}

type noopHandler struct{}

func (noopHandler) Prepare(context.Context, *project.Item) error { return nil }
func (noopHandler) Execute(context.Context, *project.Item) error { return nil }
func (noopHandler) HealthCheck(context.Context) stage.Health     { return stage.Healthy("noop") }
