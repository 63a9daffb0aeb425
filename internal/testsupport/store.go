package testsupport

import (
	"context"
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/project"
)

// MustOpenStore opens a project.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *project.Store {
	t.Helper()

	store, err := project.Open(cfg)
	if err != nil {
		t.Fatalf("project.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun creates a pending run for tests using the provided store.
func NewRun(t testing.TB, store *project.Store, projectID, prompt string) *project.Item {
	t.Helper()

	item, err := store.NewRun(context.Background(), projectID, "", prompt, false, project.Assets{})
	if err != nil {
		t.Fatalf("store.NewRun: %v", err)
	}
	return item
}
