package pipeline

import (
	"context"
	"fmt"
	"strings"

	"reelsmith/internal/project"
	"reelsmith/internal/services"
)

// RunRequest describes a new generation run for a project.
type RunRequest struct {
	ProjectID  string
	Title      string
	Prompt     string
	AutoUpload bool
	Assets     project.Assets
}

// StartRun inserts a pending run for the project. Each project may have at
// most one run outside a terminal status; a second request is rejected before
// any state is written.
func (m *Manager) StartRun(ctx context.Context, req RunRequest) (*project.Item, error) {
	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "start run", "Project id is required", nil)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "start run", "Prompt is required", nil)
	}

	// The project lock serializes concurrent admission for one project; the
	// partial unique index on active runs backstops callers in other
	// processes sharing the database.
	lock := m.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	active, err := m.store.ActiveRunForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("check active run: %w", err)
	}
	if active != nil {
		return nil, services.Wrap(services.ErrAlreadyRunning, "pipeline", "start run",
			fmt.Sprintf("Project %q already has run #%d in status %s", projectID, active.ID, active.Status), nil)
	}

	item, err := m.store.NewRun(ctx, projectID, strings.TrimSpace(req.Title), req.Prompt, req.AutoUpload, req.Assets)
	if err != nil {
		if project.IsActiveConflict(err) {
			return nil, services.Wrap(services.ErrAlreadyRunning, "pipeline", "start run",
				fmt.Sprintf("Project %q already has an active run", projectID), err)
		}
		return nil, fmt.Errorf("create run: %w", err)
	}
	return item, nil
}

// RegenerateEntry names the ladder position a regeneration re-enters at.
type RegenerateEntry string

const (
	// RegenerateAudio re-synthesizes narration from the existing cast and
	// re-renders the video.
	RegenerateAudio RegenerateEntry = "audio"
	// RegenerateVideo re-renders the video from the existing narration clips.
	RegenerateVideo RegenerateEntry = "video"
)

// ParseRegenerateEntry converts user input into a known entry point.
func ParseRegenerateEntry(value string) (RegenerateEntry, bool) {
	switch RegenerateEntry(strings.ToLower(strings.TrimSpace(value))) {
	case RegenerateAudio:
		return RegenerateAudio, true
	case RegenerateVideo:
		return RegenerateVideo, true
	default:
		return "", false
	}
}

// RegenerateFrom re-enters the ladder for the project's latest run at the
// given entry point, discarding the outputs downstream of it. Preconditions
// are checked before any state is mutated.
func (m *Manager) RegenerateFrom(ctx context.Context, projectID string, entry RegenerateEntry) (*project.Item, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "regenerate", "Project id is required", nil)
	}

	lock := m.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	item, err := m.store.LatestForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load latest run: %w", err)
	}
	if item == nil {
		return nil, services.Wrap(services.ErrNotFound, "pipeline", "regenerate",
			fmt.Sprintf("Project %q has no runs", projectID), nil)
	}
	if !project.IsTerminal(item.Status) {
		return nil, services.Wrap(services.ErrAlreadyRunning, "pipeline", "regenerate",
			fmt.Sprintf("Run #%d is still in status %s", item.ID, item.Status), nil)
	}

	switch entry {
	case RegenerateAudio:
		if strings.TrimSpace(item.CastJSON) == "" {
			return nil, services.Wrap(services.ErrPrecondition, "pipeline", "regenerate",
				fmt.Sprintf("Run #%d has no cast to synthesize from", item.ID), nil)
		}
		item.ClipsJSON = ""
		item.SetVideo("")
		item.Status = project.StatusCastReady
	case RegenerateVideo:
		if strings.TrimSpace(item.ClipsJSON) == "" {
			return nil, services.Wrap(services.ErrPrecondition, "pipeline", "regenerate",
				fmt.Sprintf("Run #%d has no narration clips to render from", item.ID), nil)
		}
		item.SetVideo("")
		item.Status = project.StatusAudioReady
	default:
		return nil, services.Wrap(services.ErrValidation, "pipeline", "regenerate",
			fmt.Sprintf("Unknown entry point %q", entry), nil)
	}

	item.FatalError = ""
	item.RetryCount = 0
	item.Progress = progressForStatus(item.Status, m.shouldUpload(item))
	item.LastHeartbeat = nil
	if err := m.store.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("persist regeneration: %w", err)
	}
	return item, nil
}
