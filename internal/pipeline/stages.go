package pipeline

import (
	"reelsmith/internal/project"
	"reelsmith/internal/stage"
)

// StageSet bundles the concrete stage handlers the manager orchestrates.
type StageSet struct {
	Script    stage.Handler
	Casting   stage.Handler
	Synthesis stage.Handler
	Compose   stage.Handler
	Upload    stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      project.Status
	processingStatus project.Status
	doneStatus       project.Status
}

// ConfigureStages registers the concrete stage handlers the pipeline will run.
// Stages form a single sequential ladder; the upload stage is entered only for
// runs that request it.
func (m *Manager) ConfigureStages(set StageSet) {
	var stages []pipelineStage

	if set.Script != nil {
		stages = append(stages, pipelineStage{
			name:             "script",
			handler:          set.Script,
			startStatus:      project.StatusPending,
			processingStatus: project.StatusGeneratingScript,
			doneStatus:       project.StatusScriptReady,
		})
	}
	if set.Casting != nil {
		stages = append(stages, pipelineStage{
			name:             "casting",
			handler:          set.Casting,
			startStatus:      project.StatusScriptReady,
			processingStatus: project.StatusAssigningCast,
			doneStatus:       project.StatusCastReady,
		})
	}
	if set.Synthesis != nil {
		stages = append(stages, pipelineStage{
			name:             "synthesis",
			handler:          set.Synthesis,
			startStatus:      project.StatusCastReady,
			processingStatus: project.StatusSynthesizingAudio,
			doneStatus:       project.StatusAudioReady,
		})
	}
	if set.Compose != nil {
		stages = append(stages, pipelineStage{
			name:             "compose",
			handler:          set.Compose,
			startStatus:      project.StatusAudioReady,
			processingStatus: project.StatusComposingVideo,
			doneStatus:       project.StatusVideoReady,
		})
	}
	if set.Upload != nil {
		stages = append(stages, pipelineStage{
			name:             "upload",
			handler:          set.Upload,
			startStatus:      project.StatusVideoReady,
			processingStatus: project.StatusUploading,
			doneStatus:       project.StatusCompleted,
		})
	}

	byStart := make(map[project.Status]pipelineStage, len(stages))
	order := make([]project.Status, 0, len(stages))
	for _, stg := range stages {
		byStart[stg.startStatus] = stg
		order = append(order, stg.startStatus)
	}

	m.mu.Lock()
	m.stages = stages
	m.stageByStart = byStart
	m.startStatuses = order
	m.mu.Unlock()
}

func (m *Manager) stageForStatus(status project.Status) (pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stg, ok := m.stageByStart[status]
	return stg, ok
}

// progressLadder maps each stage boundary status to its position in the full
// ladder. Runs that skip the upload stage scale their progress so composition
// completes the run at 1.0.
var progressLadder = map[project.Status]int{
	project.StatusPending:     0,
	project.StatusScriptReady: 1,
	project.StatusCastReady:   2,
	project.StatusAudioReady:  3,
	project.StatusVideoReady:  4,
	project.StatusCompleted:   5,
}

func progressForStatus(status project.Status, willUpload bool) float64 {
	if status == project.StatusCompleted {
		return 1.0
	}
	step, ok := progressLadder[status]
	if !ok {
		return 0
	}
	total := 5.0
	if !willUpload {
		total = 4.0
	}
	if float64(step) >= total {
		return 1.0
	}
	return float64(step) / total
}
