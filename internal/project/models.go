package project

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline run.
type Status string

const (
	StatusPending           Status = "pending"
	StatusGeneratingScript  Status = "generating_script"
	StatusScriptReady       Status = "script_ready"
	StatusAssigningCast     Status = "assigning_cast"
	StatusCastReady         Status = "cast_ready"
	StatusSynthesizingAudio Status = "synthesizing_audio"
	StatusAudioReady        Status = "audio_ready"
	StatusComposingVideo    Status = "composing_video"
	StatusVideoReady        Status = "video_ready"
	StatusUploading         Status = "uploading"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
)

// DaemonStopReason is the error message set when runs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusGeneratingScript,
	StatusScriptReady,
	StatusAssigningCast,
	StatusCastReady,
	StatusSynthesizingAudio,
	StatusAudioReady,
	StatusComposingVideo,
	StatusVideoReady,
	StatusUploading,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusGeneratingScript:  {},
	StatusAssigningCast:     {},
	StatusSynthesizingAudio: {},
	StatusComposingVideo:    {},
	StatusUploading:         {},
}

// processingRollbacks maps each processing status to the stage start status a
// stale or interrupted run is reset to.
var processingRollbacks = map[Status]Status{
	StatusGeneratingScript:  StatusPending,
	StatusAssigningCast:     StatusScriptReady,
	StatusSynthesizingAudio: StatusCastReady,
	StatusComposingVideo:    StatusAudioReady,
	StatusUploading:         StatusVideoReady,
}

// RollbackStatus returns the stage start status for an in-flight status.
func RollbackStatus(status Status) (Status, bool) {
	target, ok := processingRollbacks[status]
	return target, ok
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the run lifecycle.
func IsTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Scene is a single narrated beat of the generated script.
type Scene struct {
	Speaker               string  `json:"speaker"`
	Line                  string  `json:"line"`
	TargetDurationSeconds float64 `json:"target_duration_seconds,omitempty"`
}

// VoiceParams describes the synthesis voice assigned to a speaker.
type VoiceParams struct {
	Provider string `json:"provider,omitempty"`
	VoiceID  string `json:"voice_id"`
	Rate     string `json:"rate,omitempty"`
	Pitch    string `json:"pitch,omitempty"`
}

// AudioClipRef points at a synthesized narration clip for one scene. Ordering
// is always by the explicit SceneIndex, never by file name.
type AudioClipRef struct {
	SceneIndex      int     `json:"scene_index"`
	FilePath        string  `json:"file_path"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RunError records one recoverable failure observed during a run.
type RunError struct {
	Stage      string    `json:"stage"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Assets names the optional background material used during composition. All
// paths are relative to the static root.
type Assets struct {
	Images            []string `json:"images,omitempty"`
	ImageSceneIndices []int    `json:"image_scene_indices,omitempty"`
	BackgroundVideo   string   `json:"background_video,omitempty"`
	Music             string   `json:"music,omitempty"`
	MusicVolume       *float64 `json:"music_volume,omitempty"`
}

// Item represents a pipeline run persisted in SQLite.
type Item struct {
	ID            int64
	ProjectID     string
	Title         string
	Prompt        string
	AutoUpload    bool
	Status        Status
	Progress      float64
	RetryCount    int
	ErrorsJSON    string
	FatalError    string
	ScriptJSON    string
	CastJSON      string
	ClipsJSON     string
	AssetsJSON    string
	VideoPath     string
	UploadVideoID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastHeartbeat *time.Time
}

// IsProcessing returns true when the run is mid-stage.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// Scenes decodes the generated script.
func (i Item) Scenes() ([]Scene, error) {
	if strings.TrimSpace(i.ScriptJSON) == "" {
		return nil, nil
	}
	var scenes []Scene
	if err := json.Unmarshal([]byte(i.ScriptJSON), &scenes); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	return scenes, nil
}

// SetScenes stores a new script and clears every downstream output: cast,
// clips, video, and upload all derive from the script.
func (i *Item) SetScenes(scenes []Scene) error {
	data, err := json.Marshal(scenes)
	if err != nil {
		return fmt.Errorf("encode script: %w", err)
	}
	i.ScriptJSON = string(data)
	i.CastJSON = ""
	i.ClipsJSON = ""
	i.VideoPath = ""
	i.UploadVideoID = ""
	return nil
}

// Cast decodes the speaker to voice assignment.
func (i Item) Cast() (map[string]VoiceParams, error) {
	if strings.TrimSpace(i.CastJSON) == "" {
		return nil, nil
	}
	var cast map[string]VoiceParams
	if err := json.Unmarshal([]byte(i.CastJSON), &cast); err != nil {
		return nil, fmt.Errorf("decode cast: %w", err)
	}
	return cast, nil
}

// SetCast stores the speaker to voice assignment.
func (i *Item) SetCast(cast map[string]VoiceParams) error {
	data, err := json.Marshal(cast)
	if err != nil {
		return fmt.Errorf("encode cast: %w", err)
	}
	i.CastJSON = string(data)
	return nil
}

// Clips decodes the synthesized narration clips.
func (i Item) Clips() ([]AudioClipRef, error) {
	if strings.TrimSpace(i.ClipsJSON) == "" {
		return nil, nil
	}
	var clips []AudioClipRef
	if err := json.Unmarshal([]byte(i.ClipsJSON), &clips); err != nil {
		return nil, fmt.Errorf("decode clips: %w", err)
	}
	return clips, nil
}

// SetClips stores new narration clips and clears the video and upload outputs
// that were rendered from the previous audio.
func (i *Item) SetClips(clips []AudioClipRef) error {
	data, err := json.Marshal(clips)
	if err != nil {
		return fmt.Errorf("encode clips: %w", err)
	}
	i.ClipsJSON = string(data)
	i.VideoPath = ""
	i.UploadVideoID = ""
	return nil
}

// SetVideo stores a freshly rendered video path and clears the upload output.
func (i *Item) SetVideo(path string) {
	i.VideoPath = path
	i.UploadVideoID = ""
}

// GetAssets decodes the background asset references.
func (i Item) GetAssets() (Assets, error) {
	if strings.TrimSpace(i.AssetsJSON) == "" {
		return Assets{}, nil
	}
	var assets Assets
	if err := json.Unmarshal([]byte(i.AssetsJSON), &assets); err != nil {
		return Assets{}, fmt.Errorf("decode assets: %w", err)
	}
	return assets, nil
}

// SetAssets stores the background asset references.
func (i *Item) SetAssets(assets Assets) error {
	data, err := json.Marshal(assets)
	if err != nil {
		return fmt.Errorf("encode assets: %w", err)
	}
	i.AssetsJSON = string(data)
	return nil
}

// Errors decodes the recoverable error history.
func (i Item) Errors() ([]RunError, error) {
	if strings.TrimSpace(i.ErrorsJSON) == "" {
		return nil, nil
	}
	var errs []RunError
	if err := json.Unmarshal([]byte(i.ErrorsJSON), &errs); err != nil {
		return nil, fmt.Errorf("decode errors: %w", err)
	}
	return errs, nil
}

// AppendError records a recoverable failure on the run.
func (i *Item) AppendError(stage, message string, at time.Time) error {
	errs, err := i.Errors()
	if err != nil {
		return err
	}
	errs = append(errs, RunError{Stage: stage, Message: message, OccurredAt: at.UTC()})
	data, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("encode errors: %w", err)
	}
	i.ErrorsJSON = string(data)
	return nil
}

// SetFailed marks the run as failed with the given fatal error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.FatalError = message
	i.LastHeartbeat = nil
}
