package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/logging"
	"reelsmith/internal/project"
	"reelsmith/internal/services"
)

func (m *Manager) processItem(ctx context.Context, runnerLogger *slog.Logger, item *project.Item) error {
	stg, ok := m.stageForStatus(item.Status)
	if !ok {
		runnerLogger.Warn("no stage configured for status", logging.String("status", string(item.Status)))
		m.waitForRunOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(
		services.WithStage(
			services.WithProjectID(
				services.WithRunID(ctx, item.ID),
				item.ProjectID,
			),
			stg.name,
		),
		requestID,
	)
	stageLogger := logging.WithContext(stageCtx, m.logger)

	// Runs that never requested an upload finish at the video boundary.
	if stg.startStatus == project.StatusVideoReady && !m.shouldUpload(item) {
		return m.completeWithoutUpload(stageCtx, stageLogger, item)
	}

	claimed, err := m.store.Transition(stageCtx, item.ID, stg.startStatus, stg.processingStatus)
	if err != nil {
		stageLogger.Error("failed to transition run to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}
	if !claimed {
		// Someone else advanced the run between fetch and claim.
		return nil
	}

	now := time.Now().UTC()
	item.Status = stg.processingStatus
	item.LastHeartbeat = &now
	if err := m.store.Update(stageCtx, item); err != nil {
		wrapped := fmt.Errorf("persist processing state: %w", err)
		stageLogger.Error("failed to persist processing state", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	m.setLastItem(item)

	if stg.startStatus == project.StatusPending {
		m.notifyStarted(stageCtx, stageLogger, item)
	}

	return m.executeStage(stageCtx, stageLogger, stg, item)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, item *project.Item) error {
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.Int("attempt", item.RetryCount+1),
	)

	if err := stg.handler.Prepare(ctx, item); err != nil {
		return m.handleStageError(ctx, stageLogger, stg, item, err)
	}
	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, stg, item)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		return m.handleStageError(ctx, stageLogger, stg, item, execErr)
	}

	return m.applyStageSuccess(ctx, stageLogger, stg, item, stageStart)
}

// executeWithHeartbeat runs the stage handler under the configured stage
// timeout while a heartbeat goroutine keeps the run visibly alive. Panics in
// handlers fail the run instead of taking the daemon down.
func (m *Manager) executeWithHeartbeat(ctx context.Context, stg pipelineStage, item *project.Item) (err error) {
	execCtx := ctx
	if m.cfg.Workflow.StageTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Workflow.StageTimeoutSeconds)*time.Second)
		defer cancel()
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, item.ID)
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", stg.name, r)
		}
	}()

	err = stg.handler.Execute(execCtx, item)
	if err != nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = services.Wrap(services.ErrTimeout, stg.name, "execute",
			fmt.Sprintf("Stage exceeded the %d second limit", m.cfg.Workflow.StageTimeoutSeconds), err)
	}
	return err
}

func (m *Manager) handleStageError(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, item *project.Item, stageErr error) error {
	details := services.Details(stageErr)
	message := details.Message
	if message == "" {
		message = fmt.Sprintf("%s failed without error detail", stg.name)
	}
	if services.Recoverable(stageErr) && item.RetryCount < m.cfg.Workflow.MaxRetries {
		item.RetryCount++
		item.Status = stg.startStatus
		item.LastHeartbeat = nil
		if err := m.store.Update(ctx, item); err != nil {
			stageLogger.Error("failed to persist retry state", logging.Error(err))
			m.setLastError(err)
			return err
		}
		m.setLastItem(item)
		stageLogger.Warn("stage failed; will retry",
			logging.Error(stageErr),
			logging.String(logging.FieldEventType, "stage_retry"),
			logging.String("error_kind", details.Kind),
			logging.Int("attempt", item.RetryCount),
			logging.Int("max_retries", m.cfg.Workflow.MaxRetries),
		)
		m.waitBackoff(ctx, item.RetryCount)
		return nil
	}

	// Retries happen transparently; only the exhaustion that actually fails
	// the run lands in its error history.
	if services.Recoverable(stageErr) {
		if appendErr := item.AppendError(stg.name, message, time.Now().UTC()); appendErr != nil {
			stageLogger.Warn("failed to record error history", logging.Error(appendErr))
		}
	}
	item.SetFailed(message)
	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("daemon shutting down, could not persist stage failure")
		} else {
			stageLogger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	m.setLastItem(item)
	m.setLastError(stageErr)
	stageLogger.Error("stage failed",
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_kind", details.Kind),
		logging.String("error_message", message),
	)

	if m.notifier != nil {
		if err := m.notifier.NotifyRunFailed(ctx, item.Title, string(stg.processingStatus), message); err != nil && !errors.Is(err, context.Canceled) {
			stageLogger.Debug("run failure notification failed", logging.Error(err))
		}
	}
	return nil
}

func (m *Manager) applyStageSuccess(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, item *project.Item, stageStart time.Time) error {
	willUpload := m.shouldUpload(item)

	if item.Status == stg.processingStatus || item.Status == "" {
		item.Status = stg.doneStatus
	}
	if item.Status == project.StatusVideoReady && !willUpload {
		item.Status = project.StatusCompleted
	}
	item.Progress = progressForStatus(item.Status, willUpload)
	item.LastHeartbeat = nil

	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	m.setLastItem(item)

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(item.Status)),
		logging.Float64("progress", item.Progress),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)

	if stg.name == "upload" && item.UploadVideoID != "" {
		m.notifyUploaded(ctx, stageLogger, item)
	}
	if item.Status == project.StatusCompleted {
		m.notifyCompleted(ctx, stageLogger, item)
	}
	return nil
}

// completeWithoutUpload closes out a rendered run that never requested an
// upload (or whose upload support is disabled).
func (m *Manager) completeWithoutUpload(ctx context.Context, stageLogger *slog.Logger, item *project.Item) error {
	claimed, err := m.store.Transition(ctx, item.ID, project.StatusVideoReady, project.StatusCompleted)
	if err != nil {
		stageLogger.Error("failed to complete run", logging.Error(err))
		m.setLastError(err)
		return err
	}
	if !claimed {
		return nil
	}

	item.Status = project.StatusCompleted
	item.Progress = 1.0
	item.LastHeartbeat = nil
	if err := m.store.Update(ctx, item); err != nil {
		stageLogger.Error("failed to persist run completion", logging.Error(err))
		m.setLastError(err)
		return err
	}
	m.setLastItem(item)
	stageLogger.Info("run completed without upload",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("video_path", item.VideoPath),
	)
	m.notifyCompleted(ctx, stageLogger, item)
	return nil
}

func (m *Manager) shouldUpload(item *project.Item) bool {
	return item.AutoUpload && m.cfg.Upload.Enabled
}

func (m *Manager) waitBackoff(ctx context.Context, attempt int) {
	base := time.Duration(m.cfg.Workflow.RetryBackoffSeconds) * time.Second
	if base <= 0 {
		return
	}
	const maxDelay = 5 * time.Minute
	delay := base << (attempt - 1)
	if delay > maxDelay {
		delay = maxDelay
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func (m *Manager) notifyStarted(ctx context.Context, stageLogger *slog.Logger, item *project.Item) {
	if m.notifier == nil {
		return
	}
	title := item.Title
	if title == "" {
		title = item.Prompt
	}
	if err := m.notifier.NotifyRunStarted(ctx, title); err != nil && !errors.Is(err, context.Canceled) {
		stageLogger.Debug("run start notification failed", logging.Error(err))
	}
}

func (m *Manager) notifyCompleted(ctx context.Context, stageLogger *slog.Logger, item *project.Item) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyRunCompleted(ctx, item.Title, item.VideoPath); err != nil && !errors.Is(err, context.Canceled) {
		stageLogger.Debug("run completion notification failed", logging.Error(err))
	}
}

func (m *Manager) notifyUploaded(ctx context.Context, stageLogger *slog.Logger, item *project.Item) {
	if m.notifier == nil {
		return
	}
	url := "https://www.youtube.com/watch?v=" + item.UploadVideoID
	if err := m.notifier.NotifyUploaded(ctx, item.Title, url); err != nil && !errors.Is(err, context.Canceled) {
		stageLogger.Debug("upload notification failed", logging.Error(err))
	}
}
