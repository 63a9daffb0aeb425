package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/project"
)

// Manager coordinates run processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *project.Store
	logger       *slog.Logger
	notifier     notifications.Service
	pollInterval time.Duration

	heartbeat *HeartbeatMonitor

	stages        []pipelineStage
	stageByStart  map[project.Status]pipelineStage
	startStatuses []project.Status

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastErr    error
	lastItem   *project.Item
	activeRuns map[int64]struct{}

	projectMu    sync.Mutex
	projectLocks map[string]*sync.Mutex
}

// NewManager constructs a new pipeline manager.
func NewManager(cfg *config.Config, store *project.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a pipeline manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *project.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.PollInterval) * time.Second,
		activeRuns:   make(map[int64]struct{}),
		projectLocks: make(map[string]*sync.Mutex),
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("pipeline already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("pipeline stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String(logging.FieldComponent, "pipeline-runner"))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStaleRuns(ctx, logger); err != nil {
			logger.Warn("reclaim stale processing failed; stuck runs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check run database access"),
			)
		}

		items, err := m.store.List(ctx, m.startStatuses...)
		if err != nil {
			m.handleFetchError(ctx, logger, err)
			continue
		}

		dispatched := false
		for _, item := range items {
			if !m.beginRun(item.ID) {
				continue
			}
			dispatched = true
			m.wg.Add(1)
			go m.runWorker(ctx, logger, item)
		}
		if !dispatched {
			m.waitForRunOrShutdown(ctx)
		}
	}
}

// runWorker drives a single run through the ladder until it parks in a status
// no stage owns. Each run advances sequentially inside its own worker, so a
// slow stage in one project never holds up another project's run; renders are
// still bounded by the compositor's slot semaphore.
func (m *Manager) runWorker(ctx context.Context, logger *slog.Logger, item *project.Item) {
	defer m.wg.Done()
	defer m.endRun(item.ID)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, ok := m.stageForStatus(item.Status); !ok {
			return
		}
		if err := m.processItem(ctx, logger, item); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("run worker stopped on error", logging.Error(err))
			}
			return
		}

		next, err := m.store.GetByID(ctx, item.ID)
		if err != nil {
			m.setLastError(err)
			logger.Error("failed to reload run",
				logging.Error(err),
				logging.String(logging.FieldEventType, "run_fetch_failed"),
			)
			return
		}
		if next == nil {
			return
		}
		item = next
	}
}

// beginRun marks a run as owned by a worker. It returns false when another
// worker already owns the run.
func (m *Manager) beginRun(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.activeRuns[id]; busy {
		return false
	}
	m.activeRuns[id] = struct{}{}
	return true
}

func (m *Manager) endRun(id int64) {
	m.mu.Lock()
	delete(m.activeRuns, id)
	m.mu.Unlock()
}

// projectLock returns the admission mutex for a project, creating it on first
// use. Entries are kept for the manager's lifetime.
func (m *Manager) projectLock(projectID string) *sync.Mutex {
	m.projectMu.Lock()
	defer m.projectMu.Unlock()
	lock, ok := m.projectLocks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		m.projectLocks[projectID] = lock
	}
	return lock
}

func (m *Manager) handleFetchError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to fetch next run",
		logging.Error(err),
		logging.String(logging.FieldEventType, "run_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check run database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) waitForRunOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
