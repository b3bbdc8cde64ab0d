package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"astropitography/internal/config"
	"astropitography/internal/notifications"
	"astropitography/internal/queue"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service

	heartbeat  *HeartbeatMonitor
	sessionLog *SessionLogger

	lanes     map[laneKind]*laneState
	laneOrder []laneKind

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastErr     error
	lastItem    *queue.Item
	cameraReady bool
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		sessionLog:  NewSessionLogger(cfg),
		lanes:       make(map[laneKind]*laneState),
		cameraReady: true,
	}
}

// SetCameraAvailable flips the capture gate. The daemon's camera monitors
// call this as hardware attaches and detaches; while the gate is down the
// foreground lane idles instead of picking up pending sessions.
func (m *Manager) SetCameraAvailable(available bool) {
	m.mu.Lock()
	changed := m.cameraReady != available
	m.cameraReady = available
	m.mu.Unlock()

	if changed && m.logger != nil {
		if available {
			m.logger.Info("camera available, capture lane resumed")
		} else {
			m.logger.Info("camera unavailable, capture lane paused")
		}
	}
}

func (m *Manager) cameraAvailable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cameraReady
}
