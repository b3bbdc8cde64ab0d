package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"astropitography/internal/config"
	"astropitography/internal/logging"
)

// cameraMonitor periodically re-probes for attached cameras. Hotplug events
// from udev normally arrive first; the poll catches devices that appear
// without an event, such as cameras present before the daemon started.
type cameraMonitor struct {
	logger   *slog.Logger
	interval time.Duration
	refresh  func()

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newCameraMonitor(cfg *config.Config, logger *slog.Logger, refresh func()) *cameraMonitor {
	interval := 5 * time.Second
	if cfg != nil && cfg.Workflow.CameraMonitorInterval > 0 {
		interval = time.Duration(cfg.Workflow.CameraMonitorInterval) * time.Second
	}
	return &cameraMonitor{
		logger:   logger,
		interval: interval,
		refresh:  refresh,
	}
}

func (m *cameraMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	if m.refresh == nil {
		return errors.New("camera monitor requires a refresh callback")
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("camera monitor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(runCtx)

	if m.logger != nil {
		m.logger.Debug("camera monitor started", logging.Duration("interval", m.interval))
	}
	return nil
}

func (m *cameraMonitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.cancel = nil
	m.running = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *cameraMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *cameraMonitor) loop(ctx context.Context) {
	defer m.wg.Done()

	m.refresh()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh()
		}
	}
}
