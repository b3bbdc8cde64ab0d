package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"astropitography/internal/api"
	"astropitography/internal/camera"
	"astropitography/internal/config"
	"astropitography/internal/logging"
	"astropitography/internal/notifications"
	"astropitography/internal/preflight"
	"astropitography/internal/queue"
	"astropitography/internal/workflow"
)

// ErrNoPreviewFrame indicates that no captured frame exists for a preview
// request.
var ErrNoPreviewFrame = errors.New("no captured frames available")

// Daemon coordinates the capture workflow, camera monitors, and the HTTP API,
// and enforces single-instance execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	notifier notifications.Service
	logPath  string

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	poller  *cameraMonitor
	hotplug *netlinkMonitor
	probe   func() preflight.CameraProbe

	mu          sync.Mutex
	camera      preflight.CameraProbe
	cameraKnown bool

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies. The logPath feeds
// the IPC log tail endpoint; when empty it falls back to the default daemon
// log location under the configured log directory.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, notifier notifications.Service, logPath string) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if strings.TrimSpace(logPath) == "" {
		logPath = filepath.Join(cfg.Paths.LogDir, "astropitographyd.log")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "astropitographyd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		notifier: notifier,
		logPath:  logPath,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		probe:    preflight.ProbeCamera,
	}
	d.poller = newCameraMonitor(cfg, logger, d.refreshCamera)
	d.hotplug = newNetlinkMonitor(logger, d.refreshCamera)

	apiSrv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = apiSrv
	return d, nil
}

// Start launches the workflow manager, camera monitors, and HTTP API, and
// acquires the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another astropitography daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	d.refreshCamera()
	if err := d.poller.Start(d.ctx); err != nil {
		d.logger.Warn("camera monitor failed to start; hotplug events still cover detection",
			logging.Error(err),
			logging.String(logging.FieldEventType, "camera_monitor_start_failed"))
	}
	if err := d.hotplug.Start(d.ctx); err != nil {
		d.logger.Warn("udev monitor failed to start; polling still covers detection",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_monitor_start_failed"))
	}
	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			d.logger.Warn("api server failed to start; IPC control remains available",
				logging.Error(err),
				logging.String(logging.FieldEventType, "api_server_start_failed"),
				logging.String(logging.FieldErrorHint, "check the api_bind address in the configuration"))
		}
	}

	d.running.Store(true)
	d.logger.Info("astropitography daemon started", logging.String("lock", d.lockPath))
	if err := d.notifier.Publish(d.ctx, notifications.EventDaemonStarted, nil); err != nil {
		d.logger.Warn("daemon start notification failed", logging.Error(err))
	}
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.poller.Stop()
	d.hotplug.Stop()
	d.api.stop()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("astropitography daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// EnqueueCapture validates settings and adds a still or sequence session to
// the queue. Settings are normalized before storage so the capture stage
// always sees usable values.
func (d *Daemon) EnqueueCapture(ctx context.Context, kind queue.Kind, targetName, settingsJSON string) (*queue.Item, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	if kind != queue.KindStill && kind != queue.KindSequence {
		return nil, fmt.Errorf("unsupported capture kind %q", kind)
	}
	encoded, err := d.prepareSettings(settingsJSON)
	if err != nil {
		return nil, err
	}
	item, err := d.store.NewSession(ctx, kind, targetName, encoded)
	if err != nil {
		return nil, fmt.Errorf("enqueue capture session: %w", err)
	}
	d.logger.Info("capture session queued",
		logging.Int64(logging.FieldSessionID, item.ID),
		logging.String("kind", string(kind)),
		logging.String("target", item.DisplayName()))
	return item, nil
}

// EnqueueVideo validates settings and adds a video session to the queue.
func (d *Daemon) EnqueueVideo(ctx context.Context, targetName, settingsJSON string) (*queue.Item, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	encoded, err := d.prepareSettings(settingsJSON)
	if err != nil {
		return nil, err
	}
	item, err := d.store.NewSession(ctx, queue.KindVideo, targetName, encoded)
	if err != nil {
		return nil, fmt.Errorf("enqueue video session: %w", err)
	}
	d.logger.Info("video session queued",
		logging.Int64(logging.FieldSessionID, item.ID),
		logging.String("target", item.DisplayName()))
	return item, nil
}

func (d *Daemon) prepareSettings(settingsJSON string) (string, error) {
	settings, err := camera.Parse(settingsJSON)
	if err != nil {
		return "", fmt.Errorf("parse capture settings: %w", err)
	}
	settings.Normalize()
	maxExposure := 0
	if d.cfg != nil {
		maxExposure = d.cfg.Capture.MaxExposureSeconds
	}
	if err := settings.Validate(maxExposure); err != nil {
		return "", fmt.Errorf("invalid capture settings: %w", err)
	}
	return settings.Encode()
}

// ListQueue returns queue items filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Item, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// GetQueueItem fetches a single queue item, returning nil when absent.
func (d *Daemon) GetQueueItem(ctx context.Context, id int64) (*queue.Item, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	return d.store.GetByID(ctx, id)
}

// ClearQueue removes all queue items.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed queue items.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed queue items.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearFailed(ctx)
}

// RemoveQueueItems removes the listed queue items.
func (d *Daemon) RemoveQueueItems(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	var removed int64
	for _, id := range ids {
		ok, err := d.store.Remove(ctx, id)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// ResetStuck transitions in-flight items back to the start of their stage.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ResetStuckProcessing(ctx)
}

// RetryFailed resets failed items (optionally a subset) back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.RetryFailed(ctx, ids...)
}

// StopQueueItems parks the listed waiting sessions for review.
func (d *Daemon) StopQueueItems(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.StopSessions(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	if d.store == nil {
		return queue.HealthSummary{}, errors.New("queue store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	if d.store == nil {
		return queue.DatabaseHealth{}, errors.New("queue store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// PreviewFrame returns the newest captured frame for the given session, or
// for the most recent session with frames when id is zero.
func (d *Daemon) PreviewFrame(ctx context.Context, id int64) (string, error) {
	if d.store == nil {
		return "", errors.New("queue store unavailable")
	}
	if id > 0 {
		item, err := d.store.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		if item == nil {
			return "", fmt.Errorf("queue item %d not found: %w", id, ErrNoPreviewFrame)
		}
		frames := item.FramePaths()
		if len(frames) == 0 {
			return "", fmt.Errorf("session %d has no captured frames: %w", id, ErrNoPreviewFrame)
		}
		return frames[len(frames)-1], nil
	}

	items, err := d.store.List(ctx)
	if err != nil {
		return "", err
	}
	for i := len(items) - 1; i >= 0; i-- {
		frames := items[i].FramePaths()
		if len(frames) > 0 {
			return frames[len(frames)-1], nil
		}
	}
	return "", ErrNoPreviewFrame
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	summary := d.workflow.Status(ctx)
	hotplug := false
	if d.hotplug != nil {
		hotplug = d.hotplug.Running()
	}
	return api.DaemonStatus{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		QueueDBPath:   d.cfg.QueueDatabasePath(),
		LockFilePath:  d.lockPath,
		Camera:        api.FromCameraProbe(d.cameraSnapshot()),
		HotplugActive: hotplug,
		Workflow:      api.FromStatusSummary(summary),
		Dependencies:  api.FromDependencyStatuses(preflight.CheckSystemDeps(ctx, d.cfg)),
	}
}

func (d *Daemon) cameraSnapshot() preflight.CameraProbe {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.camera
}

// refreshCamera probes for attached cameras and reconciles the workflow
// capture gate. Both the polling monitor and udev events funnel through here.
func (d *Daemon) refreshCamera() {
	if d.probe == nil {
		return
	}
	d.setCameraPresence(d.probe())
}

func (d *Daemon) setCameraPresence(probe preflight.CameraProbe) {
	d.mu.Lock()
	prev := d.camera
	known := d.cameraKnown
	d.camera = probe
	d.cameraKnown = true
	d.mu.Unlock()

	d.workflow.SetCameraAvailable(probe.Detected)

	switch {
	case probe.Detected && (!known || !prev.Detected):
		d.logger.Info("camera detected",
			logging.String("device", probe.Device),
			logging.String("camera", probe.Name),
			logging.String(logging.FieldEventType, "camera_detected"))
		name := probe.Name
		if name == "" {
			name = probe.Device
		}
		ctx := d.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		if err := d.notifier.Publish(ctx, notifications.EventCameraDetected, notifications.Payload{"camera": name}); err != nil {
			d.logger.Warn("camera notification failed", logging.Error(err))
		}
	case !probe.Detected && known && prev.Detected:
		d.logger.Warn("camera disconnected; capture lane paused until it returns",
			logging.String("device", prev.Device),
			logging.String(logging.FieldEventType, "camera_disconnected"))
	}
}
