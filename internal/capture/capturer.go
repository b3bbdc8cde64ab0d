package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"log/slog"

	"astropitography/internal/camera"
	"astropitography/internal/config"
	"astropitography/internal/logging"
	"astropitography/internal/notifications"
	"astropitography/internal/queue"
	"astropitography/internal/services"
	"astropitography/internal/services/libcamera"
	"astropitography/internal/stage"
)

// Capturer manages the libcamera capture workflow.
type Capturer struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	grabber  libcamera.Grabber
	notifier notifications.Service
}

// NewCapturer constructs the capture handler using default dependencies.
func NewCapturer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Capturer {
	var grabber libcamera.Grabber
	client, err := libcamera.New(cfg.StillBinary(), cfg.VideoBinary(), cfg.Capture.StillTimeout, cfg.Capture.VideoTimeoutSlack)
	if err != nil {
		logger.Warn("libcamera client unavailable", logging.Error(err))
	} else {
		grabber = client
	}
	return NewCapturerWithDependencies(cfg, store, logger, grabber, notifications.NewService(cfg))
}

// NewCapturerWithGrabber keeps backwards compatibility for tests using only a grabber override.
func NewCapturerWithGrabber(cfg *config.Config, store *queue.Store, logger *slog.Logger, grabber libcamera.Grabber) *Capturer {
	return NewCapturerWithDependencies(cfg, store, logger, grabber, notifications.NewService(cfg))
}

// NewCapturerWithDependencies allows injecting all collaborators (used in tests).
func NewCapturerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, grabber libcamera.Grabber, notifier notifications.Service) *Capturer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "capturer"))
	}
	return &Capturer{store: store, cfg: cfg, logger: stageLogger, grabber: grabber, notifier: notifier}
}

func (c *Capturer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)
	item.InitProgress("Capturing", "Starting capture")

	settings, err := stage.ParseSettings(item.SettingsJSON)
	if err != nil {
		return err
	}
	if err := settings.Validate(c.cfg.Capture.MaxExposureSeconds); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"capture",
			"validate settings",
			"Requested camera settings are out of range; adjust the preset and retry",
			err,
		)
	}
	if !cameraPresent() {
		return services.Wrap(
			services.ErrNotFound,
			"capture",
			"detect camera",
			"No camera detected; check the ribbon cable and that the camera is enabled",
			nil,
		)
	}
	if err := c.checkDiskSpace(); err != nil {
		return err
	}
	logger.Info(
		"starting capture preparation",
		logging.String("target", item.DisplayName()),
		logging.String("kind", string(item.Kind)),
		logging.Int("frame_count", settings.FrameCount),
	)
	if c.notifier != nil {
		if err := c.notifier.Publish(ctx, notifications.EventCaptureStarted, notifications.Payload{"name": item.DisplayName()}); err != nil {
			logger.Warn("failed to send capture start notification", logging.Error(err))
		}
	}
	return nil
}

func (c *Capturer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)
	settings, err := stage.ParseSettings(item.SettingsJSON)
	if err != nil {
		return err
	}
	if c.grabber == nil {
		return services.Wrap(
			services.ErrConfiguration,
			"capture",
			"libcamera client",
			"libcamera client unavailable; check still_binary and video_binary",
			nil,
		)
	}

	destDir := item.StagingRoot(c.cfg.Paths.StagingDir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"capture",
			"ensure session dir",
			"Failed to create session directory; set staging_dir to a writable location",
			err,
		)
	}
	logger.Info(
		"starting capture execution",
		logging.String("target", item.DisplayName()),
		logging.String("kind", string(item.Kind)),
		logging.String("destination_dir", destDir),
	)

	if item.Kind == queue.KindVideo {
		return c.executeVideo(ctx, item, destDir, settings)
	}
	return c.executeStills(ctx, item, destDir, settings)
}

func (c *Capturer) executeStills(ctx context.Context, item *queue.Item, destDir string, settings camera.Settings) error {
	logger := logging.WithContext(ctx, c.logger)
	if item.Kind == queue.KindStill {
		settings.FrameCount = 1
	}
	progressCB := func(update libcamera.ProgressUpdate) {
		c.applyProgress(ctx, item, update)
	}
	paths, err := c.grabber.StillSequence(ctx, libcamera.SequenceRequest{DestDir: destDir, Settings: settings}, progressCB)
	if len(paths) > 0 {
		// Partial frames survive cancellation so review can keep them.
		item.SetFramePaths(paths)
	}
	if err != nil {
		return c.classify("still sequence", err)
	}
	if len(paths) == 0 {
		return services.Wrap(
			services.ErrExternalTool,
			"capture",
			"still sequence",
			"Camera produced no frames; check the camera connection and libcamera logs",
			nil,
		)
	}
	if settings.Greyscale {
		for _, path := range paths {
			if err := greyscaleInPlace(path); err != nil {
				logger.Warn("greyscale conversion failed, keeping original frame",
					logging.String("frame", path), logging.Error(err))
			}
		}
	}
	item.SetFramePaths(paths)
	item.SetProgressComplete("Captured", fmt.Sprintf("Captured %d frames", len(paths)))
	logger.Info("capture completed", logging.Int("frames", len(paths)))
	if c.notifier != nil {
		payload := notifications.Payload{"name": item.DisplayName(), "frames": fmt.Sprintf("%d", len(paths))}
		if err := c.notifier.Publish(ctx, notifications.EventCaptureCompleted, payload); err != nil {
			logger.Warn("capture completion notification failed", logging.Error(err))
		}
	}
	return nil
}

func (c *Capturer) executeVideo(ctx context.Context, item *queue.Item, destDir string, settings camera.Settings) error {
	logger := logging.WithContext(ctx, c.logger)
	progressCB := func(update libcamera.ProgressUpdate) {
		c.applyProgress(ctx, item, update)
	}
	req := libcamera.VideoRequest{
		DestDir:  destDir,
		Width:    c.cfg.Camera.VideoWidth,
		Height:   c.cfg.Camera.VideoHeight,
		Settings: settings,
	}
	path, err := c.grabber.Video(ctx, req, progressCB)
	if err != nil {
		return c.classify("video", err)
	}
	item.VideoPath = path
	item.SetProgressComplete("Captured", fmt.Sprintf("Recorded %d second video", settings.VideoSeconds))
	logger.Info("video capture completed", logging.String("video_file", path))
	if c.notifier != nil {
		payload := notifications.Payload{"name": item.DisplayName(), "frames": "1"}
		if err := c.notifier.Publish(ctx, notifications.EventCaptureCompleted, payload); err != nil {
			logger.Warn("capture completion notification failed", logging.Error(err))
		}
	}
	return nil
}

// classify maps libcamera failures onto the service error taxonomy.
func (c *Capturer) classify(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(
			services.ErrTimeout,
			"capture",
			op,
			"Camera timed out; the exposure may exceed still_timeout",
			err,
		)
	case errors.Is(err, exec.ErrNotFound):
		return services.Wrap(
			services.ErrConfiguration,
			"capture",
			op,
			"libcamera binary not found; install libcamera-apps or set still_binary and video_binary",
			err,
		)
	default:
		return services.Wrap(
			services.ErrExternalTool,
			"capture",
			op,
			"Camera capture failed; check the camera connection and libcamera installation",
			err,
		)
	}
}

func (c *Capturer) checkDiskSpace() error {
	floor := c.cfg.Capture.MinFreeSpaceMB
	if floor <= 0 {
		return nil
	}
	if err := os.MkdirAll(c.cfg.Paths.StagingDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"capture",
			"ensure staging dir",
			"Failed to create staging directory; set staging_dir to a writable location",
			err,
		)
	}
	free, err := freeSpace(c.cfg.Paths.StagingDir)
	if err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"capture",
			"check disk space",
			"Could not determine free space for staging_dir",
			err,
		)
	}
	if free < uint64(floor)*1024*1024 {
		detail := fmt.Sprintf("Only %d MB free in staging, need at least %d MB; clear space or lower min_free_space_mb", free/(1024*1024), floor)
		return services.Wrap(services.ErrConfiguration, "capture", "check disk space", detail, nil)
	}
	return nil
}

// HealthCheck verifies libcamera capture dependencies.
func (c *Capturer) HealthCheck(ctx context.Context) stage.Health {
	const name = "capture"
	if c.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(c.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if c.grabber == nil {
		return stage.Unhealthy(name, "libcamera client unavailable")
	}
	for _, binary := range []string{c.cfg.StillBinary(), c.cfg.VideoBinary()} {
		if strings.TrimSpace(binary) == "" {
			return stage.Unhealthy(name, "camera binary not configured")
		}
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy(name, fmt.Sprintf("camera binary %q not found", binary))
		}
	}
	if !cameraPresent() {
		return stage.Unhealthy(name, "no camera device detected")
	}
	return stage.Healthy(name)
}

func (c *Capturer) applyProgress(ctx context.Context, item *queue.Item, update libcamera.ProgressUpdate) {
	logger := logging.WithContext(ctx, c.logger)
	copy := *item
	copy.ProgressStage = "Capturing"
	if update.Percent >= 0 {
		copy.ProgressPercent = update.Percent
	}
	if update.Message != "" {
		copy.ProgressMessage = update.Message
	}
	if c.store != nil {
		if err := c.store.UpdateProgress(ctx, &copy); err != nil {
			logger.Warn("failed to persist progress", logging.Error(err))
			return
		}
	}
	*item = copy
}
