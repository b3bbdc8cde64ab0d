package organizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"astropitography/internal/config"
	"astropitography/internal/fileutil"
	"astropitography/internal/logging"
	"astropitography/internal/notifications"
	"astropitography/internal/queue"
	"astropitography/internal/services"
	"astropitography/internal/stage"
)

// Organizer moves session artifacts into the final library location.
type Organizer struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
}

// NewOrganizer constructs the organizer stage handler using default dependencies.
func NewOrganizer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Organizer {
	return NewOrganizerWithDependencies(cfg, store, logger, notifications.NewService(cfg))
}

// NewOrganizerWithDependencies allows injecting collaborators (used in tests).
func NewOrganizerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Organizer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "organizer"))
	}
	return &Organizer{store: store, cfg: cfg, logger: stageLogger, notifier: notifier}
}

func (o *Organizer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, o.logger)
	item.InitProgress("Organizing", "Preparing library filing")
	if len(item.FramePaths()) == 0 && len(item.DNGPaths()) == 0 && strings.TrimSpace(item.VideoPath) == "" {
		return services.Wrap(
			services.ErrValidation,
			"organizing",
			"validate inputs",
			"No captured files present to organize; the session has nothing to file",
			nil,
		)
	}
	logger.Info(
		"starting organization preparation",
		logging.String("target", item.DisplayName()),
		logging.Int("frames", len(item.FramePaths())),
		logging.Int("dng_files", len(item.DNGPaths())),
	)
	return nil
}

func (o *Organizer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, o.logger)
	destDir, err := o.allocateSessionDir(item)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"organizing",
			"ensure library dir",
			"Failed to create library directory; check library_dir permissions",
			err,
		)
	}
	logger.Info("organizing session into library", logging.String("library_dir", destDir))

	sources := make([]string, 0, len(item.FramePaths())+len(item.DNGPaths())+1)
	sources = append(sources, item.FramePaths()...)
	sources = append(sources, item.DNGPaths()...)
	if strings.TrimSpace(item.VideoPath) != "" {
		sources = append(sources, item.VideoPath)
	}

	moved := make(map[string]string, len(sources))
	for index, source := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(destDir, filepath.Base(source))
		if err := fileutil.MoveFile(source, target); err != nil {
			return services.Wrap(
				services.ErrTransient,
				"organizing",
				"move into library",
				fmt.Sprintf("Failed to move %s into the library", filepath.Base(source)),
				err,
			)
		}
		moved[source] = target
		percent := float64(index+1) / float64(len(sources)) * 70
		o.updateProgress(ctx, item, fmt.Sprintf("Moved %d/%d files", index+1, len(sources)), percent)
	}

	item.SetFramePaths(rewritePaths(item.FramePaths(), moved))
	item.SetDNGPaths(rewritePaths(item.DNGPaths(), moved))
	if target, ok := moved[item.VideoPath]; ok {
		item.VideoPath = target
	}

	if frames := item.FramePaths(); len(frames) > 0 {
		o.updateProgress(ctx, item, "Rendering thumbnail", 80)
		if err := writeThumbnail(frames[0], filepath.Join(destDir, thumbnailName)); err != nil {
			logger.Warn("thumbnail render failed", logging.Error(err))
		}
	}

	o.updateProgress(ctx, item, "Writing session manifest", 90)
	if err := writeManifest(destDir, item); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"organizing",
			"write manifest",
			"Failed to write the session.json manifest",
			err,
		)
	}

	item.LibraryDir = destDir
	item.SetProgressComplete("Organized", fmt.Sprintf("Filed in library: %s", filepath.Base(destDir)))
	logger.Info(
		"organization completed",
		logging.String("library_dir", destDir),
		logging.Int("files", len(sources)),
	)

	o.cleanupStaging(ctx, item)

	if o.notifier != nil {
		payload := notifications.Payload{"name": item.DisplayName(), "path": destDir}
		if err := o.notifier.Publish(ctx, notifications.EventSessionCompleted, payload); err != nil {
			logger.Warn("session completion notification failed", logging.Error(err))
		}
	}
	return nil
}

// HealthCheck verifies organizer prerequisites.
func (o *Organizer) HealthCheck(ctx context.Context) stage.Health {
	const name = "organizer"
	if o.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(o.cfg.Paths.LibraryDir) == "" {
		return stage.Unhealthy(name, "library directory not configured")
	}
	return stage.Healthy(name)
}

// rewritePaths maps staged paths onto their library targets, dropping any
// path that was never moved.
func rewritePaths(paths []string, moved map[string]string) []string {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if target, ok := moved[path]; ok {
			out = append(out, target)
		}
	}
	return out
}

func (o *Organizer) cleanupStaging(ctx context.Context, item *queue.Item) {
	if item == nil || o.cfg == nil {
		return
	}
	base := strings.TrimSpace(o.cfg.Paths.StagingDir)
	if base == "" {
		return
	}
	root := strings.TrimSpace(item.StagingRoot(base))
	if root == "" {
		return
	}
	logger := logging.WithContext(ctx, o.logger)
	if err := os.RemoveAll(root); err != nil {
		logger.Warn("failed to clean staging directory; leftover files remain",
			logging.String("staging_root", root),
			logging.Error(err),
			logging.String(logging.FieldEventType, "staging_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed; manual cleanup needed"),
		)
		return
	}
	logger.Debug("cleaned staging directory", logging.String("staging_root", root))
}

func (o *Organizer) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, o.logger)
	copy := *item
	copy.ProgressStage = "Organizing"
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if o.store != nil {
		if err := o.store.UpdateProgress(ctx, &copy); err != nil {
			logger.Warn("failed to persist organizer progress; queue status may lag",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_progress_persist_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "queue UI may show stale progress"),
			)
			return
		}
	}
	*item = copy
}
