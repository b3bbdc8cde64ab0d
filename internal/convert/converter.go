package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"astropitography/internal/bayer"
	"astropitography/internal/config"
	"astropitography/internal/dng"
	"astropitography/internal/logging"
	"astropitography/internal/queue"
	"astropitography/internal/services"
	"astropitography/internal/stage"
)

// Converter manages DNG extraction for captured sessions.
type Converter struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewConverter constructs the conversion handler.
func NewConverter(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Converter {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "converter"))
	}
	return &Converter{store: store, cfg: cfg, logger: stageLogger}
}

func (c *Converter) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)
	item.InitProgress("Converting", "Starting DNG extraction")
	if item.Kind != queue.KindVideo && len(item.FramePaths()) == 0 {
		return services.Wrap(
			services.ErrValidation,
			"convert",
			"check frames",
			"No captured frames recorded for this session",
			nil,
		)
	}
	logger.Info(
		"starting conversion preparation",
		logging.String("target", item.DisplayName()),
		logging.Int("frames", len(item.FramePaths())),
	)
	return nil
}

func (c *Converter) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)
	if item.Kind == queue.KindVideo {
		item.SetProgressComplete("Converted", "Video session, nothing to extract")
		logger.Info("skipping conversion for video session")
		return nil
	}

	frames := item.FramePaths()
	kept := make([]string, 0, len(frames))
	dngs := make([]string, 0, len(frames))
	for index, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		output, err := c.convertFrame(frame)
		if err != nil {
			if errors.Is(err, services.ErrTransient) {
				return err
			}
			logger.Warn("frame raw block unreadable, keeping JPEG only",
				logging.String("frame", frame), logging.Error(err))
			kept = append(kept, frame)
			continue
		}
		if output == "" {
			logger.Info("frame has no raw block, skipping", logging.String("frame", frame))
			kept = append(kept, frame)
			continue
		}
		dngs = append(dngs, output)
		if c.cfg.Camera.KeepRawOriginals {
			kept = append(kept, frame)
		} else if err := os.Remove(frame); err != nil {
			logger.Warn("failed to remove JPEG twin", logging.String("frame", frame), logging.Error(err))
			kept = append(kept, frame)
		}
		c.applyProgress(ctx, item, index+1, len(frames))
	}

	item.SetFramePaths(kept)
	item.SetDNGPaths(dngs)
	if len(dngs) == 0 {
		item.SetProgressComplete("Converted", "No raw data found, kept JPEG frames")
	} else {
		item.SetProgressComplete("Converted", fmt.Sprintf("Extracted %d DNG files", len(dngs)))
	}
	logger.Info("conversion completed",
		logging.Int("dng_files", len(dngs)),
		logging.Int("frames", len(frames)),
	)
	return nil
}

// convertFrame extracts the raw block from one capture. An empty path with a
// nil error means the frame carried no raw data.
func (c *Converter) convertFrame(frame string) (string, error) {
	decoded, err := bayer.DecodeFile(frame)
	if err != nil {
		if errors.Is(err, bayer.ErrNoRawData) {
			return "", nil
		}
		return "", err
	}
	output := strings.TrimSuffix(frame, filepath.Ext(frame)) + ".dng"
	meta := dng.Metadata{
		Make:      "Raspberry Pi",
		Model:     decoded.SensorName,
		Timestamp: time.Now(),
	}
	if err := dng.WriteFile(output, decoded, meta); err != nil {
		return "", services.Wrap(
			services.ErrTransient,
			"convert",
			"write dng",
			"Failed to write DNG next to the frame; check staging disk space",
			err,
		)
	}
	return output, nil
}

// HealthCheck verifies conversion dependencies.
func (c *Converter) HealthCheck(ctx context.Context) stage.Health {
	const name = "convert"
	if c.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(c.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	return stage.Healthy(name)
}

func (c *Converter) applyProgress(ctx context.Context, item *queue.Item, done, total int) {
	logger := logging.WithContext(ctx, c.logger)
	copy := *item
	copy.ProgressStage = "Converting"
	copy.ProgressPercent = float64(done) / float64(total) * 100
	copy.ProgressMessage = fmt.Sprintf("Extracted DNG %d/%d", done, total)
	if c.store != nil {
		if err := c.store.UpdateProgress(ctx, &copy); err != nil {
			logger.Warn("failed to persist progress", logging.Error(err))
			return
		}
	}
	*item = copy
}
