// Package daemonrun wires the daemon process runtime: logging, queue store,
// workflow stages, IPC server, and signal handling. Both the standalone
// astropitographyd binary and `astropitography daemon run` call into it.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"astropitography/internal/capture"
	"astropitography/internal/config"
	"astropitography/internal/convert"
	"astropitography/internal/daemon"
	"astropitography/internal/ipc"
	"astropitography/internal/logging"
	"astropitography/internal/notifications"
	"astropitography/internal/organizer"
	"astropitography/internal/platesolve"
	"astropitography/internal/queue"
	"astropitography/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// SocketPath overrides the config-derived IPC socket location.
	SocketPath string
	// LogLevel overrides the configured log level when non-empty.
	LogLevel string
}

// Run starts the astropitography daemon loop and blocks until the context
// is cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		overridden := *cfg
		overridden.Logging.Level = level
		cfg = &overridden
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "astropitographyd.log")

	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "astropitographyd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	workflowManager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	registerStages(workflowManager, cfg, store, logger, notifier)

	d, err := daemon.New(cfg, store, logger, workflowManager, notifier, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and queue database access"),
			logging.String(logging.FieldImpact, "daemon may not process capture sessions"),
		)
	}

	<-signalCtx.Done()
	logger.Info("astropitography daemon shutting down")
	return nil
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) {
	if mgr == nil || cfg == nil {
		return
	}

	mgr.ConfigureStages(workflow.StageSet{
		Capturer:  capture.NewCapturer(cfg, store, logger),
		Converter: convert.NewConverter(cfg, store, logger),
		Solver:    platesolve.NewSolverWithDependencies(cfg, store, logger, notifier),
		Organizer: organizer.NewOrganizerWithDependencies(cfg, store, logger, notifier),
	})
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// logDependencySnapshot records what the capture and solve stages will find
// on this host so a headless install can be debugged from the log alone.
func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	still := cfg.StillBinary()
	video := cfg.VideoBinary()
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("still_available", binaryAvailable(still)),
		logging.String("still_binary", still),
		logging.Bool("video_available", binaryAvailable(video)),
		logging.String("video_binary", video),
		logging.Bool("solver_enabled", cfg.Solver.Enabled),
		logging.Bool("catalog_present", fileExists(cfg.Paths.CatalogPath)),
		logging.Bool("pattern_db_present", fileExists(cfg.Paths.PatternDBPath)),
		logging.Bool("ntfy_topic_present", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
