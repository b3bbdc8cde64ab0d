package daemon_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"astropitography/internal/config"
	"astropitography/internal/daemon"
	"astropitography/internal/logging"
	"astropitography/internal/queue"
	"astropitography/internal/stage"
	"astropitography/internal/testsupport"
	"astropitography/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *queue.Item) error { return nil }
func (noopStage) Execute(context.Context, *queue.Item) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

func daemonConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSolverDisabled())
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 5
	cfg.Capture.MinFreeSpaceMB = 0
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return cfg
}

func newTestDaemon(t *testing.T) (*daemon.Daemon, *queue.Store, *config.Config) {
	t.Helper()
	cfg := daemonConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger)
	mgr.ConfigureStages(workflow.StageSet{Capturer: noopStage{}})
	d, err := daemon.New(cfg, store, logger, mgr, nil, "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})
	return d, store, cfg
}

func TestDaemonStartStop(t *testing.T) {
	d, _, cfg := newTestDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID <= 0 {
		t.Fatalf("expected positive pid, got %d", status.PID)
	}
	if status.QueueDBPath != cfg.QueueDatabasePath() {
		t.Fatalf("unexpected queue db path: %q", status.QueueDBPath)
	}
	if !strings.HasSuffix(status.LockFilePath, "astropitographyd.lock") {
		t.Fatalf("unexpected lock path: %q", status.LockFilePath)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonEnqueueCapture(t *testing.T) {
	d, store, _ := newTestDaemon(t)
	ctx := context.Background()

	item, err := d.EnqueueCapture(ctx, queue.KindStill, "M42", "")
	if err != nil {
		t.Fatalf("EnqueueCapture: %v", err)
	}
	if item.Kind != queue.KindStill {
		t.Fatalf("unexpected kind: %s", item.Kind)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("unexpected status: %s", item.Status)
	}
	if !strings.Contains(item.SettingsJSON, `"iso":800`) {
		t.Fatalf("expected default settings in payload, got %q", item.SettingsJSON)
	}

	stored, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored == nil || stored.TargetName != "M42" {
		t.Fatalf("stored item mismatch: %+v", stored)
	}
}

func TestDaemonEnqueueCaptureRejectsVideoKind(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	if _, err := d.EnqueueCapture(context.Background(), queue.KindVideo, "Moon", ""); err == nil {
		t.Fatal("expected error for video kind")
	}
}

func TestDaemonEnqueueCaptureValidatesSettings(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	if _, err := d.EnqueueCapture(context.Background(), queue.KindStill, "M31", `{"iso": 50}`); err == nil {
		t.Fatal("expected error for out-of-range iso")
	}
	if _, err := d.EnqueueCapture(context.Background(), queue.KindStill, "M31", `{"exposure_seconds": 100000}`); err == nil {
		t.Fatal("expected error for exposure beyond the configured maximum")
	}
	if _, err := d.EnqueueCapture(context.Background(), queue.KindStill, "M31", `{not json`); err == nil {
		t.Fatal("expected error for malformed settings payload")
	}
}

func TestDaemonEnqueueVideo(t *testing.T) {
	d, _, _ := newTestDaemon(t)

	item, err := d.EnqueueVideo(context.Background(), "Jupiter", `{"video_seconds": 30}`)
	if err != nil {
		t.Fatalf("EnqueueVideo: %v", err)
	}
	if item.Kind != queue.KindVideo {
		t.Fatalf("unexpected kind: %s", item.Kind)
	}
	if !strings.Contains(item.SettingsJSON, `"video_seconds":30`) {
		t.Fatalf("expected video duration in payload, got %q", item.SettingsJSON)
	}
}

func TestDaemonQueueMaintenance(t *testing.T) {
	d, store, _ := newTestDaemon(t)
	ctx := context.Background()

	first, err := d.EnqueueCapture(ctx, queue.KindStill, "M42", "")
	if err != nil {
		t.Fatalf("EnqueueCapture: %v", err)
	}
	second, err := d.EnqueueCapture(ctx, queue.KindSequence, "M31", "")
	if err != nil {
		t.Fatalf("EnqueueCapture: %v", err)
	}

	items, err := d.ListQueue(ctx, nil)
	if err != nil {
		t.Fatalf("ListQueue: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	pending, err := d.ListQueue(ctx, []queue.Status{queue.StatusPending})
	if err != nil {
		t.Fatalf("ListQueue pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending items, got %d", len(pending))
	}

	item, err := d.GetQueueItem(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetQueueItem: %v", err)
	}
	if item == nil || item.ID != first.ID {
		t.Fatalf("unexpected item: %+v", item)
	}

	stopped, err := d.StopQueueItems(ctx, []int64{second.ID})
	if err != nil {
		t.Fatalf("StopQueueItems: %v", err)
	}
	if stopped != 1 {
		t.Fatalf("expected 1 stopped item, got %d", stopped)
	}
	parked, err := store.GetByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if parked.Status != queue.StatusReview {
		t.Fatalf("expected review status after stop, got %s", parked.Status)
	}

	retried, err := d.RetryFailed(ctx, []int64{second.ID})
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried item, got %d", retried)
	}

	removed, err := d.RemoveQueueItems(ctx, []int64{first.ID, 9999})
	if err != nil {
		t.Fatalf("RemoveQueueItems: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed item, got %d", removed)
	}

	health, err := d.QueueHealth(ctx)
	if err != nil {
		t.Fatalf("QueueHealth: %v", err)
	}
	if health.Total != 1 {
		t.Fatalf("expected 1 remaining item, got %d", health.Total)
	}

	cleared, err := d.ClearQueue(ctx)
	if err != nil {
		t.Fatalf("ClearQueue: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared item, got %d", cleared)
	}
}

func TestDaemonDatabaseHealth(t *testing.T) {
	d, _, cfg := newTestDaemon(t)

	health, err := d.DatabaseHealth(context.Background())
	if err != nil {
		t.Fatalf("DatabaseHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("expected healthy database, got %+v", health)
	}
	if health.DBPath != cfg.QueueDatabasePath() {
		t.Fatalf("unexpected db path: %q", health.DBPath)
	}
}

func TestDaemonTestNotificationWithoutTopic(t *testing.T) {
	d, _, _ := newTestDaemon(t)

	sent, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent {
		t.Fatal("expected notification to be skipped without a topic")
	}
	if !strings.Contains(message, "not configured") {
		t.Fatalf("unexpected message: %q", message)
	}
}

func TestDaemonPreviewFrame(t *testing.T) {
	d, store, _ := newTestDaemon(t)
	ctx := context.Background()

	if _, err := d.PreviewFrame(ctx, 0); !errors.Is(err, daemon.ErrNoPreviewFrame) {
		t.Fatalf("expected ErrNoPreviewFrame, got %v", err)
	}

	item, err := d.EnqueueCapture(ctx, queue.KindStill, "M42", "")
	if err != nil {
		t.Fatalf("EnqueueCapture: %v", err)
	}
	if _, err := d.PreviewFrame(ctx, item.ID); !errors.Is(err, daemon.ErrNoPreviewFrame) {
		t.Fatalf("expected ErrNoPreviewFrame for frameless session, got %v", err)
	}

	item.SetFramePaths([]string{"/tmp/frame-0001.jpg", "/tmp/frame-0002.jpg"})
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	path, err := d.PreviewFrame(ctx, item.ID)
	if err != nil {
		t.Fatalf("PreviewFrame: %v", err)
	}
	if path != "/tmp/frame-0002.jpg" {
		t.Fatalf("expected newest frame, got %q", path)
	}

	latest, err := d.PreviewFrame(ctx, 0)
	if err != nil {
		t.Fatalf("PreviewFrame latest: %v", err)
	}
	if latest != "/tmp/frame-0002.jpg" {
		t.Fatalf("expected latest frame, got %q", latest)
	}
}
