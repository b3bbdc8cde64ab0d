package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"astropitography/internal/daemon"
	"astropitography/internal/ipc"
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

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSolverDisabled())
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 5
	cfg.Capture.MinFreeSpaceMB = 0
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger)
	mgr.ConfigureStages(workflow.StageSet{Capturer: noopStage{}})

	logPath := filepath.Join(cfg.Paths.LogDir, "astropitographyd.log")
	if err := os.WriteFile(logPath, []byte("line one\nline two\nline three\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	d, err := daemon.New(cfg, store, logger, mgr, nil, logPath)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to report not running before start")
	}
	if !strings.HasSuffix(status.QueueDBPath, "queue.db") {
		t.Fatalf("unexpected queue db path: %q", status.QueueDBPath)
	}

	capResp, err := client.Capture(ipc.CaptureRequest{Kind: "still", TargetName: "M42"})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if capResp.Item.ID <= 0 || capResp.Item.Kind != "still" {
		t.Fatalf("unexpected capture item: %+v", capResp.Item)
	}
	if capResp.Item.TargetName != "M42" {
		t.Fatalf("unexpected target name: %q", capResp.Item.TargetName)
	}
	if capResp.Item.Status != string(queue.StatusPending) {
		t.Fatalf("expected pending capture, got %s", capResp.Item.Status)
	}

	if _, err := client.Capture(ipc.CaptureRequest{Kind: "video", TargetName: "Moon"}); err == nil {
		t.Fatal("expected capture to reject video kind")
	}
	if _, err := client.Capture(ipc.CaptureRequest{Kind: "still", SettingsJSON: `{"iso": 9999}`}); err == nil {
		t.Fatal("expected capture to reject out-of-range settings")
	}

	vidResp, err := client.Video(ipc.VideoRequest{TargetName: "Jupiter", SettingsJSON: `{"video_seconds": 20}`})
	if err != nil {
		t.Fatalf("Video failed: %v", err)
	}
	if vidResp.Item.Kind != "video" {
		t.Fatalf("unexpected video item: %+v", vidResp.Item)
	}

	listResp, err := client.QueueList(nil)
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(listResp.Items) != 2 {
		t.Fatalf("expected 2 queue items, got %d", len(listResp.Items))
	}

	pendingResp, err := client.QueueList([]string{string(queue.StatusPending)})
	if err != nil {
		t.Fatalf("QueueList pending filter: %v", err)
	}
	if len(pendingResp.Items) != 2 {
		t.Fatalf("expected 2 pending items, got %d", len(pendingResp.Items))
	}

	describe, err := client.QueueDescribe(capResp.Item.ID)
	if err != nil {
		t.Fatalf("QueueDescribe failed: %v", err)
	}
	if !describe.Found || describe.Item.TargetName != "M42" {
		t.Fatalf("unexpected describe result: %+v", describe)
	}

	missing, err := client.QueueDescribe(99999)
	if err != nil {
		t.Fatalf("QueueDescribe missing: %v", err)
	}
	if missing.Found {
		t.Fatal("expected missing item to report not found")
	}

	if _, err := client.QueueDescribe(0); err == nil {
		t.Fatal("expected invalid describe id to error")
	}

	stopItems, err := client.QueueStop([]int64{vidResp.Item.ID})
	if err != nil {
		t.Fatalf("QueueStop failed: %v", err)
	}
	if stopItems.Updated != 1 {
		t.Fatalf("expected 1 stopped item, got %d", stopItems.Updated)
	}
	if _, err := client.QueueStop(nil); err == nil {
		t.Fatal("expected queue stop without ids to error")
	}

	healthResp, err := client.QueueHealth()
	if err != nil {
		t.Fatalf("QueueHealth failed: %v", err)
	}
	if healthResp.Total != 2 || healthResp.Review != 1 || healthResp.Pending != 1 {
		t.Fatalf("unexpected health response: %#v", healthResp)
	}

	retryResp, err := client.QueueRetry([]int64{vidResp.Item.ID})
	if err != nil {
		t.Fatalf("QueueRetry failed: %v", err)
	}
	if retryResp.Updated != 1 {
		t.Fatalf("expected 1 retried item, got %d", retryResp.Updated)
	}

	dbHealth, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth failed: %v", err)
	}
	if !strings.HasSuffix(dbHealth.DBPath, "queue.db") {
		t.Fatalf("unexpected db path: %s", dbHealth.DBPath)
	}
	if !dbHealth.DatabaseExists || !dbHealth.TableExists {
		t.Fatalf("expected healthy database, got %#v", dbHealth)
	}

	resetResp, err := client.QueueReset()
	if err != nil {
		t.Fatalf("QueueReset failed: %v", err)
	}
	if resetResp.Updated != 0 {
		t.Fatalf("expected 0 stuck items reset, got %d", resetResp.Updated)
	}

	removeResp, err := client.QueueRemove([]int64{capResp.Item.ID})
	if err != nil {
		t.Fatalf("QueueRemove failed: %v", err)
	}
	if removeResp.Removed != 1 {
		t.Fatalf("expected 1 removed item, got %d", removeResp.Removed)
	}
	if _, err := client.QueueRemove(nil); err == nil {
		t.Fatal("expected queue remove without ids to error")
	}

	clearCompletedResp, err := client.QueueClearCompleted()
	if err != nil {
		t.Fatalf("QueueClearCompleted failed: %v", err)
	}
	if clearCompletedResp.Removed != 0 {
		t.Fatalf("expected 0 completed items removed, got %d", clearCompletedResp.Removed)
	}

	clearFailedResp, err := client.QueueClearFailed()
	if err != nil {
		t.Fatalf("QueueClearFailed failed: %v", err)
	}
	if clearFailedResp.Removed != 0 {
		t.Fatalf("expected 0 failed items removed, got %d", clearFailedResp.Removed)
	}

	clearResp, err := client.QueueClear()
	if err != nil {
		t.Fatalf("QueueClear failed: %v", err)
	}
	if clearResp.Removed != 1 {
		t.Fatalf("expected 1 item cleared, got %d", clearResp.Removed)
	}

	logResp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail initial failed: %v", err)
	}
	if len(logResp.Lines) != 2 || logResp.Lines[0] != "line two" || logResp.Lines[1] != "line three" {
		t.Fatalf("unexpected log tail response: %#v", logResp.Lines)
	}
	if logResp.Offset <= 0 {
		t.Fatalf("expected positive log offset, got %d", logResp.Offset)
	}

	followDone := make(chan struct{})
	go func(offset int64) {
		resp, err := client.LogTail(ipc.LogTailRequest{Offset: offset, Follow: true, WaitMillis: 5000})
		if err != nil {
			t.Errorf("LogTail follow error: %v", err)
			return
		}
		if len(resp.Lines) != 1 || resp.Lines[0] != "line four" {
			t.Errorf("unexpected follow lines: %#v", resp.Lines)
		}
		close(followDone)
	}(logResp.Offset)

	time.Sleep(100 * time.Millisecond)
	if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		_, _ = f.WriteString("line four\n")
		_ = f.Close()
	} else {
		t.Fatalf("append log: %v", err)
	}

	select {
	case <-followDone:
	case <-time.After(10 * time.Second):
		t.Fatal("log tail follow timed out")
	}

	notifyResp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notifyResp.Sent {
		t.Fatal("expected notification to be skipped without a topic")
	}
	if !strings.Contains(notifyResp.Message, "not configured") {
		t.Fatalf("unexpected notification message: %q", notifyResp.Message)
	}

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}

	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.PID <= 0 {
		t.Fatalf("expected positive pid, got %d", status.PID)
	}

	secondStart, err := client.Start()
	if err != nil {
		t.Fatalf("second Start RPC failed: %v", err)
	}
	if secondStart.Started {
		t.Fatal("expected second start to be rejected")
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatal("expected stop response to be true")
	}

	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status after stop failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}
