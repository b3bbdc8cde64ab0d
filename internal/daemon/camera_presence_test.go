package daemon

import (
	"context"
	"testing"

	"astropitography/internal/logging"
	"astropitography/internal/preflight"
	"astropitography/internal/testsupport"
	"astropitography/internal/workflow"
)

func newDaemonForTest(t *testing.T) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSolverDisabled())
	cfg.Capture.MinFreeSpaceMB = 0
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger)
	d, err := New(cfg, store, logger, mgr, nil, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestSetCameraPresenceTracksEdges(t *testing.T) {
	d := newDaemonForTest(t)
	ctx := context.Background()

	if d.cameraSnapshot().Detected {
		t.Fatal("expected no camera before first probe")
	}

	d.setCameraPresence(preflight.CameraProbe{Detected: true, Device: "/dev/video0", Name: "imx477"})
	snapshot := d.cameraSnapshot()
	if !snapshot.Detected || snapshot.Device != "/dev/video0" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if !d.workflow.Status(ctx).CameraAvailable {
		t.Fatal("expected workflow capture gate to open")
	}

	d.setCameraPresence(preflight.CameraProbe{})
	if d.cameraSnapshot().Detected {
		t.Fatal("expected camera to be marked absent")
	}
	if d.workflow.Status(ctx).CameraAvailable {
		t.Fatal("expected workflow capture gate to close")
	}

	status := d.Status(ctx)
	if status.Camera.Detected {
		t.Fatalf("expected status to report no camera, got %+v", status.Camera)
	}
}

func TestRefreshCameraUsesProbe(t *testing.T) {
	d := newDaemonForTest(t)

	var calls int
	d.probe = func() preflight.CameraProbe {
		calls++
		return preflight.CameraProbe{Detected: true, Device: "/dev/video9", Name: "test-cam"}
	}

	d.refreshCamera()
	if calls != 1 {
		t.Fatalf("expected probe to run once, got %d", calls)
	}

	status := d.Status(context.Background())
	if !status.Camera.Detected || status.Camera.Name != "test-cam" {
		t.Fatalf("unexpected camera status: %+v", status.Camera)
	}
}
