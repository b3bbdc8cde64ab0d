package daemonrun

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"astropitography/internal/logging"
	"astropitography/internal/testsupport"
	"astropitography/internal/workflow"
)

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "astropitographyd.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("pid file does not contain a number: %q", data)
	}
	if pid != os.Getpid() {
		t.Fatalf("pid file contains %d, want %d", pid, os.Getpid())
	}
}

func TestWritePIDFileEmptyPathIsNoop(t *testing.T) {
	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be a no-op, got %v", err)
	}
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.bin")
	if fileExists(path) {
		t.Fatal("missing file reported as present")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !fileExists(path) {
		t.Fatal("existing file reported as missing")
	}
	if fileExists("") {
		t.Fatal("blank path must not report present")
	}
}

func TestBinaryAvailable(t *testing.T) {
	if binaryAvailable("") {
		t.Fatal("blank binary name must not report available")
	}
	if binaryAvailable("definitely-not-a-real-binary-name") {
		t.Fatal("unknown binary reported available")
	}
	if !binaryAvailable("sh") {
		t.Fatal("expected sh on PATH")
	}
}

func TestRegisterStagesWiresAllHandlers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	mgr := workflow.NewManager(cfg, store, logger)
	registerStages(mgr, cfg, store, logger, nil)

	summary := mgr.Status(t.Context())
	for _, name := range []string{"capture", "convert", "platesolve", "organize"} {
		if _, ok := summary.StageHealth[name]; !ok {
			t.Fatalf("stage %q missing from health map: %v", name, summary.StageHealth)
		}
	}
}
