package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"astropitography/internal/config"
	"astropitography/internal/daemon"
	"astropitography/internal/ipc"
	"astropitography/internal/logging"
	"astropitography/internal/queue"
	"astropitography/internal/stage"
	"astropitography/internal/testsupport"
	"astropitography/internal/workflow"
)

// noopStage satisfies the stage handler contract without doing any work, so
// CLI tests can run a live daemon without cameras or solver databases.
type noopStage struct{}

func (noopStage) Prepare(context.Context, *queue.Item) error { return nil }
func (noopStage) Execute(context.Context, *queue.Item) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health   { return stage.Healthy("noop") }

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	socketPath string
	configPath string
}

// setupCLITestEnv builds a temp-dir config, opens a queue store, and runs a
// daemon with an IPC server so commands exercise the same socket path users do.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithSolverDisabled())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	configPath := writeTestConfig(t, cfg)

	store := testsupport.MustOpenStore(t, cfg)

	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger)
	// No capture stage: pending sessions must stay pending so assertions do
	// not depend on whether the host has a /dev/video* node.
	mgr.ConfigureStages(workflow.StageSet{
		Converter: noopStage{},
		Solver:    noopStage{},
		Organizer: noopStage{},
	})

	d, err := daemon.New(cfg, store, logger, mgr, nil, filepath.Join(cfg.Paths.LogDir, "astropitographyd.log"))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}

	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		d.Stop()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	go srv.Serve()

	t.Cleanup(func() {
		srv.Close()
		d.Stop()
		cancel()
		_ = d.Close()
	})

	waitFor(t, 2*time.Second, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		socketPath: socketPath,
		configPath: configPath,
	}
}

// writeTestConfig serializes the config to disk so commands that load it via
// --config observe the same paths the test environment uses.
func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// runCLI executes the root command with the given args against the test socket
// and returns captured stdout, stderr, and the command error.
func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	flags := []string{"--socket", env.socketPath}
	if env.configPath != "" {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func waitFor(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
