package libcamera_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"astropitography/internal/camera"
	"astropitography/internal/services/libcamera"
)

type stubExecutor struct {
	err          error
	createOutput bool
	stderrLines  []string
	calls        int
	binaries     []string
	args         [][]string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error {
	s.calls++
	s.binaries = append(s.binaries, binary)
	s.args = append(s.args, append([]string(nil), args...))
	if onStderr != nil {
		for _, line := range s.stderrLines {
			onStderr(line)
		}
	}
	if s.err != nil {
		return s.err
	}
	if s.createOutput {
		if path := outputArg(args); path != "" {
			if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

func outputArg(args []string) string {
	for idx, arg := range args {
		if (arg == "--output" || arg == "-o") && idx+1 < len(args) {
			return args[idx+1]
		}
	}
	return ""
}

func fixedClock() func() time.Time {
	ts := time.Date(2026, time.August, 25, 21, 4, 5, 0, time.UTC)
	return func() time.Time { return ts }
}

func newTestClient(t *testing.T, exec libcamera.Executor) *libcamera.Client {
	t.Helper()
	client, err := libcamera.New("libcamera-still", "libcamera-vid", 5, 10,
		libcamera.WithExecutor(exec), libcamera.WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresBinaries(t *testing.T) {
	if _, err := libcamera.New("", "libcamera-vid", 5, 10); err == nil {
		t.Fatal("expected error for missing still binary")
	}
	if _, err := libcamera.New("libcamera-still", "", 5, 10); err == nil {
		t.Fatal("expected error for missing video binary")
	}
}

func TestStillSequenceCapturesConfiguredFrames(t *testing.T) {
	exec := &stubExecutor{createOutput: true}
	client := newTestClient(t, exec)

	settings := camera.DefaultSettings()
	settings.FrameCount = 3
	settings.IntervalSeconds = 0

	var updates []libcamera.ProgressUpdate
	paths, err := client.StillSequence(context.Background(), libcamera.SequenceRequest{
		DestDir:  t.TempDir(),
		Settings: settings,
	}, func(update libcamera.ProgressUpdate) {
		updates = append(updates, update)
	})
	if err != nil {
		t.Fatalf("StillSequence returned error: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(paths))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected frame on disk: %v", err)
		}
	}
	if exec.calls != 3 {
		t.Fatalf("expected 3 subprocess invocations, got %d", exec.calls)
	}
	if filepath.Base(paths[0]) != "Image_25_08_2026_21_04_05_no-0.jpeg" {
		t.Fatalf("unexpected frame filename %q", filepath.Base(paths[0]))
	}
	if filepath.Base(paths[2]) != "Image_25_08_2026_21_04_05_no-2.jpeg" {
		t.Fatalf("unexpected frame filename %q", filepath.Base(paths[2]))
	}
	if len(updates) == 0 {
		t.Fatal("expected progress updates")
	}
	last := updates[len(updates)-1]
	if last.Percent != 100 {
		t.Fatalf("expected final progress 100%%, got %f", last.Percent)
	}
}

func TestStillArgsMapSliderRanges(t *testing.T) {
	exec := &stubExecutor{createOutput: true}
	client := newTestClient(t, exec)

	settings := camera.DefaultSettings()
	settings.Brightness = 75
	settings.Contrast = 50
	settings.Saturation = -50
	settings.Sharpness = 50
	settings.ISO = 800

	paths, err := client.StillSequence(context.Background(), libcamera.SequenceRequest{
		DestDir:  t.TempDir(),
		Settings: settings,
	}, nil)
	if err != nil {
		t.Fatalf("StillSequence returned error: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected one frame, got %d", len(paths))
	}

	args := strings.Join(exec.args[0], " ")
	for _, want := range []string{
		"--brightness 0.50",
		"--contrast 1.50",
		"--saturation 0.50",
		"--sharpness 1.00",
		"--gain 8.00",
		"--timeout 5000",
		"--raw",
		"--nopreview",
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected args to contain %q, got %q", want, args)
		}
	}
	if strings.Contains(args, "--shutter") {
		t.Fatalf("standard exposure must not set a shutter time, got %q", args)
	}
}

func TestLongExposureUsesShutterPath(t *testing.T) {
	exec := &stubExecutor{createOutput: true}
	client := newTestClient(t, exec)

	settings := camera.DefaultSettings()
	settings.ExposureSeconds = 30

	paths, err := client.StillSequence(context.Background(), libcamera.SequenceRequest{
		DestDir:  t.TempDir(),
		Settings: settings,
	}, nil)
	if err != nil {
		t.Fatalf("StillSequence returned error: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected one frame, got %d", len(paths))
	}
	if filepath.Base(paths[0]) != "Image_25_08_2026_21_04_05_no-0_LE_30s.jpeg" {
		t.Fatalf("unexpected long exposure filename %q", filepath.Base(paths[0]))
	}

	args := strings.Join(exec.args[0], " ")
	for _, want := range []string{
		"--shutter 30000000",
		"--awbgains 1,1",
		"--immediate",
		"--gain 8.00",
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected args to contain %q, got %q", want, args)
		}
	}
	if strings.Contains(args, "--timeout") {
		t.Fatalf("long exposure must not set the warmup timeout, got %q", args)
	}
}

func TestStillSequenceReturnsExecutorError(t *testing.T) {
	exec := &stubExecutor{err: errors.New("boom")}
	client := newTestClient(t, exec)

	paths, err := client.StillSequence(context.Background(), libcamera.SequenceRequest{
		DestDir:  t.TempDir(),
		Settings: camera.DefaultSettings(),
	}, nil)
	if err == nil {
		t.Fatal("expected error from executor")
	}
	if len(paths) != 0 {
		t.Fatalf("expected no frames recorded, got %d", len(paths))
	}
}

func TestStillSequenceErrorsWhenNoOutputProduced(t *testing.T) {
	exec := &stubExecutor{}
	client := newTestClient(t, exec)

	_, err := client.StillSequence(context.Background(), libcamera.SequenceRequest{
		DestDir:  t.TempDir(),
		Settings: camera.DefaultSettings(),
	}, nil)
	if err == nil {
		t.Fatal("expected error when no frame is written")
	}
	if !strings.Contains(err.Error(), "no output file") {
		t.Fatalf("expected 'no output file' error, got: %v", err)
	}
}

func TestStillSequenceHonorsCancellation(t *testing.T) {
	exec := &stubExecutor{createOutput: true}
	client := newTestClient(t, exec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.StillSequence(ctx, libcamera.SequenceRequest{
		DestDir:  t.TempDir(),
		Settings: camera.DefaultSettings(),
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if exec.calls != 0 {
		t.Fatalf("expected no subprocess invocations after cancel, got %d", exec.calls)
	}
}

func TestVideoRecordsClip(t *testing.T) {
	exec := &stubExecutor{createOutput: true}
	client := newTestClient(t, exec)

	settings := camera.DefaultSettings()
	settings.VideoSeconds = 10

	path, err := client.Video(context.Background(), libcamera.VideoRequest{
		DestDir:  t.TempDir(),
		Width:    3296,
		Height:   2464,
		Settings: settings,
	}, nil)
	if err != nil {
		t.Fatalf("Video returned error: %v", err)
	}
	if filepath.Base(path) != "Video_25_08_2026_21_04_05_10s.yuv" {
		t.Fatalf("unexpected video filename %q", filepath.Base(path))
	}
	if exec.binaries[0] != "libcamera-vid" {
		t.Fatalf("expected video binary, got %q", exec.binaries[0])
	}

	args := strings.Join(exec.args[0], " ")
	for _, want := range []string{
		"--codec yuv420",
		"--width 3296",
		"--height 2464",
		"--timeout 10000",
		"--nopreview",
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected args to contain %q, got %q", want, args)
		}
	}
}

func TestProgressForwardsFrameAnnouncements(t *testing.T) {
	exec := &stubExecutor{
		createOutput: true,
		stderrLines: []string{
			"[0:00:01.000] INFO Camera camera.cpp:1033 configuring streams",
			"#12 (5.00 fps) exp 200000.00 ag 8.00 dg 1.00",
		},
	}
	client := newTestClient(t, exec)

	var messages []string
	_, err := client.StillSequence(context.Background(), libcamera.SequenceRequest{
		DestDir:  t.TempDir(),
		Settings: camera.DefaultSettings(),
	}, func(update libcamera.ProgressUpdate) {
		if update.Message != "" {
			messages = append(messages, update.Message)
		}
	})
	if err != nil {
		t.Fatalf("StillSequence returned error: %v", err)
	}
	found := false
	for _, msg := range messages {
		if strings.Contains(msg, "#12") {
			found = true
		}
		if strings.Contains(msg, "configuring streams") {
			t.Fatalf("expected log chatter filtered out, got %q", msg)
		}
	}
	if !found {
		t.Fatalf("expected frame announcement forwarded, got %v", messages)
	}
}
