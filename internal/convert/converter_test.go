package convert_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"astropitography/internal/convert"
	"astropitography/internal/logging"
	"astropitography/internal/queue"
	"astropitography/internal/services"
	"astropitography/internal/testsupport"
)

func TestConverterExtractsDNGs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewSession(t, store, queue.KindSequence, "Andromeda")

	sessionDir := item.StagingRoot(cfg.Paths.StagingDir)
	frames := []string{
		filepath.Join(sessionDir, "Image_no-1.jpeg"),
		filepath.Join(sessionDir, "Image_no-2.jpeg"),
	}
	for _, frame := range frames {
		testsupport.WriteCapture(t, frame, true)
	}
	item.SetFramePaths(frames)

	handler := convert.NewConverter(cfg, store, logging.NewNop())
	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	dngs := item.DNGPaths()
	if len(dngs) != 2 {
		t.Fatalf("expected 2 DNG files, got %d", len(dngs))
	}
	for _, path := range dngs {
		if !strings.HasSuffix(path, ".dng") {
			t.Fatalf("unexpected DNG path %q", path)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected DNG on disk: %v", err)
		}
	}
	if len(item.FramePaths()) != 2 {
		t.Fatalf("expected JPEG originals kept, got %d", len(item.FramePaths()))
	}
	if item.ProgressStage != "Converted" || item.ProgressPercent != 100 {
		t.Fatalf("unexpected final progress: %s %.0f", item.ProgressStage, item.ProgressPercent)
	}
	if item.ProgressMessage != "Extracted 2 DNG files" {
		t.Fatalf("unexpected progress message: %q", item.ProgressMessage)
	}
}

func TestConverterSkipsFramesWithoutRaw(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewSession(t, store, queue.KindSequence, "Orion")

	sessionDir := item.StagingRoot(cfg.Paths.StagingDir)
	withRaw := filepath.Join(sessionDir, "Image_no-1.jpeg")
	withoutRaw := filepath.Join(sessionDir, "Image_no-2.jpeg")
	testsupport.WriteCapture(t, withRaw, true)
	testsupport.WriteCapture(t, withoutRaw, false)
	item.SetFramePaths([]string{withRaw, withoutRaw})

	handler := convert.NewConverter(cfg, store, logging.NewNop())
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(item.DNGPaths()) != 1 {
		t.Fatalf("expected 1 DNG file, got %d", len(item.DNGPaths()))
	}
	if len(item.FramePaths()) != 2 {
		t.Fatalf("expected both JPEG frames kept, got %d", len(item.FramePaths()))
	}
}

func TestConverterDeletesJPEGTwinWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Camera.KeepRawOriginals = false
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewSession(t, store, queue.KindStill, "Moon")

	sessionDir := item.StagingRoot(cfg.Paths.StagingDir)
	withRaw := filepath.Join(sessionDir, "Image_no-1.jpeg")
	withoutRaw := filepath.Join(sessionDir, "Image_no-2.jpeg")
	testsupport.WriteCapture(t, withRaw, true)
	testsupport.WriteCapture(t, withoutRaw, false)
	item.SetFramePaths([]string{withRaw, withoutRaw})

	handler := convert.NewConverter(cfg, store, logging.NewNop())
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(withRaw); !os.IsNotExist(err) {
		t.Fatalf("expected converted JPEG to be deleted, stat err %v", err)
	}
	frames := item.FramePaths()
	if len(frames) != 1 || frames[0] != withoutRaw {
		t.Fatalf("expected only the raw-less JPEG to remain, got %v", frames)
	}
	if len(item.DNGPaths()) != 1 {
		t.Fatalf("expected 1 DNG file, got %d", len(item.DNGPaths()))
	}
}

func TestConverterSkipsVideoSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewSession(t, store, queue.KindVideo, "Jupiter")
	item.VideoPath = filepath.Join(cfg.Paths.StagingDir, "video.yuv")

	handler := convert.NewConverter(cfg, store, logging.NewNop())
	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(item.DNGPaths()) != 0 {
		t.Fatalf("expected no DNG files for video, got %d", len(item.DNGPaths()))
	}
	if item.ProgressStage != "Converted" {
		t.Fatalf("unexpected progress stage: %q", item.ProgressStage)
	}
}

func TestConverterPrepareRequiresFrames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewSession(t, store, queue.KindSequence, "Orion")

	handler := convert.NewConverter(cfg, store, logging.NewNop())
	err := handler.Prepare(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestConverterKeepsJPEGWhenRawUnreadable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewSession(t, store, queue.KindStill, "Orion")

	sessionDir := item.StagingRoot(cfg.Paths.StagingDir)
	frame := filepath.Join(sessionDir, "Image_no-1.jpeg")
	testsupport.WriteCapture(t, frame, false)
	// Corrupt trailer: BRCM magic with a truncated header.
	data, err := os.ReadFile(frame)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	data = append(data, []byte("BRCM1234")...)
	if err := os.WriteFile(frame, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	item.SetFramePaths([]string{frame})

	handler := convert.NewConverter(cfg, store, logging.NewNop())
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(item.DNGPaths()) != 0 {
		t.Fatalf("expected no DNG files, got %d", len(item.DNGPaths()))
	}
	if len(item.FramePaths()) != 1 {
		t.Fatalf("expected JPEG kept, got %d", len(item.FramePaths()))
	}
	if item.ProgressMessage != "No raw data found, kept JPEG frames" {
		t.Fatalf("unexpected progress message: %q", item.ProgressMessage)
	}
}

func TestConverterHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := convert.NewConverter(cfg, store, logging.NewNop())
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy convert stage, got %q", health.Detail)
	}
}
