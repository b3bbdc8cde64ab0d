package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"astropitography/internal/capture"
	"astropitography/internal/config"
	"astropitography/internal/convert"
	"astropitography/internal/logging"
	"astropitography/internal/notifications"
	"astropitography/internal/organizer"
	"astropitography/internal/platesolve"
	"astropitography/internal/queue"
	"astropitography/internal/stageexec"
)

// RunCaptureRequest describes a one-shot capture executed without the daemon.
type RunCaptureRequest struct {
	Config       *config.Config
	Kind         queue.Kind
	TargetName   string
	SettingsJSON string
	Logger       *slog.Logger
}

// RunCaptureResult reports the session state after the pipeline finished.
type RunCaptureResult struct {
	Item *queue.Item
}

// CaptureAssessment derives CLI-facing capture outcomes from queue state.
type CaptureAssessment struct {
	Outcome        string
	OutcomeMessage string
	Frames         int
	DNGs           int
	LibraryDir     string
	Solution       *Solution
	ReviewReason   string
	ErrorMessage   string
}

// AssessCaptureSession summarizes how a one-shot capture ended.
func AssessCaptureSession(item *queue.Item) CaptureAssessment {
	if item == nil {
		return CaptureAssessment{
			Outcome:        "failed",
			OutcomeMessage: "❌ Capture failed before a session was created.",
		}
	}

	assessment := CaptureAssessment{
		Frames:       len(item.FramePaths()),
		DNGs:         len(item.DNGPaths()),
		LibraryDir:   strings.TrimSpace(item.LibraryDir),
		ReviewReason: strings.TrimSpace(item.ReviewReason),
		ErrorMessage: strings.TrimSpace(item.ErrorMessage),
	}
	if solution, ok := item.Solution(); ok {
		converted := FromSolution(solution)
		assessment.Solution = &converted
	}

	switch item.Status {
	case queue.StatusCompleted:
		assessment.Outcome = "success"
		assessment.OutcomeMessage = "✅ Capture complete and filed in the library."
	case queue.StatusReview:
		assessment.Outcome = "review"
		assessment.OutcomeMessage = "⚠️  Capture needs manual review. Check the logs above for details."
	default:
		assessment.Outcome = "failed"
		assessment.OutcomeMessage = "❌ Capture failed. Check the logs above for details."
	}

	return assessment
}

// RunCaptureSession executes the full capture pipeline synchronously: capture,
// convert, plate solve, organize. It opens its own queue store, so it must not
// run concurrently with a daemon-managed session holding the camera.
func RunCaptureSession(ctx context.Context, req RunCaptureRequest) (RunCaptureResult, error) {
	cfg := req.Config
	if cfg == nil {
		return RunCaptureResult{}, fmt.Errorf("configuration is required")
	}
	logger := req.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	kind := req.Kind
	if kind == "" {
		kind = queue.KindStill
	}
	if _, ok := queue.ParseKind(string(kind)); !ok {
		return RunCaptureResult{}, fmt.Errorf("unknown capture kind %q", kind)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return RunCaptureResult{}, fmt.Errorf("prepare directories: %w", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return RunCaptureResult{}, fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()

	item, err := store.NewSession(ctx, kind, req.TargetName, req.SettingsJSON)
	if err != nil {
		return RunCaptureResult{}, fmt.Errorf("create capture session: %w", err)
	}

	notifier := notifications.NewService(cfg)

	steps := []struct {
		name       string
		handler    stageexec.Handler
		processing queue.Status
		done       queue.Status
	}{
		{"capture", capture.NewCapturer(cfg, store, logger), queue.StatusCapturing, queue.StatusCaptured},
		{"convert", convert.NewConverter(cfg, store, logger), queue.StatusConverting, queue.StatusConverted},
		{"platesolve", platesolve.NewSolver(cfg, store, logger), queue.StatusSolving, queue.StatusSolved},
		{"organize", organizer.NewOrganizer(cfg, store, logger), queue.StatusOrganizing, queue.StatusCompleted},
	}

	for _, step := range steps {
		if err := stageexec.Run(ctx, stageexec.Options{
			Logger:     logger,
			Store:      store,
			Notifier:   notifier,
			Handler:    step.handler,
			StageName:  step.name,
			Processing: step.processing,
			Done:       step.done,
			Item:       item,
		}); err != nil {
			return RunCaptureResult{Item: item}, err
		}
	}

	return RunCaptureResult{Item: item}, nil
}
