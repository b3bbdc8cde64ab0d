package api

import (
	"context"
	"testing"

	"astropitography/internal/capture"
	"astropitography/internal/logging"
	"astropitography/internal/queue"
	"astropitography/internal/testsupport"
)

func TestRunCaptureSessionRequiresConfig(t *testing.T) {
	if _, err := RunCaptureSession(context.Background(), RunCaptureRequest{}); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestRunCaptureSessionRejectsUnknownKind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := RunCaptureSession(context.Background(), RunCaptureRequest{
		Config: cfg,
		Kind:   queue.Kind("timelapse"),
	}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestRunCaptureSessionRecordsCaptureFailure(t *testing.T) {
	// The stubbed libcamera-still exits cleanly without producing a frame,
	// so the pipeline must stop in the capture stage with a failed session.
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Capture.MinFreeSpaceMB = 0
	t.Cleanup(capture.SetCameraCheckForTests(func() bool { return true }))

	result, err := RunCaptureSession(context.Background(), RunCaptureRequest{
		Config:     cfg,
		Kind:       queue.KindStill,
		TargetName: "M31",
		Logger:     logging.NewNop(),
	})
	if err == nil {
		t.Fatal("expected capture failure")
	}
	if result.Item == nil {
		t.Fatal("expected session item even on failure")
	}
	if result.Item.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want %s", result.Item.Status, queue.StatusFailed)
	}

	assessment := AssessCaptureSession(result.Item)
	if assessment.Outcome != "failed" {
		t.Fatalf("outcome = %q, want failed", assessment.Outcome)
	}
	if assessment.ErrorMessage == "" {
		t.Fatal("expected assessment to carry the error message")
	}
}

func TestAssessCaptureSessionOutcomes(t *testing.T) {
	if got := AssessCaptureSession(nil); got.Outcome != "failed" {
		t.Fatalf("nil item outcome = %q, want failed", got.Outcome)
	}

	completed := &queue.Item{Status: queue.StatusCompleted, LibraryDir: "/library/M42"}
	completed.SetSolution(queue.Solution{RADeg: 83.8, DecDeg: -5.4, Matches: 11})
	got := AssessCaptureSession(completed)
	if got.Outcome != "success" {
		t.Fatalf("outcome = %q, want success", got.Outcome)
	}
	if got.Solution == nil || got.Solution.Matches != 11 {
		t.Fatalf("expected solution to be surfaced, got %+v", got.Solution)
	}
	if got.LibraryDir != "/library/M42" {
		t.Fatalf("library dir = %q", got.LibraryDir)
	}

	review := &queue.Item{}
	review.SetReview("solve failed and solver.required is set")
	if got := AssessCaptureSession(review); got.Outcome != "review" || got.ReviewReason == "" {
		t.Fatalf("review assessment = %+v", got)
	}
}
