package queue

import (
	"testing"
	"time"
)

func TestParseStatusNormalizesInput(t *testing.T) {
	status, ok := ParseStatus("  Capturing ")
	if !ok {
		t.Fatal("expected capturing to parse")
	}
	if status != StatusCapturing {
		t.Fatalf("expected %s, got %s", StatusCapturing, status)
	}

	if _, ok := ParseStatus("ripping"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	if _, ok := ParseStatus(""); ok {
		t.Fatal("expected empty status to be rejected")
	}
}

func TestParseKind(t *testing.T) {
	kind, ok := ParseKind("SEQUENCE")
	if !ok || kind != KindSequence {
		t.Fatalf("expected sequence kind, got %q ok=%v", kind, ok)
	}
	if _, ok := ParseKind("timelapse"); ok {
		t.Fatal("expected unknown kind to be rejected")
	}
}

func TestStageKeyMapsEndpoints(t *testing.T) {
	cases := []struct {
		status Status
		want   string
	}{
		{StatusPending, "planned"},
		{StatusCompleted, "final"},
		{StatusCapturing, "capturing"},
		{StatusSolved, "solved"},
		{StatusReview, "review"},
		{Status(""), ""},
	}
	for _, tc := range cases {
		if got := tc.status.StageKey(); got != tc.want {
			t.Fatalf("StageKey(%q) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestLaneForItem(t *testing.T) {
	if lane := LaneForItem(nil); lane != LaneForeground {
		t.Fatalf("expected nil item in foreground lane, got %s", lane)
	}

	pending := &Item{Status: StatusPending}
	if lane := LaneForItem(pending); lane != LaneForeground {
		t.Fatalf("expected pending in foreground lane, got %s", lane)
	}

	solving := &Item{Status: StatusSolving}
	if lane := LaneForItem(solving); lane != LaneBackground {
		t.Fatalf("expected solving in background lane, got %s", lane)
	}

	failedNoFrames := &Item{Status: StatusFailed}
	if lane := LaneForItem(failedNoFrames); lane != LaneForeground {
		t.Fatalf("expected failed item without frames in foreground lane, got %s", lane)
	}

	failedWithFrames := &Item{Status: StatusFailed}
	failedWithFrames.SetFramePaths([]string{"/tmp/frame-1.jpeg"})
	if lane := LaneForItem(failedWithFrames); lane != LaneBackground {
		t.Fatalf("expected failed item with frames in background lane, got %s", lane)
	}
}

func TestSolutionRoundTrip(t *testing.T) {
	item := &Item{}
	if _, ok := item.Solution(); ok {
		t.Fatal("expected no solution on fresh item")
	}

	item.SetSolution(Solution{
		RADeg:      83.822,
		DecDeg:     -5.391,
		RollDeg:    12.5,
		FOVDeg:     10.2,
		Matches:    14,
		RMSEArcsec: 18.4,
	})
	sol, ok := item.Solution()
	if !ok {
		t.Fatal("expected stored solution to decode")
	}
	if sol.RADeg != 83.822 || sol.Matches != 14 {
		t.Fatalf("unexpected solution %+v", sol)
	}

	item.ClearSolution()
	if _, ok := item.Solution(); ok {
		t.Fatal("expected solution cleared")
	}
}

func TestDisplayNameFallsBackToSessionLabel(t *testing.T) {
	named := Item{ID: 3, TargetName: "M42"}
	if got := named.DisplayName(); got != "M42" {
		t.Fatalf("expected target name, got %q", got)
	}
	unnamed := Item{ID: 3}
	if got := unnamed.DisplayName(); got != "Session 3" {
		t.Fatalf("expected session label, got %q", got)
	}
}

func TestSetFailedClearsHeartbeat(t *testing.T) {
	now := time.Now().UTC()
	item := &Item{Status: StatusSolving, LastHeartbeat: &now}
	item.SetFailed("solver crashed")
	if item.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", item.Status)
	}
	if item.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared")
	}
	if item.ErrorMessage != "solver crashed" || item.ProgressMessage != "solver crashed" {
		t.Fatalf("expected error propagated to progress, got %q / %q", item.ErrorMessage, item.ProgressMessage)
	}
}

func TestSetReviewMarksItem(t *testing.T) {
	now := time.Now().UTC()
	item := &Item{Status: StatusSolving, LastHeartbeat: &now}
	item.SetReview("no star match found")
	if item.Status != StatusReview || !item.NeedsReview {
		t.Fatalf("expected review status, got %s needsReview=%v", item.Status, item.NeedsReview)
	}
	if item.ReviewReason != "no star match found" {
		t.Fatalf("unexpected review reason %q", item.ReviewReason)
	}
	if item.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared")
	}
	if item.ProgressStage != "Needs review" || item.ProgressMessage != "no star match found" {
		t.Fatalf("expected review progress fields, got %q / %q", item.ProgressStage, item.ProgressMessage)
	}
}

func TestIsInWorkflow(t *testing.T) {
	active := []Status{StatusPending, StatusCapturing, StatusCaptured, StatusConverting, StatusConverted, StatusSolving, StatusSolved, StatusOrganizing}
	for _, status := range active {
		item := Item{Status: status}
		if !item.IsInWorkflow() {
			t.Fatalf("expected %s to be in workflow", status)
		}
	}
	for _, status := range []Status{StatusCompleted, StatusFailed, StatusReview} {
		item := Item{Status: status}
		if item.IsInWorkflow() {
			t.Fatalf("expected %s to be outside workflow", status)
		}
	}
}
