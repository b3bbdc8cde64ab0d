package main

import (
	"testing"

	"astropitography/internal/api"
)

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"pending":      "Pending",
		"capturing":    "Capturing",
		"needs_review": "Needs Review",
		"":             "",
		"  solved  ":   "Solved",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Errorf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatDisplayTime(t *testing.T) {
	if got := formatDisplayTime("2026-03-14T22:31:07Z"); got != "2026-03-14 22:31" {
		t.Errorf("rfc3339 input: got %q", got)
	}
	if got := formatDisplayTime("2026-03-14T22:31:07.123456789Z"); got != "2026-03-14 22:31" {
		t.Errorf("nanosecond input: got %q", got)
	}
	if got := formatDisplayTime("not-a-time"); got != "not-a-time" {
		t.Errorf("unparseable input should pass through, got %q", got)
	}
	if got := formatDisplayTime("  "); got != "" {
		t.Errorf("blank input should be empty, got %q", got)
	}
}

func TestBuildQueueStatusRowsSorted(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{
		"pending":   3,
		"completed": 1,
		"failed":    2,
	})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Completed" || rows[1][0] != "Failed" || rows[2][0] != "Pending" {
		t.Fatalf("rows not sorted by status: %v", rows)
	}
	if rows[2][1] != "3" {
		t.Fatalf("expected pending count 3, got %s", rows[2][1])
	}
}

func TestBuildQueueListRowsNewestFirst(t *testing.T) {
	items := []api.QueueItem{
		{ID: 1, TargetName: "M31", Kind: "still", Status: "pending", CreatedAt: "2026-03-14T20:00:00Z"},
		{ID: 2, TargetName: "", Kind: "video", Status: "completed", CreatedAt: "2026-03-14T22:00:00Z"},
	}
	rows := buildQueueListRows(items)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "2" {
		t.Fatalf("expected newest session first, got id %s", rows[0][0])
	}
	if rows[0][1] != "Untitled" {
		t.Fatalf("blank target should render as Untitled, got %q", rows[0][1])
	}
	if rows[1][3] != "Pending" {
		t.Fatalf("expected Pending status label, got %q", rows[1][3])
	}
}
