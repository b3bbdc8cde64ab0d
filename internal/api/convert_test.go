package api

import (
	"testing"
	"time"

	"astropitography/internal/queue"
	"astropitography/internal/stage"
	"astropitography/internal/workflow"
)

func TestFromQueueItemPopulatesFields(t *testing.T) {
	created := time.Date(2026, 3, 14, 22, 41, 5, 0, time.UTC)
	item := &queue.Item{
		ID:           7,
		UUID:         "d5a1c2f0-1111-2222-3333-444455556666",
		Kind:         queue.KindSequence,
		TargetName:   "M42",
		Status:       queue.StatusSolved,
		SettingsJSON: `{"exposure_s":20,"iso":800}`,
		CreatedAt:    created,
		UpdatedAt:    created.Add(90 * time.Second),
	}
	item.SetFramePaths([]string{"/tmp/a.jpg", "/tmp/b.jpg"})
	item.SetDNGPaths([]string{"/tmp/a.dng"})
	item.SetSolution(queue.Solution{RADeg: 83.82, DecDeg: -5.39, Matches: 18})
	item.SetProgress("Solving", "matching patterns", 60)

	dto := FromQueueItem(item)
	if dto.ID != 7 || dto.Kind != "sequence" || dto.Status != "solved" {
		t.Fatalf("unexpected identity fields: %+v", dto)
	}
	if dto.TargetName != "M42" {
		t.Fatalf("expected target name M42, got %q", dto.TargetName)
	}
	if dto.FrameCount != 2 || dto.DNGCount != 1 {
		t.Fatalf("unexpected artifact counts: frames=%d dngs=%d", dto.FrameCount, dto.DNGCount)
	}
	if dto.Solution == nil || dto.Solution.RADeg != 83.82 || dto.Solution.Matches != 18 {
		t.Fatalf("solution not converted: %+v", dto.Solution)
	}
	if dto.Progress.Stage != "Solving" || dto.Progress.Percent != 60 {
		t.Fatalf("unexpected progress: %+v", dto.Progress)
	}
	if len(dto.Settings) == 0 {
		t.Fatal("expected settings passthrough")
	}
	if dto.CreatedAt != "2026-03-14T22:41:05.000Z" {
		t.Fatalf("unexpected createdAt: %q", dto.CreatedAt)
	}
}

func TestFromQueueItemFallsBackToSessionLabel(t *testing.T) {
	item := &queue.Item{ID: 12, Kind: queue.KindStill, Status: queue.StatusPending}
	dto := FromQueueItem(item)
	if dto.TargetName != "Session 12" {
		t.Fatalf("expected session label, got %q", dto.TargetName)
	}
	if dto.Solution != nil {
		t.Fatalf("expected no solution, got %+v", dto.Solution)
	}
	if dto.CreatedAt != "" {
		t.Fatalf("expected empty createdAt for zero time, got %q", dto.CreatedAt)
	}
}

func TestFromQueueItemDropsInvalidSettings(t *testing.T) {
	item := &queue.Item{ID: 3, Kind: queue.KindStill, Status: queue.StatusPending, SettingsJSON: "{not json"}
	dto := FromQueueItem(item)
	if dto.Settings != nil {
		t.Fatalf("expected invalid settings to be dropped, got %s", dto.Settings)
	}
}

func TestFromStatusSummarySortsStageHealth(t *testing.T) {
	lastItem := &queue.Item{ID: 4, Kind: queue.KindStill, Status: queue.StatusCapturing, TargetName: "Moon"}
	summary := workflow.StatusSummary{
		Running:         true,
		CameraAvailable: true,
		LastError:       "capture interrupted",
		LastItem:        lastItem,
		QueueStats:      map[queue.Status]int{queue.StatusPending: 2, queue.StatusFailed: 1},
		StageHealth: map[string]stage.Health{
			"solver":   {Name: "solver", Ready: false, Detail: "pattern database missing"},
			"capturer": {Name: "capturer", Ready: true},
		},
	}

	status := FromStatusSummary(summary)
	if !status.Running || !status.CameraAvailable {
		t.Fatalf("unexpected flags: %+v", status)
	}
	if status.QueueStats["pending"] != 2 || status.QueueStats["failed"] != 1 {
		t.Fatalf("unexpected stats: %+v", status.QueueStats)
	}
	if status.LastItem == nil || status.LastItem.TargetName != "Moon" {
		t.Fatalf("last item not converted: %+v", status.LastItem)
	}
	if len(status.StageHealth) != 2 {
		t.Fatalf("expected 2 health entries, got %d", len(status.StageHealth))
	}
	if status.StageHealth[0].Name != "capturer" || status.StageHealth[1].Name != "solver" {
		t.Fatalf("health not sorted by name: %+v", status.StageHealth)
	}
	if status.StageHealth[1].Detail != "pattern database missing" {
		t.Fatalf("unexpected solver detail: %q", status.StageHealth[1].Detail)
	}
}

func TestFromHealthSummary(t *testing.T) {
	health := FromHealthSummary(queue.HealthSummary{Total: 9, Pending: 3, Processing: 1, Failed: 2, Review: 1, Completed: 2})
	if health.Total != 9 || health.Pending != 3 || health.Processing != 1 {
		t.Fatalf("unexpected counters: %+v", health)
	}
	if health.Failed != 2 || health.Review != 1 || health.Completed != 2 {
		t.Fatalf("unexpected terminal counters: %+v", health)
	}
}
