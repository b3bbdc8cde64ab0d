package api

import (
	"context"
	"testing"
)

type stubActionService struct {
	items       map[int64]*QueueItem
	retryCounts map[int64]int64
	stopCounts  map[int64]int64
}

func (s *stubActionService) Describe(_ context.Context, id int64) (*QueueItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (s *stubActionService) Retry(_ context.Context, ids []int64) (int64, error) {
	var total int64
	for _, id := range ids {
		total += s.retryCounts[id]
	}
	return total, nil
}

func (s *stubActionService) Stop(_ context.Context, ids []int64) (int64, error) {
	var total int64
	for _, id := range ids {
		total += s.stopCounts[id]
	}
	return total, nil
}

func TestRetryFailedItemsByIDOutcomes(t *testing.T) {
	service := &stubActionService{
		items: map[int64]*QueueItem{
			1: {ID: 1, Status: "failed"},
			2: {ID: 2, Status: "completed"},
			3: {ID: 3, Status: "review"},
		},
		retryCounts: map[int64]int64{1: 1, 3: 1},
	}

	result, err := RetryFailedItemsByID(context.Background(), service, []int64{1, 2, 3, 9})
	if err != nil {
		t.Fatalf("RetryFailedItemsByID returned error: %v", err)
	}
	if result.UpdatedCount != 2 {
		t.Fatalf("expected 2 updates, got %d", result.UpdatedCount)
	}
	want := map[int64]RetryItemOutcome{
		1: RetryItemUpdated,
		2: RetryItemNotRetryable,
		3: RetryItemUpdated,
		9: RetryItemNotFound,
	}
	for _, entry := range result.Items {
		if entry.Outcome != want[entry.ID] {
			t.Fatalf("item %d outcome = %s, want %s", entry.ID, entry.Outcome, want[entry.ID])
		}
	}
}

func TestStopItemsByIDOutcomes(t *testing.T) {
	service := &stubActionService{
		items: map[int64]*QueueItem{
			1: {ID: 1, Status: "pending"},
			2: {ID: 2, Status: "completed"},
			3: {ID: 3, Status: "failed"},
			4: {ID: 4, Status: "review"},
			5: {ID: 5, Status: "capturing"},
		},
		stopCounts: map[int64]int64{1: 1},
	}

	result, err := StopItemsByID(context.Background(), service, []int64{1, 2, 3, 4, 5, 9})
	if err != nil {
		t.Fatalf("StopItemsByID returned error: %v", err)
	}
	if result.UpdatedCount != 1 {
		t.Fatalf("expected 1 update, got %d", result.UpdatedCount)
	}
	want := map[int64]StopItemOutcome{
		1: StopItemUpdated,
		2: StopItemAlreadyCompleted,
		3: StopItemAlreadyFailed,
		4: StopItemInReview,
		5: StopItemProcessing,
		9: StopItemNotFound,
	}
	for _, entry := range result.Items {
		if entry.Outcome != want[entry.ID] {
			t.Fatalf("item %d outcome = %s, want %s", entry.ID, entry.Outcome, want[entry.ID])
		}
	}
	for _, entry := range result.Items {
		if entry.Outcome == StopItemUpdated && entry.PriorStatus != "pending" {
			t.Fatalf("expected prior status pending for stopped item, got %q", entry.PriorStatus)
		}
	}
}
