package api

import (
	"sort"
	"strings"
	"time"
)

// SortQueueItemsNewestFirst orders queue items by CreatedAt descending, breaking ties by ID descending.
func SortQueueItemsNewestFirst(items []QueueItem) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]QueueItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		ti := parseQueueTime(sorted[i].CreatedAt)
		tj := parseQueueTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})
	return sorted
}

// FilterQueueItemsByKind keeps items whose capture kind matches the filter.
// An empty filter returns the input unchanged.
func FilterQueueItemsByKind(items []QueueItem, kind string) []QueueItem {
	kind = strings.TrimSpace(strings.ToLower(kind))
	if kind == "" {
		return items
	}
	filtered := make([]QueueItem, 0, len(items))
	for _, item := range items {
		if strings.EqualFold(item.Kind, kind) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func parseQueueTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// ParseQueueTime exposes queue timestamp parsing for consumers that need display formatting.
func ParseQueueTime(value string) time.Time {
	return parseQueueTime(value)
}
