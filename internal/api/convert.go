package api

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"astropitography/internal/deps"
	"astropitography/internal/preflight"
	"astropitography/internal/queue"
	"astropitography/internal/stage"
	"astropitography/internal/workflow"
)

// FromQueueItem converts a queue item into its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	out := QueueItem{
		ID:           item.ID,
		UUID:         item.UUID,
		Kind:         string(item.Kind),
		TargetName:   item.DisplayName(),
		Status:       string(item.Status),
		ErrorMessage: item.ErrorMessage,
		FrameCount:   len(item.FramePaths()),
		DNGCount:     len(item.DNGPaths()),
		VideoPath:    item.VideoPath,
		LibraryDir:   item.LibraryDir,
		StagingRoot:  item.StagingSegment(),
		NeedsReview:  item.NeedsReview,
		ReviewReason: item.ReviewReason,
		Progress: QueueProgress{
			Stage:   item.ProgressStage,
			Percent: item.ProgressPercent,
			Message: item.ProgressMessage,
		},
	}
	if !item.CreatedAt.IsZero() {
		out.CreatedAt = FormatTime(item.CreatedAt)
	}
	if !item.UpdatedAt.IsZero() {
		out.UpdatedAt = FormatTime(item.UpdatedAt)
	}
	if solution, ok := item.Solution(); ok {
		converted := FromSolution(solution)
		out.Solution = &converted
	}
	if trimmed := strings.TrimSpace(item.SettingsJSON); trimmed != "" && json.Valid([]byte(trimmed)) {
		out.Settings = json.RawMessage(trimmed)
	}
	return out
}

// FromQueueItems converts a slice of queue items.
func FromQueueItems(items []*queue.Item) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromSolution converts a persisted plate solution.
func FromSolution(solution queue.Solution) Solution {
	return Solution{
		RADeg:         solution.RADeg,
		DecDeg:        solution.DecDeg,
		RollDeg:       solution.RollDeg,
		FOVDeg:        solution.FOVDeg,
		Matches:       solution.Matches,
		RMSEArcsec:    solution.RMSEArcsec,
		MismatchProb:  solution.MismatchProb,
		SolveMillis:   solution.SolveMillis,
		ExtractMillis: solution.ExtractMillis,
		SolvedFrame:   solution.SolvedFrame,
	}
}

// FromStatusSummary converts workflow status into the API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:         summary.Running,
		CameraAvailable: summary.CameraAvailable,
		QueueStats:      MergeQueueStats(summary.QueueStats),
		LastError:       summary.LastError,
		StageHealth:     StageHealthSlice(summary.StageHealth),
	}
	if summary.LastItem != nil {
		item := FromQueueItem(summary.LastItem)
		status.LastItem = &item
	}
	return status
}

// FromHealthSummary converts queue health counters.
func FromHealthSummary(health queue.HealthSummary) QueueHealth {
	return QueueHealth{
		Total:      health.Total,
		Pending:    health.Pending,
		Processing: health.Processing,
		Failed:     health.Failed,
		Review:     health.Review,
		Completed:  health.Completed,
	}
}

// FromCameraProbe converts a camera probe snapshot.
func FromCameraProbe(probe preflight.CameraProbe) CameraStatus {
	return CameraStatus{
		Detected: probe.Detected,
		Device:   probe.Device,
		Name:     probe.Name,
	}
}

// FromDependencyStatuses converts dependency check results.
func FromDependencyStatuses(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

// MergeQueueStats normalizes queue stats keys for JSON payloads.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice flattens stage health into a sorted slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for name, entry := range health {
		converted := StageHealth{
			Name:   entry.Name,
			Ready:  entry.Ready,
			Detail: entry.Detail,
		}
		if converted.Name == "" {
			converted.Name = name
		}
		out = append(out, converted)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FormatTime renders a timestamp with the shared API format.
func FormatTime(ts time.Time) string {
	return ts.UTC().Format(dateTimeFormat)
}
