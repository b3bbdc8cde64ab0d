// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal queue models into transport-friendly DTOs
// that the CLI and HTTP consumers can render without coupling to internal
// types.
//
// # Key Types
//
// QueueItem: transport representation of a capture session with progress,
// frame counts, plate-solve solution, and review state.
//
// WorkflowStatus: daemon running state, queue stats, stage health, and last item.
//
// DaemonStatus: aggregated runtime information including camera presence and
// external dependency checks.
//
// # Converters
//
// FromQueueItem: queue.Item -> QueueItem with frame/DNG counts, solution
// decoding, and settings passthrough.
//
// FromStatusSummary: workflow.StatusSummary -> WorkflowStatus.
//
// StageHealthSlice: deterministic ordering of stage health map.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status, queue.Kind) are
// exposed as lowercase strings. Timestamps use RFC3339 with milliseconds.
// Capture settings are passed through as json.RawMessage to avoid
// double-encoding.
package api
