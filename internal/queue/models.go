package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a capture session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCapturing  Status = "capturing"
	StatusCaptured   Status = "captured"
	StatusConverting Status = "converting"
	StatusConverted  Status = "converted"
	StatusSolving    Status = "solving"
	StatusSolved     Status = "solved"
	StatusOrganizing Status = "organizing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReview     Status = "review"
)

// UserStopReason is the review reason set when a user explicitly stops a session.
const UserStopReason = "Stop requested by user"

var allStatuses = []Status{
	StatusPending,
	StatusCapturing,
	StatusCaptured,
	StatusConverting,
	StatusConverted,
	StatusSolving,
	StatusSolved,
	StatusOrganizing,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusCapturing:  {},
	StatusConverting: {},
	StatusSolving:    {},
	StatusOrganizing: {},
}

// statusRollback maps each processing status to the rest status its stage
// started from, used when resetting stuck or stale sessions.
var statusRollback = map[Status]Status{
	StatusCapturing:  StatusPending,
	StatusConverting: StatusCaptured,
	StatusSolving:    StatusConverted,
	StatusOrganizing: StatusSolved,
}

// Kind distinguishes the capture modes a session can run.
type Kind string

const (
	KindStill    Kind = "still"
	KindSequence Kind = "sequence"
	KindVideo    Kind = "video"
)

var kindSet = map[Kind]struct{}{
	KindStill:    {},
	KindSequence: {},
	KindVideo:    {},
}

// ParseKind converts a string into a known session Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := kindSet[normalized]
	return normalized, ok
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Solution is the persisted plate-solve result for a session.
type Solution struct {
	RADeg         float64 `json:"ra_deg"`
	DecDeg        float64 `json:"dec_deg"`
	RollDeg       float64 `json:"roll_deg"`
	FOVDeg        float64 `json:"fov_deg"`
	Matches       int     `json:"matches"`
	RMSEArcsec    float64 `json:"rmse_arcsec"`
	MismatchProb  float64 `json:"mismatch_prob"`
	SolveMillis   float64 `json:"solve_ms"`
	ExtractMillis float64 `json:"extract_ms"`
	SolvedFrame   string  `json:"solved_frame,omitempty"`
}

// Item represents a capture session persisted in SQLite.
type Item struct {
	ID              int64
	UUID            string
	Kind            Kind
	TargetName      string
	SlugName        string
	Status          Status
	SettingsJSON    string
	FramePathsJSON  string
	DNGPathsJSON    string
	VideoPath       string
	SolutionJSON    string
	LibraryDir      string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	LastHeartbeat   *time.Time
	NeedsReview     bool
	ReviewReason    string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	_, ok := processingStatuses[i.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsUserStopReason reports whether a review reason represents a user-initiated stop.
func IsUserStopReason(reason string) bool {
	return strings.EqualFold(strings.TrimSpace(reason), UserStopReason)
}

// DisplayName returns the target name when set, otherwise a session label.
func (i Item) DisplayName() string {
	if name := strings.TrimSpace(i.TargetName); name != "" {
		return name
	}
	return fmt.Sprintf("Session %d", i.ID)
}

// FramePaths decodes the captured frame list.
func (i Item) FramePaths() []string {
	return decodePathList(i.FramePathsJSON)
}

// SetFramePaths encodes and stores the captured frame list.
func (i *Item) SetFramePaths(paths []string) {
	i.FramePathsJSON = encodePathList(paths)
}

// DNGPaths decodes the extracted DNG list.
func (i Item) DNGPaths() []string {
	return decodePathList(i.DNGPathsJSON)
}

// SetDNGPaths encodes and stores the extracted DNG list.
func (i *Item) SetDNGPaths(paths []string) {
	i.DNGPathsJSON = encodePathList(paths)
}

// Solution decodes the stored plate-solve result, if any.
func (i Item) Solution() (Solution, bool) {
	raw := strings.TrimSpace(i.SolutionJSON)
	if raw == "" {
		return Solution{}, false
	}
	var sol Solution
	if err := json.Unmarshal([]byte(raw), &sol); err != nil {
		return Solution{}, false
	}
	return sol, true
}

// SetSolution encodes and stores a plate-solve result.
func (i *Item) SetSolution(sol Solution) {
	data, err := json.Marshal(sol)
	if err != nil {
		return
	}
	i.SolutionJSON = string(data)
}

// ClearSolution removes any stored plate-solve result.
func (i *Item) ClearSolution() {
	i.SolutionJSON = ""
}

func decodePathList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var paths []string
	if err := json.Unmarshal([]byte(raw), &paths); err != nil {
		return nil
	}
	return paths
}

func encodePathList(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	data, err := json.Marshal(paths)
	if err != nil {
		return ""
	}
	return string(data)
}

// InitProgress resets progress fields for a new stage.
// If ProgressStage is currently empty, it is set to the provided stage value;
// otherwise the existing stage is preserved (to support resume scenarios).
// ProgressMessage is set to message, ProgressPercent is reset to 0,
// and ErrorMessage is cleared.
func (i *Item) InitProgress(stage, message string) {
	if i.ProgressStage == "" {
		i.ProgressStage = stage
	}
	i.ProgressMessage = message
	i.ProgressPercent = 0
	i.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
// Use this instead of setting ProgressStage, ProgressPercent, and ProgressMessage individually.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
// Convenience method for stage completion.
func (i *Item) SetProgressComplete(stage, message string) {
	i.SetProgress(stage, message, 100)
}

// SetFailed marks the session as failed with the given error message.
// Clears heartbeat and sets progress fields appropriately.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
	i.ProgressStage = "Failed"
}

// SetReview marks the session for manual review with the given reason.
func (i *Item) SetReview(reason string) {
	i.Status = StatusReview
	i.NeedsReview = true
	i.ReviewReason = reason
	i.LastHeartbeat = nil
	i.ProgressStage = "Needs review"
	i.ProgressMessage = reason
}

// IsInWorkflow returns true when a session is actively progressing (or queued
// to progress) through stages.
func (i Item) IsInWorkflow() bool {
	if i.IsProcessing() {
		return true
	}
	switch i.Status {
	case StatusPending,
		StatusCaptured,
		StatusConverted,
		StatusSolved:
		return true
	default:
		return false
	}
}

// StageKey returns the normalized stage identifier used in API/CLI presentation.
func (s Status) StageKey() string {
	switch s {
	case "":
		return ""
	case StatusPending:
		return "planned"
	case StatusCompleted:
		return "final"
	case StatusCapturing,
		StatusCaptured,
		StatusConverting,
		StatusConverted,
		StatusSolving,
		StatusSolved,
		StatusOrganizing,
		StatusFailed,
		StatusReview:
		return string(s)
	default:
		return ""
	}
}

// ProcessingLane partitions workflow into user-facing foreground stages and background work.
type ProcessingLane string

const (
	LaneForeground ProcessingLane = "foreground"
	LaneBackground ProcessingLane = "background"
)

// LaneForItem maps a session to its processing lane for observability purposes.
// Capture holds the camera and runs in the foreground; everything after the
// frames land on disk is background work.
func LaneForItem(item *Item) ProcessingLane {
	if item == nil {
		return LaneForeground
	}
	switch item.Status {
	case StatusPending, StatusCapturing:
		return LaneForeground
	case StatusCaptured, StatusConverting, StatusConverted, StatusSolving, StatusSolved, StatusOrganizing, StatusCompleted:
		return LaneBackground
	case StatusFailed, StatusReview:
		if len(item.FramePaths()) > 0 {
			return LaneBackground
		}
		return LaneForeground
	default:
		return LaneForeground
	}
}
