package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a capture session in a transport-friendly format.
type QueueItem struct {
	ID           int64           `json:"id"`
	UUID         string          `json:"uuid,omitempty"`
	Kind         string          `json:"kind"`
	TargetName   string          `json:"targetName"`
	Status       string          `json:"status"`
	Progress     QueueProgress   `json:"progress"`
	ErrorMessage string          `json:"errorMessage"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
	FrameCount   int             `json:"frameCount"`
	DNGCount     int             `json:"dngCount"`
	VideoPath    string          `json:"videoPath,omitempty"`
	LibraryDir   string          `json:"libraryDir,omitempty"`
	StagingRoot  string          `json:"stagingRoot,omitempty"`
	Solution     *Solution       `json:"solution,omitempty"`
	NeedsReview  bool            `json:"needsReview"`
	ReviewReason string          `json:"reviewReason,omitempty"`
	Settings     json.RawMessage `json:"settings,omitempty"`
}

// QueueProgress captures stage progress information for a queue entry.
type QueueProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// Solution mirrors a persisted plate-solve result.
type Solution struct {
	RADeg         float64 `json:"raDeg"`
	DecDeg        float64 `json:"decDeg"`
	RollDeg       float64 `json:"rollDeg"`
	FOVDeg        float64 `json:"fovDeg"`
	Matches       int     `json:"matches"`
	RMSEArcsec    float64 `json:"rmseArcsec"`
	MismatchProb  float64 `json:"mismatchProb"`
	SolveMillis   float64 `json:"solveMs"`
	ExtractMillis float64 `json:"extractMs"`
	SolvedFrame   string  `json:"solvedFrame,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running         bool           `json:"running"`
	CameraAvailable bool           `json:"cameraAvailable"`
	QueueStats      map[string]int `json:"queueStats"`
	LastError       string         `json:"lastError,omitempty"`
	LastItem        *QueueItem     `json:"lastItem,omitempty"`
	StageHealth     []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

// StatusLine is a labelled severity/detail pair rendered by status surfaces.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// DependencySummary aggregates dependency readiness for status output.
type DependencySummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missingRequired"`
	MissingOptional int    `json:"missingOptional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}

// CameraStatus reports the camera snapshot observed by the daemon monitors.
type CameraStatus struct {
	Detected bool   `json:"detected"`
	Device   string `json:"device,omitempty"`
	Name     string `json:"name,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	QueueDBPath   string             `json:"queueDbPath"`
	LockFilePath  string             `json:"lockFilePath"`
	Camera        CameraStatus       `json:"camera"`
	HotplugActive bool               `json:"hotplugActive"`
	Workflow      WorkflowStatus     `json:"workflow"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// HealthResponse reports overall readiness for the HTTP health endpoint.
type HealthResponse struct {
	Status     string         `json:"status"`
	Queue      QueueHealth    `json:"queue"`
	Stages     []StageHealth  `json:"stages"`
	Camera     CameraStatus   `json:"camera"`
	QueueStats map[string]int `json:"queueStats,omitempty"`
}

// QueueHealth summarizes queue counts by lifecycle group.
type QueueHealth struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Review     int `json:"review"`
	Completed  int `json:"completed"`
}
