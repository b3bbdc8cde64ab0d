package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCamera()
	c.normalizeCapture()
	c.normalizeSolver()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.CatalogPath, err = expandPath(c.Paths.CatalogPath); err != nil {
		return fmt.Errorf("paths.catalog_path: %w", err)
	}
	if c.Paths.PatternDBPath, err = expandPath(c.Paths.PatternDBPath); err != nil {
		return fmt.Errorf("paths.pattern_db_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.PresetsPath) == "" {
		c.Paths.PresetsPath = "~/.config/astropitography/presets.yaml"
	}
	if c.Paths.PresetsPath, err = expandPath(c.Paths.PresetsPath); err != nil {
		return fmt.Errorf("paths.presets_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeCamera() {
	if c.Camera.ISO == 0 {
		c.Camera.ISO = defaultISO
	}
	if c.Camera.VideoWidth <= 0 {
		c.Camera.VideoWidth = defaultVideoWidth
	}
	if c.Camera.VideoHeight <= 0 {
		c.Camera.VideoHeight = defaultVideoHeight
	}
}

func (c *Config) normalizeCapture() {
	c.Capture.StillBinary = strings.TrimSpace(c.Capture.StillBinary)
	if c.Capture.StillBinary == "" {
		c.Capture.StillBinary = defaultStillBinary
	}
	c.Capture.VideoBinary = strings.TrimSpace(c.Capture.VideoBinary)
	if c.Capture.VideoBinary == "" {
		c.Capture.VideoBinary = defaultVideoBinary
	}
	if c.Capture.StillTimeout <= 0 {
		c.Capture.StillTimeout = defaultStillTimeout
	}
	if c.Capture.VideoTimeoutSlack <= 0 {
		c.Capture.VideoTimeoutSlack = defaultVideoTimeoutSlack
	}
	if c.Capture.MaxExposureSeconds <= 0 {
		c.Capture.MaxExposureSeconds = defaultMaxExposureSeconds
	}
	if c.Capture.MinFreeSpaceMB <= 0 {
		c.Capture.MinFreeSpaceMB = defaultMinFreeSpaceMB
	}
}

func (c *Config) normalizeSolver() {
	if c.Solver.MinFOV <= 0 {
		c.Solver.MinFOV = defaultSolverMinFOV
	}
	if c.Solver.MaxFOV <= 0 {
		c.Solver.MaxFOV = defaultSolverMaxFOV
	}
	if c.Solver.MaxMagnitude == 0 {
		c.Solver.MaxMagnitude = defaultSolverMaxMagnitude
	}
	if c.Solver.PatternStarsPerFOV <= 0 {
		c.Solver.PatternStarsPerFOV = defaultPatternStarsPerFOV
	}
	if c.Solver.CatalogStarsPerFOV <= 0 {
		c.Solver.CatalogStarsPerFOV = defaultCatalogStarsPerFOV
	}
	if c.Solver.MatchRadius <= 0 {
		c.Solver.MatchRadius = defaultMatchRadius
	}
	if c.Solver.MatchThreshold <= 0 {
		c.Solver.MatchThreshold = defaultMatchThreshold
	}
	if c.Solver.SolveTimeout <= 0 {
		c.Solver.SolveTimeout = defaultSolveTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	// Zero is a valid poll interval (poll continuously); the heartbeat and
	// monitor tickers need a positive period.
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.CameraMonitorInterval <= 0 {
		c.Workflow.CameraMonitorInterval = defaultCameraMonitorInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
