package preflight

import (
	"context"

	"astropitography/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Staging directory (always checked)
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))

	// Library directory (when configured)
	if cfg.Paths.LibraryDir != "" {
		results = append(results, CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir))
	}

	// Free space floor for captures
	if cfg.Capture.MinFreeSpaceMB > 0 {
		results = append(results, CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, cfg.Capture.MinFreeSpaceMB))
	}

	// Plate solver pattern database
	if cfg.Solver.Enabled {
		results = append(results, CheckPatternDatabase(cfg.Paths.PatternDBPath))
	}

	return results
}
