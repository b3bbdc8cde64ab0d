package api

import (
	"context"
	"fmt"
	"strings"

	"astropitography/internal/staging"
)

// ActiveRootProvider surfaces the staging directory names of live sessions
// for cleanup workflows.
type ActiveRootProvider interface {
	ActiveStagingRoots(ctx context.Context) (map[string]struct{}, error)
}

type CleanStagingRequest struct {
	StagingDir string
	CleanAll   bool
	Roots      ActiveRootProvider
}

type CleanStagingResult struct {
	Configured bool
	Scope      string
	Cleanup    staging.CleanStaleResult
}

// CleanStagingDirectories applies staging cleanup policy used by CLI commands.
func CleanStagingDirectories(ctx context.Context, req CleanStagingRequest) (CleanStagingResult, error) {
	stagingDir := strings.TrimSpace(req.StagingDir)
	if stagingDir == "" {
		return CleanStagingResult{Configured: false}, nil
	}

	if req.CleanAll {
		return CleanStagingResult{
			Configured: true,
			Scope:      "staging",
			Cleanup:    staging.CleanStale(ctx, stagingDir, 0, nil),
		}, nil
	}

	if req.Roots == nil {
		return CleanStagingResult{}, fmt.Errorf("active root provider is required when clean_all is false")
	}
	roots, err := req.Roots.ActiveStagingRoots(ctx)
	if err != nil {
		return CleanStagingResult{}, err
	}
	return CleanStagingResult{
		Configured: true,
		Scope:      "orphaned staging",
		Cleanup:    staging.CleanOrphaned(ctx, stagingDir, roots, nil),
	}, nil
}
