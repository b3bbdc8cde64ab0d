package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"astropitography/internal/api"
)

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid session id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func bulkClearLabel(completed, failed bool) string {
	switch {
	case completed:
		return "completed sessions"
	case failed:
		return "failed sessions"
	default:
		return "sessions"
	}
}

func printQueueRetryResult(cmd *cobra.Command, result api.RetryItemsResult) {
	out := cmd.OutOrStdout()
	for _, item := range result.Items {
		switch item.Outcome {
		case api.RetryItemNotFound:
			fmt.Fprintf(out, "Session %d not found\n", item.ID)
		case api.RetryItemNotRetryable:
			fmt.Fprintf(out, "Session %d is not in a retryable state (only failed or review sessions can be retried)\n", item.ID)
		case api.RetryItemUpdated:
			fmt.Fprintf(out, "Session %d reset for retry\n", item.ID)
		}
	}
}

func printQueueStopResult(cmd *cobra.Command, result api.StopItemsResult) {
	out := cmd.OutOrStdout()
	for _, item := range result.Items {
		switch item.Outcome {
		case api.StopItemNotFound:
			fmt.Fprintf(out, "Session %d not found\n", item.ID)
		case api.StopItemAlreadyCompleted:
			fmt.Fprintf(out, "Session %d already completed\n", item.ID)
		case api.StopItemAlreadyFailed:
			fmt.Fprintf(out, "Session %d already failed\n", item.ID)
		case api.StopItemInReview:
			fmt.Fprintf(out, "Session %d is waiting for review; clear it instead of stopping\n", item.ID)
		case api.StopItemProcessing:
			fmt.Fprintf(out, "Session %d is mid-stage; it will stop at the next checkpoint\n", item.ID)
		case api.StopItemUpdated:
			fmt.Fprintf(out, "Session %d stopped\n", item.ID)
		}
	}
}

func printQueueItemDetail(cmd *cobra.Command, item api.QueueItem) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %d\n", item.ID)
	if item.UUID != "" {
		fmt.Fprintf(out, "  UUID:          %s\n", item.UUID)
	}
	target := strings.TrimSpace(item.TargetName)
	if target == "" {
		target = "Untitled"
	}
	fmt.Fprintf(out, "  Target:        %s\n", target)
	fmt.Fprintf(out, "  Kind:          %s\n", item.Kind)
	fmt.Fprintf(out, "  Status:        %s\n", formatStatusLabel(item.Status))
	if stage := strings.TrimSpace(item.Progress.Stage); stage != "" {
		fmt.Fprintf(out, "  Stage:         %s (%.0f%%)\n", stage, item.Progress.Percent)
	}
	if msg := strings.TrimSpace(item.Progress.Message); msg != "" {
		fmt.Fprintf(out, "  Progress:      %s\n", msg)
	}
	fmt.Fprintf(out, "  Frames:        %d\n", item.FrameCount)
	if item.DNGCount > 0 {
		fmt.Fprintf(out, "  DNGs:          %d\n", item.DNGCount)
	}
	if item.VideoPath != "" {
		fmt.Fprintf(out, "  Video:         %s\n", item.VideoPath)
	}
	if item.LibraryDir != "" {
		fmt.Fprintf(out, "  Library:       %s\n", item.LibraryDir)
	}
	if item.StagingRoot != "" {
		fmt.Fprintf(out, "  Staging:       %s\n", item.StagingRoot)
	}
	if item.Solution != nil {
		fmt.Fprintf(out, "  Solution:      RA %.4f°  Dec %.4f°  Roll %.2f°  FOV %.3f°\n",
			item.Solution.RADeg, item.Solution.DecDeg, item.Solution.RollDeg, item.Solution.FOVDeg)
		fmt.Fprintf(out, "                 %d matches, RMSE %.2f\", solved in %.0f ms\n",
			item.Solution.Matches, item.Solution.RMSEArcsec, item.Solution.SolveMillis)
	}
	if item.NeedsReview {
		reason := strings.TrimSpace(item.ReviewReason)
		if reason == "" {
			reason = "unspecified"
		}
		fmt.Fprintf(out, "  Review:        %s\n", reason)
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:         %s\n", item.ErrorMessage)
	}
	if item.CreatedAt != "" {
		fmt.Fprintf(out, "  Created:       %s\n", formatDisplayTime(item.CreatedAt))
	}
	if item.UpdatedAt != "" {
		fmt.Fprintf(out, "  Updated:       %s\n", formatDisplayTime(item.UpdatedAt))
	}
}
