package queue

import (
	"context"
	"fmt"
	"time"
)

// ResetStuckProcessing resets sessions in processing states back to the start of their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?, ?)`,
		StatusCapturing, StatusPending,
		StatusConverting, StatusCaptured,
		StatusSolving, StatusConverted,
		StatusOrganizing, StatusSolved,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusCapturing,
		StatusConverting,
		StatusSolving,
		StatusOrganizing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck sessions: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight session.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns sessions stuck in processing back to the start
// of their current stage when heartbeats expire. When statuses are provided the
// reclaim only considers those processing states; otherwise all of them.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time, statuses ...Status) (int64, error) {
	candidates := make([]Status, 0, len(statusRollback))
	if len(statuses) == 0 {
		for status := range statusRollback {
			candidates = append(candidates, status)
		}
	} else {
		for _, status := range statuses {
			if _, ok := statusRollback[status]; ok {
				candidates = append(candidates, status)
			}
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	args := make([]any, 0, len(statusRollback)*2+len(candidates)+2)
	for from, to := range statusRollback {
		args = append(args, from, to)
	}
	args = append(args, now.Format(time.RFC3339Nano))
	for _, status := range candidates {
		args = append(args, status)
	}
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	query := `UPDATE queue_items
        SET status = CASE status
            WHEN ? THEN ?
            WHEN ? THEN ?
            WHEN ? THEN ?
            WHEN ? THEN ?
            ELSE status
        END,
            progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (` + makePlaceholders(len(candidates)) + `) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale sessions: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed and review sessions back to pending for reprocessing.
// With no IDs, all failed sessions are retried; with IDs, the listed sessions
// are retried whether they failed or were parked for review.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_items
            SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL,
                needs_review = 0, review_reason = NULL, updated_at = ?
            WHERE status = ?`,
			StatusPending,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed sessions: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+4)
	args = append(args, StatusPending, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusFailed, StatusReview)
	query := `UPDATE queue_items
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL,
            needs_review = 0, review_reason = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status IN (?, ?)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected sessions: %w", err)
	}
	return res.RowsAffected()
}

// StopSessions parks the listed sessions for review with a user-stop reason.
// Only sessions waiting between stages are eligible; in-flight and terminal
// sessions are left untouched.
func (s *Store) StopSessions(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+8)
	args = append(args, StatusReview, UserStopReason, UserStopReason, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusPending, StatusCaptured, StatusConverted, StatusSolved)
	query := `UPDATE queue_items
        SET status = ?, needs_review = 1, review_reason = ?,
            progress_stage = 'Needs review', progress_percent = 0, progress_message = ?,
            error_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status IN (?, ?, ?, ?)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("stop sessions: %w", err)
	}
	return res.RowsAffected()
}
