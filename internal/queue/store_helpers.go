package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, uuid, kind, target_name, slug_name, status, settings_json, frame_paths_json, dng_paths_json, video_path, solution_json, library_dir, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, last_heartbeat, needs_review, review_reason"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		token            sql.NullString
		kindStr          sql.NullString
		targetName       sql.NullString
		slugName         sql.NullString
		statusStr        string
		settings         sql.NullString
		framePaths       sql.NullString
		dngPaths         sql.NullString
		videoPath        sql.NullString
		solution         sql.NullString
		libraryDir       sql.NullString
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		lastHeartbeatRaw sql.NullString
		needsReview      sql.NullInt64
		reviewReason     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&token,
		&kindStr,
		&targetName,
		&slugName,
		&statusStr,
		&settings,
		&framePaths,
		&dngPaths,
		&videoPath,
		&solution,
		&libraryDir,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&lastHeartbeatRaw,
		&needsReview,
		&reviewReason,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		UUID:            token.String,
		Kind:            Kind(kindStr.String),
		TargetName:      targetName.String,
		SlugName:        slugName.String,
		Status:          Status(statusStr),
		SettingsJSON:    settings.String,
		FramePathsJSON:  framePaths.String,
		DNGPathsJSON:    dngPaths.String,
		VideoPath:       videoPath.String,
		SolutionJSON:    solution.String,
		LibraryDir:      libraryDir.String,
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}
	if needsReview.Valid {
		item.NeedsReview = needsReview.Int64 != 0
	}
	item.ReviewReason = reviewReason.String

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
