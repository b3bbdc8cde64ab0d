package logging

import (
	"log/slog"
	"strings"
)

type infoField struct {
	label string
	value string
}

const infoAttrLimit = 8

var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	"target",
	"kind",
	"processing_status",
	FieldProgressStage,
	FieldProgressPercent,
	FieldProgressMessage,
	"command",
	"error_message",
	FieldErrorCode,
	FieldErrorHint,
	"status",
	"camera_model",
	"camera_device",
	"exposure_seconds",
	"interval_seconds",
	"iso",
	"frames_captured",
	"captured_bytes",
	"frames_converted",
	"dng_count",
	"centroid_count",
	"solution_ra",
	"solution_dec",
	"solution_roll",
	"solution_fov",
	"solve_matches",
	"solve_rmse_arcsec",
	"solve_prob",
	"solve_duration",
	"extract_duration",
	"pattern_count",
	"star_count",
	"files_moved",
	"library_size_bytes",
	"disk_free_bytes",
	// Stage summary fields
	"stage_duration",
	"capture_duration",
	"video_duration",
	"needs_review",
	"reason",
}

// selectInfoFields returns formatted info-level fields and a count of hidden entries.
// limit=0 means no limit. includeDebug controls whether debug-only keys are allowed.
func selectInfoFields(attrs []kv, limit int, includeDebug bool) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	if limit < 0 {
		limit = 0
	}
	used := make([]bool, len(attrs))
	formatted := make([]string, len(attrs))
	formattedSet := make([]bool, len(attrs))
	ensureValue := func(idx int) string {
		if !formattedSet[idx] {
			formatted[idx] = formatValueForKey(attrs[idx].key, attrs[idx].value)
			formattedSet[idx] = true
		}
		return formatted[idx]
	}
	result := make([]infoField, 0, infoAttrLimit)
	hidden := 0

	for _, key := range infoHighlightKeys {
		if limit > 0 && len(result) >= limit {
			break
		}
		for idx, attr := range attrs {
			if used[idx] || attr.key != key {
				continue
			}
			used[idx] = true
			if skipInfoKey(attr.key) {
				break
			}
			if !includeDebug && isDebugOnlyKey(attr.key) {
				hidden++
				break
			}
			val := ensureValue(idx)
			if !includeDebug && shouldHideInfoValue(attr.key, val) {
				hidden++
				break
			}
			result = append(result, infoField{label: displayLabel(attr.key), value: val})
			break
		}
	}

	for idx, attr := range attrs {
		if used[idx] {
			continue
		}
		used[idx] = true
		if skipInfoKey(attr.key) {
			continue
		}
		if !includeDebug && isDebugOnlyKey(attr.key) {
			hidden++
			continue
		}
		val := ensureValue(idx)
		if !includeDebug && shouldHideInfoValue(attr.key, val) {
			hidden++
			continue
		}
		if limit <= 0 || len(result) < limit {
			result = append(result, infoField{label: displayLabel(attr.key), value: val})
		} else if limit > 0 {
			hidden++
		}
	}

	return result, hidden
}

// formatValueForKey applies smart formatting based on the key name.
func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()

	if isByteSizeKey(key) && (v.Kind() == slog.KindInt64 || v.Kind() == slog.KindUint64) {
		var bytes int64
		if v.Kind() == slog.KindInt64 {
			bytes = v.Int64()
		} else {
			bytes = int64(v.Uint64())
		}
		return formatBytes(bytes)
	}

	if isDurationKey(key) && v.Kind() == slog.KindDuration {
		return formatDurationHuman(v.Duration())
	}

	if isPercentKey(key) && v.Kind() == slog.KindFloat64 {
		return formatPercent(v.Float64())
	}

	if isDegreesKey(key) && v.Kind() == slog.KindFloat64 {
		return formatDegrees(v.Float64())
	}

	if v.Kind() == slog.KindBool {
		if v.Bool() {
			return "yes"
		}
		return "no"
	}

	value := formatValue(v)
	if key == "error" || key == "error_message" {
		value = truncateErrorValue(value)
	}
	return value
}

// isByteSizeKey returns true if the key represents a byte size.
func isByteSizeKey(key string) bool {
	return strings.HasSuffix(key, "_bytes") ||
		strings.HasSuffix(key, "_size") ||
		key == "size"
}

// isDurationKey returns true if the key represents a duration.
func isDurationKey(key string) bool {
	return strings.HasSuffix(key, "_duration") ||
		strings.HasSuffix(key, "_elapsed") ||
		key == "elapsed" ||
		key == "duration" ||
		key == "backoff"
}

// isPercentKey returns true if the key represents a percentage.
func isPercentKey(key string) bool {
	return strings.HasSuffix(key, "_percent") ||
		key == FieldProgressPercent
}

// isDegreesKey returns true if the key carries celestial coordinates or angles.
func isDegreesKey(key string) bool {
	switch key {
	case "solution_ra", "solution_dec", "solution_roll", "solution_fov":
		return true
	}
	return strings.HasSuffix(key, "_degrees")
}

func truncateErrorValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	const maxLen = 200
	if len(value) > maxLen {
		value = value[:maxLen] + "..."
	}
	return value
}

func skipInfoKey(key string) bool {
	switch key {
	case "", FieldSessionID, FieldStage, FieldLane, "component":
		return true
	default:
		return false
	}
}

func isDebugOnlyKey(key string) bool {
	if key == "" {
		return true
	}
	switch key {
	case FieldCorrelationID,
		"device",
		"source_path",
		"destination_dir",
		"socket_path",
		"sidecar",
		"checksum",
		"bins",
		"probe_depth",
		"hash_index",
		"epoch",
		"magnitude_limit":
		return true
	}
	if strings.Contains(key, "correlation") {
		return true
	}
	if strings.HasSuffix(key, "_id") && key != FieldSessionID {
		return true
	}
	if strings.Contains(key, "_path") || strings.Contains(key, "_dir") {
		return true
	}
	return false
}

func shouldHideInfoValue(key, value string) bool {
	switch key {
	case "error_message", "error", "command", "reason":
		return false
	}
	return len(value) > 120
}

func displayLabel(key string) string {
	switch key {
	case FieldAlert:
		return "Alert"
	case FieldEventType:
		return "Event"
	case FieldErrorCode:
		return "Error Code"
	case FieldErrorHint:
		return "Hint"
	case FieldSessionID:
		return "Session"
	case FieldStage:
		return "Stage"
	case "target":
		return "Target"
	case "kind":
		return "Kind"
	case "processing_status":
		return "Status"
	case "progress_stage":
		return "Progress Stage"
	case "progress_message":
		return "Progress"
	case "camera_model":
		return "Camera"
	case "camera_device":
		return "Device"
	case "exposure_seconds":
		return "Exposure"
	case "interval_seconds":
		return "Interval"
	case "iso":
		return "ISO"
	case "frames_captured":
		return "Frames"
	case "captured_bytes":
		return "Captured"
	case "frames_converted":
		return "Converted"
	case "dng_count":
		return "DNG Files"
	case "centroid_count":
		return "Centroids"
	case "solution_ra":
		return "RA"
	case "solution_dec":
		return "Dec"
	case "solution_roll":
		return "Roll"
	case "solution_fov":
		return "FOV"
	case "solve_matches":
		return "Matches"
	case "solve_rmse_arcsec":
		return "RMSE (arcsec)"
	case "solve_prob":
		return "Mismatch Prob"
	case "solve_duration":
		return "Solve Time"
	case "extract_duration":
		return "Extract Time"
	case "pattern_count":
		return "Patterns"
	case "star_count":
		return "Stars"
	case "files_moved":
		return "Files"
	case "library_size_bytes":
		return "Library Size"
	case "disk_free_bytes":
		return "Disk Free"
	case "stage_duration":
		return "Duration"
	case "capture_duration":
		return "Capture Time"
	case "video_duration":
		return "Video Length"
	case "needs_review":
		return "Needs Review"
	case "reason":
		return "Reason"
	default:
		return titleizeKey(key)
	}
}

func titleizeKey(key string) string {
	if key == "" {
		return ""
	}
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return strings.ToUpper(key[:1]) + strings.ToLower(key[1:])
	}
	for i, part := range parts {
		parts[i] = capitalizeASCII(part)
	}
	return strings.Join(parts, " ")
}

func capitalizeASCII(value string) string {
	switch len(value) {
	case 0:
		return ""
	case 1:
		return strings.ToUpper(value)
	default:
		lower := strings.ToLower(value)
		return strings.ToUpper(lower[:1]) + lower[1:]
	}
}

func infoSummaryKey(component, sessionID string, attrs []kv) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		if target := attrValue(attrs, "target"); target != "" {
			sessionID = "target:" + target
		} else if component != "" {
			sessionID = component
		}
	}
	return sessionID
}

func attrValue(attrs []kv, key string) string {
	for _, kv := range attrs {
		if kv.key == key {
			return attrString(kv.value)
		}
	}
	return ""
}
