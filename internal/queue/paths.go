package queue

import (
	"fmt"
	"path/filepath"
	"strings"

	"astropitography/internal/textutil"
)

// StagingRoot returns the per-session staging directory rooted at base.
// Sessions with a target name use its slug; otherwise session-{ID} keeps
// concurrent sessions from colliding.
func (i Item) StagingRoot(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return filepath.Join(base, i.StagingSegment())
}

// StagingSegment returns the directory name a session occupies under the
// staging root, independent of where that root lives.
func (i Item) StagingSegment() string {
	segment := strings.TrimSpace(i.SlugName)
	if segment == "" {
		segment = fmt.Sprintf("session-%d", i.ID)
	}
	return sanitizeSegment(segment)
}

func sanitizeSegment(value string) string {
	value = textutil.SanitizeFileName(value)
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, " ", "-")
	value = strings.Trim(value, "-_")
	if value == "" {
		return "session"
	}
	return value
}
