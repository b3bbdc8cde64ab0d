package organizer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"astropitography/internal/queue"
	"astropitography/internal/services"
)

// allocateSessionDir resolves the dated library directory for a session.
// The layout is library_dir/YYYY/MM/DD/<slug>; slug collisions within a
// day get -2, -3 style suffixes.
func (o *Organizer) allocateSessionDir(item *queue.Item) (string, error) {
	library := strings.TrimSpace(o.cfg.Paths.LibraryDir)
	if library == "" {
		return "", services.Wrap(
			services.ErrConfiguration,
			"organizing",
			"resolve library dir",
			"Library directory not configured; set library_dir in your astropitography config.toml",
			nil,
		)
	}
	day := item.CreatedAt
	if day.IsZero() {
		day = time.Now()
	}
	dayDir := filepath.Join(library, day.Format("2006"), day.Format("01"), day.Format("02"))
	dest, err := nextSessionDir(dayDir, librarySlug(item))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "organizing", "allocate library dir", "Unable to allocate a library directory for the session", err)
	}
	return dest, nil
}

func nextSessionDir(dayDir, slug string) (string, error) {
	const maxAttempts = 10000
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		name := slug
		if attempt > 1 {
			name = fmt.Sprintf("%s-%d", slug, attempt)
		}
		candidate := filepath.Join(dayDir, name)
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return candidate, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted session directory slots in %s", dayDir)
}

// librarySlug mirrors the staging layout: the stored slug when the session
// has a target name, session-{ID} otherwise.
func librarySlug(item *queue.Item) string {
	slug := strings.TrimSpace(item.SlugName)
	if slug == "" {
		slug = fmt.Sprintf("session-%d", item.ID)
	}
	return slug
}
