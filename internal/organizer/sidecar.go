package organizer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"astropitography/internal/fileutil"
	"astropitography/internal/queue"
)

const manifestName = "session.json"

// manifest is the session.json sidecar written alongside the organized
// files so a library folder stays self-describing without the queue
// database.
type manifest struct {
	Name        string          `json:"name"`
	Kind        string          `json:"kind"`
	SessionUUID string          `json:"session_uuid,omitempty"`
	CapturedAt  time.Time       `json:"captured_at"`
	OrganizedAt time.Time       `json:"organized_at"`
	Settings    json.RawMessage `json:"settings,omitempty"`
	Solution    *queue.Solution `json:"solution,omitempty"`
	Files       []manifestFile  `json:"files"`
}

type manifestFile struct {
	Name    string `json:"name"`
	Bytes   int64  `json:"bytes"`
	Blake2b string `json:"blake2b"`
}

// writeManifest checksums every organized file and records it together
// with the capture settings and any plate-solve solution.
func writeManifest(destDir string, item *queue.Item) error {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return err
	}
	files := make([]manifestFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == manifestName {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		sum, err := fileutil.ChecksumFile(filepath.Join(destDir, entry.Name()))
		if err != nil {
			return err
		}
		files = append(files, manifestFile{Name: entry.Name(), Bytes: info.Size(), Blake2b: sum})
	}
	doc := manifest{
		Name:        item.DisplayName(),
		Kind:        string(item.Kind),
		SessionUUID: item.UUID,
		CapturedAt:  item.CreatedAt,
		OrganizedAt: time.Now().UTC(),
		Files:       files,
	}
	if raw := strings.TrimSpace(item.SettingsJSON); raw != "" {
		doc.Settings = json.RawMessage(raw)
	}
	if solution, ok := item.Solution(); ok {
		doc.Solution = &solution
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(filepath.Join(destDir, manifestName), data, 0o644)
}
