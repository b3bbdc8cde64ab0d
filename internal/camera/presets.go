package camera

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

var presetFold = cases.Fold()

// Preset binds a name to a saved settings bundle.
type Preset struct {
	Name     string   `yaml:"name"`
	Settings Settings `yaml:"settings"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// PresetStore persists named settings bundles to a YAML file.
type PresetStore struct {
	mu   sync.Mutex
	path string
}

// NewPresetStore returns a store backed by the given YAML path.
func NewPresetStore(path string) *PresetStore {
	return &PresetStore{path: path}
}

// NormalizePresetName case-folds a preset name for lookups.
func NormalizePresetName(name string) string {
	return presetFold.String(strings.TrimSpace(name))
}

// DisplayPresetName renders a preset name in title case for output.
func DisplayPresetName(name string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(name))
}

// List returns all presets sorted by name.
func (ps *PresetStore) List() ([]Preset, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	doc, err := ps.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(doc.Presets, func(i, j int) bool {
		return NormalizePresetName(doc.Presets[i].Name) < NormalizePresetName(doc.Presets[j].Name)
	})
	return doc.Presets, nil
}

// Get looks up a preset by case-folded name.
func (ps *PresetStore) Get(name string) (Preset, bool, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	doc, err := ps.load()
	if err != nil {
		return Preset{}, false, err
	}
	key := NormalizePresetName(name)
	for _, preset := range doc.Presets {
		if NormalizePresetName(preset.Name) == key {
			return preset, true, nil
		}
	}
	return Preset{}, false, nil
}

// Save writes or replaces a preset.
func (ps *PresetStore) Save(name string, settings Settings) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("preset name must not be empty")
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	doc, err := ps.load()
	if err != nil {
		return err
	}
	key := NormalizePresetName(name)
	replaced := false
	for idx := range doc.Presets {
		if NormalizePresetName(doc.Presets[idx].Name) == key {
			doc.Presets[idx] = Preset{Name: name, Settings: settings}
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Presets = append(doc.Presets, Preset{Name: name, Settings: settings})
	}
	return ps.store(doc)
}

// Delete removes a preset, reporting whether it existed.
func (ps *PresetStore) Delete(name string) (bool, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	doc, err := ps.load()
	if err != nil {
		return false, err
	}
	key := NormalizePresetName(name)
	kept := doc.Presets[:0]
	removed := false
	for _, preset := range doc.Presets {
		if NormalizePresetName(preset.Name) == key {
			removed = true
			continue
		}
		kept = append(kept, preset)
	}
	if !removed {
		return false, nil
	}
	doc.Presets = kept
	return true, ps.store(doc)
}

func (ps *PresetStore) load() (presetFile, error) {
	var doc presetFile
	data, err := os.ReadFile(ps.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("read presets: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return presetFile{}, fmt.Errorf("parse presets: %w", err)
	}
	return doc, nil
}

func (ps *PresetStore) store(doc presetFile) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode presets: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(ps.path), 0o755); err != nil {
		return fmt.Errorf("ensure presets dir: %w", err)
	}
	if err := os.WriteFile(ps.path, data, 0o644); err != nil {
		return fmt.Errorf("write presets: %w", err)
	}
	return nil
}
