package camera

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *PresetStore {
	t.Helper()
	return NewPresetStore(filepath.Join(t.TempDir(), "presets.yaml"))
}

func TestPresetStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	settings := DefaultSettings()
	settings.ExposureSeconds = 60
	settings.ISO = 400
	if err := store.Save("Deep Sky", settings); err != nil {
		t.Fatalf("Save: %v", err)
	}

	preset, ok, err := store.Get("deep sky")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected case-folded lookup to find preset")
	}
	if preset.Name != "Deep Sky" {
		t.Fatalf("expected stored name preserved, got %q", preset.Name)
	}
	if preset.Settings.ExposureSeconds != 60 || preset.Settings.ISO != 400 {
		t.Fatalf("unexpected settings %+v", preset.Settings)
	}
}

func TestPresetStoreSaveReplacesExisting(t *testing.T) {
	store := newTestStore(t)

	first := DefaultSettings()
	first.ISO = 200
	if err := store.Save("Lunar", first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second := DefaultSettings()
	second.ISO = 1600
	if err := store.Save("LUNAR", second); err != nil {
		t.Fatalf("Save replace: %v", err)
	}

	presets, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(presets) != 1 {
		t.Fatalf("expected a single preset, got %d", len(presets))
	}
	if presets[0].Settings.ISO != 1600 {
		t.Fatalf("expected replacement to win, got ISO %d", presets[0].Settings.ISO)
	}
}

func TestPresetStoreListSorted(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"Planetary", "Andromeda", "Lunar"} {
		if err := store.Save(name, DefaultSettings()); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}
	presets, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(presets) != 3 {
		t.Fatalf("expected 3 presets, got %d", len(presets))
	}
	want := []string{"Andromeda", "Lunar", "Planetary"}
	for idx, name := range want {
		if presets[idx].Name != name {
			t.Fatalf("expected %s at index %d, got %s", name, idx, presets[idx].Name)
		}
	}
}

func TestPresetStoreDelete(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save("Solar", DefaultSettings()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	removed, err := store.Delete("solar")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Fatal("expected delete to report removal")
	}
	removed, err = store.Delete("solar")
	if err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if removed {
		t.Fatal("expected second delete to be a no-op")
	}
}

func TestPresetStoreMissingFileIsEmpty(t *testing.T) {
	store := newTestStore(t)
	presets, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(presets) != 0 {
		t.Fatalf("expected empty preset list, got %d", len(presets))
	}
}

func TestSaveRejectsEmptyName(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save("   ", DefaultSettings()); err == nil {
		t.Fatal("expected error for empty preset name")
	}
}
