package main

import (
	"testing"
)

func TestPresetSaveListShowDelete(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env, "preset", "save", "Deep Sky", "--exposure", "20", "--iso", "800", "--raw")
	if err != nil {
		t.Fatalf("preset save: %v", err)
	}
	requireContains(t, stdout, "Saved preset Deep Sky")

	stdout, _, err = runCLI(t, env, "preset", "list")
	if err != nil {
		t.Fatalf("preset list: %v", err)
	}
	requireContains(t, stdout, "Deep Sky")

	stdout, _, err = runCLI(t, env, "preset", "show", "deep sky")
	if err != nil {
		t.Fatalf("preset show: %v", err)
	}
	requireContains(t, stdout, "Preset: Deep Sky")
	requireContains(t, stdout, "800")

	stdout, _, err = runCLI(t, env, "preset", "delete", "Deep Sky")
	if err != nil {
		t.Fatalf("preset delete: %v", err)
	}
	requireContains(t, stdout, "Deleted preset Deep Sky")

	stdout, _, err = runCLI(t, env, "preset", "list")
	if err != nil {
		t.Fatalf("preset list after delete: %v", err)
	}
	requireContains(t, stdout, "No presets saved")
}

func TestPresetShowMissing(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "preset", "show", "nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestPresetListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env, "preset", "list")
	if err != nil {
		t.Fatalf("preset list: %v", err)
	}
	requireContains(t, stdout, "No presets saved")
}
