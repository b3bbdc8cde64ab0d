package libcamera

import (
	"testing"
	"time"

	"astropitography/internal/camera"
)

func TestParseFrameLine(t *testing.T) {
	cases := []struct {
		line string
		ok   bool
	}{
		{"#42 (12.00 fps) exp 32000.00 ag 8.00 dg 1.00", true},
		{"  #0 (0.00 fps) exp 66657.00", true},
		{"[1:02:27.959] INFO Camera camera_manager.cpp:284 libcamera v0.2.0", false},
		{"# not a frame", false},
		{"", false},
	}
	for _, tc := range cases {
		_, ok := parseFrameLine(tc.line)
		if ok != tc.ok {
			t.Fatalf("parseFrameLine(%q) ok=%v, want %v", tc.line, ok, tc.ok)
		}
	}
}

func TestFormatScale(t *testing.T) {
	if got := formatScale(0.5); got != "0.50" {
		t.Fatalf("formatScale(0.5) = %q", got)
	}
	if got := formatScale(-1); got != "-1.00" {
		t.Fatalf("formatScale(-1) = %q", got)
	}
}

func TestStillFilenameFractionalExposure(t *testing.T) {
	ts := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	settings := camera.DefaultSettings()
	settings.ExposureSeconds = 2.5
	if got := StillFilename(ts, 1, settings); got != "Image_02_01_2026_03_04_05_no-1_LE_2.5s.jpeg" {
		t.Fatalf("unexpected filename %q", got)
	}
}
