package camera

import (
	"testing"
	"time"
)

func TestParseBlankReturnsDefaults(t *testing.T) {
	s, err := Parse("")
	if err != nil {
		t.Fatalf("Parse blank: %v", err)
	}
	if s != DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", s)
	}
}

func TestParsePartialPayloadInheritsDefaults(t *testing.T) {
	s, err := Parse(`{"brightness":70,"frame_count":5}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Brightness != 70 || s.FrameCount != 5 {
		t.Fatalf("expected overrides applied, got %+v", s)
	}
	if s.ISO != 800 || s.ExposureSeconds != 1 || !s.Raw {
		t.Fatalf("expected defaults for omitted fields, got %+v", s)
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	if _, err := Parse("{not json"); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	original := DefaultSettings()
	original.ExposureSeconds = 30
	original.FrameCount = 4
	original.Greyscale = true

	raw, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if decoded != original {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, original)
	}
}

func TestValidateRanges(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"brightness high", func(s *Settings) { s.Brightness = 150 }},
		{"contrast low", func(s *Settings) { s.Contrast = -150 }},
		{"saturation high", func(s *Settings) { s.Saturation = 150 }},
		{"sharpness negative", func(s *Settings) { s.Sharpness = -1 }},
		{"iso low", func(s *Settings) { s.ISO = 50 }},
		{"exposure zero", func(s *Settings) { s.ExposureSeconds = 0 }},
		{"exposure over max", func(s *Settings) { s.ExposureSeconds = 240 }},
		{"frame count zero", func(s *Settings) { s.FrameCount = 0 }},
		{"interval negative", func(s *Settings) { s.IntervalSeconds = -1 }},
		{"video zero", func(s *Settings) { s.VideoSeconds = 0 }},
	}
	for _, tc := range cases {
		s := DefaultSettings()
		tc.mutate(&s)
		if err := s.Validate(239); err == nil {
			t.Fatalf("%s: expected validation error for %+v", tc.name, s)
		}
	}

	good := DefaultSettings()
	if err := good.Validate(239); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestNormalizeClampsCounts(t *testing.T) {
	s := Settings{FrameCount: 0, IntervalSeconds: -3, VideoSeconds: 0, ExposureSeconds: -1}
	s.Normalize()
	if s.FrameCount != 1 || s.IntervalSeconds != 0 || s.VideoSeconds != 1 || s.ExposureSeconds != 1 {
		t.Fatalf("unexpected normalized settings %+v", s)
	}
}

func TestLongExposureThreshold(t *testing.T) {
	s := DefaultSettings()
	if s.LongExposure() {
		t.Fatal("expected one second exposure to use the standard path")
	}
	s.ExposureSeconds = 30
	if !s.LongExposure() {
		t.Fatal("expected thirty second exposure to use the long exposure path")
	}
	if s.Exposure() != 30*time.Second {
		t.Fatalf("unexpected exposure duration %v", s.Exposure())
	}
}
