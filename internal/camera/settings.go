package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"astropitography/internal/config"
)

// Settings holds the per-session capture tuning shared between the CLI,
// the queue payload, and the capture stage.
type Settings struct {
	Brightness      int     `json:"brightness" yaml:"brightness"`
	Contrast        int     `json:"contrast" yaml:"contrast"`
	Saturation      int     `json:"saturation" yaml:"saturation"`
	Sharpness       int     `json:"sharpness" yaml:"sharpness"`
	ISO             int     `json:"iso" yaml:"iso"`
	ExposureSeconds float64 `json:"exposure_seconds" yaml:"exposure_seconds"`
	FrameCount      int     `json:"frame_count" yaml:"frame_count"`
	IntervalSeconds float64 `json:"interval_seconds" yaml:"interval_seconds"`
	VideoSeconds    int     `json:"video_seconds" yaml:"video_seconds"`
	Greyscale       bool    `json:"greyscale" yaml:"greyscale"`
	Raw             bool    `json:"raw" yaml:"raw"`
}

// DefaultSettings returns the baseline capture settings.
func DefaultSettings() Settings {
	return Settings{
		Brightness:      50,
		Contrast:        0,
		Saturation:      0,
		Sharpness:       0,
		ISO:             800,
		ExposureSeconds: 1,
		FrameCount:      1,
		IntervalSeconds: 2,
		VideoSeconds:    10,
		Greyscale:       false,
		Raw:             true,
	}
}

// FromConfig seeds settings from the configured camera defaults.
func FromConfig(cfg *config.Config) Settings {
	s := DefaultSettings()
	if cfg == nil {
		return s
	}
	s.Brightness = cfg.Camera.Brightness
	s.Contrast = cfg.Camera.Contrast
	s.Saturation = cfg.Camera.Saturation
	s.Sharpness = cfg.Camera.Sharpness
	s.ISO = cfg.Camera.ISO
	s.Raw = cfg.Camera.CaptureRaw
	return s
}

// Parse loads settings from JSON. Blank input returns the defaults, and
// partial payloads inherit default values for the fields they omit.
func Parse(raw string) (Settings, error) {
	s := DefaultSettings()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Encode serialises the settings to JSON for queue storage.
func (s Settings) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Normalize clamps count-like fields into usable ranges without failing.
func (s *Settings) Normalize() {
	if s.FrameCount < 1 {
		s.FrameCount = 1
	}
	if s.IntervalSeconds < 0 {
		s.IntervalSeconds = 0
	}
	if s.VideoSeconds < 1 {
		s.VideoSeconds = 1
	}
	if s.ExposureSeconds <= 0 {
		s.ExposureSeconds = 1
	}
}

// Validate ensures the settings are inside the supported camera ranges.
// maxExposureSeconds comes from the capture configuration.
func (s Settings) Validate(maxExposureSeconds int) error {
	if s.Brightness < 0 || s.Brightness > 100 {
		return errors.New("brightness must be between 0 and 100")
	}
	if s.Contrast < -100 || s.Contrast > 100 {
		return errors.New("contrast must be between -100 and 100")
	}
	if s.Saturation < -100 || s.Saturation > 100 {
		return errors.New("saturation must be between -100 and 100")
	}
	if s.Sharpness < 0 || s.Sharpness > 100 {
		return errors.New("sharpness must be between 0 and 100")
	}
	if s.ISO < 100 || s.ISO > 1600 {
		return errors.New("iso must be between 100 and 1600")
	}
	if s.ExposureSeconds <= 0 {
		return errors.New("exposure must be positive")
	}
	if maxExposureSeconds > 0 && s.ExposureSeconds > float64(maxExposureSeconds) {
		return fmt.Errorf("exposure must not exceed %d seconds", maxExposureSeconds)
	}
	if s.FrameCount < 1 {
		return errors.New("frame count must be at least 1")
	}
	if s.IntervalSeconds < 0 {
		return errors.New("interval must not be negative")
	}
	if s.VideoSeconds < 1 {
		return errors.New("video duration must be at least 1 second")
	}
	return nil
}

// LongExposure reports whether the exposure requires the manual shutter path.
func (s Settings) LongExposure() bool {
	return s.ExposureSeconds > 1
}

// Exposure returns the exposure time as a duration.
func (s Settings) Exposure() time.Duration {
	return time.Duration(s.ExposureSeconds * float64(time.Second))
}

// Interval returns the gap between sequence frames as a duration.
func (s Settings) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds * float64(time.Second))
}

// VideoDuration returns the recording length as a duration.
func (s Settings) VideoDuration() time.Duration {
	return time.Duration(s.VideoSeconds) * time.Second
}
