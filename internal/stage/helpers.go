package stage

import (
	"astropitography/internal/camera"
	"astropitography/internal/services"
)

// ParseSettings parses a session settings payload.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func ParseSettings(raw string) (camera.Settings, error) {
	settings, err := camera.Parse(raw)
	if err != nil {
		return camera.Settings{}, services.Wrap(
			services.ErrValidation, "stage", "parse settings",
			"Capture settings missing or invalid; re-enqueue the session", err)
	}
	return settings, nil
}
