package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"astropitography/internal/config"
)

// CheckNtfyFromConfig evaluates ntfy status from config and connectivity.
func CheckNtfyFromConfig(cfg *config.Config) Result {
	const name = "Ntfy"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	check := CheckNtfy(context.Background(), cfg.Notifications.NtfyTopic)
	if check.Passed {
		return Result{Name: name, Passed: true, Detail: check.Detail}
	}
	return Result{Name: name, Detail: check.Detail}
}

// CameraProbe reports the current camera detection snapshot.
type CameraProbe struct {
	Detected bool
	Device   string
	Name     string
}

// ProbeCamera scans /dev/video* and reads the sysfs device name for the
// first node found.
func ProbeCamera() CameraProbe {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil || len(matches) == 0 {
		return CameraProbe{}
	}
	sort.Strings(matches)
	device := matches[0]
	return CameraProbe{
		Detected: true,
		Device:   device,
		Name:     sysfsCameraName(device),
	}
}

func sysfsCameraName(device string) string {
	node := strings.TrimPrefix(device, "/dev/")
	data, err := os.ReadFile(filepath.Join("/sys/class/video4linux", node, "name"))
	if err != nil {
		return "Unknown"
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "Unknown"
	}
	return name
}

// CameraDetail renders a display-friendly summary for status UIs.
func (p CameraProbe) CameraDetail() string {
	if !p.Detected {
		return "No camera detected"
	}
	return fmt.Sprintf("camera '%s' on %s", p.Name, p.Device)
}
