package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir    string `toml:"staging_dir"`
	LibraryDir    string `toml:"library_dir"`
	LogDir        string `toml:"log_dir"`
	CatalogPath   string `toml:"catalog_path"`
	PatternDBPath string `toml:"pattern_db_path"`
	PresetsPath   string `toml:"presets_path"`
	APIBind       string `toml:"api_bind"`
}

// Camera contains the default capture settings applied when a session does not
// override them.
type Camera struct {
	Brightness       int  `toml:"brightness"` // 0..100
	Contrast         int  `toml:"contrast"`   // -100..100
	Saturation       int  `toml:"saturation"` // -100..100
	Sharpness        int  `toml:"sharpness"`  // 0..100
	ISO              int  `toml:"iso"`
	CaptureRaw       bool `toml:"capture_raw"`
	KeepRawOriginals bool `toml:"keep_raw_originals"`
	VideoWidth       int  `toml:"video_width"`
	VideoHeight      int  `toml:"video_height"`
}

// Capture contains subprocess and timing settings for the camera tools.
type Capture struct {
	StillBinary        string `toml:"still_binary"`
	VideoBinary        string `toml:"video_binary"`
	StillTimeout       int    `toml:"still_timeout"`
	VideoTimeoutSlack  int    `toml:"video_timeout_slack"`
	MaxExposureSeconds int    `toml:"max_exposure_seconds"`
	MinFreeSpaceMB     int    `toml:"min_free_space_mb"`
}

// Solver contains plate-solving configuration.
type Solver struct {
	Enabled            bool    `toml:"enabled"`
	Required           bool    `toml:"required"`
	MinFOV             float64 `toml:"min_fov"`
	MaxFOV             float64 `toml:"max_fov"`
	MaxMagnitude       float64 `toml:"max_magnitude"`
	PatternStarsPerFOV int     `toml:"pattern_stars_per_fov"`
	CatalogStarsPerFOV int     `toml:"catalog_stars_per_fov"`
	MatchRadius        float64 `toml:"match_radius"`
	MatchThreshold     float64 `toml:"match_threshold"`
	SolveTimeout       int     `toml:"solve_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Capture        bool   `toml:"capture"`
	Solve          bool   `toml:"solve"`
	Organization   bool   `toml:"organization"`
	Review         bool   `toml:"review"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval     int `toml:"queue_poll_interval"`
	ErrorRetryInterval    int `toml:"error_retry_interval"`
	HeartbeatInterval     int `toml:"heartbeat_interval"`
	HeartbeatTimeout      int `toml:"heartbeat_timeout"`
	CameraMonitorInterval int `toml:"camera_monitor_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for AstroPitography.
//
// Configuration sections by subsystem:
//   - Paths: directories, catalog locations, and API bind address
//   - Camera: default capture settings applied to new sessions
//   - Capture: libcamera binaries, timeouts, and disk headroom
//   - Solver: plate-solving database and matching thresholds
//   - Notifications: ntfy push notification settings
//   - Workflow: daemon polling intervals and timeouts
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Camera        Camera        `toml:"camera"`
	Capture       Capture       `toml:"capture"`
	Solver        Solver        `toml:"solver"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/astropitography/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/astropitography/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("astropitography.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	if dir := filepath.Dir(c.Paths.PatternDBPath); strings.TrimSpace(dir) != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory %q: %w", dir, err)
		}
	}
	return nil
}

// StillBinary returns the still capture executable name.
func (c *Config) StillBinary() string {
	if bin := strings.TrimSpace(c.Capture.StillBinary); bin != "" {
		return bin
	}
	return "libcamera-still"
}

// VideoBinary returns the video capture executable name.
func (c *Config) VideoBinary() string {
	if bin := strings.TrimSpace(c.Capture.VideoBinary); bin != "" {
		return bin
	}
	return "libcamera-vid"
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "astropitography.sock")
}

// QueueDatabasePath returns the session queue database location.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.LogDir, "queue.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultDataDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "astropitography")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.local/share/astropitography"
	}
	return filepath.Join(home, ".local", "share", "astropitography")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
