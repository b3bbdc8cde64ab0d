package config

import "path/filepath"

const (
	defaultStagingDir         = "~/.local/share/astropitography/staging"
	defaultLibraryDir         = "~/astropitography"
	defaultLogDir             = "~/.local/share/astropitography/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultAPIBind            = "127.0.0.1:7770"
	defaultStillBinary        = "libcamera-still"
	defaultVideoBinary        = "libcamera-vid"
	defaultStillTimeout       = 120
	defaultVideoTimeoutSlack  = 30
	defaultMaxExposureSeconds = 239
	defaultMinFreeSpaceMB     = 512
	defaultBrightness         = 50
	defaultISO                = 800
	defaultVideoWidth         = 3296
	defaultVideoHeight        = 2464
	defaultSolverMinFOV       = 10.0
	defaultSolverMaxFOV       = 30.0
	defaultSolverMaxMagnitude = 6.5
	defaultPatternStarsPerFOV = 10
	defaultCatalogStarsPerFOV = 20
	defaultMatchRadius        = 0.01
	defaultMatchThreshold     = 1e-9
	defaultSolveTimeout       = 60
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120

	defaultCameraMonitorInterval = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Paths: Paths{
			StagingDir:    defaultStagingDir,
			LibraryDir:    defaultLibraryDir,
			LogDir:        defaultLogDir,
			CatalogPath:   filepath.Join(dataDir, "bsc5.bin"),
			PatternDBPath: filepath.Join(dataDir, "patterns.db"),
			PresetsPath:   "~/.config/astropitography/presets.yaml",
			APIBind:       defaultAPIBind,
		},
		Camera: Camera{
			Brightness:       defaultBrightness,
			Contrast:         0,
			Saturation:       0,
			Sharpness:        0,
			ISO:              defaultISO,
			CaptureRaw:       true,
			KeepRawOriginals: true,
			VideoWidth:       defaultVideoWidth,
			VideoHeight:      defaultVideoHeight,
		},
		Capture: Capture{
			StillBinary:        defaultStillBinary,
			VideoBinary:        defaultVideoBinary,
			StillTimeout:       defaultStillTimeout,
			VideoTimeoutSlack:  defaultVideoTimeoutSlack,
			MaxExposureSeconds: defaultMaxExposureSeconds,
			MinFreeSpaceMB:     defaultMinFreeSpaceMB,
		},
		Solver: Solver{
			Enabled:            true,
			MinFOV:             defaultSolverMinFOV,
			MaxFOV:             defaultSolverMaxFOV,
			MaxMagnitude:       defaultSolverMaxMagnitude,
			PatternStarsPerFOV: defaultPatternStarsPerFOV,
			CatalogStarsPerFOV: defaultCatalogStarsPerFOV,
			MatchRadius:        defaultMatchRadius,
			MatchThreshold:     defaultMatchThreshold,
			SolveTimeout:       defaultSolveTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Capture:        true,
			Solve:          true,
			Organization:   true,
			Review:         true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:     5,
			ErrorRetryInterval:    10,
			HeartbeatInterval:     defaultHeartbeatInterval,
			HeartbeatTimeout:      defaultHeartbeatTimeout,
			CameraMonitorInterval: defaultCameraMonitorInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
