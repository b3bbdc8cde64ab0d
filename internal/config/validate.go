package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateSolver(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCamera() error {
	if c.Camera.Brightness < 0 || c.Camera.Brightness > 100 {
		return errors.New("camera.brightness must be between 0 and 100")
	}
	if c.Camera.Contrast < -100 || c.Camera.Contrast > 100 {
		return errors.New("camera.contrast must be between -100 and 100")
	}
	if c.Camera.Saturation < -100 || c.Camera.Saturation > 100 {
		return errors.New("camera.saturation must be between -100 and 100")
	}
	if c.Camera.Sharpness < 0 || c.Camera.Sharpness > 100 {
		return errors.New("camera.sharpness must be between 0 and 100")
	}
	if c.Camera.ISO < 100 || c.Camera.ISO > 1600 {
		return errors.New("camera.iso must be between 100 and 1600")
	}
	return nil
}

func (c *Config) validateCapture() error {
	return ensurePositiveMap(map[string]int{
		"capture.still_timeout":        c.Capture.StillTimeout,
		"capture.video_timeout_slack":  c.Capture.VideoTimeoutSlack,
		"capture.max_exposure_seconds": c.Capture.MaxExposureSeconds,
		"capture.min_free_space_mb":    c.Capture.MinFreeSpaceMB,
	})
}

func (c *Config) validateSolver() error {
	if c.Solver.MinFOV <= 0 {
		return errors.New("solver.min_fov must be positive (degrees)")
	}
	if c.Solver.MaxFOV < c.Solver.MinFOV {
		return errors.New("solver.max_fov must be greater than or equal to solver.min_fov")
	}
	if c.Solver.MaxMagnitude <= 0 {
		return errors.New("solver.max_magnitude must be positive")
	}
	if c.Solver.MatchRadius <= 0 || c.Solver.MatchRadius >= 1 {
		return errors.New("solver.match_radius must be between 0 and 1 (fraction of field of view)")
	}
	if c.Solver.MatchThreshold <= 0 || c.Solver.MatchThreshold >= 1 {
		return errors.New("solver.match_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":     c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":    c.Workflow.ErrorRetryInterval,
		"workflow.camera_monitor_interval": c.Workflow.CameraMonitorInterval,
		"notifications.request_timeout":    c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
