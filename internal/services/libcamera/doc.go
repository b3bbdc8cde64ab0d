// Package libcamera wraps the libcamera-still and libcamera-vid apps for
// headless capture: argument mapping from camera settings, long exposure
// shutter control, sequence pacing, and frame progress parsed from the
// subprocess stderr stream.
package libcamera
