// Package capture orchestrates the libcamera capture stage for queued
// sessions.
//
// The handler validates requested camera settings, checks that a camera and
// enough staging disk space are available, then drives libcamera-still or
// libcamera-vid through the services/libcamera client. Frame-by-frame progress
// streams back into the queue store so the CLI can show live status, and
// captured frame paths (or the video path) are recorded on the item for the
// downstream conversion, solving, and organizing stages.
//
// Sessions requesting greyscale output are rewritten after capture: the JPEG
// image data is re-encoded as luminance while the appended raw sensor block is
// preserved so DNG extraction still works.
//
// Centralize new capture behaviours here so the workflow manager interacts
// with a single, well-tested abstraction.
package capture
