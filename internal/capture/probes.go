package capture

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

var cameraPresent = detectCamera

var freeSpace = availableBytes

// detectCamera reports whether the kernel exposes any video capture node.
func detectCamera() bool {
	matches, err := filepath.Glob("/dev/video*")
	return err == nil && len(matches) > 0
}

func availableBytes(path string) (uint64, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return 0, err
	}
	return fs.Bavail * uint64(fs.Bsize), nil
}
