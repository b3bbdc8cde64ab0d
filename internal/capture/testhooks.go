package capture

// SetCameraCheckForTests overrides the camera presence probe during tests.
func SetCameraCheckForTests(fn func() bool) func() {
	previous := cameraPresent
	cameraPresent = fn
	return func() {
		cameraPresent = previous
	}
}

// SetFreeSpaceForTests overrides the free disk space probe during tests.
func SetFreeSpaceForTests(fn func(string) (uint64, error)) func() {
	previous := freeSpace
	freeSpace = fn
	return func() {
		freeSpace = previous
	}
}
