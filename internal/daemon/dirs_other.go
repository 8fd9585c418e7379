//go:build windows

package daemon

// sameDevice is not checked on Windows; moves fall back to copy on error.
func sameDevice(DirConfig) (bool, error) { return true, nil }
