// Package platform wraps the OS-specific hints used while imaging a device.
// Every function here is advisory: callers never depend on the hint taking
// effect, and failures are reported but safe to ignore.
package platform

import "os"

// Preallocate reserves size bytes for f so that a long sequential write does
// not fragment the destination. It is a no-op where fallocate is missing.
func Preallocate(f *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	return preallocate(f, size)
}

// AdviseSequential tells the kernel that f will be read once, front to back.
func AdviseSequential(f *os.File) error {
	return adviseSequential(f)
}
