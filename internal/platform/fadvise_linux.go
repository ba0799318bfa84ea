//go:build linux

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

//nolint:gosec // G115: fd values are small non-negative integers
func adviseSequential(fd *os.File) error {
	return unix.Fadvise(int(fd.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
