package blockio

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bamsammich/blockshot/internal/platform"
)

// Device is a read-only backup source whose length is fixed when it is opened.
type Device struct {
	f    *os.File
	path string
	size int64
}

// OpenDevice opens path read-only and measures its size by seeking to the end,
// which works for regular image files and block devices alike.
func OpenDevice(path string) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", path, err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("measure device %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("rewind device %s: %w", path, err)
	}

	if err := platform.AdviseSequential(f); err != nil {
		slog.Debug("sequential read hint not applied", "path", path, "error", err)
	}

	return &Device{f: f, path: path, size: size}, nil
}

// Read implements io.Reader over the device contents.
func (d *Device) Read(p []byte) (int, error) { return d.f.Read(p) }

// Close releases the device handle.
func (d *Device) Close() error { return d.f.Close() }

// Path returns the path the device was opened from.
func (d *Device) Path() string { return d.path }

// Size returns the device length in bytes as measured at open time.
func (d *Device) Size() int64 { return d.size }

// NumBlocks returns how many blocks of blockSize cover the device.
func (d *Device) NumBlocks(blockSize int) int64 {
	return NumBlocks(d.size, blockSize)
}

// NumBlocks returns ceil(size / blockSize).
func NumBlocks(size int64, blockSize int) int64 {
	bs := int64(blockSize)
	n := size / bs
	if size%bs > 0 {
		n++
	}
	return n
}
