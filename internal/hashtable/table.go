// Package hashtable persists the per-block digest table of a backup set.
//
// The on-disk format is a flat array of 20-byte SHA-1 records with no header:
// record i lives at offset i*20, and the file length is always
// numBlocks*20. The length is the only consistency check available, so
// Load refuses any file whose length does not match the device.
package hashtable

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/bamsammich/blockshot/internal/blockio"
)

// RecordSize is the number of bytes per block in a hash table file.
const RecordSize = blockio.DigestSize

// ErrNotFound is returned by Load when no table exists at the path.
var ErrNotFound = errors.New("hash table not found")

// ConsistencyError reports a hash table that does not fit the device it is
// being compared against, usually because the device was resized.
type ConsistencyError struct {
	Path     string
	Expected int64 // block count derived from the device
	Actual   int64 // block count found in the table
	Detail   string
}

func (e *ConsistencyError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("hash table %s: %s", e.Path, e.Detail)
	}
	return fmt.Sprintf(
		"hash table %s holds %d blocks but the device has %d; has the source changed size?",
		e.Path, e.Actual, e.Expected,
	)
}

// Table maps block index to digest.
type Table []blockio.Digest

// New returns a zeroed table for n blocks.
func New(n int64) Table {
	return make(Table, n)
}

// Len returns the number of blocks in the table.
func (t Table) Len() int64 { return int64(len(t)) }

// Equal reports whether two tables hold the same digests.
func (t Table) Equal(other Table) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}

// Diff returns the indexes at which t and other differ. Tables of different
// lengths are compared over the shorter one.
func (t Table) Diff(other Table) []int64 {
	var out []int64
	for i := range min(len(t), len(other)) {
		if t[i] != other[i] {
			out = append(out, int64(i))
		}
	}
	return out
}

// Stat returns the number of records in the table file at path without
// reading it. It returns ErrNotFound if the file does not exist.
func Stat(path string) (int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("stat hash table %s: %w", path, err)
	}
	if info.Size()%RecordSize != 0 {
		return 0, &ConsistencyError{
			Path:   path,
			Detail: fmt.Sprintf("length %d is not a multiple of %d", info.Size(), RecordSize),
		}
	}
	return info.Size() / RecordSize, nil
}

// Load reads the table at path and checks that it holds exactly expected
// records. A missing file yields ErrNotFound; a length mismatch yields a
// *ConsistencyError.
func Load(path string, expected int64) (Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open hash table %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat hash table %s: %w", path, err)
	}
	if info.Size() != expected*RecordSize {
		return nil, &ConsistencyError{
			Path:     path,
			Expected: expected,
			Actual:   info.Size() / RecordSize,
		}
	}

	t := New(expected)
	r := bufio.NewReaderSize(f, 1<<20)
	for i := range t {
		if _, err := io.ReadFull(r, t[i][:]); err != nil {
			return nil, fmt.Errorf("read hash table %s record %d: %w", path, i, err)
		}
	}
	return t, nil
}

// Save writes t to path atomically: the records go to a temporary file in
// the same directory which is synced and then renamed over path. A crash
// leaves either the old table or the new one, never a mix.
func Save(t Table, path string) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", base, uuid.New().String()[:8]))

	pending.add(tmpPath)
	defer func() {
		pending.drop(tmpPath)
		_ = os.Remove(tmpPath) // no-op if rename succeeded
	}()

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create tmp %s: %w", tmpPath, err)
	}

	w := bufio.NewWriterSize(f, 1<<20)
	for i := range t {
		if _, err := w.Write(t[i][:]); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", tmpPath, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close tmp %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, path, err)
	}
	return syncDir(dir)
}

// syncDir makes the rename durable. Directories that cannot be opened for
// sync (some network filesystems) are tolerated.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil //nolint:nilerr // best effort
	}
	defer d.Close()
	_ = d.Sync()
	return nil
}
