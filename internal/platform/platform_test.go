package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreallocate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, Preallocate(f, 64*1024))

	// fallocate with mode 0 extends the file; other platforms leave it empty.
	info, err := f.Stat()
	require.NoError(t, err)
	assert.Contains(t, []int64{0, 64 * 1024}, info.Size())
}

func TestPreallocateZeroSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, Preallocate(f, 0))
	info, err := f.Stat()
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestAdviseSequential(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device")
	require.NoError(t, os.WriteFile(path, make([]byte, 8192), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.NoError(t, AdviseSequential(f))
}
