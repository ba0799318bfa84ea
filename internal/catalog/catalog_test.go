package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T, dir string) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), filepath.Join(dir, "catalog.db"), dir, "t-")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestBeginFinishList(t *testing.T) {
	ctx := context.Background()
	c := openTest(t, t.TempDir())

	start := time.Unix(1_700_000_000, 0)
	full := Run{
		ID: "run-full", Mode: "full", Sequence: -1, Device: "/dev/sdb",
		DeviceSize: 40960, BlockSize: 4096, NumBlocks: 10, Started: start,
	}
	require.NoError(t, c.Begin(ctx, full))

	full.Finished = start.Add(time.Minute)
	full.BytesWritten = 40960
	full.Status = StatusSucceeded
	require.NoError(t, c.Finish(ctx, full))

	inc := Run{
		ID: "run-inc", Mode: "incremental", Sequence: 0, Device: "/dev/sdb",
		DeviceSize: 40960, BlockSize: 4096, NumBlocks: 10, Started: start.Add(time.Hour),
	}
	require.NoError(t, c.Begin(ctx, inc))

	runs, err := c.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first; the unfinished run is still marked running.
	assert.Equal(t, "run-inc", runs[0].ID)
	assert.Equal(t, StatusRunning, runs[0].Status)
	assert.True(t, runs[0].Finished.IsZero())
	assert.Equal(t, 0, runs[0].Sequence)

	assert.Equal(t, "run-full", runs[1].ID)
	assert.Equal(t, StatusSucceeded, runs[1].Status)
	assert.Equal(t, int64(40960), runs[1].BytesWritten)
	assert.Equal(t, -1, runs[1].Sequence)
	assert.True(t, runs[1].Started.Equal(start))
	assert.True(t, runs[1].Finished.Equal(start.Add(time.Minute)))

	limited, err := c.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFinishUnknownRun(t *testing.T) {
	c := openTest(t, t.TempDir())
	err := c.Finish(context.Background(), Run{ID: "missing", Status: StatusFailed})
	assert.Error(t, err)
}

func TestReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")

	c, err := Open(ctx, path, dir, "t-")
	require.NoError(t, err)
	require.NoError(t, c.Begin(ctx, Run{ID: "a", Mode: "full", Sequence: -1, Started: time.Now()}))
	require.NoError(t, c.Close())

	c, err = Open(ctx, path, dir, "t-")
	require.NoError(t, err)
	defer c.Close()
	runs, err := c.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpenRejectsOtherSet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")

	c, err := Open(ctx, path, dir, "a-")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = Open(ctx, path, dir, "b-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another backup set")
}

func TestSetID(t *testing.T) {
	id1 := SetID("/srv/backup", "sdb-")
	id2 := SetID("/srv/backup", "sdb-")
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 16)

	assert.NotEqual(t, id1, SetID("/srv/backup", "sdc-"))
	// The separator keeps "ab"+"c" distinct from "a"+"bc".
	assert.NotEqual(t, SetID("ab", "c"), SetID("a", "bc"))
}
