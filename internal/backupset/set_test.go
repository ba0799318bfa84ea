package backupset_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/blockshot/internal/backupset"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestPaths(t *testing.T) {
	s := backupset.New("/srv/backup", "sdb1-")

	assert.Equal(t, "/srv/backup/sdb1-hash.bin", s.HashTablePath())
	assert.Equal(t, "/srv/backup/sdb1-full.img", s.ImagePath())
	assert.Equal(t, "/srv/backup/sdb1-catalog.db", s.CatalogPath())

	inc := s.Increment(7)
	assert.Equal(t, "sdb1-0007-", inc.Name())
	assert.Equal(t, "/srv/backup/sdb1-0007-data.bin", inc.DataPath())
	assert.Equal(t, "/srv/backup/sdb1-0007-jrnl.json", inc.JournalPath())
	assert.Equal(t, "/srv/backup/sdb1-0007-hash.bin", inc.HashTablePath())
}

func TestEmptyPrefix(t *testing.T) {
	s := backupset.New("/b", "")
	assert.Equal(t, "/b/hash.bin", s.HashTablePath())
	assert.Equal(t, "/b/0012-jrnl.json", s.Increment(12).JournalPath())
}

func TestNextIncrement(t *testing.T) {
	dir := t.TempDir()
	s := backupset.New(dir, "disk-")

	inc, err := s.NextIncrement()
	require.NoError(t, err)
	assert.Equal(t, 0, inc.Seq)

	touch(t, s.Increment(0).JournalPath())
	touch(t, s.Increment(1).JournalPath())
	touch(t, s.Increment(3).JournalPath())

	inc, err = s.NextIncrement()
	require.NoError(t, err)
	assert.Equal(t, 2, inc.Seq, "smallest unused number wins")

	// A hash table without a journal (zero-change run) does not claim the number.
	touch(t, s.Increment(2).HashTablePath())
	inc, err = s.NextIncrement()
	require.NoError(t, err)
	assert.Equal(t, 2, inc.Seq)
}

func TestIncrements(t *testing.T) {
	dir := t.TempDir()
	s := backupset.New(dir, "disk-")

	touch(t, s.HashTablePath())
	touch(t, s.ImagePath())
	touch(t, s.Increment(0).JournalPath())
	touch(t, s.Increment(0).DataPath())
	touch(t, s.Increment(0).HashTablePath())
	touch(t, s.Increment(2).HashTablePath())
	touch(t, s.Increment(10).JournalPath())
	// Other sets and stray files are ignored.
	touch(t, filepath.Join(dir, "other-0001-jrnl.json"))
	touch(t, filepath.Join(dir, "disk-01-jrnl.json"))
	touch(t, filepath.Join(dir, "disk-0004-notes.txt"))

	incs, err := s.Increments()
	require.NoError(t, err)

	var seqs []int
	for _, inc := range incs {
		seqs = append(seqs, inc.Seq)
	}
	assert.Equal(t, []int{0, 2, 10}, seqs)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")

	ok, err := backupset.Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	touch(t, path)
	ok, err = backupset.Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)
}
