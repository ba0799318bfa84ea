package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/blockshot/internal/backupset"
	"github.com/bamsammich/blockshot/internal/hashtable"
	"github.com/bamsammich/blockshot/internal/journal"
	"github.com/bamsammich/blockshot/internal/stats"
)

func TestDiffer_LazyJournal(t *testing.T) {
	set := backupset.New(t.TempDir(), "")
	inc := set.Increment(0)

	table := hashtable.New(3)
	blocks := []int64{0, 1, 2}
	for _, i := range blocks {
		table[i] = testBlock(i, byte(i+1), 32).Hash
	}

	d := &differ{table: table, inc: inc, stats: stats.NewCollector()}
	for _, i := range blocks {
		require.NoError(t, d.apply(testBlock(i, byte(i+1), 32)))
	}
	assert.Nil(t, d.jw)
	assert.NoFileExists(t, inc.JournalPath())

	require.NoError(t, d.apply(testBlock(1, 0x7F, 32)))
	require.NotNil(t, d.jw)
	assert.Equal(t, int64(1), d.changed)
	assert.Equal(t, testBlock(1, 0x7F, 32).Hash, d.table[1])

	_, err := d.jw.Close()
	require.NoError(t, err)

	doc, err := journal.Read(inc.JournalPath())
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, int64(1), doc.Blocks[0].Index)
}

func TestDiffer_IndexOutsideTable(t *testing.T) {
	set := backupset.New(t.TempDir(), "")
	d := &differ{
		table:     hashtable.New(2),
		tablePath: filepath.Join(set.Dir, "hash.bin"),
		inc:       set.Increment(0),
		stats:     stats.NewCollector(),
	}

	err := d.apply(testBlock(5, 1, 8))
	var ce *hashtable.ConsistencyError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "outside the 2-block table")
	assert.NoFileExists(t, set.Increment(0).JournalPath())
}
