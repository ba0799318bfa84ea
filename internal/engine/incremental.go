package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bamsammich/blockshot/internal/backupset"
	"github.com/bamsammich/blockshot/internal/blockio"
	"github.com/bamsammich/blockshot/internal/event"
	"github.com/bamsammich/blockshot/internal/hashtable"
	"github.com/bamsammich/blockshot/internal/journal"
	"github.com/bamsammich/blockshot/internal/stats"
)

// differ compares each block against the baseline table. Changed blocks go
// to the increment's payload and journal, which are only created on the
// first change. The table is updated in place for every block.
type differ struct {
	table     hashtable.Table
	tablePath string
	inc       backupset.Increment
	header    journal.Header
	events    chan<- event.Event
	stats     *stats.Collector

	jw      *journal.Writer
	changed int64
	bytes   int64
}

func (d *differ) apply(b blockio.Block) error {
	if b.Index < 0 || b.Index >= d.table.Len() {
		return &hashtable.ConsistencyError{
			Path:     d.tablePath,
			Expected: d.table.Len(),
			Actual:   b.Index + 1,
			Detail:   fmt.Sprintf("block %d is outside the %d-block table; has the source changed size?", b.Index, d.table.Len()),
		}
	}
	if d.table[b.Index] == b.Hash {
		return nil
	}

	if d.jw == nil {
		jw, err := journal.Create(d.inc, d.header)
		if err != nil {
			return err
		}
		d.jw = jw
	}
	if _, err := d.jw.Append(b); err != nil {
		return err
	}
	d.table[b.Index] = b.Hash
	d.changed++
	d.bytes += int64(b.Length)
	d.stats.AddBlocksChanged(1)
	d.stats.AddBytesWritten(int64(b.Length))
	emitEvent(d.events, event.Event{Type: event.BlockChanged, Index: b.Index, Size: int64(b.Length)})
	return nil
}

// abort discards an open journal. The partial payload and journal are left
// behind without a trailer, so verify reports them as incomplete.
func (d *differ) abort() {
	if d.jw != nil {
		d.jw.Abort()
	}
}

func (r *run) incremental(ctx context.Context, baseline hashtable.Table, inc backupset.Increment) Result {
	set := r.cfg.Set
	res := Result{Mode: ModeIncremental, Increment: &inc, HashTablePath: inc.HashTablePath()}

	slog.Info("writing increment", "increment", inc.Name(), "dir", set.Dir)

	d := &differ{
		table:     baseline,
		tablePath: set.HashTablePath(),
		inc:       inc,
		header: journal.Header{
			RunID:      r.id,
			Device:     r.dev.Path(),
			DeviceSize: r.dev.Size(),
			BlockSize:  r.cfg.BlockSize,
			NumBlocks:  r.numBlocks,
			Created:    r.started.UTC(),
		},
		events: r.cfg.Events,
		stats:  r.stats,
	}

	fail := func(err error) Result {
		d.abort()
		res.ChangedBlocks = d.changed
		res.BytesWritten = d.bytes
		res.Err = err
		return res
	}

	var scanned int64
	sc := r.scanner(ctx)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("incremental backup interrupted: %w", err))
		}
		b := sc.Block()
		r.countRead(b)
		if err := d.apply(b); err != nil {
			return fail(err)
		}
		scanned++
	}
	if err := sc.Err(); err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("incremental backup interrupted: %w", err))
	}
	if scanned != r.numBlocks {
		return fail(&hashtable.ConsistencyError{
			Path:     set.HashTablePath(),
			Expected: r.numBlocks,
			Actual:   scanned,
			Detail:   fmt.Sprintf("read %d of %d blocks; has the source shrunk?", scanned, r.numBlocks),
		})
	}

	res.ChangedBlocks = d.changed
	res.BytesWritten = d.bytes
	if d.jw != nil {
		trailer, err := d.jw.Close()
		if err != nil {
			res.Err = err
			return res
		}
		res.JournalPath = inc.JournalPath()
		slog.Debug("journal closed", "path", res.JournalPath, "records", trailer.Count, "payload", trailer.PayloadSize)
	}
	slog.Info(fmt.Sprintf("%d blocks changed", d.changed), "increment", inc.Name(), "written", stats.FormatBytes(d.bytes))

	if err := hashtable.Save(d.table, inc.HashTablePath()); err != nil {
		res.Err = err
		return res
	}
	emitEvent(r.cfg.Events, event.Event{Type: event.TableSaved, Path: inc.HashTablePath(), Total: r.numBlocks})
	return res
}
