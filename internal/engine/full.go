package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bamsammich/blockshot/internal/blockio"
	"github.com/bamsammich/blockshot/internal/event"
	"github.com/bamsammich/blockshot/internal/hashtable"
	"github.com/bamsammich/blockshot/internal/platform"
	"github.com/bamsammich/blockshot/internal/stats"
)

// fullWriter appends every block to the image in scan order and records its
// digest. A failed write is counted and skipped; the caller checks the
// written count once the scan is over.
type fullWriter struct {
	w         io.Writer
	table     hashtable.Table
	tablePath string
	events    chan<- event.Event
	stats     *stats.Collector

	written int64
	failed  int64
	bytes   int64
}

func (fw *fullWriter) write(b blockio.Block) error {
	if b.Index < 0 || b.Index >= fw.table.Len() {
		return &hashtable.ConsistencyError{
			Path:     fw.tablePath,
			Expected: fw.table.Len(),
			Actual:   b.Index + 1,
			Detail:   fmt.Sprintf("block %d is past the end of a %d-block device; has the source grown?", b.Index, fw.table.Len()),
		}
	}
	fw.table[b.Index] = b.Hash

	n, err := fw.w.Write(b.Data[:b.Length])
	if err == nil && n != b.Length {
		err = io.ErrShortWrite
	}
	if err != nil {
		fw.failed++
		slog.Warn("failed to write block", "index", b.Index, "error", err)
		emitEvent(fw.events, event.Event{Type: event.BlockFailed, Index: b.Index, Size: int64(b.Length), Error: err})
		fw.stats.AddBlocksFailed(1)
		return nil
	}
	fw.written++
	fw.bytes += int64(n)
	fw.stats.AddBytesWritten(int64(n))
	return nil
}

func (r *run) full(ctx context.Context) Result {
	set := r.cfg.Set
	res := Result{Mode: ModeFull, HashTablePath: set.HashTablePath()}

	img, err := os.OpenFile(set.ImagePath(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		res.Err = fmt.Errorf("create full image: %w", err)
		return res
	}
	defer img.Close()

	if err := platform.Preallocate(img, r.dev.Size()); err != nil {
		slog.Warn("preallocation failed", "path", set.ImagePath(), "error", err)
	}

	fw := &fullWriter{
		w:         img,
		table:     hashtable.New(r.numBlocks),
		tablePath: set.HashTablePath(),
		events:    r.cfg.Events,
		stats:     r.stats,
	}
	sc := r.scanner(ctx)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			res.Err = fmt.Errorf("full backup interrupted: %w", err)
			return res
		}
		b := sc.Block()
		r.countRead(b)
		if err := fw.write(b); err != nil {
			res.Err = err
			return res
		}
	}
	if err := sc.Err(); err != nil {
		res.Err = err
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Err = fmt.Errorf("full backup interrupted: %w", err)
		return res
	}

	res.ChangedBlocks = fw.written
	res.BytesWritten = fw.bytes
	if fw.written != r.numBlocks {
		res.Err = &IncompleteWriteError{
			ImagePath: set.ImagePath(),
			Written:   fw.written,
			Failed:    fw.failed,
			Expected:  r.numBlocks,
		}
		return res
	}

	if err := img.Sync(); err != nil {
		res.Err = fmt.Errorf("sync full image: %w", err)
		return res
	}
	if err := img.Close(); err != nil {
		res.Err = fmt.Errorf("close full image: %w", err)
		return res
	}
	slog.Info("full image written", "path", set.ImagePath(), "blocks", fw.written, "size", stats.FormatBytes(fw.bytes))

	if err := hashtable.Save(fw.table, set.HashTablePath()); err != nil {
		res.Err = err
		return res
	}
	emitEvent(r.cfg.Events, event.Event{Type: event.TableSaved, Path: set.HashTablePath(), Total: r.numBlocks})
	return res
}
