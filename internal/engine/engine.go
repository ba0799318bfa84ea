package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/bamsammich/blockshot/internal/backupset"
	"github.com/bamsammich/blockshot/internal/blockio"
	"github.com/bamsammich/blockshot/internal/catalog"
	"github.com/bamsammich/blockshot/internal/event"
	"github.com/bamsammich/blockshot/internal/hashtable"
	"github.com/bamsammich/blockshot/internal/stats"
)

// Mode is the kind of backup a run performs.
type Mode int

const (
	ModeFull Mode = iota + 1
	ModeIncremental
)

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeIncremental:
		return "incremental"
	default:
		return "unknown"
	}
}

// Recorder keeps a history of runs. It is opened only once the probe has
// decided that the run may write to the backup set.
type Recorder interface {
	Begin(ctx context.Context, r catalog.Run) error
	Finish(ctx context.Context, r catalog.Run) error
	Close() error
}

// Config describes a backup run.
type Config struct {
	Device           string
	BlockSize        int // bytes
	Set              backupset.Set
	ProgressInterval time.Duration // <= 0 reports only at the end of the scan
	BWLimit          int64         // device read limit in bytes/sec; 0 = unlimited
	Events           chan<- event.Event
	Stats            *stats.Collector
	OpenRecorder     func(ctx context.Context) (Recorder, error)
}

// Validate checks the settings before any I/O happens.
func (c Config) Validate() error {
	switch {
	case c.Device == "":
		return errors.New("no device configured")
	case c.BlockSize <= 0:
		return fmt.Errorf("invalid block size %d", c.BlockSize)
	case c.Set.Dir == "":
		return errors.New("no backup directory configured")
	case c.BWLimit < 0:
		return fmt.Errorf("invalid bandwidth limit %d", c.BWLimit)
	}
	return nil
}

// Result is the outcome of a backup run.
type Result struct {
	RunID         string
	Mode          Mode
	Increment     *backupset.Increment // nil for full backups
	Blocks        int64
	ChangedBlocks int64
	BytesWritten  int64
	HashTablePath string
	JournalPath   string // empty when the run wrote no journal
	Stats         stats.Snapshot
	Err           error
}

// run carries the state shared by the full and incremental paths.
type run struct {
	cfg       Config
	dev       *blockio.Device
	numBlocks int64
	stats     *stats.Collector
	id        string
	started   time.Time
}

// Run executes one backup, blocking until complete. It probes the backup set,
// then either writes a full image or an increment.
func Run(ctx context.Context, cfg Config) Result {
	if err := cfg.Validate(); err != nil {
		return Result{Err: err}
	}

	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}

	dev, err := blockio.OpenDevice(cfg.Device)
	if err != nil {
		return Result{Err: err}
	}
	defer dev.Close()

	r := &run{
		cfg:       cfg,
		dev:       dev,
		numBlocks: dev.NumBlocks(cfg.BlockSize),
		stats:     collector,
		id:        uuid.New().String(),
		started:   time.Now(),
	}
	collector.SetTotals(r.numBlocks, dev.Size())

	slog.Info("source opened",
		"device", dev.Path(),
		"size", stats.FormatBytes(dev.Size()),
		"blocks", r.numBlocks,
		"block_size", cfg.BlockSize,
	)
	emitEvent(cfg.Events, event.Event{
		Type:      event.RunStarted,
		Path:      dev.Path(),
		Total:     r.numBlocks,
		TotalSize: dev.Size(),
	})

	mode, baseline, err := probe(cfg.Set, r.numBlocks)
	if err != nil {
		return r.result(Result{Err: err})
	}
	emitEvent(cfg.Events, event.Event{Type: event.ModeSelected, Mode: mode.String()})

	var inc backupset.Increment
	seq := -1
	if mode == ModeIncremental {
		inc, err = cfg.Set.NextIncrement()
		if err != nil {
			return r.result(Result{Mode: mode, Err: err})
		}
		seq = inc.Seq
	} else if err := os.MkdirAll(cfg.Set.Dir, 0o755); err != nil {
		return r.result(Result{Mode: mode, Err: fmt.Errorf("create backup dir: %w", err)})
	}

	rec := r.openRecorder(ctx, mode, seq)
	if rec != nil {
		defer rec.Close()
	}

	var res Result
	if mode == ModeFull {
		res = r.full(ctx)
	} else {
		res = r.incremental(ctx, baseline, inc)
	}
	res = r.result(res)

	r.finishRecorder(ctx, rec, res)
	emitEvent(cfg.Events, event.Event{
		Type:  event.RunCompleted,
		Mode:  mode.String(),
		Size:  res.BytesWritten,
		Total: res.ChangedBlocks,
		Error: res.Err,
	})
	return res
}

// probe decides the run mode from what the backup set already holds.
func probe(set backupset.Set, numBlocks int64) (Mode, hashtable.Table, error) {
	baseline, err := hashtable.Load(set.HashTablePath(), numBlocks)
	switch {
	case err == nil:
		slog.Info("hash table found, running incremental backup", "path", set.HashTablePath())
		return ModeIncremental, baseline, nil
	case !errors.Is(err, hashtable.ErrNotFound):
		return 0, nil, err
	}

	slog.Info("hash table does not exist", "path", set.HashTablePath())
	exists, err := backupset.Exists(set.ImagePath())
	if err != nil {
		return 0, nil, err
	}
	if exists {
		return 0, nil, &PreconditionError{
			ImagePath:     set.ImagePath(),
			HashTablePath: set.HashTablePath(),
		}
	}
	slog.Info("full image does not exist, creating a new one", "path", set.ImagePath())
	return ModeFull, nil, nil
}

// scanner builds the block scanner over the device, throttled if configured.
func (r *run) scanner(ctx context.Context) *blockio.Scanner {
	var src io.Reader = r.dev
	if r.cfg.BWLimit > 0 {
		src = blockio.NewRateLimitedReader(ctx, src, blockio.NewBWLimiter(r.cfg.BWLimit))
	}
	return blockio.NewScanner(src, r.cfg.BlockSize,
		blockio.WithProgress(r.cfg.ProgressInterval, r.dev.Size(), r.onProgress),
	)
}

func (r *run) onProgress(p blockio.Progress) {
	slog.Debug("scan progress",
		"read", p.BytesRead,
		"size", p.DeviceSize,
		"elapsed", p.Elapsed.Round(time.Millisecond),
	)
	emitEvent(r.cfg.Events, event.Event{
		Type:      event.ScanProgress,
		Size:      p.BytesRead,
		TotalSize: p.DeviceSize,
		Total:     r.numBlocks,
		Elapsed:   p.Elapsed,
	})
}

func (r *run) countRead(b blockio.Block) {
	r.stats.AddBlocksRead(1)
	r.stats.AddBytesRead(int64(b.Length))
}

func (r *run) result(res Result) Result {
	res.RunID = r.id
	res.Blocks = r.numBlocks
	res.Stats = r.stats.Snapshot()
	return res
}

func (r *run) openRecorder(ctx context.Context, mode Mode, seq int) Recorder {
	if r.cfg.OpenRecorder == nil {
		return nil
	}
	rec, err := r.cfg.OpenRecorder(ctx)
	if err != nil {
		slog.Warn("run catalog unavailable", "error", err)
		return nil
	}
	err = rec.Begin(ctx, catalog.Run{
		ID:         r.id,
		Mode:       mode.String(),
		Sequence:   seq,
		Device:     r.dev.Path(),
		DeviceSize: r.dev.Size(),
		BlockSize:  r.cfg.BlockSize,
		NumBlocks:  r.numBlocks,
		Started:    r.started,
	})
	if err != nil {
		slog.Warn("run catalog unavailable", "error", err)
		rec.Close()
		return nil
	}
	return rec
}

func (r *run) finishRecorder(ctx context.Context, rec Recorder, res Result) {
	if rec == nil {
		return
	}
	row := catalog.Run{
		ID:            r.id,
		Finished:      time.Now(),
		ChangedBlocks: res.ChangedBlocks,
		BytesWritten:  res.BytesWritten,
		Status:        catalog.StatusSucceeded,
	}
	if res.Err != nil {
		row.Status = catalog.StatusFailed
		row.Error = res.Err.Error()
	}
	// An interrupted run is still recorded as failed.
	if err := rec.Finish(context.WithoutCancel(ctx), row); err != nil {
		slog.Warn("failed to record run outcome", "error", err)
	}
}
