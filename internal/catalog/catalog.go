// Package catalog keeps a SQLite history of backup runs next to the backup
// set. The catalog is bookkeeping only: the hash tables, image and
// increments on disk stay authoritative, and a missing catalog never blocks
// a run.
package catalog

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"
)

// Status values stored for a run.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one row of the catalog.
type Run struct {
	ID            string
	Mode          string
	Sequence      int // increment number; -1 for full backups
	Device        string
	DeviceSize    int64
	BlockSize     int
	NumBlocks     int64
	Started       time.Time
	Finished      time.Time
	ChangedBlocks int64
	BytesWritten  int64
	Status        string
	Error         string
}

// Catalog is an open run history database.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the catalog at path for the backup set identified
// by dir and prefix. A catalog created for another set is rejected.
func Open(ctx context.Context, path, dir, prefix string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	c := &Catalog{db: db, path: path}
	if err := c.init(ctx, SetID(dir, prefix)); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) init(ctx context.Context, setID string) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			mode           TEXT NOT NULL,
			sequence       INTEGER NOT NULL,
			device         TEXT NOT NULL,
			device_size    INTEGER NOT NULL,
			block_size     INTEGER NOT NULL,
			num_blocks     INTEGER NOT NULL,
			started        INTEGER NOT NULL,
			finished       INTEGER NOT NULL DEFAULT 0,
			changed_blocks INTEGER NOT NULL DEFAULT 0,
			bytes_written  INTEGER NOT NULL DEFAULT 0,
			status         TEXT NOT NULL,
			error          TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var stored string
	err = c.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'set_id'").Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := c.db.ExecContext(ctx,
			"INSERT INTO meta (key, value) VALUES ('set_id', ?)", setID); err != nil {
			return fmt.Errorf("store meta: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read meta: %w", err)
	case stored != setID:
		return fmt.Errorf("catalog %s belongs to another backup set (%s, want %s)", c.path, stored, setID)
	}
	return nil
}

// Begin records a run as started.
func (c *Catalog) Begin(ctx context.Context, r Run) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO runs (id, mode, sequence, device, device_size, block_size, num_blocks, started, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Mode, r.Sequence, r.Device, r.DeviceSize, r.BlockSize, r.NumBlocks,
		r.Started.UnixNano(), StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// Finish records the outcome of a run started with Begin.
func (c *Catalog) Finish(ctx context.Context, r Run) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE runs SET finished = ?, changed_blocks = ?, bytes_written = ?, status = ?, error = ?
		WHERE id = ?`,
		r.Finished.UnixNano(), r.ChangedBlocks, r.BytesWritten, r.Status, r.Error, r.ID,
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record run finish: unknown run %s", r.ID)
	}
	return nil
}

// List returns the most recent runs, newest first. limit <= 0 returns all.
func (c *Catalog) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, mode, sequence, device, device_size, block_size, num_blocks,
		       started, finished, changed_blocks, bytes_written, status, error
		FROM runs ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(
			&r.ID, &r.Mode, &r.Sequence, &r.Device, &r.DeviceSize, &r.BlockSize, &r.NumBlocks,
			&started, &finished, &r.ChangedBlocks, &r.BytesWritten, &r.Status, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = time.Unix(0, started)
		if finished != 0 {
			r.Finished = time.Unix(0, finished)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the path to the catalog database file.
func (c *Catalog) Path() string {
	return c.path
}

// SetID derives a stable identifier for a backup set from its directory and
// filename prefix.
func SetID(dir, prefix string) string {
	h := blake3.New()
	h.Write([]byte(dir))
	h.Write([]byte{0})
	h.Write([]byte(prefix))
	digest := h.Sum(nil)
	return hex.EncodeToString(digest[:8])
}
