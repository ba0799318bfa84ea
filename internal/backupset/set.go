// Package backupset names the files that make up one backup set: a
// directory plus a filename prefix shared by the canonical hash table, the
// full image, the numbered increments and the run catalog.
package backupset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	hashSuffix    = "hash.bin"
	imageSuffix   = "full.img"
	catalogSuffix = "catalog.db"

	dataSuffix    = "data.bin"
	journalSuffix = "jrnl.json"
)

// Set locates a backup set on disk.
type Set struct {
	Dir    string
	Prefix string
}

// New returns the set rooted at dir with the given filename prefix.
func New(dir, prefix string) Set {
	return Set{Dir: dir, Prefix: prefix}
}

func (s Set) path(suffix string) string {
	return filepath.Join(s.Dir, s.Prefix+suffix)
}

// HashTablePath is the canonical hash table written by the full backup.
func (s Set) HashTablePath() string { return s.path(hashSuffix) }

// ImagePath is the full image written by the full backup.
func (s Set) ImagePath() string { return s.path(imageSuffix) }

// CatalogPath is the run history database.
func (s Set) CatalogPath() string { return s.path(catalogSuffix) }

// Increment names the three files written by one incremental run.
type Increment struct {
	Set Set
	Seq int
}

// Increment returns increment number seq of the set.
func (s Set) Increment(seq int) Increment {
	return Increment{Set: s, Seq: seq}
}

// Name is the zero-padded filename stem shared by the increment's files,
// e.g. "sdb1-0007-".
func (i Increment) Name() string {
	return fmt.Sprintf("%s%04d-", i.Set.Prefix, i.Seq)
}

func (i Increment) path(suffix string) string {
	return filepath.Join(i.Set.Dir, i.Name()+suffix)
}

// DataPath is the payload of changed block bytes.
func (i Increment) DataPath() string { return i.path(dataSuffix) }

// JournalPath is the journal describing the payload.
func (i Increment) JournalPath() string { return i.path(journalSuffix) }

// HashTablePath is the hash table as of this increment.
func (i Increment) HashTablePath() string { return i.path(hashSuffix) }

// NextIncrement returns the smallest increment number whose journal does
// not exist yet.
func (s Set) NextIncrement() (Increment, error) {
	for seq := 0; ; seq++ {
		inc := s.Increment(seq)
		exists, err := Exists(inc.JournalPath())
		if err != nil {
			return Increment{}, err
		}
		if !exists {
			return inc, nil
		}
	}
}

// Increments lists the increments that have a hash table or a journal on
// disk, in sequence order.
func (s Set) Increments() ([]Increment, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read backup dir %s: %w", s.Dir, err)
	}

	seen := make(map[int]bool)
	for _, e := range entries {
		seq, ok := s.parseIncrement(e.Name())
		if ok {
			seen[seq] = true
		}
	}

	out := make([]Increment, 0, len(seen))
	for seq := range seen {
		out = append(out, s.Increment(seq))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out, nil
}

// parseIncrement extracts the sequence number from an increment filename
// belonging to this set.
func (s Set) parseIncrement(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, s.Prefix)
	if !ok {
		return 0, false
	}
	digits, suffix, ok := strings.Cut(rest, "-")
	if !ok || len(digits) < 4 {
		return 0, false
	}
	if suffix != journalSuffix && suffix != hashSuffix {
		return 0, false
	}
	seq, err := strconv.Atoi(digits)
	if err != nil || seq < 0 {
		return 0, false
	}
	// Reject names such as "007-" that would not round-trip.
	if fmt.Sprintf("%04d", seq) != digits {
		return 0, false
	}
	return seq, true
}

// Exists reports whether path exists. Errors other than "not exist" are
// returned so callers never mistake an unreadable file for a missing one.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}
