package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamsammich/blockshot/internal/backupset"
	"github.com/bamsammich/blockshot/internal/blockio"
	"github.com/bamsammich/blockshot/internal/hashtable"
	"github.com/bamsammich/blockshot/internal/journal"
	"github.com/bamsammich/blockshot/internal/ui"
)

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check increment payloads against their journals (read-only)",
		Long: `verify re-hashes every increment payload with BLAKE3 and compares its size
and checksum with the journal trailer. It also checks that every hash table
in the set has the same number of blocks as the canonical one, and that the
full image matches that block count at the configured block size.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			set, err := opts.set()
			if err != nil {
				return err
			}
			failures, err := verifySet(opts.stdout, set, opts.blockSizeKB*1024)
			if err != nil {
				return &exitError{code: reportExitCode(opts, err)}
			}
			if failures > 0 {
				fmt.Fprintf(opts.stderr, "%d problem(s) found\n", failures)
				return &exitError{code: exitConsistency}
			}
			return nil
		},
	}
}

// verifySet prints one line per checked item and returns the number of
// failed checks. The error is reserved for problems that stop verification.
func verifySet(w io.Writer, set backupset.Set, blockSize int) (int, error) {
	blocks, err := hashtable.Stat(set.HashTablePath())
	if err != nil {
		return 0, err
	}
	failures := 0
	report := func(name string, problem error) {
		if problem != nil {
			failures++
			fmt.Fprintf(w, "%s  %s  %v\n", name, ui.Failed("FAILED"), problem)
			return
		}
		fmt.Fprintf(w, "%s  %s\n", name, ui.OK("ok"))
	}

	report(set.Prefix+"full.img", checkImage(set, blocks, blockSize))

	incs, err := set.Increments()
	if err != nil {
		return failures, err
	}
	for _, inc := range incs {
		report(inc.Name(), checkIncrement(inc, blocks))
	}
	return failures, nil
}

func checkImage(set backupset.Set, blocks int64, blockSize int) error {
	info, err := os.Stat(set.ImagePath())
	if err != nil {
		return err
	}
	if blockSize <= 0 {
		return nil
	}
	if n := blockio.NumBlocks(info.Size(), blockSize); n != blocks {
		return fmt.Errorf("image holds %d blocks of %d bytes but the hash table has %d", n, blockSize, blocks)
	}
	return nil
}

func checkIncrement(inc backupset.Increment, blocks int64) error {
	n, err := hashtable.Stat(inc.HashTablePath())
	if errors.Is(err, hashtable.ErrNotFound) {
		return errors.New("hash table missing; the run did not finish")
	}
	if err != nil {
		return err
	}
	if n != blocks {
		return fmt.Errorf("hash table has %d blocks, canonical table has %d", n, blocks)
	}

	exists, err := backupset.Exists(inc.JournalPath())
	if err != nil || !exists {
		return err
	}
	doc, err := journal.Verify(inc)
	if err != nil {
		return err
	}
	if doc.Header.NumBlocks != blocks {
		return fmt.Errorf("journal was written for %d blocks, canonical table has %d", doc.Header.NumBlocks, blocks)
	}
	return nil
}
