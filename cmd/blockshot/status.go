package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamsammich/blockshot/internal/backupset"
	"github.com/bamsammich/blockshot/internal/hashtable"
	"github.com/bamsammich/blockshot/internal/journal"
	"github.com/bamsammich/blockshot/internal/ui"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the backup set",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			set, err := opts.set()
			if err != nil {
				return err
			}
			if err := printStatus(opts.stdout, set); err != nil {
				return &exitError{code: reportExitCode(opts, err)}
			}
			return nil
		},
	}
}

// reportExitCode logs a failed read-only command and maps it to an exit code.
func reportExitCode(opts *options, err error) int {
	fmt.Fprintf(opts.stderr, "Error: %v\n", err)
	return exitCode(err)
}

func printStatus(w io.Writer, set backupset.Set) error {
	fmt.Fprintf(w, "%s  %s  prefix %q\n", ui.Header("backup set"), set.Dir, set.Prefix)

	blocks, err := hashtable.Stat(set.HashTablePath())
	switch {
	case errors.Is(err, hashtable.ErrNotFound):
		fmt.Fprintf(w, "%s  %s\n", ui.Label("hash table"), ui.Muted("none"))
	case err != nil:
		return err
	default:
		fmt.Fprintf(w, "%s  %s  %s blocks\n", ui.Label("hash table"), set.HashTablePath(), ui.FormatCount(blocks))
	}

	info, err := os.Stat(set.ImagePath())
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintf(w, "%s  %s\n", ui.Label("full image"), ui.Muted("none"))
	case err != nil:
		return fmt.Errorf("stat full image: %w", err)
	default:
		fmt.Fprintf(w, "%s  %s  %s\n", ui.Label("full image"), set.ImagePath(), ui.FormatBytes(info.Size()))
	}

	incs, err := set.Increments()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s  %d\n", ui.Label("increments"), len(incs))
	for _, inc := range incs {
		fmt.Fprintf(w, "  %s  %s\n", inc.Name(), describeIncrement(inc))
	}

	next, err := set.NextIncrement()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s  %04d\n", ui.Label("next increment"), next.Seq)
	return nil
}

func describeIncrement(inc backupset.Increment) string {
	exists, err := backupset.Exists(inc.JournalPath())
	if err != nil {
		return ui.Failed(err.Error())
	}
	if !exists {
		return ui.Muted("no changes (hash table only)")
	}

	doc, err := journal.Read(inc.JournalPath())
	if err != nil {
		return ui.Failed("unreadable journal: " + err.Error())
	}
	if doc.Trailer == nil {
		return ui.Warn(fmt.Sprintf("incomplete (%d records, no trailer)", len(doc.Blocks)))
	}
	return fmt.Sprintf("changed %s  payload %s  created %s",
		ui.FormatCount(doc.Trailer.Count),
		ui.FormatBytes(doc.Trailer.PayloadSize),
		doc.Header.Created.Local().Format("2006-01-02 15:04:05"),
	)
}
