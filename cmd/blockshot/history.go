package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bamsammich/blockshot/internal/backupset"
	"github.com/bamsammich/blockshot/internal/catalog"
	"github.com/bamsammich/blockshot/internal/ui"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent backup runs from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := opts.set()
			if err != nil {
				return err
			}
			if err := printHistory(cmd.Context(), opts.stdout, set, limit); err != nil {
				return &exitError{code: reportExitCode(opts, err)}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show (0: all)")
	return cmd
}

func printHistory(ctx context.Context, w io.Writer, set backupset.Set, limit int) error {
	// Opening would create the database; history must not write.
	exists, err := backupset.Exists(set.CatalogPath())
	if err != nil {
		return err
	}
	if !exists {
		return errors.New("no catalog in this backup set (runs are recorded unless --catalog=false)")
	}

	c, err := catalog.Open(ctx, set.CatalogPath(), set.Dir, set.Prefix)
	if err != nil {
		return err
	}
	defer c.Close()

	runs, err := c.List(ctx, limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s  %s  prefix %q  %s\n", ui.Header("runs"), set.Dir, set.Prefix, ui.Muted(c.Path()))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tMODE\tINCREMENT\tSTATUS\tCHANGED\tWRITTEN\tTIME\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Started.Local().Format("2006-01-02 15:04:05"),
			r.Mode,
			increment(r.Sequence),
			r.Status,
			ui.FormatCount(r.ChangedBlocks),
			ui.FormatBytes(r.BytesWritten),
			runDuration(r),
			r.Error,
		)
	}
	return tw.Flush()
}

func increment(seq int) string {
	if seq < 0 {
		return "-"
	}
	return fmt.Sprintf("%04d", seq)
}

func runDuration(r catalog.Run) string {
	if r.Finished.IsZero() || r.Finished.Before(r.Started) {
		return "-"
	}
	return ui.FormatDuration(r.Finished.Sub(r.Started).Round(time.Second))
}
