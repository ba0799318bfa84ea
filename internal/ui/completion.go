package ui

import (
	"fmt"

	"github.com/bamsammich/blockshot/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  blocks 10  changed 1  written 4.0 KiB  avg 120 MB/s  time 3s
func CompletionSummary(snap stats.Snapshot) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesRead) / snap.Elapsed.Seconds()
	}

	icon := "✓"
	if snap.BlocksFailed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  blocks %s  changed %s  written %s  avg %s  time %s",
		icon,
		FormatCount(snap.BlocksRead),
		FormatCount(snap.BlocksChanged),
		FormatBytes(snap.BytesWritten),
		FormatRate(avgSpeed),
		FormatDuration(snap.Elapsed),
	)
	if snap.BlocksFailed > 0 {
		base += fmt.Sprintf("  errors %d", snap.BlocksFailed)
	}
	return base
}
