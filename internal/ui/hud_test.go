package ui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/blockshot/internal/event"
	"github.com/bamsammich/blockshot/internal/stats"
)

func TestHudPresenterRunStarted(t *testing.T) {
	var out bytes.Buffer
	collector := stats.NewCollector()
	collector.SetTotals(10, 40960)

	p := &hudPresenter{w: &out, stats: collector}

	events := make(chan Event, 10)
	events <- Event{Type: event.RunStarted, Path: "/dev/sdb", Total: 10, TotalSize: 40960}
	events <- Event{Type: event.ModeSelected, Mode: "incremental"}
	close(events)

	err := p.Run(events)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "/dev/sdb")
	assert.Contains(t, output, "40.0 KiB")
	assert.Contains(t, output, "incremental backup")
	assert.Equal(t, "incremental", p.mode)
}

func TestHudPresenterBlockFailed(t *testing.T) {
	var out bytes.Buffer
	collector := stats.NewCollector()
	collector.SetTotals(10, 40960)

	p := &hudPresenter{w: &out, stats: collector}

	events := make(chan Event, 10)
	events <- Event{Type: event.BlockFailed, Index: 1234, Size: 4096, Error: errors.New("input/output error")}
	close(events)

	err := p.Run(events)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "✗")
	assert.Contains(t, output, "block 1,234")
	assert.Contains(t, output, "input/output error")
}

func TestHudPresenterTableSaved(t *testing.T) {
	var out bytes.Buffer
	p := &hudPresenter{w: &out, stats: stats.NewCollector()}

	events := make(chan Event, 10)
	events <- Event{Type: event.TableSaved, Path: "/backup/0003-hash.bin"}
	close(events)

	require.NoError(t, p.Run(events))
	assert.Contains(t, out.String(), "0003-hash.bin")
	assert.Contains(t, out.String(), "✓")
}

func TestHudPresenterSummary(t *testing.T) {
	collector := stats.NewCollector()
	collector.AddBlocksRead(500)
	collector.AddBlocksChanged(12)
	collector.AddBytesWritten(12 * 4096)

	p := &hudPresenter{stats: collector}
	s := p.Summary()
	assert.Contains(t, s, "done ✓")
	assert.Contains(t, s, "blocks 500")
	assert.Contains(t, s, "changed 12")
	assert.Contains(t, s, "written 48.0 KiB")
	assert.NotContains(t, s, "errors")
}

func TestHudPresenterSummaryWithFailures(t *testing.T) {
	collector := stats.NewCollector()
	collector.AddBlocksRead(10)
	collector.AddBlocksFailed(2)

	p := &hudPresenter{stats: collector}
	s := p.Summary()
	assert.Contains(t, s, "done ✗")
	assert.Contains(t, s, "errors 2")
}

func TestHudClearHUDSequence(t *testing.T) {
	var out bytes.Buffer
	p := &hudPresenter{w: &out, stats: stats.NewCollector()}

	p.drawHUD()
	assert.Equal(t, 2, p.hudLines)

	out.Reset()
	p.clearHUD()
	assert.Contains(t, out.String(), "\033[2A")
	assert.Zero(t, p.hudLines)

	out.Reset()
	p.clearHUD()
	assert.Empty(t, out.String(), "second clear is a no-op")
}

func TestHudDrawShowsProgress(t *testing.T) {
	var out bytes.Buffer
	collector := stats.NewCollector()
	collector.SetTotals(10, 40960)
	collector.AddBlocksRead(5)
	collector.AddBytesRead(20480)
	collector.AddBlocksChanged(2)

	p := &hudPresenter{w: &out, stats: collector, mode: "incremental"}
	p.drawHUD()

	output := out.String()
	assert.Contains(t, output, " 50%")
	assert.Contains(t, output, "5 / 10 blocks")
	assert.Contains(t, output, "2 changed")
	assert.Contains(t, output, "▪▪▪▪▪▪▪▪▪▪□")
}

func TestHudDrawFullModeCountsWritten(t *testing.T) {
	var out bytes.Buffer
	collector := stats.NewCollector()
	collector.SetTotals(10, 40960)
	collector.AddBlocksRead(4)
	collector.AddBlocksFailed(1)

	p := &hudPresenter{w: &out, stats: collector, mode: "full"}
	p.drawHUD()
	assert.Contains(t, out.String(), "3 written")
}

func TestHudAlwaysRedrawsAfterFeedLine(t *testing.T) {
	var out bytes.Buffer
	collector := stats.NewCollector()
	collector.SetTotals(10, 40960)

	p := &hudPresenter{w: &out, stats: collector}

	events := make(chan Event, 10)
	events <- Event{Type: event.BlockFailed, Index: 1, Size: 4096}
	events <- Event{Type: event.BlockFailed, Index: 2, Size: 4096}
	close(events)

	err := p.Run(events)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "block 1 ")
	assert.Contains(t, output, "block 2 ")
	// The progress bar character should appear (HUD was drawn).
	assert.Contains(t, output, "□")
}

func TestHudFitsPathToWidth(t *testing.T) {
	var out bytes.Buffer
	p := &hudPresenter{w: &out, stats: stats.NewCollector(), width: 60}

	events := make(chan Event, 2)
	events <- Event{Type: event.TableSaved, Path: "/srv/backup/very/deep/directory/tree/sdb1-0042-hash.bin"}
	close(events)

	require.NoError(t, p.Run(events))
	assert.Contains(t, out.String(), "...")
	assert.Contains(t, out.String(), "0042-hash.bin")
	assert.NotContains(t, out.String(), "/srv/backup/very")
}
