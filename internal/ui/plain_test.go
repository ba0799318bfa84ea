package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/blockshot/internal/event"
	"github.com/bamsammich/blockshot/internal/stats"
)

func TestPlainPresenterMilestones(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	collector := stats.NewCollector()

	p := &plainPresenter{w: &out, errW: &errOut, stats: collector}

	events := make(chan Event, 10)
	events <- Event{Type: event.RunStarted, Path: "/dev/sdb", Total: 10, TotalSize: 40960}
	events <- Event{Type: event.ModeSelected, Mode: "full"}
	events <- Event{Type: event.TableSaved, Path: "/backup/hash.bin"}
	close(events)

	err := p.Run(events)
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "/dev/sdb")
	assert.Contains(t, lines[0], "10 blocks")
	assert.Equal(t, "mode: full", lines[1])
	assert.Equal(t, "saved: /backup/hash.bin", lines[2])
	assert.Empty(t, errOut.String())
}

func TestPlainPresenterBlockFailed(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	collector := stats.NewCollector()

	p := &plainPresenter{w: &out, errW: &errOut, stats: collector}

	events := make(chan Event, 5)
	events <- Event{Type: event.BlockFailed, Index: 7, Size: 512, Error: assert.AnError}
	close(events)

	err := p.Run(events)
	assert.NoError(t, err)

	assert.Contains(t, out.String(), "block 7")
	assert.Contains(t, out.String(), assert.AnError.Error())
}

func TestPlainPresenterProgress(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	collector := stats.NewCollector()
	collector.AddBlocksChanged(3)

	p := &plainPresenter{w: &out, errW: &errOut, stats: collector}

	events := make(chan Event, 5)
	events <- Event{Type: event.ScanProgress, Size: 1024, TotalSize: 4096}
	events <- Event{Type: event.ScanProgress, Size: 4096, TotalSize: 4096}
	close(events)

	err := p.Run(events)
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(errOut.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "progress: 25%")
	assert.Contains(t, lines[0], "3 changed")
	assert.Contains(t, lines[1], "progress: 100%")
	assert.Empty(t, out.String())
}

func TestPlainPresenterNoProgress(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer

	p := &plainPresenter{w: &out, errW: &errOut, stats: stats.NewCollector(), noProgress: true}

	events := make(chan Event, 5)
	events <- Event{Type: event.ScanProgress, Size: 1024, TotalSize: 4096}
	close(events)

	assert.NoError(t, p.Run(events))
	assert.Empty(t, errOut.String())
}

func TestPlainPresenterSummary(t *testing.T) {
	collector := stats.NewCollector()
	collector.AddBlocksRead(100)
	collector.AddBytesRead(100 * 4096)

	p := &plainPresenter{stats: collector}
	s := p.Summary()
	assert.Contains(t, s, "blocks 100")
	assert.Contains(t, s, "changed 0")
}

func TestNewPresenter(t *testing.T) {
	collector := stats.NewCollector()

	_, ok := NewPresenter(Config{Stats: collector, Quiet: true}).(*quietPresenter)
	assert.True(t, ok)

	_, ok = NewPresenter(Config{Stats: collector}).(*plainPresenter)
	assert.True(t, ok)

	_, ok = NewPresenter(Config{Stats: collector, IsTTY: true}).(*hudPresenter)
	assert.True(t, ok)

	_, ok = NewPresenter(Config{Stats: collector, IsTTY: true, NoProgress: true}).(*plainPresenter)
	assert.True(t, ok)
}

func TestQuietPresenter(t *testing.T) {
	p := NewPresenter(Config{Quiet: true})
	events := make(chan Event, 2)
	events <- Event{Type: event.BlockChanged}
	close(events)
	assert.NoError(t, p.Run(events))
	assert.Empty(t, p.Summary())
}
