package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/blockshot/internal/event"
	"github.com/bamsammich/blockshot/internal/stats"
)

// plainPresenter prints run milestones to stdout and one progress line per
// scan observation to stderr. It never redraws, so it suits pipes and logs.
type plainPresenter struct {
	w          io.Writer
	errW       io.Writer
	stats      stats.ReadTicker
	noProgress bool
}

func (p *plainPresenter) Run(events <-chan Event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case event.RunStarted:
		fmt.Fprintf(p.w, "source: %s  %s  %s blocks\n", ev.Path, FormatBytes(ev.TotalSize), FormatCount(ev.Total))
	case event.ModeSelected:
		fmt.Fprintf(p.w, "mode: %s\n", ev.Mode)
	case event.ScanProgress:
		if !p.noProgress {
			p.printProgress(ev)
		}
	case event.BlockFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "block %d  %s  %s\n", ev.Index, FormatBytes(ev.Size), errMsg)
	case event.TableSaved:
		fmt.Fprintf(p.w, "saved: %s\n", ev.Path)
	case event.BlockChanged, event.RunCompleted:
		// counted by the collector; the summary reports them
	}
}

func (p *plainPresenter) printProgress(ev Event) {
	snap := p.stats.Snapshot()
	if ev.TotalSize <= 0 {
		fmt.Fprintf(p.errW, "progress: %s read  %s changed\n",
			FormatBytes(ev.Size), FormatCount(snap.BlocksChanged))
		return
	}
	pct := float64(ev.Size) / float64(ev.TotalSize) * 100
	fmt.Fprintf(p.errW, "progress: %.0f%% %s/%s  %s changed  %s  eta %s\n",
		pct,
		FormatBytes(ev.Size), FormatBytes(ev.TotalSize),
		FormatCount(snap.BlocksChanged),
		FormatRate(p.stats.RollingSpeed(10)),
		FormatETA(p.stats.ETA()),
	)
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
