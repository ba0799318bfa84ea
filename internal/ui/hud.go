package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/blockshot/internal/event"
	"github.com/bamsammich/blockshot/internal/stats"
)

// ANSI escape sequences.
const (
	ansiDim   = "\033[2m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// hudPresenter provides a TTY display: milestone lines scroll above a 2-line
// HUD that redraws in place.
type hudPresenter struct {
	w     io.Writer
	stats stats.ReadTicker
	width int // terminal columns; 0 disables truncation

	mode        string
	hudLines    int // rows currently occupied by the HUD; 0 when cleared
	lastHUDDraw time.Time
}

const (
	sparklineWidth   = 20
	progressBarWidth = 20
	hudMinInterval   = 50 * time.Millisecond // don't redraw faster than this
)

func (p *hudPresenter) Run(events <-chan Event) error {
	// The first sample lands after 250ms so the sparkline has data early;
	// after that the ring advances once per second.
	tick := time.NewTimer(250 * time.Millisecond)
	defer tick.Stop()

	// Keeps the HUD alive across long unchanged stretches with no events.
	redraw := time.NewTicker(100 * time.Millisecond)
	defer redraw.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearHUD()
				return nil
			}
			p.handleEvent(ev)
			if time.Since(p.lastHUDDraw) >= hudMinInterval {
				p.drawHUD()
			}
		case <-redraw.C:
			p.drawHUD()
		case <-tick.C:
			p.stats.Tick()
			tick.Reset(time.Second)
		}
	}
}

func (p *hudPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case event.RunStarted:
		p.clearHUD()
		fmt.Fprintf(p.w, "%s%s%s  %s  %s blocks\n",
			ansiBold, p.fit(ev.Path), ansiReset, FormatBytes(ev.TotalSize), FormatCount(ev.Total))
		p.drawHUD()

	case event.ModeSelected:
		p.mode = ev.Mode
		p.clearHUD()
		fmt.Fprintf(p.w, "→  %s backup\n", ev.Mode)
		p.drawHUD()

	case event.BlockFailed:
		p.clearHUD()
		p.printBlockFailed(ev)
		p.drawHUD()

	case event.TableSaved:
		p.clearHUD()
		fmt.Fprintf(p.w, "✓  %s%s%s\n", ansiDim, p.fit(ev.Path), ansiReset)
		p.drawHUD()

	case event.ScanProgress, event.BlockChanged, event.RunCompleted:
		// reflected in the HUD through the collector
	}
}

// fit truncates a path so that a feed line stays on one terminal row.
func (p *hudPresenter) fit(path string) string {
	if p.width <= 0 {
		return path
	}
	return truncPath(path, max(p.width-40, 16))
}

func (p *hudPresenter) printBlockFailed(ev Event) {
	errMsg := "error"
	if ev.Error != nil {
		errMsg = ev.Error.Error()
	}
	fmt.Fprintf(p.w, "✗  block %s  %10s  %s\n",
		FormatCount(ev.Index), FormatBytes(ev.Size), errMsg)
}

func (p *hudPresenter) drawHUD() {
	snap := p.stats.Snapshot()
	p.clearHUD()

	var pct float64
	if snap.BytesTotal > 0 {
		pct = float64(snap.BytesRead) / float64(snap.BytesTotal)
	}

	speed := p.stats.RollingSpeed(10)
	eta := p.stats.ETA()

	spark := Sparkline(p.stats.SparklineData(sparklineWidth), sparklineWidth)
	fmt.Fprintf(p.w, "       %s   %s   %s / %s\n",
		spark, FormatRate(speed),
		FormatBytes(snap.BytesRead), FormatBytes(snap.BytesTotal))

	label, count := "changed", snap.BlocksChanged
	if p.mode == "full" {
		label, count = "written", snap.BlocksRead-snap.BlocksFailed
	}
	bar := ProgressBar(pct, progressBarWidth)
	fmt.Fprintf(p.w, " %3.0f%%  %s   %s / %s blocks   %s %s   eta %s\n",
		pct*100, bar,
		FormatCount(snap.BlocksRead), FormatCount(snap.BlocksTotal),
		FormatCount(count), label,
		FormatETA(eta))

	p.hudLines = 2
	p.lastHUDDraw = time.Now()
}

// clearHUD erases the HUD lines so a feed line can be printed in their place.
func (p *hudPresenter) clearHUD() {
	if p.hudLines == 0 {
		return
	}
	fmt.Fprintf(p.w, "\033[%dA\033[J", p.hudLines)
	p.hudLines = 0
}

func (p *hudPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
