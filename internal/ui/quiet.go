package ui

import "github.com/bamsammich/blockshot/internal/stats"

// quietPresenter drains events and prints nothing, not even a summary.
type quietPresenter struct {
	stats stats.Reader
}

func (p *quietPresenter) Run(events <-chan Event) error {
	for range events {
		// Totals and counters live in the collector; nothing to render.
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	return ""
}
