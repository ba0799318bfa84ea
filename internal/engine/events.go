package engine

import (
	"time"

	"github.com/bamsammich/blockshot/internal/event"
)

// emitEvent sends e without blocking. Presenters are advisory, so a full
// channel drops the event instead of stalling the scan.
func emitEvent(ch chan<- event.Event, e event.Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
