// Package progress tracks save progress for display.
package progress

import (
	"fmt"
	"sync/atomic"

	"github.com/spherical/pdf2jpeg/internal/domain"
)

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	Current int // pages finished
	Total   int
	Failed  int
	Status  string
}

// Percent returns completion in the range 0..100.
func (s Snapshot) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Current) / float64(s.Total) * 100
}

// Tracker folds stream events into a snapshot readable from any goroutine.
// The visible count never goes backwards within a run.
type Tracker struct {
	snap atomic.Pointer[Snapshot]
}

// NewTracker creates an idle tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.snap.Store(&Snapshot{Status: "Status: Idle"})
	return t
}

// Snapshot returns the latest state.
func (t *Tracker) Snapshot() Snapshot {
	return *t.snap.Load()
}

// Observe updates the snapshot from an event. It is called by a single goroutine.
func (t *Tracker) Observe(evt domain.StreamEvent) {
	next := t.Snapshot()
	if evt.Total > 0 {
		next.Total = evt.Total
	}

	switch evt.Type {
	case domain.EventStart:
		next = Snapshot{Total: evt.Total, Status: "Starting save process..."}
	case domain.EventPageProcessing:
		next.Status = fmt.Sprintf("Saving image %d of %d...", evt.PageNumber, next.Total)
	case domain.EventPageComplete, domain.EventPageError:
		if evt.PageNumber > next.Current {
			next.Current = evt.PageNumber
		}
		if evt.Type == domain.EventPageError {
			next.Failed++
		}
		next.Status = fmt.Sprintf("Saving image %d of %d...", next.Current, next.Total)
	case domain.EventComplete:
		next.Current = next.Total
		next.Status = "Save completed successfully."
	case domain.EventError:
		next.Status = "Error occurred during save process."
	}

	t.snap.Store(&next)
}
