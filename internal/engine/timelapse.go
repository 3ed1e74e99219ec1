package engine

import (
	"time"

	"github.com/Is0cre/growtent/internal/models"
)

// captureTracker holds the per-project timelapse cadence. Entries are seeded
// lazily from the project's persisted last capture (or so that a brand-new
// project captures immediately) and dropped when the project stops needing
// timelapse.
type captureTracker struct {
	lastCapture map[int64]time.Time
}

func newCaptureTracker() *captureTracker {
	return &captureTracker{lastCapture: make(map[int64]time.Time)}
}

func captureInterval(p models.Project) time.Duration {
	interval := p.TimelapseInterval
	if interval < models.MinTimelapseInterval {
		interval = models.MinTimelapseInterval
	}
	return time.Duration(interval) * time.Second
}

// due reports whether a capture is owed for the project, seeding the tracker
// entry on first sight.
func (t *captureTracker) due(p models.Project, now time.Time) bool {
	interval := captureInterval(p)

	last, ok := t.lastCapture[p.ID]
	if !ok {
		if p.TimelapseLastCap != nil {
			last = *p.TimelapseLastCap
		} else {
			// First-ever capture should happen immediately rather than
			// after a full interval.
			last = now.Add(-interval)
		}
		t.lastCapture[p.ID] = last
	}

	return now.Sub(last) >= interval
}

// record advances the cadence after a successful capture. A failed capture
// must not call record so the next tick retries.
func (t *captureTracker) record(projectID int64, now time.Time) {
	t.lastCapture[projectID] = now
}

// prune drops tracker entries for projects no longer needing timelapse;
// re-activation reseeds them via due.
func (t *captureTracker) prune(current []models.Project) {
	keep := make(map[int64]bool, len(current))
	for _, p := range current {
		keep[p.ID] = true
	}
	for id := range t.lastCapture {
		if !keep[id] {
			delete(t.lastCapture, id)
		}
	}
}
