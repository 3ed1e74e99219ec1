package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Is0cre/growtent/internal/models"
)

func project(id int64, interval int, lastCap *time.Time) models.Project {
	return models.Project{
		ID:                id,
		Name:              "test grow",
		Status:            models.ProjectActive,
		TimelapseEnabled:  true,
		TimelapseInterval: interval,
		TimelapseLastCap:  lastCap,
	}
}

func TestCaptureTrackerNewProjectDueImmediately(t *testing.T) {
	tr := newCaptureTracker()
	now := at(12, 0, 0)

	p := project(1, 300, nil)
	assert.True(t, tr.due(p, now))
}

func TestCaptureTrackerRecordDefersNextCapture(t *testing.T) {
	tr := newCaptureTracker()
	now := at(12, 0, 0)
	p := project(1, 300, nil)

	require.True(t, tr.due(p, now))
	tr.record(p.ID, now)

	assert.False(t, tr.due(p, now.Add(299*time.Second)))
	assert.True(t, tr.due(p, now.Add(300*time.Second)))
}

func TestCaptureTrackerSeedsFromPersistedCapture(t *testing.T) {
	tr := newCaptureTracker()
	now := at(12, 0, 0)

	last := now.Add(-100 * time.Second)
	p := project(1, 300, &last)

	// Restart mid-interval: not due yet.
	assert.False(t, tr.due(p, now))
	assert.True(t, tr.due(p, now.Add(200*time.Second)))
}

func TestCaptureTrackerFailedCaptureRetries(t *testing.T) {
	tr := newCaptureTracker()
	now := at(12, 0, 0)
	p := project(1, 300, nil)

	require.True(t, tr.due(p, now))
	// No record call (capture failed): still due next tick.
	assert.True(t, tr.due(p, now.Add(30*time.Second)))
}

func TestCaptureTrackerPruneDropsInactiveProjects(t *testing.T) {
	tr := newCaptureTracker()
	now := at(12, 0, 0)

	p1 := project(1, 300, nil)
	p2 := project(2, 300, nil)
	require.True(t, tr.due(p1, now))
	require.True(t, tr.due(p2, now))
	tr.record(p1.ID, now)
	tr.record(p2.ID, now)

	// Project 2 ends; its entry is dropped and re-activation reseeds fresh.
	tr.prune([]models.Project{p1})
	assert.NotContains(t, tr.lastCapture, int64(2))
	assert.True(t, tr.due(p2, now.Add(time.Second)))
}

func TestCaptureTrackerEnforcesMinimumInterval(t *testing.T) {
	tr := newCaptureTracker()
	now := at(12, 0, 0)

	p := project(1, 5, nil) // under the 30s floor
	require.True(t, tr.due(p, now))
	tr.record(p.ID, now)

	assert.False(t, tr.due(p, now.Add(10*time.Second)))
	assert.True(t, tr.due(p, now.Add(30*time.Second)))
}
