package graph

import (
	"time"

	"github.com/starford/sowilo/internal/models"
)

// Start returns a copy of an available node moved to in-progress. Starting a
// node that is already in progress is a no-op copy.
func Start(n *models.LearnNode, now time.Time) (*models.LearnNode, error) {
	switch n.Status {
	case models.StatusInProgress:
		return n.Clone(), nil
	case models.StatusAvailable:
		return withStatus(n, models.StatusInProgress, now), nil
	}
	return nil, transitionError(n, models.StatusInProgress)
}

// Pause returns a copy of an unlocked node moved to paused.
func Pause(n *models.LearnNode, now time.Time) (*models.LearnNode, error) {
	switch n.Status {
	case models.StatusPaused:
		return n.Clone(), nil
	case models.StatusLocked:
		return nil, transitionError(n, models.StatusPaused)
	}
	return withStatus(n, models.StatusPaused, now), nil
}

// Resume returns a copy of a paused node moved back to in-progress, or to
// available when it has never been reviewed.
func Resume(n *models.LearnNode, now time.Time) (*models.LearnNode, error) {
	if n.Status != models.StatusPaused {
		return nil, transitionError(n, models.StatusInProgress)
	}
	if n.LastReviewed == nil {
		return withStatus(n, models.StatusAvailable, now), nil
	}
	return withStatus(n, models.StatusInProgress, now), nil
}

func withStatus(n *models.LearnNode, s models.Status, now time.Time) *models.LearnNode {
	out := n.Clone()
	out.Status = s
	ts := now.UTC()
	out.Updated = &ts
	return out
}
