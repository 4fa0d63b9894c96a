package graph

import (
	"time"

	"github.com/starford/sowilo/internal/models"
)

var epoch = time.Unix(0, 0).UTC()

// Select picks the single node to study at now, or nil with ReasonNone when
// nothing is actionable. Tiers are tried in order and the first non-empty
// tier wins:
//
//  1. due-review: non-locked nodes with nextReview <= now, earliest first.
//  2. new-available: available nodes, lowest familiarity, then earliest
//     created (missing created sorts as the epoch).
//  3. continue: in-progress nodes, lowest familiarity.
//
// Remaining ties keep input order. Select never mutates nodes.
func Select(nodes []*models.LearnNode, now time.Time) (*models.LearnNode, models.Reason) {
	if n := pickDue(nodes, now); n != nil {
		return n, models.ReasonDueReview
	}
	if n := pickLowest(nodes, models.StatusAvailable, true); n != nil {
		return n, models.ReasonNewAvailable
	}
	if n := pickLowest(nodes, models.StatusInProgress, false); n != nil {
		return n, models.ReasonContinue
	}
	return nil, models.ReasonNone
}

func pickDue(nodes []*models.LearnNode, now time.Time) *models.LearnNode {
	var best *models.LearnNode
	for _, n := range nodes {
		if n == nil || !isDue(n, now) {
			continue
		}
		if best == nil || n.NextReview.Before(*best.NextReview) {
			best = n
		}
	}
	return best
}

func pickLowest(nodes []*models.LearnNode, status models.Status, byCreated bool) *models.LearnNode {
	var best *models.LearnNode
	for _, n := range nodes {
		if n == nil || n.Status != status {
			continue
		}
		switch {
		case best == nil, n.Familiarity < best.Familiarity:
			best = n
		case byCreated && n.Familiarity == best.Familiarity && createdAt(n).Before(createdAt(best)):
			best = n
		}
	}
	return best
}

func createdAt(n *models.LearnNode) time.Time {
	if n.Created == nil {
		return epoch
	}
	return *n.Created
}
