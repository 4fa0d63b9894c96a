// Package graph implements the scheduling core of the learning graph:
// prerequisite unlock resolution, next-node selection, and spaced-repetition
// review scheduling.
//
// Every function is a pure transformation over an in-memory snapshot of the
// node collection. Nothing here performs I/O or keeps state between calls;
// callers must serialize load-transform-save cycles themselves.
package graph

import (
	"time"

	"github.com/starford/sowilo/internal/models"
)

// Index builds an id lookup over nodes. If an id appears more than once the
// first occurrence wins.
func Index(nodes []*models.LearnNode) map[string]*models.LearnNode {
	byID := make(map[string]*models.LearnNode, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if _, dup := byID[n.ID]; !dup {
			byID[n.ID] = n
		}
	}
	return byID
}

// Lookup returns the node with the given id or an *UnknownNodeError.
func Lookup(nodes []*models.LearnNode, id string) (*models.LearnNode, error) {
	for _, n := range nodes {
		if n != nil && n.ID == id {
			return n, nil
		}
	}
	return nil, &UnknownNodeError{ID: id}
}

// Dependents returns, in input order, the ids of nodes that list id as a
// prerequisite. This is the inverse of the prerequisite edge and is derived
// from the graph rather than trusted from the advisory Unlocks field.
func Dependents(nodes []*models.LearnNode, id string) []string {
	var out []string
	for _, n := range nodes {
		if n == nil {
			continue
		}
		for _, p := range n.Prerequisites {
			if p == id {
				out = append(out, n.ID)
				break
			}
		}
	}
	return out
}

// Stats summarises a node collection.
type Stats struct {
	Total    int                   `json:"total"`
	ByStatus map[models.Status]int `json:"by_status"`
	Due      int                   `json:"due"`
}

// Summarize counts nodes per status and how many reviews are due at now.
func Summarize(nodes []*models.LearnNode, now time.Time) Stats {
	st := Stats{ByStatus: make(map[models.Status]int, len(models.Statuses))}
	for _, s := range models.Statuses {
		st.ByStatus[s] = 0
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		st.Total++
		st.ByStatus[n.Status]++
		if isDue(n, now) {
			st.Due++
		}
	}
	return st
}

func isDue(n *models.LearnNode, now time.Time) bool {
	return n.Status != models.StatusLocked && n.NextReview != nil && !n.NextReview.After(now)
}
