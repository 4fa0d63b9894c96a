package graph

import "github.com/starford/sowilo/internal/models"

// Resolve flips every locked node whose prerequisites are all satisfied to
// available and returns exactly the nodes it changed, in input order.
//
// A prerequisite is satisfied when the referenced node exists and is mastered
// or has familiarity >= masteryThreshold. Missing ids never satisfy (fail
// closed), and a node never satisfies its own prerequisite. Resolution is a
// single pass: nodes unlocked here do not count toward other nodes in the same
// call. Use ResolveAll to iterate to a fixed point.
func Resolve(nodes []*models.LearnNode, masteryThreshold int) []*models.LearnNode {
	byID := Index(nodes)

	var changed []*models.LearnNode
	for _, n := range nodes {
		if n == nil || n.Status != models.StatusLocked {
			continue
		}
		if prerequisitesMet(n, byID, masteryThreshold) {
			changed = append(changed, n)
		}
	}

	// Decide first, mutate after, so the pass sees one consistent snapshot.
	for _, n := range changed {
		n.Status = models.StatusAvailable
	}
	return changed
}

// ResolveAll runs Resolve until a round reports no changes and returns every
// node unlocked across all rounds. It terminates because each round can only
// shrink the set of locked nodes.
func ResolveAll(nodes []*models.LearnNode, masteryThreshold int) []*models.LearnNode {
	var all []*models.LearnNode
	for {
		changed := Resolve(nodes, masteryThreshold)
		if len(changed) == 0 {
			return all
		}
		all = append(all, changed...)
	}
}

// Satisfies reports whether n counts as a met prerequisite.
func Satisfies(n *models.LearnNode, masteryThreshold int) bool {
	return n.Status == models.StatusMastered || n.Familiarity >= masteryThreshold
}

func prerequisitesMet(n *models.LearnNode, byID map[string]*models.LearnNode, threshold int) bool {
	for _, id := range n.Prerequisites {
		if id == n.ID {
			return false
		}
		p, ok := byID[id]
		if !ok || !Satisfies(p, threshold) {
			return false
		}
	}
	return true
}
