package graph

import (
	"testing"
	"time"

	"github.com/starford/sowilo/internal/models"
)

func TestSelect_NewAvailableBeforeContinue(t *testing.T) {
	d := &models.LearnNode{ID: "D", Status: models.StatusAvailable, Familiarity: 1, Created: ptr(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))}
	e := &models.LearnNode{ID: "E", Status: models.StatusInProgress, Familiarity: 0}
	got, reason := Select([]*models.LearnNode{e, d}, jan1)
	if got != d || reason != models.ReasonNewAvailable {
		t.Errorf("Select = %v, %q; want D, new-available", got, reason)
	}
}

func TestSelect_DueReviewWins(t *testing.T) {
	fresh := &models.LearnNode{ID: "fresh", Status: models.StatusAvailable, Familiarity: 0}
	due := &models.LearnNode{ID: "due", Status: models.StatusMastered, Familiarity: 5, NextReview: ptr(jan1.Add(-time.Hour))}
	got, reason := Select([]*models.LearnNode{fresh, due}, jan1)
	if got != due || reason != models.ReasonDueReview {
		t.Errorf("Select = %v, %q; want due, due-review", got, reason)
	}
}

func TestSelect_DueBoundaryInclusive(t *testing.T) {
	n := &models.LearnNode{ID: "n", Status: models.StatusInProgress, NextReview: ptr(jan1)}
	if _, reason := Select([]*models.LearnNode{n}, jan1); reason != models.ReasonDueReview {
		t.Errorf("reason = %q, want due-review at nextReview == now", reason)
	}
}

func TestSelect_EarliestDueStableOnTies(t *testing.T) {
	early := jan1.Add(-48 * time.Hour)
	a := &models.LearnNode{ID: "a", Status: models.StatusInProgress, NextReview: ptr(jan1.Add(-time.Hour))}
	b := &models.LearnNode{ID: "b", Status: models.StatusInProgress, NextReview: ptr(early)}
	c := &models.LearnNode{ID: "c", Status: models.StatusInProgress, NextReview: ptr(early)}
	got, _ := Select([]*models.LearnNode{a, b, c}, jan1)
	if got != b {
		t.Errorf("Select = %s, want b", got.ID)
	}
}

func TestSelect_LockedNeverReturned(t *testing.T) {
	locked := &models.LearnNode{ID: "l", Status: models.StatusLocked, NextReview: ptr(jan1.Add(-time.Hour))}
	got, reason := Select([]*models.LearnNode{locked}, jan1)
	if got != nil || reason != models.ReasonNone {
		t.Errorf("Select = %v, %q; want nothing", got, reason)
	}
}

func TestSelect_FutureReviewNotDue(t *testing.T) {
	n := &models.LearnNode{ID: "n", Status: models.StatusInProgress, Familiarity: 2, NextReview: ptr(jan1.Add(time.Hour))}
	got, reason := Select([]*models.LearnNode{n}, jan1)
	if got != n || reason != models.ReasonContinue {
		t.Errorf("Select = %v, %q; want n, continue", got, reason)
	}
}

func TestSelect_AvailableTieBreakByCreated(t *testing.T) {
	newer := &models.LearnNode{ID: "newer", Status: models.StatusAvailable, Created: ptr(jan1)}
	older := &models.LearnNode{ID: "older", Status: models.StatusAvailable, Created: ptr(jan1.AddDate(-1, 0, 0))}
	missing := &models.LearnNode{ID: "missing", Status: models.StatusAvailable}
	got, _ := Select([]*models.LearnNode{newer, older}, jan1)
	if got != older {
		t.Errorf("Select = %s, want older", got.ID)
	}
	got, _ = Select([]*models.LearnNode{newer, older, missing}, jan1)
	if got != missing {
		t.Errorf("Select = %s, want missing (epoch)", got.ID)
	}
}

func TestSelect_LowestFamiliarityFirst(t *testing.T) {
	a := &models.LearnNode{ID: "a", Status: models.StatusInProgress, Familiarity: 3}
	b := &models.LearnNode{ID: "b", Status: models.StatusInProgress, Familiarity: 1}
	c := &models.LearnNode{ID: "c", Status: models.StatusInProgress, Familiarity: 1}
	got, reason := Select([]*models.LearnNode{a, b, c}, jan1)
	if got != b || reason != models.ReasonContinue {
		t.Errorf("Select = %s, %q; want b, continue", got.ID, reason)
	}
}

func TestSelect_NothingActionable(t *testing.T) {
	nodes := []*models.LearnNode{
		{ID: "l", Status: models.StatusLocked},
		{ID: "m", Status: models.StatusMastered},
		{ID: "p", Status: models.StatusPaused},
	}
	got, reason := Select(nodes, jan1)
	if got != nil || reason != models.ReasonNone {
		t.Errorf("Select = %v, %q; want nothing", got, reason)
	}
}

func TestSelect_DoesNotMutate(t *testing.T) {
	n := &models.LearnNode{ID: "n", Status: models.StatusAvailable}
	Select([]*models.LearnNode{n}, jan1)
	if n.Status != models.StatusAvailable {
		t.Errorf("status changed to %q", n.Status)
	}
}

func TestSummarize(t *testing.T) {
	nodes := []*models.LearnNode{
		{ID: "a", Status: models.StatusLocked, NextReview: ptr(jan1.Add(-time.Hour))},
		{ID: "b", Status: models.StatusInProgress, NextReview: ptr(jan1.Add(-time.Hour))},
		{ID: "c", Status: models.StatusAvailable},
	}
	st := Summarize(nodes, jan1)
	if st.Total != 3 || st.Due != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.ByStatus[models.StatusMastered] != 0 || st.ByStatus[models.StatusLocked] != 1 {
		t.Errorf("by status = %v", st.ByStatus)
	}
}
