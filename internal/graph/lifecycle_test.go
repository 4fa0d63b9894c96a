package graph

import (
	"errors"
	"testing"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
)

func TestStart(t *testing.T) {
	n := &models.LearnNode{ID: "p/a", Status: models.StatusAvailable}
	got, err := Start(n, jan1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got.Status != models.StatusInProgress || n.Status != models.StatusAvailable {
		t.Errorf("got %q, original %q", got.Status, n.Status)
	}

	locked := &models.LearnNode{ID: "p/b", Status: models.StatusLocked}
	if _, err := Start(locked, jan1); !errors.Is(err, ErrInvalidTransition) || !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestPauseResume(t *testing.T) {
	n := &models.LearnNode{ID: "p/a", Status: models.StatusInProgress, LastReviewed: ptr(jan1)}
	paused, err := Pause(n, jan1)
	if err != nil || paused.Status != models.StatusPaused {
		t.Fatalf("Pause = %v, %v", paused, err)
	}
	resumed, err := Resume(paused, jan1)
	if err != nil || resumed.Status != models.StatusInProgress {
		t.Fatalf("Resume = %v, %v", resumed, err)
	}

	fresh := &models.LearnNode{ID: "p/b", Status: models.StatusPaused}
	resumed, _ = Resume(fresh, jan1)
	if resumed.Status != models.StatusAvailable {
		t.Errorf("never-reviewed node resumed to %q, want available", resumed.Status)
	}

	if _, err := Resume(n, jan1); err == nil {
		t.Error("resuming a non-paused node should fail")
	}
	if _, err := Pause(&models.LearnNode{ID: "p/c", Status: models.StatusLocked}, jan1); err == nil {
		t.Error("pausing a locked node should fail")
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup([]*models.LearnNode{{ID: "a/b"}}, "a/zzz")
	if !errors.Is(err, ErrUnknownNode) || !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrUnknownNode", err)
	}
	if err.Error() != "unknown node: a/zzz" {
		t.Errorf("message = %q", err.Error())
	}
}
