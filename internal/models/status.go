package models

import (
	"encoding"
	"fmt"
	"strings"

	"github.com/starford/sowilo/internal/apperr"
)

// Status controls a node's visibility to the selector and whether it
// satisfies its dependents.
type Status string

const (
	StatusLocked     Status = "locked"
	StatusAvailable  Status = "available"
	StatusInProgress Status = "in-progress"
	StatusMastered   Status = "mastered"
	StatusPaused     Status = "paused"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusLocked, StatusAvailable, StatusInProgress, StatusMastered, StatusPaused}

var (
	ErrInvalidStatus = fmt.Errorf("%w: status", apperr.ErrInvalidInput)
	ErrInvalidRating = fmt.Errorf("%w: rating", apperr.ErrInvalidInput)
)

var (
	_ fmt.Stringer             = Status("")
	_ encoding.TextUnmarshaler = (*Status)(nil)
	_ fmt.Stringer             = Rating(0)
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
)

func (s Status) String() string { return string(s) }

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusLocked, StatusAvailable, StatusInProgress, StatusMastered, StatusPaused:
		return true
	}
	return false
}

// ParseStatus accepts a status name case-insensitively. "in_progress" and
// "inprogress" are accepted as aliases for hand-edited files.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	switch norm {
	case "in_progress", "inprogress":
		norm = string(StatusInProgress)
	}
	st := Status(norm)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Rating is the outcome of one review.
type Rating int

const (
	Again Rating = iota + 1 // Not recalled.
	Hard                    // Recalled with significant difficulty.
	Good                    // Recalled with some effort.
	Easy                    // Recalled effortlessly.
)

var ratingNames = [...]string{Again: "again", Hard: "hard", Good: "good", Easy: "easy"}

// IsValid reports whether r is Again through Easy.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

// String returns the lowercase rating name, or "Rating(n)" for invalid values.
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// ParseRating accepts a rating name case-insensitively.
func ParseRating(s string) (Rating, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for r := Again; r <= Easy; r++ {
		if ratingNames[r] == norm {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Reason tags why the selector picked a node.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonDueReview    Reason = "due-review"
	ReasonNewAvailable Reason = "new-available"
	ReasonContinue     Reason = "continue"
)
