// Package models defines the domain types for Sowilo.
package models

import (
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Familiarity bounds.
const (
	MinFamiliarity = 0
	MaxFamiliarity = 5
)

// LearnNode is the atomic unit of the learning graph.
//
// Prerequisites and Unlocks hold node IDs, never pointers; they are resolved
// through a lookup so cyclic graphs are representable.
type LearnNode struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Summary       string     `json:"summary,omitempty"`
	Path          string     `json:"path"`
	Type          string     `json:"type,omitempty"`
	Status        Status     `json:"status"`
	Tags          []string   `json:"tags"`
	Prerequisites []string   `json:"prerequisites"`
	Unlocks       []string   `json:"unlocks"`
	Familiarity   int        `json:"familiarity"`
	SRSStage      int        `json:"srs_stage"`
	LastReviewed  *time.Time `json:"last_reviewed,omitempty"`
	NextReview    *time.Time `json:"next_review,omitempty"`
	Created       *time.Time `json:"created,omitempty"`
	Updated       *time.Time `json:"updated,omitempty"`
	Body          string     `json:"body,omitempty"`
}

// FilePath returns the vault-relative file the node is stored in.
func (n *LearnNode) FilePath() string {
	return n.ID + ".md"
}

// Clone returns a deep copy of n.
func (n *LearnNode) Clone() *LearnNode {
	c := *n
	c.Tags = cloneStrings(n.Tags)
	c.Prerequisites = cloneStrings(n.Prerequisites)
	c.Unlocks = cloneStrings(n.Unlocks)
	c.LastReviewed = cloneTime(n.LastReviewed)
	c.NextReview = cloneTime(n.NextReview)
	c.Created = cloneTime(n.Created)
	c.Updated = cloneTime(n.Updated)
	return &c
}

// Validate checks the fields a new node must carry. Scheduling fields are not
// validated here: out-of-range values are clamped by the scheduler instead.
func (n *LearnNode) Validate() error {
	return validation.ValidateStruct(n,
		validation.Field(&n.ID, validation.Required, validation.Match(idRe)),
		validation.Field(&n.Title, validation.Required),
		validation.Field(&n.Path, validation.Required),
		validation.Field(&n.Status, validation.Required, validation.By(func(v interface{}) error {
			s, _ := v.(Status)
			if !s.IsValid() {
				return ErrInvalidStatus
			}
			return nil
		})),
	)
}

// NewNode builds a node in its initial lifecycle state: locked when it
// declares at least one prerequisite, available otherwise.
func NewNode(path, title string, prerequisites []string, now time.Time) *LearnNode {
	status := StatusAvailable
	if len(prerequisites) > 0 {
		status = StatusLocked
	}
	created := now.UTC()
	pathSlug := Slugify(path)
	return &LearnNode{
		ID:            pathSlug + "/" + Slugify(title),
		Title:         title,
		Path:          pathSlug,
		Status:        status,
		Tags:          []string{},
		Prerequisites: cloneStrings(prerequisites),
		Unlocks:       []string{},
		Created:       &created,
		Updated:       &created,
	}
}

var (
	idRe      = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*(/[a-z0-9][a-z0-9-]*)+$`)
	nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify lowercases s and collapses every run of non-alphanumerics to a dash.
func Slugify(s string) string {
	s = nonSlugRe.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
