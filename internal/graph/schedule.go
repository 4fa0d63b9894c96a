package graph

import (
	"time"

	"github.com/starford/sowilo/internal/models"
)

// familiarityDelta and stageDelta encode the review state machine.
var (
	familiarityDelta = map[models.Rating]int{
		models.Again: -1,
		models.Hard:  0,
		models.Good:  1,
		models.Easy:  2,
	}
	stageDelta = map[models.Rating]int{
		models.Again: -1,
		models.Hard:  0,
		models.Good:  1,
		models.Easy:  2,
	}
)

// ScheduleOption tweaks Schedule.
type ScheduleOption func(*scheduleConfig)

type scheduleConfig struct {
	keepPaused bool
}

// KeepPaused leaves a paused node paused after a review. Without it the
// resulting status is always recomputed from familiarity.
func KeepPaused() ScheduleOption {
	return func(c *scheduleConfig) {
		c.keepPaused = true
	}
}

// Schedule applies one review to a copy of node and returns the copy; node
// itself is not modified.
//
// Familiarity is clamped to [0,5], moved by the rating's delta and clamped again. The stage
// moves likewise and is clamped to [0, len(intervals)-1]. The next review is
// intervals[stage] whole days after now (UTC), falling back to the last
// interval, or one day when intervals is empty. Status becomes mastered when
// familiarity reaches masteryThreshold, in-progress otherwise.
func Schedule(node *models.LearnNode, rating models.Rating, intervals []int, masteryThreshold int, now time.Time, opts ...ScheduleOption) (*models.LearnNode, error) {
	if !rating.IsValid() {
		return nil, models.ErrInvalidRating
	}
	var cfg scheduleConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	out := node.Clone()
	fam := clamp(node.Familiarity, models.MinFamiliarity, models.MaxFamiliarity)
	out.Familiarity = clamp(fam+familiarityDelta[rating], models.MinFamiliarity, models.MaxFamiliarity)
	top := maxStage(intervals)
	out.SRSStage = clamp(clamp(node.SRSStage, 0, top)+stageDelta[rating], 0, top)

	reviewed := now.UTC()
	next := reviewed.AddDate(0, 0, DelayDays(intervals, out.SRSStage))
	out.LastReviewed = &reviewed
	out.NextReview = &next
	out.Updated = &reviewed

	if !(cfg.keepPaused && node.Status == models.StatusPaused) {
		out.Status = statusFor(out.Familiarity, masteryThreshold)
	}
	return out, nil
}

// DelayDays returns the review delay for stage. Non-positive table entries
// are treated as one day so a review always moves nextReview forward.
func DelayDays(intervals []int, stage int) int {
	if len(intervals) == 0 {
		return 1
	}
	d := intervals[len(intervals)-1]
	if stage >= 0 && stage < len(intervals) {
		d = intervals[stage]
	}
	if d < 1 {
		return 1
	}
	return d
}

func statusFor(familiarity, masteryThreshold int) models.Status {
	if familiarity >= masteryThreshold {
		return models.StatusMastered
	}
	return models.StatusInProgress
}

func maxStage(intervals []int) int {
	if len(intervals) == 0 {
		return 0
	}
	return len(intervals) - 1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
