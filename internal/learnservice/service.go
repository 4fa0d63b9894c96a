// Package learnservice runs the learning-graph operations against the vault.
// Every operation is one exclusive load, transform, persist cycle.
package learnservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/graph"
	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/nodestore"
)

// Event kinds passed to the EventFunc.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventUnlocked = "unlocked"
	EventReviewed = "reviewed"
)

// EventFunc receives a notification for every node the service persists.
type EventFunc func(kind, id string)

// Settings are the scheduling parameters threaded into every core call.
type Settings struct {
	MasteryThreshold int
	Intervals        []int
	// ResumePausedOnReview lets a review move a paused node back into the
	// active lifecycle. When false a paused node stays paused.
	ResumePausedOnReview bool
	// CascadeUnlocks makes Next and Unlock resolve to a fixed point.
	CascadeUnlocks bool
}

// Service coordinates the node store, the index, and the scheduling core.
type Service struct {
	mu       sync.Mutex
	store    *nodestore.Store
	db       index.NodeIndex
	settings Settings
	logger   *slog.Logger
	now      func() time.Time
	onEvent  EventFunc
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEvents registers fn to receive node events.
func WithEvents(fn EventFunc) Option {
	return func(s *Service) { s.onEvent = fn }
}

// New creates a Service.
func New(store *nodestore.Store, db index.NodeIndex, settings Settings, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		db:       db,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Recommendation is the outcome of Next.
type Recommendation struct {
	Node     *models.LearnNode `json:"node,omitempty"`
	Reason   models.Reason     `json:"reason"`
	Unlocked []string          `json:"unlocked"`
}

// ReviewResult is the outcome of Review.
type ReviewResult struct {
	Node     *models.LearnNode `json:"node"`
	Review   index.ReviewRow   `json:"review"`
	Unlocked []string          `json:"unlocked"`
}

// NodeDetail is a node with its inverse edges.
type NodeDetail struct {
	*models.LearnNode
	Dependents []string `json:"dependents"`
	Backlinks  []string `json:"backlinks"`
}

// CreateInput describes a new node.
type CreateInput struct {
	Path          string   `json:"path"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary,omitempty"`
	Type          string   `json:"type,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty"`
	Body          string   `json:"body,omitempty"`
}

// snapshot is one loaded node set.
type snapshot struct {
	nodes   []*models.LearnNode
	handles map[string]nodestore.Handle
}

func (s *Service) load(ctx context.Context) (*snapshot, error) {
	recs, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("learnservice: load: %w", err)
	}
	return &snapshot{nodes: nodestore.Nodes(recs), handles: nodestore.Handles(recs)}, nil
}

// persist saves n and updates the snapshot handle.
func (s *Service) persist(ctx context.Context, snap *snapshot, n *models.LearnNode, kind string) error {
	h, err := s.store.Save(ctx, snap.handles[n.ID], n)
	if err != nil {
		return fmt.Errorf("learnservice: save %s: %w", n.ID, err)
	}
	snap.handles[n.ID] = h
	s.emit(kind, n.ID)
	return nil
}

func (s *Service) emit(kind, id string) {
	if s.onEvent != nil {
		s.onEvent(kind, id)
	}
}

// unlock resolves the snapshot in place and persists every changed node.
func (s *Service) unlock(ctx context.Context, snap *snapshot, all bool) ([]*models.LearnNode, error) {
	var changed []*models.LearnNode
	if all {
		changed = graph.ResolveAll(snap.nodes, s.settings.MasteryThreshold)
	} else {
		changed = graph.Resolve(snap.nodes, s.settings.MasteryThreshold)
	}
	now := s.now().UTC()
	for _, n := range changed {
		n.Updated = &now
		if err := s.persist(ctx, snap, n, EventUnlocked); err != nil {
			return nil, err
		}
		s.logger.Info("node unlocked", slog.String("node_id", n.ID))
	}
	return changed, nil
}

// Next unlocks whatever became eligible and recommends the node to study now.
func (s *Service) Next(ctx context.Context) (*Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	changed, err := s.unlock(ctx, snap, s.settings.CascadeUnlocks)
	if err != nil {
		return nil, err
	}
	n, reason := graph.Select(snap.nodes, s.now())
	rec := &Recommendation{Reason: reason, Unlocked: ids(changed)}
	if n != nil {
		rec.Node = n.Clone()
	}
	return rec, nil
}

// Unlock resolves prerequisites and persists newly available nodes. With all
// set, resolution repeats until nothing changes.
func (s *Service) Unlock(ctx context.Context, all bool) ([]*models.LearnNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return s.unlock(ctx, snap, all || s.settings.CascadeUnlocks)
}

// Review schedules the next review of id, persists it, records it in the
// review log, and unlocks dependents the review satisfied.
func (s *Service) Review(ctx context.Context, id string, rating models.Rating) (*ReviewResult, error) {
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidRating, int(rating))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	n, err := graph.Lookup(snap.nodes, id)
	if err != nil {
		return nil, err
	}
	if n.Status == models.StatusLocked {
		return nil, fmt.Errorf("%w: %s is locked", graph.ErrInvalidTransition, id)
	}

	var opts []graph.ScheduleOption
	if !s.settings.ResumePausedOnReview {
		opts = append(opts, graph.KeepPaused())
	}
	now := s.now()
	updated, err := graph.Schedule(n, rating, s.settings.Intervals, s.settings.MasteryThreshold, now, opts...)
	if err != nil {
		return nil, err
	}
	*n = *updated
	if err := s.persist(ctx, snap, n, EventReviewed); err != nil {
		return nil, err
	}

	// The node file is the source of truth; the log is best-effort.
	review := index.ReviewRow{
		NodeID:      n.ID,
		Rating:      rating.String(),
		Familiarity: n.Familiarity,
		SRSStage:    n.SRSStage,
		Status:      n.Status.String(),
		NextReview:  *n.NextReview,
		ReviewedAt:  *n.LastReviewed,
	}
	if logged, err := s.db.RecordReview(review); err != nil {
		s.logger.Warn("review log write failed",
			slog.String("node_id", n.ID),
			slog.String("error", err.Error()))
	} else {
		review = logged
	}
	s.logger.Info("node reviewed",
		slog.String("node_id", n.ID),
		slog.String("rating", rating.String()),
		slog.Int("familiarity", n.Familiarity),
		slog.Int("srs_stage", n.SRSStage),
		slog.Time("next_review", *n.NextReview))

	changed, err := s.unlock(ctx, snap, s.settings.CascadeUnlocks)
	if err != nil {
		return nil, err
	}
	return &ReviewResult{Node: n.Clone(), Review: review, Unlocked: ids(changed)}, nil
}

// Start moves an available node to in-progress.
func (s *Service) Start(ctx context.Context, id string) (*models.LearnNode, error) {
	return s.transition(ctx, id, graph.Start)
}

// Pause parks a node so the selector skips it.
func (s *Service) Pause(ctx context.Context, id string) (*models.LearnNode, error) {
	return s.transition(ctx, id, graph.Pause)
}

// Resume returns a paused node to the active lifecycle.
func (s *Service) Resume(ctx context.Context, id string) (*models.LearnNode, error) {
	return s.transition(ctx, id, graph.Resume)
}

func (s *Service) transition(ctx context.Context, id string, fn func(*models.LearnNode, time.Time) (*models.LearnNode, error)) (*models.LearnNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	n, err := graph.Lookup(snap.nodes, id)
	if err != nil {
		return nil, err
	}
	updated, err := fn(n, s.now())
	if err != nil {
		return nil, err
	}
	if updated.Status == n.Status {
		return updated, nil
	}
	if err := s.persist(ctx, snap, updated, EventUpdated); err != nil {
		return nil, err
	}
	s.logger.Info("node status changed",
		slog.String("node_id", id),
		slog.String("from", n.Status.String()),
		slog.String("to", updated.Status.String()))
	return updated, nil
}

// Create writes a new node and records it in the unlocks list of each
// existing prerequisite.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.LearnNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := models.NewNode(in.Path, in.Title, in.Prerequisites, s.now())
	n.Summary = in.Summary
	n.Type = in.Type
	n.Body = in.Body
	if in.Tags != nil {
		n.Tags = slices.Clone(in.Tags)
	}

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	byID := graph.Index(snap.nodes)
	if existing, ok := byID[n.ID]; ok {
		return nil, fmt.Errorf("learnservice: create %s: declared by %s: %w",
			n.ID, snap.handles[existing.ID].File, apperr.ErrAlreadyExists)
	}
	if _, err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}
	s.emit(EventCreated, n.ID)
	s.logger.Info("node created", slog.String("node_id", n.ID), slog.String("status", n.Status.String()))

	for _, pid := range n.Prerequisites {
		p, ok := byID[pid]
		if !ok || slices.Contains(p.Unlocks, n.ID) {
			continue
		}
		p.Unlocks = append(p.Unlocks, n.ID)
		if err := s.persist(ctx, snap, p, EventUpdated); err != nil {
			s.logger.Warn("link prerequisite failed", slog.String("node_id", pid), slog.String("error", err.Error()))
		}
	}
	return n.Clone(), nil
}

// Get returns a node with its dependents and backlinks.
func (s *Service) Get(ctx context.Context, id string) (*NodeDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	n, err := graph.Lookup(snap.nodes, id)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(id)
	if err != nil {
		return nil, err
	}
	return &NodeDetail{
		LearnNode:  n,
		Dependents: nonNil(graph.Dependents(snap.nodes, id)),
		Backlinks:  nonNil(bl),
	}, nil
}

// Stats summarizes the vault by status.
func (s *Service) Stats(ctx context.Context) (graph.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(ctx)
	if err != nil {
		return graph.Stats{}, err
	}
	return graph.Summarize(snap.nodes, s.now()), nil
}

// List returns indexed nodes matching f and the total match count.
func (s *Service) List(_ context.Context, f index.ListFilter) ([]index.NodeRow, int, error) {
	if f.Status != "" {
		st, err := models.ParseStatus(f.Status)
		if err != nil {
			return nil, 0, err
		}
		f.Status = st.String()
	}
	return s.db.ListNodes(f)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph returns all nodes and edges for visualization.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	return s.db.Graph()
}

// History returns the most recent reviews of id.
func (s *Service) History(_ context.Context, id string, limit int) ([]index.ReviewRow, error) {
	if _, err := s.db.GetNode(id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, &graph.UnknownNodeError{ID: id}
		}
		return nil, err
	}
	return s.db.Reviews(id, limit)
}

func ids(nodes []*models.LearnNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
