package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/learnservice"
	"github.com/starford/sowilo/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *learnservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *learnservice.Service) *Handler {
	return &Handler{svc: svc}
}

// nodeID extracts the node id from the wildcard URL segment. Encoded slashes
// (go%2Fchannels) and a trailing ".md" are accepted.
func nodeID(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return strings.TrimSuffix(raw, ".md")
}

func requireID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := nodeID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("node id is required"))
		return "", false
	}
	return id, true
}

// ListNodes handles GET /api/nodes.
//
//	@Summary		List nodes with optional filtering and pagination
//	@Tags			nodes
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"
//	@Param			path	query		string	false	"Filter by path"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(id, title, familiarity, next_review, updated_at)
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	NodeListResponse
//	@Security		BearerAuth
//	@Router			/nodes [get]
func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.svc.List(r.Context(), index.ListFilter{
		Status: q.Get("status"),
		Path:   q.Get("path"),
		Tag:    q.Get("tag"),
		Sort:   q.Get("sort"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, "list nodes", err)
		return
	}
	if rows == nil {
		rows = []index.NodeRow{}
	}
	writeJSON(w, http.StatusOK, NodeListResponse{Nodes: rows, Total: total})
}

// GetNode handles GET /api/nodes/*.
//
//	@Summary		Get a node with its dependents and backlinks
//	@Tags			nodes
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	NodeDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id} [get]
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	node, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get node", err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// CreateNode handles POST /api/nodes.
//
//	@Summary		Create a new node
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNodeRequest	true	"Node to create"
//	@Success		201		{object}	models.LearnNode
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes [post]
func (h *Handler) CreateNode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and title are required"))
		return
	}
	node, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, "create node", err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// Next handles GET /api/next.
//
//	@Summary		Recommend the node to study now
//	@Tags			scheduling
//	@Produce		json
//	@Success		200	{object}	NextResponse
//	@Security		BearerAuth
//	@Router			/next [get]
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Next(r.Context())
	if err != nil {
		writeError(w, "next", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Review handles POST /api/review/*.
//
//	@Summary		Record a review and reschedule the node
//	@Tags			scheduling
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Node id"
//	@Param			body	body		ReviewRequest	true	"Review outcome"
//	@Success		200		{object}	ReviewResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/review/{id} [post]
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("rating must be one of again, hard, good, easy"))
		return
	}
	res, err := h.svc.Review(r.Context(), id, req.Rating)
	if err != nil {
		writeError(w, "review", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Unlock handles POST /api/unlock.
//
//	@Summary		Unlock nodes whose prerequisites are satisfied
//	@Tags			scheduling
//	@Produce		json
//	@Param			all	query		bool	false	"Repeat until nothing changes"
//	@Success		200	{object}	UnlockResponse
//	@Security		BearerAuth
//	@Router			/unlock [post]
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	changed, err := h.svc.Unlock(r.Context(), all)
	if err != nil {
		writeError(w, "unlock", err)
		return
	}
	if changed == nil {
		changed = []*models.LearnNode{}
	}
	writeJSON(w, http.StatusOK, UnlockResponse{Unlocked: changed})
}

// Start handles POST /api/start/*.
//
//	@Summary		Move an available node to in-progress
//	@Tags			lifecycle
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	models.LearnNode
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/start/{id} [post]
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "start", h.svc.Start)
}

// Pause handles POST /api/pause/*.
//
//	@Summary		Pause a node
//	@Tags			lifecycle
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	models.LearnNode
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pause/{id} [post]
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "pause", h.svc.Pause)
}

// Resume handles POST /api/resume/*.
//
//	@Summary		Resume a paused node
//	@Tags			lifecycle
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	models.LearnNode
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resume/{id} [post]
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "resume", h.svc.Resume)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, id string) (*models.LearnNode, error)) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	node, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across nodes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the learning graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: links})
}

// Stats handles GET /api/stats.
//
//	@Summary		Count nodes per status and due reviews
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	graph.Stats
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// History handles GET /api/history/*.
//
//	@Summary		Review log of a node, newest first
//	@Tags			scheduling
//	@Produce		json
//	@Param			id		path		string	true	"Node id"
//	@Param			limit	query		int		false	"Max entries"
//	@Success		200		{object}	HistoryResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history/{id} [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	reviews, err := h.svc.History(r.Context(), id, limit)
	if err != nil {
		writeError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Reviews: reviews})
}
