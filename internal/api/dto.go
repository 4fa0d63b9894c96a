package api

import (
	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/learnservice"
	"github.com/starford/sowilo/internal/models"
)

// CreateNodeRequest is the request body for creating a node.
type CreateNodeRequest = learnservice.CreateInput

// ReviewRequest is the request body for recording a review.
type ReviewRequest struct {
	Rating models.Rating `json:"rating" example:"good" validate:"required"`
}

// NodeDetail is a node with its inverse edges (aliased from the domain layer).
type NodeDetail = learnservice.NodeDetail

// NextResponse is the selector's recommendation.
type NextResponse = learnservice.Recommendation

// ReviewResponse is the outcome of a review.
type ReviewResponse = learnservice.ReviewResult

// NodeListResponse wraps paginated node listings.
type NodeListResponse struct {
	Nodes []index.NodeRow `json:"nodes" validate:"required"`
	Total int             `json:"total" example:"42" validate:"required"`
}

// UnlockResponse lists the nodes an unlock pass made available.
type UnlockResponse struct {
	Unlocked []*models.LearnNode `json:"unlocked" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the learning graph.
type GraphResponse struct {
	Nodes []index.GraphNode `json:"nodes" validate:"required"`
	Links []index.GraphLink `json:"links" validate:"required"`
}

// HistoryResponse wraps a node's review log.
type HistoryResponse struct {
	Reviews []index.ReviewRow `json:"reviews" validate:"required"`
}
