package index

import (
	"fmt"
	"time"

	"github.com/starford/sowilo/internal/apperr"
)

// ErrDuplicateID is returned when a file declares an id already indexed from
// a file earlier in path order.
var ErrDuplicateID = fmt.Errorf("%w: duplicate node id", apperr.ErrConflict)

// NodeIndex defines the interface for node indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NodeIndex interface {
	UpsertNode(n NodeRow, body string, links []Link) error
	DeleteFile(file string) (string, error)
	GetChecksum(file string) (string, error)
	GetNode(id string) (*NodeRow, error)
	ListNodes(f ListFilter) ([]NodeRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Graph() ([]GraphNode, []GraphLink, error)
	Dependents(id string) ([]string, error)
	Backlinks(id string) ([]string, error)
	AllChecksums() (map[string]string, error)
	RecordReview(r ReviewRow) (ReviewRow, error)
	Reviews(nodeID string, limit int) ([]ReviewRow, error)
	Close() error
}

// Verify *DB satisfies NodeIndex at compile time.
var _ NodeIndex = (*DB)(nil)

// Link types.
const (
	LinkPrerequisite = "prerequisite"
	LinkUnlock       = "unlock"
	LinkInline       = "inline"
)

// NodeRow represents a row in the nodes table.
type NodeRow struct {
	ID          string     `json:"id"`
	File        string     `json:"file"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	NodePath    string     `json:"path"`
	Type        string     `json:"type,omitempty"`
	Tags        []string   `json:"tags"`
	Familiarity int        `json:"familiarity"`
	SRSStage    int        `json:"srs_stage"`
	NextReview  *time.Time `json:"next_review,omitempty"`
	Checksum    string     `json:"checksum"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Link is a directed edge from a node to another node id.
type Link struct {
	Target string
	Type   string
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// GraphNode is a vertex of the learning graph.
type GraphNode struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Status      string `json:"status"`
	Familiarity int    `json:"familiarity"`
}

// GraphLink is an edge of the learning graph.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// ListFilter narrows ListNodes. Zero values mean "no filter".
type ListFilter struct {
	Status string
	Path   string
	Tag    string
	Sort   string
	Limit  int
	Offset int
}

// ReviewRow is one entry of the review log.
type ReviewRow struct {
	ID          string    `json:"id"`
	NodeID      string    `json:"node_id"`
	Rating      string    `json:"rating"`
	Familiarity int       `json:"familiarity"`
	SRSStage    int       `json:"srs_stage"`
	Status      string    `json:"status"`
	NextReview  time.Time `json:"next_review"`
	ReviewedAt  time.Time `json:"reviewed_at"`
}
