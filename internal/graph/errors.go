package graph

import (
	"errors"
	"fmt"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
)

// Sentinel errors. Use errors.Is: an UnknownNodeError matches both
// ErrUnknownNode and apperr.ErrNotFound.
var (
	ErrUnknownNode       = errors.New("unknown node")
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", apperr.ErrConflict)
)

// UnknownNodeError reports a node ID missing from the loaded collection.
type UnknownNodeError struct {
	ID string
}

func (e *UnknownNodeError) Error() string {
	return "unknown node: " + e.ID
}

// Is matches ErrUnknownNode and apperr.ErrNotFound.
func (e *UnknownNodeError) Is(target error) bool {
	return target == ErrUnknownNode || target == apperr.ErrNotFound
}

func transitionError(n *models.LearnNode, to models.Status) error {
	return fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidTransition, n.ID, n.Status, to)
}
