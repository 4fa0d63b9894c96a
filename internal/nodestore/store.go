// Package nodestore loads and saves learning nodes as markdown files in the
// vault. It owns the file encoding; callers work with models.LearnNode and an
// opaque Handle that carries whatever the file held beyond the node fields.
package nodestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/checksum"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/parser"
	"github.com/starford/sowilo/internal/storage"
)

// Handle identifies the stored revision a node was loaded from.
type Handle struct {
	File     string
	Checksum string
	Extra    map[string]interface{}
}

// Record pairs a decoded node with its storage handle.
type Record struct {
	Node   *models.LearnNode
	Handle Handle
}

// WriteHook is called after every successful write with the file and the
// bytes written.
type WriteHook func(file string, data []byte)

// Store reads and writes node files through a storage.Provider.
type Store struct {
	fs     storage.Provider
	logger *slog.Logger
	hooks  []WriteHook
}

// Option configures a Store.
type Option func(*Store)

// WithWriteHook registers fn to run after each write.
func WithWriteHook(fn WriteHook) Option {
	return func(s *Store) { s.hooks = append(s.hooks, fn) }
}

// New creates a Store over fsys.
func New(fsys storage.Provider, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{fs: fsys, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LoadAll decodes every node file in the vault, in path order. Files that
// fail to decode are skipped with a warning. When two files declare the same
// id the first one wins.
func (s *Store) LoadAll(ctx context.Context) ([]Record, error) {
	metas, err := s.fs.List("")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(metas))
	out := make([]Record, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.read(m.Path)
		if err != nil {
			s.logger.Warn("nodestore: skipping file", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if first, dup := seen[rec.Node.ID]; dup {
			s.logger.Warn("nodestore: duplicate node id",
				slog.String("node_id", rec.Node.ID),
				slog.String("path", m.Path),
				slog.String("kept", first))
			continue
		}
		seen[rec.Node.ID] = m.Path
		out = append(out, rec)
	}
	return out, nil
}

// Nodes returns the nodes of recs in order.
func Nodes(recs []Record) []*models.LearnNode {
	out := make([]*models.LearnNode, len(recs))
	for i, r := range recs {
		out[i] = r.Node
	}
	return out
}

// Handles maps node id to handle.
func Handles(recs []Record) map[string]Handle {
	out := make(map[string]Handle, len(recs))
	for _, r := range recs {
		out[r.Node.ID] = r.Handle
	}
	return out
}

// Save writes n back to the file behind h. It fails with apperr.ErrConflict
// when the file changed since h was read, and returns the handle of the new
// revision.
func (s *Store) Save(ctx context.Context, h Handle, n *models.LearnNode) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	current, err := s.fs.Read(h.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Handle{}, fmt.Errorf("nodestore: %s: %w", h.File, apperr.ErrNotFound)
		}
		return Handle{}, err
	}
	if !checksum.Matches(current, h.Checksum) {
		return Handle{}, fmt.Errorf("nodestore: %s changed on disk: %w", h.File, apperr.ErrConflict)
	}
	return s.write(h.File, n, h.Extra, s.fs.Write)
}

// Create writes a new node at its canonical file. It fails with
// apperr.ErrAlreadyExists when the file is present.
func (s *Store) Create(ctx context.Context, n *models.LearnNode) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if err := n.Validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	file := n.FilePath()
	if ok, err := s.fs.Exists(file); err != nil {
		return Record{}, err
	} else if ok {
		return Record{}, fmt.Errorf("nodestore: %s: %w", n.ID, apperr.ErrAlreadyExists)
	}
	h, err := s.write(file, n, nil, s.fs.Create)
	if errors.Is(err, fs.ErrExist) {
		return Record{}, fmt.Errorf("nodestore: %s: %w", n.ID, apperr.ErrAlreadyExists)
	}
	if err != nil {
		return Record{}, err
	}
	return Record{Node: n, Handle: h}, nil
}

func (s *Store) read(file string) (Record, error) {
	data, err := s.fs.Read(file)
	if err != nil {
		return Record{}, err
	}
	doc, err := parser.DecodeNode(file, data)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Node:   doc.Node,
		Handle: Handle{File: file, Checksum: checksum.Sum(data), Extra: doc.Extra},
	}, nil
}

func (s *Store) write(file string, n *models.LearnNode, extra map[string]interface{}, put func(string, []byte) error) (Handle, error) {
	data, err := parser.EncodeNode(n, extra)
	if err != nil {
		return Handle{}, err
	}
	if err := put(file, data); err != nil {
		return Handle{}, err
	}
	for _, hook := range s.hooks {
		hook(file, data)
	}
	s.logger.Debug("nodestore: wrote node", slog.String("node_id", n.ID), slog.String("path", file))
	return Handle{File: file, Checksum: checksum.Sum(data), Extra: extra}, nil
}
