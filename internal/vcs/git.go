// Package vcs records vault snapshots as commits in a git repository
// rooted at the vault directory.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNothingToCommit is returned by Snapshot when the vault has no changes.
var ErrNothingToCommit = errors.New("vcs: nothing to commit")

// Author identifies the committer of snapshots.
type Author struct {
	Name  string
	Email string
}

// Repo commits vault snapshots. The repository is initialised on first use.
type Repo struct {
	dir    string
	author Author
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Repo for the vault at dir.
func New(dir string, author Author, logger *slog.Logger) *Repo {
	return &Repo{dir: dir, author: author, logger: logger, now: time.Now}
}

func (r *Repo) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(r.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		r.logger.Info("initialising vault repository", slog.String("dir", r.dir))
		repo, err = git.PlainInit(r.dir, false)
	}
	if err != nil {
		return nil, fmt.Errorf("vcs: open %s: %w", r.dir, err)
	}
	return repo, nil
}

// Snapshot stages every change in the vault and commits it with message.
// It returns the new commit hash.
func (r *Repo) Snapshot(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("vcs: worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("vcs: stage: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("vcs: status: %w", err)
	}
	if status.IsClean() {
		return "", ErrNothingToCommit
	}
	if message == "" {
		message = fmt.Sprintf("snapshot %s", r.now().UTC().Format(time.RFC3339))
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  r.author.Name,
			Email: r.author.Email,
			When:  r.now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("vcs: commit: %w", err)
	}
	r.logger.Info("vault snapshot committed",
		slog.String("hash", hash.String()),
		slog.Int("changes", len(status)))
	return hash.String(), nil
}

// Log returns up to limit commit summaries, newest first.
func (r *Repo) Log(ctx context.Context, limit int) ([]Commit, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("vcs: log: %w", err)
	}
	defer iter.Close()

	var out []Commit
	for limit <= 0 || len(out) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := iter.Next()
		if err != nil {
			break
		}
		out = append(out, Commit{
			Hash:    c.Hash.String(),
			Message: c.Message,
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
	}
	return out, nil
}

// Commit is one entry in the snapshot history.
type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
}
