package index

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/sowilo/internal/checksum"
	"github.com/starford/sowilo/internal/parser"
	"github.com/starford/sowilo/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are decoded and upserted
//   - files removed from disk are deleted from the index
//   - when two files declare one id, the first in path order is indexed
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
	}

	// Remove stale entries first so a surviving duplicate can take over the id.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if _, err := db.DeleteFile(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	for _, m := range metas {
		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	return nil
}

// IndexFile decodes a node file and upserts it into the DB, returning the
// node id. Prerequisites, unlocks, and inline body links become edges.
func IndexFile(db NodeIndex, file string, data []byte) (string, error) {
	doc, err := parser.DecodeNode(file, data)
	if err != nil {
		return "", err
	}
	n := doc.Node

	tags := n.Tags
	var links []Link
	for _, p := range n.Prerequisites {
		links = append(links, Link{Target: p, Type: LinkPrerequisite})
	}
	for _, u := range n.Unlocks {
		links = append(links, Link{Target: u, Type: LinkUnlock})
	}
	if res, err := parser.Parse(data); err == nil {
		tags = res.Tags
		for _, l := range res.Links {
			links = append(links, Link{Target: linkTarget(l), Type: LinkInline})
		}
	}

	row := NodeRow{
		ID:          n.ID,
		File:        filepath.ToSlash(file),
		Title:       n.Title,
		Status:      n.Status.String(),
		NodePath:    n.Path,
		Type:        n.Type,
		Tags:        tags,
		Familiarity: n.Familiarity,
		SRSStage:    n.SRSStage,
		NextReview:  n.NextReview,
		Checksum:    checksum.Sum(data),
	}
	if n.Updated != nil {
		row.UpdatedAt = *n.Updated
	}
	return n.ID, db.UpsertNode(row, n.Body, links)
}

// linkTarget normalizes a body link ("go/channels.md", "./go/channels") to a node id.
func linkTarget(l string) string {
	l = strings.TrimPrefix(filepath.ToSlash(l), "./")
	return strings.TrimSuffix(l, ".md")
}
