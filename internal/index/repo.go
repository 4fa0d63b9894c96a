package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/sowilo/internal/apperr"
)

// UpsertNode inserts or replaces a node, its FTS entry, and its outgoing
// links within a transaction. When another file already owns n.ID the file
// that sorts first keeps it; a later file gets ErrDuplicateID.
func (db *DB) UpsertNode(n NodeRow, body string, links []Link) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(nonNil(n.Tags))
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now().UTC()
	}

	var owner string
	err = tx.QueryRow(`SELECT file FROM nodes WHERE id = ?`, n.ID).Scan(&owner)
	switch {
	case err == nil:
		if owner < n.File {
			return fmt.Errorf("%w: %s declared by %s, kept %s", ErrDuplicateID, n.ID, n.File, owner)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("index: lookup id: %w", err)
	}

	// A file whose frontmatter id changed leaves a stale row behind.
	var stale string
	err = tx.QueryRow(`SELECT id FROM nodes WHERE file = ? AND id <> ?`, n.File, n.ID).Scan(&stale)
	switch {
	case err == nil:
		ftsDelete(tx, stale)
		_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, stale)
		_, _ = tx.Exec(`DELETE FROM nodes WHERE id = ?`, stale)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("index: lookup file: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO nodes (id, file, title, status, node_path, type, tags, familiarity, srs_stage, next_review, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file        = excluded.file,
			title       = excluded.title,
			status      = excluded.status,
			node_path   = excluded.node_path,
			type        = excluded.type,
			tags        = excluded.tags,
			familiarity = excluded.familiarity,
			srs_stage   = excluded.srs_stage,
			next_review = excluded.next_review,
			checksum    = excluded.checksum,
			body        = excluded.body,
			updated_at  = excluded.updated_at
	`, n.ID, n.File, n.Title, n.Status, n.NodePath, n.Type, string(tagsJSON),
		n.Familiarity, n.SRSStage, n.NextReview, n.Checksum, body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert node: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n.ID, n.Title, body, n.Tags); err != nil {
		return err
	}

	// Replace links: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, n.ID)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range links {
			if _, err := stmt.Exec(n.ID, l.Target, l.Type); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteFile removes the node stored in file, its FTS entry, and outgoing
// links. It returns the removed node id, or "" when file was not indexed.
func (db *DB) DeleteFile(file string) (string, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id string
	err = tx.QueryRow(`SELECT id FROM nodes WHERE file = ?`, file).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: lookup file: %w", err)
	}

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, id)
	_, _ = tx.Exec(`DELETE FROM nodes WHERE id = ?`, id)

	return id, tx.Commit()
}

// GetChecksum returns the stored checksum for a file, or empty string if not found.
func (db *DB) GetChecksum(file string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM nodes WHERE file = ?`, file).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns file -> checksum for every indexed node.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT file, checksum FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var f, cs string
		if err := rows.Scan(&f, &cs); err != nil {
			return nil, err
		}
		out[f] = cs
	}
	return out, rows.Err()
}

const nodeColumns = `id, file, title, status, node_path, type, tags, familiarity, srs_stage, next_review, checksum, updated_at`

// GetNode returns the indexed row for id or apperr.ErrNotFound.
func (db *DB) GetNode(id string) (*NodeRow, error) {
	row := db.conn.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get node: %w", err)
	}
	return n, nil
}

var sortColumns = map[string]string{
	"":            "id",
	"id":          "id",
	"title":       "title",
	"familiarity": "familiarity, id",
	"next_review": "next_review IS NULL, next_review, id",
	"updated_at":  "updated_at DESC, id",
}

// ListNodes returns a page of nodes matching f and the total match count.
func (db *DB) ListNodes(f ListFilter) ([]NodeRow, int, error) {
	order, ok := sortColumns[f.Sort]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown sort %q", apperr.ErrInvalidInput, f.Sort)
	}

	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Path != "" {
		where = append(where, "node_path = ?")
		args = append(args, f.Path)
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(nodes.tags) WHERE json_each.value = ?)")
		args = append(args, f.Tag)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM nodes`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count nodes: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(`SELECT `+nodeColumns+` FROM nodes`+clause+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, max(f.Offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list nodes: %w", err)
	}
	defer rows.Close()

	var out []NodeRow
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// Graph returns every node and every edge whose target is an indexed node.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	rows, err := db.conn.Query(`SELECT id, title, status, familiarity FROM nodes ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer rows.Close()
	nodes := []GraphNode{}
	for rows.Next() {
		var g GraphNode
		if err := rows.Scan(&g.ID, &g.Title, &g.Status, &g.Familiarity); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, g)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	lrows, err := db.conn.Query(`
		SELECT l.source, l.target, l.type
		FROM links l
		JOIN nodes n ON n.id = l.target
		ORDER BY l.source, l.target, l.type
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer lrows.Close()
	links := []GraphLink{}
	for lrows.Next() {
		var l GraphLink
		if err := lrows.Scan(&l.Source, &l.Target, &l.Type); err != nil {
			return nil, nil, err
		}
		links = append(links, l)
	}
	return nodes, links, lrows.Err()
}

// Dependents returns ids of nodes that declare id as a prerequisite.
func (db *DB) Dependents(id string) ([]string, error) {
	return db.sources(id, LinkPrerequisite)
}

// Backlinks returns ids of nodes whose body links to id.
func (db *DB) Backlinks(id string) ([]string, error) {
	return db.sources(id, LinkInline)
}

func (db *DB) sources(target, linkType string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ? AND type = ? ORDER BY source`, target, linkType)
	if err != nil {
		return nil, fmt.Errorf("index: %s sources: %w", linkType, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*NodeRow, error) {
	var (
		n        NodeRow
		tagsJSON string
		next     sql.NullTime
	)
	if err := s.Scan(&n.ID, &n.File, &n.Title, &n.Status, &n.NodePath, &n.Type, &tagsJSON,
		&n.Familiarity, &n.SRSStage, &next, &n.Checksum, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		n.Tags = []string{}
	}
	if next.Valid {
		t := next.Time.UTC()
		n.NextReview = &t
	}
	return &n, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
