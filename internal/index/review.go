package index

import (
	"fmt"

	"github.com/google/uuid"
)

// RecordReview appends r to the review log, assigning an id when r has none.
func (db *DB) RecordReview(r ReviewRow) (ReviewRow, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.ReviewedAt = r.ReviewedAt.UTC()
	r.NextReview = r.NextReview.UTC()
	_, err := db.conn.Exec(`
		INSERT INTO reviews (id, node_id, rating, familiarity, srs_stage, status, next_review, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.NodeID, r.Rating, r.Familiarity, r.SRSStage, r.Status, r.NextReview, r.ReviewedAt)
	if err != nil {
		return ReviewRow{}, fmt.Errorf("index: record review: %w", err)
	}
	return r, nil
}

// Reviews returns the most recent reviews of nodeID, newest first.
func (db *DB) Reviews(nodeID string, limit int) ([]ReviewRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, node_id, rating, familiarity, srs_stage, status, next_review, reviewed_at
		FROM reviews
		WHERE node_id = ?
		ORDER BY reviewed_at DESC, rowid DESC
		LIMIT ?
	`, nodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("index: reviews: %w", err)
	}
	defer rows.Close()

	out := []ReviewRow{}
	for rows.Next() {
		var r ReviewRow
		if err := rows.Scan(&r.ID, &r.NodeID, &r.Rating, &r.Familiarity, &r.SRSStage, &r.Status, &r.NextReview, &r.ReviewedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
