package index

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Query is a keyword search request against the index.
type Query struct {
	Text     string
	Limit    int
	Types    []string
	DateFrom string
	DateTo   string
}

// Search ranks events by keyword relevance. With FTS5 available the score
// is BM25-based: SQLite returns lower-is-better negative scores internally,
// exposed here as a positive magnitude. Without FTS5 it degrades to a
// substring match ordered by recency with zero scores.
func (s *Store) Search(ctx context.Context, q Query) ([]EventRow, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if !s.fts {
		return s.searchLike(ctx, q)
	}

	query := `
		SELECT e.id, e.session_id, e.type, e.ts, COALESCE(e.content, ''),
		       bm25(events_fts) AS score
		FROM events_fts
		JOIN events e ON events_fts.event_id = e.id
		WHERE events_fts MATCH ?
	`
	args := []any{sanitizeMatch(q.Text)}

	if len(q.Types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(q.Types)), ",")
		query += fmt.Sprintf(" AND e.type IN (%s)", placeholders)
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	if q.DateFrom != "" {
		query += " AND e.ts >= ?"
		args = append(args, q.DateFrom)
	}
	if q.DateTo != "" {
		query += " AND e.ts <= ?"
		args = append(args, q.DateTo)
	}

	query += " ORDER BY score LIMIT ?"
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	results := []EventRow{}
	for rows.Next() {
		var r EventRow
		if err := rows.Scan(&r.EventID, &r.SessionID, &r.Type, &r.Timestamp, &r.Content, &r.Score); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		r.Score = math.Abs(r.Score)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

// searchLike is the capability fallback when FTS5 is unavailable.
func (s *Store) searchLike(ctx context.Context, q Query) ([]EventRow, error) {
	query := `
		SELECT id, session_id, type, ts, COALESCE(content, '')
		FROM events
		WHERE content LIKE '%' || ? || '%'
	`
	args := []any{q.Text}

	if len(q.Types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(q.Types)), ",")
		query += fmt.Sprintf(" AND type IN (%s)", placeholders)
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	if q.DateFrom != "" {
		query += " AND ts >= ?"
		args = append(args, q.DateFrom)
	}
	if q.DateTo != "" {
		query += " AND ts <= ?"
		args = append(args, q.DateTo)
	}

	query += " ORDER BY ts DESC LIMIT ?"
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	results := []EventRow{}
	for rows.Next() {
		var r EventRow
		if err := rows.Scan(&r.EventID, &r.SessionID, &r.Type, &r.Timestamp, &r.Content); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

// sanitizeMatch quotes each term of a user query so FTS5 operators and
// punctuation cannot break the MATCH expression. Terms are implicitly ANDed.
func sanitizeMatch(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return `""`
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}
