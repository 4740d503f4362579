package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Match is one nearest-neighbor hit. Similarity is normalized to [0,1]
// regardless of which backend produced it.
type Match struct {
	EventID    string  `json:"event_id"`
	SessionID  string  `json:"session_id"`
	EventType  string  `json:"event_type"`
	Content    string  `json:"content"`
	Timestamp  string  `json:"timestamp"`
	Similarity float64 `json:"similarity"`
}

// Searcher finds the vectors nearest a query vector.
type Searcher interface {
	Search(ctx context.Context, query []float32, limit int, eventTypes []string) ([]Match, error)
}

// Searcher returns the similarity implementation for this store, chosen
// once from the capability detected at open time.
func (s *Store) Searcher() Searcher {
	if s.native {
		return &nativeSearcher{store: s}
	}
	return &linearSearcher{store: s}
}

// nativeSearcher delegates ranking to the vector index.
type nativeSearcher struct {
	store *Store
}

func (n *nativeSearcher) Search(ctx context.Context, query []float32, limit int, eventTypes []string) ([]Match, error) {
	sql, args := nativeQuery(encodeVector(query), limit, eventTypes)
	rows, err := n.store.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var m Match
		var distance float64
		if err := rows.Scan(&m.EventID, &distance, &m.SessionID, &m.EventType, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		m.Similarity = clamp01(1 - distance)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return matches, nil
}

// nativeQuery builds the vector search statement. The type filter is part of
// the query so LIMIT applies after filtering.
func nativeQuery(vector []byte, limit int, eventTypes []string) (string, []any) {
	query := `
		SELECT e.event_id, distance, m.session_id, m.event_type,
		       COALESCE(m.content, ''), COALESCE(m.timestamp, '')
		FROM embeddings e
		JOIN embedding_metadata m ON e.event_id = m.event_id
		WHERE embedding MATCH ?
	`
	args := []any{vector}

	if len(eventTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(eventTypes)), ",")
		query += fmt.Sprintf(" AND m.event_type IN (%s)", placeholders)
		for _, t := range eventTypes {
			args = append(args, t)
		}
	}

	query += " ORDER BY distance LIMIT ?"
	args = append(args, limit)
	return query, args
}

// linearSearcher is the brute-force fallback: load every vector, compute
// cosine similarity, sort descending, truncate.
type linearSearcher struct {
	store *Store
}

func (l *linearSearcher) Search(ctx context.Context, query []float32, limit int, eventTypes []string) ([]Match, error) {
	rows, err := l.store.db.QueryContext(ctx, `SELECT event_id, embedding FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("linear scan: %w", err)
	}
	defer rows.Close()

	type scored struct {
		id    string
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("linear scan: %w", err)
		}
		candidates = append(candidates, scored{id: id, score: Cosine(query, decodeVector(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("linear scan: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	matches := []Match{}
	for _, c := range candidates {
		if len(matches) >= limit {
			break
		}
		var m Match
		err := l.store.db.QueryRowContext(ctx, `
			SELECT session_id, event_type, COALESCE(content, ''), COALESCE(timestamp, '')
			FROM embedding_metadata WHERE event_id = ?
		`, c.id).Scan(&m.SessionID, &m.EventType, &m.Content, &m.Timestamp)
		if err != nil {
			continue
		}
		if !typeAllowed(m.EventType, eventTypes) {
			continue
		}
		m.EventID = c.id
		m.Similarity = clamp01(c.score)
		matches = append(matches, m)
	}
	return matches, nil
}

// Cosine returns the cosine similarity of two vectors, 0 for degenerate
// inputs.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func typeAllowed(eventType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, t := range allowed {
		if t == eventType {
			return true
		}
	}
	return false
}
