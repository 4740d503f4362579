// Package search merges keyword results from the index with semantic
// results from the embedding store using Reciprocal Rank Fusion.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/chronicle/internal/embedding"
	"github.com/roach88/chronicle/internal/index"
)

// rrfK dampens the contribution of lower ranks during fusion.
const rrfK = 60

// Result is one search hit. Score is the fused RRF score for hybrid
// results, the BM25 magnitude for keyword-only results. CosineSimilarity
// carries the raw semantic similarity for display and is never mixed into
// the fused score.
type Result struct {
	EventID          string  `json:"event_id"`
	SessionID        string  `json:"session_id"`
	EventType        string  `json:"event_type"`
	Content          string  `json:"content"`
	Score            float64 `json:"score"`
	Timestamp        string  `json:"timestamp"`
	Source           string  `json:"source"`
	CosineSimilarity float64 `json:"cosine_similarity"`
}

// Filters narrows a search.
type Filters struct {
	Types    []string
	DateFrom string
	DateTo   string
}

// Service answers hybrid queries. The semantic side is optional; a nil
// embedding service disables it.
type Service struct {
	idx *index.Store
	sem *embedding.Service
}

func New(idx *index.Store, sem *embedding.Service) *Service {
	return &Service{idx: idx, sem: sem}
}

// Hybrid runs keyword and semantic searches concurrently, each over up to
// twice the requested limit, fuses them by reciprocal rank, and returns the
// top results together with the elapsed query time.
//
// A semantic backend failure degrades the query to keyword-only; it is
// never surfaced as a search failure.
func (s *Service) Hybrid(ctx context.Context, query string, limit int, f Filters, useSemantic bool) ([]Result, time.Duration, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 20
	}

	var keyword, semantic []Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.idx.Search(gctx, index.Query{
			Text:     query,
			Limit:    limit * 2,
			Types:    f.Types,
			DateFrom: f.DateFrom,
			DateTo:   f.DateTo,
		})
		if err != nil {
			return fmt.Errorf("keyword search: %w", err)
		}
		keyword = make([]Result, len(rows))
		for i, r := range rows {
			keyword[i] = Result{
				EventID:   r.EventID,
				SessionID: r.SessionID,
				EventType: r.Type,
				Content:   r.Content,
				Score:     r.Score,
				Timestamp: r.Timestamp,
				Source:    "keyword",
			}
		}
		return nil
	})

	if useSemantic && s.sem.Available() {
		g.Go(func() error {
			matches, err := s.sem.Query(gctx, query, limit*2, f.Types)
			if err != nil {
				// Degrade to keyword-only rather than failing the query.
				semantic = nil
				return nil
			}
			semantic = make([]Result, len(matches))
			for i, m := range matches {
				semantic[i] = Result{
					EventID:          m.EventID,
					SessionID:        m.SessionID,
					EventType:        m.EventType,
					Content:          m.Content,
					Score:            m.Similarity,
					Timestamp:        m.Timestamp,
					Source:           "semantic",
					CosineSimilarity: m.Similarity,
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, time.Since(start), err
	}

	results := keyword
	if len(semantic) > 0 {
		results = Fuse(keyword, semantic, rrfK)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, time.Since(start), nil
}

// Fuse merges two ranked lists by Reciprocal Rank Fusion: a result at
// 0-based rank r contributes 1/(k+r+1), and an event appearing in both
// lists sums its contributions. The fused list is sorted by score
// descending, stable on ties in first-seen order. Raw semantic similarity
// is carried through on its own field.
func Fuse(keyword, semantic []Result, k int) []Result {
	scores := map[string]float64{}
	byID := map[string]Result{}
	cosines := map[string]float64{}
	var order []string

	for rank, r := range keyword {
		if _, seen := scores[r.EventID]; !seen {
			order = append(order, r.EventID)
			byID[r.EventID] = r
		}
		scores[r.EventID] += 1.0 / float64(k+rank+1)
	}
	for rank, r := range semantic {
		if _, seen := scores[r.EventID]; !seen {
			order = append(order, r.EventID)
			byID[r.EventID] = r
		}
		scores[r.EventID] += 1.0 / float64(k+rank+1)
		cosines[r.EventID] = r.CosineSimilarity
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	fused := make([]Result, 0, len(order))
	for _, id := range order {
		r := byID[id]
		fused = append(fused, Result{
			EventID:          r.EventID,
			SessionID:        r.SessionID,
			EventType:        r.EventType,
			Content:          r.Content,
			Score:            scores[id],
			Timestamp:        r.Timestamp,
			Source:           "hybrid",
			CosineSimilarity: cosines[id],
		})
	}
	return fused
}

// Suggest returns completion candidates for a query prefix.
func (s *Service) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.idx.Suggest(ctx, prefix, limit)
}
