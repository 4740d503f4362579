package embedding

import (
	"context"
	"fmt"

	"github.com/roach88/chronicle/internal/index"
)

// BackfillResult summarizes one backfill run.
type BackfillResult struct {
	Scanned int `json:"scanned"`
	Encoded int `json:"encoded"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Backfiller encodes vectors for indexed events that lack one. Batches are
// committed independently, so an interrupted run resumes where it stopped.
type Backfiller struct {
	Index     *index.Store
	Embedding *Service
	BatchSize int
}

// Run walks the indexed events with content and encodes the missing ones.
// With dryRun set it only counts what a real run would encode.
func (b *Backfiller) Run(ctx context.Context, dryRun bool) (BackfillResult, error) {
	var result BackfillResult
	if !b.Embedding.Available() {
		return result, fmt.Errorf("backfill: no encoder configured")
	}

	batchSize := b.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	store := b.Embedding.Store()
	enc := b.Embedding.Encoder()

	for offset := 0; ; offset += batchSize {
		events, err := b.Index.ContentEvents(ctx, offset, batchSize)
		if err != nil {
			return result, fmt.Errorf("backfill: %w", err)
		}
		if len(events) == 0 {
			break
		}

		var pending []index.EventRow
		for _, ev := range events {
			result.Scanned++
			has, err := store.Has(ctx, ev.EventID)
			if err != nil {
				return result, fmt.Errorf("backfill: %w", err)
			}
			if has {
				result.Skipped++
				continue
			}
			pending = append(pending, ev)
		}

		if len(pending) == 0 {
			continue
		}
		if dryRun {
			result.Encoded += len(pending)
			continue
		}

		texts := make([]string, len(pending))
		for i, ev := range pending {
			texts[i] = ev.Content
		}
		vectors, err := enc.Encode(ctx, texts)
		if err != nil {
			result.Failed += len(pending)
			return result, fmt.Errorf("backfill: %w", err)
		}

		for i, ev := range pending {
			meta := Metadata{
				SessionID: ev.SessionID,
				EventType: ev.Type,
				Content:   ev.Content,
				Timestamp: ev.Timestamp,
			}
			if err := store.Upsert(ctx, ev.EventID, vectors[i], meta); err != nil {
				result.Failed++
				continue
			}
			result.Encoded++
		}
	}

	return result, nil
}
