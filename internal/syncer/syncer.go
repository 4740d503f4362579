// Package syncer incrementally replays the JSONL session logs into the
// SQLite index using a persisted per-session byte cursor.
//
// A sync pass reads from the stored cursor to the end of file observed at
// call time, upserts each complete line, advances the cursor, then
// recomputes the session rollup. No cross-process lock is taken: bytes
// appended mid-pass are simply picked up by the next pass.
package syncer

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/roach88/chronicle/internal/eventlog"
	"github.com/roach88/chronicle/internal/fault"
	"github.com/roach88/chronicle/internal/index"
)

// TokenCounter estimates token usage for the session rollups.
type TokenCounter interface {
	Count(text string) int
}

// NewTokenCounter returns a BPE-backed counter, degrading to a length
// heuristic when the encoding cannot be loaded.
func NewTokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return HeuristicCounter{}
	}
	return bpeCounter{enc: enc}
}

type bpeCounter struct {
	enc *tiktoken.Tiktoken
}

func (c bpeCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// HeuristicCounter approximates tokens as one per four bytes of text.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(text string) int {
	return len(text) / 4
}

// Engine replays session logs into the index.
type Engine struct {
	log     *eventlog.Log
	idx     *index.Store
	counter TokenCounter
}

// New creates a sync engine. A nil counter selects the default.
func New(log *eventlog.Log, idx *index.Store, counter TokenCounter) *Engine {
	if counter == nil {
		counter = NewTokenCounter()
	}
	return &Engine{log: log, idx: idx, counter: counter}
}

// Sync replays one session's log from its cursor to the end of file and
// returns the count of newly synced events. Calling Sync again with no
// intervening appends syncs nothing.
//
// An unparseable line aborts this session's pass: the events before it are
// indexed but the cursor is not advanced past the last good state, so the
// next cycle retries from there.
func (e *Engine) Sync(ctx context.Context, sessionID string) (int, error) {
	pos, err := e.idx.SyncPosition(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("sync %s: %w", sessionID, err)
	}
	size, err := e.log.Size(sessionID)
	if err != nil {
		return 0, fmt.Errorf("sync %s: %w", sessionID, err)
	}
	if size <= pos {
		return 0, nil
	}

	events, end, readErr := e.log.ReadFrom(sessionID, pos)

	synced := 0
	for _, ev := range events {
		if err := e.idx.UpsertEvent(ctx, ev); err != nil {
			return synced, fmt.Errorf("sync %s: %w", sessionID, err)
		}
		synced++
	}

	if readErr != nil {
		return synced, fault.Wrap(fault.SyncSchema, "sync "+sessionID, readErr)
	}

	if err := e.idx.SetSyncPosition(ctx, sessionID, end); err != nil {
		return synced, fmt.Errorf("sync %s: %w", sessionID, err)
	}

	if synced > 0 {
		if err := e.rollup(ctx, sessionID); err != nil {
			return synced, fmt.Errorf("sync %s: %w", sessionID, err)
		}
	}
	return synced, nil
}

// SyncAll replays every known session and sums the newly synced counts.
// Safe to run concurrently with ongoing appends.
func (e *Engine) SyncAll(ctx context.Context) (int, error) {
	sessions, err := e.log.ListSessions()
	if err != nil {
		return 0, fmt.Errorf("sync all: %w", err)
	}

	total := 0
	for _, id := range sessions {
		n, err := e.Sync(ctx, id)
		total += n
		if err != nil {
			if fault.Is(err, fault.SyncSchema) {
				// Fatal only for that session's pass; keep going.
				continue
			}
			return total, err
		}
	}
	return total, nil
}

// rollup recomputes the session record by folding over its indexed events.
func (e *Engine) rollup(ctx context.Context, sessionID string) error {
	startedAt, endedAt, count, ok, err := e.idx.SessionSpan(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	cwd, err := e.idx.SessionStartCWD(ctx, sessionID)
	if err != nil {
		return err
	}

	contents, err := e.idx.SessionContents(ctx, sessionID)
	if err != nil {
		return err
	}
	tokens := 0
	for _, c := range contents {
		tokens += e.counter.Count(c)
	}

	sess := index.Session{
		ID:          sessionID,
		StartedAt:   startedAt,
		EndedAt:     endedAt,
		CWD:         cwd,
		EventCount:  count,
		TotalTokens: tokens,
	}
	if err := e.idx.UpsertSession(ctx, sess); err != nil {
		return err
	}

	if len(startedAt) >= 10 {
		if err := e.idx.RefreshDailyIndex(ctx, startedAt[:10]); err != nil {
			return err
		}
	}
	return nil
}
