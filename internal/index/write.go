package index

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/chronicle/internal/event"
)

// UpsertEvent inserts or replaces an event row and, when the event carries
// content, its full-text entry. Replaying the same event converges to the
// same row, so sync passes can safely overlap.
//
// Content is NFC-normalized at this boundary so equivalent Unicode spellings
// tokenize identically.
func (s *Store) UpsertEvent(ctx context.Context, ev event.Event) error {
	data := string(ev.Data)
	if data == "" {
		data = "{}"
	}
	content := norm.NFC.String(ev.Content)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO events
		(id, session_id, type, ts, agent_session_num, data, content)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		ev.SessionID,
		string(ev.Type),
		ev.TS.UTC().Format(time.RFC3339Nano),
		ev.AgentSessionNum,
		data,
		nullableString(content),
	)
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}

	if content != "" && s.fts {
		// FTS5 enforces no uniqueness; delete-then-insert keeps the
		// full-text entry in step with the event row.
		if _, err := tx.ExecContext(ctx, `DELETE FROM events_fts WHERE event_id = ?`, ev.ID); err != nil {
			return fmt.Errorf("upsert event: clear fts: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events_fts (event_id, session_id, type, content)
			VALUES (?, ?, ?, ?)
		`, ev.ID, ev.SessionID, string(ev.Type), content)
		if err != nil {
			return fmt.Errorf("upsert event: fts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert event: commit: %w", err)
	}
	return nil
}

// UpsertSession inserts or replaces a session rollup.
func (s *Store) UpsertSession(ctx context.Context, sess Session) error {
	tags := sess.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("upsert session: marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions
		(id, started_at, ended_at, cwd, summary, tags, event_count, total_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sess.ID,
		sess.StartedAt,
		nullableString(sess.EndedAt),
		nullableString(sess.CWD),
		nullableString(sess.Summary),
		string(tagsJSON),
		sess.EventCount,
		sess.TotalTokens,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// SetSyncPosition records the byte offset of a session's log already
// reflected in the index. The cursor is monotonic non-decreasing.
func (s *Store) SetSyncPosition(ctx context.Context, sessionID string, position int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_state (session_id, last_position, last_sync)
		VALUES (?, ?, ?)
	`, sessionID, position, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set sync position: %w", err)
	}
	return nil
}

// RefreshDailyIndex recomputes the activity rollup for one calendar day
// (UTC, YYYY-MM-DD) from the sessions started that day.
func (s *Store) RefreshDailyIndex(ctx context.Context, date string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO daily_indices (date, session_count, event_count, total_tokens)
		SELECT ?,
		       COUNT(*),
		       COALESCE(SUM(event_count), 0),
		       COALESCE(SUM(total_tokens), 0)
		FROM sessions
		WHERE started_at >= ? AND started_at < ?
	`, date, date, nextDay(date))
	if err != nil {
		return fmt.Errorf("refresh daily index: %w", err)
	}
	return nil
}

func nextDay(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date + "~" // lexicographically past any timestamp of that day
	}
	return t.AddDate(0, 0, 1).Format("2006-01-02")
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
