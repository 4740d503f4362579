package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/chronicle/internal/event"
)

// Session is the rollup row derived by folding over a session's events. A
// session has no existence before its first event is synced.
type Session struct {
	ID          string   `json:"id"`
	StartedAt   string   `json:"started_at"`
	EndedAt     string   `json:"ended_at,omitempty"`
	CWD         string   `json:"cwd,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Tags        []string `json:"tags"`
	EventCount  int      `json:"event_count"`
	TotalTokens int      `json:"total_tokens"`
}

// Stats summarizes the whole index.
type Stats struct {
	SessionCount int    `json:"session_count"`
	EventCount   int    `json:"event_count"`
	TotalTokens  int    `json:"total_tokens"`
	FirstSession string `json:"first_session,omitempty"`
	LastSession  string `json:"last_session,omitempty"`
}

// EventRow is a lightweight read model for listing and search results.
type EventRow struct {
	EventID   string  `json:"event_id"`
	SessionID string  `json:"session_id"`
	Type      string  `json:"type"`
	Timestamp string  `json:"timestamp"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
}

// GetSession returns a session rollup, or nil if not yet synced.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, COALESCE(ended_at, ''), COALESCE(cwd, ''),
		       COALESCE(summary, ''), tags, event_count, total_tokens
		FROM sessions WHERE id = ?
	`, sessionID)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns session rollups ordered by start time descending,
// with pagination and optional date bounds on started_at.
func (s *Store) ListSessions(ctx context.Context, limit, offset int, dateFrom, dateTo string) ([]Session, error) {
	query := `
		SELECT id, started_at, COALESCE(ended_at, ''), COALESCE(cwd, ''),
		       COALESCE(summary, ''), tags, event_count, total_tokens
		FROM sessions
	`
	var conds []string
	var args []any
	if dateFrom != "" {
		conds = append(conds, "started_at >= ?")
		args = append(args, dateFrom)
	}
	if dateTo != "" {
		conds = append(conds, "started_at <= ?")
		args = append(args, dateTo)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// AggregateCounts returns per-session, per-type event counts for a batch of
// sessions in a single query.
func (s *Store) AggregateCounts(ctx context.Context, sessionIDs []string) (map[string]map[string]int, error) {
	result := map[string]map[string]int{}
	if len(sessionIDs) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sessionIDs)), ",")
	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT session_id, type, COUNT(*)
		FROM events
		WHERE session_id IN (%s)
		GROUP BY session_id, type
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID, eventType string
		var count int
		if err := rows.Scan(&sessionID, &eventType, &count); err != nil {
			return nil, fmt.Errorf("aggregate counts: %w", err)
		}
		if result[sessionID] == nil {
			result[sessionID] = map[string]int{}
		}
		result[sessionID][eventType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregate counts: %w", err)
	}
	return result, nil
}

// Stats returns whole-index statistics.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT id),
		       COALESCE(SUM(event_count), 0),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(MIN(started_at), ''),
		       COALESCE(MAX(started_at), '')
		FROM sessions
	`).Scan(&st.SessionCount, &st.EventCount, &st.TotalTokens, &st.FirstSession, &st.LastSession)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// SyncPosition returns the stored byte cursor for a session, 0 if unseen.
func (s *Store) SyncPosition(ctx context.Context, sessionID string) (int64, error) {
	var pos int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_position FROM sync_state WHERE session_id = ?`, sessionID,
	).Scan(&pos)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sync position: %w", err)
	}
	return pos, nil
}

// SessionSpan returns a session's min/max timestamp and event count from the
// mirrored events. ok is false when no events are indexed yet.
func (s *Store) SessionSpan(ctx context.Context, sessionID string) (startedAt, endedAt string, count int, ok bool, err error) {
	var minTS, maxTS sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT MIN(ts), MAX(ts), COUNT(*) FROM events WHERE session_id = ?
	`, sessionID).Scan(&minTS, &maxTS, &count)
	if err != nil {
		return "", "", 0, false, fmt.Errorf("session span: %w", err)
	}
	if !minTS.Valid {
		return "", "", 0, false, nil
	}
	return minTS.String, maxTS.String, count, true, nil
}

// SessionStartCWD returns the working directory recorded by the session's
// first SessionStart event, empty if none.
func (s *Store) SessionStartCWD(ctx context.Context, sessionID string) (string, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM events
		WHERE session_id = ? AND type = 'SessionStart'
		ORDER BY ts LIMIT 1
	`, sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session start cwd: %w", err)
	}
	start, err := event.Decode[event.SessionStartData](event.Event{
		Type: event.TypeSessionStart,
		Data: json.RawMessage(data),
	})
	if err != nil {
		return "", fmt.Errorf("session start cwd: %w", err)
	}
	return start.CWD, nil
}

// SessionContents returns the non-empty content of every indexed event in a
// session, in timestamp order. Used for the token rollup.
func (s *Store) SessionContents(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content FROM events
		WHERE session_id = ? AND content IS NOT NULL AND content != ''
		ORDER BY ts
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session contents: %w", err)
	}
	defer rows.Close()

	contents := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("session contents: %w", err)
		}
		contents = append(contents, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session contents: %w", err)
	}
	return contents, nil
}

// RecentEvents returns the newest indexed events, optionally restricted to
// the given types.
func (s *Store) RecentEvents(ctx context.Context, limit int, types []string) ([]EventRow, error) {
	query := `
		SELECT id, session_id, type, ts, COALESCE(content, '')
		FROM events
	`
	var args []any
	if len(types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(types)), ",")
		query += fmt.Sprintf(" WHERE type IN (%s)", placeholders)
		for _, t := range types {
			args = append(args, t)
		}
	}
	query += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	events := []EventRow{}
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.EventID, &e.SessionID, &e.Type, &e.Timestamp, &e.Content); err != nil {
			return nil, fmt.Errorf("recent events: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return events, nil
}

// ContentEvents pages through every indexed event with non-empty content in
// timestamp order. Used by the embedding backfill.
func (s *Store) ContentEvents(ctx context.Context, offset, limit int) ([]EventRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, type, ts, content
		FROM events
		WHERE content IS NOT NULL AND content != ''
		ORDER BY ts, id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("content events: %w", err)
	}
	defer rows.Close()

	events := []EventRow{}
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.EventID, &e.SessionID, &e.Type, &e.Timestamp, &e.Content); err != nil {
			return nil, fmt.Errorf("content events: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("content events: %w", err)
	}
	return events, nil
}

// Suggest returns distinct event contents starting with the given prefix.
func (s *Store) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT content FROM events
		WHERE content LIKE ? || '%'
		LIMIT ?
	`, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	defer rows.Close()

	suggestions := []string{}
	for rows.Next() {
		var c sql.NullString
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("suggest: %w", err)
		}
		if c.Valid && c.String != "" {
			suggestions = append(suggestions, c.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	return suggestions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*Session, error) {
	var sess Session
	var tagsJSON string
	if err := r.Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.CWD,
		&sess.Summary, &tagsJSON, &sess.EventCount, &sess.TotalTokens); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &sess.Tags); err != nil {
		sess.Tags = []string{}
	}
	if sess.Tags == nil {
		sess.Tags = []string{}
	}
	return &sess, nil
}
