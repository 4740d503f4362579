package index

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/chronicle/internal/event"
)

// createTestStore creates a new index at a temp path for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvent creates an event with minimal required fields.
func createTestEvent(id, sessionID string, typ event.Type, ts time.Time, content string) event.Event {
	return event.Event{
		ID:        id,
		Type:      typ,
		TS:        ts,
		SessionID: sessionID,
		Data:      json.RawMessage(`{}`),
		Content:   content,
	}
}

func mustUpsert(t *testing.T, s *Store, ev event.Event) {
	t.Helper()
	if err := s.UpsertEvent(context.Background(), ev); err != nil {
		t.Fatalf("UpsertEvent(%s) failed: %v", ev.ID, err)
	}
}
