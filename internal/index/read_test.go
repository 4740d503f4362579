package index

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/roach88/chronicle/internal/event"
)

func TestGetSession_MissingReturnsNil(t *testing.T) {
	s := createTestStore(t)

	sess, err := s.GetSession(context.Background(), "never-synced")
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if sess != nil {
		t.Errorf("got session %+v for unknown id, want nil", sess)
	}
}

func TestListSessions_OrderAndPagination(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, sess := range []Session{
		{ID: "sess-old", StartedAt: "2025-06-01T09:00:00Z"},
		{ID: "sess-mid", StartedAt: "2025-06-02T09:00:00Z"},
		{ID: "sess-new", StartedAt: "2025-06-03T09:00:00Z"},
	} {
		if err := s.UpsertSession(ctx, sess); err != nil {
			t.Fatalf("UpsertSession() failed: %v", err)
		}
	}

	page, err := s.ListSessions(ctx, 2, 0, "", "")
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d sessions, want 2", len(page))
	}
	if page[0].ID != "sess-new" || page[1].ID != "sess-mid" {
		t.Errorf("order = [%s, %s], want newest first", page[0].ID, page[1].ID)
	}

	rest, err := s.ListSessions(ctx, 2, 2, "", "")
	if err != nil {
		t.Fatalf("ListSessions() offset failed: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != "sess-old" {
		t.Errorf("offset page wrong: %+v", rest)
	}
}

func TestSessionStartCWD_FromFirstStart(t *testing.T) {
	s := createTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := createTestEvent("evt-1", "sess-a", event.TypeSessionStart, base, "Session started")
	first.Data = json.RawMessage(`{"source":"startup","cwd":"/work","custom":{"nested":true}}`)
	mustUpsert(t, s, first)

	second := createTestEvent("evt-2", "sess-a", event.TypeSessionStart, base.Add(time.Hour), "Session started")
	second.Data = json.RawMessage(`{"source":"compact","cwd":"/elsewhere"}`)
	mustUpsert(t, s, second)

	cwd, err := s.SessionStartCWD(context.Background(), "sess-a")
	if err != nil {
		t.Fatalf("SessionStartCWD() failed: %v", err)
	}
	if cwd != "/work" {
		t.Errorf("cwd = %q, want /work", cwd)
	}
}

func TestSessionStartCWD_NoStartEvent(t *testing.T) {
	s := createTestStore(t)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mustUpsert(t, s, createTestEvent("evt-1", "sess-a", event.TypeUserPromptSubmit, ts, "hi"))

	cwd, err := s.SessionStartCWD(context.Background(), "sess-a")
	if err != nil {
		t.Fatalf("SessionStartCWD() failed: %v", err)
	}
	if cwd != "" {
		t.Errorf("cwd = %q, want empty", cwd)
	}
}

func TestSessionSpan(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, _, _, ok, err := s.SessionSpan(ctx, "empty")
	if err != nil {
		t.Fatalf("SessionSpan() failed: %v", err)
	}
	if ok {
		t.Error("SessionSpan() ok for session with no events")
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mustUpsert(t, s, createTestEvent("evt_000000000001", "sess-a", event.TypeSessionStart, base, ""))
	mustUpsert(t, s, createTestEvent("evt_000000000002", "sess-a", event.TypeStop, base.Add(time.Hour), ""))

	startedAt, endedAt, count, ok, err := s.SessionSpan(ctx, "sess-a")
	if err != nil {
		t.Fatalf("SessionSpan() failed: %v", err)
	}
	if !ok {
		t.Fatal("SessionSpan() not ok after upserts")
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if startedAt >= endedAt {
		t.Errorf("span not ordered: %s .. %s", startedAt, endedAt)
	}
}

func TestAggregateCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mustUpsert(t, s, createTestEvent("evt_000000000001", "sess-a", event.TypeUserPromptSubmit, base, "one"))
	mustUpsert(t, s, createTestEvent("evt_000000000002", "sess-a", event.TypeUserPromptSubmit, base, "two"))
	mustUpsert(t, s, createTestEvent("evt_000000000003", "sess-a", event.TypeStop, base, ""))
	mustUpsert(t, s, createTestEvent("evt_000000000004", "sess-b", event.TypeStop, base, ""))

	counts, err := s.AggregateCounts(ctx, []string{"sess-a", "sess-b"})
	if err != nil {
		t.Fatalf("AggregateCounts() failed: %v", err)
	}
	if counts["sess-a"][string(event.TypeUserPromptSubmit)] != 2 {
		t.Errorf("sess-a prompts = %d, want 2", counts["sess-a"][string(event.TypeUserPromptSubmit)])
	}
	if counts["sess-a"][string(event.TypeStop)] != 1 {
		t.Errorf("sess-a stops = %d, want 1", counts["sess-a"][string(event.TypeStop)])
	}
	if counts["sess-b"][string(event.TypeStop)] != 1 {
		t.Errorf("sess-b stops = %d, want 1", counts["sess-b"][string(event.TypeStop)])
	}
}

func TestStats_EmptyIndex(t *testing.T) {
	s := createTestStore(t)

	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if st.SessionCount != 0 || st.EventCount != 0 || st.TotalTokens != 0 {
		t.Errorf("empty index stats = %+v, want zeros", st)
	}
}

func TestContentEvents_SkipsEmptyContent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mustUpsert(t, s, createTestEvent("evt_000000000001", "sess-a", event.TypeSessionStart, base, ""))
	mustUpsert(t, s, createTestEvent("evt_000000000002", "sess-a", event.TypeUserPromptSubmit, base.Add(time.Minute), "hello"))

	events, err := s.ContentEvents(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ContentEvents() failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].EventID != "evt_000000000002" {
		t.Errorf("got %s, want evt_000000000002", events[0].EventID)
	}
}

func TestSuggest_PrefixOnly(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mustUpsert(t, s, createTestEvent("evt_000000000001", "sess-a", event.TypeUserPromptSubmit, base, "deploy staging"))
	mustUpsert(t, s, createTestEvent("evt_000000000002", "sess-a", event.TypeUserPromptSubmit, base, "rollback deploy"))

	suggestions, err := s.Suggest(ctx, "deploy", 10)
	if err != nil {
		t.Fatalf("Suggest() failed: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(suggestions))
	}
	if suggestions[0] != "deploy staging" {
		t.Errorf("got %q, want %q", suggestions[0], "deploy staging")
	}
}
