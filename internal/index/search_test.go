package index

import (
	"context"
	"testing"
	"time"

	"github.com/roach88/chronicle/internal/event"
)

func TestSearch_FindsUniqueToken(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mustUpsert(t, s, createTestEvent("evt_000000000001", "sess-a", event.TypeUserPromptSubmit,
		base, "fix the flux capacitor wiring"))
	mustUpsert(t, s, createTestEvent("evt_000000000002", "sess-a", event.TypeUserPromptSubmit,
		base.Add(time.Minute), "unrelated request about tests"))

	results, err := s.Search(ctx, Query{Text: "capacitor", Limit: 10})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].EventID != "evt_000000000001" {
		t.Errorf("got event %s, want evt_000000000001", results[0].EventID)
	}
}

func TestSearch_TypeFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mustUpsert(t, s, createTestEvent("evt_000000000001", "sess-a", event.TypeUserPromptSubmit,
		base, "deploy the service"))
	mustUpsert(t, s, createTestEvent("evt_000000000002", "sess-a", event.TypeAssistantResponse,
		base.Add(time.Minute), "deploy completed without incident"))

	results, err := s.Search(ctx, Query{
		Text:  "deploy",
		Limit: 10,
		Types: []string{string(event.TypeAssistantResponse)},
	})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Type != string(event.TypeAssistantResponse) {
		t.Errorf("got type %s, want AssistantResponse", results[0].Type)
	}
}

func TestSearch_DateBounds(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustUpsert(t, s, createTestEvent("evt_000000000001", "sess-a", event.TypeUserPromptSubmit,
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), "migration plan"))
	mustUpsert(t, s, createTestEvent("evt_000000000002", "sess-a", event.TypeUserPromptSubmit,
		time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC), "migration retro"))

	results, err := s.Search(ctx, Query{
		Text:     "migration",
		Limit:    10,
		DateFrom: "2025-06-03",
	})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].EventID != "evt_000000000002" {
		t.Errorf("got event %s, want evt_000000000002", results[0].EventID)
	}
}

func TestSearch_NonNegativeScores(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustUpsert(t, s, createTestEvent("evt_000000000001", "sess-a", event.TypeUserPromptSubmit,
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), "score inspection target"))

	results, err := s.Search(ctx, Query{Text: "inspection", Limit: 10})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	for _, r := range results {
		if r.Score < 0 {
			t.Errorf("event %s has negative score %f", r.EventID, r.Score)
		}
	}
}

func TestSanitizeMatch(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello", `"hello"`},
		{"hello world", `"hello" "world"`},
		{`say "hi"`, `"say" """hi"""`},
		{"", `""`},
		{"   ", `""`},
		{"AND OR NOT", `"AND" "OR" "NOT"`},
	}
	for _, tt := range tests {
		if got := sanitizeMatch(tt.in); got != tt.want {
			t.Errorf("sanitizeMatch(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
