package eventlog

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/roach88/chronicle/internal/event"
)

func createTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return l
}

func createTestEvent(id, sessionID string, typ event.Type, content string) event.Event {
	return event.Event{
		ID:        id,
		Type:      typ,
		TS:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		SessionID: sessionID,
		Data:      json.RawMessage(`{}`),
		Content:   content,
	}
}

func TestAppend_CreatesLogFile(t *testing.T) {
	l := createTestLog(t)

	ev := createTestEvent("evt_000000000001", "sess-a", event.TypeUserPromptSubmit, "hello")
	if err := l.Append("sess-a", ev); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	if _, err := os.Stat(l.Path("sess-a")); err != nil {
		t.Errorf("log file was not created: %v", err)
	}
}

func TestAppend_BatchIsOneWrite(t *testing.T) {
	l := createTestLog(t)

	stop := createTestEvent("evt_000000000001", "sess-a", event.TypeStop, "Assistant finished responding")
	resp := createTestEvent("evt_000000000002", "sess-a", event.TypeAssistantResponse, "the answer")
	if err := l.Append("sess-a", stop, resp); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	events, err := l.Read("sess-a")
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != event.TypeStop || events[1].Type != event.TypeAssistantResponse {
		t.Errorf("batch order not preserved: %s, %s", events[0].Type, events[1].Type)
	}
}

func TestRead_MissingSession(t *testing.T) {
	l := createTestLog(t)

	events, err := l.Read("never-seen")
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events for missing session, want 0", len(events))
	}
}

func TestReadFrom_ResumesAtOffset(t *testing.T) {
	l := createTestLog(t)

	first := createTestEvent("evt_000000000001", "sess-a", event.TypeSessionStart, "")
	if err := l.Append("sess-a", first); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	_, pos, err := l.ReadFrom("sess-a", 0)
	if err != nil {
		t.Fatalf("ReadFrom() failed: %v", err)
	}

	second := createTestEvent("evt_000000000002", "sess-a", event.TypeUserPromptSubmit, "hi there")
	if err := l.Append("sess-a", second); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	events, end, err := l.ReadFrom("sess-a", pos)
	if err != nil {
		t.Fatalf("ReadFrom() failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events after offset, want 1", len(events))
	}
	if events[0].ID != "evt_000000000002" {
		t.Errorf("got event %s, want evt_000000000002", events[0].ID)
	}

	size, err := l.Size("sess-a")
	if err != nil {
		t.Fatalf("Size() failed: %v", err)
	}
	if end != size {
		t.Errorf("end offset %d does not match file size %d", end, size)
	}
}

func TestReadFrom_IgnoresTornTrailingLine(t *testing.T) {
	l := createTestLog(t)

	ev := createTestEvent("evt_000000000001", "sess-a", event.TypeUserPromptSubmit, "hello")
	if err := l.Append("sess-a", ev); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	// Simulate a torn write: a fragment with no trailing newline.
	f, err := os.OpenFile(l.Path("sess-a"), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := f.WriteString(`{"id":"evt_tor`); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	f.Close()

	events, err := l.Read("sess-a")
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1 (fragment must be ignored)", len(events))
	}
}

func TestReadFrom_StopsAtMalformedLine(t *testing.T) {
	l := createTestLog(t)

	good := createTestEvent("evt_000000000001", "sess-a", event.TypeUserPromptSubmit, "hello")
	if err := l.Append("sess-a", good); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	goodSize, err := l.Size("sess-a")
	if err != nil {
		t.Fatalf("Size() failed: %v", err)
	}

	f, err := os.OpenFile(l.Path("sess-a"), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := f.WriteString("not json at all\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	f.Close()

	events, pos, err := l.ReadFrom("sess-a", 0)
	if err == nil {
		t.Fatal("ReadFrom() should report the malformed line")
	}
	if len(events) != 1 {
		t.Errorf("got %d events before the malformed line, want 1", len(events))
	}
	if pos != goodSize {
		t.Errorf("cursor %d should stop at end of last good line %d", pos, goodSize)
	}
}

func TestWriteLines_RoundTrips(t *testing.T) {
	l := createTestLog(t)

	lines := []string{
		`{"id":"evt_000000000001","type":"SessionStart"}`,
		`{"id":"evt_000000000002","type":"Stop"}`,
	}
	if err := l.WriteLines("sess-a", lines); err != nil {
		t.Fatalf("WriteLines() failed: %v", err)
	}

	got, err := l.ReadLines("sess-a")
	if err != nil {
		t.Fatalf("ReadLines() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
	for i := range lines {
		if got[i] != lines[i] {
			t.Errorf("line %d changed: got %q, want %q", i, got[i], lines[i])
		}
	}
}

func TestAgentSessionNum_MissingFile(t *testing.T) {
	l := createTestLog(t)

	if n := l.AgentSessionNum("new-session", ""); n != 0 {
		t.Errorf("missing file without marker: got %d, want 0", n)
	}
	if n := l.AgentSessionNum("new-session", "compact"); n != 1 {
		t.Errorf("missing file with compact marker: got %d, want 1", n)
	}
}

func TestAgentSessionNum_CountsResetMarkers(t *testing.T) {
	l := createTestLog(t)

	lines := []string{
		`{"id":"evt_000000000001","type":"SessionStart","data":{"source":"startup"}}`,
		`{"id":"evt_000000000002","type":"SessionStart","data":{"source":"compact"}}`,
		`{"id":"evt_000000000003","type":"SessionStart","data":{"source":"clear"}}`,
	}
	if err := l.WriteLines("sess-a", lines); err != nil {
		t.Fatalf("WriteLines() failed: %v", err)
	}

	if n := l.AgentSessionNum("sess-a", ""); n != 2 {
		t.Errorf("existing markers without incoming: got %d, want 2", n)
	}
	if n := l.AgentSessionNum("sess-a", "compact"); n != 3 {
		t.Errorf("existing markers plus incoming: got %d, want 3", n)
	}
}

func TestListSessions_Sorted(t *testing.T) {
	l := createTestLog(t)

	for _, id := range []string{"zeta", "alpha", "mid"} {
		ev := createTestEvent("evt_000000000001", id, event.TypeSessionStart, "")
		if err := l.Append(id, ev); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	ids, err := l.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(ids) != len(want) {
		t.Fatalf("got %d sessions, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("session %d: got %s, want %s", i, ids[i], want[i])
		}
	}
}
