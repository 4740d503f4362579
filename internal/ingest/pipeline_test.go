package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/event"
	"github.com/roach88/chronicle/internal/eventlog"
	"github.com/roach88/chronicle/internal/index"
	"github.com/roach88/chronicle/internal/syncer"
)

func newTestPipeline(t *testing.T) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	p := &Pipeline{
		ResolveRoot: func(string) string { return root },
		IDs:         &event.SequenceGenerator{},
		Now:         func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return p, root
}

func readSession(t *testing.T, root, sessionID string) []event.Event {
	t.Helper()
	log, err := eventlog.Open(root)
	require.NoError(t, err)
	events, err := log.Read(sessionID)
	require.NoError(t, err)
	return events
}

func TestProcess_AppendsEvent(t *testing.T) {
	p, root := newTestPipeline(t)

	ev, err := p.Process("UserPromptSubmit",
		[]byte(`{"session_id":"sess-a","data":{"prompt":"hello"}}`))
	require.NoError(t, err)
	assert.Equal(t, "evt_000000000001", ev.ID)
	assert.Equal(t, "hello", ev.Content)

	events := readSession(t, root, "sess-a")
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeUserPromptSubmit, events[0].Type)
}

func TestProcess_InvalidEnvelopeReturnsError(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.Process("UserPromptSubmit", []byte(`{broken`))
	require.Error(t, err)
}

func TestProcess_AgentSessionNumSequence(t *testing.T) {
	p, root := newTestPipeline(t)

	// Plain start, then a compact resume, then ordinary activity: numbers
	// run 0, 1, 1.
	first, err := p.Process("SessionStart",
		[]byte(`{"session_id":"sess-a","data":{"source":"startup"}}`))
	require.NoError(t, err)
	assert.Equal(t, 0, first.AgentSessionNum)

	second, err := p.Process("SessionStart",
		[]byte(`{"session_id":"sess-a","data":{"source":"compact"}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, second.AgentSessionNum)

	third, err := p.Process("UserPromptSubmit",
		[]byte(`{"session_id":"sess-a","data":{"prompt":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, third.AgentSessionNum)

	events := readSession(t, root, "sess-a")
	require.Len(t, events, 3)
}

func TestProcess_MissingSessionIDGoesToUnknown(t *testing.T) {
	p, root := newTestPipeline(t)

	_, err := p.Process("Notification", []byte(`{"data":{"message":"ping"}}`))
	require.NoError(t, err)

	events := readSession(t, root, "unknown")
	require.Len(t, events, 1)
	assert.Equal(t, "ping", events[0].Content)
}

func TestProcess_FlattensBlockPrompt(t *testing.T) {
	p, root := newTestPipeline(t)

	img := `{"type":"image","source":{"type":"base64","media_type":"image/png","data":"aW1n"}}`
	raw := fmt.Sprintf(`{"session_id":"sess-a","data":{"prompt":[{"type":"text","text":"see image"},%s]}}`, img)

	ev, err := p.Process("UserPromptSubmit", []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "see image", ev.Content)
	require.Len(t, ev.Images, 1)

	// The stored image exists under the resolved root.
	if _, statErr := os.Stat(filepath.Join(root, ev.Images[0].Path)); statErr != nil {
		t.Errorf("extracted image missing: %v", statErr)
	}

	events := readSession(t, root, "sess-a")
	require.Len(t, events, 1)
	assert.Equal(t, "see image", event.ExtractContent(events[0].Type, events[0].Data))
}

func TestProcess_StopAppendsDerivedResponse(t *testing.T) {
	p, root := newTestPipeline(t)

	transcript := filepath.Join(t.TempDir(), "t.jsonl")
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"final words"}]}}`
	require.NoError(t, os.WriteFile(transcript, []byte(line+"\n"), 0o644))

	raw := fmt.Sprintf(`{"session_id":"sess-a","data":{"transcript_path":"%s"}}`, transcript)
	stop, err := p.Process("Stop", []byte(raw))
	require.NoError(t, err)

	events := readSession(t, root, "sess-a")
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeStop, events[0].Type)
	assert.Equal(t, event.TypeAssistantResponse, events[1].Type)
	assert.Equal(t, "final words", events[1].Content)
	// Derived event shares the Stop's timestamp and session number.
	assert.True(t, stop.TS.Equal(events[1].TS))
	assert.Equal(t, stop.AgentSessionNum, events[1].AgentSessionNum)
}

func TestProcess_StopScenarioWithDefaultIDs(t *testing.T) {
	// Uses the production ID generator: the Stop and its derived response
	// are minted in the same millisecond and must still get distinct IDs,
	// or the index collapses them into one row.
	root := t.TempDir()
	p := New()
	p.ResolveRoot = func(string) string { return root }

	transcript := filepath.Join(t.TempDir(), "t.jsonl")
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"done"}]}}`
	require.NoError(t, os.WriteFile(transcript, []byte(line+"\n"), 0o644))

	raw := fmt.Sprintf(`{"session_id":"sess-a","data":{"transcript_path":"%s"}}`, transcript)
	_, err := p.Process("Stop", []byte(raw))
	require.NoError(t, err)

	events := readSession(t, root, "sess-a")
	require.Len(t, events, 2)
	assert.NotEqual(t, events[0].ID, events[1].ID)

	log, err := eventlog.Open(root)
	require.NoError(t, err)
	idx, err := index.Open(filepath.Join(root, "index.db"))
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	synced, err := syncer.New(log, idx, syncer.HeuristicCounter{}).Sync(ctx, "sess-a")
	require.NoError(t, err)
	assert.Equal(t, 2, synced)

	sess, err := idx.GetSession(ctx, "sess-a")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 2, sess.EventCount)

	st, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.EventCount)
}

func TestProcess_StopWithMissingTranscriptStillLogsStop(t *testing.T) {
	p, root := newTestPipeline(t)

	raw := `{"session_id":"sess-a","data":{"transcript_path":"/nonexistent/t.jsonl"}}`
	_, err := p.Process("Stop", []byte(raw))
	require.NoError(t, err)

	events := readSession(t, root, "sess-a")
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeStop, events[0].Type)
}

func TestProcess_LifecycleEventWritesMarkdown(t *testing.T) {
	p, root := newTestPipeline(t)

	_, err := p.Process("SessionStart",
		[]byte(`{"session_id":"sess-a","data":{"source":"startup","model":"m-1"}}`))
	require.NoError(t, err)

	log, err := eventlog.Open(root)
	require.NoError(t, err)
	if _, statErr := os.Stat(log.MarkdownPath("sess-a")); statErr != nil {
		t.Errorf("markdown projection missing: %v", statErr)
	}
}

func TestProcess_ToolEventDoesNotWriteMarkdown(t *testing.T) {
	p, root := newTestPipeline(t)

	raw := `{"session_id":"sess-a","data":{"tool_name":"Bash","tool_input":{"command":"ls"}}}`
	_, err := p.Process("PreToolUse", []byte(raw))
	require.NoError(t, err)

	log, err := eventlog.Open(root)
	require.NoError(t, err)
	_, statErr := os.Stat(log.MarkdownPath("sess-a"))
	assert.True(t, os.IsNotExist(statErr))
}
