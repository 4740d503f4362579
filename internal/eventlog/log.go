package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/tidwall/gjson"

	"github.com/roach88/chronicle/internal/event"
)

// Log is a handle to the session logs under one storage root.
type Log struct {
	dir string
}

// Open prepares the sessions directory under the given storage root.
func Open(root string) (*Log, error) {
	dir := filepath.Join(root, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &Log{dir: dir}, nil
}

// Path returns the JSONL file path for a session.
func (l *Log) Path(sessionID string) string {
	return filepath.Join(l.dir, sessionID+".jsonl")
}

// MarkdownPath returns the derived markdown projection path for a session.
func (l *Log) MarkdownPath(sessionID string) string {
	return filepath.Join(l.dir, sessionID+".md")
}

// Append writes a batch of events to a session's log under an exclusive
// file lock. The batch is written in a single operation so its events become
// visible together.
func (l *Log) Append(sessionID string, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, ev := range events {
		line, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("append events: marshal %s: %w", ev.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	path := l.Path(sessionID)
	lock := flock.New(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("append events: lock %s: %w", path, err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("append events: open %s: %w", path, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("append events: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("append events: close %s: %w", path, err)
	}
	return nil
}

// Read returns all events of a session in append order. A missing session
// yields an empty slice. A torn trailing fragment is ignored.
func (l *Log) Read(sessionID string) ([]event.Event, error) {
	events, _, err := l.ReadFrom(sessionID, 0)
	return events, err
}

// ReadFrom reads events starting at the given byte offset, consuming only
// complete lines. It returns the parsed events and the offset just past the
// last line consumed, so callers can resume where they left off.
//
// On an unparseable line, the events decoded so far are returned together
// with the offset of the end of the last good line and the parse error.
func (l *Log) ReadFrom(sessionID string, offset int64) ([]event.Event, int64, error) {
	f, err := os.Open(l.Path(sessionID))
	if os.IsNotExist(err) {
		return []event.Event{}, offset, nil
	}
	if err != nil {
		return nil, offset, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, offset, fmt.Errorf("read session %s: seek: %w", sessionID, err)
		}
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, offset, fmt.Errorf("read session %s: %w", sessionID, err)
	}

	// Only complete lines count; a trailing fragment is not yet written.
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return []event.Event{}, offset, nil
	}
	data = data[:end+1]

	events := []event.Event{}
	pos := offset
	for len(data) > 0 {
		nl := bytes.IndexByte(data, '\n')
		line := data[:nl]
		data = data[nl+1:]

		if len(bytes.TrimSpace(line)) == 0 {
			pos += int64(nl) + 1
			continue
		}

		var ev event.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return events, pos, fmt.Errorf("read session %s: parse line at offset %d: %w", sessionID, pos, err)
		}
		events = append(events, ev)
		pos += int64(nl) + 1
	}
	return events, pos, nil
}

// ReadLines returns a session's complete raw lines, blank lines skipped.
// Used by the reconciler and the media correlator, which operate on raw
// lines so untouched records are preserved byte for byte.
//
// The read takes no lock. A caller that rewrites the file from this
// snapshot loses any lines appended between the read and WriteLines
// acquiring the lock; run rewrites only while the session is quiescent.
func (l *Log) ReadLines(sessionID string) ([]string, error) {
	data, err := os.ReadFile(l.Path(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, nil
	}

	var lines []string
	for _, line := range strings.Split(string(data[:end]), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// WriteLines replaces a session's log content under the exclusive lock.
// The lock covers only the write itself, not the preceding ReadLines; see
// the window documented there.
func (l *Log) WriteLines(sessionID string, lines []string) error {
	path := l.Path(sessionID)
	lock := flock.New(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("rewrite session %s: lock: %w", sessionID, err)
	}
	defer lock.Unlock()

	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("rewrite session %s: %w", sessionID, err)
	}
	return nil
}

// AgentSessionNum derives the agent session number for an event about to be
// appended. The count is computed from the log content itself rather than a
// persisted counter, so it cannot diverge from the log after a crash:
// existing events whose source marker is compact or clear are counted, plus
// one if the incoming event carries such a marker itself.
func (l *Log) AgentSessionNum(sessionID, source string) int {
	lines, err := l.ReadLines(sessionID)
	if err != nil {
		return 0
	}
	if lines == nil {
		if event.IsResetMarker(source) {
			return 1
		}
		return 0
	}

	count := 0
	for _, line := range lines {
		if event.IsResetMarker(gjson.Get(line, "data.source").String()) {
			count++
		}
	}
	if event.IsResetMarker(source) {
		count++
	}
	return count
}

// ListSessions returns the IDs of all sessions with a log file, sorted.
func (l *Log) ListSessions() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, strings.TrimSuffix(filepath.Base(m), ".jsonl"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Size returns the current byte length of a session's log, 0 if missing.
func (l *Log) Size(sessionID string) (int64, error) {
	info, err := os.Stat(l.Path(sessionID))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat session %s: %w", sessionID, err)
	}
	return info.Size(), nil
}
