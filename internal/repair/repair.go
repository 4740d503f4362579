// Package repair backfills event-log gaps caused by out-of-band capture:
// Stop events whose derived AssistantResponse was never appended, usually
// because the host crashed between writing the transcript and the log.
//
// Repair operates on raw log lines so records it does not touch are
// preserved byte for byte.
package repair

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/roach88/chronicle/internal/event"
	"github.com/roach88/chronicle/internal/eventlog"
	"github.com/roach88/chronicle/internal/media"
)

// Gap is a Stop event with no AssistantResponse on the following line.
type Gap struct {
	Index            int    `json:"index"`
	TranscriptPath   string `json:"transcript_path"`
	TranscriptExists bool   `json:"transcript_exists"`
}

// Summary reports the outcome of repairing one session.
type Summary struct {
	Session  string `json:"session"`
	Missing  int    `json:"missing"`
	Repaired int    `json:"repaired"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// Reconciler detects and repairs response gaps in session logs.
type Reconciler struct {
	log *eventlog.Log
}

func New(log *eventlog.Log) *Reconciler {
	return &Reconciler{log: log}
}

// Analyze scans one session for Stop events whose immediately following
// line is not an AssistantResponse. Only Stops that recorded a transcript
// path are reported; without one there is nothing to repair from.
func (r *Reconciler) Analyze(sessionID string) ([]Gap, error) {
	lines, err := r.log.ReadLines(sessionID)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", sessionID, err)
	}

	gaps := []Gap{}
	for i, line := range lines {
		if gjson.Get(line, "type").String() != string(event.TypeStop) {
			continue
		}
		transcriptPath := gjson.Get(line, "data.transcript_path").String()
		if transcriptPath == "" {
			continue
		}

		hasResponse := i+1 < len(lines) &&
			gjson.Get(lines[i+1], "type").String() == string(event.TypeAssistantResponse)
		if hasResponse {
			continue
		}

		_, statErr := os.Stat(transcriptPath)
		gaps = append(gaps, Gap{
			Index:            i,
			TranscriptPath:   transcriptPath,
			TranscriptExists: statErr == nil,
		})
	}
	return gaps, nil
}

// repairedEvent is the synthesized AssistantResponse line. The timestamp is
// carried over from the Stop event verbatim.
type repairedEvent struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	TS              json.RawMessage `json:"ts"`
	SessionID       string          `json:"session_id"`
	AgentSessionNum int64           `json:"agent_session_num"`
	Data            responseData    `json:"data"`
	Content         string          `json:"content"`
}

type responseData struct {
	Response string `json:"response"`
}

// Repair inserts the missing AssistantResponse events for one session.
// Gaps are processed in reverse index order so earlier indices stay valid
// while inserting. A response byte-identical to the previously inserted one
// is skipped: overlapping transcripts would otherwise duplicate it. Running
// Repair on an already-repaired log is a no-op.
//
// With dryRun set, counts are reported and the log is left untouched.
func (r *Reconciler) Repair(sessionID string, dryRun bool) (Summary, error) {
	summary := Summary{Session: sessionID}

	gaps, err := r.Analyze(sessionID)
	if err != nil {
		return summary, err
	}
	summary.Missing = len(gaps)
	if len(gaps) == 0 {
		return summary, nil
	}

	lines, err := r.log.ReadLines(sessionID)
	if err != nil {
		return summary, fmt.Errorf("repair %s: %w", sessionID, err)
	}

	lastResponse := ""
	for i := len(gaps) - 1; i >= 0; i-- {
		gap := gaps[i]
		if !gap.TranscriptExists {
			summary.Failed++
			continue
		}

		response, err := media.LastAssistantText(gap.TranscriptPath)
		if err != nil || response == "" {
			summary.Failed++
			continue
		}

		if response == lastResponse {
			summary.Skipped++
			continue
		}
		lastResponse = response

		stop := lines[gap.Index]
		synthesized := repairedEvent{
			ID:              fmt.Sprintf("evt_repair_%04d", gap.Index),
			Type:            string(event.TypeAssistantResponse),
			TS:              json.RawMessage(gjson.Get(stop, "ts").Raw),
			SessionID:       gjson.Get(stop, "session_id").String(),
			AgentSessionNum: gjson.Get(stop, "agent_session_num").Int(),
			Data:            responseData{Response: response},
			Content:         response,
		}
		line, err := json.Marshal(synthesized)
		if err != nil {
			summary.Failed++
			continue
		}

		lines = append(lines[:gap.Index+1], append([]string{string(line)}, lines[gap.Index+1:]...)...)
		summary.Repaired++
	}

	if !dryRun && summary.Repaired > 0 {
		if err := r.log.WriteLines(sessionID, lines); err != nil {
			return summary, fmt.Errorf("repair %s: %w", sessionID, err)
		}
	}
	return summary, nil
}

// RepairAll repairs every known session.
func (r *Reconciler) RepairAll(dryRun bool) ([]Summary, error) {
	sessions, err := r.log.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("repair all: %w", err)
	}

	summaries := []Summary{}
	for _, id := range sessions {
		s, err := r.Repair(id, dryRun)
		if err != nil {
			return summaries, err
		}
		if s.Missing > 0 {
			summaries = append(summaries, s)
		}
	}
	return summaries, nil
}
