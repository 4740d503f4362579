package event

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// Type identifies an event's kind. The set of host-emitted types is closed;
// unknown types are retained verbatim rather than dropped.
type Type string

const (
	TypeSessionStart      Type = "SessionStart"
	TypeUserPromptSubmit  Type = "UserPromptSubmit"
	TypePreToolUse        Type = "PreToolUse"
	TypePostToolUse       Type = "PostToolUse"
	TypeStop              Type = "Stop"
	TypeSubagentStop      Type = "SubagentStop"
	TypeSessionEnd        Type = "SessionEnd"
	TypeNotification      Type = "Notification"
	TypePreCompact        Type = "PreCompact"

	// TypeAssistantResponse is derived by the engine from the external
	// transcript, never emitted by the host directly.
	TypeAssistantResponse Type = "AssistantResponse"
)

// HookTypes lists the event types emitted by the host, in lifecycle order.
var HookTypes = []Type{
	TypeSessionStart,
	TypeUserPromptSubmit,
	TypePreToolUse,
	TypePostToolUse,
	TypeStop,
	TypeSubagentStop,
	TypeSessionEnd,
	TypeNotification,
	TypePreCompact,
}

// Known reports whether t is one of the defined event types.
func (t Type) Known() bool {
	if t == TypeAssistantResponse {
		return true
	}
	for _, h := range HookTypes {
		if t == h {
			return true
		}
	}
	return false
}

// ImageRef points at an extracted attachment, either stored on disk by
// content-addressed path or referenced by URL without fetching.
type ImageRef struct {
	Type      string `json:"type"`
	Path      string `json:"path,omitempty"`
	URL       string `json:"url,omitempty"`
	MediaType string `json:"media_type"`
	Size      int    `json:"size,omitempty"`
	Index     int    `json:"index"`
}

// Event is one immutable record in a session's append-only log.
//
// Data holds the raw payload as received; unknown fields survive a
// round-trip untouched. Content is the extracted searchable text, Images the
// extracted attachment references.
type Event struct {
	ID              string          `json:"id"`
	Type            Type            `json:"type"`
	TS              time.Time       `json:"ts"`
	SessionID       string          `json:"session_id"`
	AgentSessionNum int             `json:"agent_session_num"`
	Data            json.RawMessage `json:"data"`
	Content         string          `json:"content,omitempty"`
	Images          []ImageRef      `json:"images,omitempty"`
}

// SourceMarker returns the payload's source field, if any. The markers
// "compact" and "clear" signal a context reset.
func SourceMarker(data []byte) string {
	return gjson.GetBytes(data, "source").String()
}

// IsResetMarker reports whether a source marker signals a context reset.
func IsResetMarker(source string) bool {
	return source == "compact" || source == "clear"
}
