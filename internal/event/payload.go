package event

import (
	"encoding/json"
	"fmt"
)

// Payload types model the known event payloads as a closed tagged union.
// Each carries its typed fields plus an Extra bag holding any fields the
// schema does not know about, so unknown data survives decode/encode cycles.

// SessionStartData is the payload of a SessionStart event. Source carries
// the context-reset marker when the session resumed from a compact or clear.
type SessionStartData struct {
	Source string
	Model  string
	CWD    string
	Extra  map[string]json.RawMessage
}

func (d *SessionStartData) UnmarshalJSON(b []byte) error {
	fields, err := splitFields(b)
	if err != nil {
		return err
	}
	d.Source = takeString(fields, "source")
	d.Model = takeString(fields, "model")
	d.CWD = takeString(fields, "cwd")
	d.Extra = fields
	return nil
}

func (d SessionStartData) MarshalJSON() ([]byte, error) {
	return joinFields(d.Extra, map[string]any{
		"source": d.Source,
		"model":  d.Model,
		"cwd":    d.CWD,
	})
}

// PromptData is the payload of a UserPromptSubmit event. Prompt is either a
// plain string or an array of content blocks before media extraction runs.
type PromptData struct {
	Prompt json.RawMessage
	CWD    string
	Extra  map[string]json.RawMessage
}

func (d *PromptData) UnmarshalJSON(b []byte) error {
	fields, err := splitFields(b)
	if err != nil {
		return err
	}
	d.Prompt = takeRaw(fields, "prompt")
	d.CWD = takeString(fields, "cwd")
	d.Extra = fields
	return nil
}

func (d PromptData) MarshalJSON() ([]byte, error) {
	known := map[string]any{"cwd": d.CWD}
	if len(d.Prompt) > 0 {
		known["prompt"] = d.Prompt
	}
	return joinFields(d.Extra, known)
}

// ToolUseData is the payload of PreToolUse and PostToolUse events. Input is
// set for PreToolUse, Response for PostToolUse.
type ToolUseData struct {
	ToolName string
	Input    json.RawMessage
	Response json.RawMessage
	Extra    map[string]json.RawMessage
}

func (d *ToolUseData) UnmarshalJSON(b []byte) error {
	fields, err := splitFields(b)
	if err != nil {
		return err
	}
	d.ToolName = takeString(fields, "tool_name")
	d.Input = takeRaw(fields, "tool_input")
	d.Response = takeRaw(fields, "tool_response")
	d.Extra = fields
	return nil
}

func (d ToolUseData) MarshalJSON() ([]byte, error) {
	known := map[string]any{"tool_name": d.ToolName}
	if len(d.Input) > 0 {
		known["tool_input"] = d.Input
	}
	if len(d.Response) > 0 {
		known["tool_response"] = d.Response
	}
	return joinFields(d.Extra, known)
}

// StopData is the payload of a Stop event. TranscriptPath locates the
// external transcript the derived AssistantResponse is read from.
type StopData struct {
	TranscriptPath string
	Extra          map[string]json.RawMessage
}

func (d *StopData) UnmarshalJSON(b []byte) error {
	fields, err := splitFields(b)
	if err != nil {
		return err
	}
	d.TranscriptPath = takeString(fields, "transcript_path")
	d.Extra = fields
	return nil
}

func (d StopData) MarshalJSON() ([]byte, error) {
	return joinFields(d.Extra, map[string]any{"transcript_path": d.TranscriptPath})
}

// SubagentStopData is the payload of a SubagentStop event.
type SubagentStopData struct {
	AgentID        string
	AgentType      string
	TranscriptPath string
	Extra          map[string]json.RawMessage
}

func (d *SubagentStopData) UnmarshalJSON(b []byte) error {
	fields, err := splitFields(b)
	if err != nil {
		return err
	}
	d.AgentID = takeString(fields, "agent_id")
	d.AgentType = takeString(fields, "agent_type")
	d.TranscriptPath = takeString(fields, "agent_transcript_path")
	d.Extra = fields
	return nil
}

func (d SubagentStopData) MarshalJSON() ([]byte, error) {
	return joinFields(d.Extra, map[string]any{
		"agent_id":              d.AgentID,
		"agent_type":            d.AgentType,
		"agent_transcript_path": d.TranscriptPath,
	})
}

// ResponseData is the payload of a derived AssistantResponse event.
type ResponseData struct {
	Response string
	Extra    map[string]json.RawMessage
}

func (d *ResponseData) UnmarshalJSON(b []byte) error {
	fields, err := splitFields(b)
	if err != nil {
		return err
	}
	d.Response = takeString(fields, "response")
	d.Extra = fields
	return nil
}

func (d ResponseData) MarshalJSON() ([]byte, error) {
	return joinFields(d.Extra, map[string]any{"response": d.Response})
}

// NotificationData is the payload of a Notification event.
type NotificationData struct {
	Message string
	Extra   map[string]json.RawMessage
}

func (d *NotificationData) UnmarshalJSON(b []byte) error {
	fields, err := splitFields(b)
	if err != nil {
		return err
	}
	d.Message = takeString(fields, "message")
	d.Extra = fields
	return nil
}

func (d NotificationData) MarshalJSON() ([]byte, error) {
	return joinFields(d.Extra, map[string]any{"message": d.Message})
}

// Decode unmarshals an event's payload into the given typed payload.
func Decode[T any](e Event) (T, error) {
	var d T
	if len(e.Data) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return d, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return d, nil
}

func splitFields(b []byte) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return fields, nil
}

func takeString(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	delete(fields, key)
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func takeRaw(fields map[string]json.RawMessage, key string) json.RawMessage {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	delete(fields, key)
	return raw
}

// joinFields merges typed fields back over the extension bag. Empty string
// values are omitted to keep re-encoded payloads minimal.
func joinFields(extra map[string]json.RawMessage, known map[string]any) ([]byte, error) {
	out := map[string]json.RawMessage{}
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range known {
		switch val := v.(type) {
		case string:
			if val == "" {
				continue
			}
			raw, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("encode payload field %q: %w", k, err)
			}
			out[k] = raw
		case json.RawMessage:
			if len(val) == 0 {
				continue
			}
			out[k] = val
		default:
			raw, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("encode payload field %q: %w", k, err)
			}
			out[k] = raw
		}
	}
	return json.Marshal(out)
}
