package event

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/roach88/chronicle/internal/fault"
)

// Envelope is the ingestion input consumed from the host: one JSON object
// per invocation, tagged externally with an event-type name.
type Envelope struct {
	SessionID string
	CWD       string
	Data      json.RawMessage
}

// ParseEnvelope decodes a raw ingestion envelope. Hosts that omit the data
// field send the payload fields at the top level, in which case the whole
// object is treated as the payload. A missing session id maps to "unknown"
// so the event is still captured somewhere inspectable.
func ParseEnvelope(raw []byte) (Envelope, error) {
	if !gjson.ValidBytes(raw) {
		return Envelope{}, fault.New(fault.Ingest, "parse envelope: invalid JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Envelope{}, fault.New(fault.Ingest, "parse envelope: not a JSON object")
	}

	env := Envelope{SessionID: root.Get("session_id").String()}
	if env.SessionID == "" {
		env.SessionID = "unknown"
	}

	if data := root.Get("data"); data.Exists() {
		env.Data = json.RawMessage(data.Raw)
	} else {
		env.Data = json.RawMessage(root.Raw)
	}

	env.CWD = root.Get("cwd").String()
	if env.CWD == "" {
		env.CWD = gjson.GetBytes(env.Data, "cwd").String()
	}

	return env, nil
}
