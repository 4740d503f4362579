// Package ingest is the host-facing ingestion pipeline: it turns one
// ingestion envelope into appended log events.
//
// The pipeline is fail-silent by design. Every failure is absorbed locally
// and recorded to the side error log with its event-type context; nothing
// ever reaches the invoking host's exit code or output streams, because
// logging must not be able to block or fail the process it observes.
package ingest

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/roach88/chronicle/internal/config"
	"github.com/roach88/chronicle/internal/event"
	"github.com/roach88/chronicle/internal/eventlog"
	"github.com/roach88/chronicle/internal/fault"
	"github.com/roach88/chronicle/internal/media"
	"github.com/roach88/chronicle/internal/render"
)

// markdownTriggers are the lifecycle events after which the derived
// markdown projection is regenerated.
var markdownTriggers = map[event.Type]bool{
	event.TypeSessionStart:     true,
	event.TypeUserPromptSubmit: true,
	event.TypeStop:             true,
	event.TypeSessionEnd:       true,
	event.TypeSubagentStop:     true,
	event.TypeNotification:     true,
}

// Pipeline processes ingestion envelopes. Fields have working defaults and
// exist for injection in tests.
type Pipeline struct {
	ResolveRoot func(cwd string) string
	IDs         event.IDGenerator
	Now         func() time.Time
}

func New() *Pipeline {
	return &Pipeline{
		ResolveRoot: config.ResolveStorageRoot,
		IDs:         event.UUIDGenerator{},
		Now:         time.Now,
	}
}

// Process handles one envelope for the given event type. The returned error
// is for observability only: by the time Process returns it has already
// been recorded to the side error log, and callers on the ingestion path
// must not propagate it.
func (p *Pipeline) Process(eventType string, raw []byte) (event.Event, error) {
	env, err := event.ParseEnvelope(raw)
	if err != nil {
		newErrorLogger(p.ResolveRoot("")).
			WithField("event_type", eventType).Error(err)
		return event.Event{}, err
	}

	root := p.ResolveRoot(env.CWD)
	errlog := newErrorLogger(root)

	log, err := eventlog.Open(root)
	if err != nil {
		return event.Event{}, p.fail(errlog, eventType, fault.Wrap(fault.Ingest, "open event log", err))
	}

	typ := event.Type(eventType)
	source := event.SourceMarker(env.Data)

	ev := event.Event{
		ID:              p.IDs.NewID(),
		Type:            typ,
		TS:              p.Now().UTC(),
		SessionID:       env.SessionID,
		AgentSessionNum: log.AgentSessionNum(env.SessionID, source),
		Data:            env.Data,
	}

	extractor := media.NewExtractor(root)

	// Prompts that arrive as content blocks carry inline images: extract
	// them now and flatten the prompt to its text for searchability.
	if typ == event.TypeUserPromptSubmit {
		prompt := gjson.GetBytes(env.Data, "prompt")
		if prompt.IsArray() {
			text, refs, errs := extractor.ExtractPrompt([]byte(prompt.Raw), env.SessionID, ev.ID)
			for _, e := range errs {
				errlog.WithField("event_type", eventType).Error(e)
			}
			patched, err := sjson.SetBytes(env.Data, "prompt", text)
			if err == nil {
				ev.Data = patched
			}
			ev.Images = refs
		}
	}

	ev.Content = event.ExtractContent(typ, ev.Data)

	transcriptPath := ""
	if typ == event.TypeStop {
		stop, err := event.Decode[event.StopData](ev)
		if err != nil {
			errlog.WithField("event_type", eventType).Error(err)
		}
		transcriptPath = stop.TranscriptPath
	}

	if transcriptPath != "" {
		// The transcript is already complete when Stop fires: capture the
		// assistant response now and append both events in one locked
		// write so they become visible together.
		batch := []event.Event{ev}
		response, err := media.LastAssistantText(transcriptPath)
		if err != nil {
			errlog.WithField("event_type", eventType).Error(err)
		}
		if response != "" {
			batch = append(batch, event.Event{
				ID:              p.IDs.NewID(),
				Type:            event.TypeAssistantResponse,
				TS:              ev.TS,
				SessionID:       env.SessionID,
				AgentSessionNum: ev.AgentSessionNum,
				Data:            responseData(response),
				Content:         response,
			})
		}
		if err := log.Append(env.SessionID, batch...); err != nil {
			return ev, p.fail(errlog, eventType, err)
		}

		// The host never includes image bytes in its envelopes; the
		// transcript is the only capture of them. Extract and correlate
		// back onto the logged prompts once the turn is complete.
		refsByMsg, errs := extractor.ExtractTranscript(transcriptPath, env.SessionID)
		for _, e := range errs {
			errlog.WithField("event_type", eventType).Error(e)
		}
		if len(refsByMsg) > 0 {
			if _, err := media.Correlate(log, env.SessionID, refsByMsg); err != nil {
				errlog.WithField("event_type", eventType).Error(err)
			}
		}
	} else {
		if err := log.Append(env.SessionID, ev); err != nil {
			return ev, p.fail(errlog, eventType, err)
		}
	}

	if markdownTriggers[typ] {
		if err := render.Write(log, env.SessionID); err != nil {
			errlog.WithField("event_type", eventType).Error(err)
		}
	}

	return ev, nil
}

func (p *Pipeline) fail(errlog *logrus.Logger, eventType string, err error) error {
	errlog.WithField("event_type", eventType).Error(err)
	return err
}

func responseData(response string) []byte {
	data, err := sjson.SetBytes([]byte(`{}`), "response", response)
	if err != nil {
		return []byte(`{}`)
	}
	return data
}
