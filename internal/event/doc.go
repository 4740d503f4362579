// Package event defines the immutable event record written to session logs,
// the closed set of known event types, and the content extraction rules that
// turn raw payloads into searchable text.
//
// Events are created once, appended to a session's log, and never mutated.
// The single documented exception is the post-hoc images patch applied by the
// media correlator, which sets a previously absent images field exactly once.
package event
