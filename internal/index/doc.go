// Package index implements the SQLite mirror of the session logs: event
// rows, session rollups, a porter-stemmed full-text index, and the per
// session sync cursors.
//
// The index always lags the log, never leads it: rows only arrive through
// the sync engine replaying the log, and every write is idempotent by event
// id so a replay after a failed pass converges to the same state.
package index
