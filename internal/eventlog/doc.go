// Package eventlog implements the append-only, session-partitioned event
// log: one newline-delimited JSON file per session, the system's source of
// truth.
//
// Appends take an exclusive file lock scoped to one session's log and write
// a whole batch in a single operation. Readers never take the lock; they
// tolerate a torn trailing line by treating it as not yet written.
package eventlog
