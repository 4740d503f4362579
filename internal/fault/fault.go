// Package fault defines the error taxonomy shared by the ingestion and
// query paths. Ingestion-path faults are recorded to the side error log and
// absorbed; query-path faults surface to the caller with their code intact.
package fault

import (
	"errors"
	"fmt"
)

// Code classifies a fault for routing and reporting.
type Code string

const (
	// Ingest marks a malformed ingestion envelope. Skip and log, never abort.
	Ingest Code = "ingest"

	// MediaDecode marks a content block whose image data could not be
	// decoded. The remaining blocks are still processed.
	MediaDecode Code = "media_decode"

	// TranscriptUnavailable marks a missing or unreadable external
	// transcript. Reported as a failure count, never aborts a batch.
	TranscriptUnavailable Code = "transcript_unavailable"

	// SyncSchema marks an unparseable log line during sync. Fatal only for
	// that session's pass; retried from the last good cursor next cycle.
	SyncSchema Code = "sync_schema"

	// SearchBackend marks an unavailable semantic backend. Search degrades
	// to keyword-only.
	SearchBackend Code = "search_backend"
)

// Error carries a fault code alongside the failing operation.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Op)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a fault with a formatted operation description.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Op: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and operation to an underlying error.
func Wrap(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Is reports whether err carries the given fault code anywhere in its chain.
func Is(err error, code Code) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Code == code
}

// CodeOf returns the fault code of err, or empty if err is not a fault.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}
