// Package embedding implements the optional vector index behind semantic
// search. The encoder is injected: without one, every operation returns
// empty results and search degrades to keyword-only.
//
// Vectors are stored in SQLite. When a native similarity index is available
// it is used directly; otherwise search falls back to a linear cosine scan.
// The choice is made once when the store opens, never per call.
package embedding
