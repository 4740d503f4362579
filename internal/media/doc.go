// Package media extracts binary attachments embedded in event payloads or
// in an external replay transcript, storing them content-addressed on disk.
//
// Files are named {hash}_{eventID-or-msgIndex}_{blockIndex}.{ext}, where the
// hash is a truncated SHA-256 of the bytes. A second write with an identical
// hash is a no-op. URL-sourced images are recorded without fetching.
package media
