// Package persistence stores panel options between process restarts.
//
// Two drivers are available:
//   - memory: a map guarded by a RWMutex, the default
//   - sqlite: a single table in a pure Go SQLite database; option payloads
//     are sonic-encoded and zstd-compressed
//
// Records hold only what the host would persist verbatim: the author
// content plus the transform output derived from it.
package persistence
