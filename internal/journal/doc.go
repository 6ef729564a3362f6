// Package journal provides SQLite-backed audit logging for refresh runs.
//
// The graph engine itself is in-process and ephemeral - nothing it owns is
// persisted. The journal is an external observer: callers (the CLI) record
// one row per refresh with a time-sortable run token, the mutated input,
// and the resulting delta as JSON.
//
// Ordering uses a monotonic logical seq counter, never wall-clock
// timestamps, so read-back order is deterministic: ORDER BY seq ASC,
// id ASC.
//
// Database configuration mirrors the usual SQLite single-writer setup:
// WAL mode, synchronous=NORMAL, busy_timeout=5000, foreign_keys=ON.
package journal
