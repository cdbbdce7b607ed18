// Package store is the SQLite-backed event log.
//
// Each store (one notebook instance) owns an append-only sequence of events.
// The log is the single source of truth; every projected table is rebuilt
// from it by replay.
//
// # Ordering
//
//   - seq is assigned by Append as head+1 inside one transaction
//   - PRIMARY KEY (store_id, seq) makes the order strict and total
//   - Append with an expected head rejects with ErrConflict when another
//     writer got there first; callers catch up and retry
//   - reads are always ORDER BY seq ASC
//
// # Identity
//
// Payloads are stored as RFC 8785 canonical JSON. The event id is a SHA-256
// over the canonical record with domain separation (see ir.EventID), so a
// record can be re-verified after it is read back.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - _txlock=immediate: Writers take the lock at BEGIN
package store
