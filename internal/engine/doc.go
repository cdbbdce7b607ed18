// Package engine is the commit path of one notebook store.
//
// The engine owns the live projection of a store's log and is the only
// writer of it. Every commit goes through the same steps:
//
//  1. The payload is validated and decoded by the event registry. Schema
//     errors return synchronously; nothing is appended.
//  2. Boundary checks run against the current tables (an actor id is
//     required, a store holds one notebook).
//  3. The record is appended at head+1 with an optimistic head check. If
//     another writer moved the head, the engine catches up from the log and
//     retries a bounded number of times.
//  4. The stored record is re-decoded and folded through the materializers,
//     violations are logged, and subscriptions on the touched tables are
//     re-evaluated.
//
// Opening an engine replays the whole log through step 4, so a restarted
// process ends up with exactly the tables the writer had.
//
// LOCKING:
//
// A single RWMutex guards the tables and the head. Commits, catch-up and
// subscription publishing hold the write lock; queries, snapshots and the
// liveness sweep hold the read lock. Subscription callbacks run on their
// own goroutines and never under the engine lock.
//
// Local-only events (uiStateSet) skip step 3: they change this process's
// tables and notify subscribers, and are lost on restart.
package engine
