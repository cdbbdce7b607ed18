// Package harness runs YAML scenarios against a real engine.
//
// A scenario is a list of steps (commits, execution helpers, clock moves and
// liveness sweeps) followed by assertions on the final tables. Each run gets
// a fresh in-memory store, a manual clock and predictable ids, so the same
// scenario always produces the same log.
//
// The trace of a run is the committed log with the violations each event
// recorded. Golden files under testdata/golden pin the rendered trace and
// final cell and queue state:
//
//	go test ./internal/harness -update
//
// regenerates them.
package harness
