// Package event is the event schema registry for cellsync.
//
// Every event kind has a versioned name ("v1.CellCreated"), a closed CUE
// definition in schema.cue describing its payload, and one Go payload type.
// Payload is a sealed interface: the set of kinds is closed and a type switch
// over it is exhaustive.
//
// Validation happens only here, at the commit boundary. Once an event is in
// the log it is a fact; materializers never re-validate it.
//
// Exactly one kind, uiStateSet, is unversioned and local-only. It is never
// appended to the log and feeds a non-authoritative table.
package event
