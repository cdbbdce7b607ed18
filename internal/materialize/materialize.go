// Package materialize folds committed events into projected tables.
//
// There is one reducer per event kind. Reducers are synchronous, perform no
// I/O and read time only from the event, so replaying a log always rebuilds
// the same tables.
//
// Reducers never fail. A missing target is an idempotent no-op; a
// structurally valid event applied in an illegal state is recorded as a
// Violation row and reported in the returned Effect.
package materialize

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/table"
)

// Violation codes outside the execution queue. Queue codes live in package queue.
const (
	CodeDuplicateNotebook   = "DUPLICATE_NOTEBOOK"
	CodeDuplicateCell       = "DUPLICATE_CELL"
	CodeDuplicateOutput     = "DUPLICATE_OUTPUT"
	CodeDuplicateSession    = "DUPLICATE_SESSION"
	CodeDuplicateTag        = "DUPLICATE_TAG"
	CodeDuplicateTagName    = "DUPLICATE_TAG_NAME"
	CodeOutputNotAppendable = "OUTPUT_NOT_APPENDABLE"
)

// Effect describes what applying one event changed.
type Effect struct {
	// Touched lists the changed tables, sorted.
	Touched []string
	// Violations recorded by this event, in detection order.
	Violations []table.Violation
}

// Touches reports whether the named table changed.
func (e Effect) Touches(name string) bool {
	i := sort.SearchStrings(e.Touched, name)
	return i < len(e.Touched) && e.Touched[i] == name
}

// Apply folds ev into t in place.
func Apply(t *table.Tables, ev event.Event) Effect {
	a := &applier{t: t, ev: ev, ts: ev.Timestamp, touched: map[string]bool{}}

	switch p := ev.Payload.(type) {
	case *event.NotebookInitializedPayload:
		a.notebookInitialized(p)
	case *event.NotebookTitleChangedPayload:
		a.notebookTitleChanged(p)
	case *event.CellCreatedPayload:
		a.cellCreated(p)
	case *event.CellSourceChangedPayload:
		a.cellSourceChanged(p)
	case *event.CellTypeChangedPayload:
		a.cellTypeChanged(p)
	case *event.CellMovedPayload:
		a.cellMoved(p)
	case *event.CellDeletedPayload:
		a.cellDeleted(p)
	case *event.CellOutputAddedPayload:
		a.outputAdded(p)
	case *event.CellOutputsClearedPayload:
		a.outputsCleared(p)
	case *event.DisplayDataUpdatedPayload:
		a.displayDataUpdated(p)
	case *event.TerminalOutputAppendedPayload:
		a.terminalOutputAppended(p)
	case *event.ExecutionRequestedPayload:
		a.executionRequested(p)
	case *event.ExecutionAssignedPayload:
		a.executionAssigned(p)
	case *event.ExecutionStartedPayload:
		a.executionStarted(p)
	case *event.ExecutionCompletedPayload:
		a.executionCompleted(p)
	case *event.ExecutionCancelledPayload:
		a.executionCancelled(p)
	case *event.KernelSessionStartedPayload:
		a.sessionStarted(p)
	case *event.KernelSessionHeartbeatPayload:
		a.sessionHeartbeat(p)
	case *event.KernelSessionTerminatedPayload:
		a.sessionTerminated(p)
	case *event.ActorProfileSetPayload:
		a.actorProfileSet(p)
	case *event.PresenceSetPayload:
		a.presenceSet(p)
	case *event.PresenceClearedPayload:
		a.presenceCleared(p)
	case *event.TagCreatedPayload:
		a.tagCreated(p)
	case *event.TagDeletedPayload:
		a.tagDeleted(p)
	case *event.TagAssignedPayload:
		a.tagAssigned(p)
	case *event.TagUnassignedPayload:
		a.tagUnassigned(p)
	case *event.UIStateSetPayload:
		a.uiStateSet(p)
	}

	return a.effect()
}

// Reduce is the pure form of Apply: prior is left untouched.
func Reduce(prior *table.Tables, ev event.Event) (*table.Tables, Effect) {
	next := prior.Clone()
	eff := Apply(next, ev)
	return next, eff
}

// Fold applies events in order to fresh tables.
func Fold(events []event.Event) *table.Tables {
	t := table.New()
	for _, ev := range events {
		Apply(t, ev)
	}
	return t
}

// applier carries per-event state through one reducer.
type applier struct {
	t          *table.Tables
	ev         event.Event
	ts         time.Time
	touched    map[string]bool
	violations []table.Violation
}

func (a *applier) touch(names ...string) {
	for _, n := range names {
		a.touched[n] = true
	}
}

// touchCell marks the cell table changed and bumps the notebook's lastModified.
func (a *applier) touchCell(c *table.Cell) {
	a.touch(table.Cells)
	if nb, ok := a.t.Notebooks[c.NotebookID]; ok && nb.LastModified.Before(a.ts) {
		nb.LastModified = a.ts
		a.touch(table.Notebooks)
	}
}

func (a *applier) violate(entityID, code, format string, args ...any) {
	v := table.Violation{
		Seq:      a.ev.Seq,
		Event:    string(a.ev.Name),
		EntityID: entityID,
		Code:     code,
		Detail:   fmt.Sprintf(format, args...),
	}
	a.t.Violations = append(a.t.Violations, v)
	a.violations = append(a.violations, v)
	a.touch(table.Violations)
}

func (a *applier) effect() Effect {
	touched := make([]string, 0, len(a.touched))
	for n := range a.touched {
		touched = append(touched, n)
	}
	sort.Strings(touched)
	return Effect{Touched: touched, Violations: a.violations}
}

// liveCell returns the cell only when it exists and is not deleted.
func (a *applier) liveCell(id string) (*table.Cell, bool) {
	c, ok := a.t.Cells[id]
	if !ok || !c.Live() {
		return nil, false
	}
	return c, true
}

func timePtr(t time.Time) *time.Time { return &t }

func strPtr(s string) *string { return &s }
