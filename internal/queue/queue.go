// Package queue is the execution queue state machine.
//
// It validates queue entry transitions, derives a cell's execution state
// from its latest entry, and layers the scheduling policy (priority tier,
// then FIFO) over the projected queue table. It never assigns work itself;
// callers claim entries by committing ExecutionAssigned.
package queue

import (
	"fmt"
	"sort"

	"github.com/roach88/cellsync/internal/table"
)

// Protocol violation codes recorded by the materializers.
const (
	// CodeInvalidTransition: the event's target state is not reachable from the entry's state.
	CodeInvalidTransition = "INVALID_TRANSITION"
	// CodeSessionBusy: the session already has another assigned or running entry.
	CodeSessionBusy = "SESSION_BUSY"
	// CodeSessionTerminated: the session is known and terminated.
	CodeSessionTerminated = "SESSION_TERMINATED"
	// CodeSessionIncapable: the session cannot execute the cell's type.
	CodeSessionIncapable = "SESSION_INCAPABLE"
	// CodeSessionMismatch: ExecutionStarted names a different session than the assignment.
	CodeSessionMismatch = "SESSION_MISMATCH"
	// CodeKernelTerminated: the owning session terminated while the entry was in flight.
	CodeKernelTerminated = "KERNEL_TERMINATED"
	// CodeDuplicateEntry: a queue id was requested twice.
	CodeDuplicateEntry = "DUPLICATE_QUEUE_ID"
	// CodeCellUnavailable: execution requested for, or assigned to, an absent or deleted cell.
	CodeCellUnavailable = "CELL_UNAVAILABLE"
)

var transitions = map[table.QueueStatus][]table.QueueStatus{
	table.QueueRequested: {table.QueueAssigned, table.QueueCancelled, table.QueueError},
	table.QueueAssigned:  {table.QueueRunning, table.QueueCancelled, table.QueueError},
	table.QueueRunning:   {table.QueueCompleted, table.QueueCancelled, table.QueueError},
}

// CanTransition reports whether an entry may move from one status to another.
func CanTransition(from, to table.QueueStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s table.QueueStatus) bool {
	return s == table.QueueCompleted || s == table.QueueCancelled || s == table.QueueError
}

// InFlight reports whether the entry occupies its session.
func InFlight(s table.QueueStatus) bool {
	return s == table.QueueAssigned || s == table.QueueRunning
}

// CellState maps an entry status to the owning cell's execution state.
func CellState(s table.QueueStatus) table.ExecutionState {
	switch s {
	case table.QueueRequested, table.QueueAssigned:
		return table.StateQueued
	case table.QueueRunning:
		return table.StateRunning
	case table.QueueCompleted:
		return table.StateCompleted
	case table.QueueError:
		return table.StateError
	}
	return table.StateIdle
}

// Latest returns the cell's most recently requested entry.
func Latest(t *table.Tables, cellID string) *table.QueueEntry {
	entries := t.EntriesOf(cellID)
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1]
}

// CheckAssign validates binding entry to sessionID. It returns an empty code
// when the assignment is legal.
//
// Unknown sessions are accepted: a session may be assigned before its
// KernelSessionStarted reaches the log.
func CheckAssign(t *table.Tables, entry *table.QueueEntry, sessionID string) (code, detail string) {
	if !CanTransition(entry.Status, table.QueueAssigned) {
		return CodeInvalidTransition, fmt.Sprintf("entry is %s, not requested", entry.Status)
	}
	cell, ok := t.Cells[entry.CellID]
	if !ok || !cell.Live() {
		return CodeCellUnavailable, fmt.Sprintf("cell %s is absent or deleted", entry.CellID)
	}
	if s, ok := t.KernelSessions[sessionID]; ok {
		if s.Status == table.SessionTerminated {
			return CodeSessionTerminated, fmt.Sprintf("session %s is terminated", sessionID)
		}
		if !s.CanExecute(cell.CellType) {
			return CodeSessionIncapable, fmt.Sprintf("session %s cannot execute %s cells", sessionID, cell.CellType)
		}
	}
	for _, other := range Active(t, sessionID) {
		if other.ID != entry.ID {
			return CodeSessionBusy, fmt.Sprintf("session %s is busy with %s", sessionID, other.ID)
		}
	}
	return "", ""
}

// Active returns the assigned or running entries on a session in request order.
func Active(t *table.Tables, sessionID string) []*table.QueueEntry {
	var out []*table.QueueEntry
	for _, q := range t.Queue {
		if InFlight(q.Status) && q.AssignedKernelSession != nil && *q.AssignedKernelSession == sessionID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Pending lists requested entries of live cells in scheduling order:
// priority descending, then requestedAt, then log position.
func Pending(t *table.Tables) []*table.QueueEntry {
	var out []*table.QueueEntry
	for _, q := range t.Queue {
		if q.Status != table.QueueRequested {
			continue
		}
		if cell, ok := t.Cells[q.CellID]; !ok || !cell.Live() {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.RequestedAt.Equal(b.RequestedAt) {
			return a.RequestedAt.Before(b.RequestedAt)
		}
		return a.Seq < b.Seq
	})
	return out
}

// Next returns the head of the pending queue.
func Next(t *table.Tables) (*table.QueueEntry, bool) {
	pending := Pending(t)
	if len(pending) == 0 {
		return nil, false
	}
	return pending[0], true
}

// NextFor returns the first pending entry the session could legally take.
func NextFor(t *table.Tables, sessionID string) (*table.QueueEntry, bool) {
	for _, q := range Pending(t) {
		if code, _ := CheckAssign(t, q, sessionID); code == "" {
			return q, true
		}
	}
	return nil, false
}
