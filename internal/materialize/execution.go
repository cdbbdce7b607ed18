package materialize

import (
	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/queue"
	"github.com/roach88/cellsync/internal/table"
)

func (a *applier) executionRequested(p *event.ExecutionRequestedPayload) {
	if _, exists := a.t.Queue[p.QueueID]; exists {
		a.violate(p.QueueID, queue.CodeDuplicateEntry, "queue entry %s already exists", p.QueueID)
		return
	}
	c, ok := a.liveCell(p.CellID)
	if !ok {
		a.violate(p.QueueID, queue.CodeCellUnavailable, "cell %s is absent or deleted", p.CellID)
		return
	}

	count := p.ExecutionCount
	if count == 0 {
		count = c.ExecutionCount + 1
	}
	a.t.Queue[p.QueueID] = &table.QueueEntry{
		ID:             p.QueueID,
		CellID:         p.CellID,
		ExecutionCount: count,
		RequestedBy:    p.RequestedBy,
		RequestedAt:    a.ts,
		Priority:       p.Priority,
		Status:         table.QueueRequested,
		Seq:            a.ev.Seq,
	}
	a.touch(table.Queue)
	a.syncCell(p.CellID)
}

func (a *applier) executionAssigned(p *event.ExecutionAssignedPayload) {
	q, ok := a.t.Queue[p.QueueID]
	if !ok {
		return
	}
	if code, detail := queue.CheckAssign(a.t, q, p.KernelSessionID); code != "" {
		a.reject(q, code, "%s", detail)
		return
	}
	q.Status = table.QueueAssigned
	q.AssignedKernelSession = strPtr(p.KernelSessionID)
	q.AssignedAt = timePtr(a.ts)
	a.touch(table.Queue)
	a.syncCell(q.CellID)
}

func (a *applier) executionStarted(p *event.ExecutionStartedPayload) {
	q, ok := a.t.Queue[p.QueueID]
	if !ok {
		return
	}
	if !queue.CanTransition(q.Status, table.QueueRunning) {
		a.reject(q, queue.CodeInvalidTransition, "cannot start entry in %s", q.Status)
		return
	}
	if p.KernelSessionID != nil && q.AssignedKernelSession != nil && *p.KernelSessionID != *q.AssignedKernelSession {
		a.reject(q, queue.CodeSessionMismatch, "started on %s, assigned to %s", *p.KernelSessionID, *q.AssignedKernelSession)
		return
	}
	q.Status = table.QueueRunning
	q.StartedAt = timePtr(a.ts)
	a.touch(table.Queue)
	a.syncCell(q.CellID)
}

func (a *applier) executionCompleted(p *event.ExecutionCompletedPayload) {
	q, ok := a.t.Queue[p.QueueID]
	if !ok {
		return
	}
	target := table.QueueCompleted
	if p.Status == event.CompletionError {
		target = table.QueueError
	}
	if !queue.CanTransition(q.Status, target) {
		a.reject(q, queue.CodeInvalidTransition, "cannot complete entry in %s as %s", q.Status, target)
		return
	}

	q.Status = target
	q.CompletedAt = timePtr(a.ts)
	if target == table.QueueError {
		reason := "error"
		if p.Error != nil && p.Error.Ename != "" {
			reason = p.Error.Ename
		}
		q.ErrorReason = strPtr(reason)
	}
	a.touch(table.Queue)

	// executionCount only ever moves forward, and only here.
	if c, ok := a.liveCell(q.CellID); ok && q.ExecutionCount > c.ExecutionCount {
		c.ExecutionCount = q.ExecutionCount
		a.touchCell(c)
	}
	a.syncCell(q.CellID)
}

func (a *applier) executionCancelled(p *event.ExecutionCancelledPayload) {
	q, ok := a.t.Queue[p.QueueID]
	if !ok {
		return
	}
	if !queue.CanTransition(q.Status, table.QueueCancelled) {
		a.violate(q.ID, queue.CodeInvalidTransition, "cannot cancel entry in %s", q.Status)
		return
	}
	q.Status = table.QueueCancelled
	q.CompletedAt = timePtr(a.ts)
	a.touch(table.Queue)
	a.syncCell(q.CellID)
}

// reject records a violation and moves a non-terminal entry to error.
func (a *applier) reject(q *table.QueueEntry, code, format string, args ...any) {
	a.violate(q.ID, code, format, args...)
	if queue.IsTerminal(q.Status) {
		return
	}
	a.fail(q, code)
}

func (a *applier) fail(q *table.QueueEntry, reason string) {
	q.Status = table.QueueError
	q.CompletedAt = timePtr(a.ts)
	q.ErrorReason = strPtr(reason)
	a.touch(table.Queue)
	a.syncCell(q.CellID)
}

// syncCell recomputes the cell's execution state from its latest entry.
func (a *applier) syncCell(cellID string) {
	c, ok := a.liveCell(cellID)
	if !ok {
		return
	}
	state := table.StateIdle
	if latest := queue.Latest(a.t, cellID); latest != nil {
		state = queue.CellState(latest.Status)
	}
	if c.ExecutionState != state {
		c.ExecutionState = state
		a.touchCell(c)
	}
}
