package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/liveness"
	"github.com/roach88/cellsync/internal/queue"
	"github.com/roach88/cellsync/internal/table"
)

// EnameKernelSessionLost is the error name orphan recovery records.
const EnameKernelSessionLost = "KernelSessionLost"

// ExecutionRequest asks for one execution of a cell.
type ExecutionRequest struct {
	CellID   string
	Priority int64
	// ExecutionCount is the attempt number; zero means the cell's count + 1.
	ExecutionCount int64
}

// RequestExecution enqueues a cell execution under a freshly generated
// queue id and returns that id.
func (e *Engine) RequestExecution(ctx context.Context, actorID string, req ExecutionRequest) (string, Result, error) {
	if actorID == "" {
		return "", Result{}, newCommitError(CodeMissingActor, event.ExecutionRequested, "actor id is required")
	}
	queueID := e.ids.Generate()
	res, err := e.commit(ctx, actorID, nil, func(t *table.Tables) (event.Payload, error) {
		cell, ok := t.Cells[req.CellID]
		if !ok || !cell.Live() {
			return nil, newCommitError(CodeCellUnavailable, event.ExecutionRequested, "cell %s is absent or deleted", req.CellID)
		}
		return &event.ExecutionRequestedPayload{
			QueueID:        queueID,
			CellID:         req.CellID,
			ExecutionCount: req.ExecutionCount,
			RequestedBy:    actorID,
			Priority:       req.Priority,
		}, nil
	})
	if err != nil {
		return "", Result{}, err
	}
	return queueID, res, nil
}

// ClaimNext assigns the next pending entry the session can legally take.
// ok is false when nothing is pending for it.
//
// The choice is made against the tables at the head the append is checked
// against, so two writers can never claim the same entry: the loser's
// append conflicts, it catches up and picks again.
func (e *Engine) ClaimNext(ctx context.Context, actorID, sessionID string) (entry *table.QueueEntry, ok bool, err error) {
	if actorID == "" {
		return nil, false, newCommitError(CodeMissingActor, event.ExecutionAssigned, "actor id is required")
	}
	var claimed string
	_, err = e.commit(ctx, actorID, nil, func(t *table.Tables) (event.Payload, error) {
		next, found := queue.NextFor(t, sessionID)
		if !found {
			return nil, errSkip
		}
		claimed = next.ID
		return &event.ExecutionAssignedPayload{QueueID: next.ID, KernelSessionID: sessionID}, nil
	})
	if errors.Is(err, errSkip) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	q, found := e.tables.Queue[claimed]
	if !found {
		return nil, false, fmt.Errorf("claim %s: entry vanished", claimed)
	}
	return table.CopyRow(q).(*table.QueueEntry), true, nil
}

// RecoverOrphans fails every assigned or running entry whose kernel
// session is stale, by committing ExecutionCompleted with status error and
// ename KernelSessionLost. It returns the recovered queue ids in request
// order.
//
// Recovery is never implicit: the liveness sweep only changes how sessions
// read. Callers decide when to turn that into log facts.
func (e *Engine) RecoverOrphans(ctx context.Context, actorID string) ([]string, error) {
	if actorID == "" {
		return nil, newCommitError(CodeMissingActor, event.ExecutionCompleted, "actor id is required")
	}

	now := e.tracker.Now()
	window := e.tracker.Window()

	var candidates []string
	e.view(func(t *table.Tables) {
		for _, q := range liveness.Orphaned(t, now, window) {
			candidates = append(candidates, q.ID)
		}
	})

	var recovered []string
	for _, id := range candidates {
		_, err := e.commit(ctx, actorID, nil, func(t *table.Tables) (event.Payload, error) {
			// Re-check: the entry may have finished or its session
			// heartbeated since the scan.
			q, ok := t.Queue[id]
			if !ok || !queue.InFlight(q.Status) || q.AssignedKernelSession == nil {
				return nil, errSkip
			}
			s, ok := t.KernelSessions[*q.AssignedKernelSession]
			if !ok || !liveness.IsStale(s, now, window) {
				return nil, errSkip
			}
			evalue := fmt.Sprintf("kernel session %s missed its heartbeat window", s.SessionID)
			return &event.ExecutionCompletedPayload{
				QueueID: id,
				Status:  event.CompletionError,
				Error:   &event.ExecutionError{Ename: EnameKernelSessionLost, Evalue: &evalue},
			}, nil
		})
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			return recovered, fmt.Errorf("recover %s: %w", id, err)
		}
		recovered = append(recovered, id)
	}

	if len(recovered) > 0 {
		slog.Warn("recovered orphaned executions",
			"store", e.storeID,
			"count", len(recovered),
			"entries", recovered,
		)
	}
	return recovered, nil
}
