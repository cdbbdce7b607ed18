package materialize

import (
	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/queue"
	"github.com/roach88/cellsync/internal/table"
)

func (a *applier) sessionStarted(p *event.KernelSessionStartedPayload) {
	if _, exists := a.t.KernelSessions[p.SessionID]; exists {
		a.violate(p.SessionID, CodeDuplicateSession, "session %s already started", p.SessionID)
		return
	}
	s := &table.KernelSession{
		SessionID:       p.SessionID,
		KernelID:        p.SessionID,
		KernelType:      p.KernelType,
		Status:          table.SessionReady,
		IsActive:        true,
		StartedAt:       a.ts,
		LastHeartbeatAt: a.ts,
	}
	if p.KernelID != nil {
		s.KernelID = *p.KernelID
	}
	if p.Capabilities != nil {
		s.CanExecuteCode = p.Capabilities.CanExecuteCode
		s.CanExecuteSQL = p.Capabilities.CanExecuteSQL
		s.CanExecuteAI = p.Capabilities.CanExecuteAI
	} else {
		// A session that advertises nothing is a plain code kernel.
		s.CanExecuteCode = true
	}
	a.t.KernelSessions[s.SessionID] = s
	a.touch(table.KernelSessions)
}

func (a *applier) sessionHeartbeat(p *event.KernelSessionHeartbeatPayload) {
	s, ok := a.t.KernelSessions[p.SessionID]
	if !ok {
		return
	}
	if s.Status == table.SessionTerminated {
		a.violate(s.SessionID, queue.CodeSessionTerminated, "heartbeat from terminated session %s", s.SessionID)
		return
	}
	s.Status = table.SessionStatus(p.Status)
	s.IsActive = true
	if a.ts.After(s.LastHeartbeatAt) {
		s.LastHeartbeatAt = a.ts
	}
	a.touch(table.KernelSessions)
}

// sessionTerminated ends the session and fails whatever it had in flight.
func (a *applier) sessionTerminated(p *event.KernelSessionTerminatedPayload) {
	s, ok := a.t.KernelSessions[p.SessionID]
	if !ok || s.Status == table.SessionTerminated {
		return
	}
	s.Status = table.SessionTerminated
	s.IsActive = false
	s.TerminatedAt = timePtr(a.ts)
	if p.Reason != nil {
		s.TerminationReason = strPtr(*p.Reason)
	}
	a.touch(table.KernelSessions)

	for _, q := range queue.Active(a.t, s.SessionID) {
		a.fail(q, queue.CodeKernelTerminated)
	}
}
