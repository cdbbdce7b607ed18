// Package liveness detects kernel sessions that stopped heartbeating.
//
// Liveness is read-derived: nothing is written to the log when a session
// goes quiet. A session is stale when now - lastHeartbeatAt > window. The
// Overlay presents stale sessions as terminated and inactive to queries; a
// later heartbeat makes the session live again.
//
// The Tracker runs the periodic sweep that notices staleness changes so
// subscriptions on kernel sessions can be refreshed. It is the only part of
// the system that reads the wall clock.
package liveness

import (
	"sort"
	"time"

	"github.com/roach88/cellsync/internal/table"
)

// DefaultWindow is how long a session may go without a heartbeat.
const DefaultWindow = 30 * time.Second

// IsStale reports whether s missed its heartbeat window at now.
// Sessions that already terminated explicitly are never stale.
func IsStale(s *table.KernelSession, now time.Time, window time.Duration) bool {
	if s.Status == table.SessionTerminated {
		return false
	}
	return now.Sub(s.LastHeartbeatAt) > window
}

// Evaluate returns the ids of stale sessions in t, sorted.
func Evaluate(t *table.Tables, now time.Time, window time.Duration) []string {
	var stale []string
	for id, s := range t.KernelSessions {
		if IsStale(s, now, window) {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	return stale
}

// Present returns the session as queries should see it at now.
// Stale sessions come back as a copy marked terminated and inactive.
func Present(s *table.KernelSession, now time.Time, window time.Duration) *table.KernelSession {
	if !IsStale(s, now, window) {
		return s
	}
	c := table.CopyRow(s).(*table.KernelSession)
	c.Status = table.SessionTerminated
	c.IsActive = false
	return c
}

// Overlay is a query source that applies liveness to kernel sessions and
// passes every other table through.
type Overlay struct {
	Source interface {
		Rows(name string) ([]table.Row, error)
	}
	Now    time.Time
	Window time.Duration
}

// Rows implements query.Source.
func (o Overlay) Rows(name string) ([]table.Row, error) {
	rows, err := o.Source.Rows(name)
	if err != nil || name != table.KernelSessions {
		return rows, err
	}
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		if s, ok := r.(*table.KernelSession); ok {
			out[i] = Present(s, o.Now, o.Window)
			continue
		}
		out[i] = r
	}
	return out, nil
}

// Orphaned returns the assigned or running entries whose session is stale
// at now, in request order. These are the entries orphan recovery fails.
func Orphaned(t *table.Tables, now time.Time, window time.Duration) []*table.QueueEntry {
	var out []*table.QueueEntry
	for _, e := range t.Queue {
		if e.Status != table.QueueAssigned && e.Status != table.QueueRunning {
			continue
		}
		if e.AssignedKernelSession == nil {
			continue
		}
		s, ok := t.KernelSessions[*e.AssignedKernelSession]
		if !ok || !IsStale(s, now, window) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
