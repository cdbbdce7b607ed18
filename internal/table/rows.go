package table

import (
	"strconv"
	"time"

	"github.com/roach88/cellsync/internal/ir"
)

// Row is one record of a projected table.
type Row interface {
	// Key is the row's primary key within its table.
	Key() string
	// Column returns the named column value. Values are nil, string, int64,
	// bool, time.Time or ir.Value. ok is false for unknown columns.
	Column(name string) (value any, ok bool)
}

// ExecutionState is the derived per-cell execution status.
type ExecutionState string

const (
	StateIdle      ExecutionState = "idle"
	StateQueued    ExecutionState = "queued"
	StateRunning   ExecutionState = "running"
	StateCompleted ExecutionState = "completed"
	StateError     ExecutionState = "error"
)

// QueueStatus is the lifecycle state of an execution queue entry.
type QueueStatus string

const (
	QueueRequested QueueStatus = "requested"
	QueueAssigned  QueueStatus = "assigned"
	QueueRunning   QueueStatus = "running"
	QueueCompleted QueueStatus = "completed"
	QueueCancelled QueueStatus = "cancelled"
	QueueError     QueueStatus = "error"
)

// SessionStatus is a kernel session's reported status.
type SessionStatus string

const (
	SessionStarting   SessionStatus = "starting"
	SessionReady      SessionStatus = "ready"
	SessionBusy       SessionStatus = "busy"
	SessionTerminated SessionStatus = "terminated"
)

// Notebook is the store's notebook. A store holds at most one.
type Notebook struct {
	ID           string    `json:"id"`
	Title        *string   `json:"title"`
	OwnerID      string    `json:"ownerId"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

func (n *Notebook) Key() string { return n.ID }

func (n *Notebook) Column(name string) (any, bool) {
	switch name {
	case "id":
		return n.ID, true
	case "title":
		return optString(n.Title), true
	case "ownerId":
		return n.OwnerID, true
	case "createdAt":
		return n.CreatedAt, true
	case "lastModified":
		return n.LastModified, true
	}
	return nil, false
}

// Cell is a notebook cell. Deleted cells stay in the table with DeletedAt set.
type Cell struct {
	ID             string         `json:"id"`
	NotebookID     string         `json:"notebookId"`
	CellType       string         `json:"cellType"`
	Position       int64          `json:"position"`
	Source         string         `json:"source"`
	CreatedBy      string         `json:"createdBy"`
	CreatedAt      time.Time      `json:"createdAt"`
	ExecutionCount int64          `json:"executionCount"`
	ExecutionState ExecutionState `json:"executionState"`
	DeletedAt      *time.Time     `json:"deletedAt"`
	DeletedBy      *string        `json:"deletedBy"`
	// PendingClear defers an output purge until the next output arrives.
	PendingClear bool `json:"pendingClear"`
}

func (c *Cell) Key() string { return c.ID }

// Live reports whether the cell has not been deleted.
func (c *Cell) Live() bool { return c.DeletedAt == nil }

func (c *Cell) Column(name string) (any, bool) {
	switch name {
	case "id":
		return c.ID, true
	case "notebookId":
		return c.NotebookID, true
	case "cellType":
		return c.CellType, true
	case "position":
		return c.Position, true
	case "source":
		return c.Source, true
	case "createdBy":
		return c.CreatedBy, true
	case "createdAt":
		return c.CreatedAt, true
	case "executionCount":
		return c.ExecutionCount, true
	case "executionState":
		return string(c.ExecutionState), true
	case "deletedAt":
		return optTime(c.DeletedAt), true
	case "deletedBy":
		return optString(c.DeletedBy), true
	case "pendingClear":
		return c.PendingClear, true
	}
	return nil, false
}

// Output is one output of a cell.
type Output struct {
	ID             string    `json:"id"`
	CellID         string    `json:"cellId"`
	OutputType     string    `json:"outputType"`
	Data           ir.Object `json:"data"`
	Position       int64     `json:"position"`
	CreatedAt      time.Time `json:"createdAt"`
	DisplayID      *string   `json:"displayId"`
	ExecutionCount *int64    `json:"executionCount"`
}

func (o *Output) Key() string { return o.ID }

func (o *Output) Column(name string) (any, bool) {
	switch name {
	case "id":
		return o.ID, true
	case "cellId":
		return o.CellID, true
	case "outputType":
		return o.OutputType, true
	case "data":
		return o.Data, true
	case "position":
		return o.Position, true
	case "createdAt":
		return o.CreatedAt, true
	case "displayId":
		return optString(o.DisplayID), true
	case "executionCount":
		if o.ExecutionCount == nil {
			return nil, true
		}
		return *o.ExecutionCount, true
	}
	return nil, false
}

// KernelSession is a remote compute session.
type KernelSession struct {
	SessionID         string        `json:"sessionId"`
	KernelID          string        `json:"kernelId"`
	KernelType        string        `json:"kernelType"`
	Status            SessionStatus `json:"status"`
	IsActive          bool          `json:"isActive"`
	CanExecuteCode    bool          `json:"canExecuteCode"`
	CanExecuteSQL     bool          `json:"canExecuteSql"`
	CanExecuteAI      bool          `json:"canExecuteAi"`
	StartedAt         time.Time     `json:"startedAt"`
	LastHeartbeatAt   time.Time     `json:"lastHeartbeatAt"`
	TerminatedAt      *time.Time    `json:"terminatedAt"`
	TerminationReason *string       `json:"terminationReason"`
}

func (s *KernelSession) Key() string { return s.SessionID }

// CanExecute reports whether the session advertises support for cellType.
// Markdown and raw cells never execute on a kernel.
func (s *KernelSession) CanExecute(cellType string) bool {
	switch cellType {
	case "code":
		return s.CanExecuteCode
	case "sql":
		return s.CanExecuteSQL
	case "ai":
		return s.CanExecuteAI
	}
	return false
}

func (s *KernelSession) Column(name string) (any, bool) {
	switch name {
	case "sessionId":
		return s.SessionID, true
	case "kernelId":
		return s.KernelID, true
	case "kernelType":
		return s.KernelType, true
	case "status":
		return string(s.Status), true
	case "isActive":
		return s.IsActive, true
	case "canExecuteCode":
		return s.CanExecuteCode, true
	case "canExecuteSql":
		return s.CanExecuteSQL, true
	case "canExecuteAi":
		return s.CanExecuteAI, true
	case "startedAt":
		return s.StartedAt, true
	case "lastHeartbeatAt":
		return s.LastHeartbeatAt, true
	case "terminatedAt":
		return optTime(s.TerminatedAt), true
	case "terminationReason":
		return optString(s.TerminationReason), true
	}
	return nil, false
}

// QueueEntry is one execution attempt of a cell.
type QueueEntry struct {
	ID                    string      `json:"id"`
	CellID                string      `json:"cellId"`
	ExecutionCount        int64       `json:"executionCount"`
	RequestedBy           string      `json:"requestedBy"`
	RequestedAt           time.Time   `json:"requestedAt"`
	Priority              int64       `json:"priority"`
	Status                QueueStatus `json:"status"`
	AssignedKernelSession *string     `json:"assignedKernelSession"`
	AssignedAt            *time.Time  `json:"assignedAt"`
	StartedAt             *time.Time  `json:"startedAt"`
	CompletedAt           *time.Time  `json:"completedAt"`
	ErrorReason           *string     `json:"errorReason"`
	// Seq is the log position of the request.
	Seq int64 `json:"seq"`
}

func (q *QueueEntry) Key() string { return q.ID }

func (q *QueueEntry) Column(name string) (any, bool) {
	switch name {
	case "id":
		return q.ID, true
	case "cellId":
		return q.CellID, true
	case "executionCount":
		return q.ExecutionCount, true
	case "requestedBy":
		return q.RequestedBy, true
	case "requestedAt":
		return q.RequestedAt, true
	case "priority":
		return q.Priority, true
	case "status":
		return string(q.Status), true
	case "assignedKernelSession":
		return optString(q.AssignedKernelSession), true
	case "assignedAt":
		return optTime(q.AssignedAt), true
	case "startedAt":
		return optTime(q.StartedAt), true
	case "completedAt":
		return optTime(q.CompletedAt), true
	case "errorReason":
		return optString(q.ErrorReason), true
	case "seq":
		return q.Seq, true
	}
	return nil, false
}

// Actor is a human, kernel or service profile.
type Actor struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Avatar      *string `json:"avatar"`
	Type        string  `json:"type"`
}

func (a *Actor) Key() string { return a.ID }

func (a *Actor) Column(name string) (any, bool) {
	switch name {
	case "id":
		return a.ID, true
	case "displayName":
		return a.DisplayName, true
	case "avatar":
		return optString(a.Avatar), true
	case "type":
		return a.Type, true
	}
	return nil, false
}

// Presence is where a user currently is. Current state only.
type Presence struct {
	UserID    string    `json:"userId"`
	CellID    *string   `json:"cellId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Presence) Key() string { return p.UserID }

func (p *Presence) Column(name string) (any, bool) {
	switch name {
	case "userId":
		return p.UserID, true
	case "cellId":
		return optString(p.CellID), true
	case "updatedAt":
		return p.UpdatedAt, true
	}
	return nil, false
}

// Tag is a named label. Names are unique.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (t *Tag) Key() string { return t.ID }

func (t *Tag) Column(name string) (any, bool) {
	switch name {
	case "id":
		return t.ID, true
	case "name":
		return t.Name, true
	case "color":
		return t.Color, true
	}
	return nil, false
}

// TagAssignment links a tag to a notebook.
type TagAssignment struct {
	NotebookID string `json:"notebookId"`
	TagID      string `json:"tagId"`
}

// AssignmentKey is the primary key of a TagAssignment.
func AssignmentKey(notebookID, tagID string) string {
	return notebookID + "/" + tagID
}

func (a *TagAssignment) Key() string { return AssignmentKey(a.NotebookID, a.TagID) }

func (a *TagAssignment) Column(name string) (any, bool) {
	switch name {
	case "notebookId":
		return a.NotebookID, true
	case "tagId":
		return a.TagID, true
	}
	return nil, false
}

// Violation records a structurally valid event applied in an illegal state.
type Violation struct {
	Seq      int64  `json:"seq"`
	Event    string `json:"event"`
	EntityID string `json:"entityId"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

func (v *Violation) Key() string {
	return strconv.FormatInt(v.Seq, 10) + "/" + v.Code + "/" + v.EntityID
}

func (v *Violation) Column(name string) (any, bool) {
	switch name {
	case "seq":
		return v.Seq, true
	case "event":
		return v.Event, true
	case "entityId":
		return v.EntityID, true
	case "code":
		return v.Code, true
	case "detail":
		return v.Detail, true
	}
	return nil, false
}

// UIState is client-local, non-authoritative UI state.
type UIState struct {
	Name      string    `json:"key"`
	Value     ir.Value  `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *UIState) Key() string { return u.Name }

func (u *UIState) Column(name string) (any, bool) {
	switch name {
	case "key":
		return u.Name, true
	case "value":
		return u.Value, true
	case "updatedAt":
		return u.UpdatedAt, true
	}
	return nil, false
}

func optString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func optTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
