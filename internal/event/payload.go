package event

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/cellsync/internal/ir"
)

// Payload is the typed body of an event. Sealed to this package.
type Payload interface {
	EventName() Name
	payload()
}

// NotebookInitializedPayload creates the store's notebook.
type NotebookInitializedPayload struct {
	ID      string  `json:"id"`
	Title   *string `json:"title,omitempty"`
	OwnerID string  `json:"ownerId"`
}

// NotebookTitleChangedPayload renames the store's notebook.
type NotebookTitleChangedPayload struct {
	Title string `json:"title"`
}

// CellCreatedPayload inserts a cell.
type CellCreatedPayload struct {
	ID        string  `json:"id"`
	CellType  string  `json:"cellType"`
	Position  int64   `json:"position"`
	CreatedBy string  `json:"createdBy"`
	Source    *string `json:"source,omitempty"`
}

// CellSourceChangedPayload replaces a cell's source.
type CellSourceChangedPayload struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	ModifiedBy *string `json:"modifiedBy,omitempty"`
}

// CellTypeChangedPayload changes a cell's type.
type CellTypeChangedPayload struct {
	ID       string `json:"id"`
	CellType string `json:"cellType"`
}

// CellMovedPayload changes a cell's ordering key.
type CellMovedPayload struct {
	ID       string `json:"id"`
	Position int64  `json:"position"`
}

// CellDeletedPayload soft-deletes a cell.
type CellDeletedPayload struct {
	ID        string  `json:"id"`
	DeletedBy *string `json:"deletedBy,omitempty"`
}

// CellOutputAddedPayload appends an output to a cell.
type CellOutputAddedPayload struct {
	ID             string    `json:"id"`
	CellID         string    `json:"cellId"`
	OutputType     string    `json:"outputType"`
	Data           ir.Object `json:"data"`
	Position       *int64    `json:"position,omitempty"`
	DisplayID      *string   `json:"displayId,omitempty"`
	ExecutionCount *int64    `json:"executionCount,omitempty"`
}

// CellOutputsClearedPayload purges a cell's outputs. With Wait set the purge
// is deferred until the next output arrives for the cell.
type CellOutputsClearedPayload struct {
	CellID    string  `json:"cellId"`
	Wait      bool    `json:"wait,omitempty"`
	ClearedBy *string `json:"clearedBy,omitempty"`
}

// DisplayDataUpdatedPayload replaces the data of every output sharing a display id.
type DisplayDataUpdatedPayload struct {
	DisplayID string    `json:"displayId"`
	Data      ir.Object `json:"data"`
}

// TerminalOutputAppendedPayload appends text to a streamed output.
type TerminalOutputAppendedPayload struct {
	OutputID string `json:"outputId"`
	Text     string `json:"text"`
}

// ExecutionRequestedPayload enqueues one execution attempt of a cell.
type ExecutionRequestedPayload struct {
	QueueID        string `json:"queueId"`
	CellID         string `json:"cellId"`
	ExecutionCount int64  `json:"executionCount"`
	RequestedBy    string `json:"requestedBy"`
	Priority       int64  `json:"priority"`
}

// ExecutionAssignedPayload binds a queue entry to a kernel session.
type ExecutionAssignedPayload struct {
	QueueID         string `json:"queueId"`
	KernelSessionID string `json:"kernelSessionId"`
}

// ExecutionStartedPayload marks a queue entry running.
type ExecutionStartedPayload struct {
	QueueID         string  `json:"queueId"`
	KernelSessionID *string `json:"kernelSessionId,omitempty"`
}

// Completion statuses carried by ExecutionCompleted.
const (
	CompletionSuccess = "success"
	CompletionError   = "error"
)

// ExecutionError describes a failed execution.
type ExecutionError struct {
	Ename     string   `json:"ename"`
	Evalue    *string  `json:"evalue,omitempty"`
	Traceback []string `json:"traceback,omitempty"`
}

// ExecutionCompletedPayload finishes a queue entry.
type ExecutionCompletedPayload struct {
	QueueID string          `json:"queueId"`
	Status  string          `json:"status"`
	Error   *ExecutionError `json:"error,omitempty"`
}

// ExecutionCancelledPayload cancels a non-terminal queue entry.
type ExecutionCancelledPayload struct {
	QueueID     string  `json:"queueId"`
	CancelledBy *string `json:"cancelledBy,omitempty"`
	Reason      *string `json:"reason,omitempty"`
}

// Capabilities advertises what a kernel session can execute.
type Capabilities struct {
	CanExecuteCode bool `json:"canExecuteCode,omitempty"`
	CanExecuteSQL  bool `json:"canExecuteSql,omitempty"`
	CanExecuteAI   bool `json:"canExecuteAi,omitempty"`
}

// KernelSessionStartedPayload registers a compute session.
type KernelSessionStartedPayload struct {
	SessionID    string        `json:"sessionId"`
	KernelID     *string       `json:"kernelId,omitempty"`
	KernelType   string        `json:"kernelType"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
}

// KernelSessionHeartbeatPayload refreshes a session's liveness and status.
type KernelSessionHeartbeatPayload struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// KernelSessionTerminatedPayload ends a session explicitly.
type KernelSessionTerminatedPayload struct {
	SessionID string  `json:"sessionId"`
	Reason    *string `json:"reason,omitempty"`
}

// ActorProfileSetPayload upserts an actor profile.
type ActorProfileSetPayload struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Avatar      *string `json:"avatar,omitempty"`
	Type        string  `json:"type"`
}

// PresenceSetPayload records where a user currently is.
type PresenceSetPayload struct {
	UserID string  `json:"userId"`
	CellID *string `json:"cellId,omitempty"`
}

// PresenceClearedPayload removes a user's presence.
type PresenceClearedPayload struct {
	UserID string `json:"userId"`
}

// TagCreatedPayload creates a tag.
type TagCreatedPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TagDeletedPayload deletes a tag and its assignments.
type TagDeletedPayload struct {
	ID string `json:"id"`
}

// TagAssignedPayload attaches a tag to a notebook.
type TagAssignedPayload struct {
	NotebookID string `json:"notebookId"`
	TagID      string `json:"tagId"`
}

// TagUnassignedPayload detaches a tag from a notebook.
type TagUnassignedPayload struct {
	NotebookID string `json:"notebookId"`
	TagID      string `json:"tagId"`
}

// UIStateSetPayload stores client-local UI state.
type UIStateSetPayload struct {
	Key   string   `json:"key"`
	Value ir.Value `json:"-"`
}

// UnmarshalJSON decodes the opaque value through ir.
func (p *UIStateSetPayload) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Key = raw.Key
	if len(raw.Value) == 0 {
		p.Value = ir.Null{}
		return nil
	}
	v, err := ir.Parse(raw.Value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	p.Value = v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p UIStateSetPayload) MarshalJSON() ([]byte, error) {
	value := p.Value
	if value == nil {
		value = ir.Null{}
	}
	return ir.MarshalCanonical(ir.Object{"key": ir.String(p.Key), "value": value})
}

func (*NotebookInitializedPayload) EventName() Name     { return NotebookInitialized }
func (*NotebookTitleChangedPayload) EventName() Name    { return NotebookTitleChanged }
func (*CellCreatedPayload) EventName() Name             { return CellCreated }
func (*CellSourceChangedPayload) EventName() Name       { return CellSourceChanged }
func (*CellTypeChangedPayload) EventName() Name         { return CellTypeChanged }
func (*CellMovedPayload) EventName() Name               { return CellMoved }
func (*CellDeletedPayload) EventName() Name             { return CellDeleted }
func (*CellOutputAddedPayload) EventName() Name         { return CellOutputAdded }
func (*CellOutputsClearedPayload) EventName() Name      { return CellOutputsCleared }
func (*DisplayDataUpdatedPayload) EventName() Name      { return DisplayDataUpdated }
func (*TerminalOutputAppendedPayload) EventName() Name  { return TerminalOutputAppended }
func (*ExecutionRequestedPayload) EventName() Name      { return ExecutionRequested }
func (*ExecutionAssignedPayload) EventName() Name       { return ExecutionAssigned }
func (*ExecutionStartedPayload) EventName() Name        { return ExecutionStarted }
func (*ExecutionCompletedPayload) EventName() Name      { return ExecutionCompleted }
func (*ExecutionCancelledPayload) EventName() Name      { return ExecutionCancelled }
func (*KernelSessionStartedPayload) EventName() Name    { return KernelSessionStarted }
func (*KernelSessionHeartbeatPayload) EventName() Name  { return KernelSessionHeartbeat }
func (*KernelSessionTerminatedPayload) EventName() Name { return KernelSessionTerminated }
func (*ActorProfileSetPayload) EventName() Name         { return ActorProfileSet }
func (*PresenceSetPayload) EventName() Name             { return PresenceSet }
func (*PresenceClearedPayload) EventName() Name         { return PresenceCleared }
func (*TagCreatedPayload) EventName() Name              { return TagCreated }
func (*TagDeletedPayload) EventName() Name              { return TagDeleted }
func (*TagAssignedPayload) EventName() Name             { return TagAssigned }
func (*TagUnassignedPayload) EventName() Name           { return TagUnassigned }
func (*UIStateSetPayload) EventName() Name              { return UIStateSet }

func (*NotebookInitializedPayload) payload()     {}
func (*NotebookTitleChangedPayload) payload()    {}
func (*CellCreatedPayload) payload()             {}
func (*CellSourceChangedPayload) payload()       {}
func (*CellTypeChangedPayload) payload()         {}
func (*CellMovedPayload) payload()               {}
func (*CellDeletedPayload) payload()             {}
func (*CellOutputAddedPayload) payload()         {}
func (*CellOutputsClearedPayload) payload()      {}
func (*DisplayDataUpdatedPayload) payload()      {}
func (*TerminalOutputAppendedPayload) payload()  {}
func (*ExecutionRequestedPayload) payload()      {}
func (*ExecutionAssignedPayload) payload()       {}
func (*ExecutionStartedPayload) payload()        {}
func (*ExecutionCompletedPayload) payload()      {}
func (*ExecutionCancelledPayload) payload()      {}
func (*KernelSessionStartedPayload) payload()    {}
func (*KernelSessionHeartbeatPayload) payload()  {}
func (*KernelSessionTerminatedPayload) payload() {}
func (*ActorProfileSetPayload) payload()         {}
func (*PresenceSetPayload) payload()             {}
func (*PresenceClearedPayload) payload()         {}
func (*TagCreatedPayload) payload()              {}
func (*TagDeletedPayload) payload()              {}
func (*TagAssignedPayload) payload()             {}
func (*TagUnassignedPayload) payload()           {}
func (*UIStateSetPayload) payload()              {}
