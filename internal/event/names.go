package event

import "strings"

// Name is the versioned wire name of an event kind.
type Name string

// VersionPrefix is carried by every synced event name.
const VersionPrefix = "v1."

// Notebook and cell events.
const (
	NotebookInitialized  Name = "v1.NotebookInitialized"
	NotebookTitleChanged Name = "v1.NotebookTitleChanged"
	CellCreated          Name = "v1.CellCreated"
	CellSourceChanged    Name = "v1.CellSourceChanged"
	CellTypeChanged      Name = "v1.CellTypeChanged"
	CellMoved            Name = "v1.CellMoved"
	CellDeleted          Name = "v1.CellDeleted"
)

// Output events.
const (
	CellOutputAdded        Name = "v1.CellOutputAdded"
	CellOutputsCleared     Name = "v1.CellOutputsCleared"
	DisplayDataUpdated     Name = "v1.DisplayDataUpdated"
	TerminalOutputAppended Name = "v1.TerminalOutputAppended"
)

// Execution queue events.
const (
	ExecutionRequested Name = "v1.ExecutionRequested"
	ExecutionAssigned  Name = "v1.ExecutionAssigned"
	ExecutionStarted   Name = "v1.ExecutionStarted"
	ExecutionCompleted Name = "v1.ExecutionCompleted"
	ExecutionCancelled Name = "v1.ExecutionCancelled"
)

// Kernel session events.
const (
	KernelSessionStarted    Name = "v1.KernelSessionStarted"
	KernelSessionHeartbeat  Name = "v1.KernelSessionHeartbeat"
	KernelSessionTerminated Name = "v1.KernelSessionTerminated"
)

// Actor, presence and tag events.
const (
	ActorProfileSet Name = "v1.ActorProfileSet"
	PresenceSet     Name = "v1.PresenceSet"
	PresenceCleared Name = "v1.PresenceCleared"
	TagCreated      Name = "v1.TagCreated"
	TagDeleted      Name = "v1.TagDeleted"
	TagAssigned     Name = "v1.TagAssigned"
	TagUnassigned   Name = "v1.TagUnassigned"
)

// UIStateSet is client-local UI state. Unversioned and never synced.
const UIStateSet Name = "uiStateSet"

// Versioned reports whether the name carries the v1. prefix.
func (n Name) Versioned() bool {
	return strings.HasPrefix(string(n), VersionPrefix)
}

// Short returns the name without its version prefix ("CellCreated").
func (n Name) Short() string {
	return strings.TrimPrefix(string(n), VersionPrefix)
}

// Kind describes one registered event kind.
type Kind struct {
	Name Name
	// Definition is the CUE definition validating the payload.
	Definition string
	// Local kinds are materialized but never appended to the log.
	Local bool
	New   func() Payload
}

var kinds = []Kind{
	{Name: NotebookInitialized, New: func() Payload { return &NotebookInitializedPayload{} }},
	{Name: NotebookTitleChanged, New: func() Payload { return &NotebookTitleChangedPayload{} }},
	{Name: CellCreated, New: func() Payload { return &CellCreatedPayload{} }},
	{Name: CellSourceChanged, New: func() Payload { return &CellSourceChangedPayload{} }},
	{Name: CellTypeChanged, New: func() Payload { return &CellTypeChangedPayload{} }},
	{Name: CellMoved, New: func() Payload { return &CellMovedPayload{} }},
	{Name: CellDeleted, New: func() Payload { return &CellDeletedPayload{} }},
	{Name: CellOutputAdded, New: func() Payload { return &CellOutputAddedPayload{} }},
	{Name: CellOutputsCleared, New: func() Payload { return &CellOutputsClearedPayload{} }},
	{Name: DisplayDataUpdated, New: func() Payload { return &DisplayDataUpdatedPayload{} }},
	{Name: TerminalOutputAppended, New: func() Payload { return &TerminalOutputAppendedPayload{} }},
	{Name: ExecutionRequested, New: func() Payload { return &ExecutionRequestedPayload{} }},
	{Name: ExecutionAssigned, New: func() Payload { return &ExecutionAssignedPayload{} }},
	{Name: ExecutionStarted, New: func() Payload { return &ExecutionStartedPayload{} }},
	{Name: ExecutionCompleted, New: func() Payload { return &ExecutionCompletedPayload{} }},
	{Name: ExecutionCancelled, New: func() Payload { return &ExecutionCancelledPayload{} }},
	{Name: KernelSessionStarted, New: func() Payload { return &KernelSessionStartedPayload{} }},
	{Name: KernelSessionHeartbeat, New: func() Payload { return &KernelSessionHeartbeatPayload{} }},
	{Name: KernelSessionTerminated, New: func() Payload { return &KernelSessionTerminatedPayload{} }},
	{Name: ActorProfileSet, New: func() Payload { return &ActorProfileSetPayload{} }},
	{Name: PresenceSet, New: func() Payload { return &PresenceSetPayload{} }},
	{Name: PresenceCleared, New: func() Payload { return &PresenceClearedPayload{} }},
	{Name: TagCreated, New: func() Payload { return &TagCreatedPayload{} }},
	{Name: TagDeleted, New: func() Payload { return &TagDeletedPayload{} }},
	{Name: TagAssigned, New: func() Payload { return &TagAssignedPayload{} }},
	{Name: TagUnassigned, New: func() Payload { return &TagUnassignedPayload{} }},
	{Name: UIStateSet, Local: true, New: func() Payload { return &UIStateSetPayload{} }},
}

func init() {
	for i := range kinds {
		kinds[i].Definition = "#" + kinds[i].Name.Short()
	}
}

// Kinds returns every registered kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}
