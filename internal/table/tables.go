package table

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/cellsync/internal/ir"
)

// Tables is the full projected state of one store.
//
// Tables is not safe for concurrent use. The engine owns the live instance
// and hands out clones to readers.
type Tables struct {
	Notebooks      map[string]*Notebook
	Cells          map[string]*Cell
	Outputs        map[string]*Output
	KernelSessions map[string]*KernelSession
	Queue          map[string]*QueueEntry
	Actors         map[string]*Actor
	Presence       map[string]*Presence
	Tags           map[string]*Tag
	TagAssignments map[string]*TagAssignment
	// Violations is append-only in log order.
	Violations []Violation
	UIState    map[string]*UIState
}

// New returns empty tables.
func New() *Tables {
	return &Tables{
		Notebooks:      map[string]*Notebook{},
		Cells:          map[string]*Cell{},
		Outputs:        map[string]*Output{},
		KernelSessions: map[string]*KernelSession{},
		Queue:          map[string]*QueueEntry{},
		Actors:         map[string]*Actor{},
		Presence:       map[string]*Presence{},
		Tags:           map[string]*Tag{},
		TagAssignments: map[string]*TagAssignment{},
		UIState:        map[string]*UIState{},
	}
}

// Notebook returns the store's notebook, or nil before NotebookInitialized.
func (t *Tables) Notebook() *Notebook {
	keys := sortedKeys(t.Notebooks)
	if len(keys) == 0 {
		return nil
	}
	return t.Notebooks[keys[0]]
}

// Clone returns a deep copy.
func (t *Tables) Clone() *Tables {
	c := New()
	cloneInto(c.Notebooks, t.Notebooks)
	cloneInto(c.Cells, t.Cells)
	cloneInto(c.Outputs, t.Outputs)
	cloneInto(c.KernelSessions, t.KernelSessions)
	cloneInto(c.Queue, t.Queue)
	cloneInto(c.Actors, t.Actors)
	cloneInto(c.Presence, t.Presence)
	cloneInto(c.Tags, t.Tags)
	cloneInto(c.TagAssignments, t.TagAssignments)
	c.Violations = append([]Violation(nil), t.Violations...)
	// ir values are immutable once stored, so a shallow UIState copy is enough
	cloneInto(c.UIState, t.UIState)
	return c
}

func cloneInto[P Row](dst, src map[string]P) {
	for k, v := range src {
		dst[k] = CopyRow(v).(P)
	}
}

// Rows returns the rows of the named table. Keyed tables are ordered by key;
// violations keep log order.
func (t *Tables) Rows(name string) ([]Row, error) {
	switch name {
	case Notebooks:
		return rowsOf(t.Notebooks), nil
	case Cells:
		return rowsOf(t.Cells), nil
	case Outputs:
		return rowsOf(t.Outputs), nil
	case KernelSessions:
		return rowsOf(t.KernelSessions), nil
	case Queue:
		return rowsOf(t.Queue), nil
	case Actors:
		return rowsOf(t.Actors), nil
	case Presences:
		return rowsOf(t.Presence), nil
	case Tags:
		return rowsOf(t.Tags), nil
	case TagAssignments:
		return rowsOf(t.TagAssignments), nil
	case Violations:
		rows := make([]Row, len(t.Violations))
		for i := range t.Violations {
			rows[i] = &t.Violations[i]
		}
		return rows, nil
	case UIStates:
		return rowsOf(t.UIState), nil
	}
	return nil, fmt.Errorf("unknown table %q", name)
}

// OutputsOf returns the outputs of a cell ordered by position then id.
func (t *Tables) OutputsOf(cellID string) []*Output {
	var out []*Output
	for _, o := range t.Outputs {
		if o.CellID == cellID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// EntriesOf returns the queue entries of a cell in request order.
func (t *Tables) EntriesOf(cellID string) []*QueueEntry {
	var out []*QueueEntry
	for _, q := range t.Queue {
		if q.CellID == cellID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// snapshot is the digest form: authoritative tables only, every map as a
// key-ordered slice.
type snapshot struct {
	Notebooks      []*Notebook      `json:"notebook"`
	Cells          []*Cell          `json:"cells"`
	Outputs        []*Output        `json:"outputs"`
	KernelSessions []*KernelSession `json:"kernelSessions"`
	Queue          []*QueueEntry    `json:"executionQueue"`
	Actors         []*Actor         `json:"actors"`
	Presence       []*Presence      `json:"presence"`
	Tags           []*Tag           `json:"tags"`
	TagAssignments []*TagAssignment `json:"notebookTags"`
	Violations     []Violation      `json:"violations"`
}

// MarshalAuthoritative encodes every authoritative table deterministically.
// Local tables are excluded.
func (t *Tables) MarshalAuthoritative() ([]byte, error) {
	s := snapshot{
		Notebooks:      valuesOf(t.Notebooks),
		Cells:          valuesOf(t.Cells),
		Outputs:        valuesOf(t.Outputs),
		KernelSessions: valuesOf(t.KernelSessions),
		Queue:          valuesOf(t.Queue),
		Actors:         valuesOf(t.Actors),
		Presence:       valuesOf(t.Presence),
		Tags:           valuesOf(t.Tags),
		TagAssignments: valuesOf(t.TagAssignments),
		Violations:     t.Violations,
	}
	return json.Marshal(s)
}

// Digest fingerprints the authoritative tables. Two replays of the same log
// must produce the same digest.
func (t *Tables) Digest() (string, error) {
	data, err := t.MarshalAuthoritative()
	if err != nil {
		return "", fmt.Errorf("digest tables: %w", err)
	}
	return ir.Digest(ir.DomainTables, data), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func valuesOf[V any](m map[string]*V) []*V {
	out := make([]*V, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k])
	}
	return out
}

func rowsOf[P Row](m map[string]P) []Row {
	out := make([]Row, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k])
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(n *int64) *int64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

// CopyRow returns a detached copy of a row so it can outlive later
// mutations of the tables it came from.
func CopyRow(r Row) Row {
	switch v := r.(type) {
	case *Notebook:
		c := *v
		c.Title = cloneString(v.Title)
		return &c
	case *Cell:
		c := *v
		c.DeletedAt = cloneTime(v.DeletedAt)
		c.DeletedBy = cloneString(v.DeletedBy)
		return &c
	case *Output:
		c := *v
		c.Data = v.Data.Clone()
		c.DisplayID = cloneString(v.DisplayID)
		c.ExecutionCount = cloneInt(v.ExecutionCount)
		return &c
	case *KernelSession:
		c := *v
		c.TerminatedAt = cloneTime(v.TerminatedAt)
		c.TerminationReason = cloneString(v.TerminationReason)
		return &c
	case *QueueEntry:
		c := *v
		c.AssignedKernelSession = cloneString(v.AssignedKernelSession)
		c.AssignedAt = cloneTime(v.AssignedAt)
		c.StartedAt = cloneTime(v.StartedAt)
		c.CompletedAt = cloneTime(v.CompletedAt)
		c.ErrorReason = cloneString(v.ErrorReason)
		return &c
	case *Actor:
		c := *v
		c.Avatar = cloneString(v.Avatar)
		return &c
	case *Presence:
		c := *v
		c.CellID = cloneString(v.CellID)
		return &c
	case *Tag:
		c := *v
		return &c
	case *TagAssignment:
		c := *v
		return &c
	case *Violation:
		c := *v
		return &c
	case *UIState:
		c := *v
		return &c
	}
	return r
}
