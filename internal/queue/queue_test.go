package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellsync/internal/table"
)

var base = time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to table.QueueStatus
		want     bool
	}{
		{table.QueueRequested, table.QueueAssigned, true},
		{table.QueueAssigned, table.QueueRunning, true},
		{table.QueueRunning, table.QueueCompleted, true},
		{table.QueueRequested, table.QueueCancelled, true},
		{table.QueueAssigned, table.QueueCancelled, true},
		{table.QueueRunning, table.QueueCancelled, true},
		{table.QueueRequested, table.QueueError, true},
		{table.QueueAssigned, table.QueueError, true},
		{table.QueueRequested, table.QueueRunning, false},
		{table.QueueRequested, table.QueueCompleted, false},
		{table.QueueAssigned, table.QueueAssigned, false},
		{table.QueueRunning, table.QueueAssigned, false},
		{table.QueueCompleted, table.QueueError, false},
		{table.QueueCancelled, table.QueueRequested, false},
		{table.QueueError, table.QueueCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(table.QueueCompleted))
	assert.True(t, IsTerminal(table.QueueCancelled))
	assert.True(t, IsTerminal(table.QueueError))
	assert.False(t, IsTerminal(table.QueueRequested))
	assert.False(t, IsTerminal(table.QueueRunning))
}

func TestCellState(t *testing.T) {
	assert.Equal(t, table.StateQueued, CellState(table.QueueRequested))
	assert.Equal(t, table.StateQueued, CellState(table.QueueAssigned))
	assert.Equal(t, table.StateRunning, CellState(table.QueueRunning))
	assert.Equal(t, table.StateCompleted, CellState(table.QueueCompleted))
	assert.Equal(t, table.StateError, CellState(table.QueueError))
	assert.Equal(t, table.StateIdle, CellState(table.QueueCancelled))
}

func fixture() *table.Tables {
	tb := table.New()
	tb.Cells["c1"] = &table.Cell{ID: "c1", CellType: "code"}
	tb.Cells["c2"] = &table.Cell{ID: "c2", CellType: "sql"}
	tb.Cells["gone"] = &table.Cell{ID: "gone", CellType: "code", DeletedAt: &base}
	tb.Queue["low-old"] = &table.QueueEntry{ID: "low-old", CellID: "c1", Status: table.QueueRequested, Priority: 0, RequestedAt: base, Seq: 1}
	tb.Queue["high"] = &table.QueueEntry{ID: "high", CellID: "c2", Status: table.QueueRequested, Priority: 5, RequestedAt: base.Add(time.Minute), Seq: 2}
	tb.Queue["low-new"] = &table.QueueEntry{ID: "low-new", CellID: "c1", Status: table.QueueRequested, Priority: 0, RequestedAt: base.Add(time.Second), Seq: 3}
	tb.Queue["low-tie"] = &table.QueueEntry{ID: "low-tie", CellID: "c1", Status: table.QueueRequested, Priority: 0, RequestedAt: base.Add(time.Second), Seq: 4}
	tb.Queue["deleted"] = &table.QueueEntry{ID: "deleted", CellID: "gone", Status: table.QueueRequested, Priority: 9, RequestedAt: base, Seq: 5}
	tb.Queue["done"] = &table.QueueEntry{ID: "done", CellID: "c1", Status: table.QueueCompleted, Priority: 9, RequestedAt: base, Seq: 6}
	return tb
}

func TestPending_Order(t *testing.T) {
	var ids []string
	for _, q := range Pending(fixture()) {
		ids = append(ids, q.ID)
	}
	assert.Equal(t, []string{"high", "low-old", "low-new", "low-tie"}, ids)

	head, ok := Next(fixture())
	require.True(t, ok)
	assert.Equal(t, "high", head.ID)

	_, ok = Next(table.New())
	assert.False(t, ok)
}

func TestCheckAssign(t *testing.T) {
	tb := fixture()
	tb.KernelSessions["py"] = &table.KernelSession{SessionID: "py", Status: table.SessionReady, CanExecuteCode: true}
	tb.KernelSessions["dead"] = &table.KernelSession{SessionID: "dead", Status: table.SessionTerminated, CanExecuteCode: true}

	code, _ := CheckAssign(tb, tb.Queue["low-old"], "py")
	assert.Empty(t, code)

	code, _ = CheckAssign(tb, tb.Queue["low-old"], "unknown")
	assert.Empty(t, code, "unknown sessions are accepted")

	code, _ = CheckAssign(tb, tb.Queue["done"], "py")
	assert.Equal(t, CodeInvalidTransition, code)

	code, detail := CheckAssign(tb, tb.Queue["deleted"], "py")
	assert.Equal(t, CodeCellUnavailable, code)
	assert.Contains(t, detail, "gone")

	delete(tb.Cells, "c2")
	code, _ = CheckAssign(tb, tb.Queue["high"], "unknown")
	assert.Equal(t, CodeCellUnavailable, code)
	tb.Cells["c2"] = &table.Cell{ID: "c2", CellType: "sql"}

	code, _ = CheckAssign(tb, tb.Queue["low-old"], "dead")
	assert.Equal(t, CodeSessionTerminated, code)

	code, _ = CheckAssign(tb, tb.Queue["high"], "py")
	assert.Equal(t, CodeSessionIncapable, code)

	tb.Queue["low-old"].Status = table.QueueRunning
	tb.Queue["low-old"].AssignedKernelSession = strPtr("py")
	code, detail = CheckAssign(tb, tb.Queue["low-new"], "py")
	assert.Equal(t, CodeSessionBusy, code)
	assert.Contains(t, detail, "low-old")
}

func TestNextFor_SkipsIncapable(t *testing.T) {
	tb := fixture()
	tb.KernelSessions["py"] = &table.KernelSession{SessionID: "py", Status: table.SessionReady, CanExecuteCode: true}

	q, ok := NextFor(tb, "py")
	require.True(t, ok)
	assert.Equal(t, "low-old", q.ID)
}

func TestActiveAndLatest(t *testing.T) {
	tb := fixture()
	tb.Queue["low-new"].Status = table.QueueAssigned
	tb.Queue["low-new"].AssignedKernelSession = strPtr("s1")
	tb.Queue["low-old"].Status = table.QueueRunning
	tb.Queue["low-old"].AssignedKernelSession = strPtr("s1")

	active := Active(tb, "s1")
	require.Len(t, active, 2)
	assert.Equal(t, "low-old", active[0].ID)
	assert.Empty(t, Active(tb, "s2"))

	assert.Equal(t, "done", Latest(tb, "c1").ID)
	assert.Nil(t, Latest(tb, "c9"))
}
