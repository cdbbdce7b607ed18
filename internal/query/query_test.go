package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellsync/internal/table"
)

var t0 = time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)

func cellsFixture() *table.Tables {
	tb := table.New()
	deletedBy := "u2"
	deletedAt := t0.Add(time.Hour)
	tb.Cells["c1"] = &table.Cell{ID: "c1", CellType: "code", Position: 2, Source: "a", ExecutionState: table.StateIdle}
	tb.Cells["c2"] = &table.Cell{ID: "c2", CellType: "markdown", Position: 1, Source: "b", ExecutionState: table.StateIdle}
	tb.Cells["c3"] = &table.Cell{ID: "c3", CellType: "code", Position: 1, Source: "c", ExecutionState: table.StateCompleted}
	tb.Cells["c4"] = &table.Cell{ID: "c4", CellType: "sql", Position: 0, DeletedAt: &deletedAt, DeletedBy: &deletedBy}
	return tb
}

func keys(rs ResultSet) []string {
	out := make([]string, 0, len(rs.Rows))
	for _, r := range rs.Rows {
		out = append(out, r.Key())
	}
	return out
}

func TestRun_SoftDeleteFilter(t *testing.T) {
	tb := cellsFixture()

	live, err := Run(tb, Spec{Table: table.Cells, Where: IsNull{Column: "deletedAt"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3"}, keys(live))

	all, err := Run(tb, Spec{Table: table.Cells})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3", "c4"}, keys(all))

	deleted, err := Run(tb, Spec{Table: table.Cells, Where: NotNull{Column: "deletedAt"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c4"}, keys(deleted))
}

func TestRun_OrderTieBreaksByKey(t *testing.T) {
	rs, err := Run(cellsFixture(), Spec{
		Table:   table.Cells,
		Where:   IsNull{Column: "deletedAt"},
		OrderBy: []Order{{Column: "position"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c3", "c1"}, keys(rs))

	rs, err = Run(cellsFixture(), Spec{Table: table.Cells, OrderBy: []Order{{Column: "position", Desc: true}}, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, keys(rs))
}

func TestRun_NullOrdering(t *testing.T) {
	rs, err := Run(cellsFixture(), Spec{Table: table.Cells, OrderBy: []Order{{Column: "deletedAt"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3", "c4"}, keys(rs))

	rs, err = Run(cellsFixture(), Spec{Table: table.Cells, OrderBy: []Order{{Column: "deletedAt", Desc: true}}})
	require.NoError(t, err)
	assert.Equal(t, "c4", rs.Rows[0].Key())
}

func TestRun_Predicates(t *testing.T) {
	tb := cellsFixture()
	tests := []struct {
		name  string
		where Predicate
		want  []string
	}{
		{"eq string", Eq{Column: "cellType", Value: "code"}, []string{"c1", "c3"}},
		{"eq int", Eq{Column: "position", Value: 1}, []string{"c2", "c3"}},
		{"eq int64", Eq{Column: "position", Value: int64(0)}, []string{"c4"}},
		{"eq bool", Eq{Column: "pendingClear", Value: false}, []string{"c1", "c2", "c3", "c4"}},
		{"eq nullable", Eq{Column: "deletedBy", Value: "u2"}, []string{"c4"}},
		{"in", In{Column: "cellType", Values: []any{"sql", "markdown"}}, []string{"c2", "c4"}},
		{"in empty", In{Column: "cellType"}, []string{}},
		{"and", And{Predicates: []Predicate{Eq{Column: "cellType", Value: "code"}, Eq{Column: "executionState", Value: "completed"}}}, []string{"c3"}},
		{"and empty", And{}, []string{"c1", "c2", "c3", "c4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Run(tb, Spec{Table: table.Cells, Where: tt.where})
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys(rs))
		})
	}
}

func TestRun_RowsAreDetached(t *testing.T) {
	tb := cellsFixture()
	rs, err := Run(tb, Spec{Table: table.Cells, Where: Eq{Column: "id", Value: "c1"}})
	require.NoError(t, err)

	tb.Cells["c1"].Source = "changed"
	assert.Equal(t, []any{"a"}, rs.Column("source"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"unknown table", Spec{Table: "nope"}},
		{"unknown column", Spec{Table: table.Cells, Where: Eq{Column: "nope", Value: "x"}}},
		{"wrong type", Spec{Table: table.Cells, Where: Eq{Column: "position", Value: "1"}}},
		{"nil value", Spec{Table: table.Cells, Where: Eq{Column: "source", Value: nil}}},
		{"null on required", Spec{Table: table.Cells, Where: IsNull{Column: "source"}}},
		{"data compare", Spec{Table: table.Outputs, Where: Eq{Column: "data", Value: "x"}}},
		{"data order", Spec{Table: table.Outputs, OrderBy: []Order{{Column: "data"}}}},
		{"order unknown", Spec{Table: table.Cells, OrderBy: []Order{{Column: "nope"}}}},
		{"in bad value", Spec{Table: table.Cells, Where: In{Column: "position", Values: []any{1, "2"}}}},
		{"nested nil", Spec{Table: table.Cells, Where: And{Predicates: []Predicate{nil}}}},
		{"negative limit", Spec{Table: table.Cells, Limit: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec)
			require.Error(t, err)
			assert.True(t, IsQueryError(err))

			_, err = Run(table.New(), tt.spec)
			assert.Error(t, err)
		})
	}

	assert.NoError(t, Validate(Spec{Table: table.Queue, Where: Eq{Column: "requestedAt", Value: t0}}))
}
