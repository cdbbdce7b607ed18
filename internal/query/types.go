package query

import "github.com/roach88/cellsync/internal/table"

// Predicate filters rows. Sealed to this package.
type Predicate interface {
	predicateNode()
}

// Eq matches rows whose column equals Value. Value is a string, int, int64,
// bool or time.Time; use IsNull for null comparisons.
type Eq struct {
	Column string
	Value  any
}

// IsNull matches rows whose nullable column is null.
type IsNull struct {
	Column string
}

// NotNull matches rows whose nullable column is set.
type NotNull struct {
	Column string
}

// In matches rows whose column equals any of Values.
type In struct {
	Column string
	Values []any
}

// And matches rows satisfying every predicate. An empty And matches all rows.
type And struct {
	Predicates []Predicate
}

func (Eq) predicateNode()      {}
func (IsNull) predicateNode()  {}
func (NotNull) predicateNode() {}
func (In) predicateNode()      {}
func (And) predicateNode()     {}

// Order sorts by one column. Nulls sort first.
type Order struct {
	Column string
	Desc   bool
}

// Spec is a query over one table.
//
// Rows that compare equal on every OrderBy column are ordered by primary key,
// so results are always deterministic.
type Spec struct {
	Table   string
	Where   Predicate
	OrderBy []Order
	// Limit caps the result size. Zero means unlimited.
	Limit int
}

// ResultSet is the output of one query evaluation.
type ResultSet struct {
	Table string
	// Seq is the log position the result reflects.
	Seq  int64
	Rows []table.Row
}

// Source supplies the rows of a table. *table.Tables is a Source.
type Source interface {
	Rows(name string) ([]table.Row, error)
}

// Column reads one column from every row of the result.
func (rs ResultSet) Column(name string) []any {
	out := make([]any, 0, len(rs.Rows))
	for _, r := range rs.Rows {
		v, _ := r.Column(name)
		out = append(out, v)
	}
	return out
}
