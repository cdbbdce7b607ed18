package harness

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/roach88/cellsync/internal/engine"
	"github.com/roach88/cellsync/internal/ir"
	"github.com/roach88/cellsync/internal/query"
	"github.com/roach88/cellsync/internal/table"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s failed: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// assert evaluates one assertion against the engine's current state.
func (r *runner) assert(a Assertion) error {
	switch a.Type {
	case AssertFinalState:
		return r.assertFinalState(a)
	case AssertCount:
		return r.assertCount(a)
	case AssertHead:
		if head := r.eng.Head(); head != a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("head %d", a.Count), Actual: fmt.Sprintf("head %d", head)}
		}
		return nil
	case AssertReplay:
		if _, err := r.eng.VerifyReplay(r.ctx); err != nil {
			var mismatch *engine.DigestMismatchError
			if errors.As(err, &mismatch) {
				return &AssertionError{Type: a.Type, Expected: "digest " + mismatch.Live, Actual: "digest " + mismatch.Replayed}
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertFinalState checks that some row matching Where carries every Expect
// value.
func (r *runner) assertFinalState(a Assertion) error {
	rs, err := r.eng.Query(query.Spec{Table: a.Table, Where: wherePredicate(a.Where)})
	if err != nil {
		return err
	}
	if len(rs.Rows) == 0 {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("a %s row where %s", a.Table, formatMap(a.Where)),
			Actual:   "no rows",
		}
	}

	var mismatch string
	for _, row := range rs.Rows {
		diff := rowDiff(row, a.Expect)
		if diff == "" {
			return nil
		}
		if mismatch == "" {
			mismatch = diff
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s row with %s", a.Table, formatMap(a.Expect)),
		Actual:   mismatch,
	}
}

func (r *runner) assertCount(a Assertion) error {
	rs, err := r.eng.Query(query.Spec{Table: a.Table, Where: wherePredicate(a.Where)})
	if err != nil {
		return err
	}
	if int64(len(rs.Rows)) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s rows", a.Count, a.Table),
			Actual:   fmt.Sprintf("%d rows", len(rs.Rows)),
		}
	}
	return nil
}

// wherePredicate turns a YAML column map into an And of equalities. Null
// values become IsNull.
func wherePredicate(where map[string]any) query.Predicate {
	if len(where) == 0 {
		return nil
	}
	cols := sortedKeys(where)
	preds := make([]query.Predicate, 0, len(cols))
	for _, col := range cols {
		if where[col] == nil {
			preds = append(preds, query.IsNull{Column: col})
			continue
		}
		preds = append(preds, query.Eq{Column: col, Value: where[col]})
	}
	return query.And{Predicates: preds}
}

// rowDiff returns a description of the first expected column the row does
// not match, or "" when it matches all of them.
func rowDiff(row table.Row, expect map[string]any) string {
	for _, col := range sortedKeys(expect) {
		got, ok := row.Column(col)
		if !ok {
			return fmt.Sprintf("%s has no column %s", row.Key(), col)
		}
		want := normalizeValue(expect[col])
		actual := normalizeValue(got)
		if !reflect.DeepEqual(want, actual) {
			return fmt.Sprintf("%s: %s = %v", row.Key(), col, actual)
		}
	}
	return ""
}

// normalizeValue maps row and YAML values onto one comparable form: integers
// become int64, times become RFC 3339 strings and structured values become
// canonical JSON.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		return int64(x)
	case int64, string, bool:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}
	if b, err := ir.MarshalCanonical(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatMap(m map[string]any) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
