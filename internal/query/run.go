package query

import (
	"sort"
	"strings"
	"time"

	"github.com/roach88/cellsync/internal/table"
)

// Run evaluates spec against src. Returned rows are detached copies.
func Run(src Source, spec Spec) (ResultSet, error) {
	if err := Validate(spec); err != nil {
		return ResultSet{}, err
	}
	rows, err := src.Rows(spec.Table)
	if err != nil {
		return ResultSet{}, err
	}

	matched := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		if spec.Where == nil || match(r, spec.Where) {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		for _, o := range spec.OrderBy {
			a, _ := matched[i].Column(o.Column)
			b, _ := matched[j].Column(o.Column)
			c := compare(a, b)
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return matched[i].Key() < matched[j].Key()
	})

	if spec.Limit > 0 && len(matched) > spec.Limit {
		matched = matched[:spec.Limit]
	}
	for i, r := range matched {
		matched[i] = table.CopyRow(r)
	}
	return ResultSet{Table: spec.Table, Rows: matched}, nil
}

func match(r table.Row, p Predicate) bool {
	switch p := p.(type) {
	case Eq:
		v, _ := r.Column(p.Column)
		return v != nil && compare(v, normalize(p.Value)) == 0
	case In:
		v, _ := r.Column(p.Column)
		if v == nil {
			return false
		}
		for _, want := range p.Values {
			if compare(v, normalize(want)) == 0 {
				return true
			}
		}
		return false
	case IsNull:
		v, _ := r.Column(p.Column)
		return v == nil
	case NotNull:
		v, _ := r.Column(p.Column)
		return v != nil
	case And:
		for _, sub := range p.Predicates {
			if !match(r, sub) {
				return false
			}
		}
		return true
	}
	return false
}

func normalize(v any) any {
	if n, ok := v.(int); ok {
		return int64(n)
	}
	return v
}

// compare orders two column values of the same type. nil sorts first.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	// mismatched types never compare equal
	return -1
}
