package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/cellsync/internal/table"
)

// Error reports an invalid query spec.
type Error struct {
	Table   string
	Column  string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("query %s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("query %s: %s", e.Table, e.Message)
}

// IsQueryError reports whether err is (or wraps) a query Error.
func IsQueryError(err error) bool {
	var qe *Error
	return errors.As(err, &qe)
}

// Validate checks a spec against the table schema registry.
func Validate(spec Spec) error {
	schema, ok := table.Lookup(spec.Table)
	if !ok {
		return &Error{Table: spec.Table, Message: "unknown table"}
	}
	if spec.Limit < 0 {
		return &Error{Table: spec.Table, Message: "limit must not be negative"}
	}
	if spec.Where != nil {
		if err := validatePredicate(schema, spec.Where); err != nil {
			return err
		}
	}
	for _, o := range spec.OrderBy {
		c, err := column(schema, o.Column)
		if err != nil {
			return err
		}
		if c.Type == table.TypeData {
			return &Error{Table: schema.Name, Column: c.Name, Message: "data columns cannot be ordered"}
		}
	}
	return nil
}

func validatePredicate(schema table.Schema, p Predicate) error {
	switch p := p.(type) {
	case Eq:
		c, err := comparableColumn(schema, p.Column)
		if err != nil {
			return err
		}
		return checkValue(schema, c, p.Value)
	case In:
		c, err := comparableColumn(schema, p.Column)
		if err != nil {
			return err
		}
		for _, v := range p.Values {
			if err := checkValue(schema, c, v); err != nil {
				return err
			}
		}
		return nil
	case IsNull:
		return checkNullable(schema, p.Column)
	case NotNull:
		return checkNullable(schema, p.Column)
	case And:
		for _, sub := range p.Predicates {
			if err := validatePredicate(schema, sub); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return &Error{Table: schema.Name, Message: "nil predicate"}
	}
	return &Error{Table: schema.Name, Message: fmt.Sprintf("unsupported predicate %T", p)}
}

func column(schema table.Schema, name string) (table.Column, error) {
	c, ok := schema.Column(name)
	if !ok {
		return table.Column{}, &Error{Table: schema.Name, Column: name, Message: "unknown column"}
	}
	return c, nil
}

func comparableColumn(schema table.Schema, name string) (table.Column, error) {
	c, err := column(schema, name)
	if err != nil {
		return c, err
	}
	if c.Type == table.TypeData {
		return c, &Error{Table: schema.Name, Column: name, Message: "data columns cannot be compared"}
	}
	return c, nil
}

func checkNullable(schema table.Schema, name string) error {
	c, err := column(schema, name)
	if err != nil {
		return err
	}
	if !c.Nullable {
		return &Error{Table: schema.Name, Column: name, Message: "column is not nullable"}
	}
	return nil
}

func checkValue(schema table.Schema, c table.Column, v any) error {
	var ok bool
	switch c.Type {
	case table.TypeString:
		_, ok = v.(string)
	case table.TypeInt:
		switch v.(type) {
		case int, int64:
			ok = true
		}
	case table.TypeBool:
		_, ok = v.(bool)
	case table.TypeTime:
		_, ok = v.(time.Time)
	}
	if !ok {
		return &Error{Table: schema.Name, Column: c.Name, Message: fmt.Sprintf("value %v (%T) does not match column type %s", v, v, c.Type)}
	}
	return nil
}
