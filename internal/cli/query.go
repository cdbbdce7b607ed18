package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cellsync/internal/query"
	"github.com/roach88/cellsync/internal/table"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Where   []string
	OrderBy []string
	Limit   int
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Query a materialized table",
		Long: `Replay the store and evaluate one query against its tables. Kernel
sessions are shown with liveness applied.

--where takes column=value; "null" matches null columns and values are
typed by their column. --order takes column or column:desc.

Examples:
  cellsync query cells --where deletedAt=null --order position
  cellsync query executionQueue --where status=requested --order priority:desc
  cellsync query kernelSessions --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "column=value filter (repeatable)")
	cmd.Flags().StringArrayVar(&opts.OrderBy, "order", nil, "order column, optionally :desc (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows (0 for all)")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *QueryOptions, tableName string) error {
	spec, err := buildSpec(tableName, opts.Where, opts.OrderBy, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid query", err)
	}

	ctx := context.Background()
	sess, err := openSession(ctx, opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	rs, err := sess.engine.Query(spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid query", err)
	}
	return opts.formatter(cmd.OutOrStdout(), cmd.ErrOrStderr()).Rows(rs)
}

// buildSpec turns command-line filters into a query spec.
func buildSpec(tableName string, where, orderBy []string, limit int) (query.Spec, error) {
	spec := query.Spec{Table: tableName, Limit: limit}

	schema, ok := table.Lookup(tableName)
	if !ok {
		return query.Spec{}, fmt.Errorf("unknown table %q", tableName)
	}
	preds := make([]query.Predicate, 0, len(where))
	for _, w := range where {
		col, raw, ok := strings.Cut(w, "=")
		if !ok || col == "" {
			return query.Spec{}, fmt.Errorf("where %q: expected column=value", w)
		}
		p, err := parsePredicate(schema, col, raw)
		if err != nil {
			return query.Spec{}, err
		}
		preds = append(preds, p)
	}
	if len(preds) > 0 {
		spec.Where = query.And{Predicates: preds}
	}

	for _, o := range orderBy {
		col, dir, _ := strings.Cut(o, ":")
		switch dir {
		case "", "asc":
			spec.OrderBy = append(spec.OrderBy, query.Order{Column: col})
		case "desc":
			spec.OrderBy = append(spec.OrderBy, query.Order{Column: col, Desc: true})
		default:
			return query.Spec{}, fmt.Errorf("order %q: direction must be asc or desc", o)
		}
	}

	if err := query.Validate(spec); err != nil {
		return query.Spec{}, err
	}
	return spec, nil
}

// parsePredicate types raw by the column it filters.
func parsePredicate(schema table.Schema, col, raw string) (query.Predicate, error) {
	if raw == "null" {
		return query.IsNull{Column: col}, nil
	}
	c, ok := schema.Column(col)
	if !ok {
		// Let Validate report the unknown column.
		return query.Eq{Column: col, Value: raw}, nil
	}
	switch c.Type {
	case table.TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("where %s: %q is not an integer", col, raw)
		}
		return query.Eq{Column: col, Value: n}, nil
	case table.TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("where %s: %q is not a bool", col, raw)
		}
		return query.Eq{Column: col, Value: b}, nil
	case table.TypeTime:
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("where %s: %w", col, err)
		}
		return query.Eq{Column: col, Value: t}, nil
	}
	return query.Eq{Column: col, Value: raw}, nil
}
