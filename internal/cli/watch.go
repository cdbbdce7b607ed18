package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cellsync/internal/query"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Where   []string
	OrderBy []string
	Limit   int
	Poll    time.Duration
	Count   int
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <table>",
		Short: "Print a live query as it changes",
		Long: `Subscribe to a query and print the full result every time the table
changes. Commits from other processes are picked up by polling the log;
the liveness sweep runs while watching, so kernel sessions going stale
show up without a commit.

Stops on interrupt, or after --count results.

Examples:
  cellsync watch executionQueue --where status=requested --order priority:desc
  cellsync watch kernelSessions --poll 500ms`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "column=value filter (repeatable)")
	cmd.Flags().StringArrayVar(&opts.OrderBy, "order", nil, "order column, optionally :desc (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows (0 for all)")
	cmd.Flags().DurationVar(&opts.Poll, "poll", time.Second, "interval for picking up external commits")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "exit after this many results (0 for no limit)")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts *WatchOptions, tableName string) error {
	spec, err := buildSpec(tableName, opts.Where, opts.OrderBy, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid query", err)
	}
	if opts.Poll <= 0 {
		return NewExitError(ExitCommandError, "--poll must be positive")
	}

	sess, err := openSession(ctx, opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := opts.formatter(cmd.OutOrStdout(), cmd.ErrOrStderr())
	seen := 0
	sub, err := sess.engine.Subscribe(spec, func(rs query.ResultSet) {
		if opts.Format != "json" {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s at seq %d: %d row(s)\n", rs.Table, rs.Seq, len(rs.Rows))
		}
		if err := out.Rows(rs); err != nil {
			slog.Error("write watch result", "error", err)
		}
		seen++
		if opts.Count > 0 && seen >= opts.Count {
			cancel()
		}
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to subscribe", err)
	}
	defer sub.Close()

	sess.engine.Start(ctx)

	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return nil
		case <-ticker.C:
			if err := sess.engine.Sync(ctx); err != nil && ctx.Err() == nil {
				return WrapExitError(ExitCommandError, "failed to read new events", err)
			}
		}
	}
}
