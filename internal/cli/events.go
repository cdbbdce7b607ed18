package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cellsync/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	After  int64
	Limit  int
	Name   string
	Stores bool
}

// EventView is one log record as printed by the events command.
type EventView struct {
	Seq       int64  `json:"seq"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Actor     string `json:"actor"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"`
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List committed events",
		Long: `List one page of a store's event log in commit order, or every store
in the database with --stores.

Examples:
  cellsync events --db ./nb.db --store nb1
  cellsync events --after 100 --limit 50
  cellsync events --name v1.ExecutionCompleted --format json
  cellsync events --stores`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "only events after this seq")
	cmd.Flags().IntVar(&opts.Limit, "limit", store.DefaultListLimit, "page size")
	cmd.Flags().StringVar(&opts.Name, "name", "", "only events with this name")
	cmd.Flags().BoolVar(&opts.Stores, "stores", false, "list stores instead of events")

	return cmd
}

func runEvents(cmd *cobra.Command, opts *EventsOptions) error {
	ctx := context.Background()
	st, err := openStore(opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer st.Close()

	out := opts.formatter(cmd.OutOrStdout(), cmd.ErrOrStderr())
	w := cmd.OutOrStdout()

	if opts.Stores {
		infos, err := st.ListStores(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list stores", err)
		}
		if opts.Format == "json" {
			return out.Success(infos)
		}
		if len(infos) == 0 {
			fmt.Fprintln(w, "No stores found in database.")
			return nil
		}
		for _, info := range infos {
			fmt.Fprintf(w, "%s head=%d events=%d\n", info.StoreID, info.Head, info.Events)
		}
		return nil
	}

	recs, err := st.ListEvents(ctx, opts.Config.StoreID, store.ListOptions{
		AfterSeq: opts.After,
		Limit:    opts.Limit,
		Name:     opts.Name,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list events", err)
	}

	views := make([]EventView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, EventView{
			Seq:       rec.Seq,
			ID:        rec.ID,
			Name:      rec.Name,
			Actor:     rec.ActorID,
			Timestamp: time.UnixMilli(rec.TimestampMs).UTC().Format(time.RFC3339Nano),
			Payload:   string(rec.Payload),
		})
	}

	if opts.Format == "json" {
		return out.Success(views)
	}
	if len(views) == 0 {
		fmt.Fprintf(w, "No events in store %s.\n", opts.Config.StoreID)
		return nil
	}
	for _, v := range views {
		fmt.Fprintf(w, "%d %s %s by %s\n", v.Seq, v.Timestamp, v.Name, v.Actor)
		out.VerboseLog("    %s %s", v.ID, v.Payload)
	}
	return nil
}
