package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// CommitOptions holds flags for the commit command.
type CommitOptions struct {
	*RootOptions
	Actor string
	File  string
}

// CommitResult is the outcome of one committed event.
type CommitResult struct {
	Name       string   `json:"name"`
	Seq        int64    `json:"seq"`
	ID         string   `json:"id,omitempty"`
	Local      bool     `json:"local,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

// NewCommitCommand creates the commit command.
func NewCommitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "commit [event-json]",
		Short: "Commit one event",
		Long: `Validate and commit one event in wire form:

  {"name": "v1.CellCreated", "payload": {...}, "clientTimestamp": "..."}

The event is read from the argument, from --file, or from stdin.

Exit codes:
  0 - Event committed (protocol violations are reported, not fatal)
  1 - Event rejected (schema or boundary error); nothing was appended
  2 - Command error (bad input, database error, etc.)

Examples:
  cellsync commit --actor u1 '{"name":"v1.NotebookInitialized","payload":{"id":"nb1","ownerId":"u1"}}'
  cellsync commit --actor k1 --file heartbeat.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Actor, "actor", "", "authenticated actor id (required)")
	_ = cmd.MarkFlagRequired("actor")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the event from a file ('-' for stdin)")

	return cmd
}

func runCommit(cmd *cobra.Command, opts *CommitOptions, args []string) error {
	data, err := readEventInput(cmd, opts.File, args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sess, err := openSession(ctx, opts.RootOptions, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	out := opts.formatter(cmd.OutOrStdout(), cmd.ErrOrStderr())
	res, err := sess.engine.CommitWire(ctx, opts.Actor, data)
	if err != nil {
		_ = out.Error(ErrorCode(err), err.Error(), nil)
		return rejectionExit("commit rejected", err)
	}

	result := CommitResult{
		Name:  string(res.Event.Name),
		Seq:   res.Event.Seq,
		ID:    res.Event.ID,
		Local: res.Event.Seq == 0,
	}
	for _, v := range res.Effect.Violations {
		result.Violations = append(result.Violations, v.Code+" "+v.EntityID)
	}

	if opts.Format == "json" {
		return out.Success(result)
	}
	w := cmd.OutOrStdout()
	if result.Local {
		fmt.Fprintf(w, "✓ %s applied locally\n", result.Name)
		return nil
	}
	fmt.Fprintf(w, "✓ %s committed at seq %d\n", result.Name, result.Seq)
	out.VerboseLog("  id: %s", result.ID)
	for _, v := range result.Violations {
		fmt.Fprintf(w, "  ! %s\n", v)
	}
	return nil
}

// readEventInput returns the event JSON from the argument, file or stdin.
func readEventInput(cmd *cobra.Command, file string, args []string) ([]byte, error) {
	switch {
	case len(args) == 1 && file != "":
		return nil, NewExitError(ExitCommandError, "pass the event as an argument or with --file, not both")
	case len(args) == 1:
		return []byte(args[0]), nil
	case file == "" || file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read stdin", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read event file", err)
	}
	return data, nil
}
