package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// RecoverOptions holds flags for the recover command.
type RecoverOptions struct {
	*RootOptions
	Actor string
}

// NewRecoverCommand creates the recover command.
func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecoverOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Fail executions orphaned by stale kernel sessions",
		Long: `Commit ExecutionCompleted with status error and ename KernelSessionLost
for every assigned or running entry whose kernel session has missed its
heartbeat window.

Examples:
  cellsync recover --db ./nb.db --store nb1
  CELLSYNC_LIVENESS_WINDOW=10s cellsync recover --actor scheduler`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecover(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Actor, "actor", "system", "actor id recorded on the recovery events")

	return cmd
}

func runRecover(cmd *cobra.Command, opts *RecoverOptions) error {
	ctx := context.Background()
	sess, err := openSession(ctx, opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	out := opts.formatter(cmd.OutOrStdout(), cmd.ErrOrStderr())
	ids, err := sess.engine.RecoverOrphans(ctx, opts.Actor)
	if err != nil {
		_ = out.Error(ErrorCode(err), err.Error(), ids)
		return rejectionExit("recovery failed", err)
	}
	if ids == nil {
		ids = []string{}
	}

	if opts.Format == "json" {
		return out.Success(map[string]any{"recovered": ids})
	}
	w := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(w, "No orphaned executions.")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintf(w, "✓ %s failed with KernelSessionLost\n", id)
	}
	return nil
}
