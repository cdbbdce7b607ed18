package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/cobra"

	"github.com/roach88/cellsync/internal/engine"
	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	All bool // every store in the database
}

// ReplayStoreResult holds the replay result for a single store.
type ReplayStoreResult struct {
	StoreID       string `json:"store_id"`
	Head          int64  `json:"head"`
	Digest        string `json:"digest"`
	Deterministic bool   `json:"deterministic"`
	Diff          string `json:"diff,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Stores           []ReplayStoreResult `json:"stores"`
	AllDeterministic bool                `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay event log and verify determinism",
		Long: `Replay a store's log twice from the start and verify both folds produce
the same tables. Every record's content-addressed id is checked on the way.

Exit codes:
  0 - All stores are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, corrupt record, etc.)

Examples:
  cellsync replay --db ./nb.db --store nb1
  cellsync replay --db ./nb.db --all
  cellsync replay --db ./nb.db --all --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "replay every store in the database")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openStore(opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer st.Close()

	reg, err := event.NewRegistry()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load event schema", err)
	}

	storeIDs := []string{opts.Config.StoreID}
	if opts.All {
		infos, err := st.ListStores(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list stores", err)
		}
		storeIDs = storeIDs[:0]
		for _, info := range infos {
			storeIDs = append(storeIDs, info.StoreID)
		}
	}

	if len(storeIDs) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{Stores: []ReplayStoreResult{}, AllDeterministic: true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No stores found in database.")
		return nil
	}

	result := ReplayResult{
		Stores:           make([]ReplayStoreResult, 0, len(storeIDs)),
		AllDeterministic: true,
	}
	for _, id := range storeIDs {
		r, err := replayAndVerify(ctx, st, reg, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay store %s", id), err)
		}
		result.Stores = append(result.Stores, r)
		if !r.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayAndVerify folds one store twice and diffs the results.
func replayAndVerify(ctx context.Context, st *store.Store, reg *event.Registry, storeID string) (ReplayStoreResult, error) {
	first, head, err := engine.Replay(ctx, st, reg, storeID)
	if err != nil {
		return ReplayStoreResult{}, fmt.Errorf("first replay failed: %w", err)
	}
	second, secondHead, err := engine.Replay(ctx, st, reg, storeID)
	if err != nil {
		return ReplayStoreResult{}, fmt.Errorf("second replay failed: %w", err)
	}

	firstDigest, err := first.Digest()
	if err != nil {
		return ReplayStoreResult{}, err
	}
	secondDigest, err := second.Digest()
	if err != nil {
		return ReplayStoreResult{}, err
	}

	r := ReplayStoreResult{StoreID: storeID, Head: head, Digest: firstDigest, Deterministic: true}
	if head != secondHead {
		// The log grew between the two passes; nothing to compare.
		return r, fmt.Errorf("log head moved from %d to %d during replay", head, secondHead)
	}
	if diff := cmp.Diff(first, second, cmpopts.EquateEmpty()); diff != "" || firstDigest != secondDigest {
		r.Deterministic = false
		r.Diff = diff
	}
	return r, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d store(s)\n", len(result.Stores))
	fmt.Fprintln(w)

	for _, s := range result.Stores {
		status := "✓"
		if !s.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Store: %s\n", status, s.StoreID)
		fmt.Fprintf(w, "  Head: %d\n", s.Head)
		if verbose {
			fmt.Fprintf(w, "  Digest: %s\n", s.Digest)
		}
		if !s.Deterministic {
			fmt.Fprintln(w, "  Warning: Non-deterministic replay detected!")
			fmt.Fprintf(w, "  Diff (-first +second):\n%s\n", s.Diff)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All stores verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
