package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cellsync/internal/engine"
	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/store"
	"github.com/roach88/cellsync/internal/testutil"
)

const testStore = "nb-store"

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(bytes.NewBufferString(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// seedDB creates a database whose store holds a notebook with one cell, a
// kernel session that last heartbeated in 2025 and an execution claimed by
// that session.
func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cellsync.db")
	ctx := context.Background()

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	reg, err := event.NewRegistry()
	require.NoError(t, err)

	clock := testutil.NewManualClock(time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC))
	eng, err := engine.Open(ctx, st, reg, engine.Config{StoreID: testStore},
		engine.WithClock(clock), engine.WithIDGenerator(testutil.NewSequenceGenerator("q")))
	require.NoError(t, err)
	defer eng.Close()

	commit := func(name event.Name, actor string, payload map[string]any) {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		_, err = eng.Commit(ctx, engine.Commit{Name: name, Payload: raw, ActorID: actor})
		require.NoError(t, err)
	}
	commit(event.NotebookInitialized, "u1", map[string]any{"id": "nb1", "title": "Test", "ownerId": "u1"})
	commit(event.CellCreated, "u1", map[string]any{"id": "c1", "cellType": "code", "position": 0, "createdBy": "u1"})
	commit(event.CellCreated, "u1", map[string]any{"id": "c2", "cellType": "markdown", "position": 1, "createdBy": "u1"})
	commit(event.KernelSessionStarted, "k1", map[string]any{"sessionId": "s1", "kernelType": "python"})

	_, _, err = eng.RequestExecution(ctx, "u1", engine.ExecutionRequest{CellID: "c1"})
	require.NoError(t, err)
	_, ok, err := eng.ClaimNext(ctx, "k1", "s1")
	require.NoError(t, err)
	require.True(t, ok)
	return path
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}
