package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/store"
)

func TestReplay_Text(t *testing.T) {
	db := seedDB(t)

	out, err := execute(t, "", "--db", db, "--store", testStore, "replay")
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 1 store(s)")
	assert.Contains(t, out, "✓ Store: nb-store")
	assert.Contains(t, out, "Head: 6")
	assert.Contains(t, out, "✓ All stores verified deterministic")
}

func TestReplay_AllJSON(t *testing.T) {
	db := seedDB(t)

	out, err := execute(t, "", "--db", db, "--format", "json", "replay", "--all")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["all_deterministic"])
	stores := data["stores"].([]any)
	require.Len(t, stores, 1)
	s := stores[0].(map[string]any)
	assert.Equal(t, testStore, s["store_id"])
	assert.Len(t, s["digest"], 64)
}

func TestReplay_EmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "", "--db", db, "replay", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "No stores found")
}

func TestReplay_MissingDatabase(t *testing.T) {
	_, err := execute(t, "", "--db", filepath.Join(t.TempDir(), "missing.db"), "replay")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayAndVerify_Deterministic(t *testing.T) {
	db := seedDB(t)
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	reg, err := event.NewRegistry()
	require.NoError(t, err)

	r, err := replayAndVerify(context.Background(), st, reg, testStore)
	require.NoError(t, err)
	assert.True(t, r.Deterministic)
	assert.Empty(t, r.Diff)
	assert.Equal(t, int64(6), r.Head)

	again, err := replayAndVerify(context.Background(), st, reg, testStore)
	require.NoError(t, err)
	assert.Equal(t, r.Digest, again.Digest)
}

func TestOutputReplayText_Divergence(t *testing.T) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)

	err := outputReplayText(cmd, ReplayResult{
		Stores: []ReplayStoreResult{{StoreID: "s", Head: 3, Diff: "-a\n+b"}},
	}, false)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ Store: s")
	assert.Contains(t, buf.String(), "-a\n+b")
	assert.Contains(t, buf.String(), "✗ Determinism verification failed")
}
