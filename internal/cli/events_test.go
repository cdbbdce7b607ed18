package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellsync/internal/store"
)

func TestEvents_Text(t *testing.T) {
	db := seedDB(t)

	out, err := execute(t, "", "--db", db, "--store", testStore, "events")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "1 2025-01-02T15:00:00Z v1.NotebookInitialized by u1", lines[0])
	assert.Equal(t, "6 2025-01-02T15:00:00Z v1.ExecutionAssigned by k1", lines[5])
}

func TestEvents_PageAndFilter(t *testing.T) {
	db := seedDB(t)

	out, err := execute(t, "", "--db", db, "--store", testStore, "events", "--after", "1", "--limit", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "2 "))
	assert.True(t, strings.HasPrefix(lines[1], "3 "))

	out, err = execute(t, "", "--db", db, "--store", testStore, "--format", "json", "events", "--name", "v1.CellCreated")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	events := resp.Data.([]any)
	require.Len(t, events, 2)
	first := events[0].(map[string]any)
	assert.Equal(t, float64(2), first["seq"])
	assert.Contains(t, first["payload"], `"id":"c1"`)
}

func TestEvents_Stores(t *testing.T) {
	db := seedDB(t)

	out, err := execute(t, "", "--db", db, "events", "--stores")
	require.NoError(t, err)
	assert.Equal(t, "nb-store head=6 events=6\n", out)
}

func TestEvents_EmptyStore(t *testing.T) {
	db := seedDB(t)

	out, err := execute(t, "", "--db", db, "--store", "other", "events")
	require.NoError(t, err)
	assert.Equal(t, "No events in store other.\n", out)
}

func TestEvents_MissingDatabase(t *testing.T) {
	_, err := execute(t, "", "--db", filepath.Join(t.TempDir(), "missing.db"), "events")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestEvents_NoStores(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "", "--db", db, "events", "--stores")
	require.NoError(t, err)
	assert.Equal(t, "No stores found in database.\n", out)
}
