package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover(t *testing.T) {
	db := seedDB(t)

	out, err := execute(t, "", "--db", db, "--store", testStore, "recover")
	require.NoError(t, err)
	assert.Equal(t, "✓ q-1 failed with KernelSessionLost\n", out)

	out, err = execute(t, "", "--db", db, "--store", testStore, "query", "executionQueue", "--where", "errorReason=KernelSessionLost")
	require.NoError(t, err)
	assert.Contains(t, out, `"id":"q-1"`)
	assert.Contains(t, out, `"status":"error"`)

	// Nothing left in flight.
	out, err = execute(t, "", "--db", db, "--store", testStore, "recover")
	require.NoError(t, err)
	assert.Equal(t, "No orphaned executions.\n", out)
}

func TestRecover_JSON(t *testing.T) {
	db := seedDB(t)

	out, err := execute(t, "", "--db", db, "--store", testStore, "--format", "json", "recover", "--actor", "scheduler")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, []any{"q-1"}, data["recovered"])

	out, err = execute(t, "", "--db", db, "--store", testStore, "events", "--after", "6")
	require.NoError(t, err)
	assert.Contains(t, out, "v1.ExecutionCompleted by scheduler")
}

func TestRecover_LongWindow(t *testing.T) {
	t.Setenv("CELLSYNC_LIVENESS_WINDOW", "876000h")
	db := seedDB(t)

	out, err := execute(t, "", "--db", db, "--store", testStore, "recover")
	require.NoError(t, err)
	assert.Equal(t, "No orphaned executions.\n", out)
}
