package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")

const passingScenario = `name: tiny
steps:
  - commit: v1.NotebookInitialized
    payload: { id: nb1, ownerId: u1 }
assertions:
  - type: head
    count: 1
`

const failingScenario = `name: broken
steps:
  - commit: v1.NotebookInitialized
    payload: { id: nb1, ownerId: u1 }
assertions:
  - type: head
    count: 5
`

func TestTestCommand_MissingArgs(t *testing.T) {
	_, err := execute(t, "", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "", "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_HarnessScenarios(t *testing.T) {
	out, err := execute(t, "", "test", harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ orphan_recovery")
	assert.Contains(t, out, "Test Summary: 6 passed, 0 failed, 6 total")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, "", "--format", "json", "test", harnessScenarios, "--filter", "execution_*")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["total"])
}

func TestTestCommand_Failure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(failingScenario), 0o600))

	out, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "head 1")
}

func TestTestCommand_UpdateAndCompareGolden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny.yaml"), []byte(passingScenario), 0o600))

	_, err := execute(t, "", "test", dir, "--update")
	require.NoError(t, err)
	golden, err := os.ReadFile(filepath.Join(dir, "golden", "tiny.golden"))
	require.NoError(t, err)
	assert.Equal(t, "scenario: tiny\nhead: 1\ntrace:\n  1 v1.NotebookInitialized by u1\ncells:\nqueue:\n", string(golden))

	_, err = execute(t, "", "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "tiny.golden"), []byte("stale\n"), 0o600))
	out, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommand_Empty(t *testing.T) {
	out, err := execute(t, "", "test", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}
