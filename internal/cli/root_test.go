package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "cellsync", cmd.Use)
	assert.Contains(t, cmd.Version, "schema v1")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"commit", "events", "query", "replay", "watch", "recover", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("db"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("store"))
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "", "events", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("CELLSYNC_STORE", "from-env")
	t.Setenv("CELLSYNC_DB", "/nonexistent/env.db")
	path := seedDB(t)

	out, err := execute(t, "", "events", "--db", path, "--store", testStore)
	require.NoError(t, err)
	assert.Contains(t, out, "v1.NotebookInitialized")
}

func TestInvalidEnvironment(t *testing.T) {
	t.Setenv("CELLSYNC_LOG_LEVEL", "chatty")

	_, err := execute(t, "", "events")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
