package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_InitialResult(t *testing.T) {
	db := seedDB(t)

	out, err := execute(t, "", "--db", db, "--store", testStore,
		"watch", "cells", "--where", "cellType=code", "--count", "1", "--poll", "10ms")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "# cells at seq 6: 1 row(s)", lines[0])
	assert.Contains(t, lines[1], `"id":"c1"`)
}

func TestWatch_InvalidPoll(t *testing.T) {
	db := seedDB(t)

	_, err := execute(t, "", "--db", db, "watch", "cells", "--poll", "0s")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestWatch_InvalidQuery(t *testing.T) {
	db := seedDB(t)

	_, err := execute(t, "", "--db", db, "watch", "widgets")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table")
}
