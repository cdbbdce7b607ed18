package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenarioFiles = []string{
	"notebook_init",
	"cell_source",
	"execution_lifecycle",
	"kernel_liveness",
	"outputs_cleared",
	"orphan_recovery",
}

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestScenarios(t *testing.T) {
	for _, name := range scenarioFiles {
		t.Run(name, func(t *testing.T) {
			s := loadTestScenario(t, name)
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "orphan_recovery")

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, Render(s.Name, first), Render(s.Name, second))
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: failing
steps:
  - commit: v1.NotebookInitialized
    payload: { id: nb1, ownerId: u1 }
  - commit: v1.NotebookInitialized
    payload: { id: nb1, ownerId: u1 }
  - commit: v1.CellCreated
    payload: { id: c1, cellType: code, position: 0, createdBy: u1 }
    expect_error: schema
assertions:
  - type: final_state
    table: notebook
    where: { id: nb1 }
    expect: { ownerId: u9 }
  - type: count
    table: cells
    count: 3
  - type: head
    count: 9
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "steps[1]: unexpected error")
	assert.Contains(t, result.Errors[0], "NOTEBOOK_EXISTS")
	assert.Contains(t, result.Errors[1], "steps[2]: expected schema error, got none")
	assert.Contains(t, result.Errors[2], "nb1: ownerId = u1")
	assert.Contains(t, result.Errors[3], "expected 3 cells rows")
	assert.Contains(t, result.Errors[4], "head 2")
}

func TestRun_StepExpectations(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_ids
ids: [first, second]
steps:
  - commit: v1.NotebookInitialized
    payload: { id: nb1, ownerId: u1 }
  - commit: v1.CellCreated
    payload: { id: c1, cellType: code, position: 0, createdBy: u1 }
  - request: { cell: c1, expect: second }
  - claim: { session: s1, expect: none }
  - recover: { expect: [first] }
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, `steps[2]: request got queue id "first", want "second"`, result.Errors[0])
	assert.Equal(t, `steps[3]: claim by s1 got "first", want "none"`, result.Errors[1])
	assert.Equal(t, `steps[4]: recovered [], want [first]`, result.Errors[2])
}

func TestRun_RejectedRequestLeavesLogIntact(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: negative_count
steps:
  - commit: v1.NotebookInitialized
    payload: { id: nb1, ownerId: u1 }
  - commit: v1.CellCreated
    payload: { id: c1, cellType: code, position: 0, createdBy: u1 }
  - request: { cell: c1, count: -1 }
    expect_error: schema
  - request: { cell: c1, expect: q-2 }
assertions:
  - type: head
    count: 3
  - type: replay
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, int64(3), result.Head)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
