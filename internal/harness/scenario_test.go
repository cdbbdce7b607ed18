package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s := loadTestScenario(t, "orphan_recovery")

	assert.Equal(t, "orphan_recovery", s.Name)
	require.Len(t, s.Steps, 12)
	assert.Equal(t, "v1.NotebookInitialized", s.Steps[0].Commit)
	assert.Equal(t, "nb1", s.Steps[0].Payload["id"])
	require.NotNil(t, s.Steps[3].Request)
	assert.Equal(t, "c1", s.Steps[3].Request.Cell)
	assert.Equal(t, "k1", s.Steps[4].Actor)
	assert.Equal(t, "31s", s.Steps[8].Advance)
	assert.True(t, s.Steps[9].Sweep)
	assert.Equal(t, []string{"q-1"}, s.Steps[10].Recover.Expect)
	assert.Equal(t, "CELL_UNAVAILABLE", s.Steps[11].ExpectError)
	require.Len(t, s.Assertions, 5)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: tiny\nsteps:\n  - sweep: true\n"), 0o600))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "tiny", s.Name)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\nstep:\n  - sweep: true\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: "steps:\n  - sweep: true\n",
			want: "name is required",
		},
		{
			name: "no steps",
			yaml: "name: x\n",
			want: "steps must contain at least one step",
		},
		{
			name: "two kinds in one step",
			yaml: "name: x\nsteps:\n  - sweep: true\n    advance: 1s\n",
			want: "steps[0]: exactly one of",
		},
		{
			name: "empty step",
			yaml: "name: x\nsteps:\n  - actor: u1\n",
			want: "steps[0]: exactly one of",
		},
		{
			name: "bad duration",
			yaml: "name: x\nsteps:\n  - advance: soon\n",
			want: "steps[0]: advance",
		},
		{
			name: "payload without commit",
			yaml: "name: x\nsteps:\n  - sweep: true\n    payload: { a: 1 }\n",
			want: "payload is only valid with commit",
		},
		{
			name: "claim without session",
			yaml: "name: x\nsteps:\n  - claim: { expect: none }\n",
			want: "claim.session is required",
		},
		{
			name: "request without cell",
			yaml: "name: x\nsteps:\n  - request: { priority: 1 }\n",
			want: "request.cell is required",
		},
		{
			name: "bad start",
			yaml: "name: x\nstart: yesterday\nsteps:\n  - sweep: true\n",
			want: "start:",
		},
		{
			name: "unknown assertion",
			yaml: "name: x\nsteps:\n  - sweep: true\nassertions:\n  - type: trace_contains\n",
			want: `assertions[0]: unknown assertion type "trace_contains"`,
		},
		{
			name: "final_state without expect",
			yaml: "name: x\nsteps:\n  - sweep: true\nassertions:\n  - type: final_state\n    table: cells\n",
			want: "assertions[0]: expect is required for final_state",
		},
		{
			name: "count without table",
			yaml: "name: x\nsteps:\n  - sweep: true\nassertions:\n  - type: count\n    count: 1\n",
			want: "assertions[0]: table is required for count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
