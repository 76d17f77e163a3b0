package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: One node, one step
nodes:
  - ref: claim
    type: claim
    content: { statement: s }
steps:
  - op: check_stale
    node: claim
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Nodes, 1)
	assert.Equal(t, "s", s.Nodes[0].Content["statement"])
	require.Len(t, s.Steps, 1)
	assert.Equal(t, OpCheckStale, s.Steps[0].Op)
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nsteps: [{op: advance, duration: 1h}]\n",
			want: "name is required",
		},
		{
			name: "missing steps",
			yaml: "name: n\ndescription: d\n",
			want: "steps list is required",
		},
		{
			name: "unknown node type",
			yaml: "name: n\ndescription: d\nnodes: [{ref: x, type: rumor}]\nsteps: [{op: advance, duration: 1h}]\n",
			want: "nodes[0]",
		},
		{
			name: "duplicate ref",
			yaml: "name: n\ndescription: d\nnodes: [{ref: x, type: note}, {ref: x, type: note}]\nsteps: [{op: advance, duration: 1h}]\n",
			want: "duplicate ref",
		},
		{
			name: "edge to unknown node",
			yaml: "name: n\ndescription: d\nnodes: [{ref: x, type: note}]\nedges: [{ref: e, source: x, target: y, relation: blocks}]\nsteps: [{op: advance, duration: 1h}]\n",
			want: "unknown endpoint",
		},
		{
			name: "unknown op",
			yaml: "name: n\ndescription: d\nsteps: [{op: delete}]\n",
			want: `unknown op "delete"`,
		},
		{
			name: "step on unknown node",
			yaml: "name: n\ndescription: d\nsteps: [{op: pin, node: ghost}]\n",
			want: "needs a known node",
		},
		{
			name: "bad duration",
			yaml: "name: n\ndescription: d\nsteps: [{op: advance, duration: soon}]\n",
			want: "advance",
		},
		{
			name: "bad role",
			yaml: "name: n\ndescription: d\nsteps: [{op: reset, role: owner}]\n",
			want: "steps[0]",
		},
		{
			name: "seal without user",
			yaml: "name: n\ndescription: d\nnodes: [{ref: x, type: note}]\nsteps: [{op: seal, node: x}]\n",
			want: "seal needs a user",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\nsteps: [{op: advance, duration: 1h}]\nassertions: [{type: final_vibe}]\n",
			want: "unknown assertion type",
		},
		{
			name: "trace_count with both op and event",
			yaml: "name: n\ndescription: d\nsteps: [{op: advance, duration: 1h}]\nassertions: [{type: trace_count, op: pin, event: guard.denied, count: 1}]\n",
			want: "exactly one of op or event",
		},
		{
			name: "final_state without expect",
			yaml: "name: n\ndescription: d\nsteps: [{op: advance, duration: 1h}]\nassertions: [{type: final_state, node: x}]\n",
			want: "expect is required",
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

func TestParseScenario_TestdataScenariosAreValid(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	for _, path := range paths {
		_, err := LoadScenario(path)
		assert.NoError(t, err, path)
	}
}
