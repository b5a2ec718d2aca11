package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/upsert_counts_new_keys.yaml")
	require.NoError(t, err)

	assert.Equal(t, "upsert_counts_new_keys", s.Name)
	require.Len(t, s.Steps, 10)
	assert.Equal(t, OpPut, s.Steps[0].Op)
	assert.Equal(t, map[string]any{"name": "a", "age": 30}, s.Steps[0].Fields)
	assert.Equal(t, ModeAsync, s.Steps[2].Mode)
	require.NotNil(t, s.Steps[3].Count)
	assert.Equal(t, 2, *s.Steps[3].Count)
	assert.Equal(t, []string{"1", "2"}, s.Steps[6].Keys)
	assert.True(t, s.Steps[6].Desc)
	assert.NotNil(t, s.Steps[7].Keys)
	assert.True(t, s.Steps[9].Absent)
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no name", "steps: [{op: put, type: a, key: k}]", "name is required"},
		{"no steps", "name: x", "no steps"},
		{"unknown op", "name: x\nsteps: [{op: upsert, type: a}]", `unknown op "upsert"`},
		{"no type", "name: x\nsteps: [{op: put, key: k}]", "type is required"},
		{"put without key", "name: x\nsteps: [{op: put, type: a}]", "key is required"},
		{"count without count", "name: x\nsteps: [{op: expect_count, type: a}]", "count is required"},
		{"keys without keys", "name: x\nsteps: [{op: expect_keys, type: a}]", "keys is required"},
		{"bad mode", "name: x\nsteps: [{op: delete_all, type: a, mode: later}]", `unknown mode "later"`},
		{"unknown field", "name: x\nsteps: [{op: delete_all, type: a, table: t}]", "table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
