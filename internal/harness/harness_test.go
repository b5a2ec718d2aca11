package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livestore/internal/config"
	"github.com/roach88/livestore/internal/livestore"
)

func intp(n int) *int { return &n }

func TestRun_Passes(t *testing.T) {
	s := &Scenario{
		Name: "inline",
		Steps: []Step{
			{Op: OpPut, Type: "person", Key: "1", Fields: map[string]any{"name": "a"}},
			{Op: OpPut, Type: "person", Key: "2", Fields: map[string]any{"name": "b"}, Mode: ModeAsync},
			{Op: OpExpectCount, Type: "person", Count: intp(2), Mode: ModeSync},
			{Op: OpExpectFirst, Type: "person", Where: map[string]any{"name": "b"}, Fields: map[string]any{"name": "b"}},
		},
	}
	res, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, res.Pass, res.Errors)
	require.Len(t, res.Trace, 4)
	assert.Equal(t, map[string]any{"inserted": 1}, res.Trace[1].Result)
	assert.Equal(t, map[string]any{"count": int64(2)}, res.Trace[2].Result)
}

func TestRun_CollectsFailures(t *testing.T) {
	s := &Scenario{
		Name: "failing",
		Steps: []Step{
			{Op: OpPut, Type: "person", Key: "1", Fields: map[string]any{"name": "a"}},
			{Op: OpExpectCount, Type: "person", Count: intp(3)},
			{Op: OpExpectFirst, Type: "person", Fields: map[string]any{"name": "z"}},
			{Op: OpExpectFirst, Type: "person", Absent: true},
			{Op: OpExpectFirst, Type: "pet"},
			{Op: OpExpectKeys, Type: "person", Keys: []string{"2"}},
		},
	}
	res, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 5)
	assert.Contains(t, res.Errors[0], "step 2: count person: got 1, want 3")
	assert.Contains(t, res.Errors[1], "field name")
	assert.Contains(t, res.Errors[2], "want no match")
	assert.Contains(t, res.Errors[3], "first pet: no match")
	assert.Contains(t, res.Errors[4], "keys person")
	assert.Len(t, res.Trace, 6, "failed expectations still trace")
}

func TestRun_StepError(t *testing.T) {
	s := &Scenario{
		Name:  "bad_type",
		Steps: []Step{{Op: OpPut, Type: "Bad Type", Key: "1"}},
	}
	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1 (put)")
}

func TestRunOn_SeesExistingData(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Dir = t.TempDir()
	db, err := livestore.Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	first := &Scenario{Name: "seed", Steps: []Step{{Op: OpPut, Type: "pet", Key: "rex"}}}
	_, err = RunOn(context.Background(), db, first)
	require.NoError(t, err)

	second := &Scenario{Name: "check", Steps: []Step{{Op: OpExpectCount, Type: "pet", Count: intp(1)}}}
	res, err := RunOn(context.Background(), db, second)
	require.NoError(t, err)
	assert.True(t, res.Pass, res.Errors)
}
