package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/livestore/internal/canon"
)

// Snapshot renders a run as canonical JSON.
func Snapshot(res *Result) ([]byte, error) {
	trace := make([]any, len(res.Trace))
	for i, ev := range res.Trace {
		event := map[string]any{
			"seq":    ev.Seq,
			"op":     ev.Op,
			"type":   ev.Type,
			"result": ev.Result,
		}
		if ev.Key != "" {
			event["key"] = ev.Key
		}
		trace[i] = event
	}
	return canon.Marshal(map[string]any{
		"scenario": res.Scenario,
		"pass":     res.Pass,
		"trace":    trace,
	})
}

// RunWithGolden runs s and compares its snapshot with
// testdata/golden/<name>.golden.
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()
	res, err := Run(context.Background(), s)
	if err != nil {
		return nil, err
	}
	return res, AssertGolden(t, s.Name, res)
}

// AssertGolden compares res's snapshot with testdata/golden/<name>.golden.
func AssertGolden(t *testing.T, name string, res *Result) error {
	t.Helper()
	data, err := Snapshot(res)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
