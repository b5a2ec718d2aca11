package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"

	"github.com/roach88/livestore/internal/canon"
	"github.com/roach88/livestore/internal/config"
	"github.com/roach88/livestore/internal/livestore"
	"github.com/roach88/livestore/internal/query"
	"github.com/roach88/livestore/internal/record"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq    int            `json:"seq"`
	Op     string         `json:"op"`
	Type   string         `json:"type"`
	Key    string         `json:"key,omitempty"`
	Result map[string]any `json:"result"`
}

// Result is the outcome of a scenario run. Pass is false when any expect
// step did not hold; Errors describes each one.
type Result struct {
	Scenario string
	Pass     bool
	Errors   []string
	Trace    []TraceEvent
}

// Run executes s against a fresh store in a temporary directory.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "livestore-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("create scenario store: %w", err)
	}
	defer os.RemoveAll(dir)

	cfg := config.Default()
	cfg.Store.Dir = dir
	db, err := livestore.Open(cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return RunOn(ctx, db, s)
}

// RunOn executes s against db. Records already in db are visible to the
// scenario.
func RunOn(ctx context.Context, db *livestore.DB, s *Scenario) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	res := &Result{Scenario: s.Name, Pass: true}
	for i, step := range s.Steps {
		ev := TraceEvent{Seq: i + 1, Op: step.Op, Type: step.Type, Key: step.Key}
		var err error
		ev.Result, err = runStep(ctx, db, step, res)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: step %d (%s): %w", s.Name, i+1, step.Op, err)
		}
		res.Trace = append(res.Trace, ev)
	}
	slog.Debug("scenario finished", "scenario", s.Name, "steps", len(s.Steps), "pass", res.Pass)
	return res, nil
}

func (r *Result) fail(step int, format string, args ...any) {
	r.Pass = false
	r.Errors = append(r.Errors, fmt.Sprintf("step %d: ", step)+fmt.Sprintf(format, args...))
}

func runStep(ctx context.Context, db *livestore.DB, st Step, res *Result) (map[string]any, error) {
	seq := len(res.Trace) + 1
	rt := record.Type(st.Type)

	switch st.Op {
	case OpPut:
		doc, err := record.NewDoc(rt, st.Key, st.Fields)
		if err != nil {
			return nil, err
		}
		n, err := execute(ctx, db, st.Mode, livestore.InsertOrUpdate(doc))
		if err != nil {
			return nil, err
		}
		return map[string]any{"inserted": n}, nil

	case OpDeleteAll:
		n, err := execute(ctx, db, st.Mode, livestore.DeleteType(rt))
		if err != nil {
			return nil, err
		}
		return map[string]any{"deleted": n}, nil

	case OpExpectCount:
		n, err := execute(ctx, db, st.Mode, livestore.Count[record.Doc](st.query()))
		if err != nil {
			return nil, err
		}
		if int(n) != *st.Count {
			res.fail(seq, "count %s: got %d, want %d", st.Type, n, *st.Count)
		}
		return map[string]any{"count": n}, nil

	case OpExpectFirst:
		v, err := execute(ctx, db, st.Mode, livestore.FindFirst[record.Doc](st.query()))
		if err != nil {
			return nil, err
		}
		doc, found := v.Get()
		switch {
		case st.Absent && found:
			res.fail(seq, "first %s: got %q, want no match", st.Type, doc.Key)
		case !st.Absent && !found:
			res.fail(seq, "first %s: no match", st.Type)
		case found:
			for _, field := range sortedKeys(st.Fields) {
				got, _ := doc.Get(field)
				if !canon.Equal(got, st.Fields[field]) {
					res.fail(seq, "first %s: field %s is %v, want %v", st.Type, field, got, st.Fields[field])
				}
			}
		}
		if !found {
			return map[string]any{"found": false}, nil
		}
		return map[string]any{"found": true, "record": doc.View()}, nil

	case OpExpectKeys:
		keys, err := execute(ctx, db, st.Mode, livestore.TranslateAll[record.Doc, string](st.query(),
			func(d record.Doc) (string, bool) { return d.Key, true }))
		if err != nil {
			return nil, err
		}
		if !slices.Equal(keys, st.Keys) {
			res.fail(seq, "keys %s: got %v, want %v", st.Type, keys, st.Keys)
		}
		return map[string]any{"keys": keys}, nil
	}
	return nil, fmt.Errorf("unknown op %q", st.Op)
}

// query builds the read query of an expect step.
func (st Step) query() query.Query {
	q := query.Of(record.Type(st.Type))
	for _, field := range sortedKeys(st.Where) {
		q = q.Equal(field, st.Where[field])
	}
	if st.OrderBy != "" {
		dir := query.Asc
		if st.Desc {
			dir = query.Desc
		}
		q = q.OrderBy(st.OrderBy, dir)
	}
	return q
}

func execute[T any](ctx context.Context, db *livestore.DB, mode string, op livestore.Op[T]) (T, error) {
	m, err := livestore.ParseMode(mode)
	if err != nil {
		var zero T
		return zero, err
	}
	return livestore.Exec(ctx, db, m, op)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
