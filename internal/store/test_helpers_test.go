package store

import (
	"context"
	"testing"
	"time"

	"github.com/roach88/livestore/internal/record"
)

// createTestEngine creates a new engine in a temp directory.
func createTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(Config{Dir: t.TempDir(), BusyTimeout: 5 * time.Second, DefaultCopyDepth: record.Unlimited})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// openTestHandle opens a caller-owned handle.
func openTestHandle(t *testing.T, e *Engine, rt record.Type) *Handle {
	t.Helper()
	h, err := e.Open(context.Background(), rt, nil)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", rt, err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

// putCommitted writes key/body in its own transaction.
func putCommitted(t *testing.T, h *Handle, key, body string) {
	t.Helper()
	ctx := context.Background()
	if err := h.BeginTransaction(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := h.Put(ctx, key, []byte(body)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := h.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

// testLoop runs posted functions one at a time on its own goroutine.
type testLoop struct {
	jobs chan func(context.Context)
	done chan struct{}
}

func newTestLoop(t *testing.T) *testLoop {
	t.Helper()
	l := &testLoop{jobs: make(chan func(context.Context), 128), done: make(chan struct{})}
	go func() {
		defer close(l.done)
		for fn := range l.jobs {
			fn(context.Background())
		}
	}()
	t.Cleanup(func() {
		close(l.jobs)
		<-l.done
	})
	return l
}

func (l *testLoop) Post(fn func(context.Context)) bool {
	l.jobs <- fn
	return true
}

// call runs fn on the loop and waits for it.
func (l *testLoop) call(fn func(context.Context)) {
	done := make(chan struct{})
	l.Post(func(ctx context.Context) {
		defer close(done)
		fn(ctx)
	})
	<-done
}
