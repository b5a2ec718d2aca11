package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livestore/internal/query"
)

func TestWatch_RequiresLoop(t *testing.T) {
	h := openTestHandle(t, createTestEngine(t), "person")

	_, err := h.Watch(query.All(), func(context.Context, []Row, error) {})
	require.Error(t, err)
	assert.Equal(t, ErrCodeNoEventLoop, CodeOf(err))
}

func TestWatch_DeliversInitialAndChanges(t *testing.T) {
	e := createTestEngine(t)
	loop := newTestLoop(t)
	got := make(chan []string, 16)

	var h *Handle
	loop.call(func(ctx context.Context) {
		var err error
		h, err = e.Open(ctx, "person", loop)
		require.NoError(t, err)
		_, err = h.Watch(query.All(), func(_ context.Context, rows []Row, err error) {
			require.NoError(t, err)
			got <- keys(rows)
		})
		require.NoError(t, err)
	})

	assert.Equal(t, []string{}, receive(t, got))

	w := openTestHandle(t, e, "person")
	putCommitted(t, w, "1", `{}`)
	assert.Equal(t, []string{"1"}, receive(t, got))

	putCommitted(t, w, "2", `{}`)
	assert.Equal(t, []string{"1", "2"}, receive(t, got))

	// Other types don't wake this result.
	putCommitted(t, openTestHandle(t, e, "pet"), "x", `{}`)
	select {
	case rows := <-got:
		t.Fatalf("unexpected delivery %v", rows)
	case <-time.After(50 * time.Millisecond):
	}

	loop.call(func(context.Context) { require.NoError(t, h.Close()) })
	putCommitted(t, w, "3", `{}`)
	select {
	case rows := <-got:
		t.Fatalf("delivery after close %v", rows)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLive_Stop(t *testing.T) {
	e := createTestEngine(t)
	loop := newTestLoop(t)
	got := make(chan []string, 16)

	var live *Live
	loop.call(func(ctx context.Context) {
		h, err := e.Open(ctx, "person", loop)
		require.NoError(t, err)
		live, err = h.Watch(query.All(), func(_ context.Context, rows []Row, _ error) {
			got <- keys(rows)
		})
		require.NoError(t, err)
	})
	receive(t, got)

	loop.call(func(context.Context) { live.Stop() })
	putCommitted(t, openTestHandle(t, e, "person"), "1", `{}`)
	select {
	case rows := <-got:
		t.Fatalf("delivery after stop %v", rows)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRescan_SeesWritesFromAnotherEngine(t *testing.T) {
	e := createTestEngine(t)
	other, err := Open(Config{Dir: e.Dir(), BusyTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })

	loop := newTestLoop(t)
	got := make(chan []string, 16)
	loop.call(func(ctx context.Context) {
		h, err := e.Open(ctx, "person", loop)
		require.NoError(t, err)
		_, err = h.Watch(query.All(), func(_ context.Context, rows []Row, _ error) {
			got <- keys(rows)
		})
		require.NoError(t, err)
	})
	assert.Equal(t, []string{}, receive(t, got))

	putCommitted(t, openTestHandle(t, other, "person"), "1", `{}`)
	select {
	case rows := <-got:
		t.Fatalf("another engine's commit woke this one: %v", rows)
	case <-time.After(50 * time.Millisecond):
	}

	e.Rescan("person")
	assert.Equal(t, []string{"1"}, receive(t, got))
	assert.Equal(t, int64(0), e.Version("person"))
}

func receive(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for live result")
		return nil
	}
}
