package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livestore/internal/query"
)

func TestPut_RequiresTransaction(t *testing.T) {
	h := openTestHandle(t, createTestEngine(t), "person")

	_, err := h.Put(context.Background(), "1", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotInTransaction, CodeOf(err))

	_, err = h.DeleteAll(context.Background())
	assert.Equal(t, ErrCodeNotInTransaction, CodeOf(err))
}

func TestPut_ReportsNewKeys(t *testing.T) {
	h := openTestHandle(t, createTestEngine(t), "person")
	ctx := context.Background()
	require.NoError(t, h.BeginTransaction(ctx))

	inserted, err := h.Put(ctx, "1", []byte(`{"name":"a"}`))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = h.Put(ctx, "1", []byte(`{"name":"b"}`))
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, h.Commit())

	row, ok, err := h.First(ctx, query.All())
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"b"}`, string(row.Body))
	assert.Equal(t, int64(1), row.Seq, "update keeps insertion order")
}

func TestPut_EmptyKey(t *testing.T) {
	h := openTestHandle(t, createTestEngine(t), "person")
	require.NoError(t, h.BeginTransaction(context.Background()))

	_, err := h.Put(context.Background(), "", []byte(`{}`))
	require.Error(t, err)
}

func TestCancelTransaction_DiscardsWrites(t *testing.T) {
	h := openTestHandle(t, createTestEngine(t), "person")
	ctx := context.Background()

	require.NoError(t, h.BeginTransaction(ctx))
	_, err := h.Put(ctx, "1", []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, h.CancelTransaction())
	assert.False(t, h.InTransaction())

	n, err := h.Count(ctx, query.All())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestTransactionStateErrors(t *testing.T) {
	h := openTestHandle(t, createTestEngine(t), "person")
	ctx := context.Background()

	assert.Equal(t, ErrCodeNotInTransaction, CodeOf(h.Commit()))
	assert.Equal(t, ErrCodeNotInTransaction, CodeOf(h.CancelTransaction()))

	require.NoError(t, h.BeginTransaction(ctx))
	assert.Equal(t, ErrCodeAlreadyInTransaction, CodeOf(h.BeginTransaction(ctx)))
	assert.Equal(t, ErrCodeRefreshInTransaction, CodeOf(h.Refresh()))
	require.NoError(t, h.Commit())
	require.NoError(t, h.Refresh())
}

func TestRefresh_OnLoopOwnedHandle(t *testing.T) {
	e := createTestEngine(t)
	h, err := e.Open(context.Background(), "person", newTestLoop(t))
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, ErrCodeRefreshOnLoop, CodeOf(h.Refresh()))
}

func TestDeleteAll(t *testing.T) {
	h := openTestHandle(t, createTestEngine(t), "person")
	putCommitted(t, h, "1", `{}`)
	putCommitted(t, h, "2", `{}`)
	ctx := context.Background()

	require.NoError(t, h.BeginTransaction(ctx))
	n, err := h.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, h.Commit())

	count, err := h.Count(ctx, query.All())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCommit_BumpsVersionOnlyWhenDirty(t *testing.T) {
	e := createTestEngine(t)
	h := openTestHandle(t, e, "person")
	ctx := context.Background()

	require.NoError(t, h.BeginTransaction(ctx))
	require.NoError(t, h.Commit())
	assert.Equal(t, int64(0), e.Version("person"))

	putCommitted(t, h, "1", `{"v":1}`)
	assert.Equal(t, int64(1), e.Version("person"))
	assert.Equal(t, int64(1), h.Seen())

	// Same body again changes nothing.
	putCommitted(t, h, "1", `{"v":1}`)
	assert.Equal(t, int64(1), e.Version("person"))
}

func TestClose_RollsBackAndIsIdempotent(t *testing.T) {
	e := createTestEngine(t)
	h, err := e.Open(context.Background(), "person", nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, h.BeginTransaction(ctx))
	_, err = h.Put(ctx, "1", []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.True(t, IsHandleClosed(h.Commit()))

	r := openTestHandle(t, e, "person")
	n, err := r.Count(ctx, query.All())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestConcurrentWriters_NoLostUpdates(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := e.Open(ctx, "person", nil)
			if err != nil {
				errs <- err
				return
			}
			defer h.Close()
			if err := h.BeginTransaction(ctx); err != nil {
				errs <- err
				return
			}
			if _, err := h.Put(ctx, string(rune('a'+i)), []byte(`{}`)); err != nil {
				errs <- err
				return
			}
			errs <- h.Commit()
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	h := openTestHandle(t, e, "person")
	n, err := h.Count(ctx, query.All())
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Equal(t, int64(8), e.Version("person"))
}
