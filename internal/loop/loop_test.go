package loop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T, name string) *Loop {
	t.Helper()
	l := New(name).Start(context.Background())
	t.Cleanup(l.Stop)
	return l
}

func TestLoop_RunsInPostOrder(t *testing.T) {
	l := startLoop(t, "order")
	got := make(chan int, 100)

	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func(context.Context) { got <- i }))
	}
	for i := 0; i < 100; i++ {
		select {
		case v := <-got:
			assert.Equal(t, i, v)
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
}

func TestLoop_SurvivesIdleSignals(t *testing.T) {
	l := startLoop(t, "idle")

	for i := 0; i < 3; i++ {
		err := l.Call(context.Background(), func(context.Context) error { return nil })
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}
	err := l.Call(context.Background(), func(context.Context) error { return errors.New("boom") })
	assert.EqualError(t, err, "boom")
}

func TestLoop_OnAndDispatch(t *testing.T) {
	a := startLoop(t, "a")
	b := startLoop(t, "b")

	err := a.Call(context.Background(), func(ctx context.Context) error {
		assert.True(t, On(ctx, a))
		assert.False(t, On(ctx, b))

		ran := false
		a.Dispatch(ctx, func(context.Context) { ran = true })
		assert.True(t, ran, "dispatch on own loop runs inline")

		done := make(chan bool, 1)
		b.Dispatch(ctx, func(inner context.Context) { done <- On(inner, b) })
		assert.True(t, <-done, "dispatch to another loop is posted there")

		// Call from the loop itself must not deadlock.
		return a.Call(ctx, func(context.Context) error { return nil })
	})
	require.NoError(t, err)
	assert.False(t, On(context.Background(), a))
}

func TestLoop_StopDrainsQueuedJobs(t *testing.T) {
	l := New("drain")
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		l.Post(func(context.Context) { n.Add(1) })
	}
	l.Start(context.Background())
	l.Stop()

	assert.Equal(t, int32(10), n.Load())
	assert.False(t, l.Post(func(context.Context) {}))
	assert.ErrorIs(t, l.Call(context.Background(), func(context.Context) error { return nil }), ErrStopped)
}

func TestLoop_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New("cancel")
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	<-l.Done()
}

func TestLoop_RecoversPanics(t *testing.T) {
	l := startLoop(t, "panic")
	l.Post(func(context.Context) { panic("boom") })

	err := l.Call(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err, "loop keeps running after a panicking job")

	err = l.Call(context.Background(), func(context.Context) error { panic("again") })
	assert.Error(t, err)
}

func TestLoop_RunTwice(t *testing.T) {
	l := startLoop(t, "twice")
	l.Call(context.Background(), func(context.Context) error { return nil })
	assert.Error(t, l.Run(context.Background()))
}

func TestDirectDispatcher(t *testing.T) {
	ran := false
	Or(nil).Dispatch(context.Background(), func(context.Context) { ran = true })
	assert.True(t, ran)

	l := New("x")
	assert.Equal(t, Dispatcher(l), Or(l))
}
