package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RejectsWhenQueueFull(t *testing.T) {
	p := NewPool(1, 1)
	started := make(chan struct{})
	release := make(chan struct{})

	require.NoError(t, p.Submit("blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	}, nil))
	<-started

	noop := func(context.Context) error { return nil }
	require.NoError(t, p.Submit("queued", noop, nil))
	assert.ErrorIs(t, p.Submit("overflow", noop, nil), ErrPoolSaturated)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPool_RecoversPanics(t *testing.T) {
	p := NewPool(1, 1)
	got := make(chan error, 1)

	require.NoError(t, p.Submit("boom", func(context.Context) error {
		panic("kaboom")
	}, func(err error) { got <- err }))

	select {
	case err := <-got:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic in boom")
	case <-time.After(2 * time.Second):
		t.Fatal("onDone was not called")
	}

	// the worker survived the panic
	done := make(chan error, 1)
	require.NoError(t, p.Submit("after", func(context.Context) error { return nil }, func(err error) { done <- err }))
	assert.NoError(t, <-done)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPool_ShutdownDrainsQueue(t *testing.T) {
	p := NewPool(2, 10)
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit("count", func(context.Context) error {
			ran.Add(1)
			return nil
		}, nil))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(5), ran.Load())
	assert.ErrorIs(t, p.Submit("late", func(context.Context) error { return nil }, nil), ErrPoolClosed)
}

func TestPool_ShutdownTimeoutCancelsRunningTasks(t *testing.T) {
	p := NewPool(1, 1)
	started := make(chan struct{})
	result := make(chan error, 1)

	require.NoError(t, p.Submit("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, func(err error) { result <- err }))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Shutdown(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.ErrorIs(t, <-result, context.Canceled)
}
