package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAcquireRelease(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 2)
	require.NoError(t, err)
	defer pool.Close()
	ctx := context.Background()

	a, err := pool.Acquire(ctx)
	require.NoError(t, err)
	b, err := pool.Acquire(ctx)
	require.NoError(t, err)
	c, err := pool.Acquire(ctx)
	require.NoError(t, err, "pool grows past its idle size")

	assert.Equal(t, PoolStats{Live: 3, Created: 3}, pool.Stats())

	_, err = a.Execute(ctx, "var dirty = true")
	require.NoError(t, err)

	require.NoError(t, pool.Release(a))
	require.NoError(t, pool.Release(b))
	require.NoError(t, pool.Release(c), "extra runtime is closed")
	assert.Equal(t, PoolStats{Idle: 2, Created: 3}, pool.Stats())

	again, err := pool.Acquire(ctx)
	require.NoError(t, err)
	res, err := again.Execute(ctx, "typeof dirty")
	require.NoError(t, err)
	assert.Equal(t, "undefined", res.Value, "released runtimes are reset")
}

func TestPoolClosed(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1)
	require.NoError(t, err)

	rt, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.NoError(t, pool.Release(rt))
	assert.Equal(t, PoolStats{Created: 1, Closed: true}, pool.Stats())
}

func TestPoolMaxRuntimes(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1, MaxRuntimes(1))
	require.NoError(t, err)
	defer pool.Close()

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan *Runtime)
	go func() {
		rt, err := pool.Acquire(context.Background())
		if err == nil {
			acquired <- rt
		}
	}()
	require.NoError(t, pool.Release(held))

	select {
	case rt := <-acquired:
		assert.Same(t, held, rt, "the released runtime is reused")
		require.NoError(t, pool.Release(rt))
	case <-time.After(5 * time.Second):
		t.Fatal("acquire did not resume after release")
	}
	assert.Equal(t, 1, pool.Stats().Limit)
}

func TestPoolCancelledContext(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1)
	require.NoError(t, err)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
