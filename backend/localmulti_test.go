package backend_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parfungo/parfun/backend"
)

func TestLocalMultiprocessingRunsConcurrently(t *testing.T) {
	b, err := backend.DefaultRegistry().New("local_multiprocessing", map[string]any{"max_workers": 4})
	require.NoError(t, err)
	defer b.Close()

	sess, err := b.Session()
	require.NoError(t, err)
	defer sess.Close()

	var wg sync.WaitGroup
	var inflight int32
	var maxInflight int32
	n := 8
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			fut, err := sess.Submit(func(ctx context.Context) (any, error) {
				cur := atomic.AddInt32(&inflight, 1)
				for {
					m := atomic.LoadInt32(&maxInflight)
					if cur <= m || atomic.CompareAndSwapInt32(&maxInflight, m, cur) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&inflight, -1)
				return nil, nil
			})
			require.NoError(t, err)
			_, err = fut.Await(context.Background())
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Greater(t, atomic.LoadInt32(&maxInflight), int32(1), "expected overlap across workers")
}

func TestLocalMultiprocessingDisallowsNestedTasks(t *testing.T) {
	b, _ := backend.DefaultRegistry().New("local_multiprocessing", nil)
	assert.False(t, b.AllowsNestedTasks())
}

func TestLocalMultiprocessingWrapsTaskError(t *testing.T) {
	b, _ := backend.DefaultRegistry().New("local_multiprocessing", map[string]any{"max_workers": 1})
	defer b.Close()
	sess, _ := b.Session()
	defer sess.Close()

	sentinel := errors.New("boom")
	fut, err := sess.Submit(func(ctx context.Context) (any, error) {
		return nil, sentinel
	})
	require.NoError(t, err)

	_, err = fut.Await(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))
}

func TestLocalMultiprocessingRecoversPanicAndKeepsPoolAlive(t *testing.T) {
	b, _ := backend.DefaultRegistry().New("local_multiprocessing", map[string]any{"max_workers": 1})
	defer b.Close()
	sess, _ := b.Session()
	defer sess.Close()

	fut, err := sess.Submit(func(ctx context.Context) (any, error) {
		panic("worker exploded")
	})
	require.NoError(t, err)
	_, err = fut.Await(context.Background())
	require.Error(t, err)
	var died *backend.ErrWorkerDied
	assert.True(t, errors.As(err, &died))

	// Pool must still be usable after the panicking worker is replaced.
	fut2, err := sess.Submit(func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	v, err := fut2.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestLocalMultiprocessingCancelsInFlightOnClose(t *testing.T) {
	b, _ := backend.DefaultRegistry().New("local_multiprocessing", map[string]any{"max_workers": 1})
	sess, _ := b.Session()

	release := make(chan struct{})
	started := make(chan struct{})
	_, err := sess.Submit(func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	require.NoError(t, err)
	<-started

	fut2, err := sess.Submit(func(ctx context.Context) (any, error) { return nil, nil })
	require.NoError(t, err)

	closeDone := make(chan struct{})
	go func() {
		b.Close()
		close(closeDone)
	}()
	close(release) // let the in-flight task finish so Close's group.Wait can return
	<-closeDone

	_, err = fut2.Await(context.Background())
	require.Error(t, err)
	var cancelled *backend.ErrCancelled
	assert.True(t, errors.As(err, &cancelled))
}
