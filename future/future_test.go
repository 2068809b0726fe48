package future_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parfungo/parfun/future"
)

func TestAwaitResolved(t *testing.T) {
	f := future.New[int]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Set(42, 5*time.Millisecond, true)
	}()

	value, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestAwaitFailed(t *testing.T) {
	f := future.New[int]()
	want := errors.New("bad")

	go f.SetErr(want, 0, false)

	_, err := f.Await(context.Background())
	assert.ErrorIs(t, err, want)
}

func TestAwaitDurationSetBeforeTransition(t *testing.T) {
	f := future.New[int]()

	done := make(chan struct{})
	var sawDuration time.Duration
	f.AddCompletionCallback(func(cf *future.Future[int]) {
		d, ok, err := cf.AwaitDuration(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		sawDuration = d
		close(done)
	})

	f.Set(1, 7*time.Millisecond, true)
	<-done
	assert.Equal(t, 7*time.Millisecond, sawDuration)
}

func TestAwaitBoth(t *testing.T) {
	f := future.New[string]()
	f.Set("hi", 3*time.Millisecond, true)

	value, dur, err := f.AwaitBoth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi", value)
	assert.Equal(t, 3*time.Millisecond, dur)
}

func TestAwaitContextCancel(t *testing.T) {
	f := future.New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCompletionCallbackFIFO(t *testing.T) {
	f := future.New[int]()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		i := i
		f.AddCompletionCallback(func(*future.Future[int]) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}

	f.Set(0, 0, false)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestCompletionCallbackAfterTerminalFiresInline(t *testing.T) {
	f := future.New[int]()
	f.Set(9, 0, false)

	called := false
	f.AddCompletionCallback(func(*future.Future[int]) { called = true })

	assert.True(t, called)
}

func TestResolvedAndFailedConstructors(t *testing.T) {
	r := future.Resolved(5)
	v, err := r.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	wantErr := errors.New("nope")
	fl := future.Failed[int](wantErr)
	_, err = fl.Await(context.Background())
	assert.ErrorIs(t, err, wantErr)
}

func TestSetTwicePanics(t *testing.T) {
	f := future.New[int]()
	f.Set(1, 0, false)

	assert.Panics(t, func() { f.Set(2, 0, false) })
}
