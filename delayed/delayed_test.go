package delayed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parfungo/parfun/backend"
	"github.com/parfungo/parfun/delayed"
)

func TestNewWithNoBackendRunsSynchronously(t *testing.T) {
	require.Nil(t, backend.Current())

	ran := false
	v := delayed.New(context.Background(), func(ctx context.Context) (int, error) {
		ran = true
		return 7, nil
	})
	assert.True(t, ran)

	result, err := v.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, result)
}

func TestNewSubmitsToCurrentBackend(t *testing.T) {
	require.NoError(t, backend.Install("local_single_process", nil))
	defer backend.InstallBackend(nil)

	v := delayed.New(context.Background(), func(ctx context.Context) (int, error) {
		return 21, nil
	})
	result, err := v.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21, result)
}

func TestAwaitPreservesErrorIdentity(t *testing.T) {
	sentinel := errors.New("boom")
	v := delayed.New(context.Background(), func(ctx context.Context) (int, error) {
		return 0, sentinel
	})
	_, err := v.Await(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))
}

func TestStringSentinelWhilePending(t *testing.T) {
	release := make(chan struct{})
	require.NoError(t, backend.Install("local_multiprocessing", map[string]any{"max_workers": 1}))
	defer backend.InstallBackend(nil)

	v := delayed.New(context.Background(), func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	assert.Equal(t, "pending", v.String())
	close(release)
	_, err := v.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", v.String())
}

func TestNew1ResolvesNestedHandleBeforeSubmitting(t *testing.T) {
	f := delayed.New(context.Background(), func(ctx context.Context) (int, error) {
		return 3, nil
	})
	g := delayed.New1(context.Background(), func(ctx context.Context, a int) (int, error) {
		return a * 10, nil
	}, f)

	result, err := g.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, result)
}

func TestNew1PropagatesDependencyError(t *testing.T) {
	sentinel := errors.New("dependency failed")
	f := delayed.New(context.Background(), func(ctx context.Context) (int, error) {
		return 0, sentinel
	})
	g := delayed.New1(context.Background(), func(ctx context.Context, a int) (int, error) {
		t.Fatal("fn must not run when its dependency failed")
		return 0, nil
	}, f)

	_, err := g.Await(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))
}

// fib builds a recursive deferred task graph: each call constructs two
// children and awaits both, the "+ awaits both children" pattern from
// spec §4.G. With a backend that disallows nested submission, each
// recursive New call falls back to synchronous in-worker evaluation.
func fib(ctx context.Context, n int) *delayed.Value[int] {
	return delayed.New(ctx, func(taskCtx context.Context) (int, error) {
		if n < 2 {
			return n, nil
		}
		a := fib(taskCtx, n-1)
		b := fib(taskCtx, n-2)
		return delayed.Add(taskCtx, a, b)
	})
}

func TestRecursiveTaskGraphWithNestedFallback(t *testing.T) {
	require.NoError(t, backend.Install("local_multiprocessing", map[string]any{"max_workers": 2}))
	defer backend.InstallBackend(nil)

	v := fib(context.Background(), 10)
	result, err := v.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 55, result)
}

func TestRecursiveTaskGraphOnNestedAllowingBackend(t *testing.T) {
	require.NoError(t, backend.Install("local_single_process", nil))
	defer backend.InstallBackend(nil)

	v := fib(context.Background(), 10)
	result, err := v.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 55, result)
}
