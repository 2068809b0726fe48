// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package backend

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/parfungo/parfun/future"
	"github.com/parfungo/parfun/internal/clog"
)

var multiLog = clog.New("backend/local_multiprocessing: ")

type job struct {
	ctx  context.Context
	task Task
	fut  *future.Future[any]
}

// localMultiprocessing is a fixed-size goroutine worker pool. It does not
// allow nested submission: a worker blocked awaiting a nested task's result
// on a saturated pool is a classic thread-pool deadlock, so construction on
// a worker here always falls back to synchronous, in-worker evaluation.
type localMultiprocessing struct {
	mu      sync.Mutex
	closed  bool
	queue   chan job
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	workers int
}

func newLocalMultiprocessing(options map[string]any) (Backend, error) {
	workers := runtime.GOMAXPROCS(0)
	if v, ok := options["max_workers"]; ok {
		if n, ok := v.(int); ok && n > 0 {
			workers = n
		}
	}

	parent, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(parent)
	b := &localMultiprocessing{
		queue:   make(chan job, workers*2),
		ctx:     ctx,
		cancel:  cancel,
		group:   group,
		workers: workers,
	}
	for i := 0; i < workers; i++ {
		id := i
		group.Go(func() error {
			b.superviseWorker(ctx, id)
			return nil
		})
	}
	return b, nil
}

func (b *localMultiprocessing) Session() (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, &ErrBackendUnavailable{Backend: "local_multiprocessing"}
	}
	return &localMultiSession{backend: b}, nil
}

func (b *localMultiprocessing) AllowsNestedTasks() bool { return false }

func (b *localMultiprocessing) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.group.Wait() // the worker goroutines always return nil

	// Anything still queued never got picked up before its worker saw the
	// cancellation; fail it rather than leaving its future pending forever.
drain:
	for {
		select {
		case j := <-b.queue:
			j.fut.SetErr(&ErrCancelled{Backend: "local_multiprocessing"}, 0, true)
		default:
			break drain
		}
	}
	return nil
}

// superviseWorker runs the worker's job loop and, if the loop reports that
// it died mid-task (a recovered panic), waits out an exponential backoff
// before relaunching it. This keeps the pool at its configured size across
// transient worker failures instead of silently shrinking.
func (b *localMultiprocessing) superviseWorker(ctx context.Context, id int) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	for {
		crashed := b.runWorkerOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if !crashed {
			return
		}
		delay := bo.NextBackOff()
		multiLog.Printf("worker %d died, restarting in %s", id, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (b *localMultiprocessing) runWorkerOnce(ctx context.Context) (crashed bool) {
	for {
		select {
		case j, ok := <-b.queue:
			if !ok {
				return false
			}
			if ctx.Err() != nil {
				// Picked up after cancellation: fail it, as Close does for
				// whatever is still queued.
				j.fut.SetErr(&ErrCancelled{Backend: "local_multiprocessing"}, 0, true)
				return false
			}
			if b.process(j) {
				return true
			}
		case <-ctx.Done():
			return false
		}
	}
}

func (b *localMultiprocessing) process(j job) (fatal bool) {
	start := time.Now()
	value, err, fatal := runTask(j.ctx, j.task)
	d := time.Since(start)

	if err != nil {
		j.fut.SetErr(err, d, true)
	} else {
		j.fut.Set(value, d, true)
	}
	return fatal
}

type localMultiSession struct {
	mu      sync.Mutex
	backend *localMultiprocessing
	closed  bool
}

func (s *localMultiSession) Submit(task Task) (*future.Future[any], error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	s.backend.mu.Lock()
	backendClosed := s.backend.closed
	s.backend.mu.Unlock()

	if closed || backendClosed {
		return nil, &ErrBackendUnavailable{Backend: "local_multiprocessing"}
	}

	f := future.New[any]()
	ctx := WithSession(s.backend.ctx, s.backend, s)
	j := job{ctx: ctx, task: task, fut: f}

	select {
	case s.backend.queue <- j:
		return f, nil
	default:
	}

	// Queue is momentarily full; block but still honor teardown.
	select {
	case s.backend.queue <- j:
		return f, nil
	case <-s.backend.ctx.Done():
		return nil, &ErrCancelled{Backend: "local_multiprocessing"}
	}
}

func (s *localMultiSession) PreloadValue(v any) (any, error) { return v, nil }

func (s *localMultiSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
