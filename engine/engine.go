// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package engine implements the parallel-function engine: the per-call
// pipeline that splits arguments, schedules chunks onto a backend under a
// bounded in-flight window, and folds results with a Combiner.
package engine

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parfungo/parfun/backend"
	"github.com/parfungo/parfun/estimator"
	"github.com/parfungo/parfun/internal/clog"
	"github.com/parfungo/parfun/partition"
	"github.com/parfungo/parfun/split"
)

var log = clog.New("engine: ")

// ChunkFunc computes one chunk's partial result from the partitioned
// arguments of that chunk plus the call's carried (broadcast) arguments.
type ChunkFunc func(ctx context.Context, chunk split.NamedArguments, carried split.NamedArguments) (any, error)

// Options configures one call to Run. Splitter, Compute and Combiner are
// required; everything else has a spec-defined default.
type Options struct {
	Splitter split.Splitter
	Carried  split.NamedArguments
	Compute  ChunkFunc
	Combiner CombinerFactory

	// Callers should set at most one of these; nothing rejects setting both.
	// A FixedPartitionSize that resolves to a positive size is used for every
	// chunk in place of the estimator's suggestion (the estimator is still
	// fed the measured durations). Each may be a plain FixedSize(n) or a
	// ComputedSize callable invoked once per call with that call's arguments
	// (spec.md §4.E, §6).
	InitialPartitionSize PartitionSize
	FixedPartitionSize   PartitionSize

	EstimatorFactory estimator.Factory

	// Window bounds in-flight chunks; defaults to 2 * GOMAXPROCS.
	Window int

	// Backend to submit chunks to; nil means backend.Current().
	Backend backend.Backend

	Profile     bool
	TraceWriter io.Writer

	// PreloadThresholdBytes is the size above which a carried argument is
	// preloaded via Session.PreloadValue before the pipeline starts.
	// Zero selects the spec's suggested default of 1 MiB.
	PreloadThresholdBytes int
}

const defaultPreloadThreshold = 1 << 20 // 1 MiB, per spec §4.F step 4

// Run executes one parallel call end to end and returns the combiner's
// final result. It builds a fresh, call-scoped Estimator every time, so
// repeated calls never let the estimator's learning compound; callers that
// invoke the same decorated function repeatedly should use New/Func.Call
// instead, which binds one Estimator to the callsite for its lifetime.
func Run(ctx context.Context, args split.NamedArguments, opts Options) (any, error) {
	estFactory := opts.EstimatorFactory
	if estFactory == nil {
		estFactory = estimator.NewLinearRegression(estimator.DefaultConfig())
	}
	initial := resolveInitial(opts, args)
	est := estFactory(initial)
	return run(ctx, args, opts, est, initial)
}

// Func is one callsite bound to a fixed Options and a single persistent
// Estimator, matching spec.md's glossary ("Callsite — one decorated
// function; each callsite owns its own estimator state"): every call to
// Call feeds the same Estimator, so its learning compounds across calls
// instead of restarting cold each time.
type Func struct {
	opts Options

	mu  sync.Mutex
	est estimator.Estimator
}

// New binds opts to a callsite. The callsite's Estimator is constructed
// lazily, on the first Call, since ComputedSize's initial size may depend
// on that call's arguments.
func New(opts Options) *Func {
	return &Func{opts: opts}
}

// Call runs one invocation of the bound callsite, reusing the estimator
// state from any prior Call on the same Func.
func (f *Func) Call(ctx context.Context, args split.NamedArguments) (any, error) {
	initial := resolveInitial(f.opts, args)
	f.mu.Lock()
	if f.est == nil {
		factory := f.opts.EstimatorFactory
		if factory == nil {
			factory = estimator.NewLinearRegression(estimator.DefaultConfig())
		}
		f.est = &syncEstimator{est: factory(initial)}
	}
	est := f.est
	f.mu.Unlock()

	return run(ctx, args, f.opts, est, initial)
}

func resolveInitial(opts Options, args split.NamedArguments) int {
	initial := resolvePartitionSize(opts.InitialPartitionSize, args)
	if initial <= 0 {
		initial = 1
	}
	return initial
}

// syncEstimator serializes access to an Estimator shared across concurrent
// Func.Call invocations at the same callsite; a bare estimator.Estimator
// assumes single-goroutine use within one call's pipeline.
type syncEstimator struct {
	mu  sync.Mutex
	est estimator.Estimator
}

func (s *syncEstimator) NextSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.est.NextSize()
}

func (s *syncEstimator) Observe(n int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.est.Observe(n, d)
}

func (s *syncEstimator) State() estimator.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.est.State()
}

func run(ctx context.Context, args split.NamedArguments, opts Options, est estimator.Estimator, initial int) (any, error) {
	fixed := resolvePartitionSize(opts.FixedPartitionSize, args)

	gen, err := opts.Splitter.Split(args)
	if err != nil {
		return nil, fmt.Errorf("engine: split arguments: %w", err)
	}

	// Small-input fast path: run in-process, no backend round trip.
	if fixed <= 0 {
		if l, ok := gen.(partition.Len); ok && l.Len() < 2*initial {
			return runSequential(ctx, gen, opts, est, fixed)
		}
	}

	b := opts.Backend
	if b == nil {
		b = backend.Current()
	}
	if b == nil {
		return runSequential(ctx, gen, opts, est, fixed)
	}

	sess, err := b.Session()
	if err != nil {
		return nil, fmt.Errorf("engine: acquire session: %w", err)
	}
	defer sess.Close()

	carried, err := preloadCarried(sess, opts.Carried, opts.PreloadThresholdBytes)
	if err != nil {
		return nil, fmt.Errorf("engine: preload carried arguments: %w", err)
	}

	return runPipeline(ctx, gen, sess, carried, est, opts, fixed)
}

type inflight struct {
	fut           backendFuture
	size          int
	index         int
	scheduleStart time.Time
}

// backendFuture is the minimal surface Run needs from future.Future[any],
// named here to keep this file free of a direct generic instantiation import
// cycle concern; backend.Session.Submit already returns this type.
type backendFuture interface {
	AwaitBoth(ctx context.Context) (any, time.Duration, error)
}

func runPipeline(
	ctx context.Context,
	gen partition.Generator[split.NamedArguments],
	sess backend.Session,
	carried split.NamedArguments,
	est estimator.Estimator,
	opts Options,
	fixed int,
) (any, error) {
	window := opts.Window
	if window <= 0 {
		window = 2 * runtime.GOMAXPROCS(0)
	}
	if window < 1 {
		window = 1
	}

	combiner := opts.Combiner()
	callID := uuid.NewString()

	var queue []inflight
	var rows []TraceRow
	var firstErr error
	chunkIndex := 0

	submitOne := func() (ok bool, err error) {
		n := fixed
		if n <= 0 {
			n = est.NextSize()
		}
		if n <= 0 {
			n = 1
		}

		scheduleStart := time.Now()
		chunk, size, more := gen.Next(n)
		if !more {
			if f, isF := gen.(interface{ Err() error }); isF {
				if mismatch := f.Err(); mismatch != nil {
					return false, mismatch
				}
			}
			return false, nil
		}

		idx := chunkIndex
		chunkIndex++
		fut, err := sess.Submit(func(taskCtx context.Context) (any, error) {
			return opts.Compute(taskCtx, chunk, carried)
		})
		if err != nil {
			return false, err
		}
		queue = append(queue, inflight{fut: fut, size: size, index: idx, scheduleStart: scheduleStart})
		return true, nil
	}

	drainHead := func() error {
		head := queue[0]
		queue = queue[1:]

		value, duration, err := head.fut.AwaitBoth(ctx)
		combineStart := time.Now()
		var outcome string
		if err != nil {
			outcome = "error"
		} else {
			est.Observe(head.size, duration)
			combiner.Add(value)
			outcome = "ok"
		}
		if opts.Profile {
			rows = append(rows, TraceRow{
				CallID:        callID,
				ChunkIndex:    head.index,
				PartitionSize: head.size,
				ScheduleNS:    head.scheduleStart.UnixNano(),
				TaskNS:        duration.Nanoseconds(),
				CombineNS:     time.Since(combineStart).Nanoseconds(),
				Outcome:       outcome,
			})
		}
		return err
	}

	for firstErr == nil {
		more, err := submitOne()
		if err != nil {
			firstErr = err
			break
		}
		if !more {
			break
		}
		if len(queue) >= window {
			if err := drainHead(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	// Drain whatever is left, in submission order. Once firstErr is set the
	// remaining chunks are still awaited (not cancelled), and their errors
	// are suppressed (logged, not returned) so the caller sees the first
	// failure, per spec §7's first-in-wins policy.
	for len(queue) > 0 {
		err := drainHead()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			} else if firstErr != err {
				log.Printf("call %s: suppressing additional error after first failure: %v", callID, err)
			}
		}
	}

	if opts.Profile && opts.TraceWriter != nil && len(rows) > 0 {
		if err := WriteTrace(opts.TraceWriter, rows); err != nil {
			log.Printf("call %s: writing trace: %v", callID, err)
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return combiner.Result(), nil
}

// runSequential executes the whole call in-process, with no backend
// involved: either because the input is too small to amortize scheduling
// overhead, or because no backend is configured (spec's degenerate,
// synchronous fallback). There is no scheduling to profile here, so
// Options.Profile/TraceWriter are ignored on this path.
func runSequential(
	ctx context.Context,
	gen partition.Generator[split.NamedArguments],
	opts Options,
	est estimator.Estimator,
	fixed int,
) (any, error) {
	combiner := opts.Combiner()

	for {
		n := fixed
		if n <= 0 {
			n = est.NextSize()
		}
		if n <= 0 {
			n = 1
		}

		chunk, size, more := gen.Next(n)
		if !more {
			if f, isF := gen.(interface{ Err() error }); isF {
				if mismatch := f.Err(); mismatch != nil {
					return nil, mismatch
				}
			}
			break
		}

		start := time.Now()
		value, err := opts.Compute(ctx, chunk, opts.Carried)
		duration := time.Since(start)
		if err != nil {
			return nil, &backend.ErrTaskRaised{Inner: err}
		}
		est.Observe(size, duration)
		combiner.Add(value)
	}

	return combiner.Result(), nil
}
