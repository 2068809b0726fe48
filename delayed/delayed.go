// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package delayed implements the deferred-value engine: a handle wrapping
// one submitted task that behaves, to the extent Go's type system allows,
// like the value it will eventually hold.
package delayed

import (
	"context"
	"fmt"

	"github.com/parfungo/parfun/backend"
	"github.com/parfungo/parfun/future"
)

// A Value wraps one deferred computation of type T. It is returned by New
// immediately; the computation may already be running (submitted to a
// backend), or may have already run synchronously, by the time the caller
// has it in hand.
type Value[T any] struct {
	fut *future.Future[any]
}

// New submits fn for deferred execution and returns a handle for its
// result.
//
//   - If called from inside a running task (the context carries an ambient
//     worker session) whose backend allows nested submission, fn is
//     submitted to that same session.
//   - If called from inside a running task whose backend does not allow
//     nested submission, fn runs synchronously in the worker right now
//     (spec's nested-parallelism fallback).
//   - Otherwise (top-level call) fn is submitted to the process-wide
//     current backend, or run synchronously if none is installed.
func New[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Value[T] {
	if b, sess, ok := backend.FromContext(ctx); ok {
		if b.AllowsNestedTasks() {
			// Borrowing the ambient session: it was acquired (and will be
			// closed) by whoever is running the enclosing task, not by us.
			return submit(sess, false, fn)
		}
		return runInline(ctx, fn)
	}

	top := backend.Current()
	if top == nil {
		return runInline(ctx, fn)
	}
	sess, err := top.Session()
	if err != nil {
		return failed[T](err)
	}
	return submit(sess, true, fn)
}

// New1 resolves a single nested deferred-value argument (awaiting it, per
// spec §4.G's "recursively resolves nested handles in args" construction
// step) before submitting fn, so that delayed(g)(delayed(f)(x)) chains
// compose without the caller writing an explicit await.
func New1[A, T any](ctx context.Context, fn func(ctx context.Context, a A) (T, error), depA *Value[A]) *Value[T] {
	a, err := depA.Await(ctx)
	if err != nil {
		return failed[T](err)
	}
	return New(ctx, func(taskCtx context.Context) (T, error) {
		return fn(taskCtx, a)
	})
}

// New2 is New1 for a two-argument fn.
func New2[A, B, T any](
	ctx context.Context,
	fn func(ctx context.Context, a A, b B) (T, error),
	depA *Value[A],
	depB *Value[B],
) *Value[T] {
	a, err := depA.Await(ctx)
	if err != nil {
		return failed[T](err)
	}
	b, err := depB.Await(ctx)
	if err != nil {
		return failed[T](err)
	}
	return New(ctx, func(taskCtx context.Context) (T, error) {
		return fn(taskCtx, a, b)
	})
}

// submit enqueues fn on sess. ownsSession is true only when this call
// acquired sess itself (the top-level case); a nested call borrowing the
// ambient session set up by an enclosing task must leave closing it to
// whoever acquired it, or sibling nested submissions on the same session
// would start failing the moment the first of them completes.
func submit[T any](sess backend.Session, ownsSession bool, fn func(ctx context.Context) (T, error)) *Value[T] {
	fut, err := sess.Submit(func(taskCtx context.Context) (any, error) {
		return fn(taskCtx)
	})
	if err != nil {
		if ownsSession {
			sess.Close()
		}
		return failed[T](err)
	}
	if ownsSession {
		// The session stays open until the task finishes, however it
		// finishes; Await is never required to release it.
		fut.AddCompletionCallback(func(*future.Future[any]) {
			sess.Close()
		})
	}
	return &Value[T]{fut: fut}
}

func runInline[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Value[T] {
	v, err := fn(ctx)
	if err != nil {
		return failed[T](err)
	}
	return &Value[T]{fut: future.Resolved[any](v)}
}

func failed[T any](err error) *Value[T] {
	return &Value[T]{fut: future.Failed[any](err)}
}

// Await blocks until the deferred computation completes and returns its
// value or its error, preserving the original error's identity (errors.Is/
// errors.As against it observe the user function's own error kind).
func (v *Value[T]) Await(ctx context.Context) (T, error) {
	var zero T
	raw, err := v.fut.Await(ctx)
	if err != nil {
		return zero, err
	}
	return raw.(T), nil
}

// Done returns a channel that is closed once the deferred computation has
// finished.
func (v *Value[T]) Done() <-chan struct{} {
	return v.fut.Done()
}

// String renders the sentinel token "pending" without blocking while the
// computation is outstanding, or the resolved value's own representation
// (or its error) once it completes.
func (v *Value[T]) String() string {
	select {
	case <-v.fut.Done():
	default:
		return "pending"
	}
	raw, err := v.fut.Await(context.Background())
	if err != nil {
		return fmt.Sprintf("<error: %v>", err)
	}
	return fmt.Sprintf("%v", raw)
}
