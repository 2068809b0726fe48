// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package backend defines the abstract worker pool that the parallel-function
// engine and the deferred-value engine submit work to, plus a registry of
// concrete, named backends and the process-wide "current backend" used by
// callers that don't thread a Backend through explicitly.
package backend

import (
	"context"

	"github.com/parfungo/parfun/future"
)

// Task is one unit of work submitted to a Session. The context it receives
// carries the ambient worker session (see WithSession/FromContext), so that
// code running inside Task can submit nested tasks to "its own" session
// when the backend allows it. Task returns the computed value or an error;
// a panic inside Task is recovered by the Session and surfaced as
// WorkerDied rather than crashing the worker pool.
type Task func(ctx context.Context) (any, error)

// A Backend is a concrete worker pool implementation, registered by name in
// a Registry (e.g. "local_single_process", "local_multiprocessing").
type Backend interface {
	// Session acquires a scoped worker context, guaranteeing release on all
	// exit paths via Session.Close.
	Session() (Session, error)

	// AllowsNestedTasks reports whether a task running on a worker may
	// itself submit sub-tasks to this backend.
	AllowsNestedTasks() bool

	// Close tears down the backend. Submit on any outstanding Session fails
	// with BackendUnavailable afterwards; deferred results of tasks still
	// queued fail with Cancelled, while a task already running completes.
	Close() error
}

// A Session is a scoped handle on a Backend's worker pool. It must be closed
// by its acquirer on every exit path (normal, error, cancellation);
// Session.Close is idempotent.
type Session interface {
	// Submit enqueues one task and returns immediately with a future that
	// will carry its value (or error) and its measured wall-clock duration.
	//
	// Submit fails with BackendUnavailable if the pool has been torn down.
	Submit(task Task) (*future.Future[any], error)

	// PreloadValue returns a reference that can be captured by later Task
	// closures in place of v, to avoid re-transmitting large broadcast
	// values. Local, in-process backends return v unchanged: preloading
	// only matters once a backend must serialize values across a process
	// or network boundary.
	PreloadValue(v any) (any, error)

	// Close releases the session's claim on the worker pool. It is safe to
	// call multiple times.
	Close() error
}
