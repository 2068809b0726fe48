// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package parfun is a data-parallel task execution framework: split a call's
// arguments into chunks, dispatch the chunks to a worker pool, and combine
// their partial results, with an online estimator choosing the chunk size
// and a bounded in-flight window providing backpressure.
//
// The root package re-exports the pieces most callers need so that a
// straightforward call site only imports "github.com/parfungo/parfun";
// engine.Options, backend.Backend and friends remain directly reachable in
// their own packages for anyone composing a custom pipeline.
package parfun

import (
	"context"

	"github.com/parfungo/parfun/backend"
	"github.com/parfungo/parfun/config"
	"github.com/parfungo/parfun/delayed"
	"github.com/parfungo/parfun/engine"
	"github.com/parfungo/parfun/split"
)

// Options is engine.Options, reused so callers of Parallel don't need a
// second import.
type Options = engine.Options

// NamedArguments is split.NamedArguments, the per-call argument bag Parallel
// and the splitter combinators operate on.
type NamedArguments = split.NamedArguments

// Parallel runs one data-parallel call: split args per opts.Splitter,
// dispatch chunks to opts.Backend (or the process-wide current backend),
// and fold the results with opts.Combiner. See engine.Run for the full
// pipeline description. Each call to Parallel builds a fresh estimator; a
// callsite invoked repeatedly should use NewFunc instead, so its estimator
// keeps learning across calls.
func Parallel(ctx context.Context, args NamedArguments, opts Options) (any, error) {
	return engine.Run(ctx, args, opts)
}

// Func is engine.Func: one callsite bound to a fixed Options and the single
// persistent Estimator its repeated calls share.
type Func = engine.Func

// NewFunc binds opts to a callsite; see engine.New.
func NewFunc(opts Options) *Func {
	return engine.New(opts)
}

// NewFuncFromConfig loads a YAML config file and binds the resulting
// backend, estimator tuning and window size to one callsite via
// config.Config.EngineOptions.
func NewFuncFromConfig(path string, splitter split.Splitter, compute engine.ChunkFunc, combiner engine.CombinerFactory) (*Func, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.EngineOptions(splitter, compute, combiner)
	if err != nil {
		return nil, err
	}
	return NewFunc(opts), nil
}

// FixedSize is engine.FixedSize.
func FixedSize(n int) engine.PartitionSize { return engine.FixedSize(n) }

// ComputedSize is engine.ComputedSize.
func ComputedSize(fn func(args NamedArguments) int) engine.PartitionSize {
	return engine.ComputedSize(fn)
}

// AllArguments is split.AllArguments.
func AllArguments(build split.AllArgumentsFunc) split.Splitter {
	return split.AllArguments(build)
}

// PerArgument is split.PerArgument.
func PerArgument(partitioners map[string]split.ArgPartitioner) split.Splitter {
	return split.PerArgument(partitioners)
}

// Delayed submits fn for deferred execution; see delayed.New.
func Delayed[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *delayed.Value[T] {
	return delayed.New(ctx, fn)
}

// InstallBackend installs the named, registered backend as the process-wide
// default. See backend.Install.
func InstallBackend(name string, options map[string]any) error {
	return backend.Install(name, options)
}

// ScopedInstallBackend installs b as the process-wide default for the
// dynamic extent of fn, restoring the previous default on return. See
// backend.ScopedInstall.
func ScopedInstallBackend(b backend.Backend, fn func() error) error {
	return backend.ScopedInstall(b, fn)
}
