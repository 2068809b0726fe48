// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package split composes per-argument partition generators into a single
// generator of full argument tuples, or accepts a single generator that
// already knows how to partition a whole NamedArguments value.
package split

import (
	"fmt"
	"math"
	"sort"

	"github.com/parfungo/parfun/partition"
)

// NamedArguments is one fully-bound function invocation: an ordered sequence
// of positional values plus a mapping from name to value. Splitting and
// carrying operate on NamedArguments.
type NamedArguments struct {
	Positional []any
	Keyed      map[string]any
}

// Clone returns a shallow copy of args, safe to mutate independently.
func (args NamedArguments) Clone() NamedArguments {
	out := NamedArguments{
		Positional: append([]any(nil), args.Positional...),
		Keyed:      make(map[string]any, len(args.Keyed)),
	}
	for k, v := range args.Keyed {
		out.Keyed[k] = v
	}
	return out
}

// A Splitter produces a Generator of NamedArguments chunks from the full,
// unpartitioned call arguments. Non-partitioned (carried) arguments are
// broadcast unchanged into every chunk.
type Splitter interface {
	Split(args NamedArguments) (partition.Generator[NamedArguments], error)
}

// PartitionMismatch is returned when two per-argument generators composed by
// PerArgument disagree on the remaining length at the tail.
type PartitionMismatch struct {
	ArgA string
	LenA int
	ArgB string
	LenB int
}

func (e *PartitionMismatch) Error() string {
	return fmt.Sprintf(
		"partition mismatch: argument %q produced %d items, argument %q produced %d items",
		e.ArgA, e.LenA, e.ArgB, e.LenB,
	)
}

// AllArgumentsFunc builds a Generator over the composite NamedArguments. It is
// invoked once per call, before the first chunk is requested.
type AllArgumentsFunc func(args NamedArguments) (partition.Generator[NamedArguments], error)

// allArguments is the "all-arguments" splitter shape: the entire
// NamedArguments flows through a single generator that knows how to
// partition the composite.
type allArguments struct {
	build AllArgumentsFunc
}

// AllArguments returns a Splitter where build knows how to partition the
// whole argument tuple at once (e.g. partitioning rows of a dataframe that
// spans several named arguments together).
func AllArguments(build AllArgumentsFunc) Splitter {
	return &allArguments{build: build}
}

func (s *allArguments) Split(args NamedArguments) (partition.Generator[NamedArguments], error) {
	return s.build(args)
}

// ArgPartitioner partitions the value bound to one named argument into a
// Generator of chunks of that argument's value.
type ArgPartitioner func(value any) (partition.Generator[any], error)

// perArgument is the "per-argument" splitter shape: independent generators
// for a named subset of arguments, driven lockstep.
type perArgument struct {
	partitioners map[string]ArgPartitioner
}

// PerArgument returns a Splitter that partitions each named argument in
// partitioners independently and synchronizes them lockstep, requesting the
// same chunk size n from each and assembling one NamedArguments per chunk.
// Positional arguments and any keyed argument absent from partitioners are
// carried: passed through by reference, unchanged, to every chunk.
func PerArgument(partitioners map[string]ArgPartitioner) Splitter {
	return &perArgument{partitioners: partitioners}
}

func (s *perArgument) Split(args NamedArguments) (partition.Generator[NamedArguments], error) {
	names := make([]string, 0, len(s.partitioners))
	for name := range s.partitioners {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic iteration/error-reporting order

	gens := make(map[string]partition.Generator[any], len(names))
	for _, name := range names {
		value, ok := args.Keyed[name]
		if !ok {
			return nil, fmt.Errorf("split: argument %q has no bound value", name)
		}
		gen, err := s.partitioners[name](value)
		if err != nil {
			return nil, fmt.Errorf("split: partitioning argument %q: %w", name, err)
		}
		gens[name] = gen
	}

	return &lockstepGenerator{
		carried: args,
		names:   names,
		gens:    gens,
	}, nil
}

// lockstepGenerator drives a set of named generators in lockstep, requesting
// the same n from each and assembling one NamedArguments chunk per step.
type lockstepGenerator struct {
	carried NamedArguments
	names   []string
	gens    map[string]partition.Generator[any]
	err     error
}

func (g *lockstepGenerator) Next(n int) (chunk NamedArguments, size int, ok bool) {
	if g.err != nil {
		return NamedArguments{}, 0, false
	}

	type step struct {
		name  string
		value any
		size  int
		ok    bool
	}
	steps := make([]step, 0, len(g.names))
	for _, name := range g.names {
		v, sz, o := g.gens[name].Next(n)
		steps = append(steps, step{name: name, value: v, size: sz, ok: o})
	}

	allDone := true
	for _, s := range steps {
		if s.ok {
			allDone = false
			break
		}
	}
	if allDone {
		return NamedArguments{}, 0, false
	}

	first := steps[0]
	for _, s := range steps[1:] {
		if s.ok != first.ok || (s.ok && s.size != first.size) {
			g.err = &PartitionMismatch{ArgA: first.name, LenA: first.size, ArgB: s.name, LenB: s.size}
			return NamedArguments{}, 0, false
		}
	}

	out := g.carried.Clone()
	for _, s := range steps {
		out.Keyed[s.name] = s.value
	}
	return out, first.size, true
}

// Err returns the error, if any, that terminated the generator early. Callers
// (the engine) must check Err after Next returns ok == false and before
// treating the stream as cleanly exhausted.
func (g *lockstepGenerator) Err() error {
	return g.err
}

// Len implements partition.Len: the smallest remaining length reported by
// the per-argument generators that implement partition.Len, or math.MaxInt
// when none of them does.
func (g *lockstepGenerator) Len() int {
	remaining := math.MaxInt
	for _, name := range g.names {
		if l, ok := g.gens[name].(partition.Len); ok && l.Len() < remaining {
			remaining = l.Len()
		}
	}
	return remaining
}
