// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package engine

// A Combiner folds the partial results of a call's chunks into one final
// value. Implementations MAY apply the fold incrementally as results arrive
// (preferred, bounds memory to O(1) partials) or buffer everything and
// reduce once in Result; Run always calls Add incrementally as each chunk
// completes, in submission order, so the combiner must be
// associative-commutative over the arrival order of partials (arrival order
// is unspecified, only submission order is guaranteed).
type Combiner interface {
	Add(partial any)
	Result() any
}

// CombinerFactory builds a fresh Combiner for one call to Run.
type CombinerFactory func() Combiner

// reduceCombiner folds partials with fold, seeded with zero.
type reduceCombiner struct {
	acc  any
	fold func(acc, partial any) any
}

// Reduce returns a CombinerFactory that folds partials with fold, starting
// from zero. This covers the common case (sum, concatenation, merge) without
// requiring callers to hand-write a Combiner implementation.
func Reduce(zero any, fold func(acc, partial any) any) CombinerFactory {
	return func() Combiner {
		return &reduceCombiner{acc: zero, fold: fold}
	}
}

func (c *reduceCombiner) Add(partial any) {
	c.acc = c.fold(c.acc, partial)
}

func (c *reduceCombiner) Result() any {
	return c.acc
}
