// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package engine

import "github.com/parfungo/parfun/split"

// PartitionSize is either a fixed integer or a function computing the size
// once per call from that call's arguments (spec.md §4.E, §6: "both may be
// integers or one-argument callables"). Construct one with FixedSize or
// ComputedSize.
type PartitionSize interface {
	resolve(args split.NamedArguments) int
}

type fixedPartitionSize int

func (n fixedPartitionSize) resolve(split.NamedArguments) int { return int(n) }

// FixedSize returns a PartitionSize that always evaluates to n.
func FixedSize(n int) PartitionSize { return fixedPartitionSize(n) }

type computedPartitionSize func(args split.NamedArguments) int

func (f computedPartitionSize) resolve(args split.NamedArguments) int { return f(args) }

// ComputedSize returns a PartitionSize invoked once per call, with that
// call's (pre-split) arguments, to compute the size to use for the call.
func ComputedSize(fn func(args split.NamedArguments) int) PartitionSize {
	return computedPartitionSize(fn)
}

func resolvePartitionSize(ps PartitionSize, args split.NamedArguments) int {
	if ps == nil {
		return 0
	}
	return ps.resolve(args)
}
