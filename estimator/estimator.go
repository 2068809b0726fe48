// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package estimator provides the partition-size estimator: an online
// regression that chooses, for a given callsite, how many items per
// partition minimize wall time per item, based on measured per-partition
// cost.
package estimator

import "time"

// State is the estimator's current confidence in its prediction.
type State int

const (
	// Cold: fewer than Config.MinSamples samples observed; emits the
	// configured initial size.
	Cold State = iota
	// Learning: enough samples to fit but not enough to trust; fits and
	// perturbs the predicted optimum to probe the response surface.
	Learning
	// Converged: the fit is stable; emits the predicted optimum without
	// perturbation.
	Converged
)

func (s State) String() string {
	switch s {
	case Cold:
		return "cold"
	case Learning:
		return "learning"
	case Converged:
		return "converged"
	default:
		return "unknown"
	}
}

// Estimator is a pluggable policy that chooses the next partition size for
// one callsite, and is fed measured per-partition durations in return. This
// minimal interface permits deterministic test doubles; LinearRegression is
// the one production implementation.
type Estimator interface {
	// NextSize returns the partition size to use for the next chunk.
	NextSize() int
	// Observe feeds back the measured size/duration of a completed chunk.
	// Samples must be fed in submission order, to preserve temporal trend
	// detection.
	Observe(n int, d time.Duration)
	// State reports the estimator's current confidence state.
	State() State
}

// Factory constructs a fresh Estimator for one callsite, seeded with the
// initial partition size to emit while Cold.
type Factory func(initial int) Estimator
