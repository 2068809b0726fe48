// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package estimator

import "time"

// Config parameterizes LinearRegression.
type Config struct {
	// MinSamples is the number of trace samples required before the
	// estimator leaves the Cold state.
	MinSamples int
	// RingCapacity bounds how many of the most recent trace samples the
	// estimator keeps per callsite.
	RingCapacity int
	// TargetDuration (D_min) is the minimum per-partition duration the
	// estimator aims for, large enough to dominate fixed scheduling
	// overhead.
	TargetDuration time.Duration
	// ConvergenceThreshold is the relative standard error of beta-hat below
	// which the fit is considered stable (Converged).
	ConvergenceThreshold float64
	// ResidualSigmaK is the number of standard deviations a new sample's
	// residual may exceed before a Converged estimator re-enters Learning.
	ResidualSigmaK float64
	// PerturbationRatios are applied round-robin, in order, to the
	// predicted optimum while Learning, to probe the response surface
	// around it.
	PerturbationRatios []float64
}

// DefaultConfig returns the configuration described in spec §4.E: a 10ms
// target partition duration, 4 samples before leaving Cold, a relative
// standard error threshold of 0.1, a 3-sigma residual guard, and a
// round-robin ±15% perturbation.
func DefaultConfig() Config {
	return Config{
		MinSamples:           4,
		RingCapacity:         64,
		TargetDuration:       10 * time.Millisecond,
		ConvergenceThreshold: 0.1,
		ResidualSigmaK:       3,
		PerturbationRatios:   []float64{1.15, 0.85, 1.0},
	}
}
