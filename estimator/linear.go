// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package estimator

import (
	"math"
	"sync"
	"time"

	"github.com/parfungo/parfun/internal/clog"
)

// sample is one (partition_size, partition_duration) trace sample.
type sample struct {
	n int
	d time.Duration
}

// LinearRegression models duration(n) ≈ alpha + beta*n (fixed scheduling
// overhead plus a marginal per-item cost) and targets the partition size
// whose predicted duration equals Config.TargetDuration. It keeps a
// bounded ring of recent samples and classifies itself as Cold, Learning,
// or Converged, per spec §4.E.
//
// All methods are safe for concurrent use by multiple goroutines, though in
// practice a callsite's estimator is only ever driven by its single
// coordinating goroutine (spec §5).
type LinearRegression struct {
	cfg Config
	log *clog.CLogger

	mu      sync.Mutex
	samples []sample // ring buffer, oldest first
	state   State
	lastN   int // last known-good emitted size, used as fallback on degeneracy
	perturb int // round-robin index into cfg.PerturbationRatios
	flatFit int // consecutive NextSize calls whose fit was singular

	alpha, beta, betaStdErr float64
	residualStdDev          float64
}

// NewLinearRegression returns an Estimator seeded with the given initial
// partition size and configured per cfg.
func NewLinearRegression(cfg Config) Factory {
	return func(initial int) Estimator {
		if initial < 1 {
			initial = 1
		}
		return &LinearRegression{
			cfg:   cfg,
			log:   clog.New("estimator "),
			state: Cold,
			lastN: initial,
		}
	}
}

// NextSize implements Estimator.
func (e *LinearRegression) NextSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.samples) < e.cfg.MinSamples {
		e.state = Cold
		return e.lastN
	}

	ok := e.fit()
	if !ok {
		// The first singular fit falls back to the last known-good size;
		// consecutive ones probe around it with the perturbation ratios so
		// that later samples give the fit a spread of partition sizes.
		e.flatFit++
		if e.flatFit == 1 {
			e.log.Errorf("degenerate fit (insufficient variance in partition sizes), falling back to last known-good size %d", e.lastN)
			return e.lastN
		}
		ratio := e.cfg.PerturbationRatios[(e.flatFit-2)%len(e.cfg.PerturbationRatios)]
		probe := int(math.Ceil(float64(e.lastN) * ratio))
		if probe < 1 {
			probe = 1
		}
		return probe
	}
	e.flatFit = 0

	nStar := e.targetSize()

	relStdErr := math.Inf(1)
	if e.beta != 0 {
		relStdErr = math.Abs(e.betaStdErr / e.beta)
	}

	if relStdErr < e.cfg.ConvergenceThreshold {
		e.state = Converged
		e.lastN = nStar
		return nStar
	}

	e.state = Learning
	ratio := e.cfg.PerturbationRatios[e.perturb%len(e.cfg.PerturbationRatios)]
	e.perturb++
	perturbed := int(math.Ceil(float64(nStar) * ratio))
	if perturbed < 1 {
		perturbed = 1
	}
	e.lastN = nStar
	return perturbed
}

// targetSize computes n* = max(1, ceil((D_min - alpha) / beta)), falling back
// to the last known-good size when beta is non-positive (decreasing n would
// not reduce duration, so the model gives no useful signal).
func (e *LinearRegression) targetSize() int {
	if e.beta <= 0 {
		return e.lastN
	}
	target := math.Ceil((e.cfg.TargetDuration.Seconds() - e.alpha) / e.beta)
	if target < 1 {
		target = 1
	}
	return int(target)
}

// Observe implements Estimator.
func (e *LinearRegression) Observe(n int, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Converged {
		predicted := e.alpha + e.beta*float64(n)
		residual := d.Seconds() - predicted
		if e.residualStdDev > 0 && math.Abs(residual) > e.cfg.ResidualSigmaK*e.residualStdDev {
			e.log.Printf("residual %.6fs exceeds %.1f sigma (%.6fs) for n=%d, reverting to learning", residual, e.cfg.ResidualSigmaK, e.residualStdDev, n)
			e.state = Learning
		}
	}

	e.samples = append(e.samples, sample{n: n, d: d})
	if len(e.samples) > e.cfg.RingCapacity {
		e.samples = e.samples[len(e.samples)-e.cfg.RingCapacity:]
	}
}

// State implements Estimator.
func (e *LinearRegression) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// fit performs ordinary least squares of duration (seconds) on partition
// size over the current sample ring, storing alpha (intercept), beta
// (slope), beta's standard error, and the residual standard deviation. It
// returns false if the fit is singular (zero variance in partition sizes).
func (e *LinearRegression) fit() bool {
	n := len(e.samples)

	var sumX, sumY float64
	for _, s := range e.samples {
		sumX += float64(s.n)
		sumY += s.d.Seconds()
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxx, sxy float64
	for _, s := range e.samples {
		dx := float64(s.n) - meanX
		dy := s.d.Seconds() - meanY
		sxx += dx * dx
		sxy += dx * dy
	}

	if sxx == 0 {
		return false
	}

	beta := sxy / sxx
	alpha := meanY - beta*meanX

	var rss float64
	for _, s := range e.samples {
		predicted := alpha + beta*float64(s.n)
		residual := s.d.Seconds() - predicted
		rss += residual * residual
	}

	var residualVariance, betaStdErr float64
	if n > 2 {
		residualVariance = rss / float64(n-2)
		betaStdErr = math.Sqrt(residualVariance / sxx)
	}

	e.alpha = alpha
	e.beta = beta
	e.betaStdErr = betaStdErr
	e.residualStdDev = math.Sqrt(residualVariance)
	return true
}
