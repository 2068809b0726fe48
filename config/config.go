// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package config holds the framework-wide defaults the engine and estimator
// fall back to when a caller doesn't override them explicitly: estimator
// tuning, the backpressure window multiplier, and the default backend's
// worker count.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parfungo/parfun/backend"
	"github.com/parfungo/parfun/engine"
	"github.com/parfungo/parfun/estimator"
	"github.com/parfungo/parfun/split"
)

// Config is the set of framework-wide defaults a caller may override before
// wiring them into engine.Options/estimator.Config.
type Config struct {
	Estimator struct {
		MinSamples   int `yaml:"min_samples"`
		RingCapacity int `yaml:"ring_capacity"`
		// TargetDurationMillis avoids relying on yaml.v3's (non-existent)
		// built-in time.Duration support; EstimatorConfig converts it.
		TargetDurationMillis int     `yaml:"target_duration_ms"`
		ConvergenceThreshold float64 `yaml:"convergence_threshold"`
		ResidualSigmaK       float64 `yaml:"residual_sigma_k"`
	} `yaml:"estimator"`

	Backend struct {
		Name       string `yaml:"name"`
		MaxWorkers int    `yaml:"max_workers"`
	} `yaml:"backend"`

	// WindowMultiplier sets the engine's in-flight backpressure window as a
	// multiple of the backend's worker count (spec's "2 x worker_count").
	WindowMultiplier int `yaml:"window_multiplier"`
}

// Default returns the framework's built-in defaults.
func Default() *Config {
	c := &Config{}
	def := estimator.DefaultConfig()
	c.Estimator.MinSamples = def.MinSamples
	c.Estimator.RingCapacity = def.RingCapacity
	c.Estimator.TargetDurationMillis = int(def.TargetDuration / time.Millisecond)
	c.Estimator.ConvergenceThreshold = def.ConvergenceThreshold
	c.Estimator.ResidualSigmaK = def.ResidualSigmaK

	c.Backend.Name = "local_multiprocessing"
	c.Backend.MaxWorkers = 0 // 0 means "let the backend pick (GOMAXPROCS)"

	c.WindowMultiplier = 2
	return c
}

// EstimatorConfig projects the Estimator section into estimator.Config,
// keeping the perturbation ratios the estimator package defaults to (config
// files don't need to name a detail that rarely changes).
func (c *Config) EstimatorConfig() estimator.Config {
	ec := estimator.DefaultConfig()
	ec.MinSamples = c.Estimator.MinSamples
	ec.RingCapacity = c.Estimator.RingCapacity
	ec.TargetDuration = time.Duration(c.Estimator.TargetDurationMillis) * time.Millisecond
	ec.ConvergenceThreshold = c.Estimator.ConvergenceThreshold
	ec.ResidualSigmaK = c.Estimator.ResidualSigmaK
	return ec
}

// EngineOptions builds the engine.Options for one callsite bound to splitter,
// compute and combiner, constructing a fresh backend from c.Backend and
// wiring c's estimator tuning and window multiplier through. This is the
// config package's entry point into the rest of the framework; callers that
// load a Config from a file use this instead of hand-assembling
// engine.Options field by field.
func (c *Config) EngineOptions(splitter split.Splitter, compute engine.ChunkFunc, combiner engine.CombinerFactory) (engine.Options, error) {
	b, err := backend.DefaultRegistry().New(c.Backend.Name, map[string]any{"max_workers": c.Backend.MaxWorkers})
	if err != nil {
		return engine.Options{}, fmt.Errorf("config: building backend %q: %w", c.Backend.Name, err)
	}
	workers := c.Backend.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return engine.Options{
		Splitter:         splitter,
		Compute:          compute,
		Combiner:         combiner,
		EstimatorFactory: estimator.NewLinearRegression(c.EstimatorConfig()),
		Backend:          b,
		Window:           c.WindowMultiplier * workers,
	}, nil
}

// Load reads a YAML config file, starting from Default() so a file only
// needs to name the fields it overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return c, nil
}
