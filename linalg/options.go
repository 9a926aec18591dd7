// SPDX-License-Identifier: MIT

// Package linalg: functional configuration for strategy resolution and the
// accelerator device. This file defines:
//   - documented defaults (constants),
//   - Option / Options (functional options with internal state),
//   - WithX constructors with strong validation (panic on nonsensical values),
//   - gatherOptions helper (internal).
package linalg

import (
	"runtime"

	"go.uber.org/zap"
)

// ---------- Defaults (single source of truth) ----------

const (
	// DefaultDevice is the device name probed for StrategyDevice.
	DefaultDevice = "host"

	// DefaultBlockSize is the panel width of the host device's blocked Cholesky.
	DefaultBlockSize = 64

	// DefaultVerbose disables per-call device diagnostics.
	DefaultVerbose = false
)

// DefaultWorkers is the goroutine limit of the host device.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// ---------- Internal panic messages ----------

const (
	panicWorkersInvalid   = "linalg: WithWorkers: workers must be >= 1"
	panicBlockSizeInvalid = "linalg: WithBlockSize: block size must be >= 1"
	panicDeviceEmpty      = "linalg: WithDevice: name must be non-empty"
)

// Option mutates internal options.
type Option func(*Options)

// Options stores the effective configuration after applying Option setters.
type Options struct {
	device    string
	workers   int
	blockSize int
	verbose   bool
	logger    *zap.Logger
}

// WithDevice selects the registered device probed for StrategyDevice.
func WithDevice(name string) Option {
	if name == "" {
		panic(panicDeviceEmpty)
	}

	return func(o *Options) { o.device = name }
}

// WithWorkers bounds the goroutines used by the host device.
func WithWorkers(n int) Option {
	if n < 1 {
		panic(panicWorkersInvalid)
	}

	return func(o *Options) { o.workers = n }
}

// WithBlockSize sets the panel width of the host device.
func WithBlockSize(n int) Option {
	if n < 1 {
		panic(panicBlockSizeInvalid)
	}

	return func(o *Options) { o.blockSize = n }
}

// WithVerbose enables device-level debug logging (the boundary's verbosity flag).
func WithVerbose(v bool) Option {
	return func(o *Options) { o.verbose = v }
}

// WithLogger sets the logger; nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}

func defaultOptions() Options {
	return Options{
		device:    DefaultDevice,
		workers:   DefaultWorkers,
		blockSize: DefaultBlockSize,
		verbose:   DefaultVerbose,
		logger:    zap.NewNop(),
	}
}

func gatherOptions(opts ...Option) Options {
	o := defaultOptions()
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	if o.workers < 1 {
		o.workers = 1
	}

	return o
}
