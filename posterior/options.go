// SPDX-License-Identifier: MIT
// Package posterior - functional options for the Evaluator.
//
// Every setting is resolved once in New; Evaluate never re-branches on
// configuration that cannot change between calls.

package posterior

import (
	"go.uber.org/zap"

	"github.com/katalvlaran/bayeseor/cosmo"
	"github.com/katalvlaran/bayeseor/gridcache"
	"github.com/katalvlaran/bayeseor/linalg"
	"github.com/katalvlaran/bayeseor/metrics"
)

const (
	// DefaultStrategy is the CPU inverse, as in the reference pipeline.
	DefaultStrategy = linalg.StrategyInverse

	// DefaultBlockWorkers solves diagonal blocks sequentially.
	DefaultBlockWorkers = 1

	// DefaultUniformBins disables the uniform-amplitude Jacobian.
	DefaultUniformBins = 0

	// AllBinsUniform applies the Jacobian to every amplitude.
	AllBinsUniform = -1

	// fastPrintRate and slowPrintRate throttle progress logs; large grids
	// (Nu > printRateNu) are slow per call and log more often.
	fastPrintRate = 1000
	slowPrintRate = 100
	printRateNu   = 10
)

const (
	panicBlockWorkers = "posterior: WithBlockWorkers(n<1)"
	panicUniformBins  = "posterior: WithUniformBins(n<-1)"
	panicPrintRate    = "posterior: WithPrintRate(n<1)"
)

// Option configures an Evaluator.
type Option func(*Options)

// Options holds the resolved evaluator configuration.
type Options struct {
	logPriors     bool
	dimensionless bool

	invLWPower  float64
	invLWTerms  [3]float64
	invSHGPower *float64

	useSHG           bool
	lwmGaussianPrior bool
	instrumental     bool
	noiseFitting     bool
	uniformBins      int

	grid *gridcache.Grid

	strategy     linalg.Strategy
	linalgOpts   []linalg.Option
	blockDiag    bool
	blockWorkers int

	printRate int
	cosmology cosmo.Cosmology
	logger    *zap.Logger
	observer  metrics.Observer
}

func defaultOptions() Options {
	return Options{
		strategy:     DefaultStrategy,
		blockWorkers: DefaultBlockWorkers,
		uniformBins:  DefaultUniformBins,
		cosmology:    cosmo.Planck18(),
		logger:       zap.NewNop(),
		observer:     metrics.Noop{},
	}
}

// WithLogPriors treats amplitudes as log10 values.
func WithLogPriors(v bool) Option { return func(o *Options) { o.logPriors = v } }

// WithDimensionlessPS normalizes bins as Δ²(k) rather than P(k).
func WithDimensionlessPS(v bool) Option { return func(o *Options) { o.dimensionless = v } }

// WithInverseLWPower sets the flat precision of the LSSM terms and of the
// primary-grid voxels that no k-bin covers (masked Fourier modes). Unless
// WithInverseSHGPower is given it also applies to every SH voxel.
func WithInverseLWPower(p float64) Option { return func(o *Options) { o.invLWPower = p } }

// WithInverseSHGPower sets the flat precision of the sub-harmonic voxels.
func WithInverseSHGPower(p float64) Option { return func(o *Options) { o.invSHGPower = &p } }

// WithInverseLWPowerTerms sets per-term LSSM precisions, used only while the
// flat inverse LW power is exactly zero.
func WithInverseLWPowerTerms(zeroth, first, second float64) Option {
	return func(o *Options) { o.invLWTerms = [3]float64{zeroth, first, second} }
}

// WithSHG enables the sub-harmonic grid region after the primary grid.
func WithSHG(v bool) Option { return func(o *Options) { o.useSHG = v } }

// WithLWMGaussianPrior makes the first three amplitudes control the LSSM
// prior precisions.
func WithLWMGaussianPrior(v bool) Option { return func(o *Options) { o.lwmGaussianPrior = v } }

// WithInstrumental models instrumental effects: the monopole LSSM offset moves
// to neta/2 and block-diagonal solves are forbidden.
func WithInstrumental(v bool) Option { return func(o *Options) { o.instrumental = v } }

// WithNoiseFitting fits a leading intrinsic-noise amplitude α'.
func WithNoiseFitting(v bool) Option { return func(o *Options) { o.noiseFitting = v } }

// WithUniformBins applies the uniform-amplitude Jacobian Σlog(x) to the first
// n amplitudes; AllBinsUniform covers all of them.
func WithUniformBins(n int) Option {
	if n < AllBinsUniform {
		panic(panicUniformBins)
	}

	return func(o *Options) { o.uniformBins = n }
}

// WithSpectralGrid fits two leading foreground spectral parameters, swapping
// T_Ninv_T and dbar for the grid's entry at each call.
func WithSpectralGrid(g *gridcache.Grid) Option { return func(o *Options) { o.grid = g } }

// WithStrategy selects the factorization strategy.
func WithStrategy(s linalg.Strategy) Option { return func(o *Options) { o.strategy = s } }

// WithLinalgOptions forwards device options (name, workers, verbosity) to
// linalg.Resolve.
func WithLinalgOptions(opts ...linalg.Option) Option {
	return func(o *Options) { o.linalgOpts = append(o.linalgOpts, opts...) }
}

// WithBlockDiagonal solves per (u, v) block, slicing T_Ninv_T when no explicit
// blocks were supplied.
func WithBlockDiagonal(v bool) Option { return func(o *Options) { o.blockDiag = v } }

// WithBlockWorkers bounds concurrent block solves.
func WithBlockWorkers(n int) Option {
	if n < 1 {
		panic(panicBlockWorkers)
	}

	return func(o *Options) { o.blockWorkers = n }
}

// WithPrintRate logs progress every n calls instead of the size-based default
// (every 100 calls when Nu > 10, else every 1000).
func WithPrintRate(n int) Option {
	if n < 1 {
		panic(panicPrintRate)
	}

	return func(o *Options) { o.printRate = n }
}

// WithCosmology replaces Planck18.
func WithCosmology(c cosmo.Cosmology) Option { return func(o *Options) { o.cosmology = c } }

// WithLogger sets the logger; nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver sets the metrics observer; nil keeps metrics.Noop.
func WithObserver(m metrics.Observer) Option {
	return func(o *Options) {
		if m != nil {
			o.observer = m
		}
	}
}

func gatherOptions(opts ...Option) Options {
	o := defaultOptions()
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}

	return o
}

func (o *Options) shgPower() float64 {
	if o.invSHGPower != nil {
		return *o.invSHGPower
	}

	return o.invLWPower
}

// CallOption configures one Evaluate call.
type CallOption func(*callOptions)

type callOptions struct {
	blocks []*linalg.CDense
}

// WithBlocks solves this call block-diagonally using blocks as the
// T_Ninv_T diagonal. An empty slice leaves the configured path unchanged.
// With a spectral grid T_Ninv_T comes from the grid, so Evaluate rejects
// per-call blocks with ErrInvalidInputs.
func WithBlocks(blocks []*linalg.CDense) CallOption {
	return func(c *callOptions) { c.blocks = blocks }
}
