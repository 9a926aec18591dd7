// SPDX-License-Identifier: MIT

package posterior

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/katalvlaran/bayeseor/gridcache"
	"github.com/katalvlaran/bayeseor/linalg"
	"github.com/katalvlaran/bayeseor/metrics"
)

// Stage is a step of one evaluation.
type Stage uint8

const (
	StageUnpack Stage = iota
	StagePower
	StageSolve
	StageScore
)

var stageNames = [...]string{
	StageUnpack: "unpack",
	StagePower:  "power",
	StageSolve:  "solve",
	StageScore:  "score",
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}

	return fmt.Sprintf("Stage(%d)", uint8(s))
}

// Score is the result of one evaluation.
type Score struct {
	// Value is the real part of the marginal log-likelihood (plus Jacobian
	// and noise terms where configured).
	Value float64

	LogSigmaDet    float64
	LogPhiDet      float64
	DbarSigmaIDbar complex128
	SigmaIDbar     []complex128

	// Derived is the sampler side channel; always [0].
	Derived []float64

	// Spectral is the grid point used when fitting spectral parameters.
	Spectral gridcache.Key

	// FactorizationFailed reports a non-zero factorization flag; Value is -Inf.
	FactorizationFailed bool
}

// Evaluator computes the marginal posterior of power-spectrum amplitudes.
// It is safe for concurrent use: per-call state lives in a call value and
// the call counter is atomic.
type Evaluator struct {
	in   Inputs
	opts Options
	fz   linalg.Factorizer

	diag      []int
	norms     []float64
	lwmNorm   float64
	lssm      []int
	unbinned  []int
	blockMode bool
	nDims     int
	printRate int64

	runID  string
	logger *zap.Logger
	start  time.Time
	count  atomic.Int64
}

// call is the state of one evaluation.
type call struct {
	params []float64 // as passed in, for logs
	amps   []float64 // linear amplitudes

	tNinvT  *linalg.CDense
	dbar    []complex128
	dNinvD  float64
	alpha2  float64
	logDetN float64

	spectral gridcache.Key
}

func (c *call) reject(stage Stage, err error) error {
	return &RejectedSampleError{Stage: stage, Params: c.params, Err: err}
}

// New validates in and resolves every configuration-dependent choice.
//
// Errors: ErrInvalidInputs (and wrapped kspace/cosmo errors) for bad shapes,
// a non-Hermitian T_Ninv_T or block, or an inconsistent SH region;
// ErrOddNeta, ErrBlockDiagonalInstrumental, linalg.ErrUnknownStrategy.
// An unavailable accelerator is not an error: the evaluator degrades to the
// CPU inverse and logs one warning.
func New(in Inputs, opts ...Option) (*Evaluator, error) {
	o := gatherOptions(opts...)
	if err := in.validate(o.grid != nil); err != nil {
		return nil, posteriorErrorf("New", err)
	}
	g := in.Geometry
	if o.grid != nil && o.grid.Npar() != in.Npar {
		return nil, posteriorErrorf("New", invalidf("grid npar=%d, npar=%d", o.grid.Npar(), in.Npar))
	}
	if o.noiseFitting && in.Ndat() == 0 {
		return nil, posteriorErrorf("New", invalidf("noise fitting needs Ninv"))
	}

	e := &Evaluator{in: in, opts: o, start: time.Now(), runID: uuid.NewString()}
	e.logger = o.logger.With(zap.String("run_id", e.runID))

	var err error
	if e.lssm, err = lssmOffsets(g, in.Band.Nf, o.instrumental); err != nil {
		return nil, posteriorErrorf("New", err)
	}
	if o.useSHG {
		if err = in.validateSH(); err != nil {
			return nil, posteriorErrorf("New", err)
		}
	}
	e.unbinned = e.unbinnedVoxels()
	if len(e.unbinned) > 0 && o.invLWPower == 0 {
		e.logger.Warn("voxels outside every k-bin have zero prior precision",
			zap.Int("voxels", len(e.unbinned)))
	}
	e.blockMode = o.blockDiag || len(in.Blocks) > 0
	if e.blockMode {
		if err = e.checkBlockMode(); err != nil {
			return nil, posteriorErrorf("New", err)
		}
	}
	if n := e.nAmps(); o.uniformBins > n {
		return nil, posteriorErrorf("New", invalidf("%d uniform bins of %d amplitudes", o.uniformBins, n))
	}

	e.diag = in.DiagIndices
	if e.diag == nil {
		e.diag = make([]int, in.Npar)
		for i := range e.diag {
			e.diag[i] = i
		}
	}
	if e.norms, e.lwmNorm, err = normalizations(&e.in, o.cosmology, o.dimensionless); err != nil {
		return nil, posteriorErrorf("New", err)
	}

	lopts := append([]linalg.Option{linalg.WithLogger(e.logger)}, o.linalgOpts...)
	if e.fz, err = linalg.Resolve(o.strategy, lopts...); err != nil {
		return nil, posteriorErrorf("New", err)
	}
	if o.strategy == linalg.StrategyDevice && e.fz.Strategy() != linalg.StrategyDevice {
		o.observer.ObserveDeviceFallback()
	}

	e.nDims = e.nAmps()
	if o.noiseFitting {
		e.nDims++
	}
	if o.grid != nil {
		e.nDims += 2
	}
	e.printRate = int64(o.printRate)
	if e.printRate == 0 {
		e.printRate = fastPrintRate
		if g.Nu > printRateNu {
			e.printRate = slowPrintRate
		}
	}

	e.logger.Info("posterior evaluator ready",
		zap.Int("npar", in.Npar),
		zap.Int("bins", in.Bins.Len()),
		zap.Int("dims", e.nDims),
		zap.Stringer("strategy", e.fz.Strategy()),
		zap.Bool("block_diagonal", e.blockMode),
		zap.Bool("spectral_grid", o.grid != nil),
		zap.Bool("noise_fitting", o.noiseFitting))

	return e, nil
}

func (e *Evaluator) checkBlockMode() error {
	if e.opts.instrumental {
		return ErrBlockDiagonalInstrumental
	}
	if p := e.in.Geometry.PrimaryLen(); p != e.in.Npar {
		return invalidf("block-diagonal solve needs npar=nuv·(neta+nq)=%d, got %d", p, e.in.Npar)
	}
	if e.in.TNinvT == nil && len(e.in.Blocks) == 0 && e.opts.grid == nil {
		return invalidf("block-diagonal solve without T_Ninv_T or blocks")
	}

	return nil
}

// Dims returns the expected length of the parameter vector.
func (e *Evaluator) Dims() int { return e.nDims }

// Count returns the number of evaluations that reached the power stage.
func (e *Evaluator) Count() int64 { return e.count.Load() }

// RunID identifies this evaluator in logs.
func (e *Evaluator) RunID() string { return e.runID }

// Strategy returns the resolved factorization strategy.
func (e *Evaluator) Strategy() linalg.Strategy { return e.fz.Strategy() }

// unpack strips the spectral pair and α', swaps in grid matrices and leaves
// linear amplitudes.
func (e *Evaluator) unpack(x []float64) (*call, error) {
	if len(x) != e.nDims {
		return nil, posteriorErrorf("Evaluate", fmt.Errorf("got %d parameters, want %d: %w", len(x), e.nDims, ErrDimensionMismatch))
	}
	c := &call{
		params: x,
		tNinvT: e.in.TNinvT,
		dbar:   e.in.Dbar,
		dNinvD: e.in.DNinvD,
		alpha2: 1,
	}
	rest := x
	if e.opts.grid != nil {
		entry, key, err := e.opts.grid.Spectral(rest[0], rest[1])
		if err != nil {
			return nil, posteriorErrorf("Evaluate", err)
		}
		c.tNinvT, c.dbar, c.spectral = entry.TNinvT, entry.Dbar, key
		rest = rest[2:]
	}
	if e.opts.noiseFitting {
		alpha := rest[0]
		c.alpha2 = alpha * alpha
		c.logDetN = float64(e.in.Ndat()) * math.Log(c.alpha2)
		c.dNinvD /= c.alpha2
		scaled := make([]complex128, len(c.dbar))
		for i, v := range c.dbar {
			scaled[i] = v / complex(c.alpha2, 0)
		}
		c.dbar = scaled
		rest = rest[1:]
	}
	c.amps = make([]float64, len(rest))
	for i, v := range rest {
		if e.opts.logPriors {
			v = math.Pow(10, v)
		}
		c.amps[i] = v
	}

	return c, nil
}

// Evaluate scores one parameter vector.
//
// The returned error is either a *RejectedSampleError (zero-probability
// sample: NaN/Inf prior precision, singular Sigma, NaN score) or a setup
// error (wrong dimension, grid miss, bad call options). A factorization that
// reports a non-zero flag is not an error: the Score has
// FactorizationFailed set, LogSigmaDet = +Inf and Value = -Inf.
func (e *Evaluator) Evaluate(x []float64, opts ...CallOption) (Score, error) {
	begin := time.Now()
	var co callOptions
	for _, fn := range opts {
		fn(&co)
	}

	score, err := e.evaluate(x, co)
	outcome := metrics.OutcomeScored
	switch {
	case errors.Is(err, ErrRejectedSample):
		outcome = metrics.OutcomeRejected
		e.logger.Warn("rejected sample, zero posterior probability",
			zap.Float64s("params", x),
			zap.Error(err))
	case err != nil:
		outcome = metrics.OutcomeError
	case score.FactorizationFailed:
		outcome = metrics.OutcomeRejected
	}
	e.opts.observer.ObserveEvaluation(outcome, time.Since(begin))

	return score, err
}

func (e *Evaluator) evaluate(x []float64, co callOptions) (Score, error) {
	c, err := e.unpack(x)
	if err != nil {
		return Score{}, err
	}
	blockMode := e.blockMode
	blocks := e.in.Blocks
	if len(co.blocks) > 0 {
		if err = e.checkCallBlocks(co.blocks); err != nil {
			return Score{}, posteriorErrorf("Evaluate", err)
		}
		blockMode, blocks = true, co.blocks
	}
	if e.opts.grid != nil {
		blocks = nil
	}

	n := e.count.Add(1)
	begin := time.Now()

	phi := e.powerVector(c.amps)
	for _, v := range phi {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Score{}, c.reject(StagePower, ErrNonFinitePower)
		}
	}

	var sol solution
	if blockMode {
		sol, err = e.solveBlocks(c, phi, blocks)
	} else {
		sol, err = e.solveWhole(c, phi)
	}
	if err != nil {
		return Score{}, err
	}

	score, err := e.score(c, phi, sol)
	if err != nil {
		return Score{}, err
	}
	if n%e.printRate == 0 {
		e.logger.Info("posterior progress",
			zap.Int64("count", n),
			zap.Duration("since_start", time.Since(e.start)),
			zap.Duration("call", time.Since(begin)))
	}

	return score, nil
}

func (e *Evaluator) checkCallBlocks(blocks []*linalg.CDense) error {
	if e.opts.grid != nil {
		return invalidf("per-call blocks with a spectral grid")
	}
	if err := e.checkBlockMode(); err != nil {
		return err
	}
	if len(blocks) != e.in.Geometry.Nuv {
		return invalidf("%d blocks, nuv=%d", len(blocks), e.in.Geometry.Nuv)
	}

	return validateBlocks(blocks, e.in.Geometry.BlockSize())
}

// score combines the solve into the marginal log-likelihood:
//
//	MargLogL = -½·log|Sigma| - ½·log|Phi| + ½·dbarᴴ·Sigma⁻¹·dbar
//	           [+ Σ log x_uniform] [- ½·d_Ninv_d - ½·log|N|]
//
// with log|Phi| = -Σ log PhiI.
func (e *Evaluator) score(c *call, phi []float64, sol solution) (Score, error) {
	var logPhiDet float64
	for _, v := range phi {
		logPhiDet -= math.Log(v)
	}
	if sol.failedInfo != nil {
		e.opts.observer.ObserveFactorizationFailure()
		e.logger.Warn("factorization failed, zero-weighting sample",
			zap.Float64s("params", c.params),
			zap.Int("info", sol.failedInfo.Info))
		return Score{
			Value:               math.Inf(-1),
			LogSigmaDet:         sol.logDet,
			LogPhiDet:           logPhiDet,
			Derived:             []float64{0},
			Spectral:            c.spectral,
			FactorizationFailed: true,
		}, nil
	}

	dsd, err := linalg.Dot(c.dbar, sol.y)
	if err != nil {
		return Score{}, posteriorErrorf("score", err)
	}
	marg := -0.5*sol.logDet - 0.5*logPhiDet + 0.5*real(dsd)

	uniform := c.amps
	if n := e.opts.uniformBins; n >= 0 {
		uniform = c.amps[:n]
	}
	for _, v := range uniform {
		marg += math.Log(v)
	}
	if e.opts.noiseFitting {
		marg -= 0.5*c.dNinvD + 0.5*c.logDetN
	}
	if math.IsNaN(marg) {
		return Score{}, c.reject(StageScore, ErrNonFiniteScore)
	}

	return Score{
		Value:          marg,
		LogSigmaDet:    sol.logDet,
		LogPhiDet:      logPhiDet,
		DbarSigmaIDbar: dsd,
		SigmaIDbar:     sol.y,
		Derived:        []float64{0},
		Spectral:       c.spectral,
	}, nil
}

// PosteriorProbability is the sampler-facing form of Evaluate: a rejected
// sample becomes (-Inf, [-1]) with a nil error. Setup errors are returned.
func (e *Evaluator) PosteriorProbability(x []float64, opts ...CallOption) (float64, []float64, error) {
	s, err := e.Evaluate(x, opts...)
	if err != nil {
		if errors.Is(err, ErrRejectedSample) {
			return math.Inf(-1), []float64{-1}, nil
		}
		return math.NaN(), nil, err
	}

	return s.Value, s.Derived, nil
}
