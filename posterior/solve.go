// SPDX-License-Identifier: MIT

package posterior

import (
	"errors"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/katalvlaran/bayeseor/linalg"
)

// solution is the outcome of the solve stage.
type solution struct {
	y      []complex128 // Sigma⁻¹·dbar
	logDet float64      // log|Sigma|
	// failedInfo is non-nil when a factorization reported a non-zero flag;
	// logDet is then +Inf.
	failedInfo *linalg.FactorizationError
}

// assembleSigma returns a fresh T_Ninv_T/α'² + diag(PhiI) over the whole
// matrix.
func (e *Evaluator) assembleSigma(c *call, phi []float64) (*linalg.CDense, error) {
	sigma := c.tNinvT.Clone()
	if e.opts.noiseFitting {
		sigma.Scale(complex(1/c.alpha2, 0))
	}
	if err := sigma.AddDiagAt(e.diag, phi); err != nil {
		return nil, err
	}

	return sigma, nil
}

// classify sorts a factorization or solve error into a factorization flag,
// a rejected sample or a setup error.
func (e *Evaluator) classify(c *call, err error) (*linalg.FactorizationError, error) {
	var fe *linalg.FactorizationError
	if errors.As(err, &fe) {
		return fe, nil
	}
	if errors.Is(err, linalg.ErrSingular) ||
		errors.Is(err, linalg.ErrNaNInf) ||
		errors.Is(err, linalg.ErrNotPositiveDefinite) {
		return nil, c.reject(StageSolve, err)
	}

	return nil, err
}

// factorSolve factorizes sigma in place and solves against dbar.
func (e *Evaluator) factorSolve(c *call, sigma *linalg.CDense, dbar []complex128) ([]complex128, float64, *linalg.FactorizationError, error) {
	if sigma.HasNaNInf() {
		return nil, 0, nil, c.reject(StageSolve, linalg.ErrNaNInf)
	}
	f, err := e.fz.Factorize(sigma)
	if err != nil {
		fe, err := e.classify(c, err)
		return nil, math.Inf(1), fe, err
	}
	y, err := f.Solve(dbar)
	if err != nil {
		if errors.Is(err, linalg.ErrDimensionMismatch) {
			return nil, 0, nil, err
		}
		return nil, 0, nil, c.reject(StageSolve, err)
	}

	return y, f.LogDet(), nil, nil
}

func (e *Evaluator) solveWhole(c *call, phi []float64) (solution, error) {
	sigma, err := e.assembleSigma(c, phi)
	if err != nil {
		return solution{}, posteriorErrorf("solveWhole", err)
	}
	y, logDet, fe, err := e.factorSolve(c, sigma, c.dbar)
	if err != nil {
		return solution{}, err
	}

	return solution{y: y, logDet: logDet, failedInfo: fe}, nil
}

// solveBlocks solves each (u, v) block independently. blocks, when non-nil,
// replaces slicing c.tNinvT.
func (e *Evaluator) solveBlocks(c *call, phi []float64, blocks []*linalg.CDense) (solution, error) {
	var (
		s      = e.in.Geometry.BlockSize()
		nuv    = e.in.Geometry.Nuv
		y      = make([]complex128, e.in.Npar)
		logDet = make([]float64, nuv)
		flags  = make([]*linalg.FactorizationError, nuv)
		eg     errgroup.Group
	)
	eg.SetLimit(e.opts.blockWorkers)
	for b := 0; b < nuv; b++ {
		b := b
		eg.Go(func() error {
			var (
				blk *linalg.CDense
				err error
			)
			if blocks != nil {
				blk = blocks[b].Clone()
			} else if blk, err = c.tNinvT.Block(b*s, s); err != nil {
				return posteriorErrorf("solveBlocks", err)
			}
			if e.opts.noiseFitting {
				blk.Scale(complex(1/c.alpha2, 0))
			}
			if err = blk.AddDiag(phi[b*s : (b+1)*s]); err != nil {
				return posteriorErrorf("solveBlocks", err)
			}
			yb, ld, fe, err := e.factorSolve(c, blk, c.dbar[b*s:(b+1)*s])
			if err != nil {
				return err
			}
			logDet[b], flags[b] = ld, fe
			copy(y[b*s:], yb)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return solution{}, err
	}

	sol := solution{y: y, logDet: floats.Sum(logDet)}
	for _, fe := range flags {
		if fe != nil {
			sol.failedInfo = fe
			sol.logDet = math.Inf(1)
			break
		}
	}

	return sol, nil
}

// BuildSigma returns the whole-matrix Sigma for parameter vector x without
// solving. It is an inspection hook; Evaluate never calls it.
func (e *Evaluator) BuildSigma(x []float64) (*linalg.CDense, error) {
	c, err := e.unpack(x)
	if err != nil {
		return nil, err
	}
	sigma, err := e.assembleSigma(c, e.powerVector(c.amps))
	if err != nil {
		return nil, posteriorErrorf("BuildSigma", err)
	}

	return sigma, nil
}

// Covariance returns Sigma⁻¹ for parameter vector x: the posterior covariance
// of the model amplitudes, whose product with dbar is Score.SigmaIDbar. Like
// BuildSigma it is an inspection hook and always inverts the whole matrix.
func (e *Evaluator) Covariance(x []float64) (*linalg.CDense, error) {
	sigma, err := e.BuildSigma(x)
	if err != nil {
		return nil, err
	}
	inv, err := linalg.Inverse(sigma)
	if err != nil {
		return nil, posteriorErrorf("Covariance", err)
	}

	return inv, nil
}
