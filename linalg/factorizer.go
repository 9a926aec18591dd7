// SPDX-License-Identifier: MIT
// Package linalg - factorization strategies behind a single narrow interface.
//
// A Factorizer turns a Hermitian precision matrix into a Factor that can solve
// A·y = b and report log|A|. Three implementations exist:
//
//   - InverseFactorizer: explicit inverse (gonum, on the real embedding) and a
//     complex LU log-determinant. Numerically fragile for badly conditioned A;
//     kept because it tolerates indefinite matrices the Cholesky paths reject.
//   - CholeskyFactorizer: gonum mat.Cholesky on the real embedding.
//   - DeviceFactorizer: in-place Cholesky on an accelerator Device, followed by
//     triangular solves on the returned factor.

package linalg

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	opInverseFactorize  = "InverseFactorizer.Factorize"
	opCholeskyFactorize = "CholeskyFactorizer.Factorize"
	opDeviceFactorize   = "DeviceFactorizer.Factorize"
	opFactorSolve       = "Factor.Solve"
)

// Factor is a factorized square system.
type Factor interface {
	// Solve returns y with A·y = b. b is not modified.
	Solve(b []complex128) ([]complex128, error)
	// LogDet returns log|det A|.
	LogDet() float64
}

// Factorizer produces a Factor for a square Hermitian matrix.
// Implementations may overwrite a; callers pass a scratch matrix.
type Factorizer interface {
	Factorize(a *CDense) (Factor, error)
	Strategy() Strategy
}

// ---------- Inverse ----------

// InverseFactorizer solves by explicit inversion.
type InverseFactorizer struct{}

// NewInverseFactorizer returns the direct-inversion strategy.
func NewInverseFactorizer() *InverseFactorizer { return &InverseFactorizer{} }

// Strategy implements Factorizer.
func (*InverseFactorizer) Strategy() Strategy { return StrategyInverse }

// Factorize inverts the real embedding of a with gonum and takes log|A| from a
// pivoted complex LU.
//
// Errors:
//   - ErrNonSquare / ErrNilMatrix on bad shape.
//   - ErrNaNInf if a holds a non-finite entry.
//   - ErrSingular if a is exactly singular.
//
// An ill-conditioned but invertible a is accepted; the result then carries
// whatever precision the inverse retains.
func (*InverseFactorizer) Factorize(a *CDense) (Factor, error) {
	if err := ValidateSquare(a); err != nil {
		return nil, linalgErrorf(opInverseFactorize, err)
	}
	if a.HasNaNInf() {
		return nil, linalgErrorf(opInverseFactorize, ErrNaNInf)
	}
	m, err := Embed(a)
	if err != nil {
		return nil, linalgErrorf(opInverseFactorize, err)
	}
	var inv mat.Dense
	if err = inv.Inverse(m); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, linalgErrorf(opInverseFactorize, ErrSingular)
		}
	}
	_, logAbs, err := SlogDet(a)
	if err != nil {
		return nil, linalgErrorf(opInverseFactorize, err)
	}

	return &inverseFactor{inv: &inv, n: a.r, logDet: logAbs}, nil
}

type inverseFactor struct {
	inv    *mat.Dense
	n      int
	logDet float64
}

func (f *inverseFactor) Solve(b []complex128) ([]complex128, error) {
	if len(b) != f.n {
		return nil, linalgErrorf(opFactorSolve, ErrDimensionMismatch)
	}
	var y mat.VecDense
	y.MulVec(f.inv, embedVec(b))

	return unembedVec(&y), nil
}

func (f *inverseFactor) LogDet() float64 { return f.logDet }

// ---------- CPU Cholesky ----------

// CholeskyFactorizer factorizes with gonum's symmetric Cholesky.
type CholeskyFactorizer struct{}

// NewCholeskyFactorizer returns the CPU Cholesky strategy.
func NewCholeskyFactorizer() *CholeskyFactorizer { return &CholeskyFactorizer{} }

// Strategy implements Factorizer.
func (*CholeskyFactorizer) Strategy() Strategy { return StrategyCholesky }

// Factorize runs mat.Cholesky on the embedding. gonum reports failure only as a
// boolean, so the error carries Info = 0.
func (*CholeskyFactorizer) Factorize(a *CDense) (Factor, error) {
	if err := ValidateSquare(a); err != nil {
		return nil, linalgErrorf(opCholeskyFactorize, err)
	}
	if a.HasNaNInf() {
		return nil, linalgErrorf(opCholeskyFactorize, ErrNaNInf)
	}
	sym, err := EmbedSym(a)
	if err != nil {
		return nil, linalgErrorf(opCholeskyFactorize, err)
	}
	var ch mat.Cholesky
	if ok := ch.Factorize(sym); !ok {
		return nil, linalgErrorf(opCholeskyFactorize, &FactorizationError{})
	}

	return &gonumCholFactor{ch: &ch, n: a.r}, nil
}

type gonumCholFactor struct {
	ch *mat.Cholesky
	n  int
}

func (f *gonumCholFactor) Solve(b []complex128) ([]complex128, error) {
	if len(b) != f.n {
		return nil, linalgErrorf(opFactorSolve, ErrDimensionMismatch)
	}
	var y mat.VecDense
	if err := f.ch.SolveVecTo(&y, embedVec(b)); err != nil {
		// A finite Condition only warns about lost precision; y is filled.
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, linalgErrorf(opFactorSolve, err)
		}
	}

	return unembedVec(&y), nil
}

// LogDet halves the embedding's log-determinant: det(M) = |det A|².
func (f *gonumCholFactor) LogDet() float64 { return 0.5 * f.ch.LogDet() }

// ---------- Device ----------

// DeviceFactorizer delegates the factorization to an accelerator Device.
type DeviceFactorizer struct {
	dev     Device
	verbose bool
}

// NewDeviceFactorizer wraps dev. verbose is forwarded to every Potrf call.
func NewDeviceFactorizer(dev Device, verbose bool) *DeviceFactorizer {
	return &DeviceFactorizer{dev: dev, verbose: verbose}
}

// Strategy implements Factorizer.
func (*DeviceFactorizer) Strategy() Strategy { return StrategyDevice }

// Device returns the underlying device.
func (f *DeviceFactorizer) Device() Device { return f.dev }

// Factorize overwrites a with its lower Cholesky factor on the device.
// A non-zero error flag from the device is returned as *FactorizationError.
func (f *DeviceFactorizer) Factorize(a *CDense) (Factor, error) {
	if err := ValidateSquare(a); err != nil {
		return nil, linalgErrorf(opDeviceFactorize, err)
	}
	info := []int{0}
	if err := f.dev.Potrf(a.r, 0, a.data, nil, f.verbose, info); err != nil {
		return nil, linalgErrorf(opDeviceFactorize, err)
	}
	if info[0] != 0 {
		return nil, linalgErrorf(opDeviceFactorize, &FactorizationError{Info: info[0]})
	}

	return &cholFactor{l: a, logDet: LogDetCholesky(a)}, nil
}

// cholFactor holds a native lower factor.
type cholFactor struct {
	l      *CDense
	logDet float64
}

func (f *cholFactor) Solve(b []complex128) ([]complex128, error) { return CholSolve(f.l, b) }

func (f *cholFactor) LogDet() float64 { return f.logDet }
