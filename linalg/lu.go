// SPDX-License-Identifier: MIT
// Package linalg - LU with partial pivoting, inverse and log-determinant for
// complex dense matrices.
//
// Notes:
//   - Row pivoting keeps the factorization usable for the indefinite or badly
//     scaled matrices the direct-inversion strategy has to tolerate.
//   - An exactly zero pivot column reports ErrSingular.

package linalg

import (
	"math"
	"math/cmplx"
)

const (
	opLU      = "LU"
	opInverse = "Inverse"
	opSlogDet = "SlogDet"
)

// LUFactor holds a packed LU factorization P·A = L·U (unit-diagonal L below,
// U on and above the diagonal) together with the row permutation.
type LUFactor struct {
	lu   *CDense
	piv  []int // piv[i] = original row now at position i
	sign float64
}

// LU factorizes a square matrix with partial (row) pivoting.
//
// Implementation:
//   - Stage 1: validate square input, copy it.
//   - Stage 2: for each column choose the row with the largest |a_ik| as pivot.
//   - Stage 3: eliminate below the pivot, storing multipliers in place.
//
// Errors:
//   - ErrNonSquare / ErrNilMatrix on bad shape.
//   - ErrSingular when a pivot column is entirely zero.
//
// Complexity:
//   - Time O(2n³/3), Space O(n²).
func LU(m *CDense) (*LUFactor, error) {
	if err := ValidateSquare(m); err != nil {
		return nil, linalgErrorf(opLU, err)
	}
	n := m.r
	a := m.Clone()
	d := a.data
	piv := make([]int, n)
	for i := range piv {
		piv[i] = i
	}
	sign := 1.0

	var (
		i, j, k, p int
		best, mag  float64
		f          complex128
	)
	for k = 0; k < n; k++ {
		p = k
		best = cmplx.Abs(d[k*n+k])
		for i = k + 1; i < n; i++ {
			if mag = cmplx.Abs(d[i*n+k]); mag > best {
				best, p = mag, i
			}
		}
		if best == 0 {
			return nil, linalgErrorf(opLU, ErrSingular)
		}
		if p != k {
			for j = 0; j < n; j++ {
				d[k*n+j], d[p*n+j] = d[p*n+j], d[k*n+j]
			}
			piv[k], piv[p] = piv[p], piv[k]
			sign = -sign
		}
		for i = k + 1; i < n; i++ {
			f = d[i*n+k] / d[k*n+k]
			d[i*n+k] = f
			if f == 0 {
				continue
			}
			for j = k + 1; j < n; j++ {
				d[i*n+j] -= f * d[k*n+j]
			}
		}
	}

	return &LUFactor{lu: a, piv: piv, sign: sign}, nil
}

// Solve returns x with A·x = b.
func (f *LUFactor) Solve(b []complex128) ([]complex128, error) {
	if err := ValidateVecLen(f.lu, b); err != nil {
		return nil, err
	}
	n := f.lu.r
	d := f.lu.data
	x := make([]complex128, n)
	for i := 0; i < n; i++ {
		x[i] = b[f.piv[i]]
	}
	var (
		i, k int
		sum  complex128
	)
	for i = 0; i < n; i++ {
		sum = x[i]
		for k = 0; k < i; k++ {
			sum -= d[i*n+k] * x[k]
		}
		x[i] = sum
	}
	for i = n - 1; i >= 0; i-- {
		sum = x[i]
		for k = i + 1; k < n; k++ {
			sum -= d[i*n+k] * x[k]
		}
		x[i] = sum / d[i*n+i]
	}

	return x, nil
}

// SlogDet returns the phase of det(A) and log|det(A)|.
func (f *LUFactor) SlogDet() (phase complex128, logAbs float64) {
	n := f.lu.r
	phase = complex(f.sign, 0)
	var u complex128
	for i := 0; i < n; i++ {
		u = f.lu.data[i*n+i]
		logAbs += math.Log(cmplx.Abs(u))
		phase *= u / complex(cmplx.Abs(u), 0)
	}

	return phase, logAbs
}

// Inverse returns A⁻¹ by solving A·x = e_col for every column.
//
// Errors: ErrNonSquare, ErrSingular.
// Complexity: O(n³).
func Inverse(m *CDense) (*CDense, error) {
	f, err := LU(m)
	if err != nil {
		return nil, linalgErrorf(opInverse, err)
	}
	n := m.r
	inv, err := NewCDense(n, n)
	if err != nil {
		return nil, linalgErrorf(opInverse, err)
	}
	e := make([]complex128, n)
	var col, i int
	for col = 0; col < n; col++ {
		for i = range e {
			e[i] = 0
		}
		e[col] = 1
		x, err := f.Solve(e)
		if err != nil {
			return nil, linalgErrorf(opInverse, err)
		}
		for i = 0; i < n; i++ {
			inv.data[i*n+col] = x[i]
		}
	}

	return inv, nil
}

// SlogDet is a convenience wrapper returning (phase, log|det A|).
func SlogDet(m *CDense) (complex128, float64, error) {
	f, err := LU(m)
	if err != nil {
		return 0, 0, linalgErrorf(opSlogDet, err)
	}
	phase, logAbs := f.SlogDet()

	return phase, logAbs, nil
}
