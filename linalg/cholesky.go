// SPDX-License-Identifier: MIT
// Package linalg - Hermitian Cholesky factorization and triangular solves.
//
// Purpose:
//   - Factor a Hermitian positive-definite A as A = L·Lᴴ (L lower, real positive diagonal).
//   - Solve A·x = b from the factor without forming A⁻¹.
//   - Provide log|A| = 2·Σ log|L_ii| directly from the factor.
//
// Notes:
//   - Only the lower triangle of the input is read; the strict upper triangle
//     of the result is zeroed so the factor is a clean L.
//   - Pivot failures report the 1-based column index, matching the LAPACK info convention.

package linalg

import (
	"math"
	"math/cmplx"
)

const (
	opCholesky = "CholeskyInPlace"
	opCholSolv = "CholSolve"
)

// CholeskyInPlace overwrites a with its lower Cholesky factor L.
//
// Implementation:
//   - Stage 1: validate square input.
//   - Stage 2: column-by-column (left-looking) elimination on the flat buffer.
//   - Stage 3: zero the strict upper triangle.
//
// Errors:
//   - ErrNonSquare / ErrNilMatrix on bad shape.
//   - *FactorizationError{Info: j+1} when the j-th pivot is not strictly positive
//     or not finite; a is left partially overwritten.
//
// Complexity:
//   - Time O(n³/3), Space O(1) extra.
func CholeskyInPlace(a *CDense) error {
	if err := ValidateSquare(a); err != nil {
		return linalgErrorf(opCholesky, err)
	}
	n := a.r
	d := a.data
	var (
		i, j, k int
		diag    float64
		sum     complex128
		rowI    []complex128
		rowJ    []complex128
	)
	for j = 0; j < n; j++ {
		rowJ = d[j*n : (j+1)*n]
		diag = real(rowJ[j])
		for k = 0; k < j; k++ {
			diag -= real(rowJ[k])*real(rowJ[k]) + imag(rowJ[k])*imag(rowJ[k])
		}
		if !(diag > 0) || math.IsInf(diag, 0) {
			return linalgErrorf(opCholesky, &FactorizationError{Info: j + 1})
		}
		diag = math.Sqrt(diag)
		rowJ[j] = complex(diag, 0)
		for i = j + 1; i < n; i++ {
			rowI = d[i*n : (i+1)*n]
			sum = rowI[j]
			for k = 0; k < j; k++ {
				sum -= rowI[k] * cmplx.Conj(rowJ[k])
			}
			rowI[j] = sum / complex(diag, 0)
		}
	}
	for i = 0; i < n; i++ {
		for j = i + 1; j < n; j++ {
			d[i*n+j] = 0
		}
	}

	return nil
}

// CholSolve solves (L·Lᴴ)·x = b given the lower factor L.
// b is not modified.
//
// Complexity: O(n²).
func CholSolve(l *CDense, b []complex128) ([]complex128, error) {
	if err := ValidateSquare(l); err != nil {
		return nil, linalgErrorf(opCholSolv, err)
	}
	if err := ValidateVecLen(l, b); err != nil {
		return nil, linalgErrorf(opCholSolv, err)
	}
	n := l.r
	d := l.data
	x := make([]complex128, n)
	copy(x, b)
	var (
		i, k int
		sum  complex128
	)
	// Forward substitution: L·y = b.
	for i = 0; i < n; i++ {
		sum = x[i]
		for k = 0; k < i; k++ {
			sum -= d[i*n+k] * x[k]
		}
		x[i] = sum / d[i*n+i]
	}
	// Backward substitution: Lᴴ·x = y.
	for i = n - 1; i >= 0; i-- {
		sum = x[i]
		for k = i + 1; k < n; k++ {
			sum -= cmplx.Conj(d[k*n+i]) * x[k]
		}
		x[i] = sum / cmplx.Conj(d[i*n+i])
	}

	return x, nil
}

// LogDetCholesky returns log|A| = 2·Σ log|L_ii| for a lower factor L.
func LogDetCholesky(l *CDense) float64 {
	n := l.r
	var s float64
	for i := 0; i < n; i++ {
		s += math.Log(cmplx.Abs(l.data[i*n+i]))
	}

	return 2 * s
}
