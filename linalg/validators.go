// SPDX-License-Identifier: MIT
// Package: linalg
//
// Purpose:
//  - Provide a single, canonical source of truth for common validation checks.
//  - Return sentinel errors wrapped with the validator tag so call sites can match via errors.Is.
//
// Determinism & Performance:
//  - All checks are pure and allocate nothing.
//  - The Hermitian check runs O(n²) on the upper triangle only.

package linalg

import (
	"math/cmplx"
)

// ValidateNotNil ensures the matrix reference is non-nil.
func ValidateNotNil(m *CDense) error {
	if m == nil {
		return linalgErrorf("ValidateNotNil", ErrNilMatrix)
	}

	return nil
}

// ValidateSquare checks that m is non-nil and square.
func ValidateSquare(m *CDense) error {
	if err := ValidateNotNil(m); err != nil {
		return err
	}
	if m.r != m.c {
		return linalgErrorf("ValidateSquare", ErrNonSquare)
	}

	return nil
}

// ValidateVecLen checks that len(x) equals the column count of m.
func ValidateVecLen(m *CDense, x []complex128) error {
	if len(x) != m.c {
		return linalgErrorf("ValidateVecLen", ErrDimensionMismatch)
	}

	return nil
}

// ValidateHermitian checks |A[i,j] - conj(A[j,i])| <= eps for all i<=j and that
// every entry is finite.
//
// Errors: ErrNilMatrix, ErrNonSquare, ErrNaNInf, ErrNotHermitian.
// Complexity: O(n²).
func ValidateHermitian(m *CDense, eps float64) error {
	if err := ValidateSquare(m); err != nil {
		return err
	}
	n := m.r
	var (
		i, j int
		a, b complex128
	)
	for i = 0; i < n; i++ {
		for j = i; j < n; j++ {
			a = m.data[i*n+j]
			b = m.data[j*n+i]
			if cmplx.IsNaN(a) || cmplx.IsInf(a) || cmplx.IsNaN(b) || cmplx.IsInf(b) {
				return linalgErrorf("ValidateHermitian", ErrNaNInf)
			}
			if cmplx.Abs(a-cmplx.Conj(b)) > eps {
				return linalgErrorf("ValidateHermitian", ErrNotHermitian)
			}
		}
	}

	return nil
}

// DefaultHermitianTol is the relative tolerance of ValidateHermitianRel used
// by the loaders and the evaluator.
const DefaultHermitianTol = 1e-10

// ValidateHermitianRel is ValidateHermitian with eps = rel·max(1, max|A_ij|),
// so the check scales with the matrix.
func ValidateHermitianRel(m *CDense, rel float64) error {
	if err := ValidateSquare(m); err != nil {
		return err
	}
	scale := 1.0
	for _, v := range m.data {
		if a := cmplx.Abs(v); a > scale {
			scale = a
		}
	}

	return ValidateHermitian(m, rel*scale)
}
