// SPDX-License-Identifier: MIT
// Package linalg - real embedding of complex Hermitian systems for gonum.
//
// A complex n×n matrix A = X + iY maps to the real 2n×2n matrix
//
//	M = [ X  -Y ]
//	    [ Y   X ]
//
// and a vector b = p + iq maps to [p; q]. Then A·x = b ⇔ M·[Re x; Im x] = [p; q],
// M is symmetric whenever A is Hermitian, positive definite whenever A is, and
// det(M) = |det(A)|², so log|A| = ½·log det(M).

package linalg

import (
	"gonum.org/v1/gonum/mat"
)

// embedData fills a row-major 2n×2n buffer with the real embedding of a.
func embedData(a *CDense) []float64 {
	n := a.r
	m := 2 * n
	out := make([]float64, m*m)
	var (
		i, j int
		v    complex128
	)
	for i = 0; i < n; i++ {
		for j = 0; j < n; j++ {
			v = a.data[i*n+j]
			out[i*m+j] = real(v)
			out[i*m+n+j] = -imag(v)
			out[(n+i)*m+j] = imag(v)
			out[(n+i)*m+n+j] = real(v)
		}
	}

	return out
}

// Embed returns the real embedding of a as a gonum *mat.Dense.
func Embed(a *CDense) (*mat.Dense, error) {
	if err := ValidateSquare(a); err != nil {
		return nil, linalgErrorf("Embed", err)
	}

	return mat.NewDense(2*a.r, 2*a.r, embedData(a)), nil
}

// EmbedSym returns the real embedding of a Hermitian a as a gonum *mat.SymDense.
// Only the upper triangle of the embedding is referenced by gonum.
func EmbedSym(a *CDense) (*mat.SymDense, error) {
	if err := ValidateSquare(a); err != nil {
		return nil, linalgErrorf("EmbedSym", err)
	}

	return mat.NewSymDense(2*a.r, embedData(a)), nil
}

// embedVec stacks real and imaginary parts.
func embedVec(b []complex128) *mat.VecDense {
	n := len(b)
	out := make([]float64, 2*n)
	for i, v := range b {
		out[i] = real(v)
		out[n+i] = imag(v)
	}

	return mat.NewVecDense(2*n, out)
}

// unembedVec folds a stacked [Re; Im] vector back to complex form.
func unembedVec(v *mat.VecDense) []complex128 {
	n := v.Len() / 2
	out := make([]complex128, n)
	for i := 0; i < n; i++ {
		out[i] = complex(v.AtVec(i), v.AtVec(n+i))
	}

	return out
}
