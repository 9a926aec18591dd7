// SPDX-License-Identifier: MIT

package linalg_test

import (
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/katalvlaran/bayeseor/linalg"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

// randomHermitianPD returns B·Bᴴ + n·I for a seeded random complex B.
func randomHermitianPD(t *testing.T, n int, seed int64) *linalg.CDense {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	b := make([]complex128, n*n)
	for i := range b {
		b[i] = complex(rng.NormFloat64(), rng.NormFloat64())
	}
	out := make([]complex128, n*n)
	var i, j, k int
	for i = 0; i < n; i++ {
		for j = 0; j < n; j++ {
			var s complex128
			for k = 0; k < n; k++ {
				s += b[i*n+k] * cmplx.Conj(b[j*n+k])
			}
			out[i*n+j] = s
		}
		out[i*n+i] += complex(float64(n), 0)
	}
	m, err := linalg.NewCDenseFrom(n, n, out)
	require.NoError(t, err)

	return m
}

func randomVec(n int, seed int64) []complex128 {
	rng := rand.New(rand.NewSource(seed))
	v := make([]complex128, n)
	for i := range v {
		v[i] = complex(rng.NormFloat64(), rng.NormFloat64())
	}

	return v
}

func requireVecNear(t *testing.T, want, got []complex128, eps float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.InDelta(t, 0, cmplx.Abs(want[i]-got[i]), eps, "index %d: want %v got %v", i, want[i], got[i])
	}
}
