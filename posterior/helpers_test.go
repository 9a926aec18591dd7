// SPDX-License-Identifier: MIT

package posterior_test

import (
	"math/cmplx"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/katalvlaran/bayeseor/cosmo"
	"github.com/katalvlaran/bayeseor/kspace"
	"github.com/katalvlaran/bayeseor/linalg"
	"github.com/katalvlaran/bayeseor/metrics"
	"github.com/katalvlaran/bayeseor/posterior"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

var (
	testBand = cosmo.Band{NuMinMHz: 158.3, ChannelWidthMHz: 0.238, Nf: 4}
	testBox  = cosmo.BoxSize{RA: 2000, Dec: 2000, Para: 150}
)

// handInputs is the one-bin, four-voxel system with T_Ninv_T = I and
// dbar = 1, for which Sigma = (1+p)·I with p = norm/x.
func handInputs(t *testing.T) posterior.Inputs {
	t.Helper()
	id, err := linalg.Identity(4)
	require.NoError(t, err)

	return posterior.Inputs{
		TNinvT:   id,
		Dbar:     []complex128{1, 1, 1, 1},
		Npar:     4,
		Bins:     kspace.Partition{{0, 1, 2, 3}},
		Geometry: posterior.Geometry{Nuv: 1, Nu: 1, Nv: 1, Neta: 4, Nf: 4},
		Ninv:     make([]float64, 8),
		KVals:    []float64{0.2},
		Box:      testBox,
		Band:     testBand,
	}
}

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

// blockInputs builds a non-instrumental problem with nuv = 2 blocks of
// neta = 4 Fourier modes and one LSSM term each.
func blockInputs(t *testing.T) (posterior.Inputs, []*linalg.CDense) {
	t.Helper()
	const s, nuv = 5, 2
	blocks := []*linalg.CDense{randomHermitianPD(t, s, 1), randomHermitianPD(t, s, 2)}
	full, err := linalg.NewCDense(s*nuv, s*nuv)
	require.NoError(t, err)
	for b, blk := range blocks {
		for i := 0; i < s; i++ {
			for j := 0; j < s; j++ {
				v, err := blk.At(i, j)
				require.NoError(t, err)
				require.NoError(t, full.Set(b*s+i, b*s+j, v))
			}
		}
	}
	rng := rand.New(rand.NewSource(3))
	dbar := make([]complex128, s*nuv)
	for i := range dbar {
		dbar[i] = complex(rng.NormFloat64(), rng.NormFloat64())
	}

	return posterior.Inputs{
		TNinvT: full,
		Dbar:   dbar,
		Npar:   s * nuv,
		// Offsets 1 (monopole, nf/2-1) and 4 (linear LSSM) stay out of the bins.
		Bins:     kspace.Partition{{0, 2, 5, 7}, {3, 8}},
		Geometry: posterior.Geometry{Nuv: nuv, Nu: 2, Nv: 1, Neta: 4, Nf: 4, Nq: 1},
		Ninv:     make([]float64, 20),
		DNinvD:   2.5,
		KVals:    []float64{0.1, 0.3},
		Box:      testBox,
		Band:     testBand,
	}, blocks
}

// recorder is a metrics.Observer that counts events.
type recorder struct {
	scored, rejected, errored atomic.Int64
	factorization, fallback   atomic.Int64
}

func (r *recorder) ObserveEvaluation(o metrics.Outcome, _ time.Duration) {
	switch o {
	case metrics.OutcomeScored:
		r.scored.Add(1)
	case metrics.OutcomeRejected:
		r.rejected.Add(1)
	default:
		r.errored.Add(1)
	}
}

func (r *recorder) ObserveFactorizationFailure() { r.factorization.Add(1) }
func (r *recorder) ObserveDeviceFallback()       { r.fallback.Add(1) }

// flagDevice behaves like the host device for the 2×2 availability check and reports a
// failed pivot for anything larger.
type flagDevice struct{ host linalg.Device }

func (d flagDevice) Name() string { return "posterior-test-flag" }

func (d flagDevice) Potrf(n, nrhs int, a, b []complex128, verbose bool, info []int) error {
	if n <= 2 {
		return d.host.Potrf(n, nrhs, a, b, verbose, info)
	}
	info[0] = n

	return nil
}

func init() {
	linalg.RegisterDevice("posterior-test-flag", func(cfg linalg.DeviceConfig) (linalg.Device, error) {
		return flagDevice{host: linalg.NewHostDevice(cfg)}, nil
	})
}
