// SPDX-License-Identifier: MIT

package posterior_test

import (
	"errors"
	"math"
	"math/cmplx"
	"sync"
	"testing"

	"github.com/katalvlaran/bayeseor/cosmo"
	"github.com/katalvlaran/bayeseor/gridcache"
	"github.com/katalvlaran/bayeseor/linalg"
	"github.com/katalvlaran/bayeseor/posterior"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// handScore is -2·log(1+p) + 2·log(p) + 2/(1+p).
func handScore(p float64) float64 {
	return -2*math.Log(1+p) + 2*math.Log(p) + 2/(1+p)
}

func TestEvaluate_HandExample(t *testing.T) {
	for _, s := range []linalg.Strategy{linalg.StrategyInverse, linalg.StrategyCholesky, linalg.StrategyDevice} {
		t.Run(s.String(), func(t *testing.T) {
			e, err := posterior.New(handInputs(t), posterior.WithStrategy(s))
			require.NoError(t, err)
			assert.Equal(t, s, e.Strategy())
			norm := e.Normalization(0)

			for _, p := range []float64{1, 0.5, 3} {
				score, err := e.Evaluate([]float64{norm / p})
				require.NoError(t, err)
				assert.InDelta(t, handScore(p), score.Value, tol, "p=%g", p)
				assert.InDelta(t, 4*math.Log(1+p), score.LogSigmaDet, tol)
				assert.InDelta(t, -4*math.Log(p), score.LogPhiDet, tol)
				assert.InDelta(t, 4/(1+p), real(score.DbarSigmaIDbar), tol)
				assert.Equal(t, []float64{0}, score.Derived)
			}
		})
	}
}

func TestEvaluate_LogPriors(t *testing.T) {
	e, err := posterior.New(handInputs(t), posterior.WithLogPriors(true))
	require.NoError(t, err)

	score, err := e.Evaluate([]float64{math.Log10(e.Normalization(0) / 2)})
	require.NoError(t, err)
	assert.InDelta(t, handScore(2), score.Value, 1e-8)
}

func TestEvaluate_UniformJacobian(t *testing.T) {
	in := handInputs(t)
	base, err := posterior.New(in)
	require.NoError(t, err)
	all, err := posterior.New(in, posterior.WithUniformBins(posterior.AllBinsUniform))
	require.NoError(t, err)

	x := []float64{base.Normalization(0)}
	s0, err := base.Evaluate(x)
	require.NoError(t, err)
	s1, err := all.Evaluate(x)
	require.NoError(t, err)
	assert.InDelta(t, s0.Value+math.Log(x[0]), s1.Value, tol)
}

func TestPowerVector(t *testing.T) {
	in, _ := blockInputs(t)
	e, err := posterior.New(in, posterior.WithInverseLWPower(0.5))
	require.NoError(t, err)

	amps := []float64{2, 8}
	phi, err := e.PowerVector(amps)
	require.NoError(t, err)
	for _, i := range []int{1, 4, 6, 9} {
		assert.Equal(t, 0.5, phi[i], "lssm voxel %d", i)
	}
	for _, i := range in.Bins[0] {
		assert.InDelta(t, e.Normalization(0)/2, phi[i], tol)
	}
	for _, v := range phi {
		assert.GreaterOrEqual(t, v, 0.0)
	}

	t.Run("scaling amplitudes by c scales bin precision by 1/c", func(t *testing.T) {
		scaled, err := e.PowerVector([]float64{8, 32})
		require.NoError(t, err)
		for b, bin := range in.Bins {
			for _, i := range bin {
				assert.InDelta(t, phi[i]/4, scaled[i], tol, "bin %d voxel %d", b, i)
			}
		}
		assert.Equal(t, phi[1], scaled[1])
	})

	t.Run("zero amplitude propagates Inf", func(t *testing.T) {
		bad, err := e.PowerVector([]float64{0, 1})
		require.NoError(t, err)
		assert.True(t, math.IsInf(bad[0], 1))
	})

	_, err = e.PowerVector([]float64{1})
	require.ErrorIs(t, err, posterior.ErrDimensionMismatch)
}

func TestNormalization(t *testing.T) {
	in, _ := blockInputs(t)
	x, err := cosmo.Planck18().InstToCosmoVol(testBand.MeanRedshift())
	require.NoError(t, err)
	scale := x * x / testBox.Volume()

	dimless, err := posterior.New(in, posterior.WithDimensionlessPS(true))
	require.NoError(t, err)
	dimful, err := posterior.New(in)
	require.NoError(t, err)
	for i, k := range in.KVals {
		assert.InEpsilon(t, k*k*k/(2*math.Pi*math.Pi)*scale, dimless.Normalization(i), 1e-12)
		assert.InEpsilon(t, scale, dimful.Normalization(i), 1e-12)
	}
}

func TestPowerVector_LSSMTerms(t *testing.T) {
	in, _ := blockInputs(t)

	t.Run("per-term fallback when flat power is zero", func(t *testing.T) {
		e, err := posterior.New(in, posterior.WithInverseLWPowerTerms(3, 5, 7))
		require.NoError(t, err)
		phi, err := e.PowerVector([]float64{1, 1})
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 5, 3, 5}, []float64{phi[1], phi[4], phi[6], phi[9]})
	})

	t.Run("gaussian prior", func(t *testing.T) {
		e, err := posterior.New(in, posterior.WithLWMGaussianPrior(true), posterior.WithDimensionlessPS(true))
		require.NoError(t, err)
		assert.Equal(t, 5, e.Dims())
		phi, err := e.PowerVector([]float64{2, 4, 8, 1, 1})
		require.NoError(t, err)
		assert.InDelta(t, e.Normalization(0)/2, phi[1], tol)
		assert.InDelta(t, e.Normalization(0)/4, phi[4], tol)
		assert.InDelta(t, e.Normalization(1), phi[3], tol)
	})

	t.Run("sub-harmonic grid", func(t *testing.T) {
		in := handInputs(t)
		in.Npar = 6
		in.TNinvT, _ = linalg.Identity(6)
		in.Dbar = make([]complex128, 6)
		e, err := posterior.New(in, posterior.WithSHG(true), posterior.WithInverseLWPower(0.25))
		require.NoError(t, err)
		phi, err := e.PowerVector([]float64{1})
		require.NoError(t, err)
		assert.Equal(t, []float64{0.25, 0.25}, phi[4:])
	})
}

func TestEvaluate_BlockMatchesWhole(t *testing.T) {
	in, blocks := blockInputs(t)
	x := []float64{0.7, 1.9}
	for _, s := range []linalg.Strategy{linalg.StrategyInverse, linalg.StrategyCholesky, linalg.StrategyDevice} {
		t.Run(s.String(), func(t *testing.T) {
			whole, err := posterior.New(in, posterior.WithStrategy(s), posterior.WithInverseLWPower(0.5))
			require.NoError(t, err)
			sliced, err := posterior.New(in, posterior.WithStrategy(s), posterior.WithInverseLWPower(0.5),
				posterior.WithBlockDiagonal(true), posterior.WithBlockWorkers(2))
			require.NoError(t, err)

			want, err := whole.Evaluate(x)
			require.NoError(t, err)
			got, err := sliced.Evaluate(x)
			require.NoError(t, err)
			perCall, err := whole.Evaluate(x, posterior.WithBlocks(blocks))
			require.NoError(t, err)

			for _, s := range []posterior.Score{got, perCall} {
				assert.InEpsilon(t, want.Value, s.Value, 1e-6)
				assert.InEpsilon(t, want.LogSigmaDet, s.LogSigmaDet, 1e-6)
				require.Len(t, s.SigmaIDbar, len(want.SigmaIDbar))
				for i := range want.SigmaIDbar {
					assert.InDelta(t, 0, cmplx.Abs(want.SigmaIDbar[i]-s.SigmaIDbar[i]), 1e-9)
				}
			}
		})
	}
}

func TestEvaluate_LogPhiDetMatchesProduct(t *testing.T) {
	in, _ := blockInputs(t)
	e, err := posterior.New(in, posterior.WithInverseLWPower(0.5))
	require.NoError(t, err)
	x := []float64{0.7, 1.9}
	score, err := e.Evaluate(x)
	require.NoError(t, err)
	phi, err := e.PowerVector(x)
	require.NoError(t, err)
	prod := 1.0
	for _, v := range phi {
		prod *= v
	}
	assert.InDelta(t, -math.Log(prod), score.LogPhiDet, 1e-9)
}

func TestEvaluate_ZeroAmplitudeRejected(t *testing.T) {
	rec := &recorder{}
	core, logs := observer.New(zap.WarnLevel)
	e, err := posterior.New(handInputs(t), posterior.WithObserver(rec), posterior.WithLogger(zap.New(core)))
	require.NoError(t, err)

	_, err = e.Evaluate([]float64{0})
	require.ErrorIs(t, err, posterior.ErrRejectedSample)
	require.ErrorIs(t, err, posterior.ErrNonFinitePower)
	var rej *posterior.RejectedSampleError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, posterior.StagePower, rej.Stage)
	assert.Equal(t, []float64{0}, rej.Params)

	v, derived, err := e.PosteriorProbability([]float64{0})
	require.NoError(t, err)
	assert.True(t, math.IsInf(v, -1))
	assert.Equal(t, []float64{-1}, derived)

	assert.Equal(t, int64(2), rec.rejected.Load())
	assert.Equal(t, 2, logs.FilterMessage("rejected sample, zero posterior probability").Len())
}

func TestEvaluate_NegativeAmplitudeRejected(t *testing.T) {
	e, err := posterior.New(handInputs(t))
	require.NoError(t, err)
	v, derived, err := e.PosteriorProbability([]float64{-1})
	require.NoError(t, err)
	assert.True(t, math.IsInf(v, -1))
	assert.Equal(t, []float64{-1}, derived)
}

func TestEvaluate_FactorizationFlag(t *testing.T) {
	rec := &recorder{}
	core, logs := observer.New(zap.WarnLevel)
	e, err := posterior.New(handInputs(t),
		posterior.WithStrategy(linalg.StrategyDevice),
		posterior.WithLinalgOptions(linalg.WithDevice("posterior-test-flag")),
		posterior.WithObserver(rec),
		posterior.WithLogger(zap.New(core)))
	require.NoError(t, err)
	require.Equal(t, linalg.StrategyDevice, e.Strategy())

	score, err := e.Evaluate([]float64{e.Normalization(0)})
	require.NoError(t, err)
	assert.True(t, score.FactorizationFailed)
	assert.True(t, math.IsInf(score.LogSigmaDet, 1))
	assert.True(t, math.IsInf(score.Value, -1))
	assert.False(t, math.IsNaN(score.Value))

	v, derived, err := e.PosteriorProbability([]float64{e.Normalization(0)})
	require.NoError(t, err)
	assert.True(t, math.IsInf(v, -1))
	assert.Equal(t, []float64{0}, derived)

	assert.Equal(t, int64(2), rec.factorization.Load())
	entries := logs.FilterMessage("factorization failed, zero-weighting sample").All()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(4), entries[0].ContextMap()["info"])
}

func TestNew_DeviceFallback(t *testing.T) {
	rec := &recorder{}
	e, err := posterior.New(handInputs(t),
		posterior.WithStrategy(linalg.StrategyDevice),
		posterior.WithLinalgOptions(linalg.WithDevice("posterior-no-such-device")),
		posterior.WithObserver(rec))
	require.NoError(t, err)
	assert.Equal(t, linalg.StrategyInverse, e.Strategy())
	assert.Equal(t, int64(1), rec.fallback.Load())

	score, err := e.Evaluate([]float64{e.Normalization(0)})
	require.NoError(t, err)
	assert.InDelta(t, handScore(1), score.Value, tol)
}

func TestEvaluate_NoiseFitting(t *testing.T) {
	in, _ := blockInputs(t)
	x := []float64{0.7, 1.9}
	plain, err := posterior.New(in, posterior.WithInverseLWPower(0.5))
	require.NoError(t, err)
	fit, err := posterior.New(in, posterior.WithInverseLWPower(0.5), posterior.WithNoiseFitting(true))
	require.NoError(t, err)
	assert.Equal(t, 3, fit.Dims())

	want, err := plain.Evaluate(x)
	require.NoError(t, err)

	// α' = 1 leaves Sigma and dbar untouched; only -½·d_Ninv_d remains.
	got, err := fit.Evaluate(append([]float64{1}, x...))
	require.NoError(t, err)
	assert.InDelta(t, want.Value-0.5*in.DNinvD, got.Value, tol)
	assert.Equal(t, want.LogSigmaDet, got.LogSigmaDet)

	in.DNinvD = 0
	fit0, err := posterior.New(in, posterior.WithInverseLWPower(0.5), posterior.WithNoiseFitting(true))
	require.NoError(t, err)
	got, err = fit0.Evaluate(append([]float64{1}, x...))
	require.NoError(t, err)
	assert.Equal(t, want.Value, got.Value)

	t.Run("alpha changes the noise term", func(t *testing.T) {
		s, err := fit.Evaluate(append([]float64{2}, x...))
		require.NoError(t, err)
		assert.NotEqual(t, want.Value, s.Value)
		assert.False(t, math.IsNaN(s.Value))
	})

	t.Run("zero alpha is rejected", func(t *testing.T) {
		_, err := fit.Evaluate(append([]float64{0}, x...))
		require.ErrorIs(t, err, posterior.ErrRejectedSample)
	})
}

func TestEvaluate_SpectralGrid(t *testing.T) {
	dir := t.TempDir()
	id, err := linalg.Identity(4)
	require.NoError(t, err)
	require.NoError(t, gridcache.Save(dir, 0.5, 2, 2.5, gridcache.Entry{TNinvT: id, Dbar: []complex128{1, 1, 1, 1}}))
	doubled := id.Clone()
	doubled.Scale(2)
	require.NoError(t, gridcache.Save(dir, 0.5, 2, 3, gridcache.Entry{TNinvT: doubled, Dbar: []complex128{1, 1, 1, 1}}))
	g, err := gridcache.Load(dir, 0.5, 4)
	require.NoError(t, err)

	in := handInputs(t)
	in.TNinvT, in.Dbar = nil, nil
	e, err := posterior.New(in, posterior.WithSpectralGrid(g))
	require.NoError(t, err)
	assert.Equal(t, 3, e.Dims())
	norm := e.Normalization(0)

	score, err := e.Evaluate([]float64{2, 0, norm})
	require.NoError(t, err)
	assert.InDelta(t, handScore(1), score.Value, tol)
	assert.Equal(t, gridcache.Key{B1: 4, B2: 5}, score.Spectral)

	// b2 = 2.5 + 1.5·0.4 = 3.1 rounds to 3.0: Sigma = 3·I, y = 1/3.
	score, err = e.Evaluate([]float64{2, 0.4, norm})
	require.NoError(t, err)
	assert.Equal(t, gridcache.Key{B1: 4, B2: 6}, score.Spectral)
	assert.InDelta(t, -2*math.Log(3)+2.0/3, score.Value, tol)

	_, err = e.Evaluate([]float64{1, 0, norm})
	require.ErrorIs(t, err, gridcache.ErrGridMiss)
	require.NotErrorIs(t, err, posterior.ErrRejectedSample)
	_, _, err = e.PosteriorProbability([]float64{1, 0, norm})
	require.ErrorIs(t, err, gridcache.ErrGridMiss)

	// T_Ninv_T comes from the grid; caller blocks are refused, not ignored.
	_, err = e.Evaluate([]float64{2, 0, norm}, posterior.WithBlocks([]*linalg.CDense{id}))
	require.ErrorIs(t, err, posterior.ErrInvalidInputs)
	require.NotErrorIs(t, err, posterior.ErrRejectedSample)
}

func TestEvaluate_SetupErrors(t *testing.T) {
	e, err := posterior.New(handInputs(t))
	require.NoError(t, err)
	_, err = e.Evaluate([]float64{1, 2})
	require.ErrorIs(t, err, posterior.ErrDimensionMismatch)
	require.NotErrorIs(t, err, posterior.ErrRejectedSample)

	_, err = e.Evaluate([]float64{1}, posterior.WithBlocks([]*linalg.CDense{nil}))
	require.ErrorIs(t, err, posterior.ErrInvalidInputs)
}

func TestNew_Validation(t *testing.T) {
	in, blocks := blockInputs(t)

	_, err := posterior.New(in, posterior.WithInstrumental(true), posterior.WithBlockDiagonal(true))
	require.ErrorIs(t, err, posterior.ErrBlockDiagonalInstrumental)

	odd := in
	odd.Geometry.Nf, odd.Band.Nf = 5, 5
	_, err = posterior.New(odd)
	require.ErrorIs(t, err, posterior.ErrOddNeta)

	odd = in
	odd.Geometry.Neta = 3
	odd.Geometry.Nq = 2
	_, err = posterior.New(odd, posterior.WithInstrumental(true))
	require.ErrorIs(t, err, posterior.ErrOddNeta)

	bad := in
	bad.Dbar = bad.Dbar[:3]
	_, err = posterior.New(bad)
	require.ErrorIs(t, err, posterior.ErrInvalidInputs)

	bad = in
	bad.KVals = []float64{1}
	_, err = posterior.New(bad)
	require.ErrorIs(t, err, posterior.ErrInvalidInputs)

	bad = in
	bad.Blocks = blocks[:1]
	_, err = posterior.New(bad)
	require.ErrorIs(t, err, posterior.ErrInvalidInputs)

	bad = in
	bad.Ninv = nil
	_, err = posterior.New(bad, posterior.WithNoiseFitting(true))
	require.ErrorIs(t, err, posterior.ErrInvalidInputs)

	_, err = posterior.New(in, posterior.WithUniformBins(3))
	require.ErrorIs(t, err, posterior.ErrInvalidInputs)

	assert.Panics(t, func() { posterior.WithBlockWorkers(0) })
	assert.Panics(t, func() { posterior.WithUniformBins(-2) })
}

func TestBuildSigma(t *testing.T) {
	e, err := posterior.New(handInputs(t))
	require.NoError(t, err)
	sigma, err := e.BuildSigma([]float64{e.Normalization(0) / 2})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		v, err := sigma.At(i, i)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, real(v), tol)
	}
}

func TestEvaluate_Concurrent(t *testing.T) {
	in, _ := blockInputs(t)
	e, err := posterior.New(in, posterior.WithInverseLWPower(0.5),
		posterior.WithBlockDiagonal(true), posterior.WithBlockWorkers(2), posterior.WithPrintRate(7))
	require.NoError(t, err)
	x := []float64{0.7, 1.9}
	want, err := e.Evaluate(x)
	require.NoError(t, err)

	const goroutines, calls = 8, 20
	var wg sync.WaitGroup
	errs := make(chan error, goroutines*calls)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < calls; i++ {
				s, err := e.Evaluate(x)
				if err == nil && s.Value != want.Value {
					err = errors.New("score drifted under concurrency")
				}
				if err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(goroutines*calls+1), e.Count())
}

func TestPowerVector_UnbinnedVoxels(t *testing.T) {
	in, _ := blockInputs(t)
	// Voxel 7 is a masked Fourier mode: in no bin, on no LSSM offset.
	in.Bins = [][]int{{0, 2, 5}, {3, 8}}
	x := []float64{0.7, 1.9}

	e, err := posterior.New(in, posterior.WithInverseLWPower(0.5))
	require.NoError(t, err)
	phi, err := e.PowerVector(x)
	require.NoError(t, err)
	assert.Equal(t, 0.5, phi[7])
	for i, v := range phi {
		assert.Greater(t, v, 0.0, "voxel %d", i)
	}
	score, err := e.Evaluate(x)
	require.NoError(t, err)
	assert.False(t, math.IsInf(score.Value, 0) || math.IsNaN(score.Value))
	assert.False(t, math.IsInf(score.LogPhiDet, 0))

	// A zero flat power leaves the mode with zero precision.
	flat, err := posterior.New(in, posterior.WithInverseLWPowerTerms(3, 5, 7))
	require.NoError(t, err)
	phi, err = flat.PowerVector(x)
	require.NoError(t, err)
	assert.Zero(t, phi[7])
	assert.Equal(t, 3.0, phi[1])
}

func TestPowerVector_SHGPower(t *testing.T) {
	in := handInputs(t)
	in.Npar = 8
	in.TNinvT, _ = linalg.Identity(8)
	in.Dbar = make([]complex128, 8)
	in.Geometry.NuSH, in.Geometry.NvSH, in.Geometry.NuvSH, in.Geometry.NqSH = 3, 1, 2, 1

	e, err := posterior.New(in, posterior.WithSHG(true), posterior.WithInverseLWPower(0.25),
		posterior.WithInverseSHGPower(4))
	require.NoError(t, err)
	phi, err := e.PowerVector([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 4, 4, 4}, phi[4:])

	// Without its own power the SH region follows the LW power.
	e, err = posterior.New(in, posterior.WithSHG(true), posterior.WithInverseLWPower(0.25))
	require.NoError(t, err)
	phi, err = e.PowerVector([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, phi[4:])

	score, err := e.Evaluate([]float64{e.Normalization(0)})
	require.NoError(t, err)
	assert.False(t, math.IsInf(score.Value, 0) || math.IsNaN(score.Value))
}

func TestNew_SHGeometry(t *testing.T) {
	base := handInputs(t)
	base.Npar = 8
	base.TNinvT, _ = linalg.Identity(8)
	base.Dbar = make([]complex128, 8)

	for name, tc := range map[string]struct {
		mut func(*posterior.Geometry)
		ok  bool
	}{
		"no SH pixel count":     {func(g *posterior.Geometry) {}, true},
		"two pixels of two":     {func(g *posterior.Geometry) { g.NuvSH, g.NqSH = 2, 2 }, true},
		"uneven split":          {func(g *posterior.Geometry) { g.NuvSH = 3 }, false},
		"nuv_sh vs nu_sh*nv_sh": {func(g *posterior.Geometry) { g.NuSH, g.NvSH, g.NuvSH = 3, 3, 4 }, false},
		"nq_sh beyond pixel":    {func(g *posterior.Geometry) { g.NuvSH, g.NqSH = 4, 2 }, false},
		"negative nq_sh":        {func(g *posterior.Geometry) { g.NqSH = -1 }, false},
	} {
		t.Run(name, func(t *testing.T) {
			in := base
			tc.mut(&in.Geometry)
			_, err := posterior.New(in, posterior.WithSHG(true))
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, posterior.ErrInvalidInputs)
		})
	}

	_, err := posterior.New(handInputs(t), posterior.WithSHG(true))
	require.ErrorIs(t, err, posterior.ErrInvalidInputs)
}

func TestNew_RejectsNonHermitian(t *testing.T) {
	skew := func(t *testing.T, n int) *linalg.CDense {
		t.Helper()
		m, err := linalg.Identity(n)
		require.NoError(t, err)
		require.NoError(t, m.Set(0, 1, 0.5+0.5i))
		return m
	}

	for _, s := range []linalg.Strategy{linalg.StrategyInverse, linalg.StrategyCholesky, linalg.StrategyDevice} {
		in := handInputs(t)
		in.TNinvT = skew(t, 4)
		_, err := posterior.New(in, posterior.WithStrategy(s))
		require.ErrorIs(t, err, posterior.ErrInvalidInputs, s.String())
		require.ErrorIs(t, err, linalg.ErrNotHermitian, s.String())
	}

	in, blocks := blockInputs(t)
	bad := in
	bad.Blocks = []*linalg.CDense{blocks[0], skew(t, 5)}
	_, err := posterior.New(bad)
	require.ErrorIs(t, err, posterior.ErrInvalidInputs)

	e, err := posterior.New(in, posterior.WithInverseLWPower(0.5))
	require.NoError(t, err)
	_, err = e.Evaluate([]float64{0.7, 1.9}, posterior.WithBlocks([]*linalg.CDense{skew(t, 5), blocks[1]}))
	require.ErrorIs(t, err, posterior.ErrInvalidInputs)
	require.ErrorIs(t, err, linalg.ErrNotHermitian)
}

func TestCovariance(t *testing.T) {
	e, err := posterior.New(handInputs(t))
	require.NoError(t, err)
	x := []float64{e.Normalization(0) / 2}

	// Sigma = 3·I.
	cov, err := e.Covariance(x)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		v, err := cov.At(i, i)
		require.NoError(t, err)
		assert.InDelta(t, 1.0/3, real(v), tol)
	}

	in, _ := blockInputs(t)
	e, err = posterior.New(in, posterior.WithInverseLWPower(0.5))
	require.NoError(t, err)
	x = []float64{0.7, 1.9}
	cov, err = e.Covariance(x)
	require.NoError(t, err)
	score, err := e.Evaluate(x)
	require.NoError(t, err)
	y, err := cov.MulVec(in.Dbar)
	require.NoError(t, err)
	require.Len(t, y, len(score.SigmaIDbar))
	for i := range y {
		assert.InDelta(t, 0, cmplx.Abs(y[i]-score.SigmaIDbar[i]), 1e-9)
	}

	_, err = e.Covariance([]float64{1})
	require.ErrorIs(t, err, posterior.ErrDimensionMismatch)
}
