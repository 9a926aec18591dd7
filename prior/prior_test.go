// SPDX-License-Identifier: MIT

package prior_test

import (
	"math"
	"testing"

	"github.com/katalvlaran/bayeseor/prior"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := prior.New(nil)
	require.ErrorIs(t, err, prior.ErrEmptyBounds)

	for _, b := range []prior.Bound{
		{Lo: 1, Hi: 1},
		{Lo: 2, Hi: 1},
		{Lo: math.NaN(), Hi: 1},
		{Lo: 0, Hi: math.Inf(1)},
		{Lo: 0, Hi: 1, Kind: prior.Kind(7)},
		{Lo: 0, Hi: 400, Kind: prior.KindUniformAmplitude},
	} {
		_, err := prior.New([]prior.Bound{b})
		require.ErrorIs(t, err, prior.ErrInvalidBound, "%+v", b)
	}
}

func TestApply_Endpoints(t *testing.T) {
	tr, err := prior.New([]prior.Bound{
		{Lo: -2, Hi: 6},
		{Lo: 1, Hi: 2, Kind: prior.KindLinear},
		{Lo: 0, Hi: 2, Kind: prior.KindUniformAmplitude},
	})
	require.NoError(t, err)

	lo, err := tr.Apply([]float64{0, 0, 0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-2, 1, 0}, lo, 1e-12)

	hi, err := tr.Apply([]float64{1, 1, 1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{6, 2, 2}, hi, 1e-12)

	mid, err := tr.Apply([]float64{0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, mid[0], 1e-12)
	assert.InDelta(t, 1.5, mid[1], 1e-12)
	// Uniform in amplitude: 10^x = 1 + 0.5·99 = 50.5.
	assert.InDelta(t, math.Log10(50.5), mid[2], 1e-12)
}

func TestApply_Errors(t *testing.T) {
	tr, err := prior.New([]prior.Bound{{Lo: 0, Hi: 1}, {Lo: 0, Hi: 1}})
	require.NoError(t, err)
	_, err = tr.Apply([]float64{0.5})
	require.ErrorIs(t, err, prior.ErrDimensionMismatch)
	_, err = tr.Apply([]float64{0.5, 1.5})
	require.ErrorIs(t, err, prior.ErrOutsideUnitCube)
	_, err = tr.Apply([]float64{math.NaN(), 0})
	require.ErrorIs(t, err, prior.ErrOutsideUnitCube)
}

func TestApply_MonotoneAndInvertible(t *testing.T) {
	bounds := prior.DefaultBounds(prior.Layout{NBins: 4, NoiseFitting: true})
	tr, err := prior.New(bounds, prior.WithUniformAmplitude(3))
	require.NoError(t, err)

	prev := make([]float64, tr.Dims())
	for i := range prev {
		prev[i] = math.Inf(-1)
	}
	u := make([]float64, tr.Dims())
	for step := 0; step <= 20; step++ {
		for i := range u {
			u[i] = float64(step) / 20
		}
		x, err := tr.Apply(u)
		require.NoError(t, err)
		for i := range x {
			require.Greater(t, x[i], prev[i])
		}
		copy(prev, x)

		back, err := tr.Inverse(x)
		require.NoError(t, err)
		assert.InDeltaSlice(t, u, back, 1e-9)
	}
}

func TestApplyTo_InPlace(t *testing.T) {
	tr, err := prior.New([]prior.Bound{{Lo: 10, Hi: 20}})
	require.NoError(t, err)
	v := []float64{0.25}
	require.NoError(t, tr.ApplyTo(v, v))
	assert.Equal(t, 12.5, v[0])
}

func TestInverse_OutsideBounds(t *testing.T) {
	tr, err := prior.New([]prior.Bound{{Lo: 0, Hi: 1}})
	require.NoError(t, err)
	_, err = tr.Inverse([]float64{2})
	require.ErrorIs(t, err, prior.ErrOutsideBounds)
}

func TestDefaultBounds(t *testing.T) {
	ll := func(lo, hi float64) prior.Bound { return prior.Bound{Lo: lo, Hi: hi} }
	lin := func(lo, hi float64) prior.Bound { return prior.Bound{Lo: lo, Hi: hi, Kind: prior.KindLinear} }

	for _, tc := range []struct {
		name   string
		layout prior.Layout
		want   []prior.Bound
	}{
		{
			name:   "bins only",
			layout: prior.Layout{NBins: 3},
			want:   []prior.Bound{ll(-2, 15), ll(-2, 8), ll(-2, 6)},
		},
		{
			name:   "lwm prior",
			layout: prior.Layout{NBins: 2, LWMGaussianPrior: true},
			want:   []prior.Bound{ll(5, 6), ll(5, 6), ll(5, 6), ll(-2, 6), ll(-2, 6)},
		},
		{
			name:   "noise fitting",
			layout: prior.Layout{NBins: 2, NoiseFitting: true},
			want:   []prior.Bound{lin(1, 2), ll(-2, 8), ll(-2, 6)},
		},
		{
			name:   "noise and lwm",
			layout: prior.Layout{NBins: 1, NoiseFitting: true, LWMGaussianPrior: true},
			want:   []prior.Bound{lin(1, 2), ll(5, 6), ll(5, 6), ll(5, 6), ll(-2, 6)},
		},
		{
			name:   "spectral",
			layout: prior.Layout{NBins: 1, FitSpectral: true, BetaMin: 2, BetaMax: 3},
			want:   []prior.Bound{lin(2, 3), lin(0, 1), ll(-2, 15)},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := prior.DefaultBounds(tc.layout)
			require.Len(t, got, tc.layout.Dims())
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWithUniformLeadingBins(t *testing.T) {
	l := prior.Layout{NBins: 3, NoiseFitting: true}
	tr, err := prior.New(prior.DefaultBounds(l), prior.WithUniformLeadingBins(l, 2))
	require.NoError(t, err)
	kinds := []prior.Kind{}
	for _, b := range tr.Bounds() {
		kinds = append(kinds, b.Kind)
	}
	assert.Equal(t, []prior.Kind{
		prior.KindLinear, prior.KindUniformAmplitude, prior.KindUniformAmplitude, prior.KindLogUniform,
	}, kinds)

	all, err := prior.New(prior.DefaultBounds(l), prior.WithUniformLeadingBins(l, -1))
	require.NoError(t, err)
	assert.Equal(t, prior.KindUniformAmplitude, all.Bounds()[3].Kind)
	assert.Equal(t, "uniform-amplitude", prior.KindUniformAmplitude.String())
}
