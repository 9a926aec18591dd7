// SPDX-License-Identifier: MIT

package cosmo_test

import (
	"math"
	"testing"

	"github.com/katalvlaran/bayeseor/cosmo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestF2Z_RoundTrip(t *testing.T) {
	assert.InDelta(t, 0, cosmo.F2Z(cosmo.F21), 1e-15)
	for _, z := range []float64{0.5, 6, 9.1, 12} {
		assert.InDelta(t, z, cosmo.F2Z(cosmo.Z2F(z)), 1e-12)
	}
	// 158.3 MHz sits near z = 7.97.
	assert.InDelta(t, 7.973, cosmo.F2Z(158.3e6), 1e-3)
}

func TestComovingDistance_EinsteinDeSitter(t *testing.T) {
	// Ωm = 1: D_C = 2·D_H·(1 − 1/√(1+z)).
	c := cosmo.Cosmology{H0: 70, OmegaM: 1}
	for _, z := range []float64{0.1, 1, 8} {
		got, err := c.ComovingDistance(z)
		require.NoError(t, err)
		want := 2 * c.HubbleDistance() * (1 - 1/math.Sqrt(1+z))
		assert.InEpsilon(t, want, got, 1e-10)
	}
}

func TestComovingDistance_Planck18(t *testing.T) {
	c := cosmo.Planck18()
	d, err := c.ComovingDistance(1)
	require.NoError(t, err)
	// Matter + Λ only; astropy's Planck18 with radiation gives 3395.9 Mpc.
	assert.InEpsilon(t, 3398.72, d, 1e-4)

	_, err = c.ComovingDistance(-1)
	require.ErrorIs(t, err, cosmo.ErrInvalidRedshift)

	zero, err := c.ComovingDistance(0)
	require.NoError(t, err)
	assert.Zero(t, zero)
}

func TestTransverseComovingDistance_Curvature(t *testing.T) {
	open := cosmo.Cosmology{H0: 70, OmegaM: 0.3}
	closed := cosmo.Cosmology{H0: 70, OmegaM: 0.3, OmegaL: 0.9}
	for _, c := range []cosmo.Cosmology{open, closed} {
		dc, err := c.ComovingDistance(2)
		require.NoError(t, err)
		dm, err := c.TransverseComovingDistance(2)
		require.NoError(t, err)
		if c.OmegaK() > 0 {
			assert.Greater(t, dm, dc)
		} else {
			assert.Less(t, dm, dc)
		}
	}
}

func TestInstToCosmoVol(t *testing.T) {
	c := cosmo.Planck18()
	z := 8.0
	dth, err := c.DLdTh(z)
	require.NoError(t, err)
	df, err := c.DLdF(z)
	require.NoError(t, err)
	v, err := c.InstToCosmoVol(z)
	require.NoError(t, err)
	assert.InEpsilon(t, dth*dth*df, v, 1e-12)

	// dL/df from the definition: c(1+z)²/(H0·E(z)·f21).
	want := cosmo.SpeedOfLight * 81 / (c.H0 * c.E(z) * cosmo.F21)
	assert.InEpsilon(t, want, df, 1e-12)
}

func TestBand(t *testing.T) {
	b := cosmo.Band{NuMinMHz: 158.3, ChannelWidthMHz: 0.238, Nf: 4}
	require.NoError(t, b.Validate())
	assert.InDeltaSlice(t, []float64{158.3, 158.538, 158.776, 159.014}, b.Frequencies(), 1e-9)
	assert.InDelta(t, 158.657e6, b.MeanHz(), 1e-3)
	assert.InDelta(t, 0.952e6, b.BandwidthHz(), 1e-6)

	require.ErrorIs(t, cosmo.Band{}.Validate(), cosmo.ErrInvalidBand)
}

func TestBoxSizes(t *testing.T) {
	c := cosmo.Planck18()
	b := cosmo.Band{NuMinMHz: 158.3, ChannelWidthMHz: 0.238, Nf: 38}
	box, err := c.BoxSizes(b, 12.9080728652, 12.9080728652)
	require.NoError(t, err)
	assert.InEpsilon(t, box.RA, box.Dec, 1e-12)
	// z ≈ 7.73: about 2043 Mpc across and 150 Mpc deep.
	assert.Greater(t, box.RA, 1000.0)
	assert.Less(t, box.RA, 3000.0)
	assert.Greater(t, box.Para, 50.0)
	assert.Less(t, box.Para, 300.0)
	assert.InEpsilon(t, box.RA*box.Dec*box.Para, box.Volume(), 1e-12)

	_, err = c.BoxSizes(cosmo.Band{}, 1, 1)
	require.ErrorIs(t, err, cosmo.ErrInvalidBand)
}
