// SPDX-License-Identifier: MIT

// Package cosmo converts interferometric coordinates (angle, frequency) into
// comoving cosmological distances for redshifted 21-cm observations.
//
// Only flat or curved ΛCDM without radiation is modelled; that is accurate to
// well below a percent over the reionization redshifts this module targets.
package cosmo

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

const (
	// F21 is the rest frequency of the hydrogen hyperfine line [Hz].
	F21 = 1420.40575177e6

	// SpeedOfLight in km/s, so c/H0 comes out in Mpc.
	SpeedOfLight = 299792.458

	// quadPoints is the Gauss-Legendre order of the comoving-distance integral.
	quadPoints = 64
)

// ErrInvalidRedshift is returned for z <= -1 or non-finite z.
var ErrInvalidRedshift = errors.New("cosmo: invalid redshift")

// Cosmology holds the background parameters.
type Cosmology struct {
	H0     float64 // Hubble constant [km/s/Mpc]
	OmegaM float64
	OmegaL float64
}

// Planck18 returns the Planck 2018 (TT,TE,EE+lowE+lensing+BAO) flat cosmology.
func Planck18() Cosmology {
	const om = 0.30966
	return Cosmology{H0: 67.66, OmegaM: om, OmegaL: 1 - om}
}

// OmegaK returns the curvature density.
func (c Cosmology) OmegaK() float64 { return 1 - c.OmegaM - c.OmegaL }

// HubbleDistance returns c/H0 [Mpc].
func (c Cosmology) HubbleDistance() float64 { return SpeedOfLight / c.H0 }

// F2Z converts an observed 21-cm frequency [Hz] to redshift.
func F2Z(hz float64) float64 { return F21/hz - 1 }

// Z2F converts redshift to the observed 21-cm frequency [Hz].
func Z2F(z float64) float64 { return F21 / (1 + z) }

// E returns H(z)/H0.
func (c Cosmology) E(z float64) float64 {
	zp := 1 + z
	return math.Sqrt(c.OmegaM*zp*zp*zp + c.OmegaK()*zp*zp + c.OmegaL)
}

func validZ(z float64) error {
	if math.IsNaN(z) || math.IsInf(z, 0) || z <= -1 {
		return ErrInvalidRedshift
	}

	return nil
}

// ComovingDistance returns the line-of-sight comoving distance to z [Mpc].
func (c Cosmology) ComovingDistance(z float64) (float64, error) {
	if err := validZ(z); err != nil {
		return 0, err
	}
	if z == 0 {
		return 0, nil
	}
	integrand := func(zz float64) float64 { return 1 / c.E(zz) }

	return c.HubbleDistance() * quad.Fixed(integrand, 0, z, quadPoints, nil, 0), nil
}

// TransverseComovingDistance returns D_M(z) [Mpc], accounting for curvature.
func (c Cosmology) TransverseComovingDistance(z float64) (float64, error) {
	dc, err := c.ComovingDistance(z)
	if err != nil {
		return 0, err
	}
	ok := c.OmegaK()
	dh := c.HubbleDistance()
	switch {
	case ok > 1e-12:
		s := math.Sqrt(ok)
		return dh / s * math.Sinh(s*dc/dh), nil
	case ok < -1e-12:
		s := math.Sqrt(-ok)
		return dh / s * math.Sin(s*dc/dh), nil
	}

	return dc, nil
}

// DLdTh returns the transverse comoving length per radian at z [Mpc/rad].
func (c Cosmology) DLdTh(z float64) (float64, error) {
	return c.TransverseComovingDistance(z)
}

// DLdF returns the line-of-sight comoving length per unit observed frequency
// at z [Mpc/Hz].
func (c Cosmology) DLdF(z float64) (float64, error) {
	if err := validZ(z); err != nil {
		return 0, err
	}
	zp := 1 + z

	return SpeedOfLight * zp * zp / (c.H0 * c.E(z) * F21), nil
}

// InstToCosmoVol returns the conversion from instrumental volume (sr·Hz) to
// comoving volume at z [Mpc³/(sr·Hz)].
func (c Cosmology) InstToCosmoVol(z float64) (float64, error) {
	dth, err := c.DLdTh(z)
	if err != nil {
		return 0, err
	}
	df, err := c.DLdF(z)
	if err != nil {
		return 0, err
	}

	return dth * dth * df, nil
}
