// SPDX-License-Identifier: MIT

package cosmo

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidBand is returned for a band with no channels or a non-positive
// channel width or start frequency.
var ErrInvalidBand = errors.New("cosmo: invalid band")

// Band is a contiguous set of equally spaced frequency channels.
type Band struct {
	NuMinMHz        float64 `yaml:"nu_min_mhz" validate:"gt=0"`
	ChannelWidthMHz float64 `yaml:"channel_width_mhz" validate:"gt=0"`
	Nf              int     `yaml:"nf" validate:"gt=0"`
}

// Validate checks the band is usable.
func (b Band) Validate() error {
	if b.Nf <= 0 || !(b.ChannelWidthMHz > 0) || !(b.NuMinMHz > 0) {
		return ErrInvalidBand
	}

	return nil
}

// Frequencies returns the channel frequencies [MHz].
func (b Band) Frequencies() []float64 {
	out := make([]float64, b.Nf)
	for i := range out {
		out[i] = b.NuMinMHz + float64(i)*b.ChannelWidthMHz
	}

	return out
}

// MeanHz returns the mean channel frequency [Hz].
func (b Band) MeanHz() float64 {
	f := b.Frequencies()
	if len(f) == 0 {
		return math.NaN()
	}

	return floats.Sum(f) / float64(len(f)) * 1e6
}

// MeanRedshift returns the 21-cm redshift of the mean channel frequency.
func (b Band) MeanRedshift() float64 { return F2Z(b.MeanHz()) }

// BandwidthHz returns Nf·ChannelWidth [Hz].
func (b Band) BandwidthHz() float64 { return float64(b.Nf) * b.ChannelWidthMHz * 1e6 }

// BoxSize is the comoving extent of the observed volume [Mpc].
type BoxSize struct {
	RA, Dec, Para float64
}

// Volume returns RA·Dec·Para [Mpc³].
func (s BoxSize) Volume() float64 { return s.RA * s.Dec * s.Para }

// BoxSizes converts a field of view [deg] and the band into comoving box
// extents at the band's mean redshift.
func (c Cosmology) BoxSizes(b Band, fovRADeg, fovDecDeg float64) (BoxSize, error) {
	if err := b.Validate(); err != nil {
		return BoxSize{}, err
	}
	z := b.MeanRedshift()
	dth, err := c.DLdTh(z)
	if err != nil {
		return BoxSize{}, err
	}
	df, err := c.DLdF(z)
	if err != nil {
		return BoxSize{}, err
	}
	deg := math.Pi / 180

	return BoxSize{
		RA:   dth * fovRADeg * deg,
		Dec:  dth * fovDecDeg * deg,
		Para: df * b.BandwidthHz(),
	}, nil
}
