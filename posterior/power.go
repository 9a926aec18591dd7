// SPDX-License-Identifier: MIT

package posterior

import (
	"fmt"
	"math"

	"github.com/katalvlaran/bayeseor/cosmo"
)

// normalizations returns the per-bin normalization for the configured
// convention and the dimensionless bin-0 value that scales the LSSM
// Gaussian prior.
//
//	dimensionless: k³/(2π²) / V · X²
//	dimensionful:             1 / V · X²
//
// where V is the box volume [Mpc³] and X = InstToCosmoVol(z̄) at the mean
// redshift of the band.
func normalizations(in *Inputs, c cosmo.Cosmology, dimensionless bool) ([]float64, float64, error) {
	x, err := c.InstToCosmoVol(in.Band.MeanRedshift())
	if err != nil {
		return nil, 0, err
	}
	scale := x * x / in.Box.Volume()

	dimless := func(k float64) float64 { return k * k * k / (2 * math.Pi * math.Pi) * scale }
	out := make([]float64, len(in.KVals))
	for i, k := range in.KVals {
		if dimensionless {
			out[i] = dimless(k)
		} else {
			out[i] = scale
		}
	}
	var lwm float64
	if len(in.KVals) > 0 {
		lwm = dimless(in.KVals[0])
	}

	return out, lwm, nil
}

// lssmOffsets returns the in-block positions of the zeroth, first and second
// LSSM terms that exist for this geometry.
func lssmOffsets(g Geometry, nf int, instrumental bool) ([]int, error) {
	var q0 int
	if instrumental {
		if g.Neta%2 != 0 {
			return nil, fmt.Errorf("neta=%d: %w", g.Neta, ErrOddNeta)
		}
		q0 = g.Neta / 2
	} else {
		if nf < 2 || nf%2 != 0 {
			return nil, fmt.Errorf("nf=%d: %w", nf, ErrOddNeta)
		}
		q0 = nf/2 - 1
	}
	if q0 >= g.BlockSize() {
		return nil, invalidf("monopole offset %d outside block of %d", q0, g.BlockSize())
	}
	out := []int{q0}
	if g.Nq >= 1 {
		out = append(out, g.Neta)
	}
	if g.Nq >= 2 {
		out = append(out, g.Neta+1)
	}

	return out, nil
}

// Normalization returns the power-spectrum normalization of bin i.
func (e *Evaluator) Normalization(i int) float64 { return e.norms[i] }

// PowerVector builds PhiI from linear amplitudes (already stripped of the
// spectral and noise parameters and out of log space). With the LSSM
// Gaussian prior the first three amplitudes drive the LSSM terms. Masked
// Fourier modes get the flat inverse LW power and SH voxels the inverse SHG
// power.
//
// A zero amplitude yields +Inf in PhiI; it is not clamped.
func (e *Evaluator) PowerVector(amps []float64) ([]float64, error) {
	if want := e.nAmps(); len(amps) != want {
		return nil, posteriorErrorf("PowerVector", fmt.Errorf("%d amplitudes, want %d: %w", len(amps), want, ErrDimensionMismatch))
	}

	return e.powerVector(amps), nil
}

func (e *Evaluator) nAmps() int {
	n := e.in.Bins.Len()
	if e.opts.lwmGaussianPrior {
		n += 3
	}

	return n
}

// primaryEnd is where the LSSM stride stops: the SH region start with a
// sub-harmonic grid, Npar otherwise.
func (e *Evaluator) primaryEnd() int {
	if e.opts.useSHG {
		return e.in.Geometry.PrimaryLen()
	}

	return e.in.Npar
}

// unbinnedVoxels lists the primary-grid voxels that neither a k-bin nor an
// LSSM offset covers: the Fourier modes masked out of the power spectrum.
func (e *Evaluator) unbinnedVoxels() []int {
	end := e.primaryEnd()
	covered := make([]bool, end)
	stride := e.in.Geometry.BlockSize()
	var i int
	for _, q := range e.lssm {
		for i = q; i < end; i += stride {
			covered[i] = true
		}
	}
	for _, bin := range e.in.Bins {
		for _, vox := range bin {
			if vox < end {
				covered[vox] = true
			}
		}
	}
	var out []int
	for i = range covered {
		if !covered[i] {
			out = append(out, i)
		}
	}

	return out
}

func (e *Evaluator) powerVector(amps []float64) []float64 {
	phi := make([]float64, e.in.Npar)
	end := e.primaryEnd()
	stride := e.in.Geometry.BlockSize()

	var (
		lssm  [3]float64
		start int
	)
	if e.opts.lwmGaussianPrior {
		for t := range lssm {
			lssm[t] = e.lwmNorm / amps[t]
		}
		start = 3
	} else {
		p := e.opts.invLWPower
		lssm = [3]float64{p, p, p}
		if p == 0 {
			lssm = e.opts.invLWTerms
		}
	}
	var i int
	for t, q := range e.lssm {
		for i = q; i < end; i += stride {
			phi[i] = lssm[t]
		}
	}
	for _, vox := range e.unbinned {
		phi[vox] = e.opts.invLWPower
	}
	if e.opts.useSHG {
		p := e.opts.shgPower()
		for i = end; i < e.in.Npar; i++ {
			phi[i] = p
		}
	}

	for b, bin := range e.in.Bins {
		v := e.norms[b] / amps[start+b]
		for _, vox := range bin {
			phi[vox] = v
		}
	}

	return phi
}
