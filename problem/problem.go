// SPDX-License-Identifier: MIT

// Package problem builds and stores evaluator input bundles.
//
// Synthesize simulates a small non-instrumental observation: each (u, v)
// pixel sees its own random complex response A (2·(neta+nq) samples by
// neta+nq model terms, neta = nf - nq) with white noise, so
// T_Ninv_T = Aᴴ·A/σ² is block-diagonal and positive definite. Save and Load move a bundle through
// a single arrayio file.
package problem

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/katalvlaran/bayeseor/cosmo"
	"github.com/katalvlaran/bayeseor/kspace"
	"github.com/katalvlaran/bayeseor/linalg"
	"github.com/katalvlaran/bayeseor/posterior"
)

var (
	// ErrInvalidSpec indicates an unusable synthesis request.
	ErrInvalidSpec = errors.New("problem: invalid spec")

	// ErrCorrupt indicates a bundle whose arrays disagree.
	ErrCorrupt = errors.New("problem: corrupt bundle")
)

// Spec describes a synthetic problem.
type Spec struct {
	Nu   int `yaml:"nu" validate:"gt=0"`
	Nv   int `yaml:"nv" validate:"gt=0"`
	Neta int `yaml:"neta" validate:"gt=1"`
	Nq   int `yaml:"nq" validate:"gte=0,lte=2"`

	Band      cosmo.Band `yaml:"band"`
	FovRADeg  float64    `yaml:"fov_ra_deg" validate:"gt=0"`
	FovDecDeg float64    `yaml:"fov_dec_deg" validate:"gt=0"`

	// NoiseSigma is the per-sample noise standard deviation.
	NoiseSigma float64 `yaml:"noise_sigma" validate:"gt=0"`
	// SignalSigma is the standard deviation of the simulated model amplitudes.
	SignalSigma float64 `yaml:"signal_sigma" validate:"gte=0"`
	Seed        int64   `yaml:"seed"`
}

// DefaultSpec is a 3×3 uv grid over 8 channels at 150 MHz, modelled as
// 6 Fourier modes plus two LSSM terms per pixel.
func DefaultSpec() Spec {
	return Spec{
		Nu: 3, Nv: 3, Neta: 6, Nq: 2,
		Band:        cosmo.Band{NuMinMHz: 150, ChannelWidthMHz: 0.5, Nf: 8},
		FovRADeg:    12.9,
		FovDecDeg:   12.9,
		NoiseSigma:  1,
		SignalSigma: 1,
		Seed:        1,
	}
}

func (s Spec) validate() error {
	if s.Nu <= 0 || s.Nv <= 0 || s.Nu%2 == 0 || s.Nv%2 == 0 {
		return fmt.Errorf("nu=%d nv=%d must be odd: %w", s.Nu, s.Nv, ErrInvalidSpec)
	}
	if s.Neta < 2 || s.Neta%2 != 0 || s.Nq < 0 || s.Nq > 2 {
		return fmt.Errorf("neta=%d nq=%d: %w", s.Neta, s.Nq, ErrInvalidSpec)
	}
	// The LSSM terms take the place of the nq highest LoS modes, which puts
	// the monopole offset nf/2-1 on η = 0.
	if s.Neta != s.Band.Nf-s.Nq {
		return fmt.Errorf("neta=%d, want nf-nq=%d: %w", s.Neta, s.Band.Nf-s.Nq, ErrInvalidSpec)
	}
	if !(s.NoiseSigma > 0) || s.SignalSigma < 0 {
		return fmt.Errorf("noise=%g signal=%g: %w", s.NoiseSigma, s.SignalSigma, ErrInvalidSpec)
	}
	if err := s.Band.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}

	return nil
}

// Problem is an evaluator input bundle plus its binning metadata.
type Problem struct {
	Inputs posterior.Inputs
	Edges  []kspace.BinEdge
}

// Synthesize simulates a problem under cosmology c.
func Synthesize(s Spec, c cosmo.Cosmology) (*Problem, error) {
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("Synthesize: %w", err)
	}
	box, err := c.BoxSizes(s.Band, s.FovRADeg, s.FovDecDeg)
	if err != nil {
		return nil, fmt.Errorf("Synthesize: %w", err)
	}
	cube, err := kspace.GenerateCube(s.Nu, s.Nv, s.Neta, box)
	if err != nil {
		return nil, fmt.Errorf("Synthesize: %w", err)
	}
	mask, modK := kspace.Mask(cube, kspace.MaskOptions{Nq: s.Nq})
	part, edges, err := kspace.SphericalBinning(mask, modK, box.Para)
	if err != nil {
		return nil, fmt.Errorf("Synthesize: %w", err)
	}
	if part.Len() == 0 {
		return nil, fmt.Errorf("Synthesize: no populated k-bins: %w", ErrInvalidSpec)
	}

	g := posterior.Geometry{Nuv: s.Nu*s.Nv - 1, Nu: s.Nu, Nv: s.Nv, Neta: s.Neta, Nf: s.Band.Nf, Nq: s.Nq}
	bs := g.BlockSize()
	npar := g.PrimaryLen()
	nt := 2 * bs
	inv := 1 / (s.NoiseSigma * s.NoiseSigma)

	src := rand.NewSource(uint64(s.Seed))
	unit := distuv.Normal{Mu: 0, Sigma: 1 / math.Sqrt2, Src: src}
	signal := distuv.Normal{Mu: 0, Sigma: s.SignalSigma, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: s.NoiseSigma / math.Sqrt2, Src: src}
	draw := func(n distuv.Normal) complex128 { return complex(n.Rand(), n.Rand()) }

	tNinvT, err := linalg.NewCDense(npar, npar)
	if err != nil {
		return nil, fmt.Errorf("Synthesize: %w", err)
	}
	a, err := linalg.NewCDense(nt, bs)
	if err != nil {
		return nil, fmt.Errorf("Synthesize: %w", err)
	}
	var (
		data   = tNinvT.Data()
		resp   = a.Data()
		amps   = make([]complex128, bs)
		dbar   = make([]complex128, npar)
		dNinvD float64
		d      []complex128
		i, j   int
		r, b   int
	)
	for b = 0; b < g.Nuv; b++ {
		for i = range resp {
			resp[i] = draw(unit)
		}
		for j = range amps {
			amps[j] = draw(signal)
		}
		if d, err = a.MulVec(amps); err != nil {
			return nil, fmt.Errorf("Synthesize: %w", err)
		}
		for r = range d {
			d[r] += draw(noise)
			dNinvD += real(d[r]*cmplx.Conj(d[r])) * inv
		}
		off := b * bs
		for i = 0; i < bs; i++ {
			for j = 0; j < bs; j++ {
				var v complex128
				for r = 0; r < nt; r++ {
					v += cmplx.Conj(resp[r*bs+i]) * resp[r*bs+j]
				}
				data[(off+i)*npar+off+j] = v * complex(inv, 0)
			}
			var v complex128
			for r = 0; r < nt; r++ {
				v += cmplx.Conj(resp[r*bs+i]) * d[r]
			}
			dbar[off+i] = v * complex(inv, 0)
		}
	}

	ninv := make([]float64, g.Nuv*nt)
	for i = range ninv {
		ninv[i] = inv
	}

	return &Problem{
		Inputs: posterior.Inputs{
			TNinvT:   tNinvT,
			Dbar:     dbar,
			Npar:     npar,
			Bins:     part,
			Geometry: g,
			Ninv:     ninv,
			DNinvD:   dNinvD,
			KVals:    kspace.MeanK(modK, part),
			Box:      box,
			Band:     s.Band,
		},
		Edges: edges,
	}, nil
}
