// SPDX-License-Identifier: MIT

// Package kspace builds the (u, v, η) Fourier-mode cube in physical units,
// masks the modes that do not enter the power spectrum, and groups the rest
// into spherical |k| bins.
//
// Everything is vis-ordered: the flat index of pixel (ix, iy) and LoS mode iz
// is (iy·nu + ix)·neta + iz, i.e. k_z moves fastest, then k_x, then k_y.
package kspace

import (
	"fmt"
	"math"

	"github.com/katalvlaran/bayeseor/cosmo"
)

// Cube holds the vis-ordered k components and |k| of every mode [1/Mpc].
type Cube struct {
	Nu, Nv, Neta int
	Kx, Ky, Kz   []float64
	ModK         []float64
}

// GenerateCube lays out pixel coordinates x ∈ [−nu/2, nu/2], y ∈ [−nv/2, nv/2]
// and z ∈ [−neta/2, neta/2) and scales them by 2π over the box extents.
//
// Errors: ErrInvalidGeometry unless nu and nv are odd, neta is even and
// positive, and every box extent is positive.
func GenerateCube(nu, nv, neta int, box cosmo.BoxSize) (*Cube, error) {
	if nu < 1 || nv < 1 || nu%2 == 0 || nv%2 == 0 || neta < 2 || neta%2 != 0 {
		return nil, fmt.Errorf("GenerateCube(nu=%d, nv=%d, neta=%d): %w", nu, nv, neta, ErrInvalidGeometry)
	}
	if !(box.RA > 0 && box.Dec > 0 && box.Para > 0) {
		return nil, fmt.Errorf("GenerateCube: box %+v: %w", box, ErrInvalidGeometry)
	}
	dkx := 2 * math.Pi / box.RA
	dky := 2 * math.Pi / box.Dec
	dkz := 2 * math.Pi / box.Para

	n := nu * nv * neta
	c := &Cube{
		Nu: nu, Nv: nv, Neta: neta,
		Kx: make([]float64, n), Ky: make([]float64, n), Kz: make([]float64, n),
		ModK: make([]float64, n),
	}
	var (
		ix, iy, iz, idx int
		kx, ky, kz      float64
	)
	for iy = 0; iy < nv; iy++ {
		ky = float64(iy-nv/2) * dky
		for ix = 0; ix < nu; ix++ {
			kx = float64(ix-nu/2) * dkx
			for iz = 0; iz < neta; iz++ {
				kz = float64(iz-neta/2) * dkz
				idx = (iy*nu+ix)*neta + iz
				c.Kx[idx], c.Ky[idx], c.Kz[idx] = kx, ky, kz
				c.ModK[idx] = math.Sqrt(kx*kx + ky*ky + kz*kz)
			}
		}
	}

	return c, nil
}

// MaskOptions controls which modes are excluded.
type MaskOptions struct {
	// Nq is the number of LSSM (quadratic) terms appended per uv pixel.
	Nq int
	// Instrumental keeps the high-k_z modes that are otherwise dropped.
	Instrumental bool
	// FitMonopole keeps the (u, v) = (0, 0) pixel in the voxel layout.
	FitMonopole bool
}

// Mask returns the vis-ordered inclusion mask and |k| over the full voxel
// layout: Nuv pixel rows of neta Fourier modes followed by Nq LSSM terms.
//
// Excluded: k_⊥ = 0, k_z = 0 and, when Nq > 0 and not Instrumental, the
// Nyquist k_z mode (plus the sub-Nyquist mode unless Nq == 1). LSSM columns
// are always excluded and carry |k| = +Inf. Without FitMonopole the (0, 0)
// pixel row is removed entirely.
func Mask(c *Cube, o MaskOptions) (mask []bool, modK []float64) {
	neta := c.Neta
	nyquist := c.Kz[0]
	subNyquist := c.Kz[neta-1]
	rowLen := neta + o.Nq
	center := (c.Nu*c.Nv - 1) / 2

	rows := c.Nu * c.Nv
	if !o.FitMonopole {
		rows--
	}
	mask = make([]bool, 0, rows*rowLen)
	modK = make([]float64, 0, rows*rowLen)

	var (
		pix, iz, idx int
		keep         bool
		kz, kperp    float64
	)
	for pix = 0; pix < c.Nu*c.Nv; pix++ {
		if !o.FitMonopole && pix == center {
			continue
		}
		for iz = 0; iz < neta; iz++ {
			idx = pix*neta + iz
			kz = c.Kz[idx]
			kperp = math.Hypot(c.Kx[idx], c.Ky[idx])
			keep = kperp > 0 && math.Abs(kz) > 0
			if keep && o.Nq > 0 && !o.Instrumental {
				if kz == nyquist || (o.Nq != 1 && kz == subNyquist) {
					keep = false
				}
			}
			mask = append(mask, keep)
			modK = append(modK, c.ModK[idx])
		}
		for iz = 0; iz < o.Nq; iz++ {
			mask = append(mask, false)
			modK = append(modK, math.Inf(1))
		}
	}

	return mask, modK
}
