// SPDX-License-Identifier: MIT

package posterior

import (
	"fmt"
	"math"

	"github.com/katalvlaran/bayeseor/cosmo"
	"github.com/katalvlaran/bayeseor/kspace"
	"github.com/katalvlaran/bayeseor/linalg"
)

// Geometry describes the model (u, v, η) grid.
//
// Each of the Nuv (u, v) pixels owns a contiguous block of Neta Fourier
// modes followed by Nq LSSM terms. With a sub-harmonic grid the NuvSH
// (= NuSH·NvSH - 1) SH pixels follow the primary grid, each owning an equal
// share of the remaining voxels, NqSH of them LSSM terms.
type Geometry struct {
	Nuv, Nu, Nv int
	Neta, Nf    int
	Nq          int

	NuvSH, NuSH, NvSH, NqSH int
}

// BlockSize returns Neta + Nq, the per-pixel stride of the primary grid.
func (g Geometry) BlockSize() int { return g.Neta + g.Nq }

// PrimaryLen returns Nuv·(Neta+Nq), where the sub-harmonic region starts.
func (g Geometry) PrimaryLen() int { return g.Nuv * g.BlockSize() }

// Inputs are the fixed, read-only products of the matrix builder.
type Inputs struct {
	// TNinvT is the Npar×Npar Hermitian matrix Tᴴ·N⁻¹·T.
	TNinvT *linalg.CDense
	// Dbar is Tᴴ·N⁻¹·d, length Npar.
	Dbar []complex128
	// DiagIndices lists the Sigma positions that receive PhiI. Nil means 0..Npar-1.
	DiagIndices []int
	Npar        int
	// Bins partitions the Fourier-mode voxels into spherical k-bins.
	Bins     kspace.Partition
	Geometry Geometry
	// Ninv is the diagonal of N⁻¹; only its length is used (Ndat).
	Ninv   []float64
	DNinvD float64
	// KVals is the mean |k| of each bin [1/Mpc].
	KVals []float64
	Box   cosmo.BoxSize
	Band  cosmo.Band
	// Blocks is the optional block-diagonal form of TNinvT: Nuv blocks of
	// size Neta+Nq.
	Blocks []*linalg.CDense
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInputs)
}

// validate checks shapes independent of options.
func (in *Inputs) validate(haveGrid bool) error {
	g := in.Geometry
	if in.Npar <= 0 || g.Nuv <= 0 || g.Neta <= 0 || g.Nq < 0 {
		return invalidf("npar=%d nuv=%d neta=%d nq=%d", in.Npar, g.Nuv, g.Neta, g.Nq)
	}
	if g.PrimaryLen() > in.Npar {
		return invalidf("nuv·(neta+nq)=%d exceeds npar=%d", g.PrimaryLen(), in.Npar)
	}
	if in.TNinvT == nil {
		if !haveGrid {
			return invalidf("nil T_Ninv_T")
		}
	} else if in.TNinvT.Rows() != in.Npar || in.TNinvT.Cols() != in.Npar {
		return invalidf("T_Ninv_T is %dx%d, npar=%d", in.TNinvT.Rows(), in.TNinvT.Cols(), in.Npar)
	} else if err := hermitian("T_Ninv_T", in.TNinvT); err != nil {
		return err
	}
	if in.Dbar == nil {
		if !haveGrid {
			return invalidf("nil dbar")
		}
	} else if len(in.Dbar) != in.Npar {
		return invalidf("dbar has %d entries, npar=%d", len(in.Dbar), in.Npar)
	}
	if in.DiagIndices != nil {
		if len(in.DiagIndices) != in.Npar {
			return invalidf("%d diagonal indices, npar=%d", len(in.DiagIndices), in.Npar)
		}
		for _, i := range in.DiagIndices {
			if i < 0 || i >= in.Npar {
				return invalidf("diagonal index %d out of range", i)
			}
		}
	}
	if err := in.Bins.Validate(in.Npar); err != nil {
		return fmt.Errorf("bins: %w", err)
	}
	if len(in.KVals) != in.Bins.Len() {
		return invalidf("%d k values for %d bins", len(in.KVals), in.Bins.Len())
	}
	for i, k := range in.KVals {
		if math.IsNaN(k) || math.IsInf(k, 0) {
			return invalidf("k value %d is %g", i, k)
		}
	}
	if !(in.Box.Volume() > 0) {
		return invalidf("box %+v", in.Box)
	}
	if err := in.Band.Validate(); err != nil {
		return fmt.Errorf("band: %w", err)
	}
	if g.Nf != 0 && g.Nf != in.Band.Nf {
		return invalidf("geometry nf=%d, band nf=%d", g.Nf, in.Band.Nf)
	}
	if len(in.Blocks) != 0 && len(in.Blocks) != g.Nuv {
		return invalidf("%d blocks, nuv=%d", len(in.Blocks), g.Nuv)
	}
	if err := validateBlocks(in.Blocks, g.BlockSize()); err != nil {
		return err
	}
	if g.NuvSH < 0 || g.NqSH < 0 {
		return invalidf("nuv_sh=%d nq_sh=%d", g.NuvSH, g.NqSH)
	}

	return nil
}

// validateBlocks checks that every block is a finite Hermitian s×s matrix.
func validateBlocks(blocks []*linalg.CDense, s int) error {
	for b, blk := range blocks {
		if blk == nil || blk.Rows() != s || blk.Cols() != s {
			return invalidf("block %d is not %dx%d", b, s, s)
		}
		if err := hermitian(fmt.Sprintf("block %d", b), blk); err != nil {
			return err
		}
	}

	return nil
}

// hermitian reports a non-Hermitian or non-finite m as ErrInvalidInputs; the
// factorization strategies each read a different triangle of it.
func hermitian(name string, m *linalg.CDense) error {
	if err := linalg.ValidateHermitianRel(m, linalg.DefaultHermitianTol); err != nil {
		return fmt.Errorf("%s: %w: %w", name, err, ErrInvalidInputs)
	}

	return nil
}

// validateSH checks the sub-harmonic region that follows the primary grid:
// it must be non-empty and, when the SH pixel count is known, split into
// equal per-pixel blocks of at least NqSH terms.
func (in *Inputs) validateSH() error {
	g := in.Geometry
	n := in.Npar - g.PrimaryLen()
	if n <= 0 {
		return invalidf("sub-harmonic grid enabled but npar=%d leaves no voxels after the primary grid", in.Npar)
	}
	if g.NuSH > 0 && g.NvSH > 0 && g.NuvSH != g.NuSH*g.NvSH-1 {
		return invalidf("nuv_sh=%d, want nu_sh·nv_sh-1=%d", g.NuvSH, g.NuSH*g.NvSH-1)
	}
	if g.NuvSH == 0 {
		return nil
	}
	if n%g.NuvSH != 0 {
		return invalidf("%d sub-harmonic voxels do not split over nuv_sh=%d pixels", n, g.NuvSH)
	}
	if g.NqSH > n/g.NuvSH {
		return invalidf("nq_sh=%d exceeds the %d terms per sub-harmonic pixel", g.NqSH, n/g.NuvSH)
	}

	return nil
}

// Ndat returns the number of visibilities behind N⁻¹.
func (in *Inputs) Ndat() int { return len(in.Ninv) }
