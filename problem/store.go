// SPDX-License-Identifier: MIT

package problem

import (
	"fmt"
	"math"

	"github.com/katalvlaran/bayeseor/arrayio"
	"github.com/katalvlaran/bayeseor/cosmo"
	"github.com/katalvlaran/bayeseor/kspace"
	"github.com/katalvlaran/bayeseor/linalg"
	"github.com/katalvlaran/bayeseor/posterior"
)

// Array names inside a bundle file.
const (
	nameTNinvT   = "T_Ninv_T"
	nameDbar     = "dbar"
	nameNinv     = "Ninv"
	nameKVals    = "k_vals"
	nameBinSizes = "bin_sizes"
	nameVoxels   = "bin_voxels"
	nameEdges    = "bin_edges"
	nameMeta     = "meta"
)

// meta layout: geometry ints, box, band, d_Ninv_d.
const (
	metaNpar = iota
	metaNuv
	metaNu
	metaNv
	metaNeta
	metaNf
	metaNq
	metaBoxRA
	metaBoxDec
	metaBoxPara
	metaNuMin
	metaChannelWidth
	metaDNinvD
	metaLen
)

// Save writes p to path.
func Save(path string, p *Problem, opts ...arrayio.Option) error {
	in := &p.Inputs
	if in.TNinvT == nil {
		return fmt.Errorf("Save: nil T_Ninv_T: %w", ErrCorrupt)
	}
	g := in.Geometry
	meta := make([]float64, metaLen)
	meta[metaNpar] = float64(in.Npar)
	meta[metaNuv] = float64(g.Nuv)
	meta[metaNu] = float64(g.Nu)
	meta[metaNv] = float64(g.Nv)
	meta[metaNeta] = float64(g.Neta)
	meta[metaNf] = float64(in.Band.Nf)
	meta[metaNq] = float64(g.Nq)
	meta[metaBoxRA] = in.Box.RA
	meta[metaBoxDec] = in.Box.Dec
	meta[metaBoxPara] = in.Box.Para
	meta[metaNuMin] = in.Band.NuMinMHz
	meta[metaChannelWidth] = in.Band.ChannelWidthMHz
	meta[metaDNinvD] = in.DNinvD

	sizes := make([]float64, 0, in.Bins.Len())
	voxels := make([]float64, 0, in.Bins.Voxels())
	for _, bin := range in.Bins {
		sizes = append(sizes, float64(len(bin)))
		for _, v := range bin {
			voxels = append(voxels, float64(v))
		}
	}
	edges := make([]float64, 0, 3*len(p.Edges))
	for _, e := range p.Edges {
		edges = append(edges, e.Lo, e.Hi, float64(e.Count))
	}

	t, err := arrayio.NewArray(nameTNinvT, in.Npar, in.Npar, in.TNinvT.Data())
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	return arrayio.WriteFile(path, []arrayio.Array{
		t,
		arrayio.Vector(nameDbar, in.Dbar),
		arrayio.RealVector(nameNinv, in.Ninv),
		arrayio.RealVector(nameKVals, in.KVals),
		arrayio.RealVector(nameBinSizes, sizes),
		arrayio.RealVector(nameVoxels, voxels),
		arrayio.RealVector(nameEdges, edges),
		arrayio.RealVector(nameMeta, meta),
	}, opts...)
}

// Load reads a bundle written by Save.
func Load(path string) (*Problem, error) {
	arc, err := arrayio.ReadFile(path)
	if err != nil {
		return nil, err
	}
	get := func(name string) []float64 {
		if err != nil {
			return nil
		}
		var a arrayio.Array
		if a, err = arc.Get(name); err != nil {
			return nil
		}
		return a.Real()
	}
	meta := get(nameMeta)
	ninv := get(nameNinv)
	kvals := get(nameKVals)
	sizes := get(nameBinSizes)
	voxels := get(nameVoxels)
	edgeVals := get(nameEdges)
	if err != nil {
		return nil, fmt.Errorf("Load(%s): %w", path, err)
	}
	if len(meta) != metaLen || len(edgeVals)%3 != 0 {
		return nil, fmt.Errorf("Load(%s): meta: %w", path, ErrCorrupt)
	}
	ival := func(i int) int { return int(math.Round(meta[i])) }
	npar := ival(metaNpar)

	t, err := arc.Get(nameTNinvT)
	if err != nil {
		return nil, fmt.Errorf("Load(%s): %w", path, err)
	}
	d, err := arc.Get(nameDbar)
	if err != nil {
		return nil, fmt.Errorf("Load(%s): %w", path, err)
	}
	if t.Rows != npar || t.Cols != npar || d.Rows != npar {
		return nil, fmt.Errorf("Load(%s): npar=%d, T_Ninv_T %dx%d, dbar %d: %w", path, npar, t.Rows, t.Cols, d.Rows, ErrCorrupt)
	}
	tNinvT, err := linalg.NewCDenseFrom(npar, npar, t.Data)
	if err != nil {
		return nil, fmt.Errorf("Load(%s): %w", path, err)
	}

	bins := make(kspace.Partition, len(sizes))
	off := 0
	for b, sz := range sizes {
		n := int(sz)
		if n < 0 || off+n > len(voxels) {
			return nil, fmt.Errorf("Load(%s): bin %d: %w", path, b, ErrCorrupt)
		}
		bin := make([]int, n)
		for i := range bin {
			bin[i] = int(voxels[off+i])
		}
		bins[b] = bin
		off += n
	}
	if off != len(voxels) {
		return nil, fmt.Errorf("Load(%s): %d stray voxels: %w", path, len(voxels)-off, ErrCorrupt)
	}
	edges := make([]kspace.BinEdge, len(edgeVals)/3)
	for i := range edges {
		edges[i] = kspace.BinEdge{Lo: edgeVals[3*i], Hi: edgeVals[3*i+1], Count: int(edgeVals[3*i+2])}
	}

	return &Problem{
		Inputs: posterior.Inputs{
			TNinvT: tNinvT,
			Dbar:   d.Data,
			Npar:   npar,
			Bins:   bins,
			Geometry: posterior.Geometry{
				Nuv: ival(metaNuv), Nu: ival(metaNu), Nv: ival(metaNv),
				Neta: ival(metaNeta), Nf: ival(metaNf), Nq: ival(metaNq),
			},
			Ninv:   ninv,
			DNinvD: meta[metaDNinvD],
			KVals:  kvals,
			Box:    cosmo.BoxSize{RA: meta[metaBoxRA], Dec: meta[metaBoxDec], Para: meta[metaBoxPara]},
			Band:   cosmo.Band{NuMinMHz: meta[metaNuMin], ChannelWidthMHz: meta[metaChannelWidth], Nf: ival(metaNf)},
		},
		Edges: edges,
	}, nil
}
