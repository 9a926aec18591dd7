// SPDX-License-Identifier: MIT

package kspace

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// NumSphericalBins is the number of candidate |k| shells before empty
	// shells are dropped.
	NumSphericalBins = 50

	// SphericalBinRatio is the ratio between consecutive shell edges.
	SphericalBinRatio = 1.35
)

// BinEdge is a half-open |k| shell (Lo, Hi] and its voxel count.
type BinEdge struct {
	Lo, Hi float64
	Count  int
}

// SphericalBinning groups masked voxels into logarithmic |k| shells. The first
// shell is (0, 2·Δk_para] with Δk_para = 2π/boxPara; each following shell runs
// from the previous upper edge to SphericalBinRatio times it. Shells holding
// no voxels are dropped, so bin indices are dense.
func SphericalBinning(mask []bool, modK []float64, boxPara float64) (Partition, []BinEdge, error) {
	if len(mask) != len(modK) {
		return nil, nil, fmt.Errorf("SphericalBinning: %d mask vs %d |k|: %w", len(mask), len(modK), ErrLengthMismatch)
	}
	if !(boxPara > 0) {
		return nil, nil, fmt.Errorf("SphericalBinning: box %g: %w", boxPara, ErrInvalidGeometry)
	}
	edges := shellEdges(2 * (2 * math.Pi / boxPara))

	buckets := make([][]int, NumSphericalBins)
	var i, b int
	for i = range modK {
		if !mask[i] {
			continue
		}
		for b = 0; b < NumSphericalBins; b++ {
			if modK[i] > edges[b][0] && modK[i] <= edges[b][1] {
				buckets[b] = append(buckets[b], i)
				break
			}
		}
	}

	var (
		part Partition
		bins []BinEdge
	)
	for b = 0; b < NumSphericalBins; b++ {
		if len(buckets[b]) == 0 {
			continue
		}
		part = append(part, buckets[b])
		bins = append(bins, BinEdge{Lo: edges[b][0], Hi: edges[b][1], Count: len(buckets[b])})
	}

	return part, bins, nil
}

func shellEdges(first float64) [][2]float64 {
	out := make([][2]float64, NumSphericalBins)
	out[0] = [2]float64{0, first}
	for m := 1; m < NumSphericalBins; m++ {
		out[m][0] = out[m-1][1]
		out[m][1] = SphericalBinRatio * out[m][0]
	}

	return out
}

// ModKPerBin gathers the |k| values of each bin's voxels.
func ModKPerBin(modK []float64, p Partition) [][]float64 {
	out := make([][]float64, len(p))
	for i, bin := range p {
		vals := make([]float64, len(bin))
		for j, v := range bin {
			vals[j] = modK[v]
		}
		out[i] = vals
	}

	return out
}

// MeanK returns the mean |k| of each bin, the k used by the power-spectrum
// normalization.
func MeanK(modK []float64, p Partition) []float64 {
	per := ModKPerBin(modK, p)
	out := make([]float64, len(per))
	for i, vals := range per {
		if len(vals) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = floats.Sum(vals) / float64(len(vals))
	}

	return out
}
